package models

import (
	"time"

	"github.com/google/uuid"
)

// Category groups threads by what they discuss. Course and professor
// threads carry an extra identifying field.
type Category string

const (
	CategoryProfessor Category = "professor"
	CategoryCourse    Category = "course"
	CategoryGeneral   Category = "general"
)

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryProfessor, CategoryCourse, CategoryGeneral:
		return true
	}
	return false
}

// User is an anonymous campus identity. The email itself is never stored,
// only a keyed digest so the same address always maps to the same user.
type User struct {
	ID          uuid.UUID `json:"-"`
	Handle      string    `json:"handle"`
	EmailDigest string    `json:"-"`
	Joined      time.Time `json:"joined"`
}

// Thread is a discussion topic.
//
// MessageCount counts top-level messages only. Replies bump LastActivity
// but never MessageCount.
type Thread struct {
	ID            uuid.UUID `json:"id"`
	Slug          string    `json:"slug"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Category      Category  `json:"category"`
	CourseCode    string    `json:"courseCode,omitempty"`
	ProfessorName string    `json:"professorName,omitempty"`
	Created       time.Time `json:"created"`
	LastActivity  time.Time `json:"lastActivity"`
	MessageCount  int64     `json:"messageCount"`
}

// Reactions are independent up/down counters. They only ever grow.
type Reactions struct {
	Up   int64 `json:"up"`
	Down int64 `json:"down"`
}

// ReactionKind selects which counter a reaction increments.
type ReactionKind string

const (
	ReactionUp   ReactionKind = "up"
	ReactionDown ReactionKind = "down"
)

func (k ReactionKind) Valid() bool {
	return k == ReactionUp || k == ReactionDown
}

// Message is either a top-level message (ParentID nil) or a reply to a
// top-level message. Replies are never nested further.
//
// AuthorHandle is a snapshot taken at post time.
type Message struct {
	ID           int64     `json:"id"`
	ThreadID     uuid.UUID `json:"threadId"`
	ParentID     *int64    `json:"parentId,omitempty"`
	AuthorID     uuid.UUID `json:"-"`
	AuthorHandle string    `json:"authorHandle"`
	Content      string    `json:"content"`
	Created      time.Time `json:"created"`
	Reactions    Reactions `json:"reactions"`
}

// IsReply reports whether m hangs under another message.
func (m *Message) IsReply() bool {
	return m.ParentID != nil
}

// NewThread is the input for creating a thread.
type NewThread struct {
	Title         string
	Description   string
	Category      Category
	CourseCode    string
	ProfessorName string
}

// NewMessage is what the write path hands to the message store once
// validation has passed.
type NewMessage struct {
	ThreadID     uuid.UUID
	ParentID     *int64
	AuthorID     uuid.UUID
	AuthorHandle string
	Content      string
}

// ThreadFilter narrows a thread listing. Zero values mean "no filter".
type ThreadFilter struct {
	Category Category
	Search   string
}

// Page is a 1-based page window. Use Offset for skip/limit queries.
type Page struct {
	Number int
	Limit  int
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// Pagination is returned next to every paged listing.
type Pagination struct {
	Total int64 `json:"total"`
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Pages int64 `json:"pages"`
}

// NewPagination derives the page count from a filtered total.
func NewPagination(total int64, p Page) Pagination {
	pages := int64(0)
	if p.Limit > 0 {
		pages = (total + int64(p.Limit) - 1) / int64(p.Limit)
	}
	return Pagination{Total: total, Page: p.Number, Limit: p.Limit, Pages: pages}
}

// MessageWithReplies is one top-level message in a thread view, with a
// capped preview of its replies. RepliesCount is the full reply count, so
// RepliesCount > len(Replies) means there is more to load.
type MessageWithReplies struct {
	Message
	Replies      []Message `json:"replies"`
	RepliesCount int64     `json:"repliesCount"`
}

// ThreadView is the composed response for a single thread page.
type ThreadView struct {
	Thread     *Thread              `json:"thread"`
	Messages   []MessageWithReplies `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}
