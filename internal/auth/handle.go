package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
)

var handleAdjectives = []string{
	"Blue", "Bold", "Bright", "Bullish", "Charging", "Daring",
	"Dynamic", "Electric", "Fierce", "Gritty", "Mighty", "Northern",
	"Powerful", "Quick", "Royal", "Spirited", "Strong", "Swift",
	"Valiant", "Victorious",
}

var handleNouns = []string{
	"Bull", "Buffalo", "Champion", "Horns", "Runner", "Scholar",
	"Victor", "Spark", "Thunder", "Trailblazer", "Pioneer", "Leader",
	"Achiever", "Wolf", "Bison", "Maverick", "Flame", "Hero", "Titan",
}

var handlePattern = regexp.MustCompile(`^[A-Z][a-z]+[A-Z][a-z]+\d{4}$`)

// NewHandle returns a random anonymous handle like "SwiftBison4821".
// Uniqueness is the user store's job; callers retry on collision.
func NewHandle() (string, error) {
	adj, err := pick(handleAdjectives)
	if err != nil {
		return "", err
	}
	noun, err := pick(handleNouns)
	if err != nil {
		return "", err
	}
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("generate handle: %w", err)
	}
	return fmt.Sprintf("%s%s%d", adj, noun, 1000+n.Int64()), nil
}

// ValidHandle reports whether h has the AdjectiveNoun#### shape.
func ValidHandle(h string) bool {
	return handlePattern.MatchString(h)
}

func pick(words []string) (string, error) {
	i, err := rand.Int(rand.Reader, big.NewInt(int64(len(words))))
	if err != nil {
		return "", fmt.Errorf("generate handle: %w", err)
	}
	return words[i.Int64()], nil
}
