package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayman-boop/ub-chat/internal/apperr"
	"github.com/ayman-boop/ub-chat/internal/auth"
	"github.com/ayman-boop/ub-chat/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func newAuthService(t *testing.T) *AuthService {
	t.Helper()
	store := memory.New()
	digester, err := auth.NewEmailDigester("digest-key")
	require.NoError(t, err)
	svc := NewAuthService(store.Users(), digester, AuthConfig{
		Domain:    "buffalo.edu",
		JWTSecret: testSecret,
		TokenTTL:  time.Hour,
	}, zap.NewNop())
	return svc
}

func TestSignIn(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	user, token, err := svc.SignIn(ctx, "  JDoe@Buffalo.EDU ")
	require.NoError(t, err)
	assert.True(t, auth.ValidHandle(user.Handle), user.Handle)

	claims, err := auth.ParseToken(token, testSecret)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, user.Handle, claims.Handle)

	again, _, err := svc.SignIn(ctx, "jdoe@buffalo.edu")
	require.NoError(t, err)
	assert.Equal(t, user.ID, again.ID)
	assert.Equal(t, user.Handle, again.Handle)

	me, err := svc.Me(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Handle, me.Handle)
}

func TestSignInRejectsOtherDomains(t *testing.T) {
	svc := newAuthService(t)
	for _, email := range []string{"", "someone@gmail.com", "x@buffalo.edu.evil.com", "buffalo.edu"} {
		_, _, err := svc.SignIn(context.Background(), email)
		assert.True(t, apperr.Is(err, apperr.KindInvalidInput), "email %q: %v", email, err)
	}
}

func TestSignInRetriesHandleCollision(t *testing.T) {
	svc := newAuthService(t)
	ctx := context.Background()

	handles := []string{"SwiftBison0001", "SwiftBison0001", "BoldWolf0002"}
	svc.newHandle = func() (string, error) {
		h := handles[0]
		handles = handles[1:]
		return h, nil
	}

	first, _, err := svc.SignIn(ctx, "a@buffalo.edu")
	require.NoError(t, err)
	assert.Equal(t, "SwiftBison0001", first.Handle)

	second, _, err := svc.SignIn(ctx, "b@buffalo.edu")
	require.NoError(t, err)
	assert.Equal(t, "BoldWolf0002", second.Handle)

	t.Run("gives up", func(t *testing.T) {
		svc.newHandle = func() (string, error) { return "SwiftBison0001", nil }
		_, _, err := svc.SignIn(ctx, "c@buffalo.edu")
		assert.True(t, apperr.Is(err, apperr.KindInternal))
	})
}

func TestMeNotFound(t *testing.T) {
	svc := newAuthService(t)
	_, err := svc.Me(context.Background(), uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
