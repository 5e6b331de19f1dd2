package session_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointline/liff-portal/internal/backend"
	"github.com/pointline/liff-portal/internal/serviceerr"
	"github.com/pointline/liff-portal/internal/session"
)

type stubAuthorizer struct {
	loginFunc  func(ctx context.Context, username, password string) (backend.User, error)
	verifyFunc func(ctx context.Context, lineUserID, accessToken string) error

	loginCalls  int
	verifyCalls int
}

func (s *stubAuthorizer) Login(ctx context.Context, username, password string) (backend.User, error) {
	s.loginCalls++
	if s.loginFunc == nil {
		return backend.User{}, errors.New("unexpected Login call")
	}

	return s.loginFunc(ctx, username, password)
}

func (s *stubAuthorizer) VerifyLIFFToken(ctx context.Context, lineUserID, accessToken string) error {
	s.verifyCalls++
	if s.verifyFunc == nil {
		return errors.New("unexpected VerifyLIFFToken call")
	}

	return s.verifyFunc(ctx, lineUserID, accessToken)
}

func TestExchangeWithCredentials(t *testing.T) {
	ctx := context.Background()

	t.Run("accepted login", func(t *testing.T) {
		authorizer := &stubAuthorizer{
			loginFunc: func(_ context.Context, username, password string) (backend.User, error) {
				assert.Equal(t, "alice", username)
				assert.Equal(t, "s3cret", password)

				return backend.User{ID: "u-1", Name: "Alice", Email: "alice@example.com"}, nil
			},
		}

		principal, err := session.NewExchange(authorizer, false).WithCredentials(ctx, "alice", "s3cret")
		require.NoError(t, err)
		assert.Equal(t, session.NewCredentialsPrincipal("u-1", "Alice", "alice@example.com"), principal)
	})

	t.Run("rejected login collapses to an opaque error", func(t *testing.T) {
		authorizer := &stubAuthorizer{
			loginFunc: func(context.Context, string, string) (backend.User, error) {
				return backend.User{}, errors.New("password mismatch for row 17")
			},
		}

		_, err := session.NewExchange(authorizer, false).WithCredentials(ctx, "alice", "wrong")
		assert.ErrorIs(t, err, serviceerr.ErrAuthorization)
		assert.NotContains(t, err.Error(), "row 17")
	})

	t.Run("empty credentials never reach the backend", func(t *testing.T) {
		authorizer := &stubAuthorizer{}
		exchange := session.NewExchange(authorizer, false)

		_, err := exchange.WithCredentials(ctx, "", "s3cret")
		assert.ErrorIs(t, err, serviceerr.ErrAuthorization)

		_, err = exchange.WithCredentials(ctx, "alice", "")
		assert.ErrorIs(t, err, serviceerr.ErrAuthorization)

		assert.Zero(t, authorizer.loginCalls)
	})

	t.Run("missing backend user id gets a generated subject", func(t *testing.T) {
		authorizer := &stubAuthorizer{
			loginFunc: func(context.Context, string, string) (backend.User, error) {
				return backend.User{Name: "Alice"}, nil
			},
		}

		principal, err := session.NewExchange(authorizer, false).WithCredentials(ctx, "alice", "s3cret")
		require.NoError(t, err)
		assert.NotEmpty(t, principal.UserID)
		assert.NoError(t, principal.Validate())
	})
}

func TestExchangeWithLIFF(t *testing.T) {
	ctx := context.Background()
	creds := session.LIFFCredentials{
		LineUserID:  "U0f3a",
		DisplayName: "Alice",
		PictureURL:  "https://cdn.example/p.png",
		AccessToken: "at-123",
	}

	t.Run("verification disabled trusts the asserted identity", func(t *testing.T) {
		authorizer := &stubAuthorizer{}

		principal, err := session.NewExchange(authorizer, false).WithLIFF(ctx, creds)
		require.NoError(t, err)
		assert.True(t, principal.IsLIFF())
		assert.Equal(t, "U0f3a", principal.LineUserID)
		assert.Zero(t, authorizer.verifyCalls)
	})

	t.Run("verification enabled checks the token", func(t *testing.T) {
		authorizer := &stubAuthorizer{
			verifyFunc: func(_ context.Context, lineUserID, accessToken string) error {
				assert.Equal(t, "U0f3a", lineUserID)
				assert.Equal(t, "at-123", accessToken)

				return nil
			},
		}

		principal, err := session.NewExchange(authorizer, true).WithLIFF(ctx, creds)
		require.NoError(t, err)
		assert.True(t, principal.IsLIFF())
		assert.Equal(t, 1, authorizer.verifyCalls)
	})

	t.Run("verification failure fails closed", func(t *testing.T) {
		authorizer := &stubAuthorizer{
			verifyFunc: func(context.Context, string, string) error {
				return errors.New("token revoked")
			},
		}

		_, err := session.NewExchange(authorizer, true).WithLIFF(ctx, creds)
		assert.ErrorIs(t, err, serviceerr.ErrAuthorization)
	})

	t.Run("verification enabled requires an access token", func(t *testing.T) {
		authorizer := &stubAuthorizer{}
		bare := creds
		bare.AccessToken = ""

		_, err := session.NewExchange(authorizer, true).WithLIFF(ctx, bare)
		assert.ErrorIs(t, err, serviceerr.ErrAuthorization)
		assert.Zero(t, authorizer.verifyCalls)
	})

	t.Run("missing line user id", func(t *testing.T) {
		bare := creds
		bare.LineUserID = ""

		_, err := session.NewExchange(&stubAuthorizer{}, true).WithLIFF(ctx, bare)
		assert.ErrorIs(t, err, serviceerr.ErrAuthorization)
	})
}
