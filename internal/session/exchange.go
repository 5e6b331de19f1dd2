package session

import (
	"context"
	"fmt"

	slogctx "github.com/veqryn/slog-context"

	"github.com/google/uuid"

	"github.com/pointline/liff-portal/internal/backend"
	"github.com/pointline/liff-portal/internal/serviceerr"
)

// RejectedLoginMessage is the user-facing text for a failed credential
// login. It deliberately carries no detail about which part was wrong.
const RejectedLoginMessage = "ชื่อผู้ใช้หรือรหัสผ่านไม่ถูกต้อง"

// Authorizer is the slice of the backend API the exchange needs.
type Authorizer interface {
	Login(ctx context.Context, username, password string) (backend.User, error)
	VerifyLIFFToken(ctx context.Context, lineUserID, accessToken string) error
}

// LIFFCredentials carries the identity material collected from a completed
// LINE login.
type LIFFCredentials struct {
	LineUserID  string
	DisplayName string
	PictureURL  string
	AccessToken string
}

// Exchange turns externally proven identities into session principals.
// It is the only place a Principal is created from untrusted input.
type Exchange struct {
	authorizer  Authorizer
	verifyToken bool
}

func NewExchange(authorizer Authorizer, verifyToken bool) *Exchange {
	return &Exchange{
		authorizer:  authorizer,
		verifyToken: verifyToken,
	}
}

// WithCredentials validates a username and password against the backend.
// Any failure collapses to ErrAuthorization towards the caller; the cause
// only goes to the log.
func (e *Exchange) WithCredentials(ctx context.Context, username, password string) (Principal, error) {
	if username == "" || password == "" {
		return Principal{}, serviceerr.ErrAuthorization
	}

	user, err := e.authorizer.Login(ctx, username, password)
	if err != nil {
		slogctx.Info(ctx, "Rejected credential login", "username", username, "error", err)

		return Principal{}, serviceerr.ErrAuthorization
	}

	// Some backend deployments omit the user ID; the session still needs a
	// stable non-empty subject.
	if user.ID == "" {
		user.ID = uuid.NewString()
	}

	return NewCredentialsPrincipal(user.ID, user.Name, user.Email), nil
}

// WithLIFF accepts an identity asserted by a completed LINE login. When
// token verification is enabled the access token is checked against the
// backend and the exchange fails closed on any error.
func (e *Exchange) WithLIFF(ctx context.Context, creds LIFFCredentials) (Principal, error) {
	principal, err := NewLIFFPrincipal(creds.LineUserID, creds.DisplayName, creds.PictureURL)
	if err != nil {
		return Principal{}, err
	}

	if e.verifyToken {
		if creds.AccessToken == "" {
			return Principal{}, fmt.Errorf("%w: missing access token", serviceerr.ErrAuthorization)
		}

		if err := e.authorizer.VerifyLIFFToken(ctx, creds.LineUserID, creds.AccessToken); err != nil {
			slogctx.Info(ctx, "Rejected LIFF token", "lineUserID", creds.LineUserID, "error", err)

			return Principal{}, fmt.Errorf("%w: %w", serviceerr.ErrAuthorization, err)
		}
	}

	return principal, nil
}
