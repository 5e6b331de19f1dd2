// Package session mints, validates and exchanges the portal's own signed
// credential, independent of any provider token.
package session

import (
	"fmt"

	"github.com/pointline/liff-portal/internal/serviceerr"
)

// LoginType discriminates the two ways a principal can authenticate. The
// set is closed.
type LoginType string

const (
	LoginTypeCredentials LoginType = "credentials"
	LoginTypeLIFF        LoginType = "liff"
)

// Principal is the authenticated identity carried by a session token.
// Construct it through NewCredentialsPrincipal or NewLIFFPrincipal so the
// login-type invariant holds: LoginTypeLIFF implies a LINE user ID and
// LoginTypeCredentials forbids one.
type Principal struct {
	UserID      string
	DisplayName string
	Email       string
	PictureURL  string
	LineUserID  string
	LoginType   LoginType
}

func NewCredentialsPrincipal(userID, displayName, email string) Principal {
	return Principal{
		UserID:      userID,
		DisplayName: displayName,
		Email:       email,
		LoginType:   LoginTypeCredentials,
	}
}

func NewLIFFPrincipal(lineUserID, displayName, pictureURL string) (Principal, error) {
	if lineUserID == "" {
		return Principal{}, fmt.Errorf("%w: LINE user ID is required", serviceerr.ErrAuthorization)
	}

	return Principal{
		UserID:      lineUserID,
		DisplayName: displayName,
		PictureURL:  pictureURL,
		LineUserID:  lineUserID,
		LoginType:   LoginTypeLIFF,
	}, nil
}

// Validate re-checks the invariant for principals decoded off the wire.
func (p Principal) Validate() error {
	switch p.LoginType {
	case LoginTypeCredentials:
		if p.LineUserID != "" {
			return fmt.Errorf("%w: credentials login with a LINE user ID", serviceerr.ErrInvalidSession)
		}
	case LoginTypeLIFF:
		if p.LineUserID == "" {
			return fmt.Errorf("%w: liff login without a LINE user ID", serviceerr.ErrInvalidSession)
		}
	default:
		return fmt.Errorf("%w: unknown login type %q", serviceerr.ErrInvalidSession, p.LoginType)
	}

	if p.UserID == "" {
		return fmt.Errorf("%w: missing user ID", serviceerr.ErrInvalidSession)
	}

	return nil
}

// IsLIFF reports whether the principal logged in through the LINE identity
// provider.
func (p Principal) IsLIFF() bool {
	return p.LoginType == LoginTypeLIFF
}
