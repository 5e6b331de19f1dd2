package session_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pointline/liff-portal/internal/serviceerr"
	"github.com/pointline/liff-portal/internal/session"
)

func TestPrincipalValidate(t *testing.T) {
	tests := []struct {
		name      string
		principal session.Principal
		wantErr   assert.ErrorAssertionFunc
	}{
		{
			name:      "valid credentials principal",
			principal: session.NewCredentialsPrincipal("u-1", "Alice", "alice@example.com"),
			wantErr:   assert.NoError,
		},
		{
			name: "valid liff principal",
			principal: session.Principal{
				UserID:     "U0f3a",
				LineUserID: "U0f3a",
				LoginType:  session.LoginTypeLIFF,
			},
			wantErr: assert.NoError,
		},
		{
			name: "credentials principal carrying a line user id",
			principal: session.Principal{
				UserID:     "u-1",
				LineUserID: "U0f3a",
				LoginType:  session.LoginTypeCredentials,
			},
			wantErr: assert.Error,
		},
		{
			name: "liff principal without a line user id",
			principal: session.Principal{
				UserID:    "u-1",
				LoginType: session.LoginTypeLIFF,
			},
			wantErr: assert.Error,
		},
		{
			name: "unknown login type",
			principal: session.Principal{
				UserID:    "u-1",
				LoginType: session.LoginType("magic"),
			},
			wantErr: assert.Error,
		},
		{
			name: "missing user id",
			principal: session.Principal{
				LoginType: session.LoginTypeCredentials,
			},
			wantErr: assert.Error,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tc.wantErr(t, tc.principal.Validate())
		})
	}
}

func TestNewLIFFPrincipal(t *testing.T) {
	t.Run("requires a line user id", func(t *testing.T) {
		_, err := session.NewLIFFPrincipal("", "Alice", "")
		assert.ErrorIs(t, err, serviceerr.ErrAuthorization)
	})

	t.Run("line user id doubles as subject", func(t *testing.T) {
		principal, err := session.NewLIFFPrincipal("U0f3a", "Alice", "https://cdn.example/p.png")
		assert.NoError(t, err)
		assert.Equal(t, "U0f3a", principal.UserID)
		assert.True(t, principal.IsLIFF())
		assert.NoError(t, principal.Validate())
	})
}

// Whatever the constructors produce, the login kind and the presence of a
// LINE user ID must agree.
func TestPrincipalConstructorsKeepInvariant(t *testing.T) {
	liff, err := session.NewLIFFPrincipal("U0f3a", "Alice", "")
	assert.NoError(t, err)

	for _, principal := range []session.Principal{
		session.NewCredentialsPrincipal("u-1", "Alice", "alice@example.com"),
		session.NewCredentialsPrincipal("u-2", "", ""),
		liff,
	} {
		assert.NoError(t, principal.Validate())
		assert.Equal(t, principal.IsLIFF(), principal.LineUserID != "")
	}
}
