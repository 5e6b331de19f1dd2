package session_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pointline/liff-portal/internal/config"
	"github.com/pointline/liff-portal/internal/serviceerr"
	"github.com/pointline/liff-portal/internal/session"
)

const (
	testSecret     = "0123456789abcdef0123456789abcdef"
	testCSRFSecret = "fedcba9876543210fedcba9876543210"
)

func testSessionConfig(duration time.Duration) config.Session {
	return config.Session{
		Secret:     commoncfg.SourceRef{Source: "embedded", Value: testSecret},
		CSRFSecret: commoncfg.SourceRef{Source: "embedded", Value: testCSRFSecret},
		Duration:   duration,
		CookieTemplate: config.CookieTemplate{
			Name:     "portal_session",
			Path:     "/",
			Secure:   true,
			HTTPOnly: true,
			SameSite: config.CookieSameSiteLax,
		},
		CSRFCookieTemplate: config.CookieTemplate{
			Name:     "portal_csrf",
			Path:     "/",
			Secure:   true,
			SameSite: config.CookieSameSiteLax,
		},
	}
}

func newTestManager(t *testing.T, duration time.Duration) *session.Manager {
	t.Helper()

	manager, err := session.NewManager(testSessionConfig(duration))
	require.NoError(t, err)

	return manager
}

func TestNewManagerRejectsShortSecrets(t *testing.T) {
	cfg := testSessionConfig(time.Hour)
	cfg.Secret = commoncfg.SourceRef{Source: "embedded", Value: "short"}

	_, err := session.NewManager(cfg)
	assert.Error(t, err)

	cfg = testSessionConfig(time.Hour)
	cfg.CSRFSecret = commoncfg.SourceRef{Source: "embedded", Value: "short"}

	_, err = session.NewManager(cfg)
	assert.Error(t, err)
}

func TestMintParseRoundTrip(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	liff, err := session.NewLIFFPrincipal("U0f3a", "Alice", "https://cdn.example/p.png")
	require.NoError(t, err)

	for _, principal := range []session.Principal{
		session.NewCredentialsPrincipal("u-1", "Alice", "alice@example.com"),
		liff,
	} {
		token, err := manager.Mint(principal)
		require.NoError(t, err)

		got, err := manager.Parse(token)
		require.NoError(t, err)

		if diff := cmp.Diff(principal, got); diff != "" {
			t.Errorf("principal mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestMintRefusesInvalidPrincipal(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	_, err := manager.Mint(session.Principal{
		UserID:     "u-1",
		LineUserID: "U0f3a",
		LoginType:  session.LoginTypeCredentials,
	})
	assert.ErrorIs(t, err, serviceerr.ErrInvalidSession)
}

func TestParseExpiredToken(t *testing.T) {
	manager := newTestManager(t, -time.Hour)

	token, err := manager.Mint(session.NewCredentialsPrincipal("u-1", "Alice", ""))
	require.NoError(t, err)

	_, err = manager.Parse(token)
	assert.ErrorIs(t, err, serviceerr.ErrSessionExpired)
}

func TestParseRejectsTamperedToken(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	token, err := manager.Mint(session.NewCredentialsPrincipal("u-1", "Alice", ""))
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	parts[1] = "eyJzdWIiOiJhdHRhY2tlciJ9"

	_, err = manager.Parse(strings.Join(parts, "."))
	assert.ErrorIs(t, err, serviceerr.ErrInvalidSession)
}

func TestParseRejectsForeignSignature(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	otherCfg := testSessionConfig(time.Hour)
	otherCfg.Secret = commoncfg.SourceRef{Source: "embedded", Value: "ffffffffffffffffffffffffffffffff"}
	other, err := session.NewManager(otherCfg)
	require.NoError(t, err)

	token, err := other.Mint(session.NewCredentialsPrincipal("u-1", "Alice", ""))
	require.NoError(t, err)

	_, err = manager.Parse(token)
	assert.ErrorIs(t, err, serviceerr.ErrInvalidSession)
}

func TestParseRejectsGarbage(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	for _, raw := range []string{"", "not-a-token", "a.b", "a.b.c.d"} {
		_, err := manager.Parse(raw)
		assert.ErrorIs(t, err, serviceerr.ErrInvalidSession, "input %q", raw)
	}
}

func TestPrincipalFromRequest(t *testing.T) {
	manager := newTestManager(t, time.Hour)
	principal := session.NewCredentialsPrincipal("u-1", "Alice", "")

	token, err := manager.Mint(principal)
	require.NoError(t, err)

	t.Run("with session cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/points", nil)
		r.AddCookie(manager.SessionCookie(token))

		got, err := manager.PrincipalFromRequest(r)
		require.NoError(t, err)
		assert.Equal(t, principal, got)
	})

	t.Run("without session cookie", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodGet, "/points", nil)

		_, err := manager.PrincipalFromRequest(r)
		assert.ErrorIs(t, err, serviceerr.ErrInvalidSession)
	})
}

func TestSessionCookieShape(t *testing.T) {
	manager := newTestManager(t, time.Hour)

	cookie := manager.SessionCookie("tok")
	assert.Equal(t, "portal_session", cookie.Name)
	assert.Equal(t, "tok", cookie.Value)
	assert.True(t, cookie.HttpOnly)
	assert.True(t, cookie.Secure)

	expired := manager.ExpiredSessionCookie()
	assert.Equal(t, "portal_session", expired.Name)
	assert.Equal(t, -1, expired.MaxAge)
	assert.Empty(t, expired.Value)
}

func TestSessionCookieMaxAgeDefaultsToDuration(t *testing.T) {
	// without a configured maxAge the cookie must still outlive the
	// browser session and cover the full token validity window
	t.Run("unset falls back to the duration", func(t *testing.T) {
		manager := newTestManager(t, 720*time.Hour)

		assert.Equal(t, int((720 * time.Hour).Seconds()), manager.SessionCookie("tok").MaxAge)
		assert.Equal(t, int((720 * time.Hour).Seconds()), manager.CSRFCookie("tok").MaxAge)
	})

	t.Run("configured maxAge wins", func(t *testing.T) {
		cfg := testSessionConfig(720 * time.Hour)
		cfg.CookieTemplate.MaxAge = 3600
		cfg.CSRFCookieTemplate.MaxAge = 1800

		manager, err := session.NewManager(cfg)
		require.NoError(t, err)

		assert.Equal(t, 3600, manager.SessionCookie("tok").MaxAge)
		assert.Equal(t, 1800, manager.CSRFCookie("tok").MaxAge)
	})
}

func TestCSRFTokenBinding(t *testing.T) {
	manager := newTestManager(t, time.Hour)
	alice := session.NewCredentialsPrincipal("u-1", "Alice", "")
	bob := session.NewCredentialsPrincipal("u-2", "Bob", "")

	token := manager.NewCSRFToken(alice)
	assert.True(t, manager.ValidateCSRF(token, alice))
	assert.False(t, manager.ValidateCSRF(token, bob))
	assert.False(t, manager.ValidateCSRF("bogus", alice))

	cookie := manager.CSRFCookie(token)
	assert.Equal(t, "portal_csrf", cookie.Name)
	assert.Equal(t, -1, manager.ExpiredCSRFCookie().MaxAge)
}
