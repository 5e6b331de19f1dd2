package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
	"github.com/openkcm/common-sdk/pkg/commoncfg"

	"github.com/pointline/liff-portal/internal/config"
	"github.com/pointline/liff-portal/internal/nonce"
	"github.com/pointline/liff-portal/internal/serviceerr"
	"github.com/pointline/liff-portal/pkg/csrf"
)

// the session token is always HS256; anything else is rejected on parse
var allowedSigAlgs = []jose.SignatureAlgorithm{jose.HS256}

type tokenClaims struct {
	jwt.Claims

	Name       string `json:"name,omitempty"`
	Email      string `json:"email,omitempty"`
	Picture    string `json:"picture,omitempty"`
	LineUserID string `json:"lineUserId,omitempty"`
	LoginType  string `json:"loginType"`
}

// Manager mints and validates the stateless signed session token and owns
// the session and CSRF cookies.
type Manager struct {
	signingKey []byte
	csrfSecret []byte
	duration   time.Duration
	signer     jose.Signer
	nonce      nonce.Source

	cookieTemplate     config.CookieTemplate
	csrfCookieTemplate config.CookieTemplate
}

func NewManager(cfg config.Session) (*Manager, error) {
	signingKey, err := commoncfg.LoadValueFromSourceRef(cfg.Secret)
	if err != nil {
		return nil, fmt.Errorf("loading session secret from source ref: %w", err)
	}
	if len(signingKey) < 32 {
		return nil, errors.New("session secret must be at least 32 bytes")
	}

	csrfSecret, err := commoncfg.LoadValueFromSourceRef(cfg.CSRFSecret)
	if err != nil {
		return nil, fmt.Errorf("loading csrf secret from source ref: %w", err)
	}
	if len(csrfSecret) < 32 {
		return nil, errors.New("CSRF secret must be at least 32 bytes")
	}

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: []byte(signingKey)},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating token signer: %w", err)
	}

	// an unset maxAge would scope the cookie to the browser session even
	// though the token inside stays valid for the full duration
	cookieTemplate := cfg.CookieTemplate
	if cookieTemplate.MaxAge == 0 {
		cookieTemplate.MaxAge = int(cfg.Duration.Seconds())
	}

	csrfCookieTemplate := cfg.CSRFCookieTemplate
	if csrfCookieTemplate.MaxAge == 0 {
		csrfCookieTemplate.MaxAge = int(cfg.Duration.Seconds())
	}

	return &Manager{
		signingKey:         []byte(signingKey),
		csrfSecret:         []byte(csrfSecret),
		duration:           cfg.Duration,
		signer:             signer,
		cookieTemplate:     cookieTemplate,
		csrfCookieTemplate: csrfCookieTemplate,
	}, nil
}

// Mint issues a fresh token for the principal with a full validity window.
// Handlers call it again on each validated request, which gives the rolling
// 30-day expiry the session contract asks for.
func (m *Manager) Mint(principal Principal) (string, error) {
	if err := principal.Validate(); err != nil {
		return "", fmt.Errorf("refusing to mint: %w", err)
	}

	now := time.Now()
	claims := tokenClaims{
		Claims: jwt.Claims{
			Subject:  principal.UserID,
			ID:       m.nonce.SessionID(),
			IssuedAt: jwt.NewNumericDate(now),
			Expiry:   jwt.NewNumericDate(now.Add(m.duration)),
		},
		Name:       principal.DisplayName,
		Email:      principal.Email,
		Picture:    principal.PictureURL,
		LineUserID: principal.LineUserID,
		LoginType:  string(principal.LoginType),
	}

	raw, err := jwt.Signed(m.signer).Claims(claims).Serialize()
	if err != nil {
		return "", fmt.Errorf("signing session token: %w", err)
	}

	return raw, nil
}

// Parse verifies the signature and validity window of a raw token and
// returns the principal it carries. Unsigned, tampered or expired tokens
// are rejected.
func (m *Manager) Parse(raw string) (Principal, error) {
	token, err := jwt.ParseSigned(raw, allowedSigAlgs)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %w", serviceerr.ErrInvalidSession, err)
	}

	var claims tokenClaims
	if err := token.Claims(m.signingKey, &claims); err != nil {
		return Principal{}, fmt.Errorf("%w: %w", serviceerr.ErrInvalidSession, err)
	}

	if err := claims.Validate(jwt.Expected{Time: time.Now()}); err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return Principal{}, serviceerr.ErrSessionExpired
		}

		return Principal{}, fmt.Errorf("%w: %w", serviceerr.ErrInvalidSession, err)
	}

	principal := Principal{
		UserID:      claims.Subject,
		DisplayName: claims.Name,
		Email:       claims.Email,
		PictureURL:  claims.Picture,
		LineUserID:  claims.LineUserID,
		LoginType:   LoginType(claims.LoginType),
	}
	if err := principal.Validate(); err != nil {
		return Principal{}, err
	}

	return principal, nil
}

// PrincipalFromRequest reads and validates the session cookie on a request.
func (m *Manager) PrincipalFromRequest(r *http.Request) (Principal, error) {
	cookie, err := r.Cookie(m.cookieTemplate.Name)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: no session cookie", serviceerr.ErrInvalidSession)
	}

	return m.Parse(cookie.Value)
}

func (m *Manager) SessionCookie(token string) *http.Cookie {
	return m.cookieTemplate.ToCookie(token)
}

func (m *Manager) ExpiredSessionCookie() *http.Cookie {
	return m.cookieTemplate.ToExpiredCookie()
}

// NewCSRFToken mints a CSRF token bound to the principal.
func (m *Manager) NewCSRFToken(principal Principal) string {
	return csrf.NewToken(principal.UserID, m.csrfSecret)
}

func (m *Manager) CSRFCookie(token string) *http.Cookie {
	return m.csrfCookieTemplate.ToCookie(token)
}

func (m *Manager) ExpiredCSRFCookie() *http.Cookie {
	return m.csrfCookieTemplate.ToExpiredCookie()
}

// ValidateCSRF checks a submitted CSRF token against the principal it was
// minted for.
func (m *Manager) ValidateCSRF(token string, principal Principal) bool {
	return csrf.Validate(token, principal.UserID, m.csrfSecret)
}
