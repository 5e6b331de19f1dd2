// Package liffapi implements the liff.Client adapter on top of the LINE
// Platform REST API. A client is scoped to one incoming browser request;
// the handle it carries never outlives the page load that created it.
package liffapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	slogctx "github.com/veqryn/slog-context"

	"github.com/pointline/liff-portal/internal/config"
	"github.com/pointline/liff-portal/internal/liff"
	"github.com/pointline/liff-portal/internal/serviceerr"
)

// AccessTokenHeader carries the LIFF access token from the in-page SDK to
// the server on exchange calls.
const AccessTokenHeader = "X-LIFF-Access-Token"

// accessTokenParam is the query parameter the provider redirect delivers the
// token in on the callback route.
const accessTokenParam = "access_token"

// lineClientUAMarker appears in the User-Agent of the LINE in-app browser.
const lineClientUAMarker = "Line/"

type Client struct {
	apiBaseURL   string
	loginBaseURL string
	httpClient   *http.Client

	// browser request facts, captured at construction
	fromBrowser bool
	userAgent   string
	accessToken string

	// handle state, reset when Init sees a different LIFF ID
	liffID   string
	verified *bool
}

var _ = liff.Client(&Client{})

// New builds a request-scoped adapter. A nil request means the client runs
// outside a browser context and Init will fail, mirroring the SDK's
// client-side-only constraint.
func New(cfg config.LIFF, httpClient *http.Client, r *http.Request) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	c := &Client{
		apiBaseURL:   strings.TrimSuffix(cfg.APIBaseURL, "/"),
		loginBaseURL: strings.TrimSuffix(cfg.LoginBaseURL, "/"),
		httpClient:   httpClient,
	}

	if r != nil {
		c.fromBrowser = true
		c.userAgent = r.UserAgent()
		c.accessToken = tokenFromRequest(r)
	}

	return c
}

func tokenFromRequest(r *http.Request) string {
	if tok := r.Header.Get(AccessTokenHeader); tok != "" {
		return tok
	}

	return r.URL.Query().Get(accessTokenParam)
}

func (c *Client) Init(_ context.Context, liffID string) error {
	if !c.fromBrowser {
		return fmt.Errorf("%w: not in a browser request context", serviceerr.ErrInitialization)
	}

	if liffID == "" {
		return fmt.Errorf("%w: LIFF ID is required", serviceerr.ErrInitialization)
	}

	if c.liffID == liffID {
		return nil
	}

	// new app id: discard the previous handle state
	c.liffID = liffID
	c.verified = nil

	return nil
}

// IsLoggedIn reports whether the request carried a provider token that the
// platform accepts. Verification errors degrade to false; the probe is
// advisory.
func (c *Client) IsLoggedIn(ctx context.Context) bool {
	if c.accessToken == "" {
		return false
	}

	if c.verified != nil {
		return *c.verified
	}

	ok := c.verifyToken(ctx)
	c.verified = &ok

	return ok
}

func (c *Client) verifyToken(ctx context.Context) bool {
	u := c.apiBaseURL + "/oauth2/v2.1/verify?" + url.Values{
		accessTokenParam: {c.accessToken},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slogctx.Debug(ctx, "LIFF token verification failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

// IsInClient detects the LINE in-app browser from its User-Agent marker.
func (c *Client) IsInClient(_ context.Context) bool {
	return strings.Contains(c.userAgent, lineClientUAMarker)
}

func (c *Client) Profile(ctx context.Context) (*liff.Profile, error) {
	if !c.IsLoggedIn(ctx) {
		return nil, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBaseURL+"/v2/profile", nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %w", serviceerr.ErrProfileFetch, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: executing request: %w", serviceerr.ErrProfileFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: profile endpoint returned status %d", serviceerr.ErrProfileFetch, resp.StatusCode)
	}

	var body struct {
		UserID        string `json:"userId"`
		DisplayName   string `json:"displayName"`
		PictureURL    string `json:"pictureUrl"`
		StatusMessage string `json:"statusMessage"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decoding profile: %w", serviceerr.ErrProfileFetch, err)
	}

	return &liff.Profile{
		UserID:        body.UserID,
		DisplayName:   body.DisplayName,
		PictureURL:    body.PictureURL,
		StatusMessage: body.StatusMessage,
	}, nil
}

func (c *Client) AccessToken(ctx context.Context) string {
	if !c.IsLoggedIn(ctx) {
		return ""
	}

	return c.accessToken
}

// LoginURL builds the LIFF deep link that opens the app inside LINE (or the
// external-browser login when LINE is absent); the redirect target survives
// the round trip in liff.state.
func (c *Client) LoginURL(redirectTarget string) (string, error) {
	if c.liffID == "" {
		return "", fmt.Errorf("%w: LoginURL called before Init", serviceerr.ErrInitialization)
	}

	u := c.loginBaseURL + "/" + c.liffID
	if redirectTarget != "" {
		u += "?" + url.Values{"liff.state": {redirectTarget}}.Encode()
	}

	return u, nil
}

// Logout revokes the provider token carried by the request. Without a token
// there is nothing to revoke and the call is a no-op.
func (c *Client) Logout(ctx context.Context) error {
	if c.accessToken == "" {
		return nil
	}

	form := url.Values{accessTokenParam: {c.accessToken}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.apiBaseURL+"/oauth2/v2.1/revoke", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating revoke request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("revoking provider token: %w", err)
	}
	defer resp.Body.Close()

	c.accessToken = ""
	c.verified = nil

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("revoke endpoint returned status %d", resp.StatusCode)
	}

	return nil
}
