// Package backend wraps the external authorization API the portal proxies
// credential checks and LIFF token verification to. Only the status and
// body shape of the two endpoints are contractual; everything else about
// the backend is opaque to us.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pointline/liff-portal/internal/config"
)

// User is the backend's view of an authenticated account.
type User struct {
	ID    string
	Name  string
	Email string
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(cfg config.ExternalAPI) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Login checks a username/password pair against POST /auth/login. Any
// non-2xx status is an error; the caller decides how much of it to expose.
func (c *Client) Login(ctx context.Context, username, password string) (User, error) {
	var body struct {
		ID       string `json:"id"`
		UserID   string `json:"userId"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	err := c.post(ctx, "/auth/login", map[string]string{
		"username": username,
		"password": password,
	}, &body)
	if err != nil {
		return User{}, fmt.Errorf("calling login endpoint: %w", err)
	}

	user := User{
		ID:    body.ID,
		Name:  body.Name,
		Email: body.Email,
	}
	// the backend is inconsistent about field names across versions
	if user.ID == "" {
		user.ID = body.UserID
	}
	if user.Name == "" {
		user.Name = body.Username
	}

	return user, nil
}

// VerifyLIFFToken asks the backend to validate a LIFF access token against
// the LINE user it claims to belong to. A nil error means verified.
func (c *Client) VerifyLIFFToken(ctx context.Context, lineUserID, accessToken string) error {
	err := c.post(ctx, "/auth/liff/verify", map[string]string{
		"lineUserId":  lineUserID,
		"accessToken": accessToken,
	}, nil)
	if err != nil {
		return fmt.Errorf("calling liff verify endpoint: %w", err)
	}

	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any, decodeInto any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("backend returned status: %d", resp.StatusCode)
	}

	if decodeInto == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(decodeInto); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}
