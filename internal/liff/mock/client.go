package liffmock

import (
	"context"

	"github.com/pointline/liff-portal/internal/liff"
)

type ClientOption func(*Client)

// Client is an in-memory liff.Client for tests. It records how often each
// adapter operation was invoked so tests can assert on interaction counts.
type Client struct {
	loggedIn bool
	inClient bool
	profile  *liff.Profile
	token    string

	initErr    error
	profileErr error
	loginURL   string

	initCalls, loginURLCalls, profileCalls, logoutCalls int

	initializedID string
}

func WithLoggedIn(loggedIn bool) ClientOption {
	return func(c *Client) { c.loggedIn = loggedIn }
}
func WithInClient(inClient bool) ClientOption {
	return func(c *Client) { c.inClient = inClient }
}
func WithProfile(profile *liff.Profile) ClientOption {
	return func(c *Client) { c.profile = profile }
}
func WithAccessToken(token string) ClientOption {
	return func(c *Client) { c.token = token }
}
func WithInitError(err error) ClientOption {
	return func(c *Client) { c.initErr = err }
}
func WithProfileError(err error) ClientOption {
	return func(c *Client) { c.profileErr = err }
}
func WithLoginURL(u string) ClientOption {
	return func(c *Client) { c.loginURL = u }
}

var _ = liff.Client(&Client{})

func NewClient(opts ...ClientOption) *Client {
	c := &Client{loginURL: "https://liff.line.me/mock"}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Init(_ context.Context, liffID string) error {
	c.initCalls++
	if c.initErr != nil {
		return c.initErr
	}
	c.initializedID = liffID
	return nil
}

func (c *Client) IsLoggedIn(_ context.Context) bool { return c.loggedIn }
func (c *Client) IsInClient(_ context.Context) bool { return c.inClient }

func (c *Client) Profile(_ context.Context) (*liff.Profile, error) {
	c.profileCalls++
	if c.profileErr != nil {
		return nil, c.profileErr
	}
	return c.profile, nil
}

func (c *Client) AccessToken(_ context.Context) string { return c.token }

func (c *Client) LoginURL(string) (string, error) {
	c.loginURLCalls++
	return c.loginURL, nil
}

func (c *Client) Logout(_ context.Context) error {
	c.logoutCalls++
	c.loggedIn = false
	c.profile = nil
	return nil
}

// TInitCalls reports how many times Init ran.
func (c *Client) TInitCalls() int { return c.initCalls }

// TLoginURLCalls reports how many times the provider login was prepared.
func (c *Client) TLoginURLCalls() int { return c.loginURLCalls }

// TProfileCalls reports how many times the profile was fetched.
func (c *Client) TProfileCalls() int { return c.profileCalls }

// TLogoutCalls reports how many times Logout ran.
func (c *Client) TLogoutCalls() int { return c.logoutCalls }

// TInitializedID returns the LIFF ID the client was initialised with.
func (c *Client) TInitializedID() string { return c.initializedID }

// TCalls reports the total number of adapter invocations.
func (c *Client) TCalls() int {
	return c.initCalls + c.loginURLCalls + c.profileCalls + c.logoutCalls
}
