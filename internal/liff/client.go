package liff

import "context"

// Profile is the result of a successful LIFF login. It is immutable once
// fetched and discarded on logout.
type Profile struct {
	UserID        string
	DisplayName   string
	PictureURL    string
	StatusMessage string
}

// Client is the adapter over a LIFF handle for one page load. A handle is
// owned by the bootstrap machine that created it and must not be shared
// across requests.
//
// Init is idempotent for the same LIFF ID; initialising with a different ID
// discards the previous handle state. The boolean probes IsLoggedIn and
// IsInClient are advisory and never fail: internal errors degrade to false.
type Client interface {
	Init(ctx context.Context, liffID string) error
	IsLoggedIn(ctx context.Context) bool
	IsInClient(ctx context.Context) bool
	// Profile returns nil without error when the provider is not logged in.
	Profile(ctx context.Context) (*Profile, error)
	// AccessToken returns the provider access token, or "" when absent.
	AccessToken(ctx context.Context) string
	// LoginURL builds the provider hosted login URL for the initialised app.
	// Navigating there hands control to the provider; it does not return to
	// the caller synchronously.
	LoginURL(redirectTarget string) (string, error)
	// Logout clears the provider side login state. No-op when not logged in.
	Logout(ctx context.Context) error
}
