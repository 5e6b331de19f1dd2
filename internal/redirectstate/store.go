// Package redirectstate persists the pending LIFF login state across the
// full-page navigation to the identity provider and back. The record lives
// server-side under an opaque state ID; the ID itself travels in a
// short-lived cookie so the resumed page load can find its record again.
package redirectstate

import "context"

// Record is the pending redirect state written before control leaves for
// the provider login. It is deleted once the resumed bootstrap consumes it;
// backends may additionally expire abandoned records.
type Record struct {
	LIFFID      string `json:"liffId"`
	ReturnURL   string `json:"returnUrl"`
	Fingerprint string `json:"fingerprint,omitempty"`
}

type Store interface {
	Put(ctx context.Context, stateID string, record Record) error
	// Get returns serviceerr.ErrStateNotFound when no record exists for the
	// ID, including after expiry or consumption.
	Get(ctx context.Context, stateID string) (Record, error)
	Delete(ctx context.Context, stateID string) error
}
