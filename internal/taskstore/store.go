// Package taskstore remembers which remote task was started for an event so
// a redelivered event resumes waiting instead of submitting the work again.
package taskstore

import (
	"context"
	"time"
)

const (
	DefaultTTL = 24 * time.Hour
	claimTTL   = time.Minute
)

type Entry struct {
	TaskID      string    `json:"task_id"`
	SubmittedAt time.Time `json:"submitted_at"`
	// Fingerprint identifies the payload the task was submitted with. A
	// delivery carrying a different payload must not resume the task.
	Fingerprint string `json:"fingerprint,omitempty"`
}

type Store interface {
	// Lookup returns the task recorded for key, if any.
	Lookup(ctx context.Context, key string) (*Entry, bool, error)

	// Claim takes a short lock on key before a task is submitted. It fails when
	// another delivery of the same event holds the lock or already recorded a
	// task.
	Claim(ctx context.Context, key string) (bool, error)

	// Save records the task and releases the claim.
	Save(ctx context.Context, key string, e Entry) error

	// Forget drops both the record and the claim.
	Forget(ctx context.Context, key string) error
}

// Key builds the store key of one operation on one document.
func Key(op, indexID, documentID string) string {
	return "ulroy:task:" + op + ":" + indexID + ":" + documentID
}
