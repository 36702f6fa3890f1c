// Package store defines the durable record types and the contracts both
// storage backends (jsonfile, postgres) implement.
package store

import (
	"context"
	"errors"
	"slices"
	"time"
)

// Status is the consent state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	return s == StatusPending || s == StatusApproved || s == StatusRejected
}

// Identity is an enrolled person with a face (and optionally voice) signature.
// Identities are immutable after creation.
type Identity struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Phone          string    `json:"phone"`
	FaceEmbedding  []float32 `json:"face_embedding"`
	VoiceEmbedding []float32 `json:"voice_embedding,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Submission is one uploaded media item moving through consent review.
type Submission struct {
	ID                string    `json:"id"`
	FileLocation      string    `json:"file_location"`
	UploaderName      string    `json:"uploader_name"`
	MatchedIdentities []string  `json:"matched_identities"`
	ApprovedBy        []string  `json:"approved_by"`
	Status            Status    `json:"status"`
	Degraded          bool      `json:"degraded,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`

	// Version is the optimistic concurrency token used by the postgres
	// backend. Not part of the external record contract.
	Version int `json:"-"`
}

// IsMatched reports whether name is one of the required approvers.
func (s *Submission) IsMatched(name string) bool {
	return slices.Contains(s.MatchedIdentities, name)
}

// HasApproved reports whether name has already approved.
func (s *Submission) HasApproved(name string) bool {
	return slices.Contains(s.ApprovedBy, name)
}

// Unanimous reports whether every matched identity has approved.
func (s *Submission) Unanimous() bool {
	for _, name := range s.MatchedIdentities {
		if !s.HasApproved(name) {
			return false
		}
	}
	return len(s.MatchedIdentities) > 0
}

// Clone returns a deep copy so callers can mutate without aliasing the store.
func (s *Submission) Clone() *Submission {
	c := *s
	c.MatchedIdentities = slices.Clone(s.MatchedIdentities)
	c.ApprovedBy = slices.Clone(s.ApprovedBy)
	return &c
}

// Clone returns a deep copy of the identity.
func (i *Identity) Clone() *Identity {
	c := *i
	c.FaceEmbedding = slices.Clone(i.FaceEmbedding)
	c.VoiceEmbedding = slices.Clone(i.VoiceEmbedding)
	return &c
}

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateIdentity is returned when enrollment collides with an
	// existing (name, phone) pair or an existing normalized display name.
	ErrDuplicateIdentity = errors.New("identity already exists")
	// ErrConflict is returned after bounded retries of a contended write.
	// Callers should treat it as transient and retry the whole operation.
	ErrConflict = errors.New("write conflict")
)

// IdentityStore is the durable identity collection.
type IdentityStore interface {
	// CreateIdentity persists a new identity. Fails with ErrDuplicateIdentity
	// if the (name, phone) pair or the normalized name is already taken.
	CreateIdentity(ctx context.Context, identity *Identity) error
	// FindIdentity looks up an identity by exact (name, phone) credentials.
	FindIdentity(ctx context.Context, name, phone string) (*Identity, error)
	// ListIdentities returns all identities in enrollment order.
	ListIdentities(ctx context.Context) ([]Identity, error)
}

// SubmissionStore is the durable submission collection. Implementations must
// serialize UpdateSubmission per record so concurrent read-modify-write calls
// never lose updates.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	// ListSubmissions returns all submissions in intake order.
	ListSubmissions(ctx context.Context) ([]Submission, error)
	// UpdateSubmission applies fn to the current record and persists the
	// result atomically. If fn returns an error nothing is written and the
	// error is returned unchanged.
	UpdateSubmission(ctx context.Context, id string, fn func(*Submission) error) (*Submission, error)
	// DeleteSubmission removes a record after fn approves the current state.
	// The guard runs against the same record state the delete applies to, so
	// a concurrent update cannot slip between check and removal. A nil fn
	// deletes unconditionally.
	DeleteSubmission(ctx context.Context, id string, fn func(*Submission) error) error
}

// Store combines both collections.
type Store interface {
	IdentityStore
	SubmissionStore
}
