// Package jsonfile is the default storage backend: two JSON array files that
// stay human-inspectable and diffable. Every write replaces a whole collection
// atomically (temp file + rename) and is serialized by a per-collection mutex,
// so concurrent read-modify-write calls cannot drop each other's updates.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio"

	"github.com/unfaced/unfaced/internal/biometric"
	"github.com/unfaced/unfaced/internal/store"
)

const (
	usersFile       = "users.json"
	submissionsFile = "submissions.json"
)

// Store persists both collections as JSON files under dataDir.
type Store struct {
	usersPath string
	subsPath  string

	idMu  sync.Mutex // serializes identity collection writes
	subMu sync.Mutex // serializes submission collection writes
}

// Open prepares the JSON collections under dataDir, creating empty ones on
// first run.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	s := &Store{
		usersPath: filepath.Join(dataDir, usersFile),
		subsPath:  filepath.Join(dataDir, submissionsFile),
	}

	for _, path := range []string{s.usersPath, s.subsPath} {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := renameio.WriteFile(path, []byte("[]\n"), 0o640); err != nil {
				return nil, fmt.Errorf("initializing %s: %w", filepath.Base(path), err)
			}
		} else if err != nil {
			return nil, fmt.Errorf("checking %s: %w", filepath.Base(path), err)
		}
	}

	return s, nil
}

// readCollection decodes a whole JSON collection file.
func readCollection[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	var records []T
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return records, nil
}

// writeCollection replaces a whole JSON collection file atomically.
func writeCollection[T any](path string, records []T) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}
	if err := renameio.WriteFile(path, append(data, '\n'), 0o640); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// CreateIdentity appends a new identity, rejecting duplicate credentials and
// duplicate normalized display names.
func (s *Store) CreateIdentity(ctx context.Context, identity *store.Identity) error {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	identities, err := readCollection[store.Identity](s.usersPath)
	if err != nil {
		return err
	}

	nameKey := biometric.NormalizeName(identity.Name)
	for i := range identities {
		if identities[i].Name == identity.Name && identities[i].Phone == identity.Phone {
			return store.ErrDuplicateIdentity
		}
		if biometric.NormalizeName(identities[i].Name) == nameKey {
			return store.ErrDuplicateIdentity
		}
	}

	identities = append(identities, *identity.Clone())
	return writeCollection(s.usersPath, identities)
}

// FindIdentity looks up an identity by exact (name, phone) credentials.
func (s *Store) FindIdentity(ctx context.Context, name, phone string) (*store.Identity, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	identities, err := readCollection[store.Identity](s.usersPath)
	if err != nil {
		return nil, err
	}
	for i := range identities {
		if identities[i].Name == name && identities[i].Phone == phone {
			return identities[i].Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// ListIdentities returns all identities in enrollment order.
func (s *Store) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	s.idMu.Lock()
	defer s.idMu.Unlock()

	identities, err := readCollection[store.Identity](s.usersPath)
	if err != nil {
		return nil, err
	}
	out := make([]store.Identity, 0, len(identities))
	for i := range identities {
		out = append(out, *identities[i].Clone())
	}
	return out, nil
}

// CreateSubmission appends a new submission record.
func (s *Store) CreateSubmission(ctx context.Context, sub *store.Submission) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, err := readCollection[store.Submission](s.subsPath)
	if err != nil {
		return err
	}
	subs = append(subs, *sub.Clone())
	return writeCollection(s.subsPath, subs)
}

// GetSubmission returns one submission by ID.
func (s *Store) GetSubmission(ctx context.Context, id string) (*store.Submission, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, err := readCollection[store.Submission](s.subsPath)
	if err != nil {
		return nil, err
	}
	for i := range subs {
		if subs[i].ID == id {
			return subs[i].Clone(), nil
		}
	}
	return nil, store.ErrNotFound
}

// ListSubmissions returns all submissions in intake order.
func (s *Store) ListSubmissions(ctx context.Context) ([]store.Submission, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, err := readCollection[store.Submission](s.subsPath)
	if err != nil {
		return nil, err
	}
	out := make([]store.Submission, 0, len(subs))
	for i := range subs {
		out = append(out, *subs[i].Clone())
	}
	return out, nil
}

// UpdateSubmission applies fn to the current record under the collection lock
// and persists the whole collection atomically. fn errors abort the write.
func (s *Store) UpdateSubmission(
	ctx context.Context, id string, fn func(*store.Submission) error,
) (*store.Submission, error) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, err := readCollection[store.Submission](s.subsPath)
	if err != nil {
		return nil, err
	}

	for i := range subs {
		if subs[i].ID != id {
			continue
		}
		updated := subs[i].Clone()
		if err := fn(updated); err != nil {
			return nil, err
		}
		updated.UpdatedAt = time.Now().UTC()
		subs[i] = *updated
		if err := writeCollection(s.subsPath, subs); err != nil {
			return nil, err
		}
		return updated.Clone(), nil
	}
	return nil, store.ErrNotFound
}

// DeleteSubmission removes a submission record permanently. The guard fn sees
// the record under the collection lock, so the state it approves is exactly
// the state removed.
func (s *Store) DeleteSubmission(ctx context.Context, id string, fn func(*store.Submission) error) error {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	subs, err := readCollection[store.Submission](s.subsPath)
	if err != nil {
		return err
	}
	for i := range subs {
		if subs[i].ID != id {
			continue
		}
		if fn != nil {
			if err := fn(subs[i].Clone()); err != nil {
				return err
			}
		}
		subs = append(subs[:i], subs[i+1:]...)
		return writeCollection(s.subsPath, subs)
	}
	return store.ErrNotFound
}
