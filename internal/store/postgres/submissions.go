package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/unfaced/unfaced/internal/store"
)

// updateRetries bounds the optimistic concurrency loop before surfacing
// store.ErrConflict to the caller.
const updateRetries = 3

// CreateSubmission persists a new submission with version 1.
func (s *Store) CreateSubmission(ctx context.Context, sub *store.Submission) error {
	query := `
		INSERT INTO submissions
			(id, file_location, uploader_name, matched_identities, approved_by,
			 status, degraded, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, 1, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		sub.ID,
		sub.FileLocation,
		sub.UploaderName,
		pq.Array(sub.MatchedIdentities),
		pq.Array(sub.ApprovedBy),
		string(sub.Status),
		sub.Degraded,
		sub.CreatedAt,
		sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

// GetSubmission returns one submission by ID.
func (s *Store) GetSubmission(ctx context.Context, id string) (*store.Submission, error) {
	query := selectSubmission + " WHERE id = $1"
	sub, err := scanSubmission(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

// ListSubmissions returns all submissions in intake order.
func (s *Store) ListSubmissions(ctx context.Context) ([]store.Submission, error) {
	rows, err := s.pool.Query(ctx, selectSubmission+" ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("query submissions: %w", err)
	}
	defer rows.Close()

	var subs []store.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("scan submission: %w", err)
		}
		subs = append(subs, *sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate submissions: %w", err)
	}
	return subs, nil
}

// UpdateSubmission applies fn under optimistic concurrency: read the current
// row, apply fn, then write back only if the version is unchanged. Contended
// writes retry with a fresh read; exhausted retries surface store.ErrConflict.
func (s *Store) UpdateSubmission(
	ctx context.Context, id string, fn func(*store.Submission) error,
) (*store.Submission, error) {
	for attempt := 0; attempt < updateRetries; attempt++ {
		current, err := s.GetSubmission(ctx, id)
		if err != nil {
			return nil, err
		}

		updated := current.Clone()
		if err := fn(updated); err != nil {
			return nil, err
		}
		updated.UpdatedAt = time.Now().UTC()

		query := `
			UPDATE submissions
			SET file_location = $2, matched_identities = $3, approved_by = $4,
			    status = $5, degraded = $6, updated_at = $7, version = version + 1
			WHERE id = $1 AND version = $8
		`
		result, err := s.pool.Exec(ctx, query,
			updated.ID,
			updated.FileLocation,
			pq.Array(updated.MatchedIdentities),
			pq.Array(updated.ApprovedBy),
			string(updated.Status),
			updated.Degraded,
			updated.UpdatedAt,
			current.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("update submission: %w", err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("getting rows affected: %w", err)
		}
		if affected == 1 {
			updated.Version = current.Version + 1
			return updated, nil
		}
		// Version moved under us; re-read and retry.
	}
	return nil, store.ErrConflict
}

// DeleteSubmission removes a submission record permanently. The guard fn runs
// against a fresh read and the delete is conditioned on that read's version,
// so a record mutated after the guard approved it is never removed; such
// contention re-reads and re-runs the guard, surfacing store.ErrConflict only
// after exhausted retries.
func (s *Store) DeleteSubmission(ctx context.Context, id string, fn func(*store.Submission) error) error {
	for attempt := 0; attempt < updateRetries; attempt++ {
		current, err := s.GetSubmission(ctx, id)
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(current.Clone()); err != nil {
				return err
			}
		}

		result, err := s.pool.Exec(ctx,
			"DELETE FROM submissions WHERE id = $1 AND version = $2",
			id, current.Version,
		)
		if err != nil {
			return fmt.Errorf("delete submission: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("getting rows affected: %w", err)
		}
		if affected == 1 {
			return nil
		}
		// Version moved under us; re-read and re-run the guard.
	}
	return store.ErrConflict
}

const selectSubmission = `
	SELECT id, file_location, uploader_name, matched_identities, approved_by,
	       status, degraded, version, created_at, updated_at
	FROM submissions`

func scanSubmission(row scannable) (*store.Submission, error) {
	var sub store.Submission
	var status string
	var matched, approved pq.StringArray

	if err := row.Scan(
		&sub.ID,
		&sub.FileLocation,
		&sub.UploaderName,
		&matched,
		&approved,
		&status,
		&sub.Degraded,
		&sub.Version,
		&sub.CreatedAt,
		&sub.UpdatedAt,
	); err != nil {
		return nil, err
	}

	sub.MatchedIdentities = []string(matched)
	sub.ApprovedBy = []string(approved)
	sub.Status = store.Status(status)
	return &sub, nil
}
