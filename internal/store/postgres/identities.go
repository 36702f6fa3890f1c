package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/unfaced/unfaced/internal/biometric"
	"github.com/unfaced/unfaced/internal/store"
)

// uniqueViolation is the PostgreSQL error code for unique constraint breaches.
const uniqueViolation = "23505"

// CreateIdentity persists a new identity. The unique indexes on (name, phone)
// and name_key enforce the duplicate rules without a read-check race.
func (s *Store) CreateIdentity(ctx context.Context, identity *store.Identity) error {
	query := `
		INSERT INTO identities (id, name, name_key, phone, face_embedding, voice_embedding, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var voice any
	if len(identity.VoiceEmbedding) > 0 {
		voice = pgvector.NewVector(identity.VoiceEmbedding)
	}

	_, err := s.pool.Exec(ctx, query,
		identity.ID,
		identity.Name,
		biometric.NormalizeName(identity.Name),
		identity.Phone,
		pgvector.NewVector(identity.FaceEmbedding),
		voice,
		identity.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return store.ErrDuplicateIdentity
		}
		return fmt.Errorf("insert identity: %w", err)
	}
	return nil
}

// FindIdentity looks up an identity by exact (name, phone) credentials.
func (s *Store) FindIdentity(ctx context.Context, name, phone string) (*store.Identity, error) {
	query := `
		SELECT id, name, phone, face_embedding, voice_embedding::text, created_at
		FROM identities
		WHERE name = $1 AND phone = $2
	`
	identity, err := scanIdentity(s.pool.QueryRow(ctx, query, name, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	return identity, nil
}

// ListIdentities returns all identities in enrollment order.
func (s *Store) ListIdentities(ctx context.Context) ([]store.Identity, error) {
	query := `
		SELECT id, name, phone, face_embedding, voice_embedding::text, created_at
		FROM identities
		ORDER BY seq
	`
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query identities: %w", err)
	}
	defer rows.Close()

	var identities []store.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		identities = append(identities, *identity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate identities: %w", err)
	}
	return identities, nil
}

// scannable covers both sql.Row and sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

func scanIdentity(row scannable) (*store.Identity, error) {
	var identity store.Identity
	var face pgvector.Vector
	var voiceText sql.NullString

	if err := row.Scan(
		&identity.ID,
		&identity.Name,
		&identity.Phone,
		&face,
		&voiceText,
		&identity.CreatedAt,
	); err != nil {
		return nil, err
	}

	identity.FaceEmbedding = face.Slice()
	if voiceText.Valid {
		var voice pgvector.Vector
		if err := voice.Scan(voiceText.String); err != nil {
			return nil, fmt.Errorf("parse voice embedding: %w", err)
		}
		identity.VoiceEmbedding = voice.Slice()
	}
	return &identity, nil
}
