// Package consent implements the review lifecycle of uploaded media: intake
// with face matching, unanimous approval, veto, uploader deletion and the
// startup reconcile pass that keeps blobs and records in agreement.
package consent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/unfaced/unfaced/internal/biometric"
	"github.com/unfaced/unfaced/internal/store"
)

var (
	// ErrInvalidInput is returned when required intake fields are missing.
	ErrInvalidInput = errors.New("uploader name, file name and media content are required")
	// ErrForbidden is returned when the acting identity may not perform the
	// operation on this submission.
	ErrForbidden = errors.New("operation not permitted for this identity")
	// ErrNotApprover is returned when the acting identity is not one of the
	// submission's required approvers.
	ErrNotApprover = errors.New("identity is not a required approver")
	// ErrNotPending is returned when a decision targets a submission that has
	// already reached a terminal state.
	ErrNotPending = errors.New("submission is no longer pending")
)

// errUnchanged aborts an update callback without treating it as a failure.
var errUnchanged = errors.New("no change")

// Matcher resolves a face embedding to the names of enrolled identities.
type Matcher interface {
	MatchFace(ctx context.Context, embedding []float32, threshold float64) ([]string, error)
}

// Service drives submissions through the consent state machine. All blob moves
// go through the zoned file area so the zone can always be recomputed from the
// record status.
type Service struct {
	records   store.SubmissionStore
	files     *store.FileArea
	face      biometric.FaceEmbedder
	matcher   Matcher
	threshold float64
}

// New creates a consent service.
func New(records store.SubmissionStore, files *store.FileArea, face biometric.FaceEmbedder, matcher Matcher, threshold float64) *Service {
	return &Service{
		records:   records,
		files:     files,
		face:      face,
		matcher:   matcher,
		threshold: threshold,
	}
}

// SubmitRequest carries one media upload.
type SubmitRequest struct {
	Media        []byte
	Filename     string
	UploaderName string
}

// Submit runs intake on uploaded media: the file is matched against the
// registry, stored in the zone for its initial status and recorded. Media with
// no matched identities is approved immediately. A face extraction failure
// does not block intake; the submission auto-approves with the degraded flag
// set. The blob is written before the record so a crash in between leaves an
// orphan blob, never a record without media; Reconcile sweeps orphans.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*store.Submission, error) {
	if req.UploaderName == "" || req.Filename == "" || len(req.Media) == 0 {
		return nil, ErrInvalidInput
	}

	modality := biometric.ClassifyModality(req.Filename, req.Media)
	if modality == biometric.ModalityUnsupported {
		return nil, fmt.Errorf("submitting %q: %w", req.Filename, biometric.ErrUnsupportedFormat)
	}

	var (
		matched  []string
		degraded bool
	)
	if modality == biometric.ModalityImage {
		embedding, err := s.face.ExtractFaceEmbedding(ctx, req.Media)
		if err != nil {
			// Fail open: an unreadable face must not block the upload, but
			// the record carries the degraded marker for review.
			log.Printf("degraded intake of %q from %s: %v", req.Filename, req.UploaderName, err)
			degraded = true
		} else {
			matched, err = s.matcher.MatchFace(ctx, embedding, s.threshold)
			if err != nil {
				return nil, fmt.Errorf("matching %q: %w", req.Filename, err)
			}
		}
	}

	status := store.StatusApproved
	if len(matched) > 0 {
		status = store.StatusPending
	}

	id := uuid.New().String()
	location, err := s.files.Save(status, id+"_"+filepath.Base(req.Filename), bytes.NewReader(req.Media))
	if err != nil {
		return nil, fmt.Errorf("storing media: %w", err)
	}

	now := time.Now().UTC()
	sub := &store.Submission{
		ID:                id,
		FileLocation:      location,
		UploaderName:      req.UploaderName,
		MatchedIdentities: matched,
		ApprovedBy:        []string{},
		Status:            status,
		Degraded:          degraded,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.records.CreateSubmission(ctx, sub); err != nil {
		if rmErr := s.files.Remove(location); rmErr != nil {
			log.Printf("rolling back media for failed submission %s: %v", id, rmErr)
		}
		return nil, fmt.Errorf("recording submission: %w", err)
	}
	return sub, nil
}

// Get returns a submission visible to the viewer (its uploader or any matched
// identity).
func (s *Service) Get(ctx context.Context, id, viewer string) (*store.Submission, error) {
	sub, err := s.records.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visibleTo(sub, viewer) {
		return nil, ErrForbidden
	}
	return sub, nil
}

// Approve records one approval. It is idempotent for an approver who already
// approved. When the approval completes unanimity the submission becomes
// approved and its blob moves to the approved zone.
func (s *Service) Approve(ctx context.Context, id, approver string) (*store.Submission, error) {
	var moveFrom string
	updated, err := s.records.UpdateSubmission(ctx, id, func(sub *store.Submission) error {
		if !sub.IsMatched(approver) {
			return ErrNotApprover
		}
		if sub.HasApproved(approver) && sub.Status != store.StatusRejected {
			return errUnchanged
		}
		if sub.Status != store.StatusPending {
			return ErrNotPending
		}
		sub.ApprovedBy = append(sub.ApprovedBy, approver)
		if sub.Unanimous() {
			moveFrom = sub.FileLocation
			sub.Status = store.StatusApproved
			sub.FileLocation = s.files.Rezone(sub.FileLocation, store.StatusApproved)
		}
		return nil
	})
	if errors.Is(err, errUnchanged) {
		return s.records.GetSubmission(ctx, id)
	}
	if err != nil {
		return nil, err
	}

	if moveFrom != "" {
		s.moveBlob(moveFrom, store.StatusApproved, updated.ID)
	}
	return updated, nil
}

// Reject vetoes a submission. Any matched identity can veto while the
// submission is pending, including one who previously approved. The blob moves
// to the rejected zone.
func (s *Service) Reject(ctx context.Context, id, approver string) (*store.Submission, error) {
	var moveFrom string
	updated, err := s.records.UpdateSubmission(ctx, id, func(sub *store.Submission) error {
		if !sub.IsMatched(approver) {
			return ErrNotApprover
		}
		if sub.Status != store.StatusPending {
			return ErrNotPending
		}
		moveFrom = sub.FileLocation
		sub.Status = store.StatusRejected
		sub.FileLocation = s.files.Rezone(sub.FileLocation, store.StatusRejected)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.moveBlob(moveFrom, store.StatusRejected, updated.ID)
	return updated, nil
}

// Delete removes a pending submission and its media. Only the uploader may
// delete, and only before a decision has been reached. The guard runs inside
// the store's serialized delete, so a veto committed concurrently wins: the
// delete then fails with ErrNotPending instead of destroying the decision.
func (s *Service) Delete(ctx context.Context, id, requester string) error {
	var location string
	err := s.records.DeleteSubmission(ctx, id, func(sub *store.Submission) error {
		if sub.UploaderName != requester {
			return ErrForbidden
		}
		if sub.Status != store.StatusPending {
			return ErrNotPending
		}
		location = sub.FileLocation
		return nil
	})
	if err != nil {
		return err
	}

	if err := s.files.Remove(location); err != nil {
		log.Printf("removing media for deleted submission %s: %v", id, err)
	}
	return nil
}

// ListPendingFor returns pending submissions awaiting a decision from name,
// in intake order.
func (s *Service) ListPendingFor(ctx context.Context, name string) ([]store.Submission, error) {
	return s.list(ctx, func(sub *store.Submission) bool {
		return sub.Status == store.StatusPending && sub.IsMatched(name)
	})
}

// ListApproved returns approved submissions the viewer uploaded or appears in,
// in intake order.
func (s *Service) ListApproved(ctx context.Context, viewer string) ([]store.Submission, error) {
	return s.list(ctx, func(sub *store.Submission) bool {
		return sub.Status == store.StatusApproved && s.visibleTo(sub, viewer)
	})
}

// OpenMedia opens the stored blob of a submission for the viewer. Visibility
// follows Get: uploader or matched identity.
func (s *Service) OpenMedia(ctx context.Context, id, viewer string) (*store.Submission, *os.File, error) {
	sub, err := s.Get(ctx, id, viewer)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.files.Open(sub.FileLocation)
	if err != nil {
		return nil, nil, err
	}
	return sub, f, nil
}

// Reconcile repairs the file area against the record store. A crash between a
// record write and the matching blob move leaves a blob in a stale zone; the
// pass moves it to the zone its record demands. Blobs with no record at all
// are leftovers of interrupted intakes and are removed.
func (s *Service) Reconcile(ctx context.Context) error {
	subs, err := s.records.ListSubmissions(ctx)
	if err != nil {
		return fmt.Errorf("listing submissions for reconcile: %w", err)
	}

	referenced := make(map[string]bool, len(subs))
	for i := range subs {
		sub := &subs[i]
		location := s.recoverBlob(sub)
		referenced[location] = true
	}

	for _, zone := range []store.Status{store.StatusPending, store.StatusApproved, store.StatusRejected} {
		locations, err := s.files.List(zone)
		if err != nil {
			return fmt.Errorf("listing %s zone: %w", zone, err)
		}
		for _, location := range locations {
			if referenced[location] {
				continue
			}
			log.Printf("reconcile: removing orphan blob %s", location)
			if err := s.files.Remove(location); err != nil {
				log.Printf("reconcile: removing %s: %v", location, err)
			}
		}
	}
	return nil
}

// recoverBlob makes sure the submission's blob sits in the zone matching its
// status and returns the location the blob ended up at.
func (s *Service) recoverBlob(sub *store.Submission) string {
	want := s.files.Rezone(sub.FileLocation, sub.Status)
	if s.files.Exists(want) {
		return want
	}

	// The blob is not where the record says; look for it in the other zones.
	for _, zone := range []store.Status{store.StatusPending, store.StatusApproved, store.StatusRejected} {
		candidate := s.files.Rezone(sub.FileLocation, zone)
		if candidate == want || !s.files.Exists(candidate) {
			continue
		}
		log.Printf("reconcile: moving %s to %s zone for submission %s", candidate, sub.Status, sub.ID)
		if _, err := s.files.Move(candidate, sub.Status); err != nil {
			log.Printf("reconcile: moving %s: %v", candidate, err)
			return candidate
		}
		return want
	}

	log.Printf("reconcile: no blob found for submission %s (expected %s)", sub.ID, want)
	return want
}

func (s *Service) list(ctx context.Context, keep func(*store.Submission) bool) ([]store.Submission, error) {
	subs, err := s.records.ListSubmissions(ctx)
	if err != nil {
		return nil, err
	}
	filtered := make([]store.Submission, 0, len(subs))
	for i := range subs {
		if keep(&subs[i]) {
			filtered = append(filtered, subs[i])
		}
	}
	return filtered, nil
}

func (s *Service) visibleTo(sub *store.Submission, viewer string) bool {
	return sub.UploaderName == viewer || sub.IsMatched(viewer)
}

// moveBlob relocates a blob after its record has been persisted. A failed move
// is logged, not fatal: the record is authoritative and the next Reconcile
// pass repairs the zone.
func (s *Service) moveBlob(from string, to store.Status, id string) {
	if _, err := s.files.Move(from, to); err != nil {
		log.Printf("moving media for submission %s to %s zone: %v", id, to, err)
	}
}
