package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFileAreaCreatesZones(t *testing.T) {
	root := t.TempDir()
	if _, err := NewFileArea(root); err != nil {
		t.Fatalf("NewFileArea failed: %v", err)
	}

	for _, zone := range []string{"pending", "approved", "rejected"} {
		info, err := os.Stat(filepath.Join(root, zone))
		if err != nil || !info.IsDir() {
			t.Errorf("expected %s zone directory, got err=%v", zone, err)
		}
	}
}

func TestFileAreaSaveAndZone(t *testing.T) {
	area, err := NewFileArea(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileArea failed: %v", err)
	}

	location, err := area.Save(StatusPending, "abc_photo.jpg", strings.NewReader("media bytes"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if location != "pending/abc_photo.jpg" {
		t.Errorf("unexpected location: %s", location)
	}
	if area.Zone(location) != StatusPending {
		t.Errorf("expected pending zone, got %s", area.Zone(location))
	}
	if !area.Exists(location) {
		t.Error("saved blob should exist")
	}

	data, err := os.ReadFile(area.Path(location))
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	if string(data) != "media bytes" {
		t.Errorf("unexpected blob content: %s", data)
	}
}

func TestFileAreaMove(t *testing.T) {
	area, err := NewFileArea(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileArea failed: %v", err)
	}

	location, err := area.Save(StatusPending, "clip.mp4", strings.NewReader("x"))
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	moved, err := area.Move(location, StatusApproved)
	if err != nil {
		t.Fatalf("Move failed: %v", err)
	}

	if moved != "approved/clip.mp4" {
		t.Errorf("unexpected moved location: %s", moved)
	}
	if area.Exists(location) {
		t.Error("blob should no longer exist in pending zone")
	}
	if !area.Exists(moved) {
		t.Error("blob should exist in approved zone")
	}
}

func TestFileAreaMoveSameZone(t *testing.T) {
	area, _ := NewFileArea(t.TempDir())
	location, _ := area.Save(StatusPending, "a.jpg", strings.NewReader("x"))

	moved, err := area.Move(location, StatusPending)
	if err != nil {
		t.Fatalf("Move to same zone failed: %v", err)
	}
	if moved != location {
		t.Errorf("expected unchanged location, got %s", moved)
	}
}

func TestFileAreaRemove(t *testing.T) {
	area, _ := NewFileArea(t.TempDir())
	location, _ := area.Save(StatusPending, "a.jpg", strings.NewReader("x"))

	if err := area.Remove(location); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if area.Exists(location) {
		t.Error("blob should be gone after Remove")
	}
	// Removing twice is not an error.
	if err := area.Remove(location); err != nil {
		t.Errorf("second Remove should be a no-op, got %v", err)
	}
}

func TestFileAreaOpenNotFound(t *testing.T) {
	area, _ := NewFileArea(t.TempDir())
	if _, err := area.Open("pending/missing.jpg"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSubmissionHelpers(t *testing.T) {
	sub := &Submission{
		MatchedIdentities: []string{"alice", "bob"},
		ApprovedBy:        []string{"alice"},
	}

	if !sub.IsMatched("alice") || !sub.IsMatched("bob") {
		t.Error("matched identities should be reported")
	}
	if sub.IsMatched("carol") {
		t.Error("carol is not matched")
	}
	if !sub.HasApproved("alice") || sub.HasApproved("bob") {
		t.Error("only alice has approved")
	}
	if sub.Unanimous() {
		t.Error("not unanimous yet")
	}

	sub.ApprovedBy = append(sub.ApprovedBy, "bob")
	if !sub.Unanimous() {
		t.Error("should be unanimous now")
	}

	empty := &Submission{}
	if empty.Unanimous() {
		t.Error("no matched identities can never be unanimous")
	}
}
