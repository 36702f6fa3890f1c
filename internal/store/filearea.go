package store

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileArea manages the zoned media directories. A location is a zone-relative
// path like "pending/<id>_<name>" so the zone is always recoverable from the
// location itself.
type FileArea struct {
	root string
}

var zones = []Status{StatusPending, StatusApproved, StatusRejected}

// NewFileArea creates the pending/approved/rejected zones under root.
func NewFileArea(root string) (*FileArea, error) {
	for _, z := range zones {
		if err := os.MkdirAll(filepath.Join(root, string(z)), 0o750); err != nil {
			return nil, fmt.Errorf("creating %s zone: %w", z, err)
		}
	}
	return &FileArea{root: root}, nil
}

// Root returns the file area root directory.
func (a *FileArea) Root() string {
	return a.root
}

// Path resolves a location to an absolute path under the area root.
func (a *FileArea) Path(location string) string {
	return filepath.Join(a.root, filepath.FromSlash(location))
}

// Zone extracts the zone a location points into.
func (a *FileArea) Zone(location string) Status {
	zone, _, _ := strings.Cut(location, "/")
	return Status(zone)
}

// Save writes media into the given zone and returns its location. The data is
// written to a temp file first and renamed into place so a partially written
// blob is never visible under its final name.
func (a *FileArea) Save(zone Status, name string, r io.Reader) (string, error) {
	location := string(zone) + "/" + name
	dst := a.Path(location)

	tmp, err := os.CreateTemp(a.root, ".upload-*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", fmt.Errorf("writing media: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, dst); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("placing media in %s zone: %w", zone, err)
	}
	return location, nil
}

// Rezone rewrites a location into another zone, keeping the blob name. It only
// computes the path; Move actually relocates the blob.
func (a *FileArea) Rezone(location string, to Status) string {
	_, name, ok := strings.Cut(location, "/")
	if !ok {
		name = location
	}
	return string(to) + "/" + name
}

// Move relocates a blob to another zone and returns the new location.
func (a *FileArea) Move(location string, to Status) (string, error) {
	newLocation := a.Rezone(location, to)
	if newLocation == location {
		return location, nil
	}
	if err := os.Rename(a.Path(location), a.Path(newLocation)); err != nil {
		return "", fmt.Errorf("moving media to %s zone: %w", to, err)
	}
	return newLocation, nil
}

// Remove deletes a blob permanently.
func (a *FileArea) Remove(location string) error {
	if err := os.Remove(a.Path(location)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing media: %w", err)
	}
	return nil
}

// Open opens a blob for reading.
func (a *FileArea) Open(location string) (*os.File, error) {
	f, err := os.Open(a.Path(location))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("opening media: %w", err)
	}
	return f, nil
}

// List returns the locations of all blobs in a zone, sorted by name.
func (a *FileArea) List(zone Status) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(a.root, string(zone)))
	if err != nil {
		return nil, fmt.Errorf("listing %s zone: %w", zone, err)
	}
	locations := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		locations = append(locations, string(zone)+"/"+e.Name())
	}
	return locations, nil
}

// Exists reports whether a blob is present at the location.
func (a *FileArea) Exists(location string) bool {
	_, err := os.Stat(a.Path(location))
	return err == nil
}
