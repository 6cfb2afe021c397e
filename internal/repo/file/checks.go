// Package file stores checks as one JSON document per file and keeps each
// check's log stream in a plain newline-delimited file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

const checkExt = ".json"

// ErrInvalidID is returned for ids that cannot be used as a file name
// inside the store directory.
var ErrInvalidID = errors.New("invalid id")

func checkName(id string) error {
	if id == "" || id == "." || strings.Contains(id, "..") || strings.ContainsAny(id, `/\`) || filepath.Base(id) != id {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

type CheckStore struct {
	dir string
}

// NewCheckStore uses <dataDir>/checks, creating it if needed.
func NewCheckStore(dataDir string) (*CheckStore, error) {
	dir := filepath.Join(dataDir, "checks")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create checks dir: %w", err)
	}
	return &CheckStore{dir: dir}, nil
}

func (s *CheckStore) path(id string) string { return filepath.Join(s.dir, id+checkExt) }

func (s *CheckStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != checkExt {
			continue
		}
		ids = append(ids, strings.TrimSuffix(e.Name(), checkExt))
	}
	slices.Sort(ids)
	return ids, nil
}

// Read returns the document stored under id. A document whose own id
// differs from its file name is rejected.
func (s *CheckStore) Read(ctx context.Context, id string) (domain.Record, error) {
	if err := checkName(id); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("check %s: %w", id, repo.ErrNotFound)
		}
		return nil, fmt.Errorf("read check %s: %w", id, err)
	}
	var rec domain.Record
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil, fmt.Errorf("decode check %s: %w", id, err)
	}
	if got, ok := rec["id"].(string); ok && got != id {
		return nil, fmt.Errorf("check %s: document id %q does not match its file: %w", id, got, ErrInvalidID)
	}
	return rec, nil
}

// Create writes a new check document; it fails if the id is taken. The
// worker never creates checks: this seeds the store for the CRUD layer,
// local runs and tests.
func (s *CheckStore) Create(ctx context.Context, id string, rec domain.Record) error {
	if err := checkName(id); err != nil {
		return err
	}
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode check %s: %w", id, err)
	}
	f, err := os.OpenFile(s.path(id), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create check %s: %w", id, err)
	}
	if _, err := f.Write(b); err != nil {
		f.Close()
		return fmt.Errorf("write check %s: %w", id, err)
	}
	return f.Close()
}

// Update replaces an existing document via write-then-rename.
func (s *CheckStore) Update(ctx context.Context, c domain.Check) error {
	if err := checkName(c.ID); err != nil {
		return err
	}
	p := s.path(c.ID)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("check %s: %w", c.ID, repo.ErrNotFound)
		}
		return fmt.Errorf("stat check %s: %w", c.ID, err)
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode check %s: %w", c.ID, err)
	}
	tmp, err := os.CreateTemp(s.dir, c.ID+".*.tmp")
	if err != nil {
		return fmt.Errorf("update check %s: %w", c.ID, err)
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("write check %s: %w", c.ID, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("close check %s: %w", c.ID, err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replace check %s: %w", c.ID, err)
	}
	return nil
}
