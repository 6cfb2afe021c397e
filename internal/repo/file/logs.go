package file

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/klauspost/compress/gzip"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

const (
	liveExt    = ".log"
	archiveExt = ".gz.b64"
)

// LogSink writes <dir>/<stream>.log and archives to <dir>/<archive>.gz.b64
// (gzip, then base64).
type LogSink struct {
	dir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLogSink(dir string) (*LogSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	return &LogSink{dir: dir, locks: make(map[string]*sync.Mutex)}, nil
}

func (s *LogSink) livePath(id string) string    { return filepath.Join(s.dir, id+liveExt) }
func (s *LogSink) archivePath(id string) string { return filepath.Join(s.dir, id+archiveExt) }

func (s *LogSink) streamLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

func (s *LogSink) Append(ctx context.Context, streamID string, e domain.LogEntry) error {
	if err := checkName(streamID); err != nil {
		return err
	}
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	l := s.streamLock(streamID)
	l.Lock()
	defer l.Unlock()

	f, err := os.OpenFile(s.livePath(streamID), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open stream %s: %w", streamID, err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		f.Close()
		return fmt.Errorf("append stream %s: %w", streamID, err)
	}
	return f.Close()
}

func (s *LogSink) List(ctx context.Context, archived bool) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("list logs: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		switch {
		case strings.HasSuffix(name, liveExt):
			ids = append(ids, strings.TrimSuffix(name, liveExt))
		case archived && strings.HasSuffix(name, archiveExt):
			ids = append(ids, strings.TrimSuffix(name, archiveExt))
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *LogSink) Compress(ctx context.Context, streamID, archiveID string) error {
	if err := checkName(streamID); err != nil {
		return err
	}
	if err := checkName(archiveID); err != nil {
		return err
	}
	l := s.streamLock(streamID)
	l.Lock()
	defer l.Unlock()
	return s.compress(streamID, archiveID)
}

func (s *LogSink) Truncate(ctx context.Context, streamID string) error {
	if err := checkName(streamID); err != nil {
		return err
	}
	l := s.streamLock(streamID)
	l.Lock()
	defer l.Unlock()
	return s.truncate(streamID)
}

func (s *LogSink) Rotate(ctx context.Context, streamID, archiveID string) error {
	if err := checkName(streamID); err != nil {
		return err
	}
	if err := checkName(archiveID); err != nil {
		return err
	}
	l := s.streamLock(streamID)
	l.Lock()
	defer l.Unlock()
	return repo.RotateStream(
		func() error { return s.compress(streamID, archiveID) },
		func() error { return s.truncate(streamID) },
	)
}

func (s *LogSink) ReadArchive(ctx context.Context, archiveID string) ([]byte, error) {
	if err := checkName(archiveID); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.archivePath(archiveID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("archive %s: %w", archiveID, repo.ErrNotFound)
		}
		return nil, fmt.Errorf("read archive %s: %w", archiveID, err)
	}
	raw, err := base64.StdEncoding.DecodeString(string(b))
	if err != nil {
		return nil, fmt.Errorf("decode archive %s: %w", archiveID, err)
	}
	zr, err := gzip.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", archiveID, err)
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("inflate archive %s: %w", archiveID, err)
	}
	return out, nil
}

func (s *LogSink) compress(streamID, archiveID string) error {
	src, err := os.ReadFile(s.livePath(streamID))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stream %s: %w", streamID, repo.ErrNotFound)
		}
		return fmt.Errorf("read stream %s: %w", streamID, err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(src); err != nil {
		return fmt.Errorf("gzip stream %s: %w", streamID, err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("gzip stream %s: %w", streamID, err)
	}

	f, err := os.OpenFile(s.archivePath(archiveID), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create archive %s: %w", archiveID, err)
	}
	if _, err := f.WriteString(base64.StdEncoding.EncodeToString(buf.Bytes())); err != nil {
		f.Close()
		_ = os.Remove(s.archivePath(archiveID))
		return fmt.Errorf("write archive %s: %w", archiveID, err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(s.archivePath(archiveID))
		return fmt.Errorf("close archive %s: %w", archiveID, err)
	}
	return nil
}

func (s *LogSink) truncate(streamID string) error {
	if err := os.Truncate(s.livePath(streamID), 0); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("stream %s: %w", streamID, repo.ErrNotFound)
		}
		return fmt.Errorf("truncate stream %s: %w", streamID, err)
	}
	return nil
}
