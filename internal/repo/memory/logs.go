package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

// LogSink keeps streams as newline-delimited JSON buffers.
type LogSink struct {
	// CompressHook, when set, runs before a stream is archived; a non-nil
	// error aborts the compression.
	CompressHook func(streamID string) error

	mu       sync.Mutex
	live     map[string]*bytes.Buffer
	archives map[string][]byte
	locks    map[string]*sync.Mutex
}

func NewLogSink() *LogSink {
	return &LogSink{
		live:     make(map[string]*bytes.Buffer),
		archives: make(map[string][]byte),
		locks:    make(map[string]*sync.Mutex),
	}
}

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
	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	l := s.streamLock(streamID)
	l.Lock()
	defer l.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.live[streamID]
	if !ok {
		b = &bytes.Buffer{}
		s.live[streamID] = b
	}
	b.Write(line)
	b.WriteByte('\n')
	return nil
}

func (s *LogSink) List(ctx context.Context, archived bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := slices.Collect(maps.Keys(s.live))
	if archived {
		ids = append(ids, slices.Collect(maps.Keys(s.archives))...)
	}
	slices.Sort(ids)
	return ids, nil
}

func (s *LogSink) Compress(ctx context.Context, streamID, archiveID string) error {
	l := s.streamLock(streamID)
	l.Lock()
	defer l.Unlock()
	return s.compress(streamID, archiveID)
}

func (s *LogSink) Truncate(ctx context.Context, streamID string) error {
	l := s.streamLock(streamID)
	l.Lock()
	defer l.Unlock()
	return s.truncate(streamID)
}

func (s *LogSink) Rotate(ctx context.Context, streamID, archiveID string) error {
	l := s.streamLock(streamID)
	l.Lock()
	defer l.Unlock()
	return repo.RotateStream(
		func() error { return s.compress(streamID, archiveID) },
		func() error { return s.truncate(streamID) },
	)
}

func (s *LogSink) ReadArchive(ctx context.Context, archiveID string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.archives[archiveID]
	if !ok {
		return nil, fmt.Errorf("archive %s: %w", archiveID, repo.ErrNotFound)
	}
	return slices.Clone(b), nil
}

// Entries returns the live stream contents, one JSON document per line.
func (s *LogSink) Entries(streamID string) []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.live[streamID]; ok {
		return slices.Clone(b.Bytes())
	}
	return nil
}

func (s *LogSink) compress(streamID, archiveID string) error {
	if s.CompressHook != nil {
		if err := s.CompressHook(streamID); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.live[streamID]
	if !ok {
		return fmt.Errorf("stream %s: %w", streamID, repo.ErrNotFound)
	}
	if _, exists := s.archives[archiveID]; exists {
		return fmt.Errorf("archive %s already exists", archiveID)
	}
	s.archives[archiveID] = slices.Clone(b.Bytes())
	return nil
}

func (s *LogSink) truncate(streamID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.live[streamID]
	if !ok {
		return fmt.Errorf("stream %s: %w", streamID, repo.ErrNotFound)
	}
	b.Reset()
	return nil
}
