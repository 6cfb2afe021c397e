package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrCompress means the stream could not be archived; it was left untouched.
	ErrCompress = errors.New("compress stream")
	// ErrTruncate means the archive was written but the live stream kept its data.
	ErrTruncate = errors.New("truncate stream")
)

// Ports implemented by the memory, file and postgres adapters.

// CheckStore is the durable mapping from check id to check document.
// Read returns the raw record so malformed documents reach the validator.
type CheckStore interface {
	List(ctx context.Context) ([]string, error)
	Read(ctx context.Context, id string) (domain.Record, error)
	Update(ctx context.Context, c domain.Check) error
}

// LogSink holds one append-only stream per check id.
//
// Rotate compresses the live stream into archiveID and then truncates it,
// holding the stream's lock for both steps so no Append lands in between.
// When compression fails the stream is not truncated.
type LogSink interface {
	Append(ctx context.Context, streamID string, e domain.LogEntry) error
	List(ctx context.Context, archived bool) ([]string, error)
	Compress(ctx context.Context, streamID, archiveID string) error
	Truncate(ctx context.Context, streamID string) error
	Rotate(ctx context.Context, streamID, archiveID string) error
	ReadArchive(ctx context.Context, archiveID string) ([]byte, error)
}

// RotateStream runs the compress-then-truncate sequence shared by the sinks.
// Callers hold the stream lock.
func RotateStream(compress, truncate func() error) error {
	if err := compress(); err != nil {
		return fmt.Errorf("%w: %w", ErrCompress, err)
	}
	if err := truncate(); err != nil {
		return fmt.Errorf("%w: %w", ErrTruncate, err)
	}
	return nil
}
