package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

var _ repo.CheckStore = (*Store)(nil)

const SchemaSQL = `
CREATE TABLE IF NOT EXISTS checks (
  id              TEXT PRIMARY KEY,
  user_phone      TEXT NOT NULL,
  protocol        TEXT NOT NULL,
  url             TEXT NOT NULL,
  method          TEXT NOT NULL,
  success_codes   INTEGER[] NOT NULL,
  timeout_seconds INTEGER NOT NULL,
  state           TEXT NULL,
  last_checked    BIGINT NULL
);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, SchemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Create inserts a check row. The worker itself never creates checks;
// this seeds the table for the CRUD layer, local runs and tests.
func (s *Store) Create(ctx context.Context, c domain.Check) error {
	var lastChecked *int64
	if c.Checked() {
		lastChecked = &c.LastChecked
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO checks
		   (id, user_phone, protocol, url, method, success_codes, timeout_seconds, state, last_checked)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.UserPhone, string(c.Protocol), c.URL, string(c.Method),
		c.SuccessCodes, c.TimeoutSeconds, string(c.State), lastChecked,
	)
	if err != nil {
		return fmt.Errorf("insert check: %w", err)
	}
	return nil
}

func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT id FROM checks ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan check id: %w", err)
	}
	return ids, nil
}

// Read converts the row into a raw record; NULL columns are left out so the
// validator sees them as absent.
func (s *Store) Read(ctx context.Context, id string) (domain.Record, error) {
	var (
		checkID, userPhone, protocol, url, method *string
		codes                                     []int32
		timeout                                   *int32
		state                                     *string
		lastChecked                               *int64
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, user_phone, protocol, url, method, success_codes, timeout_seconds, state, last_checked
		   FROM checks
		  WHERE id = $1`, id,
	).Scan(&checkID, &userPhone, &protocol, &url, &method, &codes, &timeout, &state, &lastChecked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("check %s: %w", id, repo.ErrNotFound)
		}
		return nil, fmt.Errorf("read check %s: %w", id, err)
	}

	rec := domain.Record{}
	put := func(key string, v any, ok bool) {
		if ok {
			rec[key] = v
		}
	}
	put("id", deref(checkID), checkID != nil)
	put("userPhone", deref(userPhone), userPhone != nil)
	put("protocol", deref(protocol), protocol != nil)
	put("url", deref(url), url != nil)
	put("method", deref(method), method != nil)
	put("successCodes", codes, codes != nil)
	put("timeoutSeconds", deref(timeout), timeout != nil)
	put("state", deref(state), state != nil)
	put("lastChecked", deref(lastChecked), lastChecked != nil)
	return rec, nil
}

// Update writes the worker-owned columns (state, last_checked).
func (s *Store) Update(ctx context.Context, c domain.Check) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE checks SET state = $2, last_checked = $3 WHERE id = $1`,
		c.ID, string(c.State), c.LastChecked,
	)
	if err != nil {
		return fmt.Errorf("update check %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("check %s: %w", c.ID, repo.ErrNotFound)
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
