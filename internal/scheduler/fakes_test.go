package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/repo/memory"
)

const (
	testID    = "abcdefghij0123456789"
	testPhone = "5551234567"
)

func exampleRecord() domain.Record {
	return domain.Record{
		"id":             testID,
		"userPhone":      testPhone,
		"protocol":       "https",
		"url":            "example.com",
		"method":         "get",
		"successCodes":   []int{200, 201},
		"timeoutSeconds": 3,
	}
}

func exampleCheck() domain.Check {
	return domain.Check{
		ID:             testID,
		UserPhone:      testPhone,
		Protocol:       domain.ProtocolHTTPS,
		URL:            "example.com",
		Method:         domain.MethodGet,
		SuccessCodes:   []int{200, 201},
		TimeoutSeconds: 3,
		State:          domain.StateDown,
	}
}

// scriptedProber returns outcomes in order, repeating the last one.
type scriptedProber struct {
	mu       sync.Mutex
	outcomes []domain.Outcome
	calls    atomic.Int32
}

func (p *scriptedProber) Probe(ctx context.Context, c domain.Check) domain.Outcome {
	n := int(p.calls.Add(1)) - 1
	p.mu.Lock()
	defer p.mu.Unlock()
	if n >= len(p.outcomes) {
		n = len(p.outcomes) - 1
	}
	return p.outcomes[n]
}

type alertCall struct{ destination, message string }

type fakeNotifier struct {
	mu   sync.Mutex
	sent []alertCall
	err  error
}

func (n *fakeNotifier) Send(_ context.Context, destination, message string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, alertCall{destination, message})
	return n.err
}

func (n *fakeNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

// failingChecks wraps a memory store and fails every Update.
type failingChecks struct {
	*memory.CheckStore
}

var errStoreDown = errors.New("store unavailable")

func (failingChecks) Update(context.Context, domain.Check) error { return errStoreDown }

// failingLogs wraps a memory sink and fails every Append.
type failingLogs struct {
	*memory.LogSink
}

func (failingLogs) Append(context.Context, string, domain.LogEntry) error {
	return errors.New("disk full")
}

var (
	_ repo.CheckStore = failingChecks{}
	_ repo.LogSink    = failingLogs{}
)

func ok(code int) domain.Outcome { return domain.Outcome{ResponseCode: code} }

func timedOut() domain.Outcome {
	return domain.Outcome{Error: &domain.OutcomeError{Kind: domain.ErrorTimeout, Detail: "deadline"}}
}

func netErr() domain.Outcome {
	return domain.Outcome{Error: &domain.OutcomeError{Kind: domain.ErrorNetwork, Detail: "refused"}}
}
