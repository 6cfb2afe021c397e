package probe

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/metrics"
)

// drained from each response so the connection can be reused
const maxDrain = 4 << 10

type HTTPProber struct {
	Client *http.Client
	// MaxTimeout clamps the per-check timeout; zero leaves it as configured.
	MaxTimeout time.Duration
	Metrics    *metrics.Metrics
}

func NewHTTPProber(maxTimeout time.Duration, m *metrics.Metrics) *HTTPProber {
	return &HTTPProber{
		Client: &http.Client{
			// the status of the first response is what the check asserts on
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		MaxTimeout: maxTimeout,
		Metrics:    m,
	}
}

func (p *HTTPProber) timeout(c domain.Check) time.Duration {
	t := c.Timeout()
	if p.MaxTimeout > 0 && t > p.MaxTimeout {
		return p.MaxTimeout
	}
	return t
}

// Probe sends exactly one request built verbatim from the check's method,
// protocol and url (host, path and query).
func (p *HTTPProber) Probe(ctx context.Context, c domain.Check) domain.Outcome {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, p.timeout(c))
	defer cancel()

	l := newLatch()
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(string(c.Method)), c.Target(), nil)
	if err != nil {
		l.report(domain.Outcome{Error: &domain.OutcomeError{Kind: domain.ErrorNetwork, Detail: err.Error()}})
	} else {
		go func() {
			resp, err := p.Client.Do(req)
			if err != nil {
				l.report(classify(err))
				return
			}
			l.report(domain.Outcome{ResponseCode: resp.StatusCode})
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrain))
			resp.Body.Close()
		}()
		go func() {
			<-ctx.Done()
			l.report(domain.Outcome{Error: &domain.OutcomeError{Kind: domain.ErrorTimeout, Detail: ctx.Err().Error()}})
		}()
	}

	out := l.wait()
	p.Metrics.ObserveProbe(out.Kind(), time.Since(start).Seconds())
	return out
}

func classify(err error) domain.Outcome {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return domain.Outcome{Error: &domain.OutcomeError{Kind: domain.ErrorTimeout, Detail: err.Error()}}
	}
	return domain.Outcome{Error: &domain.OutcomeError{Kind: domain.ErrorNetwork, Detail: err.Error()}}
}
