package probe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hamed0406/uptimeworker/internal/domain"
)

func checkFor(srvURL, path string) domain.Check {
	return domain.Check{
		ID:             "abcdefghij0123456789",
		UserPhone:      "5551234567",
		Protocol:       domain.ProtocolHTTP,
		URL:            strings.TrimPrefix(srvURL, "http://") + path,
		Method:         domain.MethodGet,
		SuccessCodes:   []int{200},
		TimeoutSeconds: 2,
		State:          domain.StateDown,
	}
}

func TestHTTPProber_StatusOK(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(200)
		w.Write([]byte("ok"))
	}))
	defer s.Close()

	out := NewHTTPProber(0, nil).Probe(context.Background(), checkFor(s.URL, "/"))
	if out.Failed() || out.ResponseCode != 200 {
		t.Fatalf("want status 200 and no error, got %+v", out)
	}
	if out.Kind() != "none" {
		t.Fatalf("want kind none, got %q", out.Kind())
	}
}

func TestHTTPProber_Status500IsAResponse(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", 500)
	}))
	defer s.Close()

	out := NewHTTPProber(0, nil).Probe(context.Background(), checkFor(s.URL, "/"))
	if out.Failed() || out.ResponseCode != 500 {
		t.Fatalf("want status 500 without error, got %+v", out)
	}
}

func TestHTTPProber_UsesMethodPathAndQuery(t *testing.T) {
	var gotMethod, gotURI string
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotURI = r.Method, r.RequestURI
		w.WriteHeader(http.StatusCreated)
	}))
	defer s.Close()

	c := checkFor(s.URL, "/health?deep=1")
	c.Method = domain.MethodPost
	out := NewHTTPProber(0, nil).Probe(context.Background(), c)
	if out.ResponseCode != http.StatusCreated {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if gotMethod != http.MethodPost || gotURI != "/health?deep=1" {
		t.Fatalf("request not verbatim: method=%s uri=%s", gotMethod, gotURI)
	}
}

func TestHTTPProber_DoesNotFollowRedirects(t *testing.T) {
	var hits atomic.Int32
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Redirect(w, r, "/elsewhere", http.StatusFound)
	}))
	defer s.Close()

	out := NewHTTPProber(0, nil).Probe(context.Background(), checkFor(s.URL, "/"))
	if out.ResponseCode != http.StatusFound || hits.Load() != 1 {
		t.Fatalf("want single 302, got %+v after %d hits", out, hits.Load())
	}
}

func TestHTTPProber_TimeoutIsClampedAndClassified(t *testing.T) {
	release := make(chan struct{})
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer s.Close()
	defer close(release)

	p := NewHTTPProber(50*time.Millisecond, nil)
	start := time.Now()
	out := p.Probe(context.Background(), checkFor(s.URL, "/"))
	if !out.Failed() || out.Error.Kind != domain.ErrorTimeout {
		t.Fatalf("want timeout, got %+v", out)
	}
	if out.ResponseCode != 0 {
		t.Fatalf("timeout must not carry a status, got %d", out.ResponseCode)
	}
	if time.Since(start) > time.Second {
		t.Fatalf("probe exceeded the clamped timeout: %v", time.Since(start))
	}
}

func TestHTTPProber_NetworkError(t *testing.T) {
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := s.URL
	s.Close() // nothing listens any more

	out := NewHTTPProber(0, nil).Probe(context.Background(), checkFor(addr, "/"))
	if !out.Failed() || out.Error.Kind != domain.ErrorNetwork {
		t.Fatalf("want network-error, got %+v", out)
	}
	if out.Error.Detail == "" {
		t.Fatalf("want error detail")
	}
}

func TestLatch_FirstReportWins(t *testing.T) {
	l := newLatch()
	if !l.report(domain.Outcome{ResponseCode: 200}) {
		t.Fatalf("first report should be accepted")
	}
	if l.report(domain.Outcome{Error: &domain.OutcomeError{Kind: domain.ErrorTimeout}}) {
		t.Fatalf("second report should be ignored")
	}
	if out := l.wait(); out.ResponseCode != 200 || out.Failed() {
		t.Fatalf("latch kept the wrong outcome: %+v", out)
	}
}

func TestLatch_ConcurrentReportsYieldOneOutcome(t *testing.T) {
	l := newLatch()
	var accepted atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(code int) {
			defer wg.Done()
			if l.report(domain.Outcome{ResponseCode: code}) {
				accepted.Add(1)
			}
		}(200 + i)
	}
	wg.Wait()
	if accepted.Load() != 1 {
		t.Fatalf("want exactly one accepted report, got %d", accepted.Load())
	}
	_ = l.wait()
	select {
	case extra := <-l.ch:
		t.Fatalf("unexpected second outcome %+v", extra)
	default:
	}
}
