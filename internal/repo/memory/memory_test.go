package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hamed0406/uptimeworker/internal/domain"
	"github.com/hamed0406/uptimeworker/internal/repo"
)

func sampleCheck() domain.Check {
	return domain.Check{
		ID:             "abcdefghij0123456789",
		UserPhone:      "5551234567",
		Protocol:       domain.ProtocolHTTPS,
		URL:            "example.com",
		Method:         domain.MethodGet,
		SuccessCodes:   []int{200},
		TimeoutSeconds: 3,
		State:          domain.StateDown,
	}
}

func TestCheckStore_PutReadUpdate(t *testing.T) {
	ctx := context.Background()
	s := NewCheckStore()
	c := sampleCheck()
	rec, _ := domain.RecordOf(c)
	s.Put(c.ID, rec)

	ids, err := s.List(ctx)
	if err != nil || len(ids) != 1 || ids[0] != c.ID {
		t.Fatalf("List: ids=%v err=%v", ids, err)
	}

	c.State = domain.StateUp
	c.LastChecked = 123
	if err := s.Update(ctx, c); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, err := s.Read(ctx, c.ID)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got["state"] != "up" || got["lastChecked"] != float64(123) {
		t.Fatalf("update not persisted: %v", got)
	}
}

func TestCheckStore_MissingIsNotFound(t *testing.T) {
	ctx := context.Background()
	s := NewCheckStore()
	if _, err := s.Read(ctx, "nope"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Read: want ErrNotFound, got %v", err)
	}
	if err := s.Update(ctx, sampleCheck()); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("Update: want ErrNotFound, got %v", err)
	}
}

func TestCheckStore_ReadReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewCheckStore()
	s.Put("x", domain.Record{"id": "x"})
	rec, _ := s.Read(ctx, "x")
	rec["id"] = "changed"
	again, _ := s.Read(ctx, "x")
	if again["id"] != "x" {
		t.Fatalf("caller mutation leaked into store: %v", again)
	}
}

func TestLogSink_RotateArchivesAndTruncates(t *testing.T) {
	ctx := context.Background()
	s := NewLogSink()
	e := domain.LogEntry{Check: sampleCheck(), State: domain.StateUp, Time: 1}
	if err := s.Append(ctx, "abc", e); err != nil {
		t.Fatalf("Append: %v", err)
	}
	before := s.Entries("abc")

	if err := s.Rotate(ctx, "abc", "abc-1"); err != nil {
		t.Fatalf("Rotate: %v", err)
	}
	if len(s.Entries("abc")) != 0 {
		t.Fatalf("live stream not truncated")
	}
	arch, err := s.ReadArchive(ctx, "abc-1")
	if err != nil {
		t.Fatalf("ReadArchive: %v", err)
	}
	if string(arch) != string(before) {
		t.Fatalf("archive differs:\nwant=%s\ngot =%s", before, arch)
	}

	live, _ := s.List(ctx, false)
	all, _ := s.List(ctx, true)
	if len(live) != 1 || len(all) != 2 {
		t.Fatalf("List mismatch: live=%v all=%v", live, all)
	}
}

func TestLogSink_CompressFailureLeavesStream(t *testing.T) {
	ctx := context.Background()
	s := NewLogSink()
	s.CompressHook = func(string) error { return errors.New("boom") }
	_ = s.Append(ctx, "abc", domain.LogEntry{Time: 1})

	err := s.Rotate(ctx, "abc", "abc-1")
	if !errors.Is(err, repo.ErrCompress) {
		t.Fatalf("want ErrCompress, got %v", err)
	}
	if len(s.Entries("abc")) == 0 {
		t.Fatalf("stream truncated despite failed compression")
	}
	if _, err := s.ReadArchive(ctx, "abc-1"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("archive should not exist, got %v", err)
	}
}

func TestLogSink_ConcurrentAppendsDuringRotate(t *testing.T) {
	ctx := context.Background()
	s := NewLogSink()
	const n = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < n; i++ {
			_ = s.Append(ctx, "abc", domain.LogEntry{Time: int64(i)})
		}
	}()
	var archived []string
	for i := 0; i < 5; i++ {
		id := "abc-" + string(rune('a'+i))
		if err := s.Rotate(ctx, "abc", id); err == nil {
			archived = append(archived, id)
		}
	}
	wg.Wait()

	lines := strings.Count(string(s.Entries("abc")), "\n")
	for _, id := range archived {
		b, _ := s.ReadArchive(ctx, id)
		lines += strings.Count(string(b), "\n")
	}
	if lines != n {
		t.Fatalf("entries lost across rotation: want %d got %d", n, lines)
	}
}
