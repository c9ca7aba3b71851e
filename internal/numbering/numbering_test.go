package numbering

import (
	"context"
	"errors"
	"sync"
	"testing"
)

type fakeCounters struct {
	mu   sync.Mutex
	seqs map[string]int64
	err  error
}

func newFakeCounters() *fakeCounters {
	return &fakeCounters{seqs: map[string]int64{}}
}

func (f *fakeCounters) IncrementCounter(_ context.Context, businessID string, prefix string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	f.seqs[businessID+"/"+prefix]++
	return f.seqs[businessID+"/"+prefix], nil
}

func (f *fakeCounters) GetCounter(_ context.Context, businessID string, prefix string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.seqs[businessID+"/"+prefix], nil
}

func TestFormat(t *testing.T) {
	cases := map[string]struct {
		prefix string
		seq    int64
	}{
		"INV-00001":  {"INV", 1},
		"SR-00042":   {"SR", 42},
		"INV-123456": {"INV", 123456},
	}
	for want, tc := range cases {
		if got := Format(tc.prefix, tc.seq); got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestNormalizePrefix(t *testing.T) {
	got, err := NormalizePrefix("", "INV")
	if err != nil || got != "INV" {
		t.Fatalf("expected default prefix, got %q err=%v", got, err)
	}

	got, err = NormalizePrefix(" gst24 ", "INV")
	if err != nil || got != "GST24" {
		t.Fatalf("expected upper-cased prefix, got %q err=%v", got, err)
	}

	for _, bad := range []string{"INV-1", "ABCDEFGHIJK", "A B", "ÜBER"} {
		if _, err := NormalizePrefix(bad, "INV"); !errors.Is(err, ErrInvalidPrefix) {
			t.Fatalf("expected ErrInvalidPrefix for %q, got %v", bad, err)
		}
	}
}

func TestAllocateAndPeek(t *testing.T) {
	alloc := New(newFakeCounters())
	ctx := context.Background()

	peek, err := alloc.Peek(ctx, "biz-1", "INV")
	if err != nil {
		t.Fatalf("peek failed: %v", err)
	}
	if peek.Seq != 1 || peek.Formatted != "INV-00001" {
		t.Fatalf("expected first peek INV-00001, got %+v", peek)
	}

	first, err := alloc.Allocate(ctx, "biz-1", "INV")
	if err != nil {
		t.Fatalf("allocate failed: %v", err)
	}
	if first != peek {
		t.Fatalf("expected allocate to match peek, got %+v vs %+v", first, peek)
	}

	again, _ := alloc.Peek(ctx, "biz-1", "INV")
	if again.Seq != 2 {
		t.Fatalf("expected peek to advance after allocate, got %d", again.Seq)
	}

	other, _ := alloc.Allocate(ctx, "biz-2", "INV")
	if other.Seq != 1 {
		t.Fatalf("expected independent counter per business, got %d", other.Seq)
	}
	sr, _ := alloc.Allocate(ctx, "biz-1", "SR")
	if sr.Formatted != "SR-00001" {
		t.Fatalf("expected independent counter per prefix, got %s", sr.Formatted)
	}
}

func TestAllocateConcurrentDistinct(t *testing.T) {
	alloc := New(newFakeCounters())
	const workers = 64

	var wg sync.WaitGroup
	results := make(chan int64, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := alloc.Allocate(context.Background(), "biz-1", "INV")
			if err != nil {
				t.Errorf("allocate failed: %v", err)
				return
			}
			results <- n.Seq
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int64]bool{}
	for seq := range results {
		if seen[seq] {
			t.Fatalf("duplicate invoice number %d", seq)
		}
		seen[seq] = true
	}
	for i := int64(1); i <= workers; i++ {
		if !seen[i] {
			t.Fatalf("expected gap-free numbers, missing %d", i)
		}
	}
}

func TestAllocateFailureIsReturned(t *testing.T) {
	counters := newFakeCounters()
	counters.err = errors.New("connection reset")
	alloc := New(counters)

	if _, err := alloc.Allocate(context.Background(), "biz-1", "INV"); !errors.Is(err, counters.err) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}
	if _, err := alloc.Allocate(context.Background(), "", "INV"); err == nil {
		t.Fatalf("expected missing business id to fail")
	}
	if _, err := alloc.Allocate(context.Background(), "biz-1", "bad-prefix"); !errors.Is(err, ErrInvalidPrefix) {
		t.Fatalf("expected ErrInvalidPrefix, got %v", err)
	}
}
