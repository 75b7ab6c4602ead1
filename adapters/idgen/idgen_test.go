package idgen_test

import (
	"regexp"
	"sync"
	"testing"

	"github.com/artpar/samgate/adapters/idgen"
)

var uuid4 = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestUUID_Format(t *testing.T) {
	id := idgen.UUID{}.New()
	if !uuid4.MatchString(id) {
		t.Errorf("New() = %q, want a version 4 UUID", id)
	}
}

func TestUUID_Distinct(t *testing.T) {
	g := idgen.UUID{}
	seen := make(map[string]bool, 200)
	for i := 0; i < 200; i++ {
		id := g.New()
		if seen[id] {
			t.Fatalf("duplicate request id %q", id)
		}
		seen[id] = true
	}
}

func TestSequential_Ordering(t *testing.T) {
	g := idgen.NewSequential("req-")

	for i, want := range []string{"req-1", "req-2", "req-3"} {
		if got := g.New(); got != want {
			t.Errorf("call %d = %q, want %q", i+1, got, want)
		}
	}
}

func TestSequential_EmptyPrefix(t *testing.T) {
	g := idgen.NewSequential("")
	if got := g.New(); got != "1" {
		t.Errorf("New() = %q, want %q", got, "1")
	}
}

func TestSequential_Reset(t *testing.T) {
	g := idgen.NewSequential("req-")
	g.New()
	g.New()
	g.Reset()
	if got := g.New(); got != "req-1" {
		t.Errorf("New() after Reset = %q, want %q", got, "req-1")
	}
}

func TestSequential_ConcurrentCallers(t *testing.T) {
	g := idgen.NewSequential("req-")

	const n = 50
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- g.New()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool, n)
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate id %q under concurrency", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Errorf("got %d distinct ids, want %d", len(seen), n)
	}
}
