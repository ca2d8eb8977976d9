package album

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"postbot/internal/post"
	"postbot/internal/transport"
	"postbot/pkg/logx"
)

type recorder struct {
	mu       sync.Mutex
	releases [][]post.Item
	done     chan struct{}
}

func newRecorder() *recorder {
	return &recorder{done: make(chan struct{}, 16)}
}

func (r *recorder) release(groupID string, items []post.Item, chat transport.ChatTarget) {
	r.mu.Lock()
	r.releases = append(r.releases, items)
	r.mu.Unlock()
	r.done <- struct{}{}
}

func (r *recorder) wait(t *testing.T, n int, timeout time.Duration) [][]post.Item {
	t.Helper()
	deadline := time.After(timeout)
	for i := 0; i < n; i++ {
		select {
		case <-r.done:
		case <-deadline:
			t.Fatalf("timed out waiting for release %d of %d", i+1, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([][]post.Item, len(r.releases))
	copy(out, r.releases)
	return out
}

func item(id string) post.Item {
	return post.Item{Kind: post.KindPhoto, FileID: id}
}

func TestBurstReleasesOnce(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	b := New(Config{Window: 30 * time.Millisecond}, rec.release, logx.Nop())
	defer b.Stop()

	for i := 0; i < 5; i++ {
		b.Submit("g1", item(fmt.Sprintf("f%d", i)), transport.ChatTarget{ChatID: 1})
		time.Sleep(5 * time.Millisecond)
	}

	got := rec.wait(t, 1, time.Second)
	if len(got) != 1 {
		t.Fatalf("got %d releases, want 1", len(got))
	}
	if len(got[0]) != 5 {
		t.Fatalf("released %d items, want 5", len(got[0]))
	}
	for i, it := range got[0] {
		if want := fmt.Sprintf("f%d", i); it.FileID != want {
			t.Fatalf("item %d = %s, want %s (arrival order lost)", i, it.FileID, want)
		}
	}
	if b.Pending() != 0 {
		t.Fatalf("pending = %d after release, want 0", b.Pending())
	}
}

func TestSpacedSubmitsReleaseSeparately(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	b := New(Config{Window: 20 * time.Millisecond}, rec.release, logx.Nop())
	defer b.Stop()

	b.Submit("g1", item("a"), transport.ChatTarget{ChatID: 1})
	rec.wait(t, 1, time.Second)
	b.Submit("g1", item("b"), transport.ChatTarget{ChatID: 1})
	got := rec.wait(t, 1, time.Second)

	if len(got) != 2 {
		t.Fatalf("got %d releases, want 2", len(got))
	}
	if len(got[0]) != 1 || len(got[1]) != 1 {
		t.Fatalf("expected two singleton releases, got %d and %d items", len(got[0]), len(got[1]))
	}
	if got[0][0].FileID != "a" || got[1][0].FileID != "b" {
		t.Fatal("releases merged across the quiet period")
	}
}

func TestUngroupedBypassesBuffering(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	b := New(Config{Window: time.Hour}, rec.release, logx.Nop())
	defer b.Stop()

	b.Submit("", item("solo"), transport.ChatTarget{ChatID: 7})

	got := rec.wait(t, 1, time.Second)
	if len(got) != 1 || len(got[0]) != 1 || got[0][0].FileID != "solo" {
		t.Fatalf("unexpected releases: %+v", got)
	}
	if b.Pending() != 0 {
		t.Fatal("ungrouped item left a pending group")
	}
}

func TestIndependentGroupsDoNotMerge(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	b := New(Config{Window: 25 * time.Millisecond}, rec.release, logx.Nop())
	defer b.Stop()

	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		g := g
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 3; i++ {
				b.Submit(fmt.Sprintf("g%d", g), item(fmt.Sprintf("g%d-f%d", g, i)), transport.ChatTarget{ChatID: int64(g)})
			}
		}()
	}
	wg.Wait()

	got := rec.wait(t, 4, time.Second)
	if len(got) != 4 {
		t.Fatalf("got %d releases, want 4", len(got))
	}
	for _, items := range got {
		if len(items) != 3 {
			t.Fatalf("release has %d items, want 3: %+v", len(items), items)
		}
		prefix := items[0].FileID[:2]
		for i, it := range items {
			if want := fmt.Sprintf("%s-f%d", prefix, i); it.FileID != want {
				t.Fatalf("group %s item %d = %s, want %s", prefix, i, it.FileID, want)
			}
		}
	}
}

func TestAppendAfterReleaseStartsNewGroup(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	b := New(Config{Window: 15 * time.Millisecond}, rec.release, logx.Nop())
	defer b.Stop()

	b.Submit("g1", item("first"), transport.ChatTarget{ChatID: 1})
	rec.wait(t, 1, time.Second)

	// Same identifier after release: must be a fresh group.
	b.Submit("g1", item("second"), transport.ChatTarget{ChatID: 1})
	got := rec.wait(t, 1, time.Second)
	if len(got) != 2 {
		t.Fatalf("got %d releases, want 2", len(got))
	}
	if len(got[1]) != 1 || got[1][0].FileID != "second" {
		t.Fatalf("second release = %+v, want just the new item", got[1])
	}
}

func TestMaxAgeForcesRelease(t *testing.T) {
	t.Parallel()
	rec := newRecorder()
	b := New(Config{Window: 40 * time.Millisecond, MaxAge: 100 * time.Millisecond}, rec.release, logx.Nop())
	defer b.Stop()

	// Keep resetting the debounce window; the age ceiling must still fire.
	stop := time.After(300 * time.Millisecond)
	i := 0
loop:
	for {
		select {
		case <-stop:
			break loop
		default:
		}
		b.Submit("slow", item(fmt.Sprintf("f%d", i)), transport.ChatTarget{ChatID: 1})
		i++
		select {
		case <-rec.done:
			rec.done <- struct{}{} // put it back for wait()
			break loop
		case <-time.After(20 * time.Millisecond):
		}
	}

	got := rec.wait(t, 1, time.Second)
	if len(got) < 1 {
		t.Fatal("group was never force-released")
	}
	if len(got[0]) < 2 {
		t.Fatalf("force release carried %d items, want the buffered run", len(got[0]))
	}
}
