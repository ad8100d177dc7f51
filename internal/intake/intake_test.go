package intake

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"solana-sniper/internal/domain"
)

func liveEvent(sig string) *domain.CandidateEvent {
	return &domain.CandidateEvent{Signature: sig, Source: domain.SourceLive}
}

func prefetchEvent(sig, mint string) *domain.CandidateEvent {
	return &domain.CandidateEvent{Signature: sig, Mint: mint, Source: domain.SourcePrefetch}
}

func TestOffer_DeduplicatesSignatures(t *testing.T) {
	in := New(10)

	if !in.Offer(liveEvent("sig1")) {
		t.Fatal("first Offer should accept")
	}
	if in.Offer(liveEvent("sig1")) {
		t.Error("duplicate signature on live path should be rejected")
	}
	if in.Offer(prefetchEvent("sig1", "mintA")) {
		t.Error("duplicate signature on prefetch path should be rejected")
	}
}

func TestOffer_AtMostOnceUnderConcurrency(t *testing.T) {
	in := New(DefaultQueueSize)

	const workers = 16
	var accepted sync.Map
	var wg sync.WaitGroup

	// The same 50 signatures arrive concurrently on both paths.
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				sig := fmt.Sprintf("sig-%d", i)
				var ev *domain.CandidateEvent
				if w%2 == 0 {
					ev = liveEvent(sig)
				} else {
					ev = prefetchEvent(sig, "mint")
				}
				if in.Offer(ev) {
					if _, loaded := accepted.LoadOrStore(sig, true); loaded {
						t.Errorf("signature %s accepted twice", sig)
					}
				}
			}
		}(w)
	}
	wg.Wait()

	primary, prefetch := in.Depth()
	if primary+prefetch != 50 {
		t.Errorf("queued = %d, want 50 unique signatures", primary+prefetch)
	}
}

func TestNext_PrimaryBeforePrefetch(t *testing.T) {
	in := New(10)
	ctx := context.Background()

	in.Offer(prefetchEvent("pf1", "mintA"))
	in.Offer(liveEvent("live1"))

	ev := in.Next(ctx, 100*time.Millisecond)
	if ev == nil || ev.Signature != "live1" {
		t.Fatalf("Next() = %+v, want live1 first", ev)
	}

	ev = in.Next(ctx, 100*time.Millisecond)
	if ev == nil || ev.Signature != "pf1" {
		t.Fatalf("Next() = %+v, want pf1 second", ev)
	}
}

func TestNext_TimesOutWhenEmpty(t *testing.T) {
	in := New(10)

	start := time.Now()
	ev := in.Next(context.Background(), 30*time.Millisecond)
	if ev != nil {
		t.Fatalf("Next() = %+v, want nil on empty intake", ev)
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("Next returned after %v, want >= 30ms", elapsed)
	}
}

func TestNext_WakesOnOffer(t *testing.T) {
	in := New(10)

	go func() {
		time.Sleep(20 * time.Millisecond)
		in.Offer(liveEvent("late"))
	}()

	ev := in.Next(context.Background(), time.Second)
	if ev == nil || ev.Signature != "late" {
		t.Fatalf("Next() = %+v, want the late event", ev)
	}
}

func TestMarkKnown(t *testing.T) {
	in := New(10)

	if !in.MarkKnown("mintA") {
		t.Error("first MarkKnown should return true")
	}
	if in.MarkKnown("mintA") {
		t.Error("second MarkKnown should return false")
	}
	if !in.Known("mintA") {
		t.Error("Known should report true after MarkKnown")
	}
}

func TestPurgeMint(t *testing.T) {
	in := New(10)
	ctx := context.Background()

	in.Offer(liveEvent("trigger"))
	in.Bind("trigger", "mintA")
	in.Offer(prefetchEvent("pf1", "mintA"))
	in.Offer(prefetchEvent("pf2", "mintA"))
	in.Offer(liveEvent("other"))
	in.Bind("other", "mintB")

	in.PurgeMint("mintA")

	// Only the unrelated event remains.
	ev := in.Next(ctx, 50*time.Millisecond)
	if ev == nil || ev.Signature != "other" {
		t.Fatalf("Next() = %+v, want the mintB event", ev)
	}
	if ev = in.Next(ctx, 50*time.Millisecond); ev != nil {
		t.Errorf("Next() = %+v, want empty intake after purge", ev)
	}

	// Purged signatures may be observed again.
	if !in.Offer(prefetchEvent("pf1", "mintA")) {
		t.Error("purged signature should be accepted again")
	}
}
