// Package intake turns the noisy live feed into a bounded stream of unique
// work items. It owns the dedup sets, the primary and prefetch queues, and
// the per-mint cleanup that keeps all of them bounded.
package intake

import (
	"context"
	"time"

	"solana-sniper/internal/domain"
)

// DefaultQueueSize bounds each of the two queues.
const DefaultQueueSize = 1000

// Intake is the dedup/queue layer between the connector and the pipeline.
type Intake struct {
	primary  *queue
	prefetch *queue
	seen     *SeenSet
	known    *MintSet
	index    *SigIndex

	// notify wakes one blocked Next call after a push.
	notify chan struct{}
}

// New creates an intake layer with the given per-queue capacity.
// Zero or negative capacity falls back to DefaultQueueSize.
func New(capacity int) *Intake {
	if capacity <= 0 {
		capacity = DefaultQueueSize
	}
	return &Intake{
		primary:  newQueue(capacity),
		prefetch: newQueue(capacity),
		seen:     NewSeenSet(),
		known:    NewMintSet(),
		index:    NewSigIndex(),
		notify:   make(chan struct{}, 1),
	}
}

// Offer enqueues a candidate if its signature has not been seen before.
// Live events go to the primary queue, prefetch events to the lower-priority
// one. Returns true when the event was accepted.
func (in *Intake) Offer(ev *domain.CandidateEvent) bool {
	if ev == nil || ev.Signature == "" {
		return false
	}
	if !in.seen.Add(ev.Signature) {
		return false
	}

	q := in.primary
	if ev.Source == domain.SourcePrefetch {
		q = in.prefetch
	}
	if !q.push(ev) {
		// Queue full. Keep the signature in the seen-set so a flood of the
		// same event cannot re-enter once capacity frees up.
		return false
	}

	select {
	case in.notify <- struct{}{}:
	default:
	}
	return true
}

// Next returns the next candidate, draining the primary queue before the
// prefetch queue. It blocks up to the timeout and returns nil when nothing
// arrived in time or the context was cancelled.
func (in *Intake) Next(ctx context.Context, timeout time.Duration) *domain.CandidateEvent {
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		if ev := in.primary.pop(); ev != nil {
			return ev
		}
		if ev := in.prefetch.pop(); ev != nil {
			return ev
		}

		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			return nil
		case <-in.notify:
		}
	}
}

// MarkKnown records that a mint has completed the full pipeline.
// Returns false if it was already known.
func (in *Intake) MarkKnown(mint string) bool {
	return in.known.Add(mint)
}

// Known reports whether a mint has already been fully processed.
func (in *Intake) Known(mint string) bool {
	return in.known.Contains(mint)
}

// Bind records the signature to mint mapping used later for cleanup.
func (in *Intake) Bind(sig, mint string) {
	in.index.Bind(sig, mint)
}

// PurgeMint abandons a mint: all queued items and signature index entries for
// it are removed so stale prefetch results are never reprocessed.
func (in *Intake) PurgeMint(mint string) {
	if mint == "" {
		return
	}

	dropped := in.index.DropMint(mint)

	match := func(ev *domain.CandidateEvent) bool {
		if ev.Mint == mint {
			return true
		}
		for _, sig := range dropped {
			if ev.Signature == sig {
				return true
			}
		}
		return false
	}
	for _, ev := range in.primary.purge(match) {
		in.seen.Remove(ev.Signature)
	}
	for _, ev := range in.prefetch.purge(match) {
		in.seen.Remove(ev.Signature)
	}
	in.seen.Remove(dropped...)
}

// Depth returns the current primary and prefetch queue lengths.
func (in *Intake) Depth() (primary, prefetch int) {
	return in.primary.len(), in.prefetch.len()
}
