// Package ingestion watches the live log subscriptions of the configured DEX
// programs and turns pool-creation signatures into intake candidates.
package ingestion

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"solana-sniper/internal/domain"
	"solana-sniper/internal/observability"
	"solana-sniper/internal/solana"
)

// LogSource provides log subscriptions. Satisfied by *solana.WS.
type LogSource interface {
	SubscribeLogs(ctx context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error)
}

// Sink accepts candidate events. Satisfied by *intake.Intake.
type Sink interface {
	Offer(ev *domain.CandidateEvent) bool
}

// Connector subscribes to one logs stream per watched program, filters
// notifications against the configured instruction markers and offers the
// surviving signatures to the intake layer. Reconnects and resubscriptions
// are handled inside the WS client; the connector only merges and filters.
type Connector struct {
	source   LogSource
	sink     Sink
	programs []string
	markers  []string
}

// NewConnector creates a connector for the given programs and markers.
func NewConnector(source LogSource, sink Sink, programs, markers []string) *Connector {
	return &Connector{
		source:   source,
		sink:     sink,
		programs: programs,
		markers:  markers,
	}
}

// Run subscribes to every watched program and processes notifications until
// the context is cancelled or all subscription channels close.
func (c *Connector) Run(ctx context.Context) error {
	// Some providers accept only one address per logsSubscribe, so each
	// program gets its own subscription and the streams are merged here.
	merged := make(chan solana.LogNotification, 256)

	var wg sync.WaitGroup
	for _, program := range c.programs {
		ch, err := c.source.SubscribeLogs(ctx, solana.LogsFilter{
			Mentions: []string{program},
		})
		if err != nil {
			return err
		}
		log.Printf("[ingestion] subscribed to program %s", program)

		wg.Add(1)
		go func(ch <-chan solana.LogNotification) {
			defer wg.Done()
			for notif := range ch {
				select {
				case merged <- notif:
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case notif, ok := <-merged:
			if !ok {
				log.Println("[ingestion] all subscriptions closed")
				return nil
			}
			c.handle(notif)
		}
	}
}

// handle filters a single notification and offers it to the sink.
func (c *Connector) handle(notif solana.LogNotification) {
	observability.RecordEventReceived()

	// Failed transactions cannot have created a pool.
	if notif.Err != nil {
		return
	}
	if notif.Signature == "" || !c.matchesMarker(notif.Logs) {
		return
	}

	ev := &domain.CandidateEvent{
		Signature:  notif.Signature,
		Slot:       notif.Slot,
		Source:     domain.SourceLive,
		ObservedAt: time.Now().UnixMilli(),
	}
	if !c.sink.Offer(ev) {
		observability.RecordEventDeduped()
		return
	}
	log.Printf("[ingestion] candidate %s (slot=%d)", notif.Signature, notif.Slot)
}

// matchesMarker reports whether any log line contains one of the configured
// instruction markers.
func (c *Connector) matchesMarker(logs []string) bool {
	for _, line := range logs {
		for _, marker := range c.markers {
			if strings.Contains(line, marker) {
				return true
			}
		}
	}
	return false
}
