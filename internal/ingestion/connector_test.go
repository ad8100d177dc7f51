package ingestion

import (
	"context"
	"testing"
	"time"

	"solana-sniper/internal/intake"
	"solana-sniper/internal/solana"
)

type stubLogSource struct {
	channels map[string]chan solana.LogNotification
}

func newStubLogSource(programs ...string) *stubLogSource {
	s := &stubLogSource{channels: make(map[string]chan solana.LogNotification)}
	for _, p := range programs {
		s.channels[p] = make(chan solana.LogNotification, 16)
	}
	return s
}

func (s *stubLogSource) SubscribeLogs(ctx context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	return s.channels[filter.Mentions[0]], nil
}

func (s *stubLogSource) closeAll() {
	for _, ch := range s.channels {
		close(ch)
	}
}

func poolInitNotif(sig string, slot int64) solana.LogNotification {
	return solana.LogNotification{
		Signature: sig,
		Slot:      slot,
		Logs: []string{
			"Program 675kPX9MHTjS2zt1qfr1NYHuzeLXfQM9H24wFSUt1Mp8 invoke [1]",
			"Program log: initialize2: InitializeInstruction2",
		},
	}
}

func TestConnector_FiltersAndOffers(t *testing.T) {
	src := newStubLogSource("progA")
	in := intake.New(16)
	conn := NewConnector(src, in, []string{"progA"}, []string{"initialize2", "Instruction: Create"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		conn.Run(ctx)
		close(done)
	}()

	ch := src.channels["progA"]
	ch <- poolInitNotif("sig-pool", 100)
	ch <- solana.LogNotification{
		Signature: "sig-swap",
		Slot:      101,
		Logs:      []string{"Program log: Instruction: Swap"},
	}
	ch <- solana.LogNotification{
		Signature: "sig-failed",
		Slot:      102,
		Logs:      []string{"Program log: initialize2"},
		Err:       map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}},
	}
	src.closeAll()
	<-done

	ev := in.Next(ctx, 100*time.Millisecond)
	if ev == nil {
		t.Fatal("expected one candidate")
	}
	if ev.Signature != "sig-pool" || ev.Slot != 100 {
		t.Fatalf("wrong candidate: %+v", ev)
	}
	if ev.ObservedAt == 0 {
		t.Error("ObservedAt not set")
	}
	if extra := in.Next(ctx, 50*time.Millisecond); extra != nil {
		t.Fatalf("unexpected extra candidate: %+v", extra)
	}
}

func TestConnector_DeduplicatesSignatures(t *testing.T) {
	src := newStubLogSource("progA")
	in := intake.New(16)
	conn := NewConnector(src, in, []string{"progA"}, []string{"initialize2"})

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		conn.Run(ctx)
		close(done)
	}()

	ch := src.channels["progA"]
	ch <- poolInitNotif("sig-dup", 100)
	ch <- poolInitNotif("sig-dup", 100)
	src.closeAll()
	<-done

	if ev := in.Next(ctx, 100*time.Millisecond); ev == nil {
		t.Fatal("expected first candidate")
	}
	if ev := in.Next(ctx, 50*time.Millisecond); ev != nil {
		t.Fatalf("duplicate signature was enqueued: %+v", ev)
	}
}

func TestConnector_MergesPrograms(t *testing.T) {
	src := newStubLogSource("progA", "progB")
	in := intake.New(16)
	conn := NewConnector(src, in, []string{"progA", "progB"}, []string{"CreatePool"})

	ctx := context.Background()
	done := make(chan struct{})
	go func() {
		conn.Run(ctx)
		close(done)
	}()

	src.channels["progA"] <- solana.LogNotification{
		Signature: "sig-a", Slot: 1, Logs: []string{"Program log: CreatePool"},
	}
	src.channels["progB"] <- solana.LogNotification{
		Signature: "sig-b", Slot: 2, Logs: []string{"Program log: CreatePool"},
	}
	src.closeAll()
	<-done

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := in.Next(ctx, 100*time.Millisecond)
		if ev == nil {
			t.Fatalf("missing candidate %d", i)
		}
		got[ev.Signature] = true
	}
	if !got["sig-a"] || !got["sig-b"] {
		t.Fatalf("missing candidates from one program: %v", got)
	}
}

func TestConnector_StopsOnCancel(t *testing.T) {
	src := newStubLogSource("progA")
	in := intake.New(16)
	conn := NewConnector(src, in, []string{"progA"}, []string{"initialize2"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- conn.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
