package uiemit

import "testing"

func TestInProcessSubscribeReceivesLiveEvents(t *testing.T) {
	p := NewInProcess(0)
	ch, replayed, unsubscribe := p.Subscribe(0)
	defer unsubscribe()

	if len(replayed) != 0 {
		t.Fatalf("replayed = %v, want empty before any Emit", replayed)
	}

	p.Emit(EventChunk, ChunkPayload{SessionID: "s1", Content: "hi"})

	select {
	case env := <-ch:
		if env.Name != EventChunk {
			t.Fatalf("Name = %q, want %q", env.Name, EventChunk)
		}
		payload, ok := env.Payload.(ChunkPayload)
		if !ok || payload.Content != "hi" {
			t.Fatalf("Payload = %#v", env.Payload)
		}
	default:
		t.Fatal("expected event on subscriber channel")
	}
}

func TestInProcessLateSubscriberGetsReplay(t *testing.T) {
	p := NewInProcess(10)
	p.Emit(EventChunk, ChunkPayload{SessionID: "s1", Content: "a"})
	p.Emit(EventDone, DonePayload{SessionID: "s1"})

	_, replayed, unsubscribe := p.Subscribe(0)
	defer unsubscribe()

	if len(replayed) != 2 {
		t.Fatalf("replayed = %d events, want 2", len(replayed))
	}
	if replayed[0].Name != EventChunk || replayed[1].Name != EventDone {
		t.Fatalf("replayed = %+v", replayed)
	}
}

func TestInProcessReplayBoundedByMax(t *testing.T) {
	p := NewInProcess(2)
	p.Emit(EventChunk, ChunkPayload{Content: "1"})
	p.Emit(EventChunk, ChunkPayload{Content: "2"})
	p.Emit(EventChunk, ChunkPayload{Content: "3"})

	_, replayed, unsubscribe := p.Subscribe(0)
	defer unsubscribe()

	if len(replayed) != 2 {
		t.Fatalf("replayed = %d, want bounded to 2", len(replayed))
	}
	first := replayed[0].Payload.(ChunkPayload)
	if first.Content != "2" {
		t.Fatalf("oldest retained = %q, want %q (dropped the first)", first.Content, "2")
	}
}

func TestInProcessUnsubscribeStopsDelivery(t *testing.T) {
	p := NewInProcess(0)
	ch, _, unsubscribe := p.Subscribe(1)
	unsubscribe()

	p.Emit(EventDone, DonePayload{SessionID: "s1"})

	select {
	case env, ok := <-ch:
		if ok {
			t.Fatalf("expected no delivery after unsubscribe, got %+v", env)
		}
	default:
	}
}

func TestInProcessFullSubscriberChannelDoesNotBlock(t *testing.T) {
	p := NewInProcess(0)
	_, _, unsubscribe := p.Subscribe(1)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Emit(EventChunk, ChunkPayload{Content: "x"})
		}
		close(done)
	}()

	select {
	case <-done:
	}
}
