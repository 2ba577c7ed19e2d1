package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"studio/internal/domain"
	"studio/internal/providers/openai"
)

type fakeChannel struct {
	in     chan []byte
	closed chan struct{}

	mu     sync.Mutex
	sent   []map[string]any
	closes int
	sentCh chan struct{}
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{in: make(chan []byte, 16), closed: make(chan struct{}), sentCh: make(chan struct{}, 16)}
}

func (c *fakeChannel) Send(ctx context.Context, event any) error {
	raw, err := encodeEvent(event)
	if err != nil {
		return err
	}
	var m map[string]any
	_ = json.Unmarshal(raw, &m)
	c.mu.Lock()
	c.sent = append(c.sent, m)
	c.mu.Unlock()
	c.sentCh <- struct{}{}
	return nil
}

func (c *fakeChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case data, ok := <-c.in:
		if !ok {
			return nil, errors.New("connection reset")
		}
		return data, nil
	case <-c.closed:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closes == 1 {
		close(c.closed)
	}
	return nil
}

func (c *fakeChannel) Sent() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.sent...)
}

func (c *fakeChannel) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

type fakeDialer struct {
	ch  *fakeChannel
	err error
	got openai.Session
}

func (d *fakeDialer) Dial(ctx context.Context, sess openai.Session) (Channel, error) {
	d.got = sess
	if d.err != nil {
		return nil, d.err
	}
	return d.ch, nil
}

type fakeSessions struct {
	err error
	req openai.SessionRequest
}

func (s *fakeSessions) CreateSession(ctx context.Context, req openai.SessionRequest) (openai.Session, error) {
	s.req = req
	if s.err != nil {
		return openai.Session{}, s.err
	}
	return openai.Session{ID: "sess_1", ClientSecret: "ek_1", Model: "gpt-4o-realtime-preview"}, nil
}

type stateRecorder struct {
	ch chan State
}

func (r *stateRecorder) record(s State) { r.ch <- s }

func (r *stateRecorder) expect(t *testing.T, want ...State) {
	t.Helper()
	for _, w := range want {
		select {
		case got := <-r.ch:
			if got != w {
				t.Fatalf("state = %s, want %s", got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for state %s", w)
		}
	}
}

func newTestBridge(dispatcher FunctionDispatcher) (*Bridge, *fakeChannel, *stateRecorder, *fakeSessions) {
	ch := newFakeChannel()
	rec := &stateRecorder{ch: make(chan State, 32)}
	sessions := &fakeSessions{}
	b := NewBridge(Options{
		Sessions:   sessions,
		Dialer:     &fakeDialer{ch: ch},
		Dispatcher: dispatcher,
		OnState:    rec.record,
	})
	return b, ch, rec, sessions
}

func event(t *testing.T, v map[string]any) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestBridgeStateMachine(t *testing.T) {
	b, ch, rec, sessions := newTestBridge(nil)

	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rec.expect(t, StateConnecting, StateConnected)
	if len(sessions.req.Tools) != 6 {
		t.Fatalf("session declared %d tools, want 6", len(sessions.req.Tools))
	}

	ch.in <- event(t, map[string]any{"type": EventSpeechStarted})
	rec.expect(t, StateListening)
	ch.in <- event(t, map[string]any{"type": EventSpeechStopped})
	rec.expect(t, StateConnected)
	ch.in <- event(t, map[string]any{"type": EventAudioTranscriptDelta, "delta": "Hi"})
	rec.expect(t, StateSpeaking)
	ch.in <- event(t, map[string]any{"type": EventTextDelta, "delta": " there"})
	ch.in <- event(t, map[string]any{"type": EventResponseDone})
	rec.expect(t, StateConnected)

	b.Disconnect()
	rec.expect(t, StateDisconnected, StateIdle)
	if b.State() != StateIdle {
		t.Fatalf("state = %s, want idle", b.State())
	}
	b.Disconnect()
	if ch.Closes() != 1 {
		t.Fatalf("channel closed %d times, want 1", ch.Closes())
	}
	select {
	case <-b.Done():
	default:
		t.Fatal("Done not closed after disconnect")
	}
}

func TestBridgeConnectTwiceIsInvalid(t *testing.T) {
	b, _, _, _ := newTestBridge(nil)
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer b.Disconnect()
	if err := b.Connect(context.Background()); !errors.Is(err, domain.ErrBusy) {
		t.Fatalf("second Connect error = %v, want ErrBusy", err)
	}
}

func TestBridgeSessionFailureReturnsToIdle(t *testing.T) {
	b, _, rec, sessions := newTestBridge(nil)
	sessions.err = &domain.ProviderError{Provider: "openai", Status: 401, Message: "bad key"}
	if err := b.Connect(context.Background()); err == nil {
		t.Fatal("Connect succeeded with failing session provider")
	}
	rec.expect(t, StateConnecting, StateIdle)
	if err := b.Send(context.Background(), map[string]any{"type": "response.create"}); !errors.Is(err, domain.ErrNotConnected) {
		t.Fatalf("Send error = %v, want ErrNotConnected", err)
	}
}

func TestBridgeChannelErrorTearsDownOnce(t *testing.T) {
	b, ch, rec, _ := newTestBridge(nil)
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	rec.expect(t, StateConnecting, StateConnected)

	close(ch.in)
	rec.expect(t, StateDisconnected, StateIdle)
	<-b.Done()
	b.Disconnect()
	if ch.Closes() != 1 {
		t.Fatalf("channel closed %d times, want 1", ch.Closes())
	}
}

type stubDispatcher struct{}

func (stubDispatcher) Dispatch(ctx context.Context, name string, args json.RawMessage) (any, []Action) {
	if name != FnStartVisualization {
		return errorOutput{Error: "unknown function"}, nil
	}
	return map[string]any{"status": "visualizing"}, []Action{{Type: ActionStartVisualization, ProductID: "tee-classic"}}
}

func waitSent(t *testing.T, ch *fakeChannel, n int) []map[string]any {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-ch.sentCh:
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %d sent events", n)
		}
	}
	return ch.Sent()
}

func TestBridgeDispatchesFunctionCalls(t *testing.T) {
	b, ch, rec, _ := newTestBridge(stubDispatcher{})
	if err := b.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer b.Disconnect()
	rec.expect(t, StateConnecting, StateConnected)

	ch.in <- event(t, map[string]any{
		"type":      EventFunctionArgumentsDone,
		"call_id":   "call_1",
		"name":      FnStartVisualization,
		"arguments": `{"product_id":"tee-classic"}`,
	})
	sent := waitSent(t, ch, 2)
	if sent[0]["type"] != "conversation.item.create" {
		t.Fatalf("first event = %v", sent[0])
	}
	item := sent[0]["item"].(map[string]any)
	if item["type"] != "function_call_output" || item["call_id"] != "call_1" {
		t.Fatalf("item = %v", item)
	}
	if item["output"] != `{"status":"visualizing"}` {
		t.Fatalf("output = %v", item["output"])
	}
	if sent[1]["type"] != "response.create" {
		t.Fatalf("second event = %v", sent[1])
	}
	select {
	case a := <-b.Actions():
		if a.Type != ActionStartVisualization {
			t.Fatalf("action = %+v", a)
		}
	case <-time.After(time.Second):
		t.Fatal("no action emitted")
	}

	ch.in <- event(t, map[string]any{
		"type":      EventFunctionArgumentsDone,
		"call_id":   "call_2",
		"name":      "teleport",
		"arguments": `{}`,
	})
	sent = waitSent(t, ch, 2)
	if out := sent[2]["item"].(map[string]any)["output"]; out != `{"error":"unknown function"}` {
		t.Fatalf("unknown function output = %v", out)
	}
	if b.State() != StateConnected {
		t.Fatalf("state = %s after unknown function, want connected", b.State())
	}
}

func TestSDPExchangeRejectsNonSDP(t *testing.T) {
	if _, _, err := SDPExchange(context.Background(), nil, "hello"); err == nil {
		t.Fatal("expected error for non-SDP offer")
	}
}
