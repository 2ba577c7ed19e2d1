// Package realtime bridges a shopper's voice/chat session to the OpenAI
// Realtime API and runs the assistant's function calls locally.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"studio/internal/domain"
	"studio/internal/infra"
	"studio/internal/providers/openai"
)

type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateListening    State = "listening"
	StateSpeaking     State = "speaking"
	StateDisconnected State = "disconnected"
)

// Server event types the bridge reacts to.
const (
	EventSpeechStarted         = "input_audio_buffer.speech_started"
	EventSpeechStopped         = "input_audio_buffer.speech_stopped"
	EventTextDelta             = "response.text.delta"
	EventAudioTranscriptDelta  = "response.audio_transcript.delta"
	EventResponseDone          = "response.done"
	EventFunctionArgumentsDone = "response.function_call_arguments.done"
	EventError                 = "error"
)

// SessionProvider mints ephemeral realtime sessions.
type SessionProvider interface {
	CreateSession(ctx context.Context, req openai.SessionRequest) (openai.Session, error)
}

// FunctionDispatcher runs one assistant function call.
type FunctionDispatcher interface {
	Dispatch(ctx context.Context, name string, arguments json.RawMessage) (any, []Action)
}

type Options struct {
	Sessions   SessionProvider
	Dialer     Dialer
	Dispatcher FunctionDispatcher
	// OnEvent receives every server event in arrival order, on the read goroutine.
	OnEvent func(json.RawMessage)
	// OnState is called after every state transition.
	OnState      func(State)
	Instructions string
	Logger       *infra.Logger
}

// Bridge is one shopper's realtime session. A Bridge can be reconnected after
// it returns to idle.
type Bridge struct {
	opts    Options
	logger  *infra.Logger
	actions chan Action

	mu     sync.Mutex
	state  State
	gen    uint64
	ch     Channel
	cancel context.CancelFunc
	done   chan struct{}
}

func NewBridge(opts Options) *Bridge {
	if opts.Instructions == "" {
		opts.Instructions = Instructions
	}
	done := make(chan struct{})
	close(done)
	return &Bridge{
		opts:    opts,
		logger:  infra.NopLogger(opts.Logger),
		actions: make(chan Action, 64),
		state:   StateIdle,
		done:    done,
	}
}

// SessionRequest is the session configuration sent to OpenAI.
func SessionRequest(instructions string) openai.SessionRequest {
	return openai.SessionRequest{
		Instructions: instructions,
		Tools:        Tools(),
		Modalities:   []string{"audio", "text"},
	}
}

// State returns the current state.
func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Actions delivers UI side effects of function calls. Actions are dropped
// when nobody drains the channel.
func (b *Bridge) Actions() <-chan Action { return b.actions }

// Done is closed when the current session ends.
func (b *Bridge) Done() <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.done
}

// Connect opens a session. It is only valid from idle.
func (b *Bridge) Connect(ctx context.Context) error {
	b.mu.Lock()
	if b.state != StateIdle {
		st := b.state
		b.mu.Unlock()
		return fmt.Errorf("%w: connect while %s", domain.ErrBusy, st)
	}
	b.gen++
	gen := b.gen
	b.state = StateConnecting
	b.done = make(chan struct{})
	b.mu.Unlock()
	b.notify(StateConnecting)

	sess, err := b.opts.Sessions.CreateSession(ctx, SessionRequest(b.opts.Instructions))
	if err != nil {
		b.abortConnect(gen)
		return fmt.Errorf("realtime: create session: %w", err)
	}
	ch, err := b.opts.Dialer.Dial(ctx, sess)
	if err != nil {
		b.abortConnect(gen)
		return err
	}

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	b.mu.Lock()
	if b.gen != gen || b.state != StateConnecting {
		b.mu.Unlock()
		cancel()
		_ = ch.Close()
		return fmt.Errorf("realtime: connect: %w", domain.ErrCanceled)
	}
	b.ch = ch
	b.cancel = cancel
	b.state = StateConnected
	b.mu.Unlock()
	b.notify(StateConnected)
	b.logger.Info().Str("session_id", sess.ID).Str("model", sess.Model).Msg("realtime: connected")

	go b.readLoop(loopCtx, ch, gen)
	return nil
}

func (b *Bridge) abortConnect(gen uint64) {
	b.mu.Lock()
	if b.gen != gen {
		b.mu.Unlock()
		return
	}
	b.state = StateIdle
	close(b.done)
	b.mu.Unlock()
	b.notify(StateIdle)
}

// Send forwards a client event upstream.
func (b *Bridge) Send(ctx context.Context, event any) error {
	b.mu.Lock()
	ch, gen := b.ch, b.gen
	b.mu.Unlock()
	if ch == nil {
		return domain.ErrNotConnected
	}
	if err := ch.Send(ctx, event); err != nil {
		b.teardown(gen, err)
		return err
	}
	return nil
}

// Disconnect ends the session. Calling it again, or while idle, is a no-op.
func (b *Bridge) Disconnect() {
	b.mu.Lock()
	if b.state == StateConnecting {
		b.gen++
		b.state = StateIdle
		close(b.done)
		b.mu.Unlock()
		b.notify(StateIdle)
		return
	}
	gen := b.gen
	b.mu.Unlock()
	b.teardown(gen, nil)
}

func (b *Bridge) teardown(gen uint64, cause error) {
	b.mu.Lock()
	if b.gen != gen || b.ch == nil {
		b.mu.Unlock()
		return
	}
	ch, cancel, done := b.ch, b.cancel, b.done
	b.ch, b.cancel = nil, nil
	b.state = StateDisconnected
	b.mu.Unlock()
	b.notify(StateDisconnected)

	cancel()
	if err := ch.Close(); err != nil {
		b.logger.Debug().Err(err).Msg("realtime: close channel")
	}
	if cause != nil && !errors.Is(cause, ErrChannelClosed) && !errors.Is(cause, context.Canceled) {
		b.logger.Warn().Err(cause).Msg("realtime: session dropped")
	}

	b.mu.Lock()
	if b.gen == gen {
		b.state = StateIdle
	}
	close(done)
	b.mu.Unlock()
	b.notify(StateIdle)
}

func (b *Bridge) readLoop(ctx context.Context, ch Channel, gen uint64) {
	for {
		data, err := ch.Receive(ctx)
		if err != nil {
			b.teardown(gen, err)
			return
		}
		if err := b.handle(ctx, ch, data); err != nil {
			b.teardown(gen, err)
			return
		}
	}
}

type serverEvent struct {
	Type      string `json:"type"`
	CallID    string `json:"call_id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
	Error     *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (b *Bridge) handle(ctx context.Context, ch Channel, data []byte) error {
	var ev serverEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		b.logger.Warn().Err(err).Msg("realtime: undecodable server event")
		return nil
	}
	if b.opts.OnEvent != nil {
		b.opts.OnEvent(json.RawMessage(data))
	}

	switch ev.Type {
	case EventSpeechStarted:
		b.transition(StateListening)
	case EventSpeechStopped, EventResponseDone:
		b.transition(StateConnected)
	case EventTextDelta, EventAudioTranscriptDelta:
		b.transition(StateSpeaking)
	case EventError:
		if ev.Error != nil {
			b.logger.Warn().Str("message", ev.Error.Message).Msg("realtime: server error event")
		}
	case EventFunctionArgumentsDone:
		return b.runFunction(ctx, ch, ev)
	}
	return nil
}

func (b *Bridge) runFunction(ctx context.Context, ch Channel, ev serverEvent) error {
	var output any = errorOutput{Error: "unknown function"}
	var actions []Action
	if b.opts.Dispatcher != nil {
		output, actions = b.opts.Dispatcher.Dispatch(ctx, ev.Name, json.RawMessage(ev.Arguments))
	}
	raw, err := json.Marshal(output)
	if err != nil {
		raw = []byte(`{"error":"unencodable output"}`)
	}
	b.logger.Debug().Str("function", ev.Name).Str("call_id", ev.CallID).Msg("realtime: function call")

	item := map[string]any{
		"type": "conversation.item.create",
		"item": map[string]any{
			"type":    "function_call_output",
			"call_id": ev.CallID,
			"output":  string(raw),
		},
	}
	if err := ch.Send(ctx, item); err != nil {
		return err
	}
	if err := ch.Send(ctx, map[string]any{"type": "response.create"}); err != nil {
		return err
	}
	for _, a := range actions {
		select {
		case b.actions <- a:
		default:
			b.logger.Warn().Str("action", a.Type).Msg("realtime: action dropped")
		}
	}
	return nil
}

// transition applies a conversational state change while a session is live.
func (b *Bridge) transition(to State) {
	b.mu.Lock()
	switch b.state {
	case StateConnected, StateListening, StateSpeaking:
	default:
		b.mu.Unlock()
		return
	}
	if b.state == to {
		b.mu.Unlock()
		return
	}
	b.state = to
	b.mu.Unlock()
	b.notify(to)
}

func (b *Bridge) notify(s State) {
	if b.opts.OnState != nil {
		b.opts.OnState(s)
	}
}
