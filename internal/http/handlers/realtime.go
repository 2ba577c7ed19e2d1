package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"studio/internal/realtime"
)

const (
	maxSDPOffer     = 64 << 10
	realtimeBacklog = 64
)

// RealtimeSession mints an ephemeral key for a browser that connects to
// OpenAI itself.
func (a *App) RealtimeSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Realtime.CreateSession(r.Context(), realtime.SessionRequest(realtime.Instructions))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess)
}

// RealtimeSDP trades the browser's WebRTC offer for OpenAI's answer.
func (a *App) RealtimeSDP(w http.ResponseWriter, r *http.Request) {
	offer, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSDPOffer))
	if err != nil {
		a.error(w, r, http.StatusBadRequest, "bad_request", "offer too large")
		return
	}
	answer, sess, err := realtime.SDPExchange(r.Context(), a.Realtime, string(offer))
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/sdp")
	w.Header().Set("X-Realtime-Session", sess.ID)
	w.WriteHeader(http.StatusCreated)
	_, _ = io.WriteString(w, answer)
}

type realtimeClientEvent struct {
	Type   string           `json:"type"`
	State  realtime.State   `json:"state,omitempty"`
	Action *realtime.Action `json:"action,omitempty"`
	Error  *eventError      `json:"error,omitempty"`
}

type eventError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RealtimeWS relays a voice session through the server so assistant
// function calls run against this cart. Upstream events are forwarded as is;
// state changes and UI actions are added as studio.* events.
func (a *App) RealtimeWS(w http.ResponseWriter, r *http.Request) {
	session := a.cartSession(r)
	if s := r.URL.Query().Get("cart_session"); cartSessionPattern.MatchString(s) {
		session = s
	}
	conn, err := a.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debug().Err(err).Msg("realtime: websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := a.streamContext(r)
	defer cancel()
	logger := a.Logger.With().Str("user_id", a.currentUserID(r)).Str("cart_session", session).Logger()

	out := make(chan any, realtimeBacklog)
	enqueue := func(v any) {
		select {
		case out <- v:
		case <-ctx.Done():
		}
	}
	bridge := realtime.NewBridge(realtime.Options{
		Sessions: a.Realtime,
		Dialer:   a.RealtimeDialer,
		Dispatcher: &realtime.Dispatcher{
			Products:  a.Catalog,
			Cart:      a.Cart,
			SessionID: session,
			Logger:    &logger,
		},
		OnEvent: func(ev json.RawMessage) { enqueue(ev) },
		OnState: func(s realtime.State) { enqueue(realtimeClientEvent{Type: "studio.state", State: s}) },
		Logger:  &logger,
	})
	defer bridge.Disconnect()

	if err := bridge.Connect(ctx); err != nil {
		e := classify(err)
		_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
		_ = conn.WriteJSON(realtimeClientEvent{Type: "studio.error", Error: &eventError{Code: e.code, Message: err.Error()}})
		return
	}

	go func() {
		defer cancel()
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-out:
				_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
				if err := conn.WriteJSON(v); err != nil {
					return
				}
			}
		}
	}()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case act := <-bridge.Actions():
				enqueue(realtimeClientEvent{Type: "studio.action", Action: &act})
			}
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			if a.shuttingDown() {
				goingAway(conn)
			}
		case <-bridge.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended")
			_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventsWriteWait))
			_ = conn.Close()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if !json.Valid(data) || !strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
			enqueue(realtimeClientEvent{Type: "studio.error", Error: &eventError{Code: "bad_request", Message: "events must be JSON objects"}})
			continue
		}
		if err := bridge.Send(ctx, json.RawMessage(data)); err != nil {
			logger.Debug().Err(err).Msg("realtime: forward client event")
			return
		}
	}
}
