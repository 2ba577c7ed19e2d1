package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"studio/internal/domain"
)

const (
	eventsWriteWait  = 10 * time.Second
	eventsPingPeriod = 30 * time.Second
)

// ownedJob loads the job named by the URL. Jobs of other users are reported
// as missing.
func (a *App) ownedJob(w http.ResponseWriter, r *http.Request) (domain.Snapshot, bool) {
	snap, err := a.Tracker.Get(r.Context(), chi.URLParam(r, "id"))
	if err == nil && snap.OwnerID != a.currentUserID(r) {
		err = domain.ErrNotFound
	}
	if err != nil {
		a.writeError(w, r, err)
		return domain.Snapshot{}, false
	}
	return snap, true
}

func (a *App) JobStatus(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, snap)
}

// CancelJob runs the job's cleanup hook. Canceling a finished job succeeds.
func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	if err := a.Tracker.Cancel(r.Context(), snap.JobID); err != nil {
		a.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// JobEvents streams snapshots over a websocket until the job finishes or the
// client goes away. The current snapshot is always sent first. Jobs polled by
// another instance are followed through RemoteEvents when it is set.
func (a *App) JobEvents(w http.ResponseWriter, r *http.Request) {
	snap, ok := a.ownedJob(w, r)
	if !ok {
		return
	}
	ctx, cancel := a.streamContext(r)
	defer cancel()

	var events <-chan domain.Snapshot
	if _, local := a.Tracker.Handle(snap.JobID); !local && a.RemoteEvents != nil && !finished(snap) {
		events = a.RemoteEvents.Subscribe(ctx, snap.JobID)
	} else {
		ch, unsubscribe := a.Tracker.Subscribe(snap.JobID)
		defer unsubscribe()
		events = ch
	}

	conn, err := a.Upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Debug().Err(err).Str("job_id", snap.JobID).Msg("jobs: websocket upgrade failed")
		return
	}
	defer conn.Close()

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	// Re-read after subscribing so a commit between the two is not lost.
	if fresh, err := a.Tracker.Get(ctx, snap.JobID); err == nil {
		snap = fresh
	}
	if err := writeSnapshot(conn, snap); err != nil || finished(snap) {
		closeEvents(conn)
		return
	}

	ping := time.NewTicker(eventsPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			if a.shuttingDown() {
				goingAway(conn)
			}
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventsWriteWait)); err != nil {
				return
			}
		case s, open := <-events:
			if !open {
				// Slow readers may have missed the last commit.
				if final, err := a.Tracker.Get(ctx, snap.JobID); err == nil && final.UpdatedAt.After(snap.UpdatedAt) {
					_ = writeSnapshot(conn, final)
				}
				closeEvents(conn)
				return
			}
			snap = s
			if err := writeSnapshot(conn, s); err != nil {
				return
			}
			if finished(s) {
				closeEvents(conn)
				return
			}
		}
	}
}

func finished(s domain.Snapshot) bool {
	return s.State.IsTerminal() || !s.Generating
}

func writeSnapshot(conn *websocket.Conn, snap domain.Snapshot) error {
	_ = conn.SetWriteDeadline(time.Now().Add(eventsWriteWait))
	return conn.WriteJSON(snap)
}

func closeEvents(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventsWriteWait))
}

func goingAway(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(eventsWriteWait))
	_ = conn.Close()
}
