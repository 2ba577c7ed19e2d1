package handlers

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"
)

func TestStreamContextOutlivesRequestUntilShutdown(t *testing.T) {
	streams, shutdown := context.WithCancel(context.Background())
	a := &App{Streams: streams}

	reqCtx, endRequest := context.WithCancel(context.Background())
	r := httptest.NewRequest("GET", "/v1/jobs/j1/events", nil).WithContext(reqCtx)
	ctx, cancel := a.streamContext(r)
	defer cancel()

	endRequest()
	if ctx.Err() != nil {
		t.Fatal("stream ended with its request")
	}
	if a.shuttingDown() {
		t.Fatal("shuttingDown before shutdown")
	}

	shutdown()
	select {
	case <-ctx.Done():
	case <-time.After(time.Second):
		t.Fatal("stream survived shutdown")
	}
	if !a.shuttingDown() {
		t.Fatal("shuttingDown = false after shutdown")
	}
}

func TestStreamContextWithoutServer(t *testing.T) {
	a := &App{}
	ctx, cancel := a.streamContext(httptest.NewRequest("GET", "/", nil))
	if ctx.Err() != nil || a.shuttingDown() {
		t.Fatal("stream canceled without a server")
	}
	cancel()
	if ctx.Err() == nil {
		t.Fatal("cancel did not end the stream")
	}
}
