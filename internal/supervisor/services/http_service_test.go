// Kindred - Personality Survey Matching Platform
// Copyright 2026 Kindred Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kindredlabs/kindred

package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

// mockServer implements HTTPServer with controllable behavior.
type mockServer struct {
	listenErr   error
	serveDone   chan struct{}
	shutdownErr error
	shutdowns   int
}

func newMockServer() *mockServer {
	return &mockServer{serveDone: make(chan struct{})}
}

func (m *mockServer) ListenAndServe() error {
	if m.listenErr != nil {
		return m.listenErr
	}
	<-m.serveDone
	return nil
}

func (m *mockServer) Shutdown(ctx context.Context) error {
	m.shutdowns++
	close(m.serveDone)
	return m.shutdownErr
}

func TestHTTPServerServiceGracefulShutdown(t *testing.T) {
	srv := newMockServer()
	svc := NewHTTPServerService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()

	// Let the serve goroutine start, then trigger shutdown.
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancellation")
	}

	if srv.shutdowns != 1 {
		t.Errorf("Shutdown called %d times, want 1", srv.shutdowns)
	}
}

func TestHTTPServerServiceListenFailure(t *testing.T) {
	srv := newMockServer()
	srv.listenErr = errors.New("address already in use")
	svc := NewHTTPServerService(srv, time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve() error = %v, want wrapped listen error", err)
	}
}

func TestHTTPServerServiceShutdownFailure(t *testing.T) {
	srv := newMockServer()
	srv.shutdownErr = errors.New("connections still open")
	svc := NewHTTPServerService(srv, 50*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- svc.Serve(ctx)
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err == nil || !errors.Is(err, srv.shutdownErr) {
			t.Errorf("Serve() error = %v, want wrapped shutdown error", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return")
	}
}

func TestHTTPServerServiceString(t *testing.T) {
	svc := NewHTTPServerService(newMockServer(), time.Second)
	if got := svc.String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}
