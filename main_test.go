package main

import (
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"
)

func TestServeUntil_ListenFailureIsReturned(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer busy.Close()

	server := &http.Server{Addr: busy.Addr().String(), Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- serveUntil(server, make(chan os.Signal)) }()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error for an address already in use")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serveUntil did not return after the listener failed")
	}
}

func TestServeUntil_StopsOnSignal(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	stop := make(chan os.Signal, 1)
	stop <- syscall.SIGTERM

	if err := serveUntil(server, stop); err != nil {
		t.Fatalf("serveUntil: %v", err)
	}
}
