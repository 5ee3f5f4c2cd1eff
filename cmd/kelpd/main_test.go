package main

import "testing"

func TestRunRejectsMissingArgs(t *testing.T) {
	if code := run(nil); code != 255 {
		t.Fatalf("want exit 255, got %d", code)
	}
}

func TestRunRejectsMalformedListenLocator(t *testing.T) {
	if code := run([]string{"not-a-locator"}); code != 255 {
		t.Fatalf("want exit 255, got %d", code)
	}
}

func TestRunRejectsUnsupportedListenProtocol(t *testing.T) {
	if code := run([]string{"udp/127.0.0.1:0"}); code != 255 {
		t.Fatalf("want exit 255, got %d", code)
	}
}

func TestRunRejectsUnsupportedPeerProtocol(t *testing.T) {
	if code := run([]string{"tcp/127.0.0.1:0", "udp/127.0.0.1:1"}); code != 255 {
		t.Fatalf("want exit 255, got %d", code)
	}
}

func TestRunRejectsUnreachablePeer(t *testing.T) {
	// Nothing listens on loopback port 1, so the peer dial fails; this exercises
	// the dial-failure exit path without needing a live peer process.
	if code := run([]string{"tcp/127.0.0.1:0", "tcp/127.0.0.1:1"}); code != 255 {
		t.Fatalf("want exit 255, got %d", code)
	}
}
