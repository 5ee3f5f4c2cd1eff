package main

import (
	"fmt"

	"github.com/kelp-mesh/kelp"
	"github.com/kelp-mesh/kelp/transport"
)

// openHandshake performs the dialer's half of the OPEN/ACCEPT exchange:
// send OPEN advertising this process as a peer broker, then wait for the
// remote's ACCEPT. It returns the accepter's peer id for logging.
func openHandshake(link *transport.Link, localID []byte, lease uint64) ([]byte, error) {
	what := kelp.WhatAmIPeer
	if err := link.Send(&kelp.Message{Body: kelp.Open{
		Version: 0,
		What:    &what,
		PeerID:  localID,
		Lease:   lease,
	}}); err != nil {
		return nil, fmt.Errorf("send OPEN: %w", err)
	}

	msg, err := link.Receive()
	if err != nil {
		return nil, fmt.Errorf("receive ACCEPT: %w", err)
	}
	accept, ok := msg.Body.(kelp.Accept)
	if !ok {
		return nil, fmt.Errorf("expected ACCEPT, got %T", msg.Body)
	}
	return accept.AccepterPID, nil
}

// acceptHandshake performs the listener's half: wait for the dialer's
// OPEN, then reply ACCEPT. It returns the what-am-I and peer id the
// dialer advertised, which the caller uses to register the new session.
func acceptHandshake(link *transport.Link, localID []byte, lease uint64) (kelp.WhatAmI, []byte, error) {
	msg, err := link.Receive()
	if err != nil {
		return 0, nil, fmt.Errorf("receive OPEN: %w", err)
	}
	open, ok := msg.Body.(kelp.Open)
	if !ok {
		return 0, nil, fmt.Errorf("expected OPEN, got %T", msg.Body)
	}
	if open.What == nil {
		return 0, nil, fmt.Errorf("OPEN missing what-am-i")
	}

	if err := link.Send(&kelp.Message{Body: kelp.Accept{
		OpenerPID:   open.PeerID,
		AccepterPID: localID,
		Lease:       lease,
	}}); err != nil {
		return 0, nil, fmt.Errorf("send ACCEPT: %w", err)
	}
	return *open.What, open.PeerID, nil
}
