package transport

import (
	"net"
	"testing"

	"github.com/kelp-mesh/kelp"
	"github.com/stretchr/testify/require"
)

func TestLinkSendReceiveRoundTrip(t *testing.T) {
	clientConn, serverConn := net.Pipe()
	client := NewLink(clientConn)
	server := NewLink(serverConn)
	defer client.Close()
	defer server.Close()

	msg := &kelp.Message{Body: kelp.Data{
		Reliable: true,
		SN:       1,
		Key:      kelp.ResKey{Suffix: "/demo/a"},
		Payload:  []byte("hello"),
	}}

	errCh := make(chan error, 1)
	go func() { errCh <- client.Send(msg) }()

	got, err := server.Receive()
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	data, ok := got.Body.(kelp.Data)
	require.True(t, ok)
	require.Equal(t, "/demo/a", data.Key.Suffix)
	require.Equal(t, []byte("hello"), data.Payload)
}

func TestListenAcceptDial(t *testing.T) {
	ln, err := Listen("127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptCh := make(chan *Link, 1)
	go func() {
		conn, err := ln.Accept()
		require.NoError(t, err)
		acceptCh <- conn
	}()

	client, err := Dial(ln.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	server := <-acceptCh
	defer server.Close()

	msg := &kelp.Message{Body: kelp.KeepAlive{PeerID: []byte{1, 2, 3}}}
	require.NoError(t, client.Send(msg))

	got, err := server.Receive()
	require.NoError(t, err)
	ka, ok := got.Body.(kelp.KeepAlive)
	require.True(t, ok)
	require.Equal(t, []byte{1, 2, 3}, ka.PeerID)
}
