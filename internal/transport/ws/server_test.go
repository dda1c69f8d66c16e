package ws

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"patternbuilder.ai/internal/protocol"
	"patternbuilder.ai/internal/sim/aliases"
	"patternbuilder.ai/internal/sim/world"
)

func startServer(t *testing.T) (*world.World, string) {
	t.Helper()
	w, err := world.New(world.WorldConfig{ID: "ws-test", TickRateHz: 50, StateEveryTicks: 5}, aliases.Defaults())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = w.Run(ctx)
	}()

	srv := httptest.NewServer(NewServer(w, log.New(io.Discard, "", 0)).Handler())
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return w, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func hello(t *testing.T, conn *websocket.Conn) protocol.WelcomeMsg {
	t.Helper()
	require.NoError(t, conn.WriteJSON(protocol.HelloMsg{Type: protocol.TypeHello, ProtocolVersion: protocol.Version, ClientName: "test"}))
	var welcome protocol.WelcomeMsg
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	require.NoError(t, conn.ReadJSON(&welcome))
	return welcome
}

// readAck skips STATE pushes until the ACK for id arrives.
func readAck(t *testing.T, conn *websocket.Conn, id string) protocol.AckMsg {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		base, err := protocol.DecodeBase(msg)
		require.NoError(t, err)
		if base.Type != protocol.TypeAck {
			continue
		}
		var ack protocol.AckMsg
		require.NoError(t, json.Unmarshal(msg, &ack))
		if ack.AckFor == id {
			return ack
		}
	}
}

func TestServer_HelloReqAck(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)

	welcome := hello(t, conn)
	require.Equal(t, protocol.TypeWelcome, welcome.Type)
	require.Equal(t, "ws-test", welcome.WorldParams.WorldID)
	require.Equal(t, 20, welcome.WorldParams.TimerFull)
	require.Equal(t, aliases.Defaults().Digest(), welcome.AliasesDigest)
	require.NotEmpty(t, welcome.SessionID)

	place := protocol.ReqMsg{Type: protocol.TypeReq, ProtocolVersion: protocol.Version, ID: "r1", Op: protocol.OpPlaceMachine, Machine: [3]int{1, 2, 3}}
	require.NoError(t, conn.WriteJSON(place))
	ack := readAck(t, conn, "r1")
	require.True(t, ack.Accepted, "ack: %+v", ack)

	place.ID = "r2"
	require.NoError(t, conn.WriteJSON(place))
	ack = readAck(t, conn, "r2")
	require.False(t, ack.Accepted)
	require.Equal(t, protocol.ErrConflict, ack.Code)

	// STATE pushes carry the new machine.
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var st protocol.StateMsg
		require.NoError(t, json.Unmarshal(msg, &st))
		if st.Type != protocol.TypeState {
			continue
		}
		require.Len(t, st.Machines, 1)
		require.Equal(t, [3]int{1, 2, 3}, st.Machines[0].Pos)
		break
	}
}

func TestServer_RejectsBadRequests(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)
	hello(t, conn)

	require.NoError(t, conn.WriteJSON(protocol.ReqMsg{Type: protocol.TypeReq, ProtocolVersion: "0.9", ID: "old", Op: protocol.OpCharge}))
	ack := readAck(t, conn, "old")
	require.Equal(t, protocol.ErrProtoVersion, ack.Code)

	require.NoError(t, conn.WriteJSON(protocol.ReqMsg{Type: protocol.TypeReq, ProtocolVersion: protocol.Version, ID: "noop"}))
	ack = readAck(t, conn, "noop")
	require.Equal(t, protocol.ErrProtoBadRequest, ack.Code)
}

func TestServer_RequiresHello(t *testing.T) {
	_, url := startServer(t)
	conn := dial(t, url)

	require.NoError(t, conn.WriteJSON(protocol.ReqMsg{Type: protocol.TypeReq, ProtocolVersion: protocol.Version, ID: "x", Op: protocol.OpCharge}))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	require.True(t, websocket.IsCloseError(err, websocket.ClosePolicyViolation), "err: %v", err)
}
