// File: tests/integration_echo_test.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// This module exists separately from the root module (its own go.mod),
// mirroring the teacher's own tests/go.mod split: an independent client
// implementation (github.com/gorilla/websocket) drives the server this
// repo builds, so a bug shared between the server's encoder and decoder
// cannot hide behind a self-consistent round trip the way an in-module
// test using only this repo's own client code could.

package tests

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/momentics/wscore/wsconn"
	"github.com/momentics/wscore/wshandshake"
	"github.com/momentics/wscore/wsmsg"
)

func newEchoServer(t *testing.T) *httptest.Server {
	t.Helper()
	upgrader := &wshandshake.Upgrader{
		Callbacks: func(r *http.Request, conn *wsconn.Conn) wsconn.Callbacks {
			return wsconn.Callbacks{
				AutoPong: true,
				OnMessage: func(payload []byte, kind wsmsg.Kind) {
					switch kind {
					case wsmsg.KindText:
						conn.SendText(payload, 0)
					case wsmsg.KindBinary:
						conn.SendBinary(payload, 0)
					}
				},
			}
		},
	}
	r := chi.NewRouter()
	wshandshake.Mount(r, "/ws", upgrader)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func dialGorilla(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + srv.URL[len("http"):] + "/ws"
	c, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("gorilla dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestIntegration_EchoesTextMessage(t *testing.T) {
	srv := newEchoServer(t)
	c := dialGorilla(t, srv)

	if err := c.WriteMessage(websocket.TextMessage, []byte("hello from gorilla")); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	kind, payload, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("kind = %d, want TextMessage", kind)
	}
	if string(payload) != "hello from gorilla" {
		t.Fatalf("payload = %q, want echo of sent text", payload)
	}
}

func TestIntegration_EchoesBinaryMessage(t *testing.T) {
	srv := newEchoServer(t)
	c := dialGorilla(t, srv)

	want := make([]byte, 5000)
	for i := range want {
		want[i] = byte(i)
	}
	if err := c.WriteMessage(websocket.BinaryMessage, want); err != nil {
		t.Fatalf("write: %v", err)
	}
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	kind, payload, err := c.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("kind = %d, want BinaryMessage", kind)
	}
	if len(payload) != len(want) {
		t.Fatalf("payload len = %d, want %d", len(payload), len(want))
	}
	for i := range want {
		if payload[i] != want[i] {
			t.Fatalf("payload[%d] = %d, want %d", i, payload[i], want[i])
		}
	}
}

func TestIntegration_RespondsToPing(t *testing.T) {
	srv := newEchoServer(t)
	c := dialGorilla(t, srv)

	pongCh := make(chan string, 1)
	c.SetPongHandler(func(appData string) error {
		pongCh <- appData
		return nil
	})
	if err := c.WriteControl(websocket.PingMessage, []byte("ping-data"), time.Now().Add(2*time.Second)); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case got := <-pongCh:
		if got != "ping-data" {
			t.Fatalf("pong payload = %q, want ping-data", got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for pong")
	}
}

func TestIntegration_CloseHandshake(t *testing.T) {
	srv := newEchoServer(t)
	c := dialGorilla(t, srv)

	closeCh := make(chan int, 1)
	c.SetCloseHandler(func(code int, text string) error {
		closeCh <- code
		return nil
	})

	deadline := time.Now().Add(2 * time.Second)
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye")
	if err := c.WriteControl(websocket.CloseMessage, msg, deadline); err != nil {
		t.Fatalf("write close: %v", err)
	}

	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			break
		}
	}

	select {
	case code := <-closeCh:
		if code != websocket.CloseNormalClosure {
			t.Fatalf("close code = %d, want %d", code, websocket.CloseNormalClosure)
		}
	default:
		t.Fatal("close handler was never invoked")
	}
}
