// File: wshandshake/handshake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Upgrader performs the HTTP/1.1 Upgrade handshake and hands the resulting
// raw connection to wsconn.New. The header validation and Sec-WebSocket-
// Accept computation are grounded on the teacher's protocol.DoHandshakeCore,
// adapted from reading a raw io.Reader to operating on an already-routed
// *http.Request (go-chi hands us one) plus http.Hijacker, since an HTTP
// server has already parsed the request line and headers by the time a
// handler runs.

package wshandshake

import (
	"bufio"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/momentics/wscore/wsconn"
	"github.com/momentics/wscore/wsframe"
)

const (
	webSocketGUID            = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"
	headerSecWebSocketKey    = "Sec-WebSocket-Key"
	headerSecWebSocketVer    = "Sec-WebSocket-Version"
	requiredWebSocketVersion = "13"
)

var (
	// ErrInvalidUpgradeHeaders reports a request missing Connection: Upgrade
	// or Upgrade: websocket.
	ErrInvalidUpgradeHeaders = errors.New("wshandshake: invalid upgrade headers")
	// ErrBadWebSocketVersion reports a Sec-WebSocket-Version other than 13.
	ErrBadWebSocketVersion = errors.New("wshandshake: unsupported Sec-WebSocket-Version, only 13 is accepted")
	// ErrMissingWebSocketKey reports a request with no Sec-WebSocket-Key.
	ErrMissingWebSocketKey = errors.New("wshandshake: missing Sec-WebSocket-Key header")
	// ErrNotHijackable reports a ResponseWriter that cannot yield the raw
	// connection (e.g. under certain test recorders or HTTP/2).
	ErrNotHijackable = errors.New("wshandshake: response writer does not support hijacking")
)

// PolicyFunc lets the caller vary wsconn.Policy per request (by path, header,
// subprotocol, ...). A nil PolicyFunc makes Upgrader use DefaultPolicy.
type PolicyFunc func(r *http.Request) wsconn.Policy

// CallbacksFunc builds the wsconn.Callbacks for one accepted connection.
type CallbacksFunc func(r *http.Request, conn *wsconn.Conn) wsconn.Callbacks

// Upgrader turns accepted HTTP requests into running wsconn.Conn actors.
type Upgrader struct {
	Policy    PolicyFunc
	Callbacks CallbacksFunc

	// Registry, when set, tracks every connection this Upgrader accepts so
	// it can be listed by the /debug/conns endpoint (see registry.go).
	Registry *Registry
}

// Upgrade validates the handshake, writes the 101 response, hijacks the
// underlying net.Conn, and starts a wsconn.Conn bound to it with
// RoleServer. It does not block; the connection runs on its own goroutines
// after Start.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*wsconn.Conn, error) {
	if !headerContainsToken(r.Header, "Connection", "upgrade") ||
		!headerContainsToken(r.Header, "Upgrade", "websocket") {
		return nil, ErrInvalidUpgradeHeaders
	}
	if r.Header.Get(headerSecWebSocketVer) != requiredWebSocketVersion {
		return nil, ErrBadWebSocketVersion
	}
	key := r.Header.Get(headerSecWebSocketKey)
	if key == "" {
		return nil, ErrMissingWebSocketKey
	}
	accept := acceptKey(key)

	hj, ok := w.(http.Hijacker)
	if !ok {
		return nil, ErrNotHijackable
	}
	netConn, rw, err := hj.Hijack()
	if err != nil {
		return nil, fmt.Errorf("wshandshake: hijack failed: %w", err)
	}
	if rw.Reader.Buffered() > 0 {
		// A pipelined first frame already sitting in the bufio.Reader: drain
		// it into a wrapper so no bytes are lost ahead of raw net.Conn reads.
		netConn = &bufferedConn{Conn: netConn, pre: drainBuffered(rw)}
	}

	resp := "HTTP/1.1 101 Switching Protocols\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Accept: " + accept + "\r\n\r\n"
	if _, err := netConn.Write([]byte(resp)); err != nil {
		netConn.Close()
		return nil, fmt.Errorf("wshandshake: writing 101 response: %w", err)
	}

	policy := wsconn.DefaultPolicy(wsframe.RoleServer)
	if u.Policy != nil {
		policy = u.Policy(r)
	}
	policy.Role = wsframe.RoleServer

	var cb wsconn.Callbacks
	conn := wsconn.New(netConn, policy, nil, wsconn.Callbacks{})
	if u.Callbacks != nil {
		cb = u.Callbacks(r, conn)
	}
	conn.SetCallbacks(cb)

	if u.Registry != nil {
		u.Registry.add(conn)
		existing := cb.OnClose
		cb.OnClose = func(code uint16, reason string) {
			u.Registry.remove(conn)
			if existing != nil {
				existing(code, reason)
			}
		}
		conn.SetCallbacks(cb)
	}

	conn.Start()
	return conn, nil
}

// Handler adapts Upgrade into a plain http.Handler mountable on a chi route
// (r.Get("/ws", upgrader.Handler().ServeHTTP)); handshake failures are reported as
// 400 Bad Request without ever reaching the hijack step.
func (u *Upgrader) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := u.Upgrade(w, r); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	})
}

func acceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey + webSocketGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func headerContainsToken(h http.Header, name, token string) bool {
	for _, v := range h[http.CanonicalHeaderKey(name)] {
		for _, part := range strings.Split(v, ",") {
			if strings.EqualFold(strings.TrimSpace(part), token) {
				return true
			}
		}
	}
	return false
}

// bufferedConn prepends bytes already consumed into the hijacked
// bufio.Reader onto subsequent net.Conn reads.
type bufferedConn struct {
	net.Conn
	pre []byte
}

func (b *bufferedConn) Read(p []byte) (int, error) {
	if len(b.pre) > 0 {
		n := copy(p, b.pre)
		b.pre = b.pre[n:]
		return n, nil
	}
	return b.Conn.Read(p)
}

func drainBuffered(rw *bufio.ReadWriter) []byte {
	n := rw.Reader.Buffered()
	buf := make([]byte, n)
	_, _ = rw.Reader.Read(buf)
	return buf
}
