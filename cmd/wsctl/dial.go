// File: cmd/wsctl/dial.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// dial is a minimal interactive client: it performs the HTTP Upgrade
// handshake itself (client side of wshandshake.Upgrader's server side),
// then relays stdin lines as TEXT messages and prints inbound messages to
// stdout, until interrupted or the peer closes.

package main

import (
	"bufio"
	"crypto/rand"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/momentics/wscore/wsconn"
	"github.com/momentics/wscore/wsframe"
	"github.com/momentics/wscore/wsmsg"
)

func dialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dial <ws-url>",
		Short: "Connect to a WebSocket listener and relay stdin as TEXT messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDial(args[0])
		},
	}
	return cmd
}

func runDial(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parsing url: %w", err)
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "80")
	}

	conn, err := net.DialTimeout("tcp", host, 5*time.Second)
	if err != nil {
		return fmt.Errorf("dial %s: %w", host, err)
	}

	key := clientKey()
	path := u.Path
	if path == "" {
		path = "/"
	}
	req := "GET " + path + " HTTP/1.1\r\n" +
		"Host: " + u.Host + "\r\n" +
		"Upgrade: websocket\r\n" +
		"Connection: Upgrade\r\n" +
		"Sec-WebSocket-Key: " + key + "\r\n" +
		"Sec-WebSocket-Version: 13\r\n\r\n"
	if _, err := conn.Write([]byte(req)); err != nil {
		return fmt.Errorf("writing handshake request: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, nil)
	if err != nil {
		return fmt.Errorf("reading handshake response: %w", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		return fmt.Errorf("server refused upgrade: %s", resp.Status)
	}
	if got, want := resp.Header.Get("Sec-WebSocket-Accept"), acceptKeyFor(key); got != want {
		return fmt.Errorf("Sec-WebSocket-Accept mismatch: got %q want %q", got, want)
	}

	policy := wsconn.DefaultPolicy(wsframe.RoleClient)
	wsc := wsconn.New(conn, policy, wsframe.NewRandomMasker(), wsconn.Callbacks{
		AutoPong: true,
		OnMessage: func(payload []byte, kind wsmsg.Kind) {
			fmt.Println(string(payload))
		},
		OnClose: func(code uint16, reason string) {
			fmt.Fprintf(os.Stderr, "wsctl: connection closed (%d) %s\n", code, reason)
			os.Exit(0)
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "wsctl: connection error: %v\n", err)
		},
	})
	wsc.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		wsc.RequestClose(wsframe.CloseNormalClosure, "")
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if _, err := wsc.SendText(scanner.Bytes(), 0); err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
	wsc.RequestClose(wsframe.CloseNormalClosure, "")
	return nil
}

func clientKey() string {
	var raw [16]byte
	_, _ = rand.Read(raw[:])
	return base64.StdEncoding.EncodeToString(raw[:])
}

func acceptKeyFor(key string) string {
	h := sha1.New()
	h.Write([]byte(key + "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}
