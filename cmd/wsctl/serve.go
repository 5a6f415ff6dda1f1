// File: cmd/wsctl/serve.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// serve runs an echo listener: every inbound TEXT/BINARY message is sent
// straight back to its sender. Shutdown handling — signal.Notify on
// SIGINT/SIGTERM, a bounded grace period, forced close past the deadline —
// is grounded on examples/stest/server/main.go's accept-loop shutdown.

package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/momentics/wscore/bufpool"
	"github.com/momentics/wscore/wsconfig"
	"github.com/momentics/wscore/wsconn"
	"github.com/momentics/wscore/wsexec"
	"github.com/momentics/wscore/wsframe"
	"github.com/momentics/wscore/wshandshake"
	"github.com/momentics/wscore/wsmetrics"
	"github.com/momentics/wscore/wsmsg"
	"github.com/momentics/wscore/wstrace"
)

func serveCmd() *cobra.Command {
	var configPath string
	var fragmentThreshold uint64

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a WebSocket echo listener",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := wsconfig.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if fragmentThreshold > 0 {
				cfg.FragmentThreshold = fragmentThreshold
			}
			return runServe(cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "path to an INI config file (optional)")
	cmd.Flags().Uint64Var(&fragmentThreshold, "fragment-threshold", 0, "override the configured outbound fragment threshold")
	return cmd
}

func runServe(cfg *wsconfig.Config) error {
	metrics := wsmetrics.New(wsmetrics.WithNamespace(cfg.MetricsNamespace))
	registry := wshandshake.NewRegistry()

	// One timer wheel and one executor are shared across every connection
	// this process serves (spec.md §5: timeouts "scheduled on a shared
	// timer wheel"; connections dispatched across a shared worker pool),
	// rather than each connection privately owning its own.
	timers := wsexec.NewTimerWheel()
	executor := wsexec.New(cfg.NumWorkers, cfg.NumaNode)
	pool := bufpool.New()

	var tracer *wstrace.Tracer
	if cfg.TracingEnabled {
		tracer = wstrace.New(wstrace.WithServiceName(cfg.TracingServiceName))
	}

	pf := cfg.PolicyFields()
	upgrader := &wshandshake.Upgrader{
		Registry: registry,
		Policy: func(r *http.Request) wsconn.Policy {
			p := wsconn.DefaultPolicy(wsframe.RoleServer)
			p.MaxMessageSize = pf.MaxMessageSize
			p.MaxFramePayloadSize = pf.MaxFramePayloadSize
			p.IdleTimeout = pf.IdleTimeout
			p.CloseTimeout = pf.CloseTimeout
			p.MaxOutboundQueueBytes = pf.MaxOutboundQueueBytes
			p.NumaNode = pf.NumaNode
			p.MetricsNamespace = pf.MetricsNamespace
			p.Pool = pool
			p.Timers = timers
			p.Executor = executor
			return p
		},
		Callbacks: func(r *http.Request, conn *wsconn.Conn) wsconn.Callbacks {
			cb := wsconn.Callbacks{
				AutoPong: true,
				OnMessage: func(payload []byte, kind wsmsg.Kind) {
					switch kind {
					case wsmsg.KindText:
						conn.SendText(payload, cfg.FragmentThreshold)
					case wsmsg.KindBinary:
						conn.SendBinary(payload, cfg.FragmentThreshold)
					}
				},
			}
			if cfg.MetricsEnabled {
				cb = metrics.Callbacks(cb)
			}
			if tracer != nil {
				cb = tracer.Callbacks(r.Context(), cb)
			}
			return cb
		},
	}

	r := chi.NewRouter()
	wshandshake.Mount(r, "/ws", upgrader)
	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{Addr: cfg.ListenAddr, Handler: r}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("wsctl: listening on %s (ws path /ws)", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Println("wsctl: shutdown signal received")
	}

	registry.CloseAll(wsframe.CloseGoingAway, "server shutting down")

	const shutdownTimeout = 15 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("wsctl: forced shutdown after %v: %v", shutdownTimeout, err)
	}
	executor.Close()
	timers.Close()
	log.Println("wsctl: shutdown complete")
	return nil
}
