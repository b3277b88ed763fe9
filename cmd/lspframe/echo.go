package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"

	"github.com/gossip-lsp/lspframe"
	"github.com/gossip-lsp/lspframe/telemetry"
	"github.com/gossip-lsp/lspframe/transport"
)

func echoCmd(g *globals) *cobra.Command {
	var (
		tcp         string
		socket      string
		pipe        string
		ws          string
		nodeIPC     bool
		readPolicy  string
		readSize    int
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Frame every received payload back to the peer",
		Long: `Serve one connection and send each received payload back unchanged.
Useful as a reference peer when testing LSP clients and transports.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, stop, err := g.loadSettings()
			if err != nil {
				return err
			}
			defer stop()
			settings := *store.Get()
			if cmd.Flags().Changed("read-policy") {
				settings.ReadPolicy = readPolicy
			}
			if cmd.Flags().Changed("read-size") {
				settings.ReadSize = readSize
			}
			if cmd.Flags().Changed("metrics-addr") {
				settings.MetricsAddr = metricsAddr
			}
			if err := settings.Validate(); err != nil {
				return err
			}

			var medium lspframe.ServeOption
			switch {
			case tcp != "":
				medium = lspframe.WithTCP(tcp)
			case socket != "":
				medium = lspframe.WithSocket(socket)
			case pipe != "":
				medium = lspframe.WithPipe(pipe)
			case ws != "":
				medium = lspframe.WithWebSocket(ws)
			case nodeIPC:
				medium = lspframe.WithNodeIPC()
			default:
				medium = lspframe.WithStdio()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector())
			span := telemetry.Tracing(ctx, telemetry.WithAttributes(attribute.String("lspframe.command", "echo")))
			defer span.End()

			opts := []lspframe.ServeOption{
				medium,
				lspframe.WithLogger(g.logger),
				lspframe.WithSettings(&settings),
				lspframe.WithObserver(telemetry.Logging(g.logger)),
				lspframe.WithObserver(telemetry.NewPrometheus(telemetry.WithRegistry(reg))),
				lspframe.WithObserver(span),
			}

			if settings.MetricsAddr != "" {
				srv := metricsServer(settings.MetricsAddr, reg)
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						g.logger.Error("metrics server failed", "addr", settings.MetricsAddr, "error", err)
					}
				}()
				defer func() {
					sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
					defer scancel()
					srv.Shutdown(sctx)
				}()
				g.logger.Info("serving metrics", "addr", settings.MetricsAddr)
			}

			err = lspframe.Serve(ctx, lspframe.HandlerFunc(func(s *lspframe.Session, p []byte) {
				s.Send(p)
			}), opts...)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	f := cmd.Flags()
	f.Bool("stdio", false, "serve over stdin/stdout (default)")
	f.StringVar(&tcp, "tcp", "", "listen on a TCP address, e.g. :9257")
	f.StringVar(&socket, "socket", "", "listen on a Unix domain socket path")
	f.StringVar(&pipe, "pipe", "", "listen on a named pipe")
	f.StringVar(&ws, "ws", "", "listen for a WebSocket client, e.g. :9258")
	f.BoolVar(&nodeIPC, "node-ipc", false, "serve the VS Code extension host over Node IPC")
	f.StringVar(&readPolicy, "read-policy", transport.ReadOnce.String(), "reads per readable event: once or until-blocked")
	f.IntVar(&readSize, "read-size", transport.DefaultReadSize, "bytes requested per read")
	f.StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")
	cmd.MarkFlagsMutuallyExclusive("stdio", "tcp", "socket", "pipe", "ws", "node-ipc")

	return cmd
}

// metricsServer exposes the registry and a liveness probe.
func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	return &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
