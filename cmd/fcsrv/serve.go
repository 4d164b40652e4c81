package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"fcsrv/internal/app"
	"fcsrv/internal/config"
	"fcsrv/internal/httpapi"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	addr         string
	threads      int
	allocator    string
	limit        int
	workers      int
	apiKey       string
	onnxLib      string
	preload      string
	tlsCert      string
	tlsKey       string
	cors         string
	maxBodyBytes int64
	taskTimeout  int64

	fallback           string
	fallbackKey        string
	fallbackEndpoint   string
	fallbackImageLimit int
}

func newServeCmd(o *options) *cobra.Command {
	so := &serveOptions{}
	cmd := &cobra.Command{
		Use:     "serve",
		Aliases: []string{"run"},
		Short:   "Run the HTTP solver service",
		Example: "  fcsrv serve --addr 0.0.0.0:8000 --fallback capsolver --fallback-key $KEY",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, o, so.apply)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
	f := cmd.Flags()
	f.StringVar(&so.addr, "addr", "", "Listen address (env FCSRV_ADDR, default "+config.DefaultAddr+")")
	f.IntVar(&so.threads, "threads", 0, "Intra-op threads per inference session (default 1)")
	f.StringVar(&so.allocator, "allocator", "", "Session allocator: arena|device (default device)")
	f.IntVar(&so.limit, "limit", 0, "Maximum images per task (default 3)")
	f.IntVar(&so.workers, "workers", 0, "Concurrent inferences per task (default NumCPU)")
	f.StringVar(&so.apiKey, "api-key", "", "Require this key on /task (env FCSRV_API_KEY)")
	f.StringVar(&so.onnxLib, "onnxruntime-lib", "", "Path to the onnxruntime shared library (env ONNXRUNTIME_LIB)")
	f.StringVar(&so.preload, "preload", "", "Comma-separated variants to build at startup")
	f.StringVar(&so.tlsCert, "tls-cert", "", "TLS certificate file")
	f.StringVar(&so.tlsKey, "tls-key", "", "TLS private key file")
	f.StringVar(&so.cors, "cors-origins", "", "Comma-separated allowed CORS origins; enables CORS")
	f.Int64Var(&so.maxBodyBytes, "max-body-bytes", 0, "Maximum /task body size (default 8MiB)")
	f.Int64Var(&so.taskTimeout, "task-timeout", 0, "Per task timeout in seconds (0 disables)")
	f.StringVar(&so.fallback, "fallback", "", "Fallback provider: yescaptcha|capsolver")
	f.StringVar(&so.fallbackKey, "fallback-key", "", "Fallback provider client key (env FCSRV_FALLBACK_KEY)")
	f.StringVar(&so.fallbackEndpoint, "fallback-endpoint", "", "Override the provider createTask URL")
	f.IntVar(&so.fallbackImageLimit, "fallback-image-limit", 0, "Images per request for batched providers")
	return cmd
}

func (so *serveOptions) apply(flags *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, fn func()) {
		if flags.Changed(name) {
			fn()
		}
	}
	set("addr", func() { cfg.Addr = so.addr })
	set("threads", func() { cfg.Threads = so.threads })
	set("allocator", func() { cfg.Allocator = so.allocator })
	set("limit", func() { cfg.Limit = so.limit })
	set("workers", func() { cfg.Workers = so.workers })
	set("api-key", func() { cfg.APIKey = so.apiKey })
	set("onnxruntime-lib", func() { cfg.ONNXRuntimeLib = so.onnxLib })
	set("preload", func() { cfg.Preload = splitCSV(so.preload) })
	set("tls-cert", func() { cfg.TLSCert = so.tlsCert })
	set("tls-key", func() { cfg.TLSKey = so.tlsKey })
	set("cors-origins", func() {
		cfg.CORS.Origins = splitCSV(so.cors)
		cfg.CORS.Enabled = len(cfg.CORS.Origins) > 0
	})
	set("max-body-bytes", func() { cfg.MaxBodyBytes = so.maxBodyBytes })
	set("task-timeout", func() { cfg.TaskTimeoutSeconds = so.taskTimeout })
	set("fallback", func() { cfg.Fallback.Provider = so.fallback })
	set("fallback-key", func() { cfg.Fallback.Key = so.fallbackKey })
	set("fallback-endpoint", func() { cfg.Fallback.Endpoint = so.fallbackEndpoint })
	set("fallback-image-limit", func() { cfg.Fallback.ImageLimit = so.fallbackImageLimit })
}

func serve(parent context.Context, cfg config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log := newLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)

	a, err := app.Build(cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("close")
		}
	}()

	httpapi.SetLogger(log.With().Str("component", "http").Logger())
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetTaskTimeoutSeconds(cfg.TaskTimeoutSeconds)
	methods, headers := cfg.CORS.Methods, cfg.CORS.Headers
	if len(methods) == 0 {
		methods = []string{http.MethodGet, http.MethodPost, http.MethodOptions}
	}
	if len(headers) == 0 {
		headers = []string{"Content-Type", "X-Request-ID", "X-Log-Level"}
	}
	httpapi.SetCORSOptions(cfg.CORS.Enabled, cfg.CORS.Origins, methods, headers)

	// Graceful shutdown (Ctrl+C / SIGTERM)
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	httpapi.SetBaseContext(ctx)

	ln, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	srv := &http.Server{
		Handler:           httpapi.NewMux(a),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		if cfg.TLSCert != "" {
			errCh <- srv.ServeTLS(ln, cfg.TLSCert, cfg.TLSKey)
			return
		}
		errCh <- srv.Serve(ln)
	}()
	log.Info().Str("addr", ln.Addr().String()).Bool("tls", cfg.TLSCert != "").Str("version", version).Msg("fcsrv listening")
	a.MarkReady()

	if err := a.Warm(ctx); err != nil {
		log.Warn().Err(err).Msg("preload interrupted")
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
