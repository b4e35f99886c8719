package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/homeassistant"
	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/mcp"
	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/secrets"
	"github.com/DEADSEC-SECURITY/claude-home-assistant/internal/tools"
)

const shutdownTimeout = 5 * time.Second

func serveCmd(args []string) int {
	return runServe(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

func runServe(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "optional YAML config file")
	dotenvPath := fs.String("dotenv", "", "load environment variables from a .env file before reading config")
	fs.String("token-ref", secrets.DefaultTokenRef, "supervisor token reference (env:NAME|file:/path|raw:value)")
	fs.Duration("timeout", homeassistant.DefaultTimeout, "per-request upstream timeout")
	fs.String("log-level", "info", "log level (debug|info|warn|error)")
	fs.String("log-file", "", "append logs to this file instead of stderr")
	fs.String("http-listen", "", "also serve MCP over HTTP on this address (POST /mcp)")
	fs.String("http-token-ref", "", "bearer token required on POST /mcp (env:NAME|file:/path|raw:value)")
	fs.Bool("stdio", true, "serve MCP over stdin/stdout")
	fs.String("otel-endpoint", "", "OTLP/HTTP trace collector URL; tracing is off when empty")
	fs.Bool("otel-insecure", false, "use plain HTTP for the trace collector")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(stderr, "serve: unexpected positional arguments")
		return 2
	}

	if *dotenvPath != "" {
		if err := loadDotenv(*dotenvPath); err != nil {
			fmt.Fprintln(stderr, err.Error())
			return 2
		}
	}
	cfg, err := loadServeConfig(*configPath, fs)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}

	logger, logCloser, err := newLogger(cfg.LogLevel, cfg.LogFile, stderr)
	if err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 2
	}
	if logCloser != nil {
		defer logCloser.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.enabled() {
		shutdown, err := initTracing(ctx, cfg.Tracing, func(err error) {
			logger.Warn("otel_error", slog.Any("err", err))
		})
		if err != nil {
			logger.Error("tracing_init_failed", slog.Any("err", err))
			return 1
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logger.Warn("tracing_shutdown_failed", slog.Any("err", err))
			}
		}()
	}

	token, err := secrets.LoadRef(cfg.TokenRef)
	if err != nil {
		// Upstream calls still go out and fail with an authentication error.
		logger.Warn("supervisor_token_missing",
			slog.String("ref", cfg.TokenRef),
			slog.Any("err", err),
		)
	}

	client := homeassistant.New(homeassistant.Config{
		Token:   token,
		Timeout: cfg.Timeout,
	})
	registry := tools.NewRegistry(client)
	opts := []mcp.Option{
		mcp.WithLogger(logger),
		mcp.WithVersion(version),
	}
	if cfg.HTTPTokenRef != "" {
		httpToken, err := secrets.LoadRef(cfg.HTTPTokenRef)
		if err != nil {
			logger.Error("http_token_unavailable", slog.String("ref", cfg.HTTPTokenRef), slog.Any("err", err))
			return 1
		}
		opts = append(opts, mcp.WithHTTPAuthorizer(mcp.BearerTokenAuthorizer(httpToken)))
	}
	server := mcp.NewServer(stdin, stdout, registry, opts...)

	if cfg.HTTPListen != "" {
		ln, err := net.Listen("tcp", cfg.HTTPListen)
		if err != nil {
			logger.Error("http_listen_failed", slog.String("addr", cfg.HTTPListen), slog.Any("err", err))
			return 1
		}
		srv := &http.Server{
			Handler:           withAccessLog(logger, server.HTTPHandler()),
			ReadHeaderTimeout: 10 * time.Second,
		}
		serveOnListener(logger, "mcp_http", srv, ln, stop)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
		logger.Info("mcp_http_listening",
			slog.String("addr", ln.Addr().String()),
			slog.Bool("auth", cfg.HTTPTokenRef != ""),
		)
	}

	logger.Info("mcp_serve_start",
		slog.String("version", version),
		slog.Int("tools", len(registry.Descriptors())),
		slog.Duration("timeout", cfg.Timeout),
		slog.Bool("stdio", cfg.Stdio),
		slog.Bool("token_present", client.HasToken()),
	)

	if !cfg.Stdio {
		<-ctx.Done()
		logger.Info("mcp_serve_stop")
		return 0
	}
	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("mcp_serve_failed", slog.Any("err", err))
		return 1
	}
	logger.Info("mcp_serve_stop")
	return 0
}
