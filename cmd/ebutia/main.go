// Command ebutia is the video-to-chatbot prompt relay daemon.
//
// Usage:
//
//	ebutia -serve -config ebutia.yaml       # HTTP (+ optional MCP) daemon
//	ebutia -url <watch-url>                 # one-shot summarize
//	ebutia -ask "question" [-url <url>]     # one-shot chat prompt
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	_ "modernc.org/sqlite"

	"github.com/Lanshuns/ebutia/browser"
	"github.com/Lanshuns/ebutia/connectivity"
	"github.com/Lanshuns/ebutia/dbopen"
	"github.com/Lanshuns/ebutia/delivery"
	"github.com/Lanshuns/ebutia/filler"
	"github.com/Lanshuns/ebutia/handoff"
	"github.com/Lanshuns/ebutia/registry"
	"github.com/Lanshuns/ebutia/relay"
	"github.com/Lanshuns/ebutia/settings"
	"github.com/Lanshuns/ebutia/transcript"
)

func main() {
	configPath := flag.String("config", "", "path to ebutia.yaml config file")
	serve := flag.Bool("serve", false, "run the relay daemon")
	serveMCP := flag.Bool("mcp", false, "with -serve, also expose MCP tools on stdio")
	videoURL := flag.String("url", "", "watch-page URL to summarize (or to anchor -ask)")
	askText := flag.String("ask", "", "send a chat prompt instead of summarizing")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *serve, *serveMCP, *videoURL, *askText); err != nil {
		if errors.Is(err, relay.ErrCancelled) {
			os.Exit(2)
		}
		logger.Error("ebutia: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string, serve, serveMCP bool, videoURL, askText string) error {
	if !serve && videoURL == "" && askText == "" {
		fmt.Fprintln(os.Stderr, "usage: ebutia -serve | -url <watch-url> | -ask <text> [-url <url>]")
		os.Exit(1)
	}

	cfg := relay.DefaultDaemonConfig()
	if configPath != "" {
		loaded, err := relay.LoadConfigFile(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}

	db, err := dbopen.Open(cfg.DBPath,
		dbopen.WithBusyTimeout(5000),
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(settings.Schema),
		dbopen.WithSchema(handoff.Schema),
		dbopen.WithSchema(transcript.CacheSchema),
		dbopen.WithSchema(connectivity.Schema),
	)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reg, err := loadRegistry(cfg.ChatbotsConfig)
	if err != nil {
		return fmt.Errorf("load chatbot registry: %w", err)
	}

	mode := browser.ModeHeadless
	if cfg.Browser.Mode == "headful" {
		mode = browser.ModeHeadful
	}
	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Mode:             mode,
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	defer mgr.Close()

	settingsStore := settings.NewStore(db)
	handoffStore := handoff.NewStore(db)
	cache := transcript.NewCache(db)

	deliverer := delivery.New(delivery.Config{
		Manager:      mgr,
		Registry:     reg,
		Handoff:      handoffStore,
		Driver:       filler.New(logger),
		AllowPrivate: cfg.AllowPrivateWindows,
		SaveGeometry: saveGeometry(settingsStore, logger),
		Logger:       logger,
	})

	var prompter relay.Prompter
	if !serve {
		prompter = &stdinPrompter{}
	}

	rel := relay.New(relay.Config{
		Registry:  reg,
		Settings:  settingsStore,
		Probe:     transcript.NewProbe(nil),
		Extractor: transcript.NewExtractor(reg.Watch(), cache, logger),
		Manager:   mgr,
		Deliverer: deliverer,
		Prompter:  prompter,
		Logger:    logger,
	})

	router := connectivity.New(connectivity.WithLogger(logger))
	router.RegisterTransport("http", connectivity.HTTPFactory())
	rel.RegisterConnectivity(router)
	defer router.Close()
	go router.Watch(ctx, db, cfg.RoutesWatchInterval)

	if serve {
		return runServe(ctx, logger, cfg, rel, router, serveMCP)
	}
	return runOneShot(ctx, rel, videoURL, askText)
}

func loadRegistry(path string) (*registry.Registry, error) {
	if path != "" {
		return registry.LoadFile(path)
	}
	return registry.LoadDefault()
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *relay.DaemonConfig, rel *relay.Relay, router *connectivity.Router, serveMCP bool) error {
	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           relay.HTTPHandler(router, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if serveMCP {
		mcpSrv := mcp.NewServer(&mcp.Implementation{
			Name:    "ebutia",
			Version: "1.0.0",
		}, nil)
		rel.RegisterMCP(mcpSrv)
		go func() {
			if err := mcpSrv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
				logger.Error("mcp server", "error", err)
			}
		}()
	}

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runOneShot(ctx context.Context, rel *relay.Relay, videoURL, askText string) error {
	var (
		res *relay.ActionResult
		err error
	)
	if askText != "" {
		res, err = rel.Ask(ctx, askText, videoURL, videoURL != "")
	} else {
		res, err = rel.Summarize(ctx, videoURL)
	}
	if err != nil {
		return err
	}

	data, _ := json.MarshalIndent(res, "", "  ")
	os.Stdout.Write(data)
	os.Stdout.Write([]byte("\n"))

	// Leave the delivered page up until the operator is done with it.
	fmt.Fprintln(os.Stderr, "delivered; press Ctrl-C to close the browser")
	<-ctx.Done()
	return nil
}

// saveGeometry persists popup window moves back into the settings record.
func saveGeometry(store *settings.Store, logger *slog.Logger) func(context.Context, settings.WindowPosition) {
	return func(ctx context.Context, pos settings.WindowPosition) {
		s, err := store.Get(ctx)
		if err != nil {
			logger.Warn("geometry save: settings read failed", "error", err)
			return
		}
		s.WindowPosition = &pos
		if err := store.Set(ctx, s); err != nil {
			logger.Warn("geometry save failed", "error", err)
			return
		}
		logger.Debug("popup geometry saved", "left", pos.Left, "top", pos.Top,
			"width", pos.Width, "height", pos.Height)
	}
}

// stdinPrompter asks the transcript-fallback question on the terminal.
type stdinPrompter struct{}

func (p *stdinPrompter) NoTranscriptFallback(ctx context.Context, reason string) (relay.FallbackChoice, error) {
	fmt.Fprintf(os.Stderr, "%s\nFall back to a URL-based summary? [o]nce / [a]lways / [c]ancel: ", reason)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return relay.FallbackCancel, nil
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "o", "once":
		return relay.FallbackOnce, nil
	case "a", "always":
		return relay.FallbackAlways, nil
	default:
		return relay.FallbackCancel, nil
	}
}
