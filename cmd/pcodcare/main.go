package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"github.com/lmittmann/tint"
	log "log/slog"

	"pcodcare/internal/completion"
	"pcodcare/internal/config"
	"pcodcare/internal/conversation"
	"pcodcare/internal/faq"
	"pcodcare/internal/ipc"
	"pcodcare/internal/proxy"
	"pcodcare/internal/server"
	"pcodcare/internal/voice"
	"pcodcare/internal/voice/device"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	addr := cli.StringP("addr", "a", "", "Widget listen address (overrides PCODCARE_ADDR)")
	proxyAddr := cli.StringP("proxy", "p", "", "Socks proxy address for the completion service")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	voiceOn := cli.BoolP("voice", "v", false, "Use the local microphone and speaker")
	socket := cli.StringP("socket", "s", "", "Control socket path")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level: logLevelMap[*logLevel],
	})))

	log.Info("Booting up")

	if err := godotenv.Load(*envFile); err != nil {
		log.Debug("No env file loaded", "path", *envFile, "err", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config", "err", err)
		os.Exit(1)
	}
	if cli.CommandLine.Changed("addr") {
		cfg.Addr = *addr
	}
	if cli.CommandLine.Changed("proxy") {
		cfg.Proxy = *proxyAddr
	}
	if cli.CommandLine.Changed("voice") {
		cfg.Voice.Enabled = *voiceOn
	}
	if cli.CommandLine.Changed("socket") {
		cfg.Socket = *socket
	}
	if err := cfg.Validate(); err != nil {
		log.Error("Invalid config", "err", err)
		os.Exit(1)
	}

	httpClient, err := proxy.NewHTTPClient(cfg.Proxy, cfg.Completion.Timeout)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.Proxy, "err", err)
		os.Exit(1)
	}

	cc := cfg.CompletionConfig()
	cc.HTTPClient = httpClient
	completer := completion.New(cc)

	log.Debug("Loaded completion client", "model", cc.Model, "base", cc.BaseURL)

	widgets := server.Config{
		Completer:      completer,
		FAQ:            faq.Default(),
		Timeout:        cfg.Completion.Timeout,
		AllowedOrigins: cfg.AllowedOrigins,
	}

	var local *localVoice
	if cfg.Voice.Enabled {
		local, err = startLocalVoice(cfg, completer)
		switch {
		case errors.Is(err, voice.ErrUnsupported):
			log.Warn("Voice requested but this build has no voice support")
		case err != nil:
			log.Error("Failed to start voice", "err", err)
			os.Exit(1)
		default:
			widgets.Clips = local.dev
		}
	}

	widget := server.New(widgets)
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     widget.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	log.Info("Boot up - successful")

	exitCode := 0
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		log.Error("Server failed", "err", err)
		exitCode = 1
	}
	stop()

	log.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", "err", err)
	}
	if err := widget.Shutdown(shutdownCtx); err != nil {
		log.Error("Widgets forced to disconnect", "err", err)
	}
	if local != nil {
		local.Close()
	}
	cancel()

	log.Info("Server stopped successfully")
	os.Exit(exitCode)
}

// localVoice is the conversation held with whoever sits at the machine.
type localVoice struct {
	dev voiceDevice
	ctl interface{ Close() error }
	mgr interface{ Close() }
}

type voiceDevice interface {
	server.ClipTranscriber
	Close() error
}

// startLocalVoice opens the microphone and speaker and drives one
// conversation from the control socket.
func startLocalVoice(cfg *config.Config, completer conversation.Completer) (*localVoice, error) {
	dev, err := device.Open(cfg.DeviceConfig())
	if err != nil {
		return nil, err
	}

	log.Debug("Loaded voice device", "model", cfg.Voice.WhisperModel)

	mgr := conversation.New(completer, conversation.Options{
		Speaker: dev,
		Timeout: cfg.Completion.Timeout,
		Logger:  log.With("session", "local"),
	})
	mgr.Subscribe(logTimeline)

	bridge := voice.NewBridge(dev, mgr)
	bridge.OnPartial(func(text string) {
		log.Debug("Heard", "text", text)
	})

	ctl, err := ipc.StartServer(cfg.SocketPath(), controlHandler(bridge))
	if err != nil {
		mgr.Close()
		dev.Close()
		return nil, fmt.Errorf("control socket: %w", err)
	}

	log.Info("Listening for control commands", "socket", ctl.Path())
	return &localVoice{dev: dev, ctl: ctl, mgr: mgr}, nil
}

// Close stops taking commands, lets the pending reply settle, then releases
// the audio device.
func (l *localVoice) Close() {
	if err := l.ctl.Close(); err != nil {
		log.Warn("Failed to close control socket", "err", err)
	}
	l.mgr.Close()
	if err := l.dev.Close(); err != nil {
		log.Warn("Failed to close voice device", "err", err)
	}
}

type voiceControl interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Toggle(ctx context.Context) error
	Listen(ctx context.Context) error
	Clear()
}

func controlHandler(vc voiceControl) ipc.Handler {
	return func(ctx context.Context, msg ipc.ControlMessage) error {
		log.Info("Control command", "cmd", msg.Cmd)

		switch msg.Cmd {
		case ipc.CmdStart:
			return vc.Start(ctx)
		case ipc.CmdStop:
			return vc.Stop(ctx)
		case ipc.CmdToggle:
			return vc.Toggle(ctx)
		case ipc.CmdAsk:
			return vc.Listen(ctx)
		case ipc.CmdClear:
			vc.Clear()
			return nil
		default:
			return fmt.Errorf("%w: %q", ipc.ErrUnknownCommand, msg.Cmd)
		}
	}
}

func logTimeline(ev conversation.Event) {
	switch ev.Kind {
	case conversation.EventAppend:
		log.Info("──────── PCOD Care ────────")
		log.Info(string(ev.Message.Role), "text", ev.Message.Content)
	case conversation.EventNotice:
		log.Warn(ev.Text)
	case conversation.EventPending:
		log.Debug("Pending", "pending", ev.Pending)
	}
}
