package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tuyactl/config"
	"tuyactl/internal/application"
	"tuyactl/internal/domain"
	"tuyactl/internal/infra/envfile"
	"tuyactl/internal/infra/tuya"
)

const usage = `usage: tuyactl [flags] <command> [args]

commands:
  token                 authenticate and print the access token
  devices               list devices linked to the account
  status [device]       print device data points
  functions [device]    print the command codes a device accepts
  on [gang]             turn a switch gang on (all gangs when omitted)
  off [gang]            turn a switch gang off (all gangs when omitted)
  send <code=value>     send a raw command, e.g. send switch_1=true

[device] defaults to the configured device id.`

func main() {
	configPath := flag.String("config", "", "path to YAML config file (overrides .env)")
	envPath := flag.String("env", ".env", "path to dotenv file")
	device := flag.String("device", "", "device name or id (overrides configured device)")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := loadConfig(*configPath, *envPath)
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		logger.Info("interrupted")
		cancel()
	}()

	var client *tuya.Client
	if cfg.Tuya.BaseURL != "" {
		client = tuya.NewClientWithURL(cfg.Tuya.AccessID, cfg.Tuya.AccessKey, cfg.Tuya.BaseURL)
	} else {
		client = tuya.NewClient(cfg.Tuya.AccessID, cfg.Tuya.AccessKey, cfg.Tuya.Region)
	}
	if cfg.Tuya.TokenFile != "" {
		client.SetTokenStore(envfile.NewStore(cfg.Tuya.TokenFile))
	}

	registry := tuya.NewRegistry(client, logger)
	controller := application.NewController(client, registry, logger)

	target := *device
	if target == "" {
		target = cfg.Tuya.DeviceID
	}

	if err := run(ctx, flag.Args(), client, controller, target); err != nil {
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, client *tuya.Client, controller *application.Controller, target string) error {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("no command given")
	}

	switch args[0] {
	case "token":
		token, err := client.Authenticate(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("access token:  %s\n", token.AccessToken)
		fmt.Printf("refresh token: %s\n", token.RefreshToken)
		fmt.Printf("expires at:    %s\n", token.ExpiresAt.Format(time.RFC3339))
		return nil

	case "devices":
		devices, err := controller.Devices(ctx)
		if err != nil {
			return err
		}
		return printJSON(devices)

	case "status":
		status, err := controller.Status(ctx, pickTarget(args[1:], target))
		if err != nil {
			return err
		}
		return printJSON(status)

	case "functions":
		functions, err := controller.Functions(ctx, pickTarget(args[1:], target))
		if err != nil {
			return err
		}
		return printJSON(functions)

	case "on", "off":
		gang, err := parseGang(args[1:])
		if err != nil {
			return err
		}
		return controller.Switch(ctx, target, gang, args[0] == "on")

	case "send":
		if len(args) < 2 {
			return fmt.Errorf("send requires a code=value argument")
		}
		cmd, err := parseCommand(args[1])
		if err != nil {
			return err
		}
		return controller.Send(ctx, target, cmd)

	default:
		fmt.Fprintln(os.Stderr, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func loadConfig(configPath, envPath string) (*config.Config, error) {
	if configPath != "" {
		return config.Load(configPath)
	}
	return config.FromEnv(envPath)
}

func pickTarget(args []string, fallback string) string {
	if len(args) > 0 {
		return args[0]
	}
	return fallback
}

func parseGang(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	var gang int
	if _, err := fmt.Sscanf(args[0], "%d", &gang); err != nil || gang < 1 {
		return 0, fmt.Errorf("invalid gang number: %s", args[0])
	}
	return gang, nil
}

// parseCommand splits code=value; the value is decoded as JSON so booleans
// and numbers keep their type, anything else stays a string.
func parseCommand(arg string) (domain.Command, error) {
	code, raw, ok := strings.Cut(arg, "=")
	if !ok || code == "" {
		return domain.Command{}, fmt.Errorf("expected code=value, got %q", arg)
	}

	var value any
	if err := json.Unmarshal([]byte(raw), &value); err != nil {
		value = raw
	}

	return domain.Command{Code: code, Value: value}, nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

func setupLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
