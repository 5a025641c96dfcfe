package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Travis-Britz/azddns"
)

var config = struct {
	Path       string
	IP         string
	Interfaces []string
	Setup      bool
	Foreground bool
	NoSchedule bool
	Verbose    bool
}{}

func init() {
	pflag.StringVarP(&config.Path, "config", "c", defaultConfigPath(), "Path to the settings file; state files are kept next to it")
	pflag.StringVar(&config.IP, "ip", "", "Public IP address to set instead of looking it up")
	pflag.StringSliceVar(&config.Interfaces, "interface", nil, "Read the public IP from these network interfaces instead of asking a web service")
	pflag.BoolVar(&config.Setup, "setup", false, "Run the interactive setup even if a settings file exists")
	pflag.BoolVar(&config.Foreground, "foreground", false, "Stay running and update every schedule_minutes instead of registering a crontab entry")
	pflag.BoolVar(&config.NoSchedule, "no-schedule", false, "Do not register the crontab entry")
	pflag.BoolVarP(&config.Verbose, "verbose", "v", false, "Enable verbose logging")
}

const guidance = `
The updater needs a service principal certificate and the coordinates of the record set.
Edit the settings file (or run with --setup) and make sure certificate_path points to a
PEM or PKCS#12 file containing both the certificate and its private key.`

func main() {
	pflag.Parse()
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "azddns: %s\n", err)
		var cerr *azddns.ConfigError
		if errors.As(err, &cerr) {
			fmt.Fprintln(os.Stderr, guidance)
		}
		os.Exit(1)
	}
}

func run() error {
	path, err := filepath.Abs(config.Path)
	if err != nil {
		return fmt.Errorf("error resolving config path: %w", err)
	}
	cfg, err := loadOrCreate(path)
	if err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogFile, config.Verbose)
	if err != nil {
		return fmt.Errorf("error creating logger: %w", err)
	}
	defer logger.Sync()
	logger.Debug("config is valid", zap.String("path", path), zap.String("record", cfg.FQDN()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stateDir := filepath.Dir(path)
	keyFile := filepath.Join(stateDir, "smtp_auth.key")
	if err := ensureCredentials(keyFile, cfg); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	username, password, err := azddns.ReadCredentials(keyFile)
	if err != nil {
		// notifications will fail and be logged; DNS updates do not depend on them
		logger.Warn("error reading SMTP key file", zap.Error(err))
	}

	if cfg.Scheduled && !config.NoSchedule && !config.Foreground {
		if err := ensureSchedule(ctx, cfg.ScheduleMinutes, path, logger); err != nil {
			logger.Warn("error registering crontab entry", zap.Error(err))
		}
	}

	client, err := azddns.New(cfg.FQDN(), clientOptions(cfg, stateDir, username, password, logger)...)
	if err != nil {
		return err
	}

	if config.Foreground {
		logger.Info("running in the foreground", zap.Int("interval_minutes", cfg.ScheduleMinutes))
		return azddns.RunDaemon(ctx, client, time.Duration(cfg.ScheduleMinutes)*time.Minute, logger)
	}

	res, err := client.Run(ctx)
	if err != nil {
		// already recorded in the activity log; the next scheduled run starts over
		logger.Error("run ended without updating", zap.Error(err))
		return nil
	}
	logger.Debug("run finished", zap.Stringer("action", res.Action))
	return nil
}

func clientOptions(cfg *azddns.Config, stateDir, username, password string, logger *zap.Logger) []azddns.Option {
	opts := []azddns.Option{
		azddns.UsingAzure(cfg.Azure()),
		azddns.UsingStore(azddns.NewStore(stateDir)),
		azddns.UsingNotifier(azddns.NewMailer(cfg.Mail(username, password))),
		azddns.WithTTL(cfg.TTL),
		azddns.WithTimeout(cfg.Timeout()),
		azddns.WithLogger(logger),
	}
	if config.IP != "" {
		r, err := azddns.FromString(config.IP)
		if err != nil {
			opts = append(opts, func(*azddns.Client) error { return fmt.Errorf("--ip: %w", err) })
		} else {
			opts = append(opts, azddns.UsingPublicResolver(r))
		}
	} else if len(config.Interfaces) > 0 {
		opts = append(opts, azddns.UsingPublicResolver(azddns.InterfaceResolver(config.Interfaces...)))
	} else {
		opts = append(opts, azddns.UsingWebResolver(cfg.IPServices...))
	}
	if cfg.Nameserver != "" {
		opts = append(opts, azddns.UsingNameserver(cfg.Nameserver))
	}
	return opts
}

func ensureSchedule(ctx context.Context, minutes int, configPath string, logger *zap.Logger) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("error locating executable: %w", err)
	}
	line, err := azddns.CronLine(minutes, shellQuote(exe)+" --config "+shellQuote(configPath))
	if err != nil {
		return err
	}
	added, err := azddns.NewCrontab().Ensure(ctx, line)
	if err != nil {
		return err
	}
	if added {
		logger.Info("crontab entry added", zap.String("line", line))
	} else {
		logger.Debug("crontab entry already exists")
	}
	return nil
}

func defaultConfigPath() string {
	if exe, err := os.Executable(); err == nil {
		return filepath.Join(filepath.Dir(exe), "config.yaml")
	}
	return "config.yaml"
}

func shellQuote(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t'\"\\$`;&|<>*?()[]{}~#!") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
