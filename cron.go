package azddns

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// CronLine returns the crontab entry that runs command every minutes minutes.
func CronLine(minutes int, command string) (string, error) {
	if minutes < 1 || minutes > 59 {
		return "", fmt.Errorf("schedule interval must be between 1 and 59 minutes, got %d", minutes)
	}
	if strings.TrimSpace(command) == "" {
		return "", errors.New("empty command")
	}
	schedule := fmt.Sprintf("*/%d * * * *", minutes)
	if _, err := cron.ParseStandard(schedule); err != nil {
		return "", fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return fmt.Sprintf("%s %s > /dev/null 2>&1", schedule, command), nil
}

// commandRunner runs name with args, feeding it stdin, and returns its stdout.
type commandRunner func(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, stdin []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, fmt.Errorf("%s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return out, nil
}

// Crontab registers entries in the invoking user's crontab.
type Crontab struct {
	run commandRunner
}

func NewCrontab() *Crontab {
	return &Crontab{run: execRunner}
}

// Ensure installs line unless an identical entry is already present.
// Entries running the same command on another schedule are replaced.
// It reports whether the crontab was changed.
func (c *Crontab) Ensure(ctx context.Context, line string) (bool, error) {
	run := c.run
	if run == nil {
		run = execRunner
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// "crontab -l" fails when the user has no crontab yet
	existing, err := run(ctx, nil, "crontab", "-l")
	if err != nil {
		existing = nil
	}

	command := cronCommand(line)
	var updated bytes.Buffer
	for _, l := range splitLines(existing) {
		if strings.TrimSpace(l) == strings.TrimSpace(line) {
			return false, nil
		}
		if command != "" && cronCommand(l) == command {
			continue
		}
		updated.WriteString(l)
		updated.WriteByte('\n')
	}
	updated.WriteString(line)
	updated.WriteByte('\n')
	if _, err := run(ctx, updated.Bytes(), "crontab", "-"); err != nil {
		return false, fmt.Errorf("error installing crontab: %w", err)
	}
	return true, nil
}

// cronCommand returns the command part of a five-field crontab entry, with whitespace normalized.
func cronCommand(line string) string {
	fields := strings.Fields(line)
	if len(fields) < 6 || strings.HasPrefix(fields[0], "#") || strings.Contains(fields[0], "=") {
		return ""
	}
	return strings.Join(fields[5:], " ")
}

// RunDaemon runs client every interval until ctx is done.
// It is the foreground alternative to a crontab entry; a run still in progress
// when the next one is due causes that next one to be skipped.
func RunDaemon(ctx context.Context, client *Client, interval time.Duration, logger *zap.Logger) error {
	if interval < time.Minute {
		interval = time.Minute
	}
	if logger == nil {
		logger = client.logger
	}
	cl := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))

	job := func() {
		res, err := client.Run(ctx)
		if err != nil {
			logger.Error("run failed", zap.Error(err))
			return
		}
		logger.Debug("run finished", zap.Stringer("action", res.Action))
	}
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", interval), job); err != nil {
		return fmt.Errorf("error scheduling runs: %w", err)
	}

	job()
	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
