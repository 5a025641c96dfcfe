package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"golang.org/x/term"

	"github.com/Travis-Britz/azddns"
)

var interactive = func() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// loadOrCreate reads the settings file, creating it on first run.
func loadOrCreate(path string) (*azddns.Config, error) {
	cfg, backfilled, err := azddns.LoadConfig(path)
	switch {
	case err == nil && !config.Setup:
		if len(backfilled) > 0 {
			fmt.Fprintf(os.Stderr, "added missing settings to %s: %s\n", path, strings.Join(backfilled, ", "))
		}
		return cfg, nil
	case err != nil && !azddns.IsNotExist(err):
		return nil, err
	}

	base := azddns.DefaultConfig()
	if cfg != nil {
		base = cfg
	}
	if interactive() {
		if cfg, err = promptConfig(base); err != nil {
			return nil, err
		}
	} else {
		fmt.Fprintf(os.Stderr, "no terminal for setup; writing default settings to %s\n", path)
		cfg = base
	}
	cfg.Scheduled = true

	if err := cfg.Save(path); err != nil {
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "settings saved to %s\n", path)
	return cfg, nil
}

func promptConfig(d *azddns.Config) (*azddns.Config, error) {
	c := *d
	time.Sleep(200 * time.Millisecond) // dirty timer hack to try to get stderr and stdout output lines to display in order
	fmt.Println("\n--- Azure DNS Dynamic Updater Initial Configuration ---")

	fmt.Println("\nAzure Configuration:")
	questions := []struct {
		message string
		value   *string
	}{
		{"Tenant ID", &c.TenantID},
		{"Client ID", &c.ClientID},
		{"Subscription ID", &c.SubscriptionID},
		{"Certificate Path", &c.CertificatePath},
		{"Resource Group", &c.ResourceGroup},
		{"Zone Name", &c.ZoneName},
		{"Record Set Name", &c.RecordSetName},
	}
	for _, q := range questions {
		if err := survey.AskOne(&survey.Input{Message: q.message, Default: *q.value}, q.value, survey.WithValidator(survey.Required)); err != nil {
			return nil, err
		}
	}
	ttl, err := askInt("TTL", int(c.TTL), 1, 86400)
	if err != nil {
		return nil, err
	}
	c.TTL = int64(ttl)

	fmt.Println("\nEmail/SMTP Configuration:")
	for _, q := range []struct {
		message string
		value   *string
	}{
		{"Email Address From", &c.EmailFrom},
		{"Email Address To", &c.EmailTo},
		{"SMTP Server", &c.SMTPServer},
	} {
		if err := survey.AskOne(&survey.Input{Message: q.message, Default: *q.value}, q.value); err != nil {
			return nil, err
		}
	}
	if c.SMTPPort, err = askInt("SMTP Port", c.SMTPPort, 1, 65535); err != nil {
		return nil, err
	}

	fmt.Println("\nScheduling Configuration:")
	if c.ScheduleMinutes, err = askInt("How often should the updater run (in minutes)?", c.ScheduleMinutes, 1, 59); err != nil {
		return nil, err
	}
	return &c, nil
}

func askInt(message string, def, lo, hi int) (int, error) {
	answer := strconv.Itoa(def)
	validate := func(ans interface{}) error {
		n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(ans)))
		if err != nil {
			return errors.New("please enter a number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("please enter a number between %d and %d", lo, hi)
		}
		return nil
	}
	if err := survey.AskOne(&survey.Input{Message: message, Default: answer}, &answer, survey.WithValidator(validate)); err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(answer))
}

// ensureCredentials creates the SMTP key file when it does not exist, or replaces it with --setup.
func ensureCredentials(path string, cfg *azddns.Config) error {
	_, err := os.Stat(path)
	if err == nil && !config.Setup {
		return nil
	}
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error checking SMTP key file: %w", err)
	}

	username, password := cfg.SMTPUsername, cfg.SMTPPassword
	if interactive() {
		fmt.Println("\n--- SMTP Credentials ---")
		if err := survey.AskOne(&survey.Input{Message: "SMTP Username", Default: username}, &username); err != nil {
			return err
		}
		fmt.Printf("SMTP API Key or password (leave empty to keep the default): \n")
		bytekey, err := term.ReadPassword(int(syscall.Stdin))
		if err != nil {
			return fmt.Errorf("error reading from stdin: %w", err)
		}
		if p := strings.TrimSpace(string(bytekey)); p != "" {
			password = p
		}
	}

	if err := azddns.WriteCredentials(path, username, password); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "SMTP credentials saved to %s (permissions set to 600)\n", path)
	return nil
}
