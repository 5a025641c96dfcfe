package azddns

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/sys/atomicwriter"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"
)

// Config is the flat settings file of the updater.
type Config struct {
	TenantID            string `mapstructure:"tenant_id" yaml:"tenant_id"`
	ClientID            string `mapstructure:"client_id" yaml:"client_id"`
	CertificatePath     string `mapstructure:"certificate_path" yaml:"certificate_path"`
	CertificatePassword string `mapstructure:"certificate_password" yaml:"certificate_password"`
	SubscriptionID      string `mapstructure:"subscription_id" yaml:"subscription_id"`
	ResourceGroup       string `mapstructure:"resource_group" yaml:"resource_group"`
	ZoneName            string `mapstructure:"zone_name" yaml:"zone_name"`
	RecordSetName       string `mapstructure:"record_set_name" yaml:"record_set_name"`
	TTL                 int64  `mapstructure:"ttl" yaml:"ttl"`

	EmailFrom    string `mapstructure:"email_from" yaml:"email_from"`
	EmailTo      string `mapstructure:"email_to" yaml:"email_to"`
	SMTPServer   string `mapstructure:"smtp_server" yaml:"smtp_server"`
	SMTPPort     int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	SMTPUsername string `mapstructure:"smtp_username" yaml:"smtp_username"`
	SMTPPassword string `mapstructure:"smtp_password" yaml:"smtp_password"`

	ScheduleMinutes int  `mapstructure:"schedule_minutes" yaml:"schedule_minutes"`
	Scheduled       bool `mapstructure:"scheduled" yaml:"scheduled"`

	IPServices     []string `mapstructure:"ip_services" yaml:"ip_services"`
	Nameserver     string   `mapstructure:"nameserver" yaml:"nameserver"`
	TimeoutSeconds int      `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	LogFile        string   `mapstructure:"log_file" yaml:"log_file"`
}

// defaults are the placeholder values written for any key missing from the file.
var defaults = map[string]any{
	"tenant_id":            "00000000-0000-0000-0000-000000000000",
	"client_id":            "11111111-2222-3333-4444-555555555555",
	"certificate_path":     "/etc/ssl/private/dnssync-combined.pem",
	"certificate_password": "",
	"subscription_id":      "abcdef12-3456-7890-abcd-ef1234567890",
	"resource_group":       "EXAMPLE_RESOURCE_GROUP",
	"zone_name":            "example.com",
	"record_set_name":      "dynamic",
	"ttl":                  300,
	"email_from":           "dns-sync@example.com",
	"email_to":             "admin@example.com",
	"smtp_server":          "smtp.example.com",
	"smtp_port":            587,
	"smtp_username":        "apikey",
	"smtp_password":        "SG.xxxxxxxx.yyyyyyyyzzzzzzzz",
	"schedule_minutes":     5,
	"scheduled":            true,
	"ip_services":          []string{DefaultIPService},
	"nameserver":           "",
	"timeout_seconds":      int(DefaultTimeout / time.Second),
	"log_file":             "",
}

// DefaultConfig returns a Config holding the default values.
func DefaultConfig() *Config {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic(fmt.Sprintf("azddns: default settings do not decode: %s", err))
	}
	return &c
}

// LoadConfig reads the settings file at path, fills in every missing key with
// its default and, when something was missing, writes the merged settings back.
// The returned keys are the ones that were backfilled.
//
// A missing file is reported with an error matching fs.ErrNotExist.
func LoadConfig(path string) (*Config, []string, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, nil, &ConfigError{Err: fmt.Errorf("error reading %s: %w", path, err)}
	}

	var missing []string
	for k := range defaults {
		if !v.InConfig(k) {
			missing = append(missing, k)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return nil, nil, &ConfigError{Err: fmt.Errorf("error decoding %s: %w", path, err)}
	}

	if len(missing) > 0 {
		if err := writeYAML(path, v.AllSettings()); err != nil {
			return nil, nil, err
		}
	}
	return &c, missing, nil
}

// Save writes c to path as YAML.
func (c *Config) Save(path string) error {
	return writeYAML(path, c)
}

func writeYAML(path string, value any) error {
	data, err := yaml.Marshal(value)
	if err != nil {
		return fmt.Errorf("error encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}
	// holds the certificate password and possibly the SMTP password
	if err := atomicwriter.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("error writing %s: %w", path, err)
	}
	return nil
}

// Validate checks that every setting needed for a run is usable.
func (c *Config) Validate() error {
	required := []struct{ key, value string }{
		{"tenant_id", c.TenantID},
		{"client_id", c.ClientID},
		{"certificate_path", c.CertificatePath},
		{"subscription_id", c.SubscriptionID},
		{"resource_group", c.ResourceGroup},
		{"zone_name", c.ZoneName},
		{"record_set_name", c.RecordSetName},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ConfigError{Key: r.key, Err: errors.New("cannot be empty")}
		}
	}
	if c.TTL <= 0 {
		return &ConfigError{Key: "ttl", Err: fmt.Errorf("must be positive, got %d", c.TTL)}
	}
	if c.ScheduleMinutes < 1 || c.ScheduleMinutes > 59 {
		return &ConfigError{Key: "schedule_minutes", Err: fmt.Errorf("must be between 1 and 59, got %d", c.ScheduleMinutes)}
	}
	if c.SMTPPort < 1 || c.SMTPPort > 65535 {
		return &ConfigError{Key: "smtp_port", Err: fmt.Errorf("invalid port %d", c.SMTPPort)}
	}
	if c.TimeoutSeconds < 0 {
		return &ConfigError{Key: "timeout_seconds", Err: fmt.Errorf("cannot be negative, got %d", c.TimeoutSeconds)}
	}
	return nil
}

// FQDN is the name clients resolve.
func (c *Config) FQDN() string {
	return FQDN(c.RecordSetName, c.ZoneName)
}

func (c *Config) Azure() AzureConfig {
	return AzureConfig{
		TenantID:            c.TenantID,
		ClientID:            c.ClientID,
		CertificatePath:     c.CertificatePath,
		CertificatePassword: c.CertificatePassword,
		SubscriptionID:      c.SubscriptionID,
		ResourceGroup:       c.ResourceGroup,
		ZoneName:            c.ZoneName,
		RecordSetName:       c.RecordSetName,
	}
}

// Mail returns the notifier settings using the credentials read from the SMTP key file.
func (c *Config) Mail(username, password string) MailConfig {
	return MailConfig{
		Server:   c.SMTPServer,
		Port:     c.SMTPPort,
		From:     c.EmailFrom,
		To:       c.EmailTo,
		Username: username,
		Password: password,
		Timeout:  3 * c.Timeout(),
	}
}

func (c *Config) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeout
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// FQDN joins a relative record set name and its zone. "@" is the zone apex.
func FQDN(record, zone string) string {
	zone = strings.TrimSuffix(zone, ".")
	if record == "" || record == "@" {
		return zone
	}
	return record + "." + zone
}

// IsNotExist reports whether err means the settings file does not exist yet.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
