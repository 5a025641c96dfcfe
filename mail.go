package azddns

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"
	"time"
)

// MailConfig describes where change notifications go.
type MailConfig struct {
	Server   string
	Port     int
	From     string
	To       string
	Username string
	Password string
	Timeout  time.Duration
}

// Mailer is an SMTP Notifier. It upgrades the connection with STARTTLS whenever the server offers it.
type Mailer struct {
	cfg MailConfig
}

func NewMailer(cfg MailConfig) *Mailer {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &Mailer{cfg: cfg}
}

// Notify implements Notifier.
func (m *Mailer) Notify(ctx context.Context, subject, body string) error {
	if m.cfg.Username == "" || m.cfg.Password == "" {
		return errors.New("SMTP credentials missing; cannot send email")
	}
	if !strings.Contains(m.cfg.From, "@") || !strings.Contains(m.cfg.To, "@") {
		return fmt.Errorf("invalid sender %q or recipient %q", m.cfg.From, m.cfg.To)
	}

	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	addr := net.JoinHostPort(m.cfg.Server, strconv.Itoa(m.cfg.Port))
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("error connecting to %s: %w", addr, err)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetDeadline(deadline)
	}

	client, err := smtp.NewClient(conn, m.cfg.Server)
	if err != nil {
		return fmt.Errorf("error creating SMTP client: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: m.cfg.Server, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("STARTTLS failed: %w", err)
		}
	}
	if err := client.Auth(smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Server)); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	if err := client.Mail(m.cfg.From); err != nil {
		return fmt.Errorf("MAIL FROM failed for %s: %w", m.cfg.From, err)
	}
	if err := client.Rcpt(m.cfg.To); err != nil {
		return fmt.Errorf("RCPT TO failed for %s: %w", m.cfg.To, err)
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := w.Write(buildMessage(m.cfg.From, m.cfg.To, subject, body, time.Now())); err != nil {
		w.Close()
		return fmt.Errorf("error writing message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("error closing message: %w", err)
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string, date time.Time) []byte {
	var msg bytes.Buffer
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"Date", date.Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	for _, h := range headers {
		fmt.Fprintf(&msg, "%s: %s\r\n", h[0], h[1])
	}
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	msg.WriteString("\r\n")
	return msg.Bytes()
}

// ReadCredentials reads an SMTP key file made of "username:" and "password:" lines.
func ReadCredentials(path string) (username, password string, err error) {
	if err := verifyPermissions(path); err != nil {
		return "", "", err
	}
	f, err := os.Open(path)
	if err != nil {
		return "", "", fmt.Errorf("error reading SMTP key file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Text()
		switch {
		case strings.HasPrefix(line, "username:"):
			username = strings.TrimSpace(strings.TrimPrefix(line, "username:"))
		case strings.HasPrefix(line, "password:"):
			password = strings.TrimSpace(strings.TrimPrefix(line, "password:"))
		}
	}
	if err := sc.Err(); err != nil {
		return "", "", fmt.Errorf("error reading SMTP key file: %w", err)
	}
	return username, password, nil
}

// WriteCredentials creates or replaces the SMTP key file, readable by the owner only.
func WriteCredentials(path, username, password string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("unable to create \"%s\": %w", path, err)
	}
	defer f.Close()
	if _, err := fmt.Fprintf(f, "username:%s\npassword:%s\n", username, password); err != nil {
		return fmt.Errorf("error writing \"%s\": %w", path, err)
	}
	// O_CREATE honours umask and an existing file keeps its mode
	if err := f.Chmod(0600); err != nil {
		return fmt.Errorf("error setting permissions on \"%s\": %w", path, err)
	}
	return nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("error checking key file permissions: %w", err)
	}

	perms := info.Mode().Perm()
	// Error messages will state that we want 0600,
	// but we'll also accept 0400 which is even more restricted.
	if perms != 0600 && perms != 0400 {
		return fmt.Errorf("invalid permissions for \"%s\": %w", path, permissionError(perms))
	}
	return nil
}

type permissionError fs.FileMode

func (pe permissionError) Error() string {
	return fmt.Sprintf("expected file permissions \"-rw-------\"; found \"%s\"", fs.FileMode(pe))
}
