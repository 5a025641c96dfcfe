package azddns

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/moby/sys/atomicwriter"
)

const (
	// LogTimeLayout prefixes every activity log line.
	LogTimeLayout = "2006-01-02 15:04:05"

	// DefaultRetention is how long activity log entries are kept.
	DefaultRetention = 7 * 24 * time.Hour
)

// Store persists the last pushed IP and the activity log.
//
// Both files are rewritten in full on every write. At most one process is
// expected to use a Store at a time.
type Store struct {
	LastIPPath string
	LogPath    string
	Retention  time.Duration

	now func() time.Time
}

// NewStore returns a Store keeping last_ip.txt and update.log in dir.
func NewStore(dir string) *Store {
	return &Store{
		LastIPPath: filepath.Join(dir, "last_ip.txt"),
		LogPath:    filepath.Join(dir, "update.log"),
		Retention:  DefaultRetention,
		now:        time.Now,
	}
}

func (s *Store) clock() time.Time {
	if s.now == nil {
		return time.Now()
	}
	return s.now()
}

// AppendLog adds a timestamped line to the activity log.
// Well-formed lines older than the retention window are dropped on the way;
// lines without a parsable timestamp are kept.
func (s *Store) AppendLog(message string) error {
	now := s.clock()
	cutoff := now.Add(-s.retention())

	data, err := os.ReadFile(s.LogPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error reading activity log: %w", err)
	}

	var buf bytes.Buffer
	for _, line := range splitLines(data) {
		if t, ok := entryTime(line); ok && t.Before(cutoff) {
			continue
		}
		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	fmt.Fprintf(&buf, "%s %s\n", now.Format(LogTimeLayout), message)

	if err := atomicwriter.WriteFile(s.LogPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("error writing activity log: %w", err)
	}
	return nil
}

// Entries returns the activity log lines in order.
func (s *Store) Entries() ([]string, error) {
	data, err := os.ReadFile(s.LogPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading activity log: %w", err)
	}
	return splitLines(data), nil
}

// LastIP returns the last IP successfully pushed to the provider.
// A missing file is not an error and yields the zero Addr.
func (s *Store) LastIP() (netip.Addr, error) {
	data, err := os.ReadFile(s.LastIPPath)
	if errors.Is(err, fs.ErrNotExist) {
		return netip.Addr{}, nil
	}
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error reading last IP: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return netip.Addr{}, nil
	}
	addr, err := netip.ParseAddr(content)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("error parsing last IP %q: %w", content, err)
	}
	return addr, nil
}

// SetLastIP overwrites the last known IP.
func (s *Store) SetLastIP(addr netip.Addr) error {
	if !addr.IsValid() {
		return errors.New("refusing to store an invalid address")
	}
	if err := atomicwriter.WriteFile(s.LastIPPath, []byte(addr.String()+"\n"), 0o644); err != nil {
		return fmt.Errorf("error writing last IP: %w", err)
	}
	return nil
}

func (s *Store) retention() time.Duration {
	if s.Retention <= 0 {
		return DefaultRetention
	}
	return s.Retention
}

// entryTime parses the timestamp prefix of an activity log line.
func entryTime(line string) (time.Time, bool) {
	if len(line) < len(LogTimeLayout) {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(LogTimeLayout, line[:len(LogTimeLayout)], time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// splitLines splits on "\n" without any limit on line length.
func splitLines(data []byte) []string {
	if len(data) == 0 {
		return nil
	}
	parts := bytes.Split(bytes.TrimSuffix(data, []byte("\n")), []byte("\n"))
	lines := make([]string, len(parts))
	for i, p := range parts {
		lines[i] = string(bytes.TrimSuffix(p, []byte("\r")))
	}
	return lines
}
