package azddns

import (
	"net/netip"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendLogPrunesOldEntries(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.Local)
	s := NewStore(t.TempDir())
	s.now = func() time.Time { return now }

	stamp := func(d time.Duration) string { return now.Add(-d).Format(LogTimeLayout) }
	existing := strings.Join([]string{
		stamp(10*24*time.Hour) + " ten days old",
		"this line has no timestamp",
		stamp(8*24*time.Hour) + " eight days old",
		stamp(7*24*time.Hour) + " exactly at the cutoff",
		stamp(24*time.Hour) + " yesterday",
	}, "\n") + "\n"
	require.NoError(t, os.WriteFile(s.LogPath, []byte(existing), 0o644))

	require.NoError(t, s.AppendLog("fresh entry"))

	entries, err := s.Entries()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"this line has no timestamp",
		stamp(7*24*time.Hour) + " exactly at the cutoff",
		stamp(24*time.Hour) + " yesterday",
		now.Format(LogTimeLayout) + " fresh entry",
	}, entries)
}

func TestAppendLogKeepsOrder(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.Local)
	s := NewStore(t.TempDir())
	s.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}

	for _, msg := range []string{"one", "two", "three"} {
		require.NoError(t, s.AppendLog(msg))
	}
	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, msg := range []string{"one", "two", "three"} {
		assert.True(t, strings.HasSuffix(entries[i], " "+msg), entries[i])
		_, ok := entryTime(entries[i])
		assert.True(t, ok)
	}
}

func TestEntriesWithoutLog(t *testing.T) {
	entries, err := NewStore(t.TempDir()).Entries()
	assert.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLastIP(t *testing.T) {
	s := NewStore(t.TempDir())

	ip, err := s.LastIP()
	require.NoError(t, err)
	assert.False(t, ip.IsValid(), "missing file means no last IP")

	want := netip.MustParseAddr("203.0.113.9")
	require.NoError(t, s.SetLastIP(want))
	ip, err = s.LastIP()
	require.NoError(t, err)
	assert.Equal(t, want, ip)

	data, err := os.ReadFile(s.LastIPPath)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.9\n", string(data))

	assert.Error(t, s.SetLastIP(netip.Addr{}))
}

func TestLastIPEmptyAndGarbage(t *testing.T) {
	s := NewStore(t.TempDir())

	require.NoError(t, os.WriteFile(s.LastIPPath, []byte("  \n"), 0o644))
	ip, err := s.LastIP()
	require.NoError(t, err)
	assert.False(t, ip.IsValid())

	require.NoError(t, os.WriteFile(s.LastIPPath, []byte("not an ip\n"), 0o644))
	_, err = s.LastIP()
	assert.Error(t, err)
}

func TestEntryTime(t *testing.T) {
	_, ok := entryTime("2024-05-20 12:00:00 updated")
	assert.True(t, ok)
	_, ok = entryTime("short")
	assert.False(t, ok)
	_, ok = entryTime("2024-13-40 99:00:00 not a date")
	assert.False(t, ok)
}

func TestAppendLogKeepsLongLines(t *testing.T) {
	now := time.Date(2024, 5, 20, 12, 0, 0, 0, time.Local)
	s := NewStore(t.TempDir())
	s.now = func() time.Time { return now }

	long := strings.Repeat("x", 2<<20)
	recent := now.Add(-time.Hour).Format(LogTimeLayout) + " an hour ago"
	require.NoError(t, os.WriteFile(s.LogPath, []byte(long+"\n"+recent+"\n"), 0o644))

	require.NoError(t, s.AppendLog("new"))

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, long, entries[0])
	assert.Equal(t, recent, entries[1])
	assert.Equal(t, now.Format(LogTimeLayout)+" new", entries[2])
}

func TestSplitLines(t *testing.T) {
	assert.Nil(t, splitLines(nil))
	assert.Equal(t, []string{"a", "", "b"}, splitLines([]byte("a\n\nb\n")))
	assert.Equal(t, []string{"a", "b"}, splitLines([]byte("a\r\nb")))
}
