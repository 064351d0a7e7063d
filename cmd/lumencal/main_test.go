package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cyp0633/lumencal/calendar/event"
	"github.com/cyp0633/lumencal/calendar/storage"
	"github.com/cyp0633/lumencal/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSeed(t *testing.T, dir string) string {
	t.Helper()
	events := []event.Event{
		{
			ID:         "rev-1",
			Title:      "Revisión trimestral",
			Start:      time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC),
			End:        time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC),
			CalendarID: "equipo-ventas",
			Kind:       event.KindMeeting,
		},
		{
			ID:         "llamada-1",
			Title:      "Llamada proveedor",
			Start:      time.Date(2025, 3, 10, 9, 30, 0, 0, time.UTC),
			End:        time.Date(2025, 3, 10, 10, 30, 0, 0, time.UTC),
			CalendarID: "mi-calendario",
			Kind:       event.KindCall,
		},
		{
			ID:         "otro-dia",
			Title:      "Entrega",
			Start:      time.Date(2025, 3, 12, 15, 0, 0, 0, time.UTC),
			End:        time.Date(2025, 3, 12, 16, 0, 0, 0, time.UTC),
			CalendarID: "mi-calendario",
		},
	}
	ics, err := storage.EventsToICS(events, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	path := filepath.Join(dir, "seed.ics")
	require.NoError(t, os.WriteFile(path, []byte(ics), 0o600))
	return path
}

func run(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	root := newRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append([]string{
		"--config", filepath.Join(dir, "lumencal.yaml"),
		"--env", filepath.Join(dir, ".env"),
	}, args...))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAgendaCommand(t *testing.T) {
	dir := t.TempDir()
	seed := writeSeed(t, dir)

	out, err := run(t, dir, "agenda", "-i", seed, "--date", "2025-03-10", "--mode", "day")
	require.NoError(t, err)

	assert.Contains(t, out, "day view, 2025-03-10 to 2025-03-10")
	assert.Contains(t, out, "2025-03-10 Monday")
	assert.Contains(t, out, "09:00-10:00  Revisión trimestral  [equipo-ventas]  (1/2)")
	assert.Contains(t, out, "09:30-10:30  Llamada proveedor  [mi-calendario]  (2/2)")
	assert.NotContains(t, out, "Entrega")

	// first run writes the default configuration
	_, err = os.Stat(filepath.Join(dir, "lumencal.yaml"))
	assert.NoError(t, err)
}

func TestAgendaCommand_Filters(t *testing.T) {
	dir := t.TempDir()
	seed := writeSeed(t, dir)

	out, err := run(t, dir, "agenda", "-i", seed, "--date", "2025-03-10", "--mode", "week", "--calendar", "mi-calendario")
	require.NoError(t, err)
	assert.NotContains(t, out, "Revisión trimestral")
	assert.Contains(t, out, "09:30-10:30  Llamada proveedor  [mi-calendario]\n")
	assert.Contains(t, out, "2025-03-12 Wednesday")

	query := filepath.Join(dir, "query.xml")
	require.NoError(t, os.WriteFile(query, []byte(`<?xml version="1.0" encoding="utf-8"?>
<C:calendar-query xmlns:D="DAV:" xmlns:C="urn:ietf:params:xml:ns:caldav">
  <C:filter>
    <C:comp-filter name="VCALENDAR">
      <C:comp-filter name="VEVENT">
        <C:prop-filter name="SUMMARY">
          <C:text-match>entrega</C:text-match>
        </C:prop-filter>
      </C:comp-filter>
    </C:comp-filter>
  </C:filter>
</C:calendar-query>`), 0o600))

	out, err = run(t, dir, "agenda", "-i", seed, "--date", "2025-03-10", "--mode", "week", "--query", query)
	require.NoError(t, err)
	assert.Contains(t, out, "15:00-16:00  Entrega")
	assert.NotContains(t, out, "Llamada proveedor")
}

func TestAgendaCommand_Errors(t *testing.T) {
	dir := t.TempDir()
	seed := writeSeed(t, dir)

	_, err := run(t, dir, "agenda")
	assert.ErrorIs(t, err, errNoInput)

	_, err = run(t, dir, "agenda", "-i", seed, "--mode", "year")
	assert.Error(t, err)

	_, err = run(t, dir, "agenda", "-i", seed, "--date", "someday")
	assert.ErrorContains(t, err, "invalid --date")

	_, err = run(t, dir, "agenda", "-i", filepath.Join(dir, "missing.ics"))
	assert.ErrorContains(t, err, "open seed file")
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	seed := writeSeed(t, dir)

	out, err := run(t, dir, "export", "-i", seed, "--calendar", "mi-calendario")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "UID:llamada-1")
	assert.Contains(t, out, "UID:otro-dia")
	assert.NotContains(t, out, "UID:rev-1")

	target := filepath.Join(dir, "out.ics")
	_, err = run(t, dir, "export", "-i", seed, "--from", "2025-03-11", "-o", target)
	require.NoError(t, err)
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(data), "UID:otro-dia")
	assert.NotContains(t, string(data), "UID:rev-1")

	_, err = run(t, dir, "export", "-i", seed, "--to", "soon")
	assert.ErrorContains(t, err, "invalid --to")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, config.LogConfig{Level: "warn", Format: "json"})
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), out)
	assert.Contains(t, out, `"msg":"shown"`)

	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestClock(t *testing.T) {
	assert.Equal(t, "00:00", clock(0))
	assert.Equal(t, "09:05", clock(9*60+5))
	assert.Equal(t, "24:00", clock(24*60+30))
}
