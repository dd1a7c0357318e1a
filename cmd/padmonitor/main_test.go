package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/padfleet/status-monitor/internal/api"
	"github.com/padfleet/status-monitor/internal/config"
	"github.com/padfleet/status-monitor/internal/status"
)

func TestSetupLoggerLevels(t *testing.T) {
	verbose = false
	assert.Equal(t, zerolog.WarnLevel, setupLogger("warn").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, setupLogger("").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, setupLogger("loud").GetLevel())

	verbose = true
	defer func() { verbose = false }()
	assert.Equal(t, zerolog.DebugLevel, setupLogger("error").GetLevel())
}

func TestSetupLoggerFeedsBuffer(t *testing.T) {
	verbose = false
	buf := api.NewLogBuffer(10)
	logger := setupLogger("info", buf)

	logger.Debug().Msg("hidden")
	logger.Info().Str("component", "feed").Msg("Status feed connected")

	entries := buf.Entries(nil)
	require.Len(t, entries, 1)
	assert.Equal(t, "Status feed connected", entries[0].Message)
	assert.Equal(t, "feed", entries[0].Fields["component"])
}

func TestApplyServeOverrides(t *testing.T) {
	defer func() { serveOrigin, servePort = "", 0 }()

	cfg := config.Default()
	serveOrigin = "https://admin.example.com"
	servePort = 9001
	require.NoError(t, applyServeOverrides(cfg))
	assert.Equal(t, "https://admin.example.com", cfg.Dashboard.Origin)
	assert.Equal(t, 9001, cfg.Server.Port)

	serveOrigin = "admin.example.com"
	assert.Error(t, applyServeOverrides(config.Default()))
}

func TestWriteExport(t *testing.T) {
	devices := []status.Device{{PadCode: "AC1", CurrentStatus: "running"}}

	var stdout bytes.Buffer
	require.NoError(t, writeExport(&stdout, "", devices))
	assert.Contains(t, stdout.String(), "AC1")

	path := filepath.Join(t.TempDir(), "devices.csv")
	require.NoError(t, writeExport(&stdout, path, devices))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))

	assert.Error(t, writeExport(&stdout, filepath.Join(t.TempDir(), "missing", "devices.csv"), devices))
}

func TestWriteExportReportsFailedWrite(t *testing.T) {
	if _, err := os.Stat("/dev/full"); err != nil {
		t.Skip("no /dev/full on this system")
	}
	assert.Error(t, writeExport(nil, "/dev/full", []status.Device{{PadCode: "AC1"}}))
}
