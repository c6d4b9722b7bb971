package utils

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMultiLogHandler(t *testing.T) {
	var debug, info bytes.Buffer
	h := NewMultiLogHandler(
		slog.NewTextHandler(&debug, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
	)
	logger := slog.New(h).With("drive", "sdb1")

	logger.Debug("probe")
	logger.Info("mounted")

	assert.Contains(t, debug.String(), "msg=probe drive=sdb1")
	assert.Contains(t, debug.String(), "msg=mounted drive=sdb1")
	assert.NotContains(t, info.String(), "probe")
	assert.Contains(t, info.String(), "msg=mounted drive=sdb1")
}
