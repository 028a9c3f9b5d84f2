package notify

import (
	"bytes"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandlerForwardsWarnAndAbove(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	rec := &Recorder{}
	logger := slog.New(NewHandler(inner, rec, slog.LevelWarn))

	logger.Info("just info")
	logger.Warn("set failed", "domain", "nodes/5/1")
	logger.With("component", "events").Error("stream closed", "err", errors.New("EOF"))

	got := rec.Notifications()
	require.Len(t, got, 2)
	assert.Equal(t, Notification{Severity: Warning, Message: "set failed domain=nodes/5/1"}, got[0])
	assert.Equal(t, Notification{Severity: Error, Message: "stream closed component=events err=EOF"}, got[1])

	// inner handler still sees everything
	assert.Contains(t, buf.String(), "just info")
	assert.Contains(t, buf.String(), "stream closed")
}

func TestHandlerNotifiesBelowInnerLevel(t *testing.T) {
	var buf bytes.Buffer
	inner := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelError})
	rec := &Recorder{}
	logger := slog.New(NewHandler(inner, rec, slog.LevelWarn))

	logger.Warn("only notified")

	assert.Empty(t, buf.String())
	require.Len(t, rec.Notifications(), 1)
	assert.Equal(t, "only notified", rec.Notifications()[0].Message)
}

func TestSeverityString(t *testing.T) {
	assert.Equal(t, "WARNING", Warning.String())
	assert.Equal(t, "ERROR", Error.String())
	assert.Equal(t, "Severity(7)", Severity(7).String())
}
