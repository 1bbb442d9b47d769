/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/acronis/go-crptapi/log"
)

func TestRecorder(t *testing.T) {
	logRecorder := NewRecorder()
	logRecorder.Warn("message1", log.Int("num", 10), log.String("str", "abc"))
	logRecorder.Info("message2")
	logRecorder.With(log.String("executor", "crpt")).Info("message2")

	require.Len(t, logRecorder.Entries(), 3)

	_, found := logRecorder.FindEntry("foobar")
	require.False(t, found)

	logEntry, found := logRecorder.FindEntry("message1")
	require.True(t, found)
	require.Equal(t, log.LevelWarn, logEntry.Level)
	require.Equal(t, "message1", logEntry.Text)

	logFieldNum, found := logEntry.FindField("num")
	require.True(t, found)
	require.Equal(t, 10, int(logFieldNum.Int))
	require.Equal(t, "abc", logEntry.FieldString("str"))

	entries := logRecorder.FindAllEntries("message2")
	require.Len(t, entries, 2)
	require.Equal(t, "crpt", entries[1].FieldString("executor"))

	require.Len(t, logRecorder.EntriesAtLevel(log.LevelInfo), 2)

	logRecorder.Reset()
	require.Empty(t, logRecorder.Entries())
}

func TestRecorder_WithLevel(t *testing.T) {
	logRecorder := NewRecorder()
	logger := logRecorder.WithLevel(log.LevelWarn)
	logger.Debug("skipped")
	logger.Infof("skipped %d", 1)
	logger.Errorf("kept %d", 2)

	entries := logRecorder.Entries()
	require.Len(t, entries, 1)
	require.Equal(t, "kept 2", entries[0].Text)
	require.Equal(t, log.LevelError, entries[0].Level)
}
