/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package logtest

import (
	"sync"
	"time"

	"github.com/ssgreg/logf"

	"github.com/acronis/go-crptapi/log"
)

// RecordedEntry represents recorded entry which was logged.
type RecordedEntry struct {
	LoggerName string
	Fields     []log.Field
	Level      log.Level
	Time       time.Time
	Text       string
}

// FindField tries to find field in logging entry by key.
func (re *RecordedEntry) FindField(key string) (*log.Field, bool) {
	for i := range re.Fields {
		if re.Fields[i].Key == key {
			return &re.Fields[i], true
		}
	}
	return nil, false
}

// FieldString returns the value of a string field, or an empty string if there is no such field.
func (re *RecordedEntry) FieldString(key string) string {
	if f, ok := re.FindField(key); ok {
		return string(f.Bytes)
	}
	return ""
}

type recordingEntryWriter struct {
	sync.RWMutex
	entries []RecordedEntry
}

//nolint:gocritic
func (ew *recordingEntryWriter) WriteEntry(e logf.Entry) {
	fields := make([]log.Field, 0, len(e.Fields)+len(e.DerivedFields))
	fields = append(fields, e.DerivedFields...)
	fields = append(fields, e.Fields...)

	ew.Lock()
	defer ew.Unlock()
	ew.entries = append(ew.entries, RecordedEntry{
		LoggerName: e.LoggerName,
		Fields:     fields,
		Level:      fromLogfLevel(e.Level),
		Time:       e.Time,
		Text:       e.Text,
	})
}

// Recorder is an implementation of log.FieldLogger that
// records all logged entries for later inspection in tests.
type Recorder struct {
	*log.LogfAdapter
	entryWriter *recordingEntryWriter
}

var _ log.FieldLogger = (*Recorder)(nil)

// NewRecorder returns an initialized Recorder that records entries of all levels.
func NewRecorder() *Recorder {
	ew := &recordingEntryWriter{}
	return &Recorder{&log.LogfAdapter{Logger: logf.NewLogger(logf.LevelDebug, ew)}, ew}
}

// With returns a new Recorder with the given additional fields. Both recorders share recorded entries.
func (r *Recorder) With(fs ...log.Field) log.FieldLogger {
	return &Recorder{r.LogfAdapter.With(fs...).(*log.LogfAdapter), r.entryWriter}
}

// WithLevel returns a new Recorder with the given additional level check.
func (r *Recorder) WithLevel(level log.Level) log.FieldLogger {
	return &Recorder{r.LogfAdapter.WithLevel(level).(*log.LogfAdapter), r.entryWriter}
}

// Entries returns all recorded logging entries.
func (r *Recorder) Entries() []RecordedEntry {
	r.entryWriter.RLock()
	defer r.entryWriter.RUnlock()
	return append([]RecordedEntry{}, r.entryWriter.entries...)
}

// FindEntry tries to find recorded logging entry by message.
func (r *Recorder) FindEntry(msg string) (RecordedEntry, bool) {
	found := r.FindAllEntriesByFilter(func(entry RecordedEntry) bool {
		return entry.Text == msg
	})
	if len(found) == 0 {
		return RecordedEntry{}, false
	}
	return found[0], true
}

// FindAllEntries returns all recorded logging entries with the message.
func (r *Recorder) FindAllEntries(msg string) []RecordedEntry {
	return r.FindAllEntriesByFilter(func(entry RecordedEntry) bool {
		return entry.Text == msg
	})
}

// EntriesAtLevel returns all recorded logging entries of the level.
func (r *Recorder) EntriesAtLevel(level log.Level) []RecordedEntry {
	return r.FindAllEntriesByFilter(func(entry RecordedEntry) bool {
		return entry.Level == level
	})
}

// FindAllEntriesByFilter returns all recorded logging entries that match filter.
func (r *Recorder) FindAllEntriesByFilter(filter func(entry RecordedEntry) bool) []RecordedEntry {
	r.entryWriter.RLock()
	defer r.entryWriter.RUnlock()
	var found []RecordedEntry
	for _, entry := range r.entryWriter.entries {
		if filter(entry) {
			found = append(found, entry)
		}
	}
	return found
}

// Reset resets all recorded logs.
func (r *Recorder) Reset() {
	r.entryWriter.Lock()
	r.entryWriter.entries = nil
	r.entryWriter.Unlock()
}

func fromLogfLevel(value logf.Level) log.Level {
	switch value {
	case logf.LevelError:
		return log.LevelError
	case logf.LevelWarn:
		return log.LevelWarn
	case logf.LevelDebug:
		return log.LevelDebug
	}
	return log.LevelInfo
}
