/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package log

import (
	"errors"
	"fmt"
	"io"
	"reflect"

	"github.com/ssgreg/logf"
)

// StringMasker masks secrets in a string.
type StringMasker interface {
	Mask(s string) string
}

// MaskingLogger masks secrets in messages and string-like fields before passing them to the wrapped logger.
// Request signatures and bearer tokens end up in transport errors and debug dumps, so it is enabled by default.
type MaskingLogger struct {
	log    FieldLogger
	masker StringMasker
}

// NewMaskingLogger wraps l with masking.
func NewMaskingLogger(l FieldLogger, m StringMasker) FieldLogger {
	return MaskingLogger{l, m}
}

// With returns a new logger with the given additional fields.
func (l MaskingLogger) With(fs ...Field) FieldLogger {
	return MaskingLogger{l.log.With(l.maskFields(fs)...), l.masker}
}

// Debug logs message at "debug" level.
func (l MaskingLogger) Debug(text string, fs ...Field) {
	l.log.Debug(l.masker.Mask(text), l.maskFields(fs)...)
}

// Info logs message at "info" level.
func (l MaskingLogger) Info(text string, fs ...Field) {
	l.log.Info(l.masker.Mask(text), l.maskFields(fs)...)
}

// Warn logs message at "warn" level.
func (l MaskingLogger) Warn(text string, fs ...Field) {
	l.log.Warn(l.masker.Mask(text), l.maskFields(fs)...)
}

// Error logs message at "error" level.
func (l MaskingLogger) Error(text string, fs ...Field) {
	l.log.Error(l.masker.Mask(text), l.maskFields(fs)...)
}

// Debugf logs a formatted message at "debug" level.
func (l MaskingLogger) Debugf(format string, args ...interface{}) {
	l.AtLevel(LevelDebug, func(write LogFunc) { write(fmt.Sprintf(format, args...)) })
}

// Infof logs a formatted message at "info" level.
func (l MaskingLogger) Infof(format string, args ...interface{}) {
	l.AtLevel(LevelInfo, func(write LogFunc) { write(fmt.Sprintf(format, args...)) })
}

// Warnf logs a formatted message at "warn" level.
func (l MaskingLogger) Warnf(format string, args ...interface{}) {
	l.AtLevel(LevelWarn, func(write LogFunc) { write(fmt.Sprintf(format, args...)) })
}

// Errorf logs a formatted message at "error" level.
func (l MaskingLogger) Errorf(format string, args ...interface{}) {
	l.AtLevel(LevelError, func(write LogFunc) { write(fmt.Sprintf(format, args...)) })
}

// AtLevel calls fn if the level is enabled, passing a LogFunc that masks its input.
func (l MaskingLogger) AtLevel(level Level, fn func(logFunc LogFunc)) {
	l.log.AtLevel(level, func(logFunc LogFunc) {
		fn(func(msg string, fs ...Field) {
			logFunc(l.masker.Mask(msg), l.maskFields(fs)...)
		})
	})
}

// WithLevel returns a new logger with additional level check.
func (l MaskingLogger) WithLevel(level Level) FieldLogger {
	return MaskingLogger{l.log.WithLevel(level), l.masker}
}

var stringSliceType = reflect.TypeOf([]string{})

// maskFields returns fields as is when nothing was masked.
func (l MaskingLogger) maskFields(fields []Field) []Field {
	var masked []Field
	for i := range fields {
		newField, changed := l.maskField(fields[i])
		if !changed {
			continue
		}
		if masked == nil {
			masked = make([]Field, len(fields))
			copy(masked, fields)
		}
		masked[i] = newField
	}
	if masked == nil {
		return fields
	}
	return masked
}

func (l MaskingLogger) maskField(field Field) (Field, bool) {
	switch field.Type {
	case logf.FieldTypeBytesToString, logf.FieldTypeBytes, logf.FieldTypeRawBytes:
		if field.Bytes == nil {
			return field, false
		}
		s := string(field.Bytes)
		if m := l.masker.Mask(s); m != s {
			if field.Type == logf.FieldTypeBytesToString {
				return String(field.Key, m), true
			}
			return logf.ConstBytes(field.Key, []byte(m)), true
		}
	case logf.FieldTypeError:
		err, ok := field.Any.(error)
		if !ok || err == nil {
			return field, false
		}
		s := err.Error()
		if m := l.masker.Mask(s); m != s {
			return NamedError(field.Key, newMaskedError(err, l.masker, m)), true
		}
	case logf.FieldTypeArray:
		if field.Any == nil {
			return field, false
		}
		value := reflect.ValueOf(field.Any)
		if !value.CanConvert(stringSliceType) {
			return field, false
		}
		ss := value.Convert(stringSliceType).Interface().([]string)
		var changed bool
		ms := make([]string, len(ss))
		for i, s := range ss {
			ms[i] = l.masker.Mask(s)
			changed = changed || ms[i] != s
		}
		if changed {
			return Strings(field.Key, ms), true
		}
	}
	return field, false
}

func newMaskedError(err error, m StringMasker, masked string) error {
	if _, ok := err.(fmt.Formatter); ok {
		return maskedError{s: masked, verboseS: m.Mask(fmt.Sprintf("%+v", err))}
	}
	return errors.New(masked)
}

// maskedError keeps logf "error_verbose" field masked too.
type maskedError struct {
	s        string
	verboseS string
}

func (e maskedError) Error() string {
	return e.s
}

func (e maskedError) Format(f fmt.State, _ rune) {
	_, _ = io.WriteString(f, e.verboseS)
}
