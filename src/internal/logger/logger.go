package logger

import (
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

type Fields map[string]any

const redacted = "******"

var sensitiveKeys = map[string]struct{}{
	"authorization":        {},
	"secretkey":            {},
	"secret_key":           {},
	"paystacksecretkey":    {},
	"flutterwavesecretkey": {},
	"stripesecretkey":      {},
	"webhooksecret":        {},
	"webhookhash":          {},
	"verifhash":            {},
	"xpaystacksignature":   {},
	"stripesignature":      {},
	"signature":            {},
	"channelkey":           {},
	"password":             {},
	"databasedsn":          {},
	"content":              {},
	"authorization_code":   {},
	"authorizationcode":    {},
}

var (
	mu   sync.RWMutex
	base = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Logger()
}

// SetOutput redirects every subsequent log line to w.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	base = newLogger(w)
}

func current() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return base
}

func Info(message string, fields Fields) {
	l := current()
	emit(l.Info(), message, fields)
}

func Warn(message string, fields Fields) {
	l := current()
	emit(l.Warn(), message, fields)
}

// Security logs an event that an operator should review, such as a tampered
// amount or a signal for an unknown transaction.
func Security(message string, fields Fields) {
	l := current()
	emit(l.Warn().Bool("security", true), message, fields)
}

func Error(message string, err error, fields Fields) {
	l := current()
	emit(l.Error().Err(err), message, fields)
}

func emit(event *zerolog.Event, message string, fields Fields) {
	if len(fields) > 0 {
		if sanitized, ok := SanitizePayload(map[string]any(fields)).(map[string]any); ok {
			event = event.Fields(sanitized)
		} else {
			event = event.Str("fields", "<unavailable>")
		}
	}
	event.Msg(message)
}

func SanitizePayload(payload any) any {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "<unavailable>"
	}

	var data any
	if err := json.Unmarshal(raw, &data); err != nil {
		return "<unavailable>"
	}

	return sanitizeValue(data)
}

func sanitizeValue(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for key, inner := range typed {
			if isSensitiveKey(key) {
				out[key] = redacted
				continue
			}
			out[key] = sanitizeValue(inner)
		}
		return out
	case []any:
		out := make([]any, 0, len(typed))
		for _, item := range typed {
			out = append(out, sanitizeValue(item))
		}
		return out
	default:
		return value
	}
}

func isSensitiveKey(key string) bool {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(key), "-", ""))
	_, ok := sensitiveKeys[normalized]
	return ok
}
