package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizePayloadMasksSecrets(t *testing.T) {
	payload := map[string]any{
		"reference":     "ASPOI-1",
		"Authorization": "Bearer sk_live_x",
		"headers": map[string]any{
			"x-paystack-signature": "abc",
			"verif-hash":           "def",
		},
		"items": []any{map[string]any{"secret_key": "sk"}},
	}

	sanitized, ok := SanitizePayload(payload).(map[string]any)
	if !assert.True(t, ok) {
		return
	}

	assert.Equal(t, "ASPOI-1", sanitized["reference"])
	assert.Equal(t, "******", sanitized["Authorization"])

	headers := sanitized["headers"].(map[string]any)
	assert.Equal(t, "******", headers["x-paystack-signature"])
	assert.Equal(t, "******", headers["verif-hash"])

	items := sanitized["items"].([]any)
	assert.Equal(t, "******", items[0].(map[string]any)["secret_key"])
}

func TestSanitizePayloadUnmarshalableValue(t *testing.T) {
	assert.Equal(t, "<unavailable>", SanitizePayload(make(chan int)))
}

func TestSecurityWritesStructuredLine(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	Security("client amount disagrees with catalog", Fields{
		"tier":       "Corporate",
		"channelKey": "s3cret",
	})

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, true, line["security"])
	assert.Equal(t, "client amount disagrees with catalog", line["message"])
	assert.Equal(t, "Corporate", line["tier"])
	assert.Equal(t, "******", line["channelKey"])
}

func TestErrorIncludesCause(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() { SetOutput(os.Stderr) })

	Error("gateway call failed", errors.New("connection reset"), nil)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "error", line["level"])
	assert.Equal(t, "connection reset", line["error"])
}
