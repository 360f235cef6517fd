package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastEvent(t *testing.T, buf *bytes.Buffer) Event {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	line := lines[len(lines)-1]
	idx := strings.Index(line, "AUDIT: ")
	require.GreaterOrEqual(t, idx, 0, line)

	var event Event
	require.NoError(t, json.Unmarshal([]byte(line[idx+len("AUDIT: "):]), &event))
	return event
}

func TestAuditLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAuditLoggerTo(&buf)

	t.Run("ledger entry", func(t *testing.T) {
		logger.LogEntry("entry-1", "acct-1", "purchase", 1100, 1100)
		event := lastEvent(t, &buf)
		assert.Equal(t, "LEDGER_ENTRY", event.EventType)
		assert.Equal(t, "acct-1", event.AccountID)
		assert.Equal(t, int64(1100), event.Amount)
		assert.Equal(t, "SUCCESS", event.Status)
	})

	t.Run("transfer", func(t *testing.T) {
		logger.LogTransfer("ref-1", "a", "b", 30, "FAILED")
		event := lastEvent(t, &buf)
		assert.Equal(t, "TRANSFER", event.EventType)
		assert.Equal(t, "FAILED", event.Status)
		assert.Equal(t, map[string]any{"from_account": "a", "to_account": "b"}, event.Details)
	})

	t.Run("webhook", func(t *testing.T) {
		logger.LogWebhook("evt_1", "checkout.session.completed", "DUPLICATE")
		event := lastEvent(t, &buf)
		assert.Equal(t, "WEBHOOK", event.EventType)
		assert.Equal(t, "evt_1", event.Reference)
		assert.Equal(t, "DUPLICATE", event.Status)
	})

	t.Run("error", func(t *testing.T) {
		logger.LogError("ref-2", "acct-2", errors.New("insufficient FATI balance"))
		event := lastEvent(t, &buf)
		assert.Equal(t, "ERROR", event.EventType)
		assert.Equal(t, map[string]any{"error": "insufficient FATI balance"}, event.Details)
	})
}
