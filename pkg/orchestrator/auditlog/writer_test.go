package auditlog_test

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hodei/authzcore/pkg/orchestrator"
	"github.com/hodei/authzcore/pkg/orchestrator/auditlog"
)

func TestRecordWritesOneJSONLinePerEvent(t *testing.T) {
	var buf bytes.Buffer
	log := auditlog.NewWriter(&buf)

	require.NoError(t, log.Record(context.Background(), orchestrator.AuditEvent{EventID: "1", Decision: "Allow"}))
	require.NoError(t, log.Record(context.Background(), orchestrator.AuditEvent{EventID: "2", Decision: "Deny"}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)

	var first orchestrator.AuditEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "1", first.EventID)
	assert.Equal(t, "Allow", first.Decision)
}
