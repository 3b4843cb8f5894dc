package queue

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleMessage() TaskMessage {
	return TaskMessage{
		CorpCode:    "00126380",
		CorpName:    "삼성전자",
		StockCode:   "005930",
		CorpClass:   "Y",
		ReportName:  "주요사항보고서",
		ReceiptNo:   "20241125000001",
		FilerName:   "삼성전자",
		ReceiptDate: "20241125",
		ObjectKey:   "20241125/20241125000001.html",
		ContentType: "text/html; charset=UTF-8",
		FileSize:    5241,
		PollingDate: "20241125",
	}
}

func TestEncodeCeleryTaskEnvelope(t *testing.T) {
	t.Parallel()

	body, err := EncodeCeleryTask("tasks.process_disclosure", sampleMessage())
	require.NoError(t, err)

	var env map[string]any
	require.NoError(t, json.Unmarshal(body, &env))

	assert.Equal(t, "tasks.process_disclosure", env["task"])
	assert.Equal(t, float64(0), env["retries"])
	assert.Equal(t, []any{}, env["args"])

	_, err = uuid.Parse(env["id"].(string))
	assert.NoError(t, err, "task id must be a valid UUID")

	kwargs, ok := env["kwargs"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "20241125000001", kwargs["rcept_no"])
	assert.Equal(t, "20241125/20241125000001.html", kwargs["object_key"])
	assert.Equal(t, float64(5241), kwargs["file_size"])
}

func TestEncodeCeleryTaskFreshIDPerCall(t *testing.T) {
	t.Parallel()

	first, err := EncodeCeleryTask("tasks.process_disclosure", sampleMessage())
	require.NoError(t, err)
	second, err := EncodeCeleryTask("tasks.process_disclosure", sampleMessage())
	require.NoError(t, err)

	var a, b map[string]any
	require.NoError(t, json.Unmarshal(first, &a))
	require.NoError(t, json.Unmarshal(second, &b))
	assert.NotEqual(t, a["id"], b["id"])
}

func TestTaskMessageOmitsEmptyOptionalFields(t *testing.T) {
	t.Parallel()

	msg := sampleMessage()
	msg.StockCode = ""
	msg.FilerName = ""
	msg.Remark = ""

	body, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.NotContains(t, decoded, "stock_code")
	assert.NotContains(t, decoded, "flr_nm")
	assert.NotContains(t, decoded, "rm")
	assert.Contains(t, decoded, "corp_cls")
}
