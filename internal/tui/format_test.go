package tui

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"codeberg.org/algopatterns/collab/internal/config"
)

func TestUpdateText(t *testing.T) {
	assert.Equal(t, "hello", updateText(json.RawMessage(`{"text":"hello"}`)))
	assert.Equal(t, `{"x":1}`, updateText(json.RawMessage(`{"x":1}`)))
	assert.Equal(t, "null", updateText(nil))
}

func TestNames(t *testing.T) {
	assert.Equal(t, "nobody", names(nil))
	assert.Equal(t, "Ann (A), B", names([]participant{
		{UserID: "A", DisplayName: "Ann"},
		{UserID: "B", DisplayName: "B"},
	}))
}

func TestDescribe(t *testing.T) {
	assert.Contains(t, describe(Frame{Type: typeUpdate, UserID: "A", Data: json.RawMessage(`{"text":"hi"}`)}), "hi")
	assert.Contains(t, describe(Frame{Type: typeError, Code: "bad_request", Message: "nope"}), "nope")
	assert.Contains(t, describe(Frame{Type: typeServerShutdown, Data: json.RawMessage(`{"reason":"restart"}`)}), "restart")
	assert.Empty(t, describe(Frame{Type: typePong}))
	assert.Empty(t, describe(Frame{Type: typePresence, Data: json.RawMessage(`"bad"`)}))
}

func TestApplyFrame(t *testing.T) {
	m := NewApp(config.WatchFlags{DocumentID: "doc-1"})

	m.applyFrame(Frame{Type: typeInit, Data: json.RawMessage(
		`{"documentId":"doc-1","participants":[{"userId":"A","displayName":"Ann"}],"sessionCount":1}`)})
	assert.Equal(t, []participant{{UserID: "A", DisplayName: "Ann"}}, m.participants)

	m.applyFrame(Frame{Type: typeSync, Data: json.RawMessage(
		`{"updates":[{"type":"update","userId":"B","data":{"text":"one"},"timestamp":1},{"type":"update","userId":"B","data":{"text":"two"},"timestamp":2}]}`)})
	assert.Len(t, m.lines, 3)
	assert.Contains(t, m.lines[2], "two")

	m.applyFrame(Frame{Type: typePresence, Data: json.RawMessage(`{"participants":[]}`)})
	assert.Empty(t, m.participants)

	m.applyFrame(Frame{Type: typePong})
	assert.Len(t, m.lines, 4)
}

func TestAppendLine_Bounded(t *testing.T) {
	m := NewApp(config.WatchFlags{})

	for i := 0; i < maxLogLines+10; i++ {
		m.appendLine("x")
	}

	assert.Len(t, m.lines, maxLogLines)
}
