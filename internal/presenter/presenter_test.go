package presenter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canary-speech-client/internal/canary"
)

const fullPayload = `{"assessmentId":"a-1","subjectId":"s-1","scores":[{"code":"mood","data":{"result":0.82}},{"code":"energy","data":{"result":"low"}}]}`

func decodeResult(t *testing.T, raw string) *canary.ScoreResult {
	t.Helper()
	var r canary.ScoreResult
	require.NoError(t, json.Unmarshal([]byte(raw), &r))
	r.Raw = json.RawMessage(raw)
	return &r
}

func TestRender_Text(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, decodeResult(t, fullPayload), FormatText))
	out := buf.String()

	assert.Contains(t, out, "ASSESSMENT SCORES")
	assert.Contains(t, out, "Assessment ID: a-1\n")
	assert.Contains(t, out, "Subject ID: s-1\n")
	assert.Contains(t, out, "  mood:\n    Result: 0.82\n")
	assert.Contains(t, out, "  energy:\n    Result: low\n")
	assert.Contains(t, out, "Full Response (JSON):")
	assert.Contains(t, out, `  "assessmentId": "a-1"`)
	assert.NotContains(t, out, absent)
}

func TestRender_MissingFieldsAreAbsent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{"empty object", `{}`, []string{"Assessment ID: (absent)", "Subject ID: (absent)", "Scores: (absent)"}},
		{"score without data", `{"assessmentId":"a","scores":[{"code":"mood"}]}`, []string{"  mood:\n    Result: (absent)"}},
		{"score without code", `{"scores":[{"data":{"result":1}}]}`, []string{"  (absent):\n    Result: 1"}},
		{"null result", `{"scores":[{"code":"x","data":{"result":null}}]}`, []string{"Result: (absent)"}},
		{"object result", `{"scores":[{"code":"x","data":{"result":{"p":0.5}}}]}`, []string{`Result: {"p":0.5}`}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, Render(&buf, decodeResult(t, tt.payload), FormatText))
			for _, want := range tt.want {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestRender_NilResult(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, nil, FormatText))
	assert.Contains(t, buf.String(), "Assessment ID: (absent)")
}

func TestRender_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, decodeResult(t, fullPayload), FormatJSON))

	out := buf.String()
	assert.JSONEq(t, fullPayload, out)
	assert.True(t, strings.HasPrefix(out, "{\n  \"assessmentId\""))
	assert.NotContains(t, out, "ASSESSMENT SCORES")
}

func TestRender_JSONWithoutRaw(t *testing.T) {
	r := &canary.ScoreResult{AssessmentID: "a-2"}
	var buf bytes.Buffer
	require.NoError(t, Render(&buf, r, FormatJSON))
	assert.JSONEq(t, `{"assessmentId":"a-2"}`, buf.String())
}
