// Package presenter renders assessment scores for the terminal.
package presenter

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"canary-speech-client/internal/canary"
)

const (
	FormatText = "text"
	FormatJSON = "json"

	absent = "(absent)"
)

var (
	heavyRule = strings.Repeat("=", 60)
	lightRule = strings.Repeat("-", 60)
)

// Render writes result to w. Fields missing from the payload are shown as
// "(absent)". Only write errors are returned.
func Render(w io.Writer, result *canary.ScoreResult, format string) error {
	bw := bufio.NewWriter(w)
	if format == FormatJSON {
		bw.Write(prettyJSON(result))
		bw.WriteString("\n")
		return bw.Flush()
	}

	fmt.Fprintf(bw, "\n%s\nASSESSMENT SCORES\n%s\n\n", heavyRule, heavyRule)

	if result == nil {
		fmt.Fprintf(bw, "Assessment ID: %s\nSubject ID: %s\n\nScores: %s\n", absent, absent, absent)
		fmt.Fprintf(bw, "%s\n", heavyRule)
		return bw.Flush()
	}

	fmt.Fprintf(bw, "Assessment ID: %s\n", orAbsent(result.AssessmentID))
	fmt.Fprintf(bw, "Subject ID: %s\n", orAbsent(result.SubjectID))

	if len(result.Scores) == 0 {
		fmt.Fprintf(bw, "\nScores: %s\n", absent)
	} else {
		fmt.Fprintf(bw, "\nScores:\n")
		for _, score := range result.Scores {
			fmt.Fprintf(bw, "\n  %s:\n", orAbsent(score.Code))
			fmt.Fprintf(bw, "    Result: %s\n", resultValue(score))
		}
	}

	fmt.Fprintf(bw, "\n%s\nFull Response (JSON):\n%s\n", lightRule, lightRule)
	bw.Write(prettyJSON(result))
	fmt.Fprintf(bw, "\n%s\n", heavyRule)
	return bw.Flush()
}

func orAbsent(s string) string {
	if strings.TrimSpace(s) == "" {
		return absent
	}
	return s
}

// resultValue prints strings without quotes and any other JSON value as is.
func resultValue(score canary.Score) string {
	if score.Data == nil || len(score.Data.Result) == 0 || string(score.Data.Result) == "null" {
		return absent
	}
	var s string
	if err := json.Unmarshal(score.Data.Result, &s); err == nil {
		return orAbsent(s)
	}
	return string(score.Data.Result)
}

// prettyJSON indents the raw payload, falling back to re-encoding the
// decoded result when no valid raw document is available.
func prettyJSON(result *canary.ScoreResult) []byte {
	if result == nil {
		return []byte("{}")
	}
	if len(result.Raw) > 0 {
		var buf bytes.Buffer
		if err := json.Indent(&buf, result.Raw, "", "  "); err == nil {
			return buf.Bytes()
		}
		return bytes.TrimSpace(result.Raw)
	}
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return []byte("{}")
	}
	return out
}
