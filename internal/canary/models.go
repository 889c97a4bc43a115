package canary

import (
	"encoding/json"
	"sort"
	"strings"
)

// Workflow steps, used as error and metric labels.
const (
	StepAuthenticate    = "authenticate"
	StepCreateSubject   = "create-subject"
	StepBeginAssessment = "begin-assessment"
	StepUpload          = "upload"
	StepEndAssessment   = "end-assessment"
	StepPoll            = "poll"
	StepListScores      = "list-scores"
)

// TimestampLayout is RFC 3339 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

const responseTypeRecorded = "recordedResponse"

type Subject struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

type Assessment struct {
	ID         string            `json:"id"`
	SubjectID  string            `json:"-"`
	UploadURLs map[string]string `json:"uploadUrls"`
}

// ResponseCodes returns the upload URL keys in lexicographic order.
func (a *Assessment) ResponseCodes() []string {
	codes := make([]string, 0, len(a.UploadURLs))
	for code := range a.UploadURLs {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Status is the processing state reported by the poll endpoint.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusUnknown    Status = "unknown"
)

func (s Status) normalized() string {
	return strings.ToLower(strings.TrimSpace(string(s)))
}

// Completed reports a status meaning scores are available.
func (s Status) Completed() bool {
	n := s.normalized()
	return n == "completed" || n == "complete"
}

// Failed reports a status meaning the assessment will never be scored.
func (s Status) Failed() bool {
	n := s.normalized()
	return n == "failed" || n == "error"
}

// Terminal reports whether polling can stop.
func (s Status) Terminal() bool {
	return s.Completed() || s.Failed()
}

type Score struct {
	Code string     `json:"code,omitempty"`
	Data *ScoreData `json:"data,omitempty"`
}

type ScoreData struct {
	Result json.RawMessage `json:"result,omitempty"`
}

// ScoreResult is the decoded list-scores payload. Raw keeps the document as
// received so nothing the server sent is lost when it is displayed.
type ScoreResult struct {
	AssessmentID string          `json:"assessmentId,omitempty"`
	SubjectID    string          `json:"subjectId,omitempty"`
	Scores       []Score         `json:"scores,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

type createSubjectRequest struct {
	ProjectID string `json:"projectId"`
	Name      string `json:"name"`
}

type beginAssessmentRequest struct {
	SurveyCode         string `json:"surveyCode"`
	SubjectID          string `json:"subjectId"`
	GenerateUploadURLs bool   `json:"generateUploadUrls"`
}

type endAssessmentRequest struct {
	AssessmentID string         `json:"assessmentId"`
	ResponseData []responseData `json:"responseData"`
}

type responseData struct {
	Timestamp string           `json:"timestamp"`
	Code      string           `json:"code"`
	Type      string           `json:"type"`
	Data      responseDuration `json:"data"`
}

type responseDuration struct {
	Duration float64 `json:"duration"`
}

type pollResponse struct {
	Status Status `json:"status"`
}
