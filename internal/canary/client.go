package canary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"canary-speech-client/internal/common/errors"
	commonhttp "canary-speech-client/internal/common/http"
	"canary-speech-client/internal/common/logger"
	"canary-speech-client/internal/common/validation"
)

const (
	pathCreateSubject   = "/v3/api/create-subject"
	pathBeginAssessment = "/v3/api/assessment/begin"
	pathEndAssessment   = "/v3/api/assessment/end"
	pathPoll            = "/v3/api/assessment/poll"
	pathListScores      = "/v3/api/list-scores"
)

// TokenSource supplies the bearer token for API calls.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client calls the Canary Speech v3 REST API. Every method maps a non-2xx
// response to an API_ERROR carrying its step and status code.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *commonhttp.Client
	logger     logger.Logger
	now        func() time.Time
}

func NewClient(baseURL string, tokens TokenSource, httpClient *commonhttp.Client, log logger.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		tokens:     tokens,
		httpClient: httpClient,
		logger:     log.With(map[string]interface{}{"component": "canary-client"}),
		now:        time.Now,
	}
}

func (c *Client) CreateSubject(ctx context.Context, projectID, name string) (*Subject, error) {
	resp, err := c.doJSON(ctx, StepCreateSubject, http.MethodPost, pathCreateSubject, nil, createSubjectRequest{
		ProjectID: projectID,
		Name:      name,
	})
	if err != nil {
		return nil, err
	}

	var subject Subject
	if err := decode(StepCreateSubject, createSubjectSchema, resp, &subject); err != nil {
		return nil, err
	}
	subject.Name = name

	c.logger.Info("Subject created", map[string]interface{}{
		"subjectId": subject.ID,
		"requestId": resp.RequestID,
	})
	return &subject, nil
}

// BeginAssessment starts an assessment and asks for pre-signed upload URLs.
// A response without any upload URL is an API_ERROR.
func (c *Client) BeginAssessment(ctx context.Context, surveyCode, subjectID string) (*Assessment, error) {
	resp, err := c.doJSON(ctx, StepBeginAssessment, http.MethodPost, pathBeginAssessment, nil, beginAssessmentRequest{
		SurveyCode:         surveyCode,
		SubjectID:          subjectID,
		GenerateUploadURLs: true,
	})
	if err != nil {
		return nil, err
	}

	var assessment Assessment
	if err := decode(StepBeginAssessment, beginAssessmentSchema, resp, &assessment); err != nil {
		return nil, err
	}
	if len(assessment.UploadURLs) == 0 {
		return nil, errors.NewAPIError(StepBeginAssessment, resp.StatusCode, "response contains no upload URLs")
	}
	assessment.SubjectID = subjectID

	c.logger.Info("Assessment started", map[string]interface{}{
		"assessmentId":  assessment.ID,
		"responseCodes": assessment.ResponseCodes(),
		"requestId":     resp.RequestID,
	})
	return &assessment, nil
}

// UploadRecording streams body to a pre-signed URL. The URL carries its own
// authorization, so no bearer token is sent.
func (c *Client) UploadRecording(ctx context.Context, uploadURL string, body io.Reader, size int64, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, body)
	if err != nil {
		return errors.NewAPIError(StepUpload, 0, fmt.Sprintf("invalid upload URL: %v", err))
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", contentType)

	start := time.Now()
	resp, err := c.httpClient.Send(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return errors.NewTransportError(StepUpload, err)
	}
	if !resp.OK() {
		return errors.NewAPIError(StepUpload, resp.StatusCode, resp.Excerpt())
	}

	c.logger.Info("Recording uploaded", map[string]interface{}{
		"bytes":       size,
		"contentType": contentType,
		"durationMs":  time.Since(start).Milliseconds(),
		"requestId":   resp.RequestID,
	})
	return nil
}

// EndAssessment closes the assessment with one recorded response, which
// triggers scoring.
func (c *Client) EndAssessment(ctx context.Context, assessmentID, responseCode string, durationSeconds float64) error {
	payload := endAssessmentRequest{
		AssessmentID: assessmentID,
		ResponseData: []responseData{{
			Timestamp: c.now().UTC().Format(TimestampLayout),
			Code:      responseCode,
			Type:      responseTypeRecorded,
			Data:      responseDuration{Duration: durationSeconds},
		}},
	}

	resp, err := c.doJSON(ctx, StepEndAssessment, http.MethodPost, pathEndAssessment, nil, payload)
	if err != nil {
		return err
	}

	c.logger.Info("Assessment ended, scoring in progress", map[string]interface{}{
		"assessmentId": assessmentID,
		"requestId":    resp.RequestID,
	})
	return nil
}

// PollStatus asks once for the assessment status. A missing status is
// reported as StatusUnknown. Transport failures, 5xx and 429 responses come
// back as retryable errors.
func (c *Client) PollStatus(ctx context.Context, assessmentID string) (Status, error) {
	query := url.Values{"assessmentId": {assessmentID}}
	resp, err := c.doJSON(ctx, StepPoll, http.MethodGet, pathPoll, query, nil)
	if err != nil {
		return "", err
	}

	var poll pollResponse
	if err := decode(StepPoll, pollSchema, resp, &poll); err != nil {
		return "", err
	}
	if poll.Status == "" {
		poll.Status = StatusUnknown
	}
	return poll.Status, nil
}

func (c *Client) ListScores(ctx context.Context, assessmentID string) (*ScoreResult, error) {
	query := url.Values{"assessmentId": {assessmentID}}
	resp, err := c.doJSON(ctx, StepListScores, http.MethodGet, pathListScores, query, nil)
	if err != nil {
		return nil, err
	}

	var result ScoreResult
	if err := decode(StepListScores, listScoresSchema, resp, &result); err != nil {
		return nil, err
	}
	result.Raw = json.RawMessage(resp.Body)

	c.logger.Info("Scores retrieved", map[string]interface{}{
		"assessmentId": assessmentID,
		"scores":       len(result.Scores),
		"requestId":    resp.RequestID,
	})
	return &result, nil
}

func (c *Client) doJSON(ctx context.Context, step, method, path string, query url.Values, payload interface{}) (*commonhttp.Response, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := commonhttp.NewJSONRequest(ctx, method, endpoint, payload)
	if err != nil {
		return nil, errors.NewAPIError(step, 0, err.Error())
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Send(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewTransportError(step, err)
	}

	c.logger.Debug("API call", map[string]interface{}{
		"step":       step,
		"method":     method,
		"path":       path,
		"statusCode": resp.StatusCode,
		"requestId":  resp.RequestID,
	})

	if !resp.OK() {
		return nil, errors.NewAPIError(step, resp.StatusCode, resp.Excerpt())
	}
	return resp, nil
}

func decode(step string, schema *validation.Schema, resp *commonhttp.Response, v interface{}) error {
	if result := schema.Validate(resp.Body); !result.Valid {
		return errors.NewAPIError(step, resp.StatusCode, "invalid response: "+result.Summary())
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return errors.NewAPIError(step, resp.StatusCode, fmt.Sprintf("failed to decode response: %v", err))
	}
	return nil
}
