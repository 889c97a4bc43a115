// internal/workflow/orchestrator.go
package workflow

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"canary-speech-client/internal/audio"
	"canary-speech-client/internal/canary"
	"canary-speech-client/internal/common/errors"
	"canary-speech-client/internal/common/logger"
	"canary-speech-client/internal/common/metrics"
	"canary-speech-client/internal/common/observability"
)

const spanRun = "workflow.run"

// API is the set of remote calls the workflow makes.
type API interface {
	CreateSubject(ctx context.Context, projectID, name string) (*canary.Subject, error)
	BeginAssessment(ctx context.Context, surveyCode, subjectID string) (*canary.Assessment, error)
	UploadRecording(ctx context.Context, uploadURL string, body io.Reader, size int64, contentType string) error
	EndAssessment(ctx context.Context, assessmentID, responseCode string, durationSeconds float64) error
	PollStatus(ctx context.Context, assessmentID string) (canary.Status, error)
	ListScores(ctx context.Context, assessmentID string) (*canary.ScoreResult, error)
}

// Authenticator performs the token exchange.
type Authenticator interface {
	Token(ctx context.Context) (string, error)
}

// Request describes one assessment run.
type Request struct {
	ProjectID   string
	SurveyCode  string
	SubjectName string
	AudioFile   string
	// ResponseCode selects the upload URL. Empty picks the first code in
	// lexicographic order.
	ResponseCode string
}

// Result is what a run produced. Fields are filled in as steps succeed,
// so on failure it shows how far the run got.
type Result struct {
	State        State
	Recording    *audio.Recording
	Subject      *canary.Subject
	Assessment   *canary.Assessment
	ResponseCode string
	PollAttempts int
	Scores       *canary.ScoreResult
}

type Orchestrator struct {
	api     API
	auth    Authenticator
	poll    PollPolicy
	logger  logger.Logger
	metrics *metrics.Recorder
	obs     *observability.Observability
}

type Option func(*Orchestrator)

func WithMetrics(r *metrics.Recorder) Option {
	return func(o *Orchestrator) { o.metrics = r }
}

func WithObservability(obs *observability.Observability) Option {
	return func(o *Orchestrator) { o.obs = obs }
}

func NewOrchestrator(api API, auth Authenticator, poll PollPolicy, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:    api,
		auth:   auth,
		poll:   poll,
		logger: log.With(map[string]interface{}{"component": "workflow"}),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = metrics.NewRecorder()
	}
	return o
}

// Run performs the whole workflow once. The returned Result is never nil;
// its State is the last state reached. Every StandardError returned names
// the step that failed.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	ctx, span := o.obs.StartSpan(ctx, spanRun,
		attribute.String("subjectName", req.SubjectName),
		attribute.String("audioFile", req.AudioFile),
	)

	res := &Result{State: StateUnauthenticated}
	err := o.run(ctx, req, res)

	observability.EndSpan(span, err)
	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = metrics.OutcomeFailure
		o.logger.Error("Workflow halted", map[string]interface{}{
			"state": res.State.String(),
			"error": err.Error(),
		})
	}
	o.obs.RecordRun(ctx, outcome, time.Since(start))
	return res, err
}

func (o *Orchestrator) run(ctx context.Context, req Request, res *Result) error {
	// The recording is checked before any remote call so a bad file never
	// leaves an orphaned subject or assessment behind.
	rec, err := o.inspectRecording(req.AudioFile)
	if err != nil {
		return err
	}
	res.Recording = rec

	if err := o.step(ctx, canary.StepAuthenticate, func(ctx context.Context) error {
		_, err := o.auth.Token(ctx)
		return err
	}); err != nil {
		return err
	}
	res.State = StateAuthenticated

	if err := o.step(ctx, canary.StepCreateSubject, func(ctx context.Context) error {
		subject, err := o.api.CreateSubject(ctx, req.ProjectID, req.SubjectName)
		res.Subject = subject
		return err
	}); err != nil {
		return err
	}
	res.State = StateSubjectCreated

	if err := o.step(ctx, canary.StepBeginAssessment, func(ctx context.Context) error {
		assessment, err := o.api.BeginAssessment(ctx, req.SurveyCode, res.Subject.ID)
		res.Assessment = assessment
		return err
	}); err != nil {
		return err
	}
	res.State = StateAssessmentStarted

	code, uploadURL, err := SelectResponseCode(res.Assessment, req.ResponseCode)
	if err != nil {
		return err
	}
	res.ResponseCode = code

	if err := o.step(ctx, canary.StepUpload, func(ctx context.Context) error {
		return o.upload(ctx, uploadURL, rec)
	}); err != nil {
		return err
	}
	res.State = StateUploaded

	if err := o.step(ctx, canary.StepEndAssessment, func(ctx context.Context) error {
		return o.api.EndAssessment(ctx, res.Assessment.ID, code, rec.Duration())
	}); err != nil {
		return err
	}
	res.State = StateEnded

	res.State = StatePolling
	if err := o.step(ctx, canary.StepPoll, func(ctx context.Context) error {
		attempts, err := o.pollUntilDone(ctx, res.Assessment.ID)
		res.PollAttempts = attempts
		return err
	}); err != nil {
		return err
	}

	if err := o.step(ctx, canary.StepListScores, func(ctx context.Context) error {
		scores, err := o.api.ListScores(ctx, res.Assessment.ID)
		res.Scores = scores
		return err
	}); err != nil {
		return err
	}
	res.State = StateScored

	o.logger.Info("Workflow completed", map[string]interface{}{
		"subjectId":    res.Subject.ID,
		"assessmentId": res.Assessment.ID,
		"pollAttempts": res.PollAttempts,
	})
	return nil
}

// step runs fn inside a span, records its metrics and tags a returned
// StandardError with the step name.
func (o *Orchestrator) step(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := o.obs.StartSpan(ctx, name)
	start := time.Now()

	err := errors.WithStep(fn(ctx), name)

	o.metrics.ObserveStep(name, err, time.Since(start))
	observability.EndSpan(span, err)
	return err
}

func (o *Orchestrator) inspectRecording(path string) (*audio.Recording, error) {
	rec, err := audio.OpenRecording(path)
	if err != nil {
		o.metrics.ObserveStep(canary.StepUpload, err, 0)
		return nil, err
	}

	fields := map[string]interface{}{
		"path":        rec.Path,
		"bytes":       rec.Size,
		"contentType": rec.ContentType,
	}
	if rec.Info != nil {
		fields["sampleRate"] = rec.Info.SampleRate
		fields["bitsPerSample"] = rec.Info.BitsPerSample
		fields["channels"] = rec.Info.Channels
		fields["durationSeconds"] = rec.Info.Duration
	}
	o.logger.Info("Recording checked", fields)
	for _, w := range rec.Warnings {
		o.logger.Warn("Recording guideline not met", map[string]interface{}{"warning": w})
	}
	return rec, nil
}

func (o *Orchestrator) upload(ctx context.Context, uploadURL string, rec *audio.Recording) error {
	f, err := rec.Open()
	if err != nil {
		return err
	}
	defer f.Close()
	return o.api.UploadRecording(ctx, uploadURL, f, rec.Size, rec.ContentType)
}

// SelectResponseCode returns the response code and its upload URL. An empty
// requested code selects the lexicographically first one; an unknown code is
// an UPLOAD_ERROR listing the available codes.
func SelectResponseCode(a *canary.Assessment, requested string) (string, string, error) {
	codes := a.ResponseCodes()
	if len(codes) == 0 {
		return "", "", errors.NewAPIError(canary.StepBeginAssessment, 0, "response contains no upload URLs")
	}
	if requested == "" {
		return codes[0], a.UploadURLs[codes[0]], nil
	}
	if u, ok := a.UploadURLs[requested]; ok {
		return requested, u, nil
	}
	return "", "", errors.NewUploadError(fmt.Sprintf(
		"response code %q not offered by the assessment (available: %s)", requested, strings.Join(codes, ", ")), nil)
}
