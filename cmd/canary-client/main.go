// cmd/canary-client/main.go
package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"canary-speech-client/internal/canary"
	"canary-speech-client/internal/common/auth"
	"canary-speech-client/internal/common/config"
	"canary-speech-client/internal/common/errors"
	commonhttp "canary-speech-client/internal/common/http"
	"canary-speech-client/internal/common/logger"
	"canary-speech-client/internal/common/metrics"
	"canary-speech-client/internal/common/observability"
	"canary-speech-client/internal/presenter"
	"canary-speech-client/internal/workflow"
)

const serviceName = "canary-client"

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// cli carries what the command needs across cobra's callbacks.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	log    logger.Logger
}

// run executes one invocation and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{
		stdout: stdout,
		stderr: stderr,
		// Replaced once the configured level and format are known.
		log: logger.NewZapAdapter(logger.New("info", "console")),
	}

	cmd := c.newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(stderr, errorLine(err))
	}
	return errors.NewErrorHandler(c.log).Handle(err)
}

func (c *cli) newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "canary-client --audio-file FILE --subject-name NAME",
		Short: "Submit a recording to the Canary Speech API and print its scores",
		Long: `canary-client runs one Canary Speech assessment: it authenticates, creates a
subject, begins an assessment, uploads an audio file, ends the assessment,
waits for scoring and prints the scores.

Credentials are read from flags, then CANARY_* environment variables (a .env
file in the working directory is loaded first), then an optional YAML file.`,
		Example: `  canary-client --audio-file recording.wav --subject-name "Jane Doe"
  canary-client --audio-file recording.wav --subject-name "Jane Doe" --region ne --output json`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return errors.NewConfigError(fmt.Sprintf("unexpected arguments: %v", args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.execute(cmd)
		},
	}

	config.RegisterFlags(cmd.Flags())
	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return errors.NewConfigError(err.Error())
	})
	return cmd
}

func (c *cli) execute(cmd *cobra.Command) error {
	ctx := cmd.Context()

	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)
	c.log = log

	rec := metrics.NewRecorder()
	obs, err := observability.New(serviceName, rec.Registry(), log)
	if err != nil {
		zapLog.Warn("observability disabled", zap.Error(err))
		obs = nil
	}
	defer func() {
		// Metrics are gathered before the meter provider stops.
		if cfg.MetricsFile != "" {
			if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
				zapLog.Warn("failed to write metrics file", zap.String("path", cfg.MetricsFile), zap.Error(err))
			}
		}
		if err := obs.Shutdown(context.Background()); err != nil {
			zapLog.Warn("observability shutdown failed", zap.Error(err))
		}
	}()

	httpClient := commonhttp.NewClient(cfg.HTTPTimeout)
	tokens := auth.NewTokenProvider(cfg.BaseURL, cfg.Credentials, httpClient, log)
	api := canary.NewClient(cfg.BaseURL, tokens, httpClient, log)
	orch := workflow.NewOrchestrator(api, tokens, workflow.PollPolicyFrom(cfg.Poll), log,
		workflow.WithMetrics(rec),
		workflow.WithObservability(obs),
	)

	log.Info("Starting assessment", map[string]interface{}{
		"region":      string(cfg.Credentials.Region),
		"baseUrl":     cfg.BaseURL,
		"subjectName": cfg.SubjectName,
		"audioFile":   cfg.AudioFile,
		"envFile":     cfg.EnvFile,
		"pollBudget":  cfg.Poll.Budget().String(),
	})

	res, err := orch.Run(ctx, workflow.Request{
		ProjectID:    cfg.Credentials.ProjectID,
		SurveyCode:   cfg.Credentials.SurveyCode,
		SubjectName:  cfg.SubjectName,
		AudioFile:    cfg.AudioFile,
		ResponseCode: cfg.ResponseCode,
	})
	if err != nil {
		return err
	}

	if err := presenter.Render(c.stdout, res.Scores, cfg.Output); err != nil {
		log.Warn("failed to print scores", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// errorLine is the one-line summary printed to stderr.
func errorLine(err error) string {
	if stderrors.Is(err, context.Canceled) {
		return "error: interrupted"
	}

	var stdErr *errors.StandardError
	if !stderrors.As(err, &stdErr) {
		return "error: " + err.Error()
	}

	msg := stdErr.Message
	if stdErr.Details != "" {
		msg += ": " + stdErr.Details
	}
	if stdErr.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", stdErr.StatusCode)
	}
	if stdErr.Step != "" {
		return fmt.Sprintf("error: %s: %s", stdErr.Step, msg)
	}
	return "error: " + msg
}
