package observability

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"canary-speech-client/internal/common/logger"
)

func TestObservability_SpansNestUnderRoot(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	obs, err := New("canary-client-test", prometheus.NewRegistry(), logger.NewTestLogger(t), sdktrace.WithSpanProcessor(recorder))
	require.NoError(t, err)

	ctx, root := obs.StartSpan(context.Background(), "workflow.run")
	_, step := obs.StartSpan(ctx, "create-subject", attribute.String("subjectName", "Jane"))
	EndSpan(step, nil)
	_, failed := obs.StartSpan(ctx, "poll")
	EndSpan(failed, fmt.Errorf("assessment failed"))
	EndSpan(root, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "create-subject", spans[0].Name())
	assert.Equal(t, root.SpanContext().SpanID(), spans[0].Parent().SpanID())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "workflow.run", spans[2].Name())
	assert.False(t, spans[2].Parent().IsValid())

	require.NoError(t, obs.Shutdown(context.Background()))
}

func TestObservability_RunCounterExportedToRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs, err := New("canary-client-test", reg, logger.NewNoOpLogger())
	require.NoError(t, err)
	defer obs.Shutdown(context.Background())

	obs.RecordRun(context.Background(), "success", 3*time.Second)

	families, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range families {
		if mf.GetName() == "workflow_runs_total" {
			found = true
			require.Len(t, mf.GetMetric(), 1)
			assert.Equal(t, 1.0, mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
	assert.True(t, found, "workflow_runs_total not exported")
}

func TestLogExporter_WritesDebugEntry(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	obs, err := New("canary-client-test", prometheus.NewRegistry(), logger.NewZapAdapter(zap.New(core)))
	require.NoError(t, err)

	_, span := obs.StartSpan(context.Background(), "upload", attribute.Int64("bytes", 42))
	EndSpan(span, nil)

	entries := logs.FilterMessage("span ended").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "upload", fields["span"])
	assert.Equal(t, int64(42), fields["bytes"])
	assert.Equal(t, "tracing", fields["component"])
}
