package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSpansReachExporter(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	shutdown, err := InitWithExporter("workflow-bridge", "test", exporter)
	require.NoError(t, err)
	defer func() { _ = shutdown(context.Background()) }()

	_, ok := Start(context.Background(), "requests.act", attribute.String("request.id", "r-1"))
	End(ok, nil)
	_, failed := Start(context.Background(), "requests.cancel")
	End(failed, errors.New("request is already approved"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "requests.act", spans[0].Name)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Equal(t, codes.Error, spans[1].Status.Code)
}
