package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

func TestSetup_NoEndpointIsNoop(t *testing.T) {
	shutdown, err := Setup(context.Background(), "authkeeper", "test", "")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestSetup_WithEndpoint(t *testing.T) {
	// the exporter connects lazily, so no collector is needed
	shutdown, err := Setup(context.Background(), "authkeeper", "test", "http://127.0.0.1:4318")
	require.NoError(t, err)
	require.NotNil(t, shutdown)
}

func TestNewResource(t *testing.T) {
	res, err := NewResource(context.Background(), "authkeeper", "1.2.3")
	require.NoError(t, err)

	attrs := map[attribute.Key]string{}
	for _, kv := range res.Attributes() {
		attrs[kv.Key] = kv.Value.Emit()
	}
	assert.Equal(t, "authkeeper", attrs[semconv.ServiceNameKey])
	assert.Equal(t, "1.2.3", attrs[semconv.ServiceVersionKey])
}
