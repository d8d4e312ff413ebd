package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInitTracerDisabledExporter(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), TracingConfig{Exporter: "none"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = InitTracer(context.Background(), TracingConfig{Exporter: "zipkin"})
	require.ErrorContains(t, err, "unsupported tracing exporter")
}

func TestResourceAttributes(t *testing.T) {
	attrs := resourceAttributes(TracingConfig{Environment: "production", Shop: "demo.myshopify.com"})
	got := map[attribute.Key]string{}
	for _, kv := range attrs {
		got[kv.Key] = kv.Value.AsString()
	}
	require.Equal(t, DefaultServiceName, got["service.name"])
	require.Equal(t, "production", got["deployment.environment"])
	require.Equal(t, "demo.myshopify.com", got["shopify.shop"])

	require.Len(t, resourceAttributes(TracingConfig{ServiceName: "worker"}), 1)
}

func TestSamplingRatio(t *testing.T) {
	require.Equal(t, 1.0, samplingRatio(0))
	require.Equal(t, 1.0, samplingRatio(3))
	require.Equal(t, 0.25, samplingRatio(0.25))
}
