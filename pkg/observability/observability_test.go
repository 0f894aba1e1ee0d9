package observability

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestSetupMeterProviderUsesGivenRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()

	mp, err := SetupMeterProvider(registry)
	require.NoError(t, err)
	defer func() { _ = mp.Shutdown(context.Background()) }()

	assert.Same(t, mp, otel.GetMeterProvider(), "provider must be installed globally")

	// Instruments created through the provider land in the registry we gave
	// it, so they show up on the same /metrics scrape as the app counters.
	meter := mp.Meter("helpdesk-test")
	counter, err := meter.Int64Counter("helpdesk_test_events_total")
	require.NoError(t, err)
	counter.Add(context.Background(), 3)

	families, err := registry.Gather()
	require.NoError(t, err)

	found := false
	for _, mf := range families {
		if mf.GetName() == "helpdesk_test_events_total" {
			found = true
		}
	}
	assert.True(t, found, "otel instrument must be exported through the registry")
}
