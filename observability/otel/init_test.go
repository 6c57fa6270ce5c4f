package otel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "govd"})
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = Init(context.Background(), Config{})
	require.Error(t, err)
}

func TestParseHeaders(t *testing.T) {
	headers := ParseHeaders("authorization=Bearer abc, x-team = gov ,broken,=empty")
	require.Equal(t, map[string]string{"authorization": "Bearer abc", "x-team": "gov"}, headers)
}

func TestSamplerHonoursRatio(t *testing.T) {
	require.Contains(t, sampler(0).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	require.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestResourceCarriesGovernanceAttributes(t *testing.T) {
	res, err := newResource(Config{
		ServiceName: "govd",
		Environment: "test",
		Attributes:  map[string]string{"gov.chain_id": "1", "gov.governor": "0x0901"},
	})
	require.NoError(t, err)
	values := map[string]string{}
	for _, kv := range res.Attributes() {
		values[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "govd", values["service.name"])
	require.Equal(t, "1", values["gov.chain_id"])
	require.Equal(t, "0x0901", values["gov.governor"])
}
