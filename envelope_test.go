package bridge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuccessEnvelopeShape(t *testing.T) {
	env := successEnvelope(map[string]any{"ok": true}, 200, "OK")
	b, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))

	assert.Equal(t, "success", decoded["status"])
	assert.Equal(t, []any{}, decoded["errors"])
	assert.Equal(t, float64(200), decoded["rest_status"])
	assert.Contains(t, decoded, "published_at")
}

func TestBridgeErrorEnvelopeHasNullRestFields(t *testing.T) {
	env := bridgeErrorEnvelope(ErrKindNoBridgeRouteFound, "no route for topic")
	b, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(b, &decoded))

	assert.Equal(t, "bridge_error", decoded["status"])
	assert.Nil(t, decoded["rest_status"])
	assert.Nil(t, decoded["rest_reason"])
	assert.Nil(t, decoded["data"])

	errs, ok := decoded["errors"].([]any)
	require.True(t, ok)
	require.Len(t, errs, 1)
	pair := errs[0].([]any)
	assert.Equal(t, "NoBridgeRouteFound", pair[0])
}

func TestRestErrorEnvelopeCarriesRawStringOnNonJSON(t *testing.T) {
	env := restErrorEnvelope("boom", 500, "Internal Server Error")
	assert.Equal(t, StatusRestError, env.Status)
	assert.Equal(t, "boom", env.Data)
	require.NotNil(t, env.RestStatus)
	assert.Equal(t, 500, *env.RestStatus)
}
