package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoutesRunPrintsPrettyJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/routes", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"http_path":"/api/v1/health","http_method":"GET"}]`))
	}))
	defer srv.Close()

	original := cmdOutput
	output := &bytes.Buffer{}
	cmdOutput = output
	defer func() { cmdOutput = original }()

	originalAddr := routesAddr
	routesAddr = srv.URL
	defer func() { routesAddr = originalAddr }()

	err := routesRun(nil, nil)
	require.NoError(t, err)
	assert.True(t, strings.Contains(output.String(), "/api/v1/health"))
}

func TestRoutesRunReturnsErrorOnUnreachableServer(t *testing.T) {
	originalAddr := routesAddr
	routesAddr = "http://127.0.0.1:1"
	defer func() { routesAddr = originalAddr }()

	err := routesRun(nil, nil)
	assert.Error(t, err)
}
