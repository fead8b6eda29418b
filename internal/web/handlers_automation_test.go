//go:build !no_automation

package web

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zha-go/internal/automation"
)

func setupAutomationServer(t *testing.T) (*testServer, *automation.Engine) {
	t.Helper()
	var engine *automation.Engine
	var mgr *automation.Manager
	ts := setupTestServer(t, func(s *Server) {
		var err error
		mgr, err = automation.NewManager(t.TempDir(), newTestLogger())
		require.NoError(t, err)
		engine = automation.NewEngine(s.coord, mgr, automation.Config{HandlerTimeout: time.Second}, newTestLogger())
		engine.Start()
		t.Cleanup(engine.Stop)
		WithAutomation(engine, mgr)(s)
	})
	return ts, engine
}

func TestAPIScriptsLifecycle(t *testing.T) {
	ts, engine := setupAutomationServer(t)

	w := ts.do(t, "GET", "/api/scripts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = ts.do(t, "POST", "/api/scripts", map[string]interface{}{
		"name":     "Remote to Kitchen",
		"lua_code": `zha.on("device_joined", function(e) zha.log(e.ieee) end)`,
		"enabled":  true,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created automation.Script
	decodeBody(t, w, &created)
	assert.Equal(t, "remote_to_kitchen", created.ID)
	assert.Equal(t, []string{"remote_to_kitchen"}, engine.Running())

	w = ts.do(t, "GET", "/api/scripts/remote_to_kitchen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got automation.Script
	decodeBody(t, w, &got)
	assert.Equal(t, "Remote to Kitchen", got.Meta.Name)
	assert.True(t, got.Meta.Enabled)

	w = ts.do(t, "POST", "/api/scripts/remote_to_kitchen/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &got)
	assert.False(t, got.Meta.Enabled)
	assert.Empty(t, engine.Running())

	w = ts.do(t, "PUT", "/api/scripts/remote_to_kitchen", map[string]interface{}{
		"description": "updated",
		"lua_code":    `zha.log("hi")`,
		"enabled":     true,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decodeBody(t, w, &got)
	assert.Equal(t, "Remote to Kitchen", got.Meta.Name)
	assert.Equal(t, "updated", got.Meta.Description)
	assert.Equal(t, []string{"remote_to_kitchen"}, engine.Running())

	w = ts.do(t, "GET", "/api/running", nil)
	assert.JSONEq(t, `["remote_to_kitchen"]`, w.Body.String())

	w = ts.do(t, "DELETE", "/api/scripts/remote_to_kitchen", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, engine.Running())

	assert.Equal(t, http.StatusNotFound, ts.do(t, "GET", "/api/scripts/remote_to_kitchen", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, "DELETE", "/api/scripts/remote_to_kitchen", nil).Code)
}

func TestAPICreateScriptValidation(t *testing.T) {
	ts, _ := setupAutomationServer(t)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/scripts", map[string]string{"lua_code": "x = 1"}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, "POST", "/api/scripts", "[").Code)
}

func TestAPIRunCode(t *testing.T) {
	ts, _ := setupAutomationServer(t)
	ts.seed(t)

	w := ts.do(t, "POST", "/api/run", map[string]string{
		"lua_code": `local m = zha.matches("` + remoteIEEE + `", "` + lightIEEE + `") zha.log(#m)`,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var res automation.RunResult
	decodeBody(t, w, &res)
	assert.True(t, res.OK, res.Error)
	assert.Equal(t, []string{"2"}, res.Logs)

	w = ts.do(t, "POST", "/api/scripts/missing/run", nil)
	require.Equal(t, http.StatusOK, w.Code)
	decodeBody(t, w, &res)
	assert.False(t, res.OK)
	assert.Contains(t, res.Error, "script not found")
}

func TestAPIScriptsWithoutAutomation(t *testing.T) {
	ts := setupTestServer(t)

	w := ts.do(t, "GET", "/api/scripts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "POST", "/api/run", map[string]string{"lua_code": ""}).Code)
	assert.Equal(t, http.StatusServiceUnavailable, ts.do(t, "GET", "/api/scripts/x", nil).Code)
}
