package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/catalog"
	"github.com/BetterCallFirewall/pscan/internal/config"
	"github.com/BetterCallFirewall/pscan/internal/models"
	"github.com/BetterCallFirewall/pscan/internal/pscan"
	"github.com/BetterCallFirewall/pscan/internal/pscan/rules"
	"github.com/BetterCallFirewall/pscan/internal/storage"
	"github.com/BetterCallFirewall/pscan/internal/websocket"
)

type staticStats models.StatsDTO

func (s staticStats) GetSummaryStats() models.StatsDTO { return models.StatsDTO(s) }

func newTestServer(t *testing.T, alerts chan models.Alert) (*Server, *storage.MemoryStorage, *httptest.Server) {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)
	reg := pscan.NewRegistry()
	require.NoError(t, rules.RegisterDefaults(reg, cat, nil))

	store := storage.NewMemoryStorage(0)
	s, err := NewServer(config.WebConfig{}, store, staticStats{Alerts: 1, Scanned: 7}, reg, alerts, zap.NewNop())
	require.NoError(t, err)
	s.Run()
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		srv.Close()
		s.Stop(context.Background())
	})
	return s, store, srv
}

func getJSON(t *testing.T, url string, v interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp
}

func TestServer_Alerts(t *testing.T) {
	_, store, srv := newTestServer(t, nil)

	msg := models.NewHTTPMessage(
		models.RequestHeader{Method: "POST", URL: "http://app/upload"},
		&models.ResponseHeader{Status: 415},
	)
	store.StoreMessage(msg)
	stored, _ := store.AddAlert(models.Alert{
		PluginID: 90005, Name: "n", Risk: models.RiskHigh, Method: "POST", URL: msg.Request.URL, PageTitle: "Upload",
	})

	var alerts []models.Alert
	resp := getJSON(t, srv.URL+"/api/alerts", &alerts)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, alerts, 1)
	assert.Equal(t, stored.ID, alerts[0].ID)
	assert.Equal(t, models.RiskHigh, alerts[0].Risk)
	assert.Equal(t, "Upload", alerts[0].PageTitle)

	var one models.Alert
	resp = getJSON(t, srv.URL+"/api/alerts/"+stored.ID, &one)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 90005, one.PluginID)

	resp = getJSON(t, srv.URL+"/api/alerts/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var msgs []models.HTTPMessage
	getJSON(t, srv.URL+"/api/requests", &msgs)
	require.Len(t, msgs, 1)
	assert.Equal(t, msg.ID, msgs[0].ID)

	var got models.HTTPMessage
	resp = getJSON(t, srv.URL+"/api/requests/"+msg.ID, &got)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 415, got.Response.Status)

	resp = getJSON(t, srv.URL+"/api/requests/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_RulesStatsSchema(t *testing.T) {
	_, _, srv := newTestServer(t, nil)

	var views []struct {
		PluginID  int    `json:"plugin_id"`
		CWEID     int    `json:"cwe_id"`
		WASCID    int    `json:"wasc_id"`
		Risk      string `json:"risk"`
		Threshold string `json:"threshold"`
		Enabled   bool   `json:"enabled"`
	}
	getJSON(t, srv.URL+"/api/rules", &views)
	require.Len(t, views, 1)
	assert.Equal(t, 90005, views[0].PluginID)
	assert.Equal(t, 345, views[0].CWEID)
	assert.Equal(t, 12, views[0].WASCID)
	assert.Equal(t, "high", views[0].Risk)
	assert.Equal(t, "default", views[0].Threshold)
	assert.True(t, views[0].Enabled)

	var stats models.StatsDTO
	getJSON(t, srv.URL+"/api/stats", &stats)
	assert.Equal(t, uint64(7), stats.Scanned)

	var schema map[string]interface{}
	resp := getJSON(t, srv.URL+"/api/schema/alert", &schema)
	assert.Equal(t, "application/schema+json", resp.Header.Get("Content-Type"))
	assert.Contains(t, schema, "$defs")

	resp = getJSON(t, srv.URL+"/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp = getJSON(t, srv.URL+"/missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestServer_MethodNotAllowed(t *testing.T) {
	_, _, srv := newTestServer(t, nil)

	for _, path := range []string{"/api/alerts", "/api/alerts/x", "/api/rules", "/api/requests", "/api/requests/x", "/api/stats", "/api/schema/alert"} {
		resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader("{}"))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode, path)
	}
}

func TestServer_ForwardsAlertsToWebSocket(t *testing.T) {
	alerts := make(chan models.Alert, 1)
	s, _, srv := newTestServer(t, alerts)

	conn, _, err := gorillaws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return s.hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	alerts <- models.Alert{ID: "a1", PluginID: 90005, Risk: models.RiskHigh}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		websocket.Message
		Data models.Alert `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "alert", msg.Type)
	assert.Equal(t, "a1", msg.Data.ID)
	assert.Equal(t, 90005, msg.Data.PluginID)
}
