package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BetterCallFirewall/pscan/internal/models"
)

func alertFor(pluginID int, method, url string, risk models.Risk) models.Alert {
	return models.Alert{PluginID: pluginID, Method: method, URL: url, Risk: risk}
}

func TestNormalizeURLPattern(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"numeric ID", "http://h/api/users/123", "http://h/api/users/{id}"},
		{"nested IDs", "http://h/api/orders/456/items/789", "http://h/api/orders/{id}/items/{id}"},
		{"adjacent IDs", "http://h/a/1/2", "http://h/a/{id}/{id}"},
		{"uuid", "http://h/u/550e8400-e29b-41d4-a716-446655440000", "http://h/u/{uuid}"},
		{"hash", "http://h/f/a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6e7f8", "http://h/f/{hash}"},
		{"query and fragment", "http://h/api/users/1?page=2#top", "http://h/api/users/{id}"},
		{"port kept", "http://h:8080/api", "http://h:8080/api"},
		{"ip host kept", "http://10.0.0.1/api", "http://10.0.0.1/api"},
		{"version kept", "http://h/v2/api", "http://h/v2/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizeURLPattern(tt.input))
		})
	}
}

func TestMemoryStorage_AddAlert_Dedup(t *testing.T) {
	s := NewMemoryStorage(0)

	first, created := s.AddAlert(alertFor(90005, "POST", "http://h/items/1", models.RiskHigh))
	require.True(t, created)
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 1, first.Count)

	second, created := s.AddAlert(alertFor(90005, "post", "http://h/items/2?x=1", models.RiskHigh))
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Count)
	assert.False(t, second.LastSeen.Before(first.LastSeen))

	// другой метод или правило - отдельная находка
	_, created = s.AddAlert(alertFor(90005, "PUT", "http://h/items/1", models.RiskHigh))
	assert.True(t, created)
	_, created = s.AddAlert(alertFor(1, "POST", "http://h/items/1", models.RiskLow))
	assert.True(t, created)

	assert.Equal(t, 3, s.AlertCount())
	assert.Equal(t, map[string]int{"high": 2, "low": 1}, s.CountAlertsByRisk())

	stored, ok := s.GetAlert(first.ID)
	require.True(t, ok)
	assert.Equal(t, 2, stored.Count)

	_, ok = s.GetAlert("missing")
	assert.False(t, ok)
}

func TestMemoryStorage_GetAllAlerts_Order(t *testing.T) {
	s := NewMemoryStorage(0)
	s.AddAlert(alertFor(1, "GET", "http://h/low", models.RiskLow))
	s.AddAlert(alertFor(2, "GET", "http://h/high", models.RiskHigh))
	s.AddAlert(alertFor(3, "GET", "http://h/medium", models.RiskMedium))

	all := s.GetAllAlerts()
	require.Len(t, all, 3)
	assert.Equal(t, models.RiskHigh, all[0].Risk)
	assert.Equal(t, models.RiskMedium, all[1].Risk)
	assert.Equal(t, models.RiskLow, all[2].Risk)
}

func TestMemoryStorage_Messages(t *testing.T) {
	s := NewMemoryStorage(2)

	var ids []string
	for i := 0; i < 3; i++ {
		msg := models.NewHTTPMessage(
			models.RequestHeader{Method: "GET", URL: fmt.Sprintf("http://h/%d", i)},
			&models.ResponseHeader{Status: 200},
		)
		ids = append(ids, msg.ID)
		s.StoreMessage(msg)
	}

	assert.Equal(t, 2, s.MessageCount())
	_, ok := s.GetMessage(ids[0])
	assert.False(t, ok, "oldest message should be evicted")

	all := s.GetAllMessages()
	require.Len(t, all, 2)
	assert.Equal(t, ids[1], all[0].ID)
	assert.Equal(t, ids[2], all[1].ID)
}

func TestMemoryStorage_ConcurrentAlerts(t *testing.T) {
	s := NewMemoryStorage(0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddAlert(alertFor(90005, "POST", fmt.Sprintf("http://h/items/%d", i), models.RiskHigh))
		}()
	}
	wg.Wait()

	all := s.GetAllAlerts()
	require.Len(t, all, 1)
	assert.Equal(t, 100, all[0].Count)
}
