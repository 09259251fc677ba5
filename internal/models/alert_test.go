package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRiskText(t *testing.T) {
	assert.Equal(t, "high", RiskHigh.String())
	assert.Equal(t, "informational", RiskInfo.String())
	assert.Equal(t, "risk(9)", Risk(9).String())

	var r Risk
	require.NoError(t, r.UnmarshalText([]byte("Medium")))
	assert.Equal(t, RiskMedium, r)
	require.NoError(t, r.UnmarshalText([]byte("info")))
	assert.Equal(t, RiskInfo, r)
	assert.Error(t, r.UnmarshalText([]byte("critical")))
}

func TestConfidenceText(t *testing.T) {
	var c Confidence
	require.NoError(t, c.UnmarshalText([]byte("high")))
	assert.Equal(t, ConfidenceHigh, c)
	assert.Error(t, c.UnmarshalText([]byte("maybe")))

	_, err := Confidence(42).MarshalText()
	assert.Error(t, err)
}

func TestNewAlert(t *testing.T) {
	info := RuleInfo{
		PluginID:   90005,
		Name:       "name",
		Risk:       RiskHigh,
		Confidence: ConfidenceHigh,
		CWEID:      345,
		WASCID:     12,
	}
	msg := NewHTTPMessage(
		RequestHeader{Method: "POST", URL: "http://example.com/api"},
		&ResponseHeader{Status: 415},
	)

	alert := NewAlert(info, msg)
	assert.Equal(t, 90005, alert.PluginID)
	assert.Equal(t, msg.ID, alert.MessageID)
	assert.Equal(t, "POST", alert.Method)
	assert.Equal(t, 415, alert.StatusCode)

	data, err := json.Marshal(alert)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"risk":"high"`)
	assert.Contains(t, string(data), `"confidence":"high"`)
	assert.Contains(t, string(data), `"cwe_id":345`)
}

func TestNewAlert_NilMessage(t *testing.T) {
	alert := NewAlert(RuleInfo{PluginID: 1}, nil)
	assert.Empty(t, alert.MessageID)
	assert.Zero(t, alert.StatusCode)
}
