package models

import (
	"fmt"
	"strings"
	"time"
)

// Risk уровень риска находки
type Risk int

const (
	RiskInfo Risk = iota
	RiskLow
	RiskMedium
	RiskHigh
)

var riskNames = [...]string{"informational", "low", "medium", "high"}

func (r Risk) String() string {
	if r < 0 || int(r) >= len(riskNames) {
		return fmt.Sprintf("risk(%d)", int(r))
	}
	return riskNames[r]
}

func (r Risk) MarshalText() ([]byte, error) {
	if r < 0 || int(r) >= len(riskNames) {
		return nil, fmt.Errorf("unknown risk %d", int(r))
	}
	return []byte(riskNames[r]), nil
}

func (r *Risk) UnmarshalText(text []byte) error {
	for i, name := range riskNames {
		if strings.EqualFold(name, string(text)) {
			*r = Risk(i)
			return nil
		}
	}
	if strings.EqualFold(string(text), "info") {
		*r = RiskInfo
		return nil
	}
	return fmt.Errorf("unknown risk %q", text)
}

// Confidence уверенность в находке
type Confidence int

const (
	ConfidenceFalsePositive Confidence = iota
	ConfidenceLow
	ConfidenceMedium
	ConfidenceHigh
	ConfidenceConfirmed
)

var confidenceNames = [...]string{"false_positive", "low", "medium", "high", "confirmed"}

func (c Confidence) String() string {
	if c < 0 || int(c) >= len(confidenceNames) {
		return fmt.Sprintf("confidence(%d)", int(c))
	}
	return confidenceNames[c]
}

func (c Confidence) MarshalText() ([]byte, error) {
	if c < 0 || int(c) >= len(confidenceNames) {
		return nil, fmt.Errorf("unknown confidence %d", int(c))
	}
	return []byte(confidenceNames[c]), nil
}

func (c *Confidence) UnmarshalText(text []byte) error {
	for i, name := range confidenceNames {
		if strings.EqualFold(name, string(text)) {
			*c = Confidence(i)
			return nil
		}
	}
	return fmt.Errorf("unknown confidence %q", text)
}

// RuleInfo статические метаданные пассивного правила
type RuleInfo struct {
	PluginID    int               `json:"plugin_id" jsonschema:"description=Numeric rule identifier"`
	Name        string            `json:"name"`
	Risk        Risk              `json:"risk"`
	Confidence  Confidence        `json:"confidence"`
	Description string            `json:"description"`
	Solution    string            `json:"solution"`
	Reference   string            `json:"reference"`
	CWEID       int               `json:"cwe_id"`
	WASCID      int               `json:"wasc_id"`
	Tags        map[string]string `json:"tags,omitempty"`
}

// Alert находка, поднятая правилом для конкретного сообщения.
// После создания не изменяется, кроме полей, которыми владеет хранилище (ID, Count, FirstSeen, LastSeen).
type Alert struct {
	ID          string            `json:"id" jsonschema:"description=Unique alert ID assigned by storage"`
	PluginID    int               `json:"plugin_id" jsonschema:"description=Rule that raised the alert"`
	Name        string            `json:"name"`
	Risk        Risk              `json:"risk" jsonschema:"type=string,enum=informational,enum=low,enum=medium,enum=high"`
	Confidence  Confidence        `json:"confidence" jsonschema:"type=string,enum=false_positive,enum=low,enum=medium,enum=high,enum=confirmed"`
	Description string            `json:"description"`
	Solution    string            `json:"solution"`
	Reference   string            `json:"reference"`
	CWEID       int               `json:"cwe_id" jsonschema:"description=CWE identifier"`
	WASCID      int               `json:"wasc_id" jsonschema:"description=WASC identifier"`
	Tags        map[string]string `json:"tags,omitempty"`

	MessageID  string `json:"message_id"`
	Method     string `json:"method"`
	URL        string `json:"url"`
	StatusCode int    `json:"status_code"`
	PageTitle  string `json:"page_title,omitempty" jsonschema:"description=HTML title of the response page, if any"`

	Count     int       `json:"count"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}

// NewAlert заполняет находку из метаданных правила и сообщения
func NewAlert(info RuleInfo, msg *HTTPMessage) Alert {
	alert := Alert{
		PluginID:    info.PluginID,
		Name:        info.Name,
		Risk:        info.Risk,
		Confidence:  info.Confidence,
		Description: info.Description,
		Solution:    info.Solution,
		Reference:   info.Reference,
		CWEID:       info.CWEID,
		WASCID:      info.WASCID,
		Tags:        info.Tags,
	}
	if msg != nil {
		alert.MessageID = msg.ID
		alert.Method = msg.Request.Method
		alert.URL = msg.Request.URL
		alert.StatusCode, _ = msg.Response.StatusCode()
	}
	return alert
}
