package pscan

import (
	"sync/atomic"

	"github.com/BetterCallFirewall/pscan/internal/models"
)

// statusRule срабатывает на заданный код ответа
type statusRule struct {
	id     int
	status int
	calls  atomic.Int64
}

func (r *statusRule) Info() models.RuleInfo {
	return models.RuleInfo{PluginID: r.id, Name: "status rule", Risk: models.RiskLow}
}

func (r *statusRule) Inspect(msg *models.HTTPMessage, _ *Source) (models.Alert, bool) {
	r.calls.Add(1)
	code, ok := msg.Response.StatusCode()
	if !ok || code != r.status {
		return models.Alert{}, false
	}
	return models.NewAlert(r.Info(), msg), true
}

type panicRule struct{ id int }

func (r *panicRule) Info() models.RuleInfo { return models.RuleInfo{PluginID: r.id} }

func (r *panicRule) Inspect(*models.HTTPMessage, *Source) (models.Alert, bool) {
	panic("boom")
}

func message(status int) *models.HTTPMessage {
	return models.NewHTTPMessage(
		models.RequestHeader{Method: "GET", URL: "http://example.com/"},
		&models.ResponseHeader{Status: status},
	)
}
