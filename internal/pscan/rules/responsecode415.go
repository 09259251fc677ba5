package rules

import (
	"fmt"
	"maps"
	"net/http"

	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/catalog"
	"github.com/BetterCallFirewall/pscan/internal/models"
	"github.com/BetterCallFirewall/pscan/internal/pscan"
)

const (
	responseCode415PluginID = 90005
	responseCode415Prefix   = "pscanalpha.responsecode415."

	// CWE-345: Insufficient Verification of Data Authenticity
	responseCode415CWE = 345
	// WASC-12: Content Spoofing
	responseCode415WASC = 12
)

// ResponseCode415 поднимает находку на каждый ответ 415 Unsupported Media Type.
// Смотрит только на код статуса, заголовки и тело не учитываются.
type ResponseCode415 struct {
	info   models.RuleInfo
	logger *zap.Logger
}

// NewResponseCode415 resolves the rule's texts from the catalog. A missing message is
// returned as an error, it is a catalog configuration problem.
func NewResponseCode415(cat *catalog.Catalog, logger *zap.Logger) (*ResponseCode415, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	msgs := cat.Prefixed(responseCode415Prefix)
	texts := make(map[string]string, 4)
	for _, suffix := range []string{"name", "desc", "soln", "refs"} {
		text, err := msgs.Get(suffix)
		if err != nil {
			return nil, fmt.Errorf("response code 415 rule: %w", err)
		}
		texts[suffix] = text
	}

	return &ResponseCode415{
		info: models.RuleInfo{
			PluginID:    responseCode415PluginID,
			Name:        texts["name"],
			Risk:        models.RiskHigh,
			Confidence:  models.ConfidenceHigh,
			Description: texts["desc"],
			Solution:    texts["soln"],
			Reference:   texts["refs"],
			CWEID:       responseCode415CWE,
			WASCID:      responseCode415WASC,
			Tags:        alertTags(tagOWASP2021A05, tagOWASP2017A06),
		},
		logger: logger.With(zap.Int("plugin_id", responseCode415PluginID)),
	}, nil
}

func (r *ResponseCode415) Info() models.RuleInfo {
	info := r.info
	info.Tags = maps.Clone(r.info.Tags)
	return info
}

func (r *ResponseCode415) Inspect(msg *models.HTTPMessage, _ *pscan.Source) (models.Alert, bool) {
	if msg == nil {
		return models.Alert{}, false
	}
	code, ok := msg.Response.StatusCode()
	if !ok || code != http.StatusUnsupportedMediaType {
		return models.Alert{}, false
	}

	r.logger.Debug("Got response code 415, raising alert", zap.String("url", msg.Request.URL))
	return models.NewAlert(r.Info(), msg), true
}

func (r *ResponseCode415) PluginID() int                 { return r.info.PluginID }
func (r *ResponseCode415) Name() string                  { return r.info.Name }
func (r *ResponseCode415) Risk() models.Risk             { return r.info.Risk }
func (r *ResponseCode415) Confidence() models.Confidence { return r.info.Confidence }
func (r *ResponseCode415) Description() string           { return r.info.Description }
func (r *ResponseCode415) Solution() string              { return r.info.Solution }
func (r *ResponseCode415) Reference() string             { return r.info.Reference }
func (r *ResponseCode415) CWEID() int                    { return r.info.CWEID }
func (r *ResponseCode415) WASCID() int                   { return r.info.WASCID }
func (r *ResponseCode415) AlertTags() map[string]string  { return maps.Clone(r.info.Tags) }
