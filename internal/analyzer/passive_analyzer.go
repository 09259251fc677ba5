package analyzer

import (
	"context"

	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/broker"
	"github.com/BetterCallFirewall/pscan/internal/models"
	"github.com/BetterCallFirewall/pscan/internal/pscan"
	"github.com/BetterCallFirewall/pscan/internal/storage"
)

// AlertsTopic топик брокера с новыми (не дублирующимися) находками
const AlertsTopic = "alerts"

// PassiveAnalyzer связывает прокси, очередь пассивного сканирования, хранилище и брокер:
// прокси отдает каждый обмен в AnalyzeHTTPTraffic, сканер возвращает находки в Raise.
type PassiveAnalyzer struct {
	storage  *storage.MemoryStorage
	registry *pscan.Registry
	scanner  *pscan.Scanner
	broker   *broker.Broker[models.Alert]
	logger   *zap.Logger
}

func NewPassiveAnalyzer(
	store *storage.MemoryStorage,
	registry *pscan.Registry,
	b *broker.Broker[models.Alert],
	logger *zap.Logger,
	opts pscan.Options,
) *PassiveAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &PassiveAnalyzer{
		storage:  store,
		registry: registry,
		broker:   b,
		logger:   logger,
	}
	a.scanner = pscan.NewScanner(registry, a, logger.Named("pscan"), opts)
	return a
}

func (a *PassiveAnalyzer) Start(ctx context.Context) {
	a.scanner.Start(ctx)
}

// AnalyzeHTTPTraffic сохраняет обмен и ставит его в очередь пассивного сканирования.
// Не блокирует вызывающего.
func (a *PassiveAnalyzer) AnalyzeHTTPTraffic(msg *models.HTTPMessage) {
	a.storage.StoreMessage(msg)
	a.scanner.Submit(msg)
}

// Raise implements pscan.AlertSink.
func (a *PassiveAnalyzer) Raise(alert models.Alert) {
	stored, created := a.storage.AddAlert(alert)
	if !created {
		a.logger.Debug("Duplicate alert",
			zap.Int("plugin_id", stored.PluginID),
			zap.String("url", alert.URL),
			zap.Int("count", stored.Count))
		return
	}

	a.logger.Info("🚨 Alert raised",
		zap.String("id", stored.ID),
		zap.Int("plugin_id", stored.PluginID),
		zap.String("name", stored.Name),
		zap.Stringer("risk", stored.Risk),
		zap.String("url", stored.URL))

	if a.broker != nil && !a.broker.TryPublish(AlertsTopic, stored) {
		a.logger.Warn("Alerts topic full, skipping broadcast", zap.String("id", stored.ID))
	}
}

// ScanNow синхронно прогоняет сообщение через правила, минуя очередь и хранилище
func (a *PassiveAnalyzer) ScanNow(msg *models.HTTPMessage) []models.Alert {
	return a.scanner.ScanMessage(msg)
}

func (a *PassiveAnalyzer) GetSummaryStats() models.StatsDTO {
	st := a.scanner.Stats()
	all := a.registry.All()
	enabled := 0
	for _, r := range all {
		if r.Enabled() {
			enabled++
		}
	}

	return models.StatsDTO{
		Messages:      a.storage.MessageCount(),
		Alerts:        a.storage.AlertCount(),
		AlertsByRisk:  a.storage.CountAlertsByRisk(),
		Queued:        st.Queued,
		Scanned:       st.Scanned,
		Dropped:       st.Dropped,
		RuleFailures:  st.RuleFailures,
		EnabledRules:  enabled,
		DisabledRules: len(all) - enabled,
	}
}

func (a *PassiveAnalyzer) Registry() *pscan.Registry {
	return a.registry
}

func (a *PassiveAnalyzer) Storage() *storage.MemoryStorage {
	return a.storage
}

// Close дожидается обработки очереди
func (a *PassiveAnalyzer) Close() error {
	return a.scanner.Close()
}
