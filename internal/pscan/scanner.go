package pscan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BetterCallFirewall/pscan/internal/models"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 1024
)

// AlertSink принимает поднятые находки (хранилище, websocket и т.д.)
type AlertSink interface {
	Raise(alert models.Alert)
}

// SinkFunc adapts a function to AlertSink.
type SinkFunc func(alert models.Alert)

func (f SinkFunc) Raise(alert models.Alert) { f(alert) }

type Options struct {
	Workers   int
	QueueSize int
}

// Stats счетчики работы сканера
type Stats struct {
	Queued       int    `json:"queued"`
	Scanned      uint64 `json:"scanned"`
	Dropped      uint64 `json:"dropped"`
	RuleFailures uint64 `json:"rule_failures"`
}

// Scanner очередь пассивного сканирования. Прокси кладет сообщения через Submit,
// воркеры прогоняют каждое сообщение через все включенные правила реестра.
type Scanner struct {
	registry *Registry
	sink     AlertSink
	logger   *zap.Logger
	workers  int

	mu     sync.RWMutex
	queue  chan *models.HTTPMessage
	closed bool
	group  *errgroup.Group

	scanned  atomic.Uint64
	dropped  atomic.Uint64
	failures atomic.Uint64
}

func NewScanner(registry *Registry, sink AlertSink, logger *zap.Logger, opts Options) *Scanner {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scanner{
		registry: registry,
		sink:     sink,
		logger:   logger,
		workers:  opts.Workers,
		queue:    make(chan *models.HTTPMessage, opts.QueueSize),
	}
}

// Start запускает воркеры. Воркеры завершаются после Close (очередь дочитывается)
// или при отмене ctx.
func (s *Scanner) Start(ctx context.Context) {
	g, gCtx := errgroup.WithContext(ctx)

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			s.work(gCtx)
			return nil
		})
	}

	s.mu.Lock()
	s.group = g
	s.mu.Unlock()

	s.logger.Info("Passive scanner started",
		zap.Int("workers", s.workers),
		zap.Int("queue_size", cap(s.queue)),
		zap.Int("enabled_rules", len(s.registry.Enabled())))
}

func (s *Scanner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-s.queue:
			if !ok {
				return
			}
			for _, alert := range s.ScanMessage(msg) {
				s.sink.Raise(alert)
			}
		}
	}
}

// Submit ставит сообщение в очередь. Никогда не блокирует прокси:
// при переполненной или закрытой очереди сообщение отбрасывается и возвращается false.
func (s *Scanner) Submit(msg *models.HTTPMessage) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		s.dropped.Add(1)
		return false
	}

	select {
	case s.queue <- msg:
		return true
	default:
		s.dropped.Add(1)
		s.logger.Warn("Passive scan queue full, dropping message",
			zap.String("id", msg.ID),
			zap.String("url", msg.Request.URL))
		return false
	}
}

// ScanMessage синхронно прогоняет сообщение через включенные правила и возвращает находки.
// Ошибка или паника одного правила не мешает остальным.
func (s *Scanner) ScanMessage(msg *models.HTTPMessage) []models.Alert {
	defer s.scanned.Add(1)

	if msg == nil || msg.Response == nil {
		return nil
	}

	src := NewSource(msg.Response)
	var alerts []models.Alert
	for _, rule := range s.registry.Enabled() {
		alert, ok, err := s.inspect(rule, msg, src)
		if err != nil {
			s.failures.Add(1)
			s.logger.Error("Passive rule failed",
				zap.Int("plugin_id", rule.Info().PluginID),
				zap.String("url", msg.Request.URL),
				zap.Error(err))
			continue
		}
		if ok {
			alerts = append(alerts, alert)
		}
	}

	// HTML разбирается только если есть находки (или его уже запросило правило)
	if len(alerts) > 0 {
		if title := src.Title(); title != "" {
			for i := range alerts {
				if alerts[i].PageTitle == "" {
					alerts[i].PageTitle = title
				}
			}
		}
	}
	return alerts
}

func (s *Scanner) inspect(rule Rule, msg *models.HTTPMessage, src *Source) (alert models.Alert, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()

	alert, ok = rule.Inspect(msg, src)
	return alert, ok, nil
}

// Close закрывает очередь и ждет, пока воркеры обработают оставшиеся сообщения.
func (s *Scanner) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	g := s.group
	s.mu.Unlock()

	if g == nil {
		return nil
	}
	err := g.Wait()
	s.logger.Info("Passive scanner stopped", zap.Uint64("scanned", s.scanned.Load()))
	return err
}

func (s *Scanner) Stats() Stats {
	return Stats{
		Queued:       len(s.queue),
		Scanned:      s.scanned.Load(),
		Dropped:      s.dropped.Load(),
		RuleFailures: s.failures.Load(),
	}
}
