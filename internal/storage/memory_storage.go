package storage

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BetterCallFirewall/pscan/internal/models"
)

const defaultMaxMessages = 10000

// MemoryStorage хранит историю перехваченных сообщений и поднятые находки.
// Находки дедуплицируются по (plugin id, метод, нормализованный URL).
type MemoryStorage struct {
	mu sync.RWMutex

	messages    map[string]*models.HTTPMessage
	order       []string
	maxMessages int

	alerts    map[string]*models.Alert
	alertKeys map[string]string // ключ дедупликации -> ID находки
}

func NewMemoryStorage(maxMessages int) *MemoryStorage {
	if maxMessages <= 0 {
		maxMessages = defaultMaxMessages
	}
	return &MemoryStorage{
		messages:    make(map[string]*models.HTTPMessage),
		maxMessages: maxMessages,
		alerts:      make(map[string]*models.Alert),
		alertKeys:   make(map[string]string),
	}
}

// StoreMessage сохраняет сообщение, самые старые вытесняются при переполнении
func (s *MemoryStorage) StoreMessage(msg *models.HTTPMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.messages[msg.ID]; !ok {
		s.order = append(s.order, msg.ID)
	}
	s.messages[msg.ID] = msg

	for len(s.order) > s.maxMessages {
		delete(s.messages, s.order[0])
		s.order = s.order[1:]
	}
}

func (s *MemoryStorage) GetMessage(id string) (*models.HTTPMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msg, ok := s.messages[id]
	return msg, ok
}

// GetAllMessages returns messages in capture order.
func (s *MemoryStorage) GetAllMessages() []*models.HTTPMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make([]*models.HTTPMessage, 0, len(s.order))
	for _, id := range s.order {
		res = append(res, s.messages[id])
	}
	return res
}

// AddAlert сохраняет находку. Если такая находка уже есть, увеличивается счетчик,
// и возвращается false.
func (s *MemoryStorage) AddAlert(alert models.Alert) (models.Alert, bool) {
	now := time.Now()
	key := alertKey(alert)

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.alertKeys[key]; ok {
		existing := s.alerts[id]
		existing.Count++
		existing.LastSeen = now
		return *existing, false
	}

	alert.ID = uuid.New().String()
	alert.Count = 1
	alert.FirstSeen = now
	alert.LastSeen = now

	s.alerts[alert.ID] = &alert
	s.alertKeys[key] = alert.ID
	return alert, true
}

func (s *MemoryStorage) GetAlert(id string) (models.Alert, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	alert, ok := s.alerts[id]
	if !ok {
		return models.Alert{}, false
	}
	return *alert, true
}

// GetAllAlerts returns alerts ordered by risk (highest first), then by first sighting.
func (s *MemoryStorage) GetAllAlerts() []models.Alert {
	s.mu.RLock()
	res := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		res = append(res, *a)
	}
	s.mu.RUnlock()

	sort.Slice(res, func(i, j int) bool {
		if res[i].Risk != res[j].Risk {
			return res[i].Risk > res[j].Risk
		}
		return res[i].FirstSeen.Before(res[j].FirstSeen)
	})
	return res
}

// CountAlertsByRisk returns the number of distinct alerts per risk name.
func (s *MemoryStorage) CountAlertsByRisk() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res := make(map[string]int)
	for _, a := range s.alerts {
		res[a.Risk.String()]++
	}
	return res
}

func (s *MemoryStorage) MessageCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *MemoryStorage) AlertCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

func alertKey(a models.Alert) string {
	return strconv.Itoa(a.PluginID) + ":" + strings.ToUpper(a.Method) + ":" + normalizeURLPattern(a.URL)
}

var (
	uuidSegment    = regexp.MustCompile(`/[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}`)
	hashSegment    = regexp.MustCompile(`/[0-9a-fA-F]{32,}`)
	numericSegment = regexp.MustCompile(`/\d+(/|$)`)
)

// normalizeURLPattern убирает query и фрагмент и заменяет идентификаторы в пути,
// чтобы одна и та же находка на /items/1 и /items/2 не дублировалась:
// /api/users/123?x=1 → /api/users/{id}
func normalizeURLPattern(url string) string {
	if idx := strings.IndexAny(url, "?#"); idx != -1 {
		url = url[:idx]
	}

	url = uuidSegment.ReplaceAllString(url, "/{uuid}")
	url = hashSegment.ReplaceAllString(url, "/{hash}")

	// ReplaceAll не находит пересекающиеся совпадения (/1/2), поэтому повторяем
	for {
		next := numericSegment.ReplaceAllString(url, "/{id}$1")
		if next == url {
			break
		}
		url = next
	}
	return url
}
