package pscan

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrDuplicateRule = errors.New("rule already registered")
	ErrUnknownRule   = errors.New("unknown rule")
)

// RuleStatus правило и его текущий порог
type RuleStatus struct {
	Rule      Rule
	Threshold Threshold
}

// Enabled reports whether the rule takes part in scanning.
func (s RuleStatus) Enabled() bool {
	return s.Threshold != ThresholdOff
}

// Registry реестр правил, ключ - plugin id
type Registry struct {
	mu    sync.RWMutex
	rules map[int]*RuleStatus
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[int]*RuleStatus)}
}

// Register добавляет правило. Повторная регистрация того же plugin id - ошибка.
func (r *Registry) Register(rule Rule) error {
	id := rule.Info().PluginID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rules[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateRule, id)
	}
	r.rules[id] = &RuleStatus{Rule: rule}
	return nil
}

func (r *Registry) Get(id int) (Rule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st, ok := r.rules[id]
	if !ok {
		return nil, false
	}
	return st.Rule, true
}

func (r *Registry) SetThreshold(id int, t Threshold) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.rules[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownRule, id)
	}
	st.Threshold = t
	return nil
}

// ApplyThresholds применяет пороги из конфигурации (plugin id -> имя порога)
func (r *Registry) ApplyThresholds(thresholds map[int]string) error {
	for id, name := range thresholds {
		t, err := ParseThreshold(name)
		if err != nil {
			return fmt.Errorf("rule %d: %w", id, err)
		}
		if err := r.SetThreshold(id, t); err != nil {
			return err
		}
	}
	return nil
}

// All returns every registered rule ordered by plugin id.
func (r *Registry) All() []RuleStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res := make([]RuleStatus, 0, len(r.rules))
	for _, st := range r.rules {
		res = append(res, *st)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].Rule.Info().PluginID < res[j].Rule.Info().PluginID
	})
	return res
}

// Enabled returns the rules that are not switched off, ordered by plugin id.
func (r *Registry) Enabled() []Rule {
	all := r.All()
	res := make([]Rule, 0, len(all))
	for _, st := range all {
		if st.Enabled() {
			res = append(res, st.Rule)
		}
	}
	return res
}
