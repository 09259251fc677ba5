package pscan

import (
	"fmt"
	"strings"

	"github.com/BetterCallFirewall/pscan/internal/models"
)

// Rule пассивное правило. Правило не должно изменять сообщение, ходить в сеть или на диск,
// и должно быть безопасным для конкурентного вызова: один экземпляр обслуживает все воркеры.
type Rule interface {
	// Info returns static rule metadata.
	Info() models.RuleInfo
	// Inspect returns an alert and true when the response matches.
	Inspect(msg *models.HTTPMessage, src *Source) (models.Alert, bool)
}

// Threshold порог срабатывания правила. ThresholdOff отключает правило.
type Threshold int

const (
	ThresholdDefault Threshold = iota
	ThresholdOff
	ThresholdLow
	ThresholdMedium
	ThresholdHigh
)

var thresholdNames = map[Threshold]string{
	ThresholdDefault: "default",
	ThresholdOff:     "off",
	ThresholdLow:     "low",
	ThresholdMedium:  "medium",
	ThresholdHigh:    "high",
}

func (t Threshold) String() string {
	if name, ok := thresholdNames[t]; ok {
		return name
	}
	return fmt.Sprintf("threshold(%d)", int(t))
}

func (t Threshold) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// ParseThreshold разбирает имя порога, пустая строка означает default
func ParseThreshold(s string) (Threshold, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ThresholdDefault, nil
	}
	for t, name := range thresholdNames {
		if name == s {
			return t, nil
		}
	}
	return ThresholdDefault, fmt.Errorf("unknown threshold %q", s)
}
