// Package rules contains the built-in passive scan rules.
package rules

import (
	"go.uber.org/zap"

	"github.com/BetterCallFirewall/pscan/internal/catalog"
	"github.com/BetterCallFirewall/pscan/internal/pscan"
)

// Defaults создает встроенный набор правил
func Defaults(cat *catalog.Catalog, logger *zap.Logger) ([]pscan.Rule, error) {
	rc415, err := NewResponseCode415(cat, logger)
	if err != nil {
		return nil, err
	}
	return []pscan.Rule{rc415}, nil
}

// RegisterDefaults регистрирует встроенные правила в реестре
func RegisterDefaults(reg *pscan.Registry, cat *catalog.Catalog, logger *zap.Logger) error {
	rules, err := Defaults(cat, logger)
	if err != nil {
		return err
	}
	for _, r := range rules {
		if err := reg.Register(r); err != nil {
			return err
		}
	}
	return nil
}
