package models

// StatsDTO сводная статистика пассивного сканирования
type StatsDTO struct {
	Messages      int            `json:"messages"`
	Alerts        int            `json:"alerts"`
	AlertsByRisk  map[string]int `json:"alerts_by_risk"`
	Queued        int            `json:"queued"`
	Scanned       uint64         `json:"scanned"`
	Dropped       uint64         `json:"dropped"`
	RuleFailures  uint64         `json:"rule_failures"`
	EnabledRules  int            `json:"enabled_rules"`
	DisabledRules int            `json:"disabled_rules"`
}
