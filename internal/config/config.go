package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Proxy   ProxyConfig   `yaml:"proxy"`
	Web     WebConfig     `yaml:"web"`
	Cert    CertConfig    `yaml:"cert"`
	Scanner ScannerConfig `yaml:"scanner"`
	Debug   bool          `yaml:"debug"`
}

type ProxyConfig struct {
	ListenAddr string `yaml:"listen_addr"`
	// RateLimit запросов в секунду к upstream, 0 - без ограничения
	RateLimit float64 `yaml:"rate_limit"`
}

type WebConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

type CertConfig struct {
	CertFile string `yaml:"cert_file"`
}

type ScannerConfig struct {
	Workers      int    `yaml:"workers"`
	QueueSize    int    `yaml:"queue_size"`
	MaxMessages  int    `yaml:"max_messages"`
	RulesFile    string `yaml:"rules_file"`
	MessagesFile string `yaml:"messages_file"`

	// Rules пороги правил из RulesFile: plugin id -> имя порога
	Rules map[int]string `yaml:"-"`
}

// RulesFile формат файла PSCAN_RULES_FILE
type RulesFile struct {
	Rules map[int]RuleConfig `yaml:"rules"`
}

type RuleConfig struct {
	Threshold string `yaml:"threshold"`
}

// Load читает .env (если он есть) и переменные окружения.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		Proxy: ProxyConfig{
			ListenAddr: envOrDefault("PROXY_LISTEN_ADDR", ":8090"),
		},
		Web: WebConfig{
			ListenAddr: envOrDefault("WEB_LISTEN_ADDR", ":8081"),
		},
		Cert: CertConfig{
			CertFile: envOrDefault("PROXY_CERT_FILE", "certs/ca.pem"),
		},
		Scanner: ScannerConfig{
			RulesFile:    os.Getenv("PSCAN_RULES_FILE"),
			MessagesFile: os.Getenv("PSCAN_MESSAGES_FILE"),
		},
	}

	var err error
	if cfg.Proxy.RateLimit, err = envFloat("PROXY_RATE_LIMIT", 0); err != nil {
		return nil, err
	}
	if cfg.Scanner.Workers, err = envInt("PSCAN_WORKERS", 4); err != nil {
		return nil, err
	}
	if cfg.Scanner.QueueSize, err = envInt("PSCAN_QUEUE_SIZE", 1024); err != nil {
		return nil, err
	}
	if cfg.Scanner.MaxMessages, err = envInt("PSCAN_MAX_MESSAGES", 10000); err != nil {
		return nil, err
	}
	if cfg.Debug, err = envBool("LOG_DEBUG", false); err != nil {
		return nil, err
	}

	if cfg.Scanner.RulesFile != "" {
		rules, err := LoadRulesFile(cfg.Scanner.RulesFile)
		if err != nil {
			return nil, err
		}
		cfg.Scanner.Rules = rules
	}

	return cfg, nil
}

// LoadRulesFile читает YAML с порогами правил
func LoadRulesFile(path string) (map[int]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var rf RulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, fmt.Errorf("parse rules file %s: %w", path, err)
	}

	res := make(map[int]string, len(rf.Rules))
	for id, rc := range rf.Rules {
		res[id] = rc.Threshold
	}
	return res, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
