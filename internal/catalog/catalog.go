package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed messages.yaml
var defaultMessages []byte

// ErrMissingMessage возвращается, когда ключа нет в каталоге
var ErrMissingMessage = errors.New("message not found in catalog")

// Catalog каталог локализованных строк правил. После загрузки только читается,
// поэтому безопасен для конкурентного использования.
type Catalog struct {
	messages map[string]string
}

// Default загружает встроенный английский каталог
func Default() (*Catalog, error) {
	return Parse(defaultMessages)
}

// Parse разбирает YAML вида `key: value`
func Parse(data []byte) (*Catalog, error) {
	messages := make(map[string]string)
	if err := yaml.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &Catalog{messages: messages}, nil
}

// Load загружает встроенный каталог и накладывает поверх него файл overridePath (если задан).
func Load(overridePath string) (*Catalog, error) {
	c, err := Default()
	if err != nil {
		return nil, err
	}
	if overridePath == "" {
		return c, nil
	}

	data, err := os.ReadFile(overridePath)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", overridePath, err)
	}
	override, err := Parse(data)
	if err != nil {
		return nil, err
	}
	for k, v := range override.messages {
		c.messages[k] = v
	}
	return c, nil
}

// Lookup returns the message for key.
func (c *Catalog) Lookup(key string) (string, error) {
	msg, ok := c.messages[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMissingMessage, key)
	}
	return msg, nil
}

// Len returns the number of messages.
func (c *Catalog) Len() int {
	return len(c.messages)
}

// Prefixed возвращает представление каталога с общим префиксом ключей
func (c *Catalog) Prefixed(prefix string) Messages {
	return Messages{catalog: c, prefix: prefix}
}

// Messages строки одного правила: Get("name") ищет "<prefix>name"
type Messages struct {
	catalog *Catalog
	prefix  string
}

func (m Messages) Get(suffix string) (string, error) {
	return m.catalog.Lookup(m.prefix + suffix)
}

func (m Messages) Prefix() string {
	return m.prefix
}
