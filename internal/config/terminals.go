package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kevin07696/checkout-callback-service/internal/domain"
	"gopkg.in/yaml.v3"
)

// TerminalMapping maps payment method and currency to a gateway terminal.
//
//	terminals:
//	  CREDIT_CARD_EUR: "Shop CC EUR"
//	  EUR: "Shop EUR"
type TerminalMapping struct {
	Terminals map[string]string `yaml:"terminals"`
}

// LoadTerminals reads a terminal mapping from a YAML file
func LoadTerminals(path string) (*TerminalMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read terminal mapping: %w", err)
	}
	return ParseTerminals(data)
}

// ParseTerminals decodes a terminal mapping. Unknown keys are rejected.
func ParseTerminals(data []byte) (*TerminalMapping, error) {
	var m TerminalMapping
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse terminal mapping: %w", err)
	}

	normalized := make(map[string]string, len(m.Terminals))
	for key, name := range m.Terminals {
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("parse terminal mapping: empty terminal for %q", key)
		}
		normalized[strings.ToUpper(strings.TrimSpace(key))] = name
	}
	m.Terminals = normalized
	return &m, nil
}

// Resolve returns the terminal for <method>_<currency>, falling back to the
// currency-only entry.
func (m *TerminalMapping) Resolve(paymentMethod, currency string) (string, error) {
	currency = strings.ToUpper(currency)
	if paymentMethod != "" {
		if name, ok := m.Terminals[strings.ToUpper(paymentMethod)+"_"+currency]; ok {
			return name, nil
		}
	}
	if name, ok := m.Terminals[currency]; ok {
		return name, nil
	}
	return "", domain.ErrTerminalNotFound.
		WithDetail("payment_method", paymentMethod).
		WithDetail("currency", currency)
}
