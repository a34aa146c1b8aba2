package templates

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Registered template names.
const (
	OrderConfirmation   = "ORDER_CONFIRMATION"
	PaymentFailed       = "PAYMENT_FAILED"
	PasswordReset       = "PASSWORD_RESET"
	AccountVerification = "ACCOUNT_VERIFICATION"
	ShippingUpdate      = "SHIPPING_UPDATE"
	Welcome             = "WELCOME"
)

//go:embed registry.yaml
var defaultRegistry []byte

// Config is the static configuration of one named template.
type Config struct {
	Name       string   `yaml:"-"`
	TemplateID string   `yaml:"template"`
	Subject    string   `yaml:"subject"`
	Priority   int      `yaml:"priority"`
	Required   []string `yaml:"required"`
}

// Registry maps template names to their configuration. It is read once at
// startup and never mutated afterwards.
type Registry map[string]Config

// DefaultRegistry returns the registry compiled into the binary.
func DefaultRegistry() (Registry, error) {
	return LoadRegistry(bytes.NewReader(defaultRegistry))
}

// LoadRegistry decodes a YAML registry and validates every entry.
func LoadRegistry(r io.Reader) (Registry, error) {
	var entries map[string]Config
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistry, err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: no templates defined", ErrInvalidRegistry)
	}

	reg := make(Registry, len(entries))
	for name, cfg := range entries {
		if strings.TrimSpace(cfg.TemplateID) == "" {
			return nil, fmt.Errorf("%w: %s: template id is required", ErrInvalidRegistry, name)
		}
		if strings.TrimSpace(cfg.Subject) == "" {
			return nil, fmt.Errorf("%w: %s: subject is required", ErrInvalidRegistry, name)
		}
		cfg.Name = name
		reg[name] = cfg
	}
	return reg, nil
}
