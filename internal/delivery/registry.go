package delivery

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Factory creates a new, uninitialized client instance.
type Factory func() Client

// Registry holds all available client factories.
var Registry = map[string]Factory{
	"universal": func() Client { return NewUniversalClient() },
	"ga4":       func() Client { return NewGA4Client() },
	"file":      func() Client { return NewFileClient() },
}

// NewClient creates a client instance by registry name.
func NewClient(name string) (Client, error) {
	factory, exists := Registry[name]
	if !exists {
		return nil, fmt.Errorf("unknown analytics client: %s", name)
	}
	return factory(), nil
}

// ListClients returns the registered client names, sorted.
func ListClients() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ClientConfig declares one delivery client in the destinations file.
type ClientConfig struct {
	Type    string            `yaml:"type"`
	Options map[string]string `yaml:"options"`
}

// DestinationsConfig is the on-disk format of the destinations file.
type DestinationsConfig struct {
	Clients []ClientConfig `yaml:"clients"`
}

// LoadDestinations reads and parses a destinations YAML file. Environment
// variable references ($VAR or ${VAR}) are expanded before parsing, so
// secrets can stay out of the file.
func LoadDestinations(path string) (*DestinationsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read destinations file: %w", err)
	}
	var cfg DestinationsConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse destinations file: %w", err)
	}
	return &cfg, nil
}

// Build instantiates and initializes every declared client, in file order.
func (c *DestinationsConfig) Build() ([]Client, error) {
	clients := make([]Client, 0, len(c.Clients))
	for _, cc := range c.Clients {
		client, err := NewClient(cc.Type)
		if err != nil {
			return nil, err
		}
		if err := client.Init(cc.Options); err != nil {
			return nil, fmt.Errorf("failed to initialize %s client: %w", cc.Type, err)
		}
		clients = append(clients, client)
	}
	return clients, nil
}
