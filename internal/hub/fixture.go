package hub

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Fixture is the YAML seed for a MemoryHub:
//
//	buttons:
//	  - bdaddr: "80:e4:da:70:00:01"
//	    name: kitchen
//	    batteryStatus: 87
//	network:
//	  dhcp:
//	    wifi: {connected: true, ip: 192.168.1.64, mac: "00:11:22:33:44:55"}
type Fixture struct {
	Buttons []Button       `yaml:"buttons"`
	Network map[string]any `yaml:"network"`
}

// ParseFixture decodes fixture YAML.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing hub fixture: %w", err)
	}
	for i, b := range f.Buttons {
		if b.BdAddr == "" {
			return nil, fmt.Errorf("parsing hub fixture: button %d has no bdaddr", i)
		}
	}
	return &f, nil
}

// LoadFixture reads and decodes a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return ParseFixture(data)
}

// Apply seeds m with the fixture's buttons and network state.
func (f *Fixture) Apply(m *MemoryHub) {
	for _, b := range f.Buttons {
		m.UpsertButton(b)
	}
	if f.Network != nil {
		m.SetNetwork(NetworkInfo(f.Network))
	}
}
