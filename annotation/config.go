package annotation

import (
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lewtec/sinalizador/internal/domain"
)

//go:embed default_flags.yaml
var defaultConfig []byte

type Config struct {
	Meta struct {
		Description string `yaml:"description"`
	} `yaml:"meta"`
	Flags domain.FlagCatalog `yaml:"flags"`
}

// DefaultConfigYAML returns the embedded configuration, used by `init` as a
// starting point.
func DefaultConfigYAML() []byte {
	ret := make([]byte, len(defaultConfig))
	copy(ret, defaultConfig)
	return ret
}

// DefaultConfig parses the embedded configuration
func DefaultConfig() (*Config, error) {
	return ParseConfig(defaultConfig)
}

// LoadConfig reads filename, or the embedded configuration when filename is
// empty.
func LoadConfig(filename string) (*Config, error) {
	if filename == "" {
		return DefaultConfig()
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	ret, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("while loading config '%s': %w", filename, err)
	}
	return ret, nil
}

func ParseConfig(data []byte) (*Config, error) {
	var ret Config
	if err := yaml.Unmarshal(data, &ret); err != nil {
		return nil, err
	}
	if len(ret.Flags) == 0 {
		return nil, fmt.Errorf("no flags specified")
	}
	seen := map[string]bool{}
	for i, flag := range ret.Flags {
		if flag.ID == "" {
			return nil, fmt.Errorf("flag #%d has no id", i+1)
		}
		if seen[flag.ID] {
			return nil, fmt.Errorf("flag %s is defined more than once", flag.ID)
		}
		seen[flag.ID] = true
	}
	return &ret, nil
}
