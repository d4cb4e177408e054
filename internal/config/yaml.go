package config

import (
	"errors"
	"os"

	"github.com/knadh/koanf/maps"
	"gopkg.in/yaml.v2"
)

// yamlFile is a koanf.Provider that hands the raw bytes of a file to a parser.
type yamlFile string

func (f yamlFile) ReadBytes() ([]byte, error) {
	return os.ReadFile(string(f))
}

func (f yamlFile) Read() (map[string]interface{}, error) {
	return nil, errors.New("yaml file provider does not support Read")
}

// yamlParser is a koanf.Parser backed by yaml.v2.
type yamlParser struct{}

func (yamlParser) Unmarshal(b []byte) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if err := yaml.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	// yaml.v2 decodes nested mappings with interface{} keys.
	maps.IntfaceKeysToStrings(out)
	return out, nil
}

func (yamlParser) Marshal(o map[string]interface{}) ([]byte, error) {
	return yaml.Marshal(o)
}
