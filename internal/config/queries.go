package config

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// queryList is the on-disk shape of a queries file: explicit city and
// category lists that override the built-in defaults.
type queryList struct {
	Cities     []string `yaml:"cities"`
	Categories []string `yaml:"categories"`
}

func (c *Config) applyQueriesFile() error {
	data, err := os.ReadFile(c.Pipeline.QueriesFile)
	if err != nil {
		return eris.Wrapf(err, "config: read queries file %s", c.Pipeline.QueriesFile)
	}

	var ql queryList
	if err := yaml.Unmarshal(data, &ql); err != nil {
		return eris.Wrapf(err, "config: parse queries file %s", c.Pipeline.QueriesFile)
	}

	if len(ql.Cities) > 0 {
		c.Pipeline.Cities = ql.Cities
	}
	if len(ql.Categories) > 0 {
		c.Pipeline.Categories = ql.Categories
	}
	return nil
}
