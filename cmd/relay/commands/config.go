package commands

import (
	"path/filepath"

	"github.com/mosaicnetworks/nodegarden/src/config"
	"github.com/mosaicnetworks/nodegarden/src/relay"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// DefaultBadgerDir is the name of the relay's database directory.
const DefaultBadgerDir = "relay_db"

//CLIConfig contains the configuration of the relay server
type CLIConfig struct {
	Listen   string `mapstructure:"listen"`
	Realm    string `mapstructure:"realm"`
	CertFile string `mapstructure:"cert"`
	KeyFile  string `mapstructure:"key"`
	Store    bool   `mapstructure:"store"`
	DBDir    string `mapstructure:"db"`
	LogLevel string `mapstructure:"log"`

	logger *logrus.Logger
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Listen:   "0.0.0.0:8090",
		Realm:    relay.DefaultRealm,
		Store:    false,
		DBDir:    filepath.Join(config.DefaultDataDir(), DefaultBadgerDir),
		LogLevel: "info",
	}
}

// Logger returns a formatted logrus Entry, with prefix set to "relay".
func (c *CLIConfig) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = config.LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "relay")
}
