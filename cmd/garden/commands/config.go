package commands

import (
	"github.com/mosaicnetworks/nodegarden/src/config"
)

//CLIConfig contains configuration for the Run command
type CLIConfig struct {
	Garden config.Config `mapstructure:",squash"`
	X      float64       `mapstructure:"x"`
	Y      float64       `mapstructure:"y"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Garden: *config.NewDefaultConfig(),
	}
}
