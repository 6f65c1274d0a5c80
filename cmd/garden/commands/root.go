package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for the garden peer
var RootCmd = &cobra.Command{
	Use:              "garden",
	Short:            "node garden peer",
	TraverseChildren: true,
}
