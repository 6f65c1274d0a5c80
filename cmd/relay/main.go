package main

import (
	"os"

	cmd "github.com/mosaicnetworks/nodegarden/cmd/relay/commands"
)

func main() {
	rootCmd := cmd.RootCmd

	rootCmd.AddCommand(cmd.NewLogCmd())

	//Do not print usage when error occurs
	rootCmd.SilenceUsage = true

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
