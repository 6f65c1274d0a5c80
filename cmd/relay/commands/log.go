package commands

import (
	"fmt"
	"time"

	"github.com/mosaicnetworks/nodegarden/src/relay"
	"github.com/spf13/cobra"
)

//NewLogCmd returns the command that prints the nodes recorded by the relay
func NewLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "log",
		Short:   "Print the nodes recorded in the relay database",
		PreRunE: loadConfig,
		RunE:    printLog,
	}
	return cmd
}

func printLog(cmd *cobra.Command, args []string) error {
	log, err := relay.NewBadgerLog(_config.DBDir, _config.Logger())
	if err != nil {
		return err
	}
	defer log.Close()

	entries, err := log.Entries()
	if err != nil {
		return err
	}

	for _, e := range entries {
		fmt.Printf("%s %s %g %g %s\n",
			e.Received.Format(time.RFC3339),
			e.DeviceID,
			e.X,
			e.Y,
			e.Tag)
	}

	return nil
}
