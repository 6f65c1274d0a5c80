package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/nodegarden/src/relay"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var _config = NewDefaultCLIConfig()

//RootCmd is the root command for the relay server
var RootCmd = &cobra.Command{
	Use:     "relay",
	Short:   "Node garden relay server using WebSockets",
	PreRunE: loadConfig,
	RunE:    runServer,
}

func init() {
	RootCmd.PersistentFlags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	RootCmd.PersistentFlags().Bool("store", _config.Store, "Record relayed nodes in a badger database")
	RootCmd.PersistentFlags().String("db", _config.DBDir, "Database directory")

	RootCmd.Flags().StringP("listen", "l", _config.Listen, "Listen IP:Port of the relay")
	RootCmd.Flags().String("realm", _config.Realm, "WAMP realm")
	RootCmd.Flags().String("cert", _config.CertFile, "TLS certificate file (enables wss)")
	RootCmd.Flags().String("key", _config.KeyFile, "TLS key file")
}

// runServer starts the relay and waits for a SIGINT or SIGTERM
func runServer(cmd *cobra.Command, args []string) error {
	logger := _config.Logger()

	log, err := openLog(_config, logger)
	if err != nil {
		logger.WithError(err).Error("Cannot open relay database")
		return err
	}
	if log != nil {
		defer log.Close()
	}

	server, err := relay.NewServer(
		_config.Listen,
		_config.Realm,
		_config.CertFile,
		_config.KeyFile,
		log,
		logger,
	)
	if err != nil {
		logger.WithError(err).Error("Cannot create relay")
		return err
	}

	go server.Run()

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	<-sigCh

	server.Shutdown()

	return nil
}

// openLog returns the badger log when the relay records nodes, and nil
// otherwise. Nothing is kept in memory for a relay that does not record.
func openLog(c *CLIConfig, logger *logrus.Entry) (relay.Log, error) {
	if !c.Store {
		return nil, nil
	}

	log, err := relay.NewBadgerLog(c.DBDir, logger)
	if err != nil {
		return nil, err
	}

	return log, nil
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	_config.Logger().WithFields(logrus.Fields{
		"Listen": _config.Listen,
		"Realm":  _config.Realm,
		"TLS":    _config.CertFile != "",
		"Store":  _config.Store,
		"DBDir":  _config.DBDir,
	}).Debug("RUN")

	return nil
}
