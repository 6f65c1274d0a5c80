package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/nodegarden/src/garden"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts a garden peer
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run a headless garden peer",
		PreRunE: loadConfig,
		RunE:    runGarden,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runGarden(cmd *cobra.Command, args []string) error {
	engine := garden.NewGarden(&_config.Garden)

	if err := engine.Init(); err != nil {
		_config.Garden.Logger().Error("Cannot initialize garden: ", err)
		return err
	}

	//Prepare sigCh to relay SIGINT and SIGTERM system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		engine.Shutdown()
	}()

	return engine.Run(_config.X, _config.Y)
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Garden.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Garden.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.Garden.LogFile, "Also write the log to this file")
	cmd.Flags().String("device-id", _config.Garden.DeviceID, "Id of this device's node (defaults to the one stored in datadir)")

	// Position
	cmd.Flags().Float64("x", _config.X, "Initial X position of this device's node")
	cmd.Flags().Float64("y", _config.Y, "Initial Y position of this device's node")

	// Transport
	cmd.Flags().StringP("comm", "c", _config.Garden.Comm, "Transport: local (multicast) or relay")
	cmd.Flags().String("group", _config.Garden.GroupAddr, "Multicast group IP:Port of the local transport")
	cmd.Flags().StringP("relay-addr", "r", _config.Garden.RelayAddr, "Address of the relay server")
	cmd.Flags().String("relay-realm", _config.Garden.RelayRealm, "WAMP realm on the relay server")
	cmd.Flags().Duration("relay-timeout", _config.Garden.RelayTimeout, "Timeout of relay connections and calls")
	cmd.Flags().Duration("reconnect-backoff", _config.Garden.ReconnectBackoff, "Delay before reconnecting after a local channel error")
	cmd.Flags().Float64("dead-band", _config.Garden.DeadBand, "Minimum move before a position update is sent")
	cmd.Flags().Int("queue-size", _config.Garden.QueueSize, "Number of received nodes buffered by the transport")
	cmd.Flags().Duration("network-poll", _config.Garden.NetworkPoll, "Interval of network change checks (0 to disable)")

	// Liveness
	cmd.Flags().Bool("liveness-sweep", _config.Garden.LivenessSweep, "Re-announce this node and evict stale peers periodically")
	cmd.Flags().Duration("liveness", _config.Garden.LivenessInterval, "Interval of the liveness sweep")
	cmd.Flags().Duration("stale-timeout", _config.Garden.StaleTimeout, "Silence after which a peer is evicted")

	// Service
	cmd.Flags().StringP("service-listen", "s", _config.Garden.ServiceAddr, "Listen IP:Port for HTTP service")
	cmd.Flags().Bool("no-service", _config.Garden.NoService, "Disable HTTP service")

	// Sensors
	cmd.Flags().Bool("noise-detection", _config.Garden.NoiseDetection, "Enable noise detection")
	cmd.Flags().Int("noise-threshold", _config.Garden.NoiseThreshold, "Noise detection threshold")
	cmd.Flags().Int("noise-duration", _config.Garden.NoiseDuration, "Noise detection duration")
	cmd.Flags().Bool("shake-detection", _config.Garden.ShakeDetection, "Enable shake detection")
	cmd.Flags().Bool("color-detection", _config.Garden.ColorDetection, "Enable color detection")
	cmd.Flags().String("color", _config.Garden.Color, "Color to detect, #AARRGGBB")
	cmd.Flags().Int("color-threshold", _config.Garden.ColorThreshold, "Color detection threshold")
	cmd.Flags().Bool("image-detection", _config.Garden.ImageDetection, "Enable image detection")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	_config.Garden.Logger().WithFields(logrus.Fields{
		"garden.DataDir":          _config.Garden.DataDir,
		"garden.LogLevel":         _config.Garden.LogLevel,
		"garden.LogFile":          _config.Garden.LogFile,
		"garden.DeviceID":         _config.Garden.DeviceID,
		"garden.Comm":             _config.Garden.Comm,
		"garden.GroupAddr":        _config.Garden.GroupAddr,
		"garden.RelayAddr":        _config.Garden.RelayAddr,
		"garden.RelayRealm":       _config.Garden.RelayRealm,
		"garden.RelayTimeout":     _config.Garden.RelayTimeout,
		"garden.ReconnectBackoff": _config.Garden.ReconnectBackoff,
		"garden.DeadBand":         _config.Garden.DeadBand,
		"garden.LivenessSweep":    _config.Garden.LivenessSweep,
		"garden.LivenessInterval": _config.Garden.LivenessInterval,
		"garden.StaleTimeout":     _config.Garden.StaleTimeout,
		"garden.NetworkPoll":      _config.Garden.NetworkPoll,
		"garden.ServiceAddr":      _config.Garden.ServiceAddr,
		"garden.NoService":        _config.Garden.NoService,
		"X":                       _config.X,
		"Y":                       _config.Y,
	}).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/garden.toml (.json, .yaml also work)
	viper.SetConfigName("garden")               // name of config file (without extension)
	viper.AddConfigPath(_config.Garden.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Garden.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Garden.Logger().Debugf("No config file found in: %s", _config.Garden.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}
