package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mosaicnetworks/nodegarden/src/common"
	"github.com/mosaicnetworks/nodegarden/src/gardener"
	"github.com/mosaicnetworks/nodegarden/src/net"
	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// DefaultDeviceIDFile is the name of the file, in the data directory, holding
// the device id.
const DefaultDeviceIDFile = "device_id"

// Default configuration values.
const (
	DefaultLogLevel         = "debug"
	DefaultComm             = "local"
	DefaultRelayRealm       = "nodegarden"
	DefaultRelayTimeout     = net.DefaultTimeout
	DefaultReconnectBackoff = net.DefaultReconnectBackoff
	DefaultDeadBand         = net.DefaultDeadBand
	DefaultLiveness         = gardener.DefaultLivenessInterval
	DefaultStaleTimeout     = gardener.DefaultStaleTimeout
	DefaultNetworkPoll      = 5 * time.Second
	DefaultLivenessSweep    = true
	DefaultServiceAddr      = "127.0.0.1:8000"
	DefaultQueueSize        = net.DefaultQueueSize
	DefaultNoiseThreshold   = 1000
	DefaultNoiseDuration    = 2
	DefaultColor            = "#FFFFFFFF"
	DefaultColorThreshold   = 20
)

// Config contains all the configuration properties of a garden peer.
type Config struct {
	// DataDir is the directory containing the device id and the optional
	// configuration file
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// LogFile, if set, receives a copy of every log line
	LogFile string `mapstructure:"log-file"`

	// DeviceID is the id of this device's node. When empty, it is read from
	// the device_id file in DataDir, which is created with a random id the
	// first time.
	DeviceID string `mapstructure:"device-id"`

	// Comm selects the transport: local (multicast) or relay.
	Comm string `mapstructure:"comm"`

	// GroupAddr is the multicast group IP:PORT of the local transport.
	GroupAddr string `mapstructure:"group"`

	// RelayAddr is the address of the relay server: a ws:// or wss:// URL, or
	// a bare host:port.
	RelayAddr string `mapstructure:"relay-addr"`

	// RelayRealm is the WAMP realm joined on the relay.
	RelayRealm string `mapstructure:"relay-realm"`

	// RelayTimeout bounds connections and calls to the relay.
	RelayTimeout time.Duration `mapstructure:"relay-timeout"`

	// ReconnectBackoff is the delay before the local transport reconnects
	// after a channel error.
	ReconnectBackoff time.Duration `mapstructure:"reconnect-backoff"`

	// DeadBand is the minimum move, in both axes, for a position update to be
	// transmitted.
	DeadBand float64 `mapstructure:"dead-band"`

	// LivenessInterval is the period at which the node is re-announced and
	// stale peers are evicted.
	LivenessInterval time.Duration `mapstructure:"liveness"`

	// StaleTimeout is how long a peer can stay silent before it is evicted.
	StaleTimeout time.Duration `mapstructure:"stale-timeout"`

	// NetworkPoll is the period at which network interfaces are checked for
	// changes, which trigger a reconnection. Zero disables the check.
	NetworkPoll time.Duration `mapstructure:"network-poll"`

	// LivenessSweep enables the liveness sweep.
	LivenessSweep bool `mapstructure:"liveness-sweep"`

	// ServiceAddr is the address:port of the HTTP API.
	ServiceAddr string `mapstructure:"service-listen"`

	// NoService disables the HTTP API.
	NoService bool `mapstructure:"no-service"`

	// QueueSize is the number of received nodes buffered by the transport.
	QueueSize int `mapstructure:"queue-size"`

	// Sensor options. They are passed through to the sensors and are not
	// interpreted by the garden itself.
	NoiseDetection bool   `mapstructure:"noise-detection"`
	NoiseThreshold int    `mapstructure:"noise-threshold"`
	NoiseDuration  int    `mapstructure:"noise-duration"`
	ShakeDetection bool   `mapstructure:"shake-detection"`
	ColorDetection bool   `mapstructure:"color-detection"`
	Color          string `mapstructure:"color"`
	ColorThreshold int    `mapstructure:"color-threshold"`
	ImageDetection bool   `mapstructure:"image-detection"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:          DefaultDataDir(),
		LogLevel:         DefaultLogLevel,
		Comm:             DefaultComm,
		GroupAddr:        net.DefaultGroupAddr,
		RelayAddr:        net.DefaultRelayAddr,
		RelayRealm:       DefaultRelayRealm,
		RelayTimeout:     DefaultRelayTimeout,
		ReconnectBackoff: DefaultReconnectBackoff,
		DeadBand:         DefaultDeadBand,
		LivenessInterval: DefaultLiveness,
		StaleTimeout:     DefaultStaleTimeout,
		NetworkPoll:      DefaultNetworkPoll,
		LivenessSweep:    DefaultLivenessSweep,
		ServiceAddr:      DefaultServiceAddr,
		QueueSize:        DefaultQueueSize,
		NoiseThreshold:   DefaultNoiseThreshold,
		NoiseDuration:    DefaultNoiseDuration,
		Color:            DefaultColor,
		ColorThreshold:   DefaultColorThreshold,
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// DeviceIDFile returns the full path of the file containing the device id.
func (c *Config) DeviceIDFile() string {
	return filepath.Join(c.DataDir, DefaultDeviceIDFile)
}

// LoadDeviceID sets DeviceID from the device_id file, unless it is already
// set. The file is created with a random id if it does not exist.
func (c *Config) LoadDeviceID() (string, error) {
	if c.DeviceID != "" {
		return c.DeviceID, nil
	}

	id, err := LoadOrCreateDeviceID(c.DataDir)
	if err != nil {
		return "", err
	}

	c.DeviceID = id

	return id, nil
}

// CommKind parses the Comm option.
func (c *Config) CommKind() (net.Kind, error) {
	return net.ParseKind(c.Comm)
}

// TransportOptions returns the transport options derived from the config.
func (c *Config) TransportOptions() net.Options {
	return net.Options{
		GroupAddr:        c.GroupAddr,
		RelayAddr:        c.RelayAddr,
		RelayRealm:       c.RelayRealm,
		Timeout:          c.RelayTimeout,
		ReconnectBackoff: c.ReconnectBackoff,
		DeadBand:         c.DeadBand,
		QueueSize:        c.QueueSize,
	}
}

// GardenerSettings returns the settings passed to the gardener.
func (c *Config) GardenerSettings() (gardener.Settings, error) {
	kind, err := c.CommKind()
	if err != nil {
		return gardener.Settings{}, err
	}

	color := node.White
	if c.Color != "" {
		color, err = node.ParseColor(c.Color)
		if err != nil {
			return gardener.Settings{}, fmt.Errorf("color option: %w", err)
		}
	}

	return gardener.Settings{
		CommKind:                kind,
		EnableLivenessSweep:     c.LivenessSweep,
		EnableNoiseDetection:    c.NoiseDetection,
		NoiseThreshold:          c.NoiseThreshold,
		NoiseDuration:           c.NoiseDuration,
		EnableShakeDetection:    c.ShakeDetection,
		EnableColorDetection:    c.ColorDetection,
		ColorToDetect:           color,
		ColorDetectionThreshold: c.ColorThreshold,
		EnableImageDetection:    c.ImageDetection,
	}, nil
}

// Logger returns a formatted logrus Entry, with prefix set to "garden". When
// LogFile is set, every level is also written to that file.
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)

		if c.LogFile != "" {
			pathMap := lfshook.PathMap{}
			for _, level := range logrus.AllLevels {
				pathMap[level] = c.LogFile
			}
			c.logger.Hooks.Add(lfshook.NewHook(
				pathMap,
				&logrus.TextFormatter{},
			))
		}
	}
	return c.logger.WithField("prefix", "garden")
}

// LoadOrCreateDeviceID reads the device id stored in dataDir. If there is
// none, a random id is generated and stored.
func LoadOrCreateDeviceID(dataDir string) (string, error) {
	path := filepath.Join(dataDir, DefaultDeviceIDFile)

	raw, err := ioutil.ReadFile(path)
	if err == nil {
		id := strings.TrimSpace(string(raw))
		if id == "" {
			return "", fmt.Errorf("empty device id in %s", path)
		}
		return id, nil
	}

	if !os.IsNotExist(err) {
		return "", err
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", err
	}

	id := uuid.New().String()

	if err := ioutil.WriteFile(path, []byte(id), 0600); err != nil {
		return "", err
	}

	return id, nil
}

// DefaultDataDir return the default directory name for top-level garden config
// based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".NodeGarden")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "NodeGarden")
		} else {
			return filepath.Join(home, ".nodegarden")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
