package gardener

import (
	"time"

	"github.com/mosaicnetworks/nodegarden/src/netwatch"
	"github.com/sirupsen/logrus"
)

// Default timing values.
const (
	DefaultLivenessInterval = 15 * time.Second
	DefaultStaleTimeout     = 60 * time.Second
)

// Config contains the parameters of a Gardener.
type Config struct {
	// DeviceID is the id of the Self node. A random one is used when empty.
	DeviceID string

	// LivenessInterval is the period of the liveness sweep
	LivenessInterval time.Duration

	// StaleTimeout is how long a peer can stay silent before it is evicted
	StaleTimeout time.Duration

	// Monitor, if set, triggers a reconnection of the transport on network
	// changes. The Gardener stops it on Dispose.
	Monitor netwatch.Monitor

	// Now is the clock used to stamp and evict nodes
	Now func() time.Time

	Logger *logrus.Entry
}

// NewConfig ...
func NewConfig(deviceID string,
	livenessInterval time.Duration,
	staleTimeout time.Duration,
	monitor netwatch.Monitor,
	logger *logrus.Entry) *Config {

	return &Config{
		DeviceID:         deviceID,
		LivenessInterval: livenessInterval,
		StaleTimeout:     staleTimeout,
		Monitor:          monitor,
		Now:              time.Now,
		Logger:           logger,
	}
}

// DefaultConfig returns a Config with the default timings, no monitor, and a
// random device id.
func DefaultConfig() *Config {
	logger := logrus.New()
	logger.Level = logrus.DebugLevel

	return NewConfig("",
		DefaultLivenessInterval,
		DefaultStaleTimeout,
		nil,
		logrus.NewEntry(logger))
}
