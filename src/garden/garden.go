// Package garden assembles a garden peer from a config.Config: the transport,
// the gardener, the network monitor, and the HTTP service.
package garden

import (
	"fmt"
	"sync"

	"github.com/mosaicnetworks/nodegarden/src/config"
	"github.com/mosaicnetworks/nodegarden/src/gardener"
	"github.com/mosaicnetworks/nodegarden/src/net"
	"github.com/mosaicnetworks/nodegarden/src/netwatch"
	"github.com/mosaicnetworks/nodegarden/src/service"
	"github.com/sirupsen/logrus"
)

// Garden is a garden peer. Transport may be set before Init to use a
// transport other than the one described by the config.
type Garden struct {
	Config    *config.Config
	Transport net.Transport
	Monitor   netwatch.Monitor
	Gardener  *gardener.Gardener
	Service   *service.Service

	logger       *logrus.Entry
	shutdownCh   chan struct{}
	shutdownOnce sync.Once
}

// NewGarden ...
func NewGarden(conf *config.Config) *Garden {
	return &Garden{
		Config:     conf,
		shutdownCh: make(chan struct{}),
	}
}

func (g *Garden) initDeviceID() error {
	id, err := g.Config.LoadDeviceID()
	if err != nil {
		return fmt.Errorf("loading device id: %w", err)
	}

	g.logger = g.logger.WithField("device_id", id)

	return nil
}

func (g *Garden) initTransport() error {
	if g.Transport != nil {
		g.logger.WithField("kind", g.Transport.Kind()).Debug("Using preset transport")
		return nil
	}

	kind, err := g.Config.CommKind()
	if err != nil {
		return err
	}

	trans, err := net.NewTransport(kind, g.Config.TransportOptions(), g.logger)
	if err != nil {
		return err
	}

	g.Transport = trans

	return nil
}

func (g *Garden) initMonitor() error {
	if g.Config.NetworkPoll > 0 {
		g.Monitor = netwatch.NewPollingMonitor(g.Config.NetworkPoll, g.logger)
	}
	return nil
}

func (g *Garden) initGardener() error {
	conf := gardener.NewConfig(
		g.Config.DeviceID,
		g.Config.LivenessInterval,
		g.Config.StaleTimeout,
		g.Monitor,
		g.logger,
	)

	g.Gardener = gardener.New(conf, g.Transport)

	settings, err := g.Config.GardenerSettings()
	if err != nil {
		return err
	}

	// a preset transport decides the kind
	settings.CommKind = g.Transport.Kind()

	return g.Gardener.Initialize(settings)
}

func (g *Garden) initService() error {
	if !g.Config.NoService {
		g.Service = service.NewService(g.Config.ServiceAddr, g.Gardener, g.logger)
	}
	return nil
}

// Init creates and initializes the components. On failure, whatever was
// already started is stopped.
func (g *Garden) Init() error {
	g.logger = g.Config.Logger()

	steps := []func() error{
		g.initDeviceID,
		g.initTransport,
		g.initMonitor,
		g.initGardener,
		g.initService,
	}

	for _, step := range steps {
		if err := step(); err != nil {
			g.release()
			return err
		}
	}

	return nil
}

// Run adds this device's node at (x, y), asks the other peers to announce
// themselves, and serves the API until Shutdown.
func (g *Garden) Run(x, y float64) error {
	if err := g.Gardener.AddSelfNode(x, y); err != nil {
		return err
	}

	if err := g.Gardener.RequestDiscovery(); err != nil {
		g.logger.WithError(err).Warn("Requesting discovery")
	}

	if g.Service != nil {
		go g.Service.Serve()
	}

	g.logger.WithFields(logrus.Fields{
		"transport": g.Transport.Kind(),
		"x":         x,
		"y":         y,
	}).Info("Garden running")

	<-g.shutdownCh

	return nil
}

// Shutdown stops the service, disposes the gardener, and closes the
// transport. It unblocks Run and is safe to call more than once.
func (g *Garden) Shutdown() {
	g.shutdownOnce.Do(func() {
		if g.logger != nil {
			g.logger.Debug("Shutting down garden")
		}

		if g.Service != nil {
			g.Service.Shutdown()
		}

		g.release()

		close(g.shutdownCh)
	})
}

func (g *Garden) release() {
	if g.Gardener != nil {
		g.Gardener.Dispose()
	} else if g.Monitor != nil {
		g.Monitor.Stop()
	}

	if g.Transport != nil {
		if err := g.Transport.Close(); err != nil {
			g.logger.WithError(err).Error("Closing transport")
		}
	}
}
