// Package netwatch notifies its users when the host's network configuration
// changes, typically to reconnect a transport.
package netwatch

import (
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultInterval is the default polling interval of a PollingMonitor.
const DefaultInterval = 5 * time.Second

// Monitor signals network changes.
type Monitor interface {
	// Changes returns a channel receiving a value after every change. Changes
	// happening before the previous one was consumed are coalesced.
	Changes() <-chan struct{}

	// Stop stops the monitor. It is safe to call more than once.
	Stop()
}

type addrsFunc func() (string, error)

// PollingMonitor is a Monitor which periodically lists the addresses of the
// host's interfaces and signals a change whenever the list differs from the
// previous one.
type PollingMonitor struct {
	interval time.Duration
	addrs    addrsFunc
	logger   *logrus.Entry

	changes    chan struct{}
	shutdownCh chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
}

// NewPollingMonitor starts a PollingMonitor.
func NewPollingMonitor(interval time.Duration, logger *logrus.Entry) *PollingMonitor {
	return newPollingMonitor(interval, interfaceAddrs, logger)
}

func newPollingMonitor(interval time.Duration, addrs addrsFunc, logger *logrus.Entry) *PollingMonitor {
	if interval <= 0 {
		interval = DefaultInterval
	}

	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}

	m := &PollingMonitor{
		interval:   interval,
		addrs:      addrs,
		logger:     logger.WithField("component", "netwatch"),
		changes:    make(chan struct{}, 1),
		shutdownCh: make(chan struct{}),
	}

	// the first listing is the reference, it is not a change
	last, err := m.addrs()
	if err != nil {
		m.logger.WithError(err).Warn("Listing interface addresses")
	}

	m.wg.Add(1)
	go m.run(last)

	return m
}

// Changes implements the Monitor interface.
func (m *PollingMonitor) Changes() <-chan struct{} {
	return m.changes
}

// Stop implements the Monitor interface.
func (m *PollingMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.shutdownCh)
		m.wg.Wait()
	})
}

func (m *PollingMonitor) run(last string) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			current, err := m.addrs()
			if err != nil {
				m.logger.WithError(err).Debug("Listing interface addresses")
				continue
			}

			if current == last {
				continue
			}

			m.logger.WithFields(logrus.Fields{
				"old": last,
				"new": current,
			}).Info("Network change")

			last = current

			select {
			case m.changes <- struct{}{}:
			default:
			}
		case <-m.shutdownCh:
			return
		}
	}
}

// interfaceAddrs returns the sorted addresses of the host's interfaces as a
// single string.
func interfaceAddrs() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	res := make([]string, 0, len(addrs))
	for _, a := range addrs {
		res = append(res, a.String())
	}
	sort.Strings(res)

	return strings.Join(res, ","), nil
}
