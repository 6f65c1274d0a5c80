package config

import (
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mosaicnetworks/nodegarden/src/common"
	"github.com/mosaicnetworks/nodegarden/src/net"
	"github.com/mosaicnetworks/nodegarden/src/node"
	"github.com/sirupsen/logrus"
)

func TestDefaultConfig(t *testing.T) {
	conf := NewDefaultConfig()

	kind, err := conf.CommKind()
	if err != nil {
		t.Fatal(err)
	}
	if kind != net.Local {
		t.Fatalf("default transport should be local, not %v", kind)
	}

	opts := conf.TransportOptions()
	if opts.GroupAddr != "224.224.224.224:54545" {
		t.Fatalf("unexpected group %s", opts.GroupAddr)
	}
	if opts.DeadBand != 5 {
		t.Fatalf("unexpected dead-band %v", opts.DeadBand)
	}
	if opts.ReconnectBackoff != net.DefaultReconnectBackoff {
		t.Fatalf("unexpected backoff %v", opts.ReconnectBackoff)
	}

	settings, err := conf.GardenerSettings()
	if err != nil {
		t.Fatal(err)
	}
	if !settings.EnableLivenessSweep {
		t.Fatal("liveness sweep should be enabled by default")
	}
	if settings.ColorToDetect != node.White {
		t.Fatalf("unexpected color %v", settings.ColorToDetect)
	}
}

func TestGardenerSettings(t *testing.T) {
	conf := NewTestConfig(t, common.TestLogLevel)
	conf.Comm = "web"
	conf.NoiseDetection = true
	conf.NoiseThreshold = 42
	conf.Color = "#FF00FF00"

	settings, err := conf.GardenerSettings()
	if err != nil {
		t.Fatal(err)
	}

	if settings.CommKind != net.Relay {
		t.Fatalf("expected relay, got %v", settings.CommKind)
	}
	if !settings.EnableNoiseDetection || settings.NoiseThreshold != 42 {
		t.Fatalf("sensor options should be passed through, got %#v", settings)
	}
	if settings.ColorToDetect != (node.Color{A: 255, G: 255}) {
		t.Fatalf("unexpected color %v", settings.ColorToDetect)
	}

	conf.Color = "green"
	if _, err := conf.GardenerSettings(); err == nil {
		t.Fatal("a bad color should fail")
	}

	conf.Color = ""
	conf.Comm = "carrier-pigeon"
	if _, err := conf.GardenerSettings(); !errors.Is(err, net.ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func TestLoadOrCreateDeviceID(t *testing.T) {
	dir, err := ioutil.TempDir("", "garden_config")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	dataDir := filepath.Join(dir, "data")

	id, err := LoadOrCreateDeviceID(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("device id should not be empty")
	}

	again, err := LoadOrCreateDeviceID(dataDir)
	if err != nil {
		t.Fatal(err)
	}
	if again != id {
		t.Fatalf("device id should be stable, got %s then %s", id, again)
	}

	conf := NewTestConfig(t, common.TestLogLevel)
	conf.DataDir = dataDir
	if got, _ := conf.LoadDeviceID(); got != id {
		t.Fatalf("config should load %s, got %s", id, got)
	}

	conf = NewTestConfig(t, common.TestLogLevel)
	conf.DataDir = dataDir
	conf.DeviceID = "explicit"
	if got, _ := conf.LoadDeviceID(); got != "explicit" {
		t.Fatalf("explicit device id should win, got %s", got)
	}

	if err := ioutil.WriteFile(conf.DeviceIDFile(), []byte("  \n"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadOrCreateDeviceID(dataDir); err == nil {
		t.Fatal("an empty device id file should fail")
	}
}

func TestLogFile(t *testing.T) {
	dir, err := ioutil.TempDir("", "garden_log")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	conf := NewDefaultConfig()
	conf.LogLevel = "info"
	conf.LogFile = filepath.Join(dir, "garden.log")

	logger := conf.Logger()
	logger.Logger.Out = ioutil.Discard

	if logger.Logger.Level != logrus.InfoLevel {
		t.Fatalf("unexpected level %v", logger.Logger.Level)
	}

	logger.Info("hello garden")

	raw, err := ioutil.ReadFile(conf.LogFile)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), "hello garden") {
		t.Fatalf("log file should contain the message, got %q", raw)
	}
}
