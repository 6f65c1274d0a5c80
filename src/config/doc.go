// Package config defines the configuration of a garden peer.
//
// Whether a garden is started from Go code or from the command line, it uses
// the Config object defined in this package to store and forward its
// options. On top of these options, a garden relies on a data directory,
// defined by Config.DataDir, where it keeps a few files:
//
//  device_id // a plain text file containing the id of this device's node.
//  garden.toml // (optional) configuration file read by the garden command.
package config
