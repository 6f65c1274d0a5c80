package gardener

import (
	"github.com/mosaicnetworks/nodegarden/src/net"
	"github.com/mosaicnetworks/nodegarden/src/node"
)

// Settings are passed to Initialize. Apart from CommKind and
// EnableLivenessSweep, they configure sensors which live outside this
// package. They are stored and exposed, not interpreted.
type Settings struct {
	// CommKind must match the kind of the Gardener's transport
	CommKind net.Kind

	EnableLivenessSweep bool

	EnableNoiseDetection bool
	NoiseThreshold       int
	NoiseDuration        int

	EnableShakeDetection bool

	EnableColorDetection    bool
	ColorToDetect           node.Color
	ColorDetectionThreshold int

	EnableImageDetection bool
}

// DefaultSettings returns settings for the given transport kind with the
// liveness sweep enabled and every sensor disabled.
func DefaultSettings(kind net.Kind) Settings {
	return Settings{
		CommKind:            kind,
		EnableLivenessSweep: true,
		ColorToDetect:       node.White,
	}
}
