package node

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/ugorji/go/codec"
)

// Color is an ARGB colour.
type Color struct {
	A, R, G, B uint8
}

// White is the accent colour of a neutral PingTag.
var White = Color{A: 0xFF, R: 0xFF, G: 0xFF, B: 0xFF}

// String formats the colour as #AARRGGBB.
func (c Color) String() string {
	return fmt.Sprintf("#%02X%02X%02X%02X", c.A, c.R, c.G, c.B)
}

// ParseColor parses #AARRGGBB or #RRGGBB. The leading '#' is optional.
func ParseColor(s string) (Color, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")

	if len(h) == 6 {
		h = "FF" + h
	}
	if len(h) != 8 {
		return Color{}, fmt.Errorf("invalid colour %q", s)
	}

	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q: %v", s, err)
	}

	return Color{
		A: uint8(v >> 24),
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, nil
}

// PingTag is the Tag payload used by the garden application: the accent
// colour of the node and whether it is currently pinging its neighbours.
type PingTag struct {
	AccentColour Color
	Ping         bool
}

type wirePingTag struct {
	AccentColour string `codec:"ac"`
	Ping         bool   `codec:"p"`
}

// NewPingTag returns the neutral tag: white and not pinging.
func NewPingTag() PingTag {
	return PingTag{AccentColour: White}
}

// ParsePingTag decodes a Tag. It never fails; anything it cannot make sense of
// yields the neutral tag.
func ParsePingTag(s string) PingTag {
	var w wirePingTag

	b := bytes.NewBufferString(s)
	jh := new(codec.JsonHandle)
	dec := codec.NewDecoder(b, jh)

	if err := dec.Decode(&w); err != nil {
		return NewPingTag()
	}

	colour, err := ParseColor(w.AccentColour)
	if err != nil {
		return NewPingTag()
	}

	return PingTag{
		AccentColour: colour,
		Ping:         w.Ping,
	}
}

// String encodes the tag so it can be stored in Node.Tag.
func (t PingTag) String() string {
	w := wirePingTag{
		AccentColour: t.AccentColour.String(),
		Ping:         t.Ping,
	}

	b := new(bytes.Buffer)
	jh := new(codec.JsonHandle)
	enc := codec.NewEncoder(b, jh)

	if err := enc.Encode(&w); err != nil {
		return ""
	}

	return b.String()
}
