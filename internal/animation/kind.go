// Package animation implements the tick-driven state machine that renders
// transitions and patterns into the lamp's pixel buffer.
package animation

import "fmt"

// Kind selects the algorithm the engine runs.
type Kind uint8

const (
	KindColor Kind = iota
	KindRgbCirculation
	KindFade
	KindPingPong
	KindRainbowCirculation
	KindRainbow
	KindSine
	KindEmpty
)

var kindNames = map[Kind]string{
	KindColor:              "color",
	KindRgbCirculation:     "rgb_circulation",
	KindFade:               "fade",
	KindPingPong:           "ping_pong",
	KindRainbowCirculation: "rainbow_circulation",
	KindRainbow:            "rainbow",
	KindSine:               "sine",
	KindEmpty:              "empty",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind maps a name such as "rainbow" to its Kind.
func ParseKind(s string) (Kind, error) {
	for k, name := range kindNames {
		if name == s {
			return k, nil
		}
	}
	return KindEmpty, fmt.Errorf("unknown animation kind %q", s)
}

// Timed reports whether the kind interpolates over Interval/Duration.
func (k Kind) Timed() bool {
	return k == KindColor || k == KindRainbow || k == KindSine
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
