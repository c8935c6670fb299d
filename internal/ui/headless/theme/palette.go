package theme

import (
	"math"

	"github.com/charmbracelet/lipgloss"
	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	ColorAccent  = lipgloss.Color("69")
	ColorGood    = lipgloss.Color("10")
	ColorWarn    = lipgloss.Color("226")
	ColorStale   = lipgloss.Color("214")
	ColorBad     = lipgloss.Color("9")
	ColorInfo    = lipgloss.Color("39")
	ColorBright  = lipgloss.Color("15")
	ColorText    = lipgloss.Color("250")
	ColorMuted   = lipgloss.Color("245")
	ColorFaint   = lipgloss.Color("240")
	ColorSurface = lipgloss.Color("236")
	ColorTrack   = lipgloss.Color("238")
)

// shimmerStops cycle along frame borders while a connection is in progress.
var shimmerStops = mustHex("#ff1f5a", "#ff8f1f", "#ffe44d", "#4ce06b", "#39d3ff", "#4f6bff", "#c45bff")

func mustHex(values ...string) []colorful.Color {
	out := make([]colorful.Color, 0, len(values))
	for _, v := range values {
		c, err := colorful.Hex(v)
		if err != nil {
			panic("theme: bad shimmer stop " + v)
		}
		out = append(out, c)
	}
	return out
}

// ShimmerColor returns the color at position along the looping shimmer
// gradient. One unit of position spans two adjacent stops.
func ShimmerColor(position float64) lipgloss.Color {
	n := float64(len(shimmerStops))
	wrapped := math.Mod(position, n)
	if wrapped < 0 {
		wrapped += n
	}
	i := int(wrapped)
	from := shimmerStops[i]
	to := shimmerStops[(i+1)%len(shimmerStops)]
	return lipgloss.Color(from.BlendRgb(to, wrapped-float64(i)).Clamped().Hex())
}
