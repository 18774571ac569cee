package document

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/chewxy/math32"
)

// Color is a linear RGB colour with channels in [0,1].
type Color struct {
	R, G, B float32
}

// NormalizeChannel maps a decoded channel value into [0,1]. Values above 1
// are taken to be byte-range and scaled by 1/255; anything already at or
// below 1 passes through.
func NormalizeChannel(v float64) float32 {
	c := float32(v)
	if c > 1 {
		c /= 255
	}
	return math32.Max(0, math32.Min(1, c))
}

// ChannelByte returns the channel scaled to 0..255.
func ChannelByte(c float32) uint8 {
	return uint8(math32.Round(math32.Max(0, math32.Min(1, c)) * 255))
}

// Hex renders the colour as #rrggbb.
func (c Color) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", ChannelByte(c.R), ChannelByte(c.G), ChannelByte(c.B))
}

// ParseHexColor parses #rrggbb or rrggbb.
func ParseHexColor(s string) (Color, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) != 6 {
		return Color{}, fmt.Errorf("invalid colour %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return Color{}, fmt.Errorf("invalid colour %q: %w", s, err)
	}
	return ColorFromUint(uint32(v)), nil
}

// ColorFromUint decodes a packed 0xRRGGBB value.
func ColorFromUint(v uint32) Color {
	return Color{
		R: float32((v>>16)&0xff) / 255,
		G: float32((v>>8)&0xff) / 255,
		B: float32(v&0xff) / 255,
	}
}

// palette is cycled for labels that arrive without a colour.
var palette = []uint32{
	0xe6194b, 0x3cb44b, 0xffe119, 0x4363d8, 0xf58231,
	0x911eb4, 0x46f0f0, 0xf032e6, 0xbcf60c, 0xfabebe,
	0x008080, 0xe6beff, 0x9a6324, 0xfffac8, 0x800000,
	0xaaffc3, 0x808000, 0xffd8b1, 0x000075, 0x808080,
}

// PaletteColor returns the default colour for a label id.
func PaletteColor(id int) Color {
	if id < 0 {
		id = -id
	}
	return ColorFromUint(palette[id%len(palette)])
}

// LabelCounts are per-label totals recorded by a previous export.
type LabelCounts struct {
	Points int
	Faces  int
}

// Label is a user-defined category.
type Label struct {
	ID      int
	Name    string
	Color   Color
	Visible bool

	// Counts is set only when the source file recorded them.
	Counts *LabelCounts
}

// NewLabel returns a visible label with its palette colour.
func NewLabel(id int, name string) Label {
	if name == "" {
		name = fmt.Sprintf("Label %d", id)
	}
	return Label{ID: id, Name: name, Color: PaletteColor(id), Visible: true}
}

// FindLabel returns the label with the given id.
func FindLabel(labels []Label, id int) (Label, bool) {
	for _, l := range labels {
		if l.ID == id {
			return l, true
		}
	}
	return Label{}, false
}

// SortLabels orders labels by ascending id in place.
func SortLabels(labels []Label) {
	sort.Slice(labels, func(i, j int) bool { return labels[i].ID < labels[j].ID })
}

// CompleteLabels returns labels extended with a generated definition for
// every label id used by points or faces but not defined. Only the first
// definition of an id is kept. The result is sorted by id.
func CompleteLabels(labels []Label, points []Point, faces []Face) []Label {
	out := make([]Label, 0, len(labels))
	known := make(map[int]bool, len(labels))
	for _, l := range labels {
		if known[l.ID] {
			continue
		}
		known[l.ID] = true
		out = append(out, l)
	}
	add := func(id int) {
		if IsLabeled(id) && !known[id] {
			known[id] = true
			out = append(out, NewLabel(id, ""))
		}
	}
	for _, p := range points {
		add(p.LabelID)
	}
	for _, f := range faces {
		add(f.LabelID)
	}
	SortLabels(out)
	return out
}
