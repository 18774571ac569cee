package formats

import (
	"encoding/json"
	"strings"

	"github.com/qmuntal/gltf"

	"github.com/Faultbox/cloudlabel/pkg/document"
)

// Annotation keys carried in a node's extras.
const (
	ExtrasKey            = "extras"
	KeyLabelDefinitions  = "labelDefinitions"
	KeyFaceLabels        = "faceLabels"
	KeyOriginalHeader    = "originalHeader"
	KeyPLYHeader         = "plyHeader"
	KeyUnits             = "units"
	KeySourceFormat      = "sourceFormat"
	KeyAnnotationVersion = "annotationVersion"
)

// AnnotationVersion is written with every exported label set.
const AnnotationVersion = 1

var annotationKeys = []string{
	KeyLabelDefinitions,
	KeyFaceLabels,
	KeyOriginalHeader,
	KeyPLYHeader,
	KeyUnits,
	KeySourceFormat,
	KeyAnnotationVersion,
}

func isAnnotationKey(k string) bool {
	for _, a := range annotationKeys {
		if a == k {
			return true
		}
	}
	return false
}

// normalizeExtras regroups annotation keys found at the top level of a
// node's extras into a nested "extras" bag, removing them from the top
// level. Values already nested win over flattened ones. The nested bag is
// returned, or nil when the node carries no annotations.
func normalizeExtras(n *gltf.Node) map[string]any {
	top, ok := n.Extras.(map[string]any)
	if !ok {
		return nil
	}

	bag := make(map[string]any)
	for k, v := range top {
		if isAnnotationKey(k) {
			bag[k] = v
			delete(top, k)
		}
	}
	if nested, ok := top[ExtrasKey].(map[string]any); ok {
		for k, v := range nested {
			bag[k] = v
		}
	}
	if len(bag) == 0 {
		return nil
	}
	top[ExtrasKey] = bag
	return bag
}

// nodeAnnotations is the decoded annotation payload of one node.
type nodeAnnotations struct {
	labels     []document.Label
	hasLabels  bool
	faceLabels []int
	header     string
	units      string
}

func readAnnotations(bag map[string]any) nodeAnnotations {
	var a nodeAnnotations
	if bag == nil {
		return a
	}
	if defs, ok := bag[KeyLabelDefinitions].([]any); ok {
		a.hasLabels = true
		for _, d := range defs {
			if l, ok := parseLabelDefinition(d); ok {
				a.labels = append(a.labels, l)
			}
		}
	}
	if fl, ok := bag[KeyFaceLabels].([]any); ok {
		a.faceLabels = make([]int, len(fl))
		for i, v := range fl {
			id, _ := intValue(v)
			a.faceLabels[i] = document.NormalizeLabel(id)
		}
	} else if fl, ok := bag[KeyFaceLabels].([]int); ok {
		a.faceLabels = append([]int(nil), fl...)
	}
	if h, ok := bag[KeyOriginalHeader].(string); ok {
		a.header = h
	} else if h, ok := bag[KeyPLYHeader].(string); ok {
		a.header = h
	}
	if u, ok := bag[KeyUnits].(string); ok {
		a.units = u
	}
	return a
}

func parseLabelDefinition(v any) (document.Label, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return document.Label{}, false
	}
	id, ok := intValue(m["id"])
	if !ok || !document.IsLabeled(id) {
		return document.Label{}, false
	}
	name, _ := m["name"].(string)
	l := document.NewLabel(id, name)
	if c, ok := colorValue(m["color"]); ok {
		l.Color = c
	}
	if vis, ok := m["visible"].(bool); ok {
		l.Visible = vis
	}
	pc, okP := intValue(m["pointCount"])
	fc, okF := intValue(m["faceCount"])
	if okP || okF {
		l.Counts = &document.LabelCounts{Points: pc, Faces: fc}
	}
	return l, true
}

// colorValue accepts "#rrggbb", a 0xRRGGBB number or an [r,g,b] array.
func colorValue(v any) (document.Color, bool) {
	switch c := v.(type) {
	case string:
		col, err := document.ParseHexColor(c)
		return col, err == nil
	case []any:
		if len(c) < 3 {
			return document.Color{}, false
		}
		var ch [3]float32
		for i := 0; i < 3; i++ {
			f, ok := floatValue(c[i])
			if !ok {
				return document.Color{}, false
			}
			ch[i] = document.NormalizeChannel(f)
		}
		return document.Color{R: ch[0], G: ch[1], B: ch[2]}, true
	default:
		if n, ok := intValue(v); ok && n >= 0 {
			return document.ColorFromUint(uint32(n)), true
		}
	}
	return document.Color{}, false
}

func floatValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func intValue(v any) (int, bool) {
	f, ok := floatValue(v)
	return int(f), ok
}

// annotatedExtras builds the extras of an exported node: the node's own
// non-annotation keys plus a fresh annotation bag.
func annotatedExtras(existing any, bag map[string]any) map[string]any {
	out := make(map[string]any)
	if top, ok := existing.(map[string]any); ok {
		for k, v := range top {
			if k == ExtrasKey || isAnnotationKey(k) {
				continue
			}
			out[k] = v
		}
		// Keep unrelated keys that lived in the nested bag.
		if nested, ok := top[ExtrasKey].(map[string]any); ok {
			for k, v := range nested {
				if !isAnnotationKey(k) {
					bag[k] = v
				}
			}
		}
	}
	out[ExtrasKey] = bag
	return out
}

// labelDefinitionsValue renders the label set for embedding.
func labelDefinitionsValue(labels []document.Label, stats document.Statistics) []any {
	out := make([]any, 0, len(labels))
	for _, l := range labels {
		out = append(out, map[string]any{
			"id":         l.ID,
			"name":       l.Name,
			"color":      l.Color.Hex(),
			"visible":    l.Visible,
			"pointCount": stats.LabelStats[l.ID],
			"faceCount":  stats.FaceLabelStats[l.ID],
		})
	}
	return out
}

// sourceFormatValue is the value recorded under sourceFormat.
func sourceFormatValue(f document.Format) string {
	return strings.ToLower(string(f))
}
