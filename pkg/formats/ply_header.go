package formats

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/encoding"
	"github.com/Faultbox/cloudlabel/pkg/schema"
)

// plyHeader is everything read from the header block.
type plyHeader struct {
	schema      *schema.Header
	labels      []document.Label
	textureFile string
	bodyOffset  int
}

// ParsePLYHeader parses a standalone header text, as embedded in mesh
// metadata by a previous export.
func ParsePLYHeader(text string) (*schema.Header, error) {
	h, err := parsePLYHeader([]byte(text))
	if err != nil {
		return nil, err
	}
	return h.schema, nil
}

// parsePLYHeader reads the header block up to and including end_header.
func parsePLYHeader(data []byte) (*plyHeader, error) {
	out := &plyHeader{schema: &schema.Header{}}
	h := out.schema

	pos := 0
	lineNo := 0
	var current *schema.Element
	terminated := false

	for pos < len(data) {
		end := bytes.IndexByte(data[pos:], '\n')
		var raw []byte
		if end < 0 {
			raw = data[pos:]
			pos = len(data)
		} else {
			raw = data[pos : pos+end]
			pos += end + 1
		}
		lineNo++
		line := strings.TrimRight(encoding.HeaderText(raw), "\r")

		if lineNo == 1 {
			if strings.TrimSpace(line) != schema.Magic {
				return nil, ErrInvalidPLYMagic
			}
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case schema.EndHeader:
			terminated = true
		case "format":
			if len(fields) < 2 {
				return nil, fmt.Errorf("%w: line %d: format needs an encoding", ErrInvalidPLYHeader, lineNo)
			}
			enc, ok := schema.ParseEncoding(fields[1])
			if !ok {
				return nil, fmt.Errorf("%w: line %d: unsupported encoding %q", ErrInvalidPLYHeader, lineNo, fields[1])
			}
			h.Encoding = enc
			if len(fields) > 2 {
				h.Version = fields[2]
			}
		case "comment":
			text := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "comment"))
			if l, ok := parseLabelComment(text); ok {
				if document.IsLabeled(l.ID) {
					out.labels = append(out.labels, l)
				}
				continue
			}
			if name, ok := parseTextureComment(text); ok && out.textureFile == "" {
				out.textureFile = name
			}
			h.Comments = append(h.Comments, text)
		case "obj_info":
			h.ObjInfo = append(h.ObjInfo, strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "obj_info")))
		case "element":
			if len(fields) != 3 {
				return nil, fmt.Errorf("%w: line %d: element needs a name and a count", ErrInvalidPLYHeader, lineNo)
			}
			count, err := strconv.Atoi(fields[2])
			if err != nil || count < 0 {
				return nil, fmt.Errorf("%w: line %d: invalid element count %q", ErrInvalidPLYHeader, lineNo, fields[2])
			}
			h.Elements = append(h.Elements, schema.Element{Name: fields[1], Count: count})
			current = &h.Elements[len(h.Elements)-1]
		case "property":
			if current == nil {
				return nil, fmt.Errorf("%w: line %d: property before any element", ErrInvalidPLYHeader, lineNo)
			}
			props, err := parseProperty(fields)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidPLYHeader, lineNo, err)
			}
			current.Properties = append(current.Properties, props...)
		default:
			return nil, fmt.Errorf("%w: line %d: unknown keyword %q", ErrInvalidPLYHeader, lineNo, fields[0])
		}

		if terminated {
			break
		}
	}

	if lineNo == 0 {
		return nil, ErrInvalidPLYMagic
	}
	if !terminated {
		return nil, ErrMissingHeaderEnd
	}
	if h.Encoding == "" {
		return nil, fmt.Errorf("%w: missing format line", ErrInvalidPLYHeader)
	}
	out.bodyOffset = pos
	return out, nil
}

// parseProperty handles "property <type> <name> [<name>...]" and
// "property list <countType> <itemType> <name>". Several names on one
// scalar line declare several properties of the same type.
func parseProperty(fields []string) ([]schema.Property, error) {
	if len(fields) < 3 {
		return nil, fmt.Errorf("property needs a type and a name")
	}
	if fields[1] == "list" {
		if len(fields) != 5 {
			return nil, fmt.Errorf("list property needs count type, item type and name")
		}
		ct, ok := schema.ParseScalarType(fields[2])
		if !ok || ct.IsFloat() {
			return nil, fmt.Errorf("invalid list count type %q", fields[2])
		}
		it, ok := schema.ParseScalarType(fields[3])
		if !ok {
			return nil, fmt.Errorf("invalid list item type %q", fields[3])
		}
		return []schema.Property{{Name: fields[4], Type: it, IsList: true, CountType: ct}}, nil
	}

	t, ok := schema.ParseScalarType(fields[1])
	if !ok {
		return nil, fmt.Errorf("invalid property type %q", fields[1])
	}
	props := make([]schema.Property, 0, len(fields)-2)
	for _, name := range fields[2:] {
		props = append(props, schema.Property{Name: name, Type: t})
	}
	return props, nil
}

// parseLabelComment recognizes "label <id> <name...>".
func parseLabelComment(text string) (document.Label, bool) {
	fields := strings.Fields(text)
	if len(fields) < 2 || !strings.EqualFold(fields[0], "label") {
		return document.Label{}, false
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil {
		return document.Label{}, false
	}
	// Keep the name's inner spacing: everything after the id token.
	rest := strings.TrimSpace(text[len(fields[0]):])
	name := strings.TrimSpace(strings.TrimPrefix(rest, fields[1]))
	return document.NewLabel(id, name), true
}

// parseTextureComment recognizes comments naming a texture file, such as
// "TextureFile wood.png".
func parseTextureComment(text string) (string, bool) {
	if !strings.Contains(strings.ToLower(text), "texturefile") {
		return "", false
	}
	fields := strings.Fields(text)
	if len(fields) < 2 {
		return "", false
	}
	return fields[len(fields)-1], true
}

// TextureFile returns the texture named by a header comment, or "".
func TextureFile(h *schema.Header) string {
	if h == nil {
		return ""
	}
	for _, c := range h.Comments {
		if name, ok := parseTextureComment(c); ok {
			return name
		}
	}
	return ""
}
