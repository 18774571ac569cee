package ingest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/formats"
	"github.com/Faultbox/cloudlabel/pkg/schema"
)

// File types registered with the filetype matcher registry.
var (
	TypePLY  = filetype.NewType("ply", "model/x-ply")
	TypeGLB  = filetype.NewType("glb", "model/gltf-binary")
	TypeGLTF = filetype.NewType("gltf", "model/gltf+json")
)

func init() {
	filetype.AddMatcher(TypePLY, matchPLY)
	filetype.AddMatcher(TypeGLB, formats.IsGLB)
	filetype.AddMatcher(TypeGLTF, matchGLTF)
}

func matchPLY(buf []byte) bool {
	return bytes.HasPrefix(buf, []byte(schema.Magic+"\n")) || bytes.HasPrefix(buf, []byte(schema.Magic+"\r\n"))
}

// matchGLTF accepts a JSON object that mentions the required "asset"
// property. Encoders may write it after the accessors, so the whole
// buffer is searched.
func matchGLTF(buf []byte) bool {
	trimmed := bytes.TrimLeft(buf, " \t\r\n\xef\xbb\xbf")
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return false
	}
	return bytes.Contains(trimmed, []byte(`"asset"`))
}

var formatsByType = map[types.Type]document.Format{
	TypePLY:  document.FormatPLY,
	TypeGLB:  document.FormatGLB,
	TypeGLTF: document.FormatGLTF,
}

// Detect identifies the format of data. Content wins over the file name;
// the extension is only consulted when the content is not recognized.
func Detect(name string, data []byte) document.Format {
	if kind, err := filetype.Match(data); err == nil {
		if f, ok := formatsByType[kind]; ok {
			return f
		}
	}
	return FormatFromName(name)
}

// FormatFromName maps a file extension to a format.
func FormatFromName(name string) document.Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ply":
		return document.FormatPLY
	case ".glb":
		return document.FormatGLB
	case ".gltf":
		return document.FormatGLTF
	}
	return document.FormatUnknown
}

// References lists the auxiliary files a document names: the texture of a
// point-cloud file, or the external buffers and images of a scene. Data
// URIs are not listed. Unparseable input yields nil; decoding reports the
// real error.
func References(data []byte) []string {
	switch Detect("", data) {
	case document.FormatPLY:
		h, err := formats.ParsePLYHeader(string(data[:headerEnd(data)]))
		if err != nil {
			return nil
		}
		if tex := formats.TextureFile(h); tex != "" {
			return []string{tex}
		}
	case document.FormatGLB:
		if js := glbJSONChunk(data); js != nil {
			return sceneURIs(js)
		}
	case document.FormatGLTF:
		return sceneURIs(data)
	}
	return nil
}

func headerEnd(data []byte) int {
	i := bytes.Index(data, []byte("end_header"))
	if i < 0 {
		return len(data)
	}
	if nl := bytes.IndexByte(data[i:], '\n'); nl >= 0 {
		return i + nl + 1
	}
	return len(data)
}

// glbJSONChunk returns the first chunk of a binary container, which is
// always the JSON document.
func glbJSONChunk(data []byte) []byte {
	const headerSize, chunkHeader = 12, 8
	if len(data) < headerSize+chunkHeader {
		return nil
	}
	n := int(binary.LittleEndian.Uint32(data[headerSize:]))
	start := headerSize + chunkHeader
	if n < 0 || start+n > len(data) {
		return nil
	}
	return data[start : start+n]
}

func sceneURIs(js []byte) []string {
	var doc struct {
		Buffers []struct {
			URI string `json:"uri"`
		} `json:"buffers"`
		Images []struct {
			URI string `json:"uri"`
		} `json:"images"`
	}
	if err := json.Unmarshal(js, &doc); err != nil {
		return nil
	}
	var out []string
	add := func(uri string) {
		if uri != "" && !strings.HasPrefix(uri, "data:") {
			out = append(out, uri)
		}
	}
	for _, b := range doc.Buffers {
		add(b.URI)
	}
	for _, img := range doc.Images {
		add(img.URI)
	}
	return out
}
