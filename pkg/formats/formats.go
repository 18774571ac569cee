// Package formats provides the codecs for annotated 3D documents.
//
// Two formats are supported:
//
//   - PLY point clouds (ascii, binary little and big endian) with a per-file
//     property schema. Labels travel as a "label" property and as
//     "comment label <id> <name>" header lines.
//   - glTF scenes (.glb and .gltf). Point labels travel as the _LABEL vertex
//     attribute; face labels and label definitions travel in node extras.
//
// Decoders return a *document.Payload or an error, never both. Errors wrap
// one of ErrFormat, ErrSchemaMismatch, ErrMissingContext or
// ErrStructuralMismatch.
package formats
