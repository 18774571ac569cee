package formats

import (
	"errors"
	"fmt"
)

// Error classes. Every codec error wraps exactly one of these, so callers
// can branch with errors.Is without knowing the specific cause.
var (
	// ErrFormat: the input is malformed, unterminated or unsupported.
	ErrFormat = errors.New("format error")
	// ErrSchemaMismatch: the declared element counts exceed the data.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrMissingContext: export needs a scene handle or interaction map that is absent.
	ErrMissingContext = errors.New("missing export context")
	// ErrStructuralMismatch: a cloned scene does not mirror its source.
	ErrStructuralMismatch = errors.New("structural mismatch")
)

// PLY errors.
var (
	ErrInvalidPLYMagic  = fmt.Errorf("%w: invalid PLY magic: expected 'ply'", ErrFormat)
	ErrMissingHeaderEnd = fmt.Errorf("%w: header is not terminated by end_header", ErrFormat)
	ErrInvalidPLYHeader = fmt.Errorf("%w: invalid PLY header", ErrFormat)
	ErrInvalidPLYData   = fmt.Errorf("%w: invalid PLY data", ErrFormat)
	ErrUnexpectedEOF    = fmt.Errorf("%w: unexpected end of data", ErrSchemaMismatch)
)

// glTF errors.
var (
	ErrInvalidGLTF          = fmt.Errorf("%w: invalid glTF data", ErrFormat)
	ErrUnsupportedExtension = fmt.Errorf("%w: unsupported glTF extension", ErrFormat)
)
