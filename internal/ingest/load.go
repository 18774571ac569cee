package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/cloudlabel/internal/assets"
	"github.com/Faultbox/cloudlabel/internal/logger"
	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/formats"
)

// Load decodes data into a payload for the store's load command. name is
// used for format detection when the content is ambiguous and is recorded
// as the source name. aux holds auxiliary files keyed by the name the
// document uses for them; it may be nil.
//
// Load either returns a complete payload or an error, never both.
func Load(ctx context.Context, name string, data []byte, aux map[string][]byte) (*document.Payload, error) {
	log := logger.Named("ingest")

	format := Detect(name, data)
	if format == document.FormatUnknown {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, name)
	}
	log.Info("loading document",
		zap.String("name", name),
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
		zap.Int("aux_files", len(aux)),
	)

	p, err := run(ctx, func() (*document.Payload, error) {
		if format == document.FormatPLY {
			return formats.DecodePLY(data)
		}
		return formats.DecodeGLB(data, aux)
	})
	if err != nil {
		log.Warn("load failed", zap.String("name", name), zap.Error(err))
		return nil, err
	}

	p.Metadata.SourceName = name
	if format == document.FormatPLY && len(aux) > 0 {
		p.Assets = aux
	}
	log.Info("document loaded",
		zap.String("name", name),
		zap.Int("points", len(p.Points)),
		zap.Int("faces", len(p.Faces)),
		zap.Int("labels", len(p.Labels)),
	)
	return p, nil
}

// LoadFile reads path and the auxiliary files it references from the same
// directory, then decodes it like Load.
func LoadFile(ctx context.Context, path string) (*document.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var aux map[string][]byte
	if refs := References(data); len(refs) > 0 {
		m := assets.NewManager()
		defer m.Close()
		if err := m.AddDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		aux = m.Collect(refs)
	}
	return Load(ctx, filepath.Base(path), data, aux)
}
