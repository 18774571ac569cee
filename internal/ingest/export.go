package ingest

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/cloudlabel/internal/config"
	"github.com/Faultbox/cloudlabel/internal/logger"
	"github.com/Faultbox/cloudlabel/internal/store"
	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/formats"
	"github.com/Faultbox/cloudlabel/pkg/schema"
)

// Options controls an export.
type Options struct {
	// Format is the output format. Empty exports in the source format.
	Format      document.Format
	PLYEncoding schema.Encoding
	Compact     bool
}

// OptionsFromConfig builds export options from the export config section.
func OptionsFromConfig(c config.ExportConfig) Options {
	return Options{
		Format:      document.Format(c.Format),
		PLYEncoding: schema.Encoding(c.PLYEncoding),
		Compact:     c.Compact,
	}
}

// Result is a successful export.
type Result struct {
	Data     []byte
	Format   document.Format
	Warnings []Warning
}

// Validate returns the warnings an export of s would carry.
func Validate(s store.State) []Warning {
	var out []Warning
	if s.Statistics.LabeledCount == 0 && s.Statistics.FaceLabeledCount == 0 {
		out = append(out, Warning{Code: WarnNoLabeledData, Message: "no point or face carries a label"})
	}
	if len(s.Labels) == 0 {
		out = append(out, Warning{Code: WarnNoLabelDefinitions, Message: "the document defines no labels"})
	}
	return out
}

// Export encodes the store's current document. The state is only read.
func Export(ctx context.Context, s store.State, opts Options) (*Result, error) {
	log := logger.Named("ingest")
	if !s.Loaded {
		return nil, ErrNoDocument
	}

	format := opts.Format
	if format == document.FormatUnknown {
		format = s.Metadata.SourceFormat
	}
	if format == document.FormatUnknown {
		format = document.FormatPLY
	}

	warnings := Validate(s)
	for _, w := range warnings {
		log.Warn("export validation", zap.String("code", w.Code), zap.String("message", w.Message))
	}

	data, err := run(ctx, func() ([]byte, error) {
		switch format {
		case document.FormatPLY:
			return formats.EncodePLY(s.Points, s.Faces, s.Labels, s.Metadata, formats.PLYOptions{Encoding: opts.PLYEncoding})
		case document.FormatGLB, document.FormatGLTF:
			return exportScene(s, format, opts)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	})
	if err != nil {
		log.Warn("export failed", zap.String("format", string(format)), zap.Error(err))
		return nil, err
	}

	log.Info("document exported",
		zap.String("source", s.Metadata.SourceName),
		zap.String("format", string(format)),
		zap.Int("bytes", len(data)),
		zap.Int("warnings", len(warnings)),
	)
	return &Result{Data: data, Format: format, Warnings: warnings}, nil
}

// exportScene encodes to the mesh format. Point-cloud sources have no
// scene, so one is built from their points and faces.
func exportScene(s store.State, format document.Format, opts Options) ([]byte, error) {
	sc, im, faces := s.Scene, s.Interaction, s.Faces
	if sc == nil && !s.Metadata.SourceFormat.IsMesh() {
		var err error
		sc, im, faces, err = formats.BuildScene(s.Points, s.Faces)
		if err != nil {
			return nil, err
		}
	}
	return formats.EncodeGLB(sc, im, s.Points, faces, s.Labels, s.Metadata, formats.GLBOptions{
		JSON:    format == document.FormatGLTF,
		Compact: opts.Compact,
	})
}

// ExportFile exports to path. Warnings are returned on success.
func ExportFile(ctx context.Context, path string, s store.State, opts Options) ([]Warning, error) {
	if opts.Format == document.FormatUnknown {
		opts.Format = FormatFromName(path)
	}
	res, err := Export(ctx, s, opts)
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, res.Data, 0o644); err != nil {
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}
	return res.Warnings, nil
}
