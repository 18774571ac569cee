// Package config handles labeltool configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/cloudlabel/pkg/document"
	"github.com/Faultbox/cloudlabel/pkg/schema"
	"github.com/Faultbox/cloudlabel/pkg/selection"
)

// Config holds all labeltool settings.
type Config struct {
	Logging   LoggingConfig   `yaml:"logging"`
	History   HistoryConfig   `yaml:"history"`
	Selection SelectionConfig `yaml:"selection"`
	Export    ExportConfig    `yaml:"export"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// HistoryConfig bounds the store's undo stacks.
type HistoryConfig struct {
	UndoLimit      int `yaml:"undo_limit"`      // point-label snapshots kept for undo
	SelectionLimit int `yaml:"selection_limit"` // previous point selections kept
}

// SelectionConfig holds face-selection settings.
type SelectionConfig struct {
	Mode string `yaml:"mode"` // touching | enclosed
}

// ExportConfig holds export settings.
type ExportConfig struct {
	Format      string `yaml:"format"`       // ply | glb | gltf, empty = same as source
	PLYEncoding string `yaml:"ply_encoding"` // empty = keep the source encoding
	Compact     bool   `yaml:"compact"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
		History: HistoryConfig{
			UndoLimit:      20,
			SelectionLimit: 10,
		},
		Selection: SelectionConfig{
			Mode: selection.Touching.String(),
		},
		Export: ExportConfig{
			Compact: true,
		},
	}
}

// Validate checks enumerated values and limits.
func (c *Config) Validate() error {
	if c.History.UndoLimit < 0 {
		return fmt.Errorf("history.undo_limit must not be negative, got %d", c.History.UndoLimit)
	}
	if c.History.SelectionLimit < 0 {
		return fmt.Errorf("history.selection_limit must not be negative, got %d", c.History.SelectionLimit)
	}
	if _, err := c.SelectionMode(); err != nil {
		return fmt.Errorf("selection.mode: %w", err)
	}
	switch document.Format(c.Export.Format) {
	case document.FormatUnknown, document.FormatPLY, document.FormatGLB, document.FormatGLTF:
	default:
		return fmt.Errorf("export.format: unknown format %q", c.Export.Format)
	}
	if c.Export.PLYEncoding != "" {
		if _, ok := schema.ParseEncoding(c.Export.PLYEncoding); !ok {
			return fmt.Errorf("export.ply_encoding: unknown encoding %q", c.Export.PLYEncoding)
		}
	}
	return nil
}

// SelectionMode returns the parsed selection mode.
func (c *Config) SelectionMode() (selection.Mode, error) {
	return selection.ParseMode(c.Selection.Mode)
}
