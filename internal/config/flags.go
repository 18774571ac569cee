package config

import "flag"

// Flags are the command-line overrides shared by every labeltool command.
type Flags struct {
	Config    string
	Debug     bool
	Mode      string
	UndoLimit int
	Format    string
}

// RegisterFlags binds the shared flags to fs.
func RegisterFlags(fs *flag.FlagSet) *Flags {
	f := &Flags{}
	fs.StringVar(&f.Config, "config", "", "Path to config file")
	fs.BoolVar(&f.Debug, "debug", false, "Enable debug logging")
	fs.StringVar(&f.Mode, "mode", "", "Face selection mode (touching|enclosed)")
	fs.IntVar(&f.UndoLimit, "undo-limit", 0, "Number of label assignments kept for undo")
	fs.StringVar(&f.Format, "format", "", "Export format (ply|glb|gltf)")
	return f
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config, f *Flags) {
	if f == nil {
		return
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Mode != "" {
		cfg.Selection.Mode = f.Mode
	}
	if f.UndoLimit > 0 {
		cfg.History.UndoLimit = f.UndoLimit
	}
	if f.Format != "" {
		cfg.Export.Format = f.Format
	}
}
