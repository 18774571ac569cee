// labeltool is a CLI utility for inspecting and annotating labeled point
// clouds and meshes.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Faultbox/cloudlabel/internal/config"
	"github.com/Faultbox/cloudlabel/internal/ingest"
	"github.com/Faultbox/cloudlabel/internal/logger"
	"github.com/Faultbox/cloudlabel/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "info":
		cmdInfo(args)
	case "stats":
		cmdStats(args)
	case "convert":
		cmdConvert(args)
	case "label":
		cmdLabel(args)
	case "select":
		cmdSelect(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`labeltool - labeled point cloud and mesh utility

Usage:
  labeltool <command> [options]

Commands:
  info <file>                        Show header, counts and label legend
  stats <file>                       Show per-label point and face counts
  convert <in> <out>                 Re-export, optionally to another format
  label <in> <out> -label N          Assign a label to points/faces and export
  select <file> -points LIST         Print the faces a point selection derives

Common options:
  -config FILE      Config file (default ./labeltool.yaml)
  -debug            Debug logging
  -mode MODE        Face selection mode: touching | enclosed
  -undo-limit N     Label assignments kept for undo
  -format FORMAT    Export format: ply | glb | gltf

Examples:
  labeltool info scan.ply
  labeltool convert scan.ply scan.glb
  labeltool label scan.ply out.ply -label 3 -points 0-99,250
  labeltool select scene.glb -points 10-20 -mode enclosed`)
}

// command is the state shared by every subcommand after flag parsing.
type command struct {
	fs  *flag.FlagSet
	cfg *config.Config
	ctx context.Context
}

// newCommand creates a flag set with the common options. Command-specific
// flags are registered by the caller before parse.
func newCommand(name string) (*command, *config.Flags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &command{fs: fs, ctx: context.Background()}, config.RegisterFlags(fs)
}

// parse parses args, loads the config and initializes logging.
func (c *command) parse(args []string, flags *config.Flags, usage string, minArgs int) {
	c.fs.Parse(args)
	if c.fs.NArg() < minArgs {
		fmt.Fprintln(os.Stderr, "Usage: labeltool "+usage)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatalf("initializing logger: %v", err)
	}
	c.cfg = cfg
}

// open loads a document into a fresh store configured from the config.
func (c *command) open(path string) *store.Store {
	p, err := ingest.LoadFile(c.ctx, path)
	if err != nil {
		fatalf("%v", err)
	}

	st := store.NewStore(store.Limits{
		Undo:      c.cfg.History.UndoLimit,
		Selection: c.cfg.History.SelectionLimit,
	})
	mode, err := c.cfg.SelectionMode()
	if err != nil {
		fatalf("%v", err)
	}
	c.dispatch(st, store.SetSelectionMode{Mode: mode})
	c.dispatch(st, store.LoadDocument{Payload: p})
	return st
}

func (c *command) dispatch(st *store.Store, cmd store.Command) {
	if err := st.Dispatch(cmd); err != nil {
		fatalf("%s: %v", cmd.Name(), err)
	}
}

// export writes the store's document to path and prints any warnings.
func (c *command) export(st *store.Store, path string) {
	warnings, err := ingest.ExportFile(c.ctx, path, st.State(), ingest.OptionsFromConfig(c.cfg.Export))
	if err != nil {
		fatalf("%v", err)
	}
	for _, w := range warnings {
		fmt.Fprintf(os.Stderr, "Warning: %s\n", w.Message)
	}
	fmt.Printf("Wrote %s\n", path)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	logger.Sync()
	os.Exit(1)
}
