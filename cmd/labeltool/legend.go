package main

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"

	"github.com/Faultbox/cloudlabel/pkg/document"
)

// swatch renders a two-cell block in the label colour. Terminals without
// colour support get plain spaces.
func swatch(out *termenv.Output, c document.Color) string {
	return out.String("  ").Background(out.Color(c.Hex())).String()
}

// printLegend lists every label with its colour and counts.
func printLegend(out *termenv.Output, labels []document.Label, stats document.Statistics) {
	if len(labels) == 0 {
		fmt.Fprintln(out, "No labels defined.")
		return
	}
	fmt.Fprintln(out, "Labels:")
	for _, l := range labels {
		writeLegendRow(out, swatch(out, l.Color), l, stats)
	}
}

func writeLegendRow(w io.Writer, sw string, l document.Label, stats document.Statistics) {
	hidden := ""
	if !l.Visible {
		hidden = " (hidden)"
	}
	fmt.Fprintf(w, "  %s %4d  %-20s %s  points %-8d faces %d%s\n",
		sw, l.ID, l.Name, l.Color.Hex(), stats.LabelStats[l.ID], stats.FaceLabelStats[l.ID], hidden)
}
