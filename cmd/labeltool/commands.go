package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/muesli/termenv"

	"github.com/Faultbox/cloudlabel/internal/store"
	"github.com/Faultbox/cloudlabel/pkg/document"
)

func cmdInfo(args []string) {
	c, flags := newCommand("info")
	c.parse(args, flags, "info <file>", 1)

	st := c.open(c.fs.Arg(0))
	meta := st.Metadata()

	fmt.Printf("File:    %s\n", c.fs.Arg(0))
	fmt.Printf("Format:  %s\n", meta.SourceFormat)
	fmt.Printf("Points:  %d\n", len(st.Points()))
	fmt.Printf("Faces:   %d\n", len(st.Faces()))
	if meta.Units != "" {
		fmt.Printf("Units:   %s\n", meta.Units)
	}
	if meta.TextureFile != "" {
		fmt.Printf("Texture: %s\n", meta.TextureFile)
	}
	if st.Interaction() != nil {
		fmt.Printf("Meshes:  %d nodes\n", st.Interaction().Len())
	}

	if h := meta.Header; h != nil {
		fmt.Println()
		fmt.Printf("Header (%s):\n", h.Encoding)
		for _, el := range h.Elements {
			names := make([]string, len(el.Properties))
			for i, p := range el.Properties {
				names[i] = p.Name
			}
			fmt.Printf("  %-8s %8d  %s\n", el.Name, el.Count, strings.Join(names, " "))
		}
	}

	fmt.Println()
	printLegend(termenv.NewOutput(os.Stdout), st.Labels(), st.Statistics())
}

func cmdStats(args []string) {
	c, flags := newCommand("stats")
	c.parse(args, flags, "stats <file>", 1)

	st := c.open(c.fs.Arg(0))
	stats := st.Statistics()

	fmt.Printf("Points:  %d labeled, %d unlabeled (%.1f%%)\n",
		stats.LabeledCount, stats.UnlabeledCount, percent(stats.LabeledCount, len(st.Points())))
	if st.State().HasMesh() {
		fmt.Printf("Faces:   %d labeled, %d unlabeled (%.1f%%)\n",
			stats.FaceLabeledCount, stats.FaceUnlabeledCount, percent(stats.FaceLabeledCount, len(st.Faces())))
	}
	fmt.Println()
	printLegend(termenv.NewOutput(os.Stdout), st.Labels(), stats)
}

func cmdConvert(args []string) {
	c, flags := newCommand("convert")
	c.parse(args, flags, "convert <in> <out>", 2)

	st := c.open(c.fs.Arg(0))
	c.export(st, c.fs.Arg(1))
}

func cmdLabel(args []string) {
	c, flags := newCommand("label")
	labelID := c.fs.Int("label", 0, "Label id to assign (0 clears)")
	name := c.fs.String("name", "", "Define the label with this name if it is new")
	color := c.fs.String("color", "", "Colour for a new label (#rrggbb)")
	points := c.fs.String("points", "", "Point indices, e.g. 0-99,250")
	faces := c.fs.String("faces", "", "Face indices; overrides the faces derived from -points")
	c.parse(args, flags, "label <in> <out> -label N [-points LIST] [-faces LIST]", 2)

	pointSel, err := parseIndexList(*points)
	if err != nil {
		fatalf("-points: %v", err)
	}
	faceSel, err := parseIndexList(*faces)
	if err != nil {
		fatalf("-faces: %v", err)
	}
	if len(pointSel) == 0 && len(faceSel) == 0 {
		fatalf("nothing selected; use -points or -faces")
	}

	st := c.open(c.fs.Arg(0))
	if *labelID > 0 && (*name != "" || *color != "") {
		l := document.NewLabel(*labelID, *name)
		if *color != "" {
			if l.Color, err = document.ParseHexColor(*color); err != nil {
				fatalf("-color: %v", err)
			}
		}
		c.dispatch(st, store.AddLabel{Label: l})
	}

	c.dispatch(st, store.SetSelectedPoints{Indices: pointSel})
	if len(faceSel) > 0 {
		c.dispatch(st, store.SetSelectedFaces{Indices: faceSel})
	}
	selected := len(st.SelectedPoints())
	selectedFaces := len(st.SelectedFaces())
	c.dispatch(st, store.AssignSelection{LabelID: *labelID})

	fmt.Printf("Labeled %d points and %d faces as %d\n", selected, selectedFaces, *labelID)
	c.export(st, c.fs.Arg(1))
}

func cmdSelect(args []string) {
	c, flags := newCommand("select")
	points := c.fs.String("points", "", "Point indices, e.g. 0-99,250")
	invert := c.fs.Bool("invert", false, "Invert the selection")
	c.parse(args, flags, "select <file> -points LIST [-mode touching|enclosed]", 1)

	sel, err := parseIndexList(*points)
	if err != nil {
		fatalf("-points: %v", err)
	}

	st := c.open(c.fs.Arg(0))
	c.dispatch(st, store.SetSelectedPoints{Indices: sel})
	if *invert {
		c.dispatch(st, store.InvertSelection{})
	}

	fmt.Printf("Mode:   %s\n", st.SelectionMode())
	fmt.Printf("Points: %d  %s\n", len(st.SelectedPoints()), formatIndexList(st.SelectedPoints()))
	fmt.Printf("Faces:  %d  %s\n", len(st.SelectedFaces()), formatIndexList(st.SelectedFaces()))
}

func percent(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return 100 * float64(n) / float64(total)
}
