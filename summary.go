package blaise

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
)

// LabelCount is the number of objects with a given label.
type LabelCount struct {
	Label string
	Count int
}

// DuplicateImage is an image referenced by more than one annotation.
type DuplicateImage struct {
	Path  string
	Count int
}

// AnnotationSummary describes a set of loaded annotations.
type AnnotationSummary struct {
	Annotations int
	Objects     int
	Labels      []LabelCount     // By count descending, then label ascending.
	Duplicates  []DuplicateImage // By path ascending.
}

// Summarize counts the objects per label and finds images that more than one annotation refers
// to. Image paths are resolved through ds.
func Summarize(annotations []Annotation, ds Dataset) AnnotationSummary {
	s := AnnotationSummary{Annotations: len(annotations)}

	byLabel := make(Tally)
	byImage := make(map[string]int, len(annotations))
	for _, a := range annotations {
		s.Objects += len(a.Objects)
		for _, o := range a.Objects {
			byLabel[o.Name]++
		}
		byImage[ds.ImagePath(a)]++
	}

	for _, label := range byLabel.Labels() {
		s.Labels = append(s.Labels, LabelCount{Label: label, Count: byLabel[label]})
	}
	sort.SliceStable(s.Labels, func(i, j int) bool {
		return s.Labels[i].Count > s.Labels[j].Count
	})

	for path, n := range byImage {
		if n > 1 {
			s.Duplicates = append(s.Duplicates, DuplicateImage{Path: path, Count: n})
		}
	}
	sort.Slice(s.Duplicates, func(i, j int) bool {
		return s.Duplicates[i].Path < s.Duplicates[j].Path
	})

	return s
}

// PrintAnnotationSummary writes s to w as tables.
func PrintAnnotationSummary(w io.Writer, s AnnotationSummary) {
	fmt.Fprintf(w, "\n%d annotations with %d objects and %d labels.\n",
		s.Annotations, s.Objects, len(s.Labels))

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Objects", "Label"})
	for _, lc := range s.Labels {
		t.AppendRow(table.Row{lc.Count, fmt.Sprintf("%q", lc.Label)})
	}
	t.AppendFooter(table.Row{s.Objects, "total"})
	t.Render()

	if len(s.Duplicates) == 0 {
		return
	}

	fmt.Fprintf(w, "%d images are referenced by more than one annotation:\n", len(s.Duplicates))
	d := table.NewWriter()
	d.SetOutputMirror(w)
	d.SetStyle(table.StyleLight)
	d.AppendHeader(table.Row{"References", "Image"})
	for _, dup := range s.Duplicates {
		d.AppendRow(table.Row{dup.Count, dup.Path})
	}
	d.Render()
}
