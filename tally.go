package blaise

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
)

// Tally maps labels to crop counts.
type Tally map[string]int

// Add adds the counts of o to t.
func (t Tally) Add(o Tally) {
	for label, n := range o {
		t[label] += n
	}
}

// Total returns the sum of all counts.
func (t Tally) Total() int {
	return lo.Sum(lo.Values(t))
}

// Labels returns the labels of t in ascending order.
func (t Tally) Labels() []string {
	labels := lo.Keys(t)
	sort.Strings(labels)
	return labels
}

// Failures counts the items that could not be processed.
type Failures struct {
	ImageLoad   int // Annotations whose image could not be decoded.
	ImageSave   int // Crops that could not be written.
	EmptyResize int // Empty crops refused by the resize step.
}

func (f *Failures) add(o Failures) {
	f.ImageLoad += o.ImageLoad
	f.ImageSave += o.ImageSave
	f.EmptyResize += o.EmptyResize
}

// Total returns the number of failures of all kinds.
func (f Failures) Total() int {
	return f.ImageLoad + f.ImageSave + f.EmptyResize
}

// CropFile describes a written crop.
type CropFile struct {
	Label string
	Path  string
	Size  ImageSize
}

// WorkerResult is what a single crop worker hands back when its range is exhausted.
type WorkerResult struct {
	Worker      int
	Annotations int
	Tally       Tally
	Failures    Failures
	Crops       []CropFile
}

// RunResult is the merged outcome of a crop run.
type RunResult struct {
	Workers     int
	Annotations int
	ByLabel     Tally
	Total       int
	Failures    Failures
	Crops       []CropFile // Sorted by path.
}

// Aggregate merges the worker results. It must only run after all workers have finished.
func Aggregate(results ...WorkerResult) RunResult {
	r := RunResult{Workers: len(results), ByLabel: make(Tally)}
	for _, wr := range results {
		r.Annotations += wr.Annotations
		r.ByLabel.Add(wr.Tally)
		r.Failures.add(wr.Failures)
		r.Crops = append(r.Crops, wr.Crops...)
	}
	r.Total = r.ByLabel.Total()
	sort.Slice(r.Crops, func(i, j int) bool {
		return r.Crops[i].Path < r.Crops[j].Path
	})
	return r
}

// PrintCropSummary writes the crop totals by label, and any failures, to w.
func PrintCropSummary(w io.Writer, r RunResult) {
	fmt.Fprintf(w, "\nCompleted a total of %d crops.\n", r.Total)
	fmt.Fprintln(w, "Crops by label:")

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Crops", "Label"})
	for _, label := range r.ByLabel.Labels() {
		t.AppendRow(table.Row{r.ByLabel[label], fmt.Sprintf("%q", label)})
	}
	t.AppendFooter(table.Row{r.Total, "total"})
	t.Render()

	if r.Failures.Total() == 0 {
		return
	}
	red := color.New(color.FgRed)
	red.Fprintf(w, "Failures: %d images not loaded, %d crops not saved, %d empty crops not resized\n",
		r.Failures.ImageLoad, r.Failures.ImageSave, r.Failures.EmptyResize)
}
