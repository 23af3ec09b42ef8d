package blaise

// Bounding box statistics for inspecting a dataset before cropping.

import (
	"encoding/csv"
	"math"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

var bbInfoHeader = []string{
	"image", "label", "xmin", "ymin", "xmax", "ymax", "width", "height", "aspect_ratio",
}

// formatAspectRatio formats r with four decimals, or as "inf".
func formatAspectRatio(r float64) string {
	if math.IsInf(r, 0) || math.IsNaN(r) {
		return "inf"
	}
	return strconv.FormatFloat(r, 'f', 4, 64)
}

// WriteBoundingBoxInfo writes one CSV row per object of annotations to path.
func WriteBoundingBoxInfo(path string, annotations []Annotation, ds Dataset) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create the bounding box info file")
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	u := func(v uint32) string { return strconv.FormatUint(uint64(v), 10) }

	w := csv.NewWriter(f)
	if err := w.Write(bbInfoHeader); err != nil {
		return err
	}
	for _, a := range annotations {
		image := ds.ImagePath(a)
		for _, o := range a.Objects {
			b := o.Box
			row := []string{
				image, o.Name,
				u(b.XMin), u(b.YMin), u(b.XMax), u(b.YMax),
				u(b.Width()), u(b.Height()),
				formatAspectRatio(b.AspectRatio()),
			}
			if err := w.Write(row); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// AspectRatios returns the finite aspect ratios of all objects in ascending order, and the number
// of objects whose ratio is infinite.
func AspectRatios(annotations []Annotation) (finite []float64, infinite int) {
	for _, a := range annotations {
		for _, o := range a.Objects {
			r := o.Box.AspectRatio()
			if math.IsInf(r, 0) {
				infinite++
				continue
			}
			finite = append(finite, r)
		}
	}
	sort.Float64s(finite)
	return finite, infinite
}

// AspectRatioStats summarises the aspect ratio distribution.
type AspectRatioStats struct {
	Finite   int
	Infinite int
	Median   float64 // Zero if there are no finite ratios.
	P95      float64
}

// ComputeAspectRatioStats computes the aspect ratio distribution of annotations.
func ComputeAspectRatioStats(annotations []Annotation) AspectRatioStats {
	finite, infinite := AspectRatios(annotations)
	s := AspectRatioStats{Finite: len(finite), Infinite: infinite}
	if len(finite) == 0 {
		return s
	}
	s.Median = stat.Quantile(0.5, stat.Empirical, finite, nil)
	s.P95 = stat.Quantile(0.95, stat.Empirical, finite, nil)
	return s
}

// PlotAspectRatioHistogram saves the cumulative distribution of the finite aspect ratios of
// annotations as an image at path. The format follows the file extension.
func PlotAspectRatioHistogram(path string, annotations []Annotation) error {
	finite, _ := AspectRatios(annotations)
	if len(finite) == 0 {
		return errors.New("no finite aspect ratios to plot")
	}

	pts := make(plotter.XYs, len(finite))
	for i, r := range finite {
		pts[i] = plotter.XY{X: r, Y: float64(i+1) / float64(len(finite))}
	}

	p := plot.New()
	p.Title.Text = "Bounding box aspect ratios"
	p.X.Label.Text = "aspect ratio (long side / short side)"
	p.Y.Label.Text = "cumulative fraction"
	p.Y.Min = 0
	p.Y.Max = 1
	p.Add(plotter.NewGrid())

	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "cannot plot the aspect ratios")
	}
	line.Width = vg.Points(1)
	p.Add(line)

	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "cannot save the aspect ratio plot to %q", path)
	}
	return nil
}
