package blaise

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/pkg/errors"
)

// Options configures a crop run.
type Options struct {
	OutputDir string       // Crops go to OutputDir/<label>/<image>_<index>.<ext>.
	Resize    *ImageSize   // Resize every crop to exactly this size, if set.
	Format    OutputFormat // The encoding of the crop files.
	Workers   int          // Requested number of workers; <= 0 uses all CPUs.
	Verbose   bool         // Log every annotation and crop.
}

// Validate checks the options.
func (o Options) Validate() error {
	if o.OutputDir == "" {
		return errors.New("missing output directory")
	}
	if o.Resize != nil && (o.Resize.Width <= 0 || o.Resize.Height <= 0) {
		return errors.Errorf("invalid resize target %v", *o.Resize)
	}
	if o.Format != PNG && o.Format != WebP {
		return errors.Errorf("unsupported output format %d", o.Format)
	}
	return nil
}

// Cropper extracts one image file per annotated object.
type Cropper struct {
	Dataset  Dataset
	Options  Options
	Progress Progress // May be nil.
}

// NewCropper returns a Cropper that reports no progress.
func NewCropper(ds Dataset, opts Options) *Cropper {
	return &Cropper{Dataset: ds, Options: opts, Progress: NoProgress{}}
}

// Run crops all objects of annotations. The annotations are split into contiguous sections, one
// per worker, and each worker loads its images and writes its crops independently. Per-item
// failures are counted in the result and logged; they never stop the run.
//
// annotations must not be modified while Run is in progress.
func (c *Cropper) Run(annotations []Annotation) RunResult {
	n := len(annotations)
	if n == 0 {
		return Aggregate()
	}

	progress := c.Progress
	if progress == nil {
		progress = NoProgress{}
	}

	workers := WorkerCount(c.Options.Workers, n)
	sections := Partition(n, workers)
	log.Debugf("Dispatching %d annotations to %d workers", n, workers)

	totals := make([]int, workers)
	for i, s := range sections {
		totals[i] = s.Len()
	}
	progress.Start(totals)

	// Each worker hands back its own result; nothing is shared while they run.
	results := make(chan WorkerResult, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i, s := range sections {
		go func(worker int, section []Annotation) {
			defer wg.Done()
			results <- c.processSection(worker, section, progress)
		}(i, annotations[s.Lo:s.Hi])
	}

	wg.Wait()
	close(results)
	progress.Finish()

	collected := make([]WorkerResult, 0, workers)
	for wr := range results {
		collected = append(collected, wr)
	}
	return Aggregate(collected...)
}

// processSection processes the annotations of a single worker, in order.
func (c *Cropper) processSection(worker int, section []Annotation, progress Progress) WorkerResult {
	res := WorkerResult{Worker: worker, Tally: make(Tally)}
	for i := range section {
		crops := c.processAnnotation(&section[i], &res)
		res.Annotations++
		progress.Step(worker, crops)
	}
	return res
}

// processAnnotation writes the crops for all objects of a and returns the number of crops written.
func (c *Cropper) processAnnotation(a *Annotation, res *WorkerResult) int {
	if c.Options.Verbose {
		log.Infof("Processing image %s", filepath.Join(a.Folder, a.Filename))
	}
	if len(a.Objects) == 0 {
		log.Debugf("No objects in %q", a.Filename)
		return 0
	}

	imagePath := c.Dataset.ImagePath(*a)
	img, err := loadImage(imagePath)
	if err != nil {
		log.Warn(color.RedString("%v", err))
		res.Failures.ImageLoad++
		return 0
	}

	crops := 0
	for i, o := range a.Objects {
		if c.Options.Verbose {
			log.Infof("  Cropping %q left %d right %d upper %d lower %d",
				o.Name, o.Box.XMin, o.Box.XMax, o.Box.YMin, o.Box.YMax)
		}

		if !validLabel(o.Name) {
			log.Warnf("Skipping object %d of %q: label %q is not a valid directory name",
				i, imagePath, o.Name)
			res.Failures.ImageSave++
			continue
		}

		crop := cropImage(img, o.Box)
		if c.Options.Resize != nil {
			resized, err := resizeImage(crop, *c.Options.Resize)
			if err != nil {
				log.Warnf("Skipping object %d (%q) of %q: %v", i, o.Name, imagePath, err)
				res.Failures.EmptyResize++
				continue
			}
			crop = resized
		}

		outPath := c.outputPath(o.Name, a.Filename, i)
		if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
			log.Warnf("Cannot create the output directory for %q: %v", outPath, err)
			res.Failures.ImageSave++
			continue
		}
		if err := saveImage(outPath, crop, c.Options.Format); err != nil {
			log.Warn(err)
			res.Failures.ImageSave++
			continue
		}

		b := crop.Bounds()
		res.Tally[o.Name]++
		res.Crops = append(res.Crops, CropFile{
			Label: o.Name,
			Path:  outPath,
			Size:  ImageSize{Width: b.Dx(), Height: b.Dy()},
		})
		crops++
	}

	return crops
}

// validLabel reports whether label can be used as a single directory name below the output
// directory.
func validLabel(label string) bool {
	return label != "" && label != "." && label != ".." && !strings.ContainsAny(label, `/\`)
}

// outputPath returns OutputDir/<label>/<image base name>_<index>.<ext>. The pair of image file
// name and object index is unique within a run, so concurrent workers never write the same file.
func (c *Cropper) outputPath(label, filename string, index int) string {
	name := fmt.Sprintf("%s_%d.%s", stripExt(filename), index, c.Options.Format.Ext())
	return filepath.Join(c.Options.OutputDir, label, name)
}
