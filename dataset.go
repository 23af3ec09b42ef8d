package blaise

import (
	"path/filepath"

	"github.com/pkg/errors"
)

// Dialect is one of the supported annotation encodings.
type Dialect int

// The known dialects.
const (
	Pascal Dialect = iota // XML files with absolute pixel corners.
	Yolo                  // Text files with normalised centre/size, plus a class names file.
)

func (d Dialect) String() string {
	switch d {
	case Pascal:
		return "pascal"
	case Yolo:
		return "yolo"
	}
	return "unknown"
}

// Dataset locates the annotation files and images of one source dataset.
type Dataset struct {
	Dialect Dialect

	DataDir string // Pascal: root directory scanned for *.xml files.

	LabelDir  string // Yolo: directory with one *.txt label file per image.
	NamesFile string // Yolo: class names, one per line; the line index is the class id.

	// ImageDir overrides where images are looked up. For Yolo it is also the directory matched
	// against the label files and is therefore required.
	ImageDir string
}

// Validate checks that the paths required by the dialect are set.
func (ds Dataset) Validate() error {
	switch ds.Dialect {
	case Pascal:
		if ds.DataDir == "" {
			return errors.New("missing data directory")
		}
	case Yolo:
		if ds.ImageDir == "" || ds.LabelDir == "" || ds.NamesFile == "" {
			return errors.New("yolo requires an image directory, a label directory and a names file")
		}
	default:
		return errors.Errorf("unsupported dialect %d", ds.Dialect)
	}
	return nil
}

// ImagePath resolves the path of the image referenced by a.
func (ds Dataset) ImagePath(a Annotation) string {
	if ds.ImageDir != "" {
		return filepath.Join(ds.ImageDir, a.Filename)
	}
	if ds.Dialect == Pascal {
		return filepath.Join(ds.DataDir, a.Folder, a.Filename)
	}
	return filepath.Join(a.Folder, a.Filename)
}

// LoadResult is the outcome of scanning a dataset.
type LoadResult struct {
	Annotations []Annotation // Annotations with at least one object left after label filtering.
	Skipped     int          // Annotations with no (matching) objects, or without an image.
	Invalid     int          // Files that failed to parse.
}

// add filters a by labels and records it as kept or skipped.
func (r *LoadResult) add(a Annotation, labels LabelSet) {
	if a, ok := FilterLabels(a, labels); ok {
		r.Annotations = append(r.Annotations, a)
	} else {
		r.Skipped++
	}
}

// Load reads all annotations of the dataset, keeping only objects whose label is in labels
// (all labels if nil). Malformed files are counted, not returned as errors; an error is returned
// only if the dataset itself cannot be read.
func Load(ds Dataset, labels LabelSet) (LoadResult, error) {
	if err := ds.Validate(); err != nil {
		return LoadResult{}, err
	}

	var res LoadResult
	var err error
	switch ds.Dialect {
	case Pascal:
		res, err = FromPascal(ds.DataDir, labels)
	case Yolo:
		res, err = FromYolo(ds.ImageDir, ds.LabelDir, ds.NamesFile, labels)
	}
	if err != nil {
		return LoadResult{}, err
	}

	log.Debugf("Annotation files: %d to be processed, %d skipped, %d invalid",
		len(res.Annotations), res.Skipped, res.Invalid)
	return res, nil
}
