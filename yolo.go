package blaise

// YOLO specific functionality.

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// YoloObject is a single line of a YOLO label file. The coordinates are the box centre and size
// as fractions of the image width and height.
type YoloObject struct {
	Name   string
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// ImageSize is the pixel size of an image.
type ImageSize struct {
	Width  int
	Height int
}

// YoloFile defines the YOLO annotation structure for a single image.
type YoloFile struct {
	Folder    string
	Filename  string
	ImageSize ImageSize
	Objects   []YoloObject // Nil if the file has no objects.
}

// ClassNames maps YOLO class ids (the index) to label names.
type ClassNames []string

// Name returns the label for id, or "class_<id>" if id is not in the table.
func (c ClassNames) Name(id uint32) string {
	if uint64(id) < uint64(len(c)) && c[id] != "" {
		return c[id]
	}
	return fmt.Sprintf("class_%d", id)
}

// LoadClassNames reads a names file, one label per line.
func LoadClassNames(path string) (ClassNames, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, err
	}
	names := make(ClassNames, len(lines))
	for i, l := range lines {
		names[i] = strings.TrimSpace(l)
	}
	return names, nil
}

// ParseYolo parses the body of a YOLO label file. Each non-blank line that does not start with
// '#' must hold "classId x y width height"; any further tokens are ignored. A single malformed
// line invalidates the whole file.
func ParseYolo(folder, filename string, size ImageSize, classIDToName func(uint32) string,
	src string) (YoloFile, error) {

	y := YoloFile{Folder: folder, Filename: filename, ImageSize: size}

	for n, line := range strings.Split(src, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		o, err := parseYoloObject(line, classIDToName)
		if err != nil {
			return YoloFile{}, errors.Wrapf(err, "line %d", n+1)
		}
		y.Objects = append(y.Objects, o)
	}

	return y, nil
}

// parseYoloObject parses the tokens of a single label line.
func parseYoloObject(line string, classIDToName func(uint32) string) (YoloObject, error) {
	tokens := strings.Fields(line)
	if len(tokens) < 5 {
		return YoloObject{}, errors.Wrapf(ErrInvalidAnnotation, "insufficient tokens in %q", line)
	}

	classID, err := strconv.ParseUint(tokens[0], 10, 32)
	if err != nil {
		return YoloObject{}, errors.Wrapf(ErrInvalidAnnotation, "cannot parse class id %q", tokens[0])
	}

	var v [4]float64
	for i := range v {
		f, err := strconv.ParseFloat(tokens[i+1], 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return YoloObject{}, errors.Wrapf(ErrInvalidAnnotation, "cannot parse %q", tokens[i+1])
		}
		v[i] = f
	}

	return YoloObject{
		Name:   classIDToName(uint32(classID)),
		X:      v[0],
		Y:      v[1],
		Width:  v[2],
		Height: v[3],
	}, nil
}

// Annotation converts y to the canonical representation, with objects sorted by name.
//
// The centre is shifted to the top-left corner and everything is scaled to pixels. The corner
// and the size are rounded independently and then summed, so xmax/ymax may differ by one pixel
// from rounding the far corner directly. Existing crop datasets depend on this.
func (y YoloFile) Annotation() Annotation {
	a := Annotation{Folder: y.Folder, Filename: y.Filename}
	if len(y.Objects) == 0 {
		return a
	}

	imgW := float64(y.ImageSize.Width)
	imgH := float64(y.ImageSize.Height)

	a.Objects = make([]Object, len(y.Objects))
	for i, o := range y.Objects {
		x := (o.X - o.Width/2) * imgW
		top := (o.Y - o.Height/2) * imgH
		w := o.Width * imgW
		h := o.Height * imgH

		xmin := roundPixel(x)
		ymin := roundPixel(top)
		a.Objects[i] = Object{
			Name: o.Name,
			Box: BoundingBox{
				XMin: xmin,
				YMin: ymin,
				XMax: addPixels(xmin, roundPixel(w)),
				YMax: addPixels(ymin, roundPixel(h)),
			},
		}
	}
	sortObjects(a.Objects)

	return a
}

// roundPixel rounds f half away from zero and saturates to the uint32 range.
func roundPixel(f float64) uint32 {
	return truncPixel(math.Round(f))
}

func addPixels(a, b uint32) uint32 {
	if s := uint64(a) + uint64(b); s <= math.MaxUint32 {
		return uint32(s)
	}
	return math.MaxUint32
}

// FromYolo reads and parses the YOLO label files (*.txt) in labelDir, matches them by base name
// to the images in imageDir and applies the label filter. The image headers are read to obtain
// the pixel size needed to denormalise the coordinates.
func FromYolo(imageDir, labelDir, namesFile string, labels LabelSet) (LoadResult, error) {
	names, err := LoadClassNames(namesFile)
	if err != nil {
		return LoadResult{}, err
	}

	// Get the label file paths.
	labelFiles, err := filesByExtInDir(labelDir, ".txt")
	if err != nil {
		return LoadResult{}, err
	}
	log.Infof("Parsing YOLO labels for %d files with %d class names", len(labelFiles), len(names))

	// Find the image files and create a map from base file name without ext to ext.
	imageFiles, err := filesByExtInDir(imageDir, "")
	if err != nil {
		return LoadResult{}, err
	}
	imageNamesToExt := mapFileNamesToExtensions(imageFiles)

	res := LoadResult{Annotations: make([]Annotation, 0, len(labelFiles))}
	for _, labelPath := range labelFiles {
		// Find the corresponding image.
		baseNoExt := stripExt(labelPath)
		imageExt, found := imageNamesToExt[baseNoExt]
		if !found {
			log.Debugf("No corresponding image file, skipping %q", labelPath)
			res.Skipped++
			continue
		}
		filename := baseNoExt + "." + imageExt
		imagePath := filepath.Join(imageDir, filename)

		a, err := parseYoloFile(labelPath, imageDir, filename, imagePath, names)
		if err != nil {
			log.Debugf("Invalid annotation %q: %v", labelPath, err)
			res.Invalid++
			continue
		}

		res.add(a, labels)
	}

	return res, nil
}

// parseYoloFile parses the label file at labelPath for the image at imagePath.
func parseYoloFile(labelPath, folder, filename, imagePath string, names ClassNames) (
	Annotation, error) {

	src, err := os.ReadFile(labelPath)
	if err != nil {
		return Annotation{}, err
	}

	cfg, _, err := decodeImageConfig(imagePath)
	if err != nil {
		return Annotation{}, errors.Wrapf(err, "cannot read the size of %q", imagePath)
	}

	y, err := ParseYolo(folder, filename, ImageSize{Width: cfg.Width, Height: cfg.Height},
		names.Name, string(src))
	if err != nil {
		return Annotation{}, err
	}

	return y.Annotation(), nil
}
