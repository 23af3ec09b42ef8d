package blaise

// PASCAL VOC specific functionality.

import (
	"encoding/xml"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CoordVal is a pixel coordinate decoded from a token that may be written as an integer
// ("55") or as a float ("55.0", "220.1"). Floats are truncated, not rounded.
type CoordVal uint32

// ParseCoordVal parses s as an unsigned integer, falling back to a float that is truncated to
// an integer. Negative values saturate to zero.
func ParseCoordVal(s string) (CoordVal, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseUint(s, 10, 32); err == nil {
		return CoordVal(v), nil
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, errors.Wrapf(ErrInvalidCoordinate, "%q", s)
	}
	return CoordVal(truncPixel(f)), nil
}

// UnmarshalXML implements xml.Unmarshaler.
func (c *CoordVal) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var s string
	if err := d.DecodeElement(&s, &start); err != nil {
		return err
	}
	v, err := ParseCoordVal(s)
	if err != nil {
		return errors.Wrapf(err, "<%s>", start.Name.Local)
	}
	*c = v
	return nil
}

// truncPixel converts f to a pixel coordinate by truncation, saturating at the uint32 range.
func truncPixel(f float64) uint32 {
	switch {
	case f <= 0:
		return 0
	case f >= math.MaxUint32:
		return math.MaxUint32
	}
	return uint32(f)
}

// PascalSize is the <size> element. The values are kept verbatim; they are informational only.
type PascalSize struct {
	Width  *string `xml:"width"`
	Height *string `xml:"height"`
	Depth  *string `xml:"depth"`
}

// PascalBndbox is the <bndbox> element of an object.
type PascalBndbox struct {
	XMin *CoordVal `xml:"xmin"`
	YMin *CoordVal `xml:"ymin"`
	XMax *CoordVal `xml:"xmax"`
	YMax *CoordVal `xml:"ymax"`
}

// PascalObject is a single <object> element.
type PascalObject struct {
	Name   *string       `xml:"name"`
	Bndbox *PascalBndbox `xml:"bndbox"`
}

// PascalVOC defines the PASCAL VOC annotation structure for a single image. Pointer fields are
// required elements, nil when absent from the document.
type PascalVOC struct {
	XMLName  xml.Name       `xml:"annotation"`
	Folder   *string        `xml:"folder"`
	Filename *string        `xml:"filename"`
	Size     *PascalSize    `xml:"size"`
	Objects  []PascalObject `xml:"object"`
}

// DecodePascal decodes and validates a PASCAL VOC document.
func DecodePascal(src []byte) (PascalVOC, error) {
	var voc PascalVOC
	if err := xml.Unmarshal(src, &voc); err != nil {
		if errors.Is(err, ErrInvalidCoordinate) {
			return PascalVOC{}, err
		}
		return PascalVOC{}, errors.Wrap(ErrInvalidAnnotation, err.Error())
	}
	if err := voc.validate(); err != nil {
		return PascalVOC{}, err
	}
	return voc, nil
}

// validate checks that all required elements are present.
func (voc *PascalVOC) validate() error {
	missing := func(what string) error {
		return errors.Wrapf(ErrInvalidAnnotation, "missing <%s>", what)
	}

	switch {
	case voc.Folder == nil:
		return missing("folder")
	case voc.Filename == nil:
		return missing("filename")
	case voc.Size == nil:
		return missing("size")
	case voc.Size.Width == nil:
		return missing("size/width")
	case voc.Size.Height == nil:
		return missing("size/height")
	case voc.Size.Depth == nil:
		return missing("size/depth")
	}

	for i, o := range voc.Objects {
		var field string
		switch {
		case o.Name == nil || strings.TrimSpace(*o.Name) == "":
			field = "name"
		case o.Bndbox == nil:
			field = "bndbox"
		case o.Bndbox.XMin == nil:
			field = "bndbox/xmin"
		case o.Bndbox.YMin == nil:
			field = "bndbox/ymin"
		case o.Bndbox.XMax == nil:
			field = "bndbox/xmax"
		case o.Bndbox.YMax == nil:
			field = "bndbox/ymax"
		default:
			continue
		}
		return errors.Wrapf(ErrInvalidAnnotation, "object %d: missing <%s>", i, field)
	}

	return nil
}

// Annotation converts voc to the canonical representation, with objects sorted by name.
// voc must have been validated.
func (voc PascalVOC) Annotation() Annotation {
	a := Annotation{
		Folder:   strings.TrimSpace(*voc.Folder),
		Filename: strings.TrimSpace(*voc.Filename),
	}
	if len(voc.Objects) == 0 {
		return a
	}

	a.Objects = make([]Object, len(voc.Objects))
	for i, o := range voc.Objects {
		b := o.Bndbox
		a.Objects[i] = Object{
			Name: strings.TrimSpace(*o.Name),
			Box: BoundingBox{
				XMin: uint32(*b.XMin),
				YMin: uint32(*b.YMin),
				XMax: uint32(*b.XMax),
				YMax: uint32(*b.YMax),
			},
		}
	}
	sortObjects(a.Objects)

	return a
}

// ParsePascal parses a PASCAL VOC document into the canonical representation.
func ParsePascal(src []byte) (Annotation, error) {
	voc, err := DecodePascal(src)
	if err != nil {
		return Annotation{}, err
	}
	return voc.Annotation(), nil
}

// FromPascal reads and parses all PASCAL VOC files (*.xml) found under dataDir and applies the
// label filter.
func FromPascal(dataDir string, labels LabelSet) (LoadResult, error) {
	files, err := filesByExtUnder(dataDir, ".xml")
	if err != nil {
		return LoadResult{}, err
	}
	log.Infof("Parsing PASCAL VOC labels for %d files", len(files))

	res := LoadResult{Annotations: make([]Annotation, 0, len(files))}
	for _, path := range files {
		src, err := os.ReadFile(path)
		if err != nil {
			log.Warnf("Cannot read %q: %v", path, err)
			res.Invalid++
			continue
		}

		a, err := ParsePascal(src)
		if err != nil {
			log.Debugf("Invalid annotation %q: %v", path, err)
			res.Invalid++
			continue
		}

		res.add(a, labels)
	}

	return res, nil
}
