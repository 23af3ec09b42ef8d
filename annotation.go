package blaise

// The canonical annotation representation shared by all dialects.

import (
	"image"
	"math"
	"sort"

	"github.com/samber/lo"
)

// BoundingBox is an axis-aligned box in absolute pixel coordinates, measured from the top-left
// corner of the image. XMin <= XMax and YMin <= YMax is expected but not enforced.
type BoundingBox struct {
	XMin uint32
	YMin uint32
	XMax uint32
	YMax uint32
}

// Width is XMax-XMin, or zero for an inverted box.
func (b BoundingBox) Width() uint32 {
	if b.XMax < b.XMin {
		return 0
	}
	return b.XMax - b.XMin
}

// Height is YMax-YMin, or zero for an inverted box.
func (b BoundingBox) Height() uint32 {
	if b.YMax < b.YMin {
		return 0
	}
	return b.YMax - b.YMin
}

// IsEmpty reports whether the box has no area.
func (b BoundingBox) IsEmpty() bool {
	return b.Width() == 0 || b.Height() == 0
}

// AspectRatio is the longer side divided by the shorter side. It is +Inf when the shorter side is
// zero.
func (b BoundingBox) AspectRatio() float64 {
	w, h := float64(b.Width()), float64(b.Height())
	long, short := math.Max(w, h), math.Min(w, h)
	if short == 0 {
		return math.Inf(1)
	}
	return long / short
}

// Rect returns the box as an image.Rectangle anchored at (XMin, YMin).
func (b BoundingBox) Rect() image.Rectangle {
	x, y := int(b.XMin), int(b.YMin)
	return image.Rect(x, y, x+int(b.Width()), y+int(b.Height()))
}

// Object is a labelled bounding box.
type Object struct {
	Name string
	Box  BoundingBox
}

// Annotation is the set of labelled objects for one source image.
type Annotation struct {
	Folder   string   // Directory hint for the image, used when no image directory is configured.
	Filename string   // The image file name, not a full path.
	Objects  []Object // Sorted by name. Nil or empty means no objects.
}

// sortObjects orders objects by name, keeping the source order for equal names.
func sortObjects(objects []Object) {
	sort.SliceStable(objects, func(i, j int) bool {
		return objects[i].Name < objects[j].Name
	})
}

// LabelSet is an allow-list of label names. A nil LabelSet allows every label.
type LabelSet map[string]struct{}

// NewLabelSet returns a set of the given names, or nil if names is empty.
func NewLabelSet(names ...string) LabelSet {
	if len(names) == 0 {
		return nil
	}
	set := make(LabelSet, len(names))
	for _, n := range names {
		set[n] = struct{}{}
	}
	return set
}

// Contains reports whether name is allowed by s.
func (s LabelSet) Contains(name string) bool {
	if s == nil {
		return true
	}
	_, ok := s[name]
	return ok
}

// FilterLabels returns a copy of a that only keeps the objects whose name is in labels. The
// second return value is false if no objects remain, in which case the annotation should be
// dropped.
func FilterLabels(a Annotation, labels LabelSet) (Annotation, bool) {
	if len(a.Objects) == 0 {
		return Annotation{}, false
	}
	if labels == nil {
		return a, true
	}

	kept := lo.Filter(a.Objects, func(o Object, _ int) bool {
		return labels.Contains(o.Name)
	})
	if len(kept) == 0 {
		return Annotation{}, false
	}

	a.Objects = kept
	return a, true
}
