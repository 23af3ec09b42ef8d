package blaise

import (
	"bytes"
	"image"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	_ "golang.org/x/image/bmp" // Register additional input decoders.
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// OutputFormat is the encoding of the crop files.
type OutputFormat int

// The supported output encodings. Both are lossless and accept any source depth; crops are
// written at 8 bits per channel.
const (
	PNG  OutputFormat = iota
	WebP              // Lossless WebP.
)

// ParseOutputFormat parses "png" or "webp".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch strings.ToLower(s) {
	case "png", "":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return PNG, errors.Errorf("unsupported output format %q", s)
}

// Ext returns the file extension for f, without the dot.
func (f OutputFormat) Ext() string {
	if f == WebP {
		return "webp"
	}
	return "png"
}

func (f OutputFormat) String() string {
	return f.Ext()
}

// String formats the size as WxH.
func (s ImageSize) String() string {
	return strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height)
}

// ParseSize parses a "WxH" size, such as "224x224". Both sides must be positive.
func ParseSize(s string) (ImageSize, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "x")
	if len(parts) != 2 {
		return ImageSize{}, errors.Errorf("invalid size %q, expected WIDTHxHEIGHT", s)
	}
	w, errW := strconv.Atoi(parts[0])
	h, errH := strconv.Atoi(parts[1])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		return ImageSize{}, errors.Errorf("invalid size %q, expected positive WIDTHxHEIGHT", s)
	}
	return ImageSize{Width: w, Height: h}, nil
}

// decodeImageConfig opens the file at path and returns the results of image.DecodeConfig.
func decodeImageConfig(path string) (config image.Config, format string, err error) {
	file, err := os.Open(path)
	if err != nil {
		return image.Config{}, "", err
	}
	defer file.Close()

	return image.DecodeConfig(file)
}

// loadImage reads and decodes the image at path. EXIF orientation is not applied, as annotation
// coordinates refer to the stored pixel grid.
func loadImage(path string) (image.Image, error) {
	img, err := imaging.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrImageLoad, "%q: %v", path, err)
	}
	return img, nil
}

// cropImage copies the pixels of box out of img. The result is clipped to the image bounds and
// may be empty.
func cropImage(img image.Image, box BoundingBox) image.Image {
	return imaging.Crop(img, box.Rect())
}

// resizeImage resamples img to exactly size, ignoring the aspect ratio. Empty images are refused
// with ErrEmptyResizeTarget.
func resizeImage(img image.Image, size ImageSize) (image.Image, error) {
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Wrapf(ErrEmptyResizeTarget, "source is %dx%d", b.Dx(), b.Dy())
	}
	return imaging.Resize(img, size.Width, size.Height, imaging.Lanczos), nil
}

// encodeImage writes img to w in the given format.
func encodeImage(w io.Writer, img image.Image, format OutputFormat) error {
	if format == WebP {
		return webp.Encode(w, img, &webp.Options{Lossless: true})
	}
	return imaging.Encode(w, img, imaging.PNG)
}

// saveImage encodes img and writes it to path. The image is encoded in memory first so that a
// failed encoding never leaves a truncated file behind.
func saveImage(path string, img image.Image, format OutputFormat) error {
	if b := img.Bounds(); b.Empty() {
		return errors.Wrapf(ErrImageSave, "%q: empty image", path)
	}

	var buf bytes.Buffer
	if err := encodeImage(&buf, img, format); err != nil {
		return errors.Wrapf(ErrImageSave, "%q: %v", path, err)
	}
	if err := writeFile(path, buf.Bytes()); err != nil {
		return errors.Wrapf(ErrImageSave, "%q: %v", path, err)
	}
	return nil
}

// writeFile writes data to a new file at path, reporting close errors.
func writeFile(path string, data []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	_, err = f.Write(data)
	return err
}
