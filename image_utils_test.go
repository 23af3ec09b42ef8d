package blaise

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    ImageSize
		wantErr bool
	}{
		{in: "224x224", want: ImageSize{224, 224}},
		{in: "64X32", want: ImageSize{64, 32}},
		{in: " 1x2 ", want: ImageSize{1, 2}},
		{in: "224", wantErr: true},
		{in: "0x10", wantErr: true},
		{in: "10x-1", wantErr: true},
		{in: "axb", wantErr: true},
		{in: "1x2x3", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseSize(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, got, mustParseSize(t, got.String()))
		})
	}
}

func mustParseSize(t *testing.T, s string) ImageSize {
	t.Helper()
	size, err := ParseSize(s)
	require.NoError(t, err)
	return size
}

func TestParseOutputFormat(t *testing.T) {
	f, err := ParseOutputFormat("PNG")
	require.NoError(t, err)
	assert.Equal(t, PNG, f)
	assert.Equal(t, "png", f.Ext())

	f, err = ParseOutputFormat("webp")
	require.NoError(t, err)
	assert.Equal(t, WebP, f)
	assert.Equal(t, "webp", f.Ext())

	_, err = ParseOutputFormat("jpg")
	assert.Error(t, err)
}

func TestCropImage(t *testing.T) {
	img := testImage(20, 10)

	crop := cropImage(img, BoundingBox{XMin: 2, YMin: 3, XMax: 7, YMax: 5})
	assert.Equal(t, image.Rect(0, 0, 5, 2), crop.Bounds())
	r, g, _, _ := crop.At(0, 0).RGBA()
	assert.Equal(t, uint32(2), r>>8)
	assert.Equal(t, uint32(3), g>>8)

	clipped := cropImage(img, BoundingBox{XMin: 15, YMin: 5, XMax: 40, YMax: 40})
	assert.Equal(t, image.Rect(0, 0, 5, 5), clipped.Bounds())

	empty := cropImage(img, BoundingBox{XMin: 5, YMin: 5, XMax: 5, YMax: 8})
	assert.True(t, empty.Bounds().Empty())
}

func TestResizeImage(t *testing.T) {
	resized, err := resizeImage(testImage(20, 10), ImageSize{Width: 8, Height: 8})
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 8), resized.Bounds())

	_, err = resizeImage(image.NewNRGBA(image.Rect(0, 0, 0, 4)), ImageSize{Width: 8, Height: 8})
	assert.True(t, errors.Is(err, ErrEmptyResizeTarget), "got %v", err)
}

func TestSaveAndLoadImage(t *testing.T) {
	dir := t.TempDir()

	for _, format := range []OutputFormat{PNG, WebP} {
		t.Run(format.String(), func(t *testing.T) {
			path := filepath.Join(dir, "crop."+format.Ext())
			require.NoError(t, saveImage(path, testImage(6, 4), format))

			img, err := loadImage(path)
			require.NoError(t, err)
			assert.Equal(t, image.Rect(0, 0, 6, 4), img.Bounds())

			cfg, _, err := decodeImageConfig(path)
			require.NoError(t, err)
			assert.Equal(t, 6, cfg.Width)
			assert.Equal(t, 4, cfg.Height)
		})
	}

	t.Run("empty image", func(t *testing.T) {
		path := filepath.Join(dir, "empty.png")
		err := saveImage(path, image.NewNRGBA(image.Rect(0, 0, 0, 0)), PNG)
		assert.True(t, errors.Is(err, ErrImageSave), "got %v", err)
		assert.NoFileExists(t, path)
	})

	t.Run("missing directory", func(t *testing.T) {
		err := saveImage(filepath.Join(dir, "nope", "x.png"), testImage(2, 2), PNG)
		assert.True(t, errors.Is(err, ErrImageSave), "got %v", err)
	})

	t.Run("not an image", func(t *testing.T) {
		path := filepath.Join(dir, "bogus.png")
		require.NoError(t, os.WriteFile(path, []byte("not a png"), 0644))
		_, err := loadImage(path)
		assert.True(t, errors.Is(err, ErrImageLoad), "got %v", err)
	})
}
