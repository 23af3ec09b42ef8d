package blaise

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cropFixture writes n images with two objects each and returns the dataset and annotations.
func cropFixture(t *testing.T, n int) (Dataset, []Annotation) {
	t.Helper()
	imageDir := filepath.Join(t.TempDir(), "images")

	var annotations []Annotation
	for i := 0; i < n; i++ {
		name := "img" + string(rune('a'+i)) + ".png"
		writeTestImage(t, filepath.Join(imageDir, name), 32, 24)
		annotations = append(annotations, Annotation{
			Folder:   "ignored",
			Filename: name,
			Objects: []Object{
				{Name: "cat", Box: BoundingBox{XMin: 1, YMin: 2, XMax: 11, YMax: 7}},
				{Name: "dog", Box: BoundingBox{XMin: 20, YMin: 10, XMax: 40, YMax: 30}},
			},
		})
	}
	return Dataset{Dialect: Pascal, DataDir: "unused", ImageDir: imageDir}, annotations
}

func TestCropperRun(t *testing.T) {
	ds, annotations := cropFixture(t, 5)
	out := t.TempDir()

	c := NewCropper(ds, Options{OutputDir: out, Workers: 2})
	r := c.Run(annotations)

	assert.Equal(t, 5, r.Annotations)
	assert.Equal(t, Tally{"cat": 5, "dog": 5}, r.ByLabel)
	assert.Equal(t, 10, r.Total)
	assert.Zero(t, r.Failures.Total())
	require.Len(t, r.Crops, 10)

	cat := r.Crops[0]
	assert.Equal(t, filepath.Join(out, "cat", "imga_0.png"), cat.Path)
	assert.Equal(t, ImageSize{Width: 10, Height: 5}, cat.Size)
	img, err := loadImage(cat.Path)
	require.NoError(t, err)
	assert.Equal(t, 10, img.Bounds().Dx())
	assert.Equal(t, 5, img.Bounds().Dy())

	// The dog box is clipped to the image.
	dog := filepath.Join(out, "dog", "imga_1.png")
	assert.FileExists(t, dog)
	img, err = loadImage(dog)
	require.NoError(t, err)
	assert.Equal(t, 12, img.Bounds().Dx())
	assert.Equal(t, 14, img.Bounds().Dy())
}

func TestCropperRunIsIndependentOfWorkerCount(t *testing.T) {
	for _, n := range []int{2, 7} {
		ds, annotations := cropFixture(t, n)

		var results []RunResult
		for _, workers := range []int{1, 2, 3, 16} {
			c := NewCropper(ds, Options{OutputDir: t.TempDir(), Workers: workers})
			results = append(results, c.Run(annotations))
		}

		assert.Equal(t, 2*n, results[0].Total)
		for _, r := range results[1:] {
			assert.Equal(t, results[0].ByLabel, r.ByLabel)
			assert.Equal(t, results[0].Total, r.Total)
			assert.Equal(t, results[0].Annotations, r.Annotations)
		}
	}
}

func TestCropperResize(t *testing.T) {
	ds, annotations := cropFixture(t, 1)
	annotations[0].Objects = append(annotations[0].Objects,
		Object{Name: "flat", Box: BoundingBox{XMin: 4, YMin: 4, XMax: 4, YMax: 9}})
	out := t.TempDir()

	c := NewCropper(ds, Options{OutputDir: out, Resize: &ImageSize{Width: 8, Height: 6}, Workers: 1})
	r := c.Run(annotations)

	assert.Equal(t, 2, r.Total)
	assert.Equal(t, Failures{EmptyResize: 1}, r.Failures)
	for _, crop := range r.Crops {
		assert.Equal(t, ImageSize{Width: 8, Height: 6}, crop.Size)
	}
	assert.NoFileExists(t, filepath.Join(out, "flat", "imga_2.png"))
}

func TestCropperEmptyCropWithoutResize(t *testing.T) {
	ds, annotations := cropFixture(t, 1)
	annotations[0].Objects = []Object{
		{Name: "outside", Box: BoundingBox{XMin: 100, YMin: 100, XMax: 120, YMax: 120}},
	}
	out := t.TempDir()

	r := NewCropper(ds, Options{OutputDir: out}).Run(annotations)
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, Failures{ImageSave: 1}, r.Failures)
	assert.NoFileExists(t, filepath.Join(out, "outside", "imga_0.png"))
}

func TestCropperImageLoadFailure(t *testing.T) {
	ds, annotations := cropFixture(t, 3)
	require.NoError(t, os.Remove(filepath.Join(ds.ImageDir, "imgb.png")))

	var buf progressRecorder
	c := NewCropper(ds, Options{OutputDir: t.TempDir(), Workers: 1, Format: WebP})
	c.Progress = &buf
	r := c.Run(annotations)

	assert.Equal(t, 3, r.Annotations)
	assert.Equal(t, 1, r.Failures.ImageLoad)
	assert.Equal(t, 4, r.Total)
	assert.Equal(t, []int{3}, buf.totals)
	assert.Equal(t, []int{2, 0, 2}, buf.steps)
	assert.True(t, buf.finished)
	for _, crop := range r.Crops {
		assert.Equal(t, ".webp", filepath.Ext(crop.Path))
	}
}

func TestCropperRejectsLabelsOutsideOutputDir(t *testing.T) {
	ds, annotations := cropFixture(t, 1)
	box := BoundingBox{XMin: 1, YMin: 1, XMax: 5, YMax: 5}
	annotations[0].Objects = []Object{
		{Name: "../escaped", Box: box},
		{Name: "..", Box: box},
		{Name: "a/b", Box: box},
		{Name: "ok", Box: box},
	}
	root := t.TempDir()
	out := filepath.Join(root, "out")

	r := NewCropper(ds, Options{OutputDir: out, Workers: 1}).Run(annotations)

	assert.Equal(t, Tally{"ok": 1}, r.ByLabel)
	assert.Equal(t, Failures{ImageSave: 3}, r.Failures)
	assert.NoDirExists(t, filepath.Join(root, "escaped"))
	assert.NoFileExists(t, filepath.Join(root, "imga_1.png"))
	assert.NoDirExists(t, filepath.Join(out, "a"))
	assert.FileExists(t, filepath.Join(out, "ok", "imga_3.png"))
}

func TestCropperNoAnnotations(t *testing.T) {
	r := NewCropper(Dataset{}, Options{OutputDir: t.TempDir()}).Run(nil)
	assert.Equal(t, 0, r.Total)
	assert.Equal(t, 0, r.Workers)
}

func TestOptionsValidate(t *testing.T) {
	assert.NoError(t, Options{OutputDir: "out"}.Validate())
	assert.Error(t, Options{}.Validate())
	assert.Error(t, Options{OutputDir: "out", Resize: &ImageSize{Width: 0, Height: 3}}.Validate())
	assert.Error(t, Options{OutputDir: "out", Format: OutputFormat(7)}.Validate())
}

// progressRecorder records the progress calls of a single worker.
type progressRecorder struct {
	totals   []int
	steps    []int
	finished bool
}

func (p *progressRecorder) Start(totals []int) { p.totals = totals }
func (p *progressRecorder) Step(_, crops int)  { p.steps = append(p.steps, crops) }
func (p *progressRecorder) Finish()            { p.finished = true }
