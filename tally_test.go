package blaise

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
)

func TestTally(t *testing.T) {
	a := Tally{"dog": 2, "cat": 1}
	a.Add(Tally{"dog": 3, "bird": 4})

	assert.Equal(t, Tally{"dog": 5, "cat": 1, "bird": 4}, a)
	assert.Equal(t, 10, a.Total())
	assert.Equal(t, []string{"bird", "cat", "dog"}, a.Labels())
	assert.Equal(t, 0, Tally{}.Total())
}

func TestAggregate(t *testing.T) {
	results := []WorkerResult{
		{
			Worker: 1, Annotations: 2,
			Tally:    Tally{"dog": 1, "cat": 2},
			Failures: Failures{ImageLoad: 1},
			Crops:    []CropFile{{Label: "dog", Path: "out/dog/z_0.png"}},
		},
		{
			Worker: 0, Annotations: 3,
			Tally:    Tally{"dog": 2},
			Failures: Failures{ImageSave: 2, EmptyResize: 1},
			Crops: []CropFile{
				{Label: "dog", Path: "out/dog/b_1.png"},
				{Label: "dog", Path: "out/dog/a_0.png"},
			},
		},
		{Worker: 2, Tally: Tally{}},
	}

	r := Aggregate(results...)
	assert.Equal(t, 3, r.Workers)
	assert.Equal(t, 5, r.Annotations)
	assert.Equal(t, Tally{"dog": 3, "cat": 2}, r.ByLabel)
	assert.Equal(t, 5, r.Total)
	assert.Equal(t, Failures{ImageLoad: 1, ImageSave: 2, EmptyResize: 1}, r.Failures)
	assert.Equal(t, 4, r.Failures.Total())

	var paths []string
	for _, c := range r.Crops {
		paths = append(paths, c.Path)
	}
	assert.Equal(t, []string{"out/dog/a_0.png", "out/dog/b_1.png", "out/dog/z_0.png"}, paths)
}

func TestAggregateIsOrderIndependent(t *testing.T) {
	a := WorkerResult{Tally: Tally{"x": 1}, Crops: []CropFile{{Path: "b"}}}
	b := WorkerResult{Tally: Tally{"x": 2, "y": 1}, Crops: []CropFile{{Path: "a"}}}
	assert.Equal(t, Aggregate(a, b), Aggregate(b, a))
}

func TestAggregateEmpty(t *testing.T) {
	r := Aggregate()
	assert.Equal(t, 0, r.Total)
	assert.Empty(t, r.ByLabel)
	assert.Empty(t, r.Crops)
}

func TestPrintCropSummary(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	PrintCropSummary(&buf, RunResult{
		ByLabel:  Tally{"dog": 3, "cat": 2},
		Total:    5,
		Failures: Failures{ImageLoad: 1},
	})

	out := buf.String()
	assert.Contains(t, out, "Completed a total of 5 crops.")
	assert.Contains(t, out, "Crops by label:")
	assert.Contains(t, out, `"cat"`)
	assert.Contains(t, out, `"dog"`)
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(`"cat"`)), bytes.Index(buf.Bytes(), []byte(`"dog"`)))
	assert.Contains(t, out, "Failures: 1 images not loaded, 0 crops not saved, 0 empty crops not resized")
}

func TestPrintCropSummaryWithoutFailures(t *testing.T) {
	var buf bytes.Buffer
	PrintCropSummary(&buf, Aggregate())
	assert.Contains(t, buf.String(), "Completed a total of 0 crops.")
	assert.NotContains(t, buf.String(), "Failures")
}
