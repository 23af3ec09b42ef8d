package blaise

// TFRecord export of the produced crops, for training image classifiers.

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/protobuf/proto"
	"github.com/pkg/errors"
	"github.com/ryszard/tfutils/go/example"
	"github.com/ryszard/tfutils/go/tfrecord"
	"github.com/ryszard/tfutils/proto/tensorflow/core/example" // package tensorflow
	"go.uber.org/multierr"
)

// TFFeatureMap maps feature names to their values. Values must be convertible to
// tensorflow.Feature.
type TFFeatureMap map[string]interface{}

// LabelIDs assigns 1-based class ids to the labels of crops, in ascending label order.
func LabelIDs(crops []CropFile) map[string]int {
	t := make(Tally, len(crops))
	for _, c := range crops {
		t[c.Label]++
	}
	ids := make(map[string]int, len(t))
	for i, label := range t.Labels() {
		ids[label] = i + 1
	}
	return ids
}

// cropFeatures builds the feature map for a single crop file.
func cropFeatures(c CropFile, labelID int) (TFFeatureMap, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read the crop")
	}

	f := make(TFFeatureMap, 8)
	f["image/encoded"] = data
	f["image/format"] = strings.TrimPrefix(filepath.Ext(c.Path), ".")
	f["image/filename"] = c.Path
	f["image/height"] = c.Size.Height
	f["image/width"] = c.Size.Width
	f["image/class/text"] = c.Label
	f["image/class/label"] = labelID
	return f, nil
}

// shardPath returns the path of shard idx. A single shard is written to recordPath itself.
func shardPath(recordPath string, idx, numShards int) string {
	if numShards <= 1 {
		return recordPath
	}
	return recordPath + fmt.Sprintf("-%05d-of-%05d", idx, numShards)
}

// WriteCropTFRecord does a streaming conversion and serialisation of crops to one or more TFRecord
// files stored under recordPath (with suffixes added when numShards>1). Crops are written in the
// given order, which Aggregate makes the path order. The label map is written to
// recordPath+".pbtxt".
//
// Crops that cannot be read are logged and skipped.
func WriteCropTFRecord(recordPath string, crops []CropFile, numShards int) (err error) {
	defer func() {
		if e := recover(); e != nil {
			err = errors.Errorf("conversion to TensorFlow Example failed: %v", e)
		}
	}()

	if numShards <= 0 {
		numShards = 1
	}
	labelIDs := LabelIDs(crops)

	var shardFile *os.File
	closeShard := func() {
		if shardFile != nil {
			multierr.AppendInvoke(&err, multierr.Close(shardFile))
			shardFile = nil
		}
	}
	defer closeShard()

	shardSize := int(math.Ceil(float64(len(crops)) / float64(numShards)))
	if shardSize > 0 {
		// Every shard named in the suffix must exist.
		numShards = (len(crops) + shardSize - 1) / shardSize
	}
	shardIdx := -1
	written := 0

	for i, c := range crops {
		// Check if a new shard file needs to be opened for writing.
		if i%shardSize == 0 {
			shardIdx++
			closeShard()
			if err != nil {
				return err
			}

			path := shardPath(recordPath, shardIdx, numShards)
			f, err := os.Create(path)
			if err != nil {
				return errors.Wrapf(err, "failed to create shard at %q", path)
			}
			shardFile = f
		}

		features, err := cropFeatures(c, labelIDs[c.Label])
		if err != nil {
			log.Warnf("Failed to convert %q: %v", c.Path, err)
			continue
		}
		if err := writeTFRecordExample(shardFile, example.New(features)); err != nil {
			return errors.Wrapf(err, "failed to write the example for %q", c.Path)
		}
		written++
	}

	log.Debugf("Wrote %d examples to %d TFRecord file(s)", written, shardIdx+1)
	return saveLabelMap(recordPath+".pbtxt", labelIDs)
}

// writeTFRecordExample serialises the example and writes it as a TFRecord to w.
func writeTFRecordExample(w io.Writer, e *tensorflow.Example) error {
	enc, err := proto.Marshal(e)
	if err != nil {
		return err
	}

	return tfrecord.Write(w, enc)
}

// formatLabelMap renders labelIDs in the text format of a StringIntLabelMap, ordered by id.
func formatLabelMap(labelIDs map[string]int) []byte {
	labels := make([]string, len(labelIDs))
	for label, id := range labelIDs {
		labels[id-1] = label
	}

	var buf bytes.Buffer
	for i, label := range labels {
		fmt.Fprintf(&buf, "item {\n  name: %q\n  id: %d\n}\n", label, i+1)
	}
	return buf.Bytes()
}

// saveLabelMap writes the label map for labelIDs to path.
func saveLabelMap(path string, labelIDs map[string]int) error {
	if err := writeFile(path, formatLabelMap(labelIDs)); err != nil {
		return errors.Wrapf(err, "failed to write the label map %q", path)
	}
	return nil
}
