// Crops every labelled object of a PASCAL VOC or YOLO dataset into its own image file, grouped
// by label.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	units "github.com/docker/go-units"
	"github.com/urfave/cli/v2"

	"github.com/sensorable/blaise"
)

const (
	flagDataDir        = "data-dir"
	flagYoloImages     = "yolo-images"
	flagYoloLabels     = "yolo-labels"
	flagYoloNames      = "yolo-names"
	flagImageDir       = "image-dir"
	flagLabels         = "labels"
	flagOutputDir      = "output-dir"
	flagResize         = "resize"
	flagWorkers        = "j"
	flagFormat         = "format"
	flagSummary        = "summary"
	flagVerbose        = "verbose"
	flagNoProgressBars = "npb"
	flagLogLevel       = "log-level"
	flagBBInfo         = "bb-info"
	flagARHist         = "ar-hist"
	flagTFRecord       = "tfrecord"
	flagTFRecordShards = "tfrecord-shards"
)

// env returns the environment variable name for flag.
func env(flag string) []string {
	return []string{"BLAISE_" + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))}
}

func main() {
	app := &cli.App{
		Name:  "blaise",
		Usage: "crop labelled objects out of annotated images",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagDataDir,
				Aliases: []string{"d"},
				EnvVars: env(flagDataDir),
				Usage:   "PASCAL VOC dataset `DIR`, scanned recursively for *.xml files",
			},
			&cli.StringFlag{
				Name:    flagYoloImages,
				EnvVars: env(flagYoloImages),
				Usage:   "YOLO image `DIR`",
			},
			&cli.StringFlag{
				Name:    flagYoloLabels,
				EnvVars: env(flagYoloLabels),
				Usage:   "YOLO label `DIR` with one *.txt file per image",
			},
			&cli.StringFlag{
				Name:    flagYoloNames,
				EnvVars: env(flagYoloNames),
				Usage:   "YOLO class names `FILE`, one label per line",
			},
			&cli.StringFlag{
				Name:    flagImageDir,
				Aliases: []string{"i"},
				EnvVars: env(flagImageDir),
				Usage:   "look up images in `DIR` instead of the annotation folders",
			},
			&cli.StringSliceFlag{
				Name:    flagLabels,
				Aliases: []string{"l"},
				EnvVars: env(flagLabels),
				Usage:   "only crop objects with these `LABELS` (comma-separated; default all)",
			},
			&cli.StringFlag{
				Name:     flagOutputDir,
				Aliases:  []string{"o"},
				EnvVars:  env(flagOutputDir),
				Required: true,
				Usage:    "write the crops to `DIR`/<label>/",
			},
			&cli.StringFlag{
				Name:    flagResize,
				EnvVars: env(flagResize),
				Usage:   "resize every crop to exactly `WxH`, e.g. 224x224",
			},
			&cli.IntFlag{
				Name:    flagWorkers,
				EnvVars: env("workers"),
				Usage:   "number of workers (default: number of CPUs)",
			},
			&cli.StringFlag{
				Name:    flagFormat,
				EnvVars: env(flagFormat),
				Value:   "png",
				Usage:   "crop `ENCODING`: png or webp (both lossless)",
			},
			&cli.BoolFlag{
				Name:    flagSummary,
				Aliases: []string{"s"},
				EnvVars: env(flagSummary),
				Usage:   "print a summary of the annotations before cropping",
			},
			&cli.BoolFlag{
				Name:    flagVerbose,
				EnvVars: env(flagVerbose),
				Usage:   "log every annotation and crop (disables progress bars)",
			},
			&cli.BoolFlag{
				Name:    flagNoProgressBars,
				EnvVars: env(flagNoProgressBars),
				Usage:   "print periodic status lines instead of progress bars",
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				EnvVars: env(flagLogLevel),
				Value:   "info",
				Usage:   "log `LEVEL`: debug, info, warn or error",
			},
			&cli.StringFlag{
				Name:    flagBBInfo,
				EnvVars: env(flagBBInfo),
				Usage:   "write bounding box details to CSV `FILE`",
			},
			&cli.StringFlag{
				Name:    flagARHist,
				EnvVars: env(flagARHist),
				Usage:   "plot the cumulative aspect ratio distribution to `FILE` (png)",
			},
			&cli.StringFlag{
				Name:    flagTFRecord,
				EnvVars: env(flagTFRecord),
				Usage:   "also write the crops to TFRecord `FILE`, with a label map at FILE.pbtxt",
			},
			&cli.IntFlag{
				Name:    flagTFRecordShards,
				EnvVars: env(flagTFRecordShards),
				Value:   1,
				Usage:   "number of TFRecord shard files",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// datasetFromFlags selects the dialect from the given input flags.
func datasetFromFlags(cCtx *cli.Context) (blaise.Dataset, error) {
	ds := blaise.Dataset{
		DataDir:   cCtx.String(flagDataDir),
		ImageDir:  cCtx.String(flagImageDir),
		LabelDir:  cCtx.String(flagYoloLabels),
		NamesFile: cCtx.String(flagYoloNames),
	}

	yolo := cCtx.IsSet(flagYoloImages) || cCtx.IsSet(flagYoloLabels) || cCtx.IsSet(flagYoloNames)
	switch {
	case ds.DataDir != "" && yolo:
		return ds, fmt.Errorf("--%s cannot be combined with the --yolo-* flags", flagDataDir)
	case yolo:
		ds.Dialect = blaise.Yolo
		if dir := cCtx.String(flagYoloImages); dir != "" {
			ds.ImageDir = dir
		}
	case ds.DataDir != "":
		ds.Dialect = blaise.Pascal
	default:
		return ds, fmt.Errorf("either --%s or --%s, --%s and --%s is required",
			flagDataDir, flagYoloImages, flagYoloLabels, flagYoloNames)
	}

	return ds, ds.Validate()
}

// optionsFromFlags builds the crop options.
func optionsFromFlags(cCtx *cli.Context) (blaise.Options, error) {
	opts := blaise.Options{
		OutputDir: filepath.Clean(cCtx.String(flagOutputDir)),
		Workers:   cCtx.Int(flagWorkers),
		Verbose:   cCtx.Bool(flagVerbose),
	}

	format, err := blaise.ParseOutputFormat(cCtx.String(flagFormat))
	if err != nil {
		return opts, err
	}
	opts.Format = format

	if s := cCtx.String(flagResize); s != "" {
		size, err := blaise.ParseSize(s)
		if err != nil {
			return opts, err
		}
		opts.Resize = &size
	}

	return opts, opts.Validate()
}

// labelsFromFlags returns the label allow-list, or nil to keep all labels.
func labelsFromFlags(cCtx *cli.Context) blaise.LabelSet {
	var names []string
	for _, v := range cCtx.StringSlice(flagLabels) {
		for _, n := range strings.Split(v, ",") {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
	}
	return blaise.NewLabelSet(names...)
}

// progressFromFlags selects how the workers report progress.
func progressFromFlags(cCtx *cli.Context) blaise.Progress {
	if cCtx.Bool(flagVerbose) || cCtx.Bool(flagNoProgressBars) {
		return blaise.NewLogProgress(os.Stdout)
	}
	return blaise.NewBarProgress(os.Stdout)
}

// reportBoundingBoxes writes the optional bounding box CSV and aspect ratio plot.
func reportBoundingBoxes(cCtx *cli.Context, annotations []blaise.Annotation, ds blaise.Dataset) error {
	if path := cCtx.String(flagBBInfo); path != "" {
		if err := blaise.WriteBoundingBoxInfo(path, annotations, ds); err != nil {
			return err
		}
		s := blaise.ComputeAspectRatioStats(annotations)
		fmt.Printf("Bounding box info written to %s: aspect ratio median %.4f, 95th percentile %.4f"+
			" (%d boxes without area)\n", path, s.Median, s.P95, s.Infinite)
	}
	if path := cCtx.String(flagARHist); path != "" {
		if err := blaise.PlotAspectRatioHistogram(path, annotations); err != nil {
			return err
		}
		fmt.Printf("Aspect ratio plot written to %s\n", path)
	}
	return nil
}

func run(cCtx *cli.Context) error {
	start := time.Now()

	logger, err := blaise.NewLogger(cCtx.String(flagLogLevel))
	if err != nil {
		return cli.Exit(err, 1)
	}
	defer func() { _ = logger.Sync() }()
	blaise.SetLogger(logger)

	ds, err := datasetFromFlags(cCtx)
	if err != nil {
		return cli.Exit(err, 1)
	}
	opts, err := optionsFromFlags(cCtx)
	if err != nil {
		return cli.Exit(err, 1)
	}

	loaded, err := blaise.Load(ds, labelsFromFlags(cCtx))
	if err != nil {
		return cli.Exit(err, 1)
	}
	fmt.Printf("Annotation files: %d to be processed, %d skipped, %d invalid\n",
		len(loaded.Annotations), loaded.Skipped, loaded.Invalid)
	if len(loaded.Annotations) == 0 {
		return nil
	}

	if cCtx.Bool(flagSummary) {
		blaise.PrintAnnotationSummary(os.Stdout, blaise.Summarize(loaded.Annotations, ds))
	}
	if err := reportBoundingBoxes(cCtx, loaded.Annotations, ds); err != nil {
		return cli.Exit(err, 1)
	}

	cropper := blaise.NewCropper(ds, opts)
	cropper.Progress = progressFromFlags(cCtx)
	res := cropper.Run(loaded.Annotations)
	blaise.PrintCropSummary(os.Stdout, res)

	if path := cCtx.String(flagTFRecord); path != "" {
		if err := blaise.WriteCropTFRecord(path, res.Crops, cCtx.Int(flagTFRecordShards)); err != nil {
			return cli.Exit(err, 1)
		}
		fmt.Printf("Wrote %d crops to %s\n", len(res.Crops), path)
	}

	if elapsed := time.Since(start); elapsed > time.Second {
		fmt.Printf("(Done in %s)\n", units.HumanDuration(elapsed))
	}
	return nil
}
