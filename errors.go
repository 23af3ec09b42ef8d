package blaise

import "github.com/pkg/errors"

// Failure classes. Each is terminal for its own scope only (token, file, annotation or object)
// and is reported through counters and log lines, never by aborting the batch.
var (
	ErrInvalidCoordinate = errors.New("invalid coordinate")
	ErrInvalidAnnotation = errors.New("invalid annotation")
	ErrImageLoad         = errors.New("failed to load image")
	ErrImageSave         = errors.New("failed to save image")
	ErrEmptyResizeTarget = errors.New("cannot resize an empty crop")
)
