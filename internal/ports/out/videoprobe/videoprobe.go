package videoprobe

import (
	"context"
	"errors"
	"time"
)

// ErrUnsupportedFormat indicates the prober cannot decode the container.
var ErrUnsupportedFormat = errors.New("unsupported video container")

// Prober decodes a video's container metadata and reports its duration.
type Prober interface {
	Duration(ctx context.Context, contentType string, body []byte) (time.Duration, error)
}
