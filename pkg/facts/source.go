package facts

import (
	"context"
	"errors"

	"wanderpod/pkg/model"
)

// ErrContentUnavailable indicates no usable facts could be retrieved
// for the requested location.
var ErrContentUnavailable = errors.New("no content available for location")

// Source retrieves a normalized fact bag for a location.
type Source interface {
	Facts(ctx context.Context, location string) (*model.FactBag, error)
}
