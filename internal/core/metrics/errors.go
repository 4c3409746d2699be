package metrics

import "errors"

var errNotRegistered = errors.New("metrics: collector was not registered")
