package deliverable

import "errors"

var errInvalidShare = errors.New("percentage must be within [0, 100] and amount must not be negative")
