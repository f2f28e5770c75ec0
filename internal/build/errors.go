package build

import "git.home.luguber.info/inful/libforge/internal/foundation/errors"

// ErrNoPlatforms is returned when a request names no platform.
var ErrNoPlatforms = errors.ValidationError("no platforms requested").Build()
