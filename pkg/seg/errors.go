package seg

import "errors"

// ErrConfiguration is returned for invalid caller-supplied parameters (tile size,
// subdivisions, scale factor, connectivity, image dimensions). These are never retried;
// the caller must fix the configuration.
var ErrConfiguration = errors.New("invalid configuration")

// ErrReconstruction indicates a broken internal invariant during blending, such as a
// pixel that no tile's window covered. This means the grid and window were mismatched,
// and the result is unusable.
var ErrReconstruction = errors.New("reconstruction failed")
