package picking

import "time"

// PassBuilderOption is a functional option for configuring a Pass.
type PassBuilderOption func(*Pass)

// WithTimeout bounds Read's wait for the pick to complete.
//
// Parameters:
//   - d: the bound; non-positive values keep the default
//
// Returns:
//   - PassBuilderOption: option function to apply
func WithTimeout(d time.Duration) PassBuilderOption {
	return func(p *Pass) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithBackfaceCulling selects the culled or unculled object-id pipeline. Defaults to true.
func WithBackfaceCulling(on bool) PassBuilderOption {
	return func(p *Pass) {
		p.culling = on
	}
}
