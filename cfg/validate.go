package cfg

import (
	"fmt"

	"github.com/pfs-io/pfs/internal/pfserrors"
)

// Validate checks the invariants a Config must satisfy regardless of
// which binary is consuming it, beyond what a flag's own type already
// enforces.
func Validate(c *Config) error {
	if c.BlockSizeBytes <= 0 {
		return pfserrors.InvalidArgument(fmt.Errorf("block-size-bytes must be positive, got %d", c.BlockSizeBytes))
	}
	if c.StripeWidthDefault < 1 {
		return pfserrors.InvalidArgument(fmt.Errorf("stripe-width-default must be at least 1, got %d", c.StripeWidthDefault))
	}
	if c.Cache.BlockCount <= 0 {
		return pfserrors.InvalidArgument(fmt.Errorf("cache.block-count must be positive, got %d", c.Cache.BlockCount))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return pfserrors.InvalidArgument(fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	return nil
}
