package cachestore

import (
	"context"
	"errors"
	"fmt"
)

// Trim deletes the oldest entries of c until at most maxEntries remain and
// returns how many were removed. It is a pure size cap: reads do not protect
// an entry. Concurrent writers may leave the store briefly over the cap.
func Trim(ctx context.Context, c Cache, maxEntries int) (int, error) {
	if maxEntries <= 0 {
		return 0, nil
	}

	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing keys of %s: %w", c.Name(), err)
	}

	removed := 0
	for i := 0; i < len(keys)-maxEntries; i++ {
		ok, err := c.Delete(ctx, keys[i])
		if err != nil && !errors.Is(err, ErrNotFound) {
			return removed, fmt.Errorf("evicting %q from %s: %w", keys[i], c.Name(), err)
		}
		if ok {
			removed++
		}
	}
	return removed, nil
}
