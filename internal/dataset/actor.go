package dataset

import "fmt"

// ResolveActorIndex returns the slot of target within one frame's actor
// identifiers. Slots are not stable across frames, so callers resolve per
// frame. The first occurrence wins if an identifier repeats.
func ResolveActorIndex(ids []int64, target int64) (int, error) {
	for i, id := range ids {
		if id == target {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: id %d among %d actors", ErrActorNotFound, target, len(ids))
}
