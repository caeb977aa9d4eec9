package node

// Pruning describes which historical heights the node still serves: the last KeepRecent
// heights plus every KeepEvery-th height.
type Pruning struct {
	KeepRecent int64
	KeepEvery  int64
}

// Resolve maps a requested height onto one the node retains, given the latest height. Heights
// inside the recent window, and every height when pruning is off, are returned as is; older ones
// round down to a checkpoint, never below the first one.
func (p Pruning) Resolve(height, latest int64) int64 {
	if height <= 0 || p.KeepEvery <= 0 || latest <= 0 {
		return height
	}
	if latest-height <= p.KeepRecent {
		return height
	}
	if h := height - height%p.KeepEvery; h >= p.KeepEvery {
		return h
	}
	return p.KeepEvery
}
