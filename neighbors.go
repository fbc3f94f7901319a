package flowgrid

// Neighbor is one edge produced by a traversal: the neighbor's direction
// index, its cell coordinates, and a weight whose meaning depends on the
// producing traversal (raw packed weight, normalized inflow fraction, or 1).
type Neighbor struct {
	Direction int
	X, Y      int
	Weight    float64
}

type traversalPolicy uint8

const (
	policyAll traversalPolicy = iota
	policyDownslope
	policyDownslopeNoSkip
	policyUpslope
	policyUpslopeNoDivide
)

// NeighborIter lazily produces the ≤8 neighbor edges of one cell. It is not
// restartable; create a fresh iterator per cell. Iterate with:
//
//	it := flowgrid.DownslopeNeighbors(p)
//	for n, ok := it.Next(); ok; n, ok = it.Next() {
//		...
//	}
//	if err := it.Err(); err != nil { ... }
//
// Only upslope traversals touch the raster (they read each candidate
// neighbor's own packed value), so only they can fail.
type NeighborIter struct {
	px     Pixel
	policy traversalPolicy
	i      int
	done   bool
	err    error
}

// Neighbors traverses all eight candidate neighbors regardless of bounds or
// flow, with the center cell's raw packed weight toward each.
func Neighbors(p Pixel) *NeighborIter {
	return &NeighborIter{px: p, policy: policyAll}
}

// DownslopeNeighbors traverses the neighbors receiving outflow from p,
// skipping out-of-bounds targets.
func DownslopeNeighbors(p Pixel) *NeighborIter {
	return &NeighborIter{px: p, policy: policyDownslope}
}

// DownslopeNeighborsNoSkip is DownslopeNeighbors except that under the D8
// model the encoded target is emitted even when it lies outside the raster.
// Callers that account flow leaving the raster edge depend on seeing that
// edge.
func DownslopeNeighborsNoSkip(p Pixel) *NeighborIter {
	return &NeighborIter{px: p, policy: policyDownslopeNoSkip}
}

// UpslopeNeighbors traverses the in-bounds neighbors whose own outflow
// includes p. Under MFD the weight is the neighbor's packed weight toward p
// divided by the neighbor's total outflow weight; under D8 it is 1.
func UpslopeNeighbors(p Pixel) *NeighborIter {
	return &NeighborIter{px: p, policy: policyUpslope}
}

// UpslopeNeighborsNoDivide is UpslopeNeighbors with the raw, unnormalized
// packed weight under MFD.
func UpslopeNeighborsNoDivide(p Pixel) *NeighborIter {
	return &NeighborIter{px: p, policy: policyUpslopeNoDivide}
}

// Err returns the raster read error that terminated the traversal, if any.
func (it *NeighborIter) Err() error { return it.err }

// Next produces the next edge. ok is false when the traversal is exhausted
// or failed; check Err afterwards.
func (it *NeighborIter) Next() (n Neighbor, ok bool) {
	if it.done || it.err != nil {
		return Neighbor{}, false
	}

	// A D8 cell has at most one downslope neighbor: the encoded direction.
	if it.px.Raster.model == D8 && (it.policy == policyDownslope || it.policy == policyDownslopeNoSkip) {
		it.done = true
		d := it.px.Value
		if d < 0 || d >= NumDirections {
			return Neighbor{}, false
		}
		xj, yj := it.px.X+colOffsets[d], it.px.Y+rowOffsets[d]
		if it.policy == policyDownslope && !it.px.Raster.InBounds(xj, yj) {
			return Neighbor{}, false
		}
		return Neighbor{Direction: d, X: xj, Y: yj, Weight: 1}, true
	}

	for it.i < NumDirections {
		d := it.i
		it.i++
		xj, yj := it.px.X+colOffsets[d], it.px.Y+rowOffsets[d]

		n, emit, err := it.eval(d, xj, yj)
		if err != nil {
			it.err = err
			it.done = true
			return Neighbor{}, false
		}
		if emit {
			return n, true
		}
	}
	it.done = true
	return Neighbor{}, false
}

// eval applies the traversal policy to candidate direction d.
func (it *NeighborIter) eval(d, xj, yj int) (Neighbor, bool, error) {
	r := it.px.Raster

	switch it.policy {
	case policyAll:
		return Neighbor{Direction: d, X: xj, Y: yj, Weight: float64(DirWeight(it.px.Value, d))}, true, nil

	case policyDownslope, policyDownslopeNoSkip:
		// MFD only; D8 is handled before the candidate loop.
		if !r.InBounds(xj, yj) {
			return Neighbor{}, false, nil
		}
		w := DirWeight(it.px.Value, d)
		if w == 0 {
			return Neighbor{}, false, nil
		}
		return Neighbor{Direction: d, X: xj, Y: yj, Weight: float64(w)}, true, nil

	default: // upslope policies
		if !r.InBounds(xj, yj) {
			return Neighbor{}, false, nil
		}
		nv, err := r.Get(xj, yj)
		if err != nil {
			return Neighbor{}, false, err
		}
		neighborVal := int(nv)

		if r.model == D8 {
			if neighborVal != ReverseDir(d) {
				return Neighbor{}, false, nil
			}
			return Neighbor{Direction: d, X: xj, Y: yj, Weight: 1}, true, nil
		}

		w := DirWeight(neighborVal, ReverseDir(d))
		if w == 0 {
			return Neighbor{}, false, nil
		}
		weight := float64(w)
		if it.policy == policyUpslope {
			weight /= float64(TotalWeight(neighborVal))
		}
		return Neighbor{Direction: d, X: xj, Y: yj, Weight: weight}, true, nil
	}
}
