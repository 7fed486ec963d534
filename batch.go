package statesync

import (
	"context"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// EntitySnapshot pairs an entity's id, current state, and the basis state to
// diff against when producing that entity's delta for one tick.
type EntitySnapshot struct {
	EntityId EntityId
	Current  State
	Basis    State // nil forces a full/immutable delta
}

// BatchEncodeResult is one entity's outcome from EncodeTickBatch.
type BatchEncodeResult struct {
	EntityId EntityId
	Frame    *BitBuffer
	Err      error
}

// EncodeTickBatch computes one StateDelta-shaped wire frame per snapshot in
// entities, bounding the number of concurrently running encodes to
// maxConcurrency. Results are returned in the same order as entities
// regardless of completion order, so callers can zip them back up with
// whatever per-entity transport queue they maintain.
//
// A per-entity encode failure does not cancel its siblings; it is recorded
// in that entity's BatchEncodeResult.Err.
func EncodeTickBatch(ctx context.Context, tick Tick, entities []EntitySnapshot, dirty *BitmaskEncoder, maxConcurrency int64) ([]BatchEncodeResult, error) {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	results := make([]BatchEncodeResult, len(entities))
	sem := semaphore.NewWeighted(maxConcurrency)
	group, groupCtx := errgroup.WithContext(ctx)

	for i, snap := range entities {
		i, snap := i, snap
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				results[i] = BatchEncodeResult{EntityId: snap.EntityId, Err: err}
				return nil
			}
			defer sem.Release(1)

			results[i] = encodeOneSnapshot(tick, snap, dirty)
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func encodeOneSnapshot(tick Tick, snap EntitySnapshot, dirty *BitmaskEncoder) BatchEncodeResult {
	buf := NewBitBuffer(64)

	flags := snap.Current.DirtyFlags(snap.Basis)
	delta := StateDelta{
		EntityId:         snap.EntityId,
		Tick:             tick,
		Flags:            flags,
		State:            snap.Current,
		HasImmutableData: snap.Basis == nil,
	}

	EncodeFrame(buf, delta, snap.Basis, dirty)
	return BatchEncodeResult{EntityId: snap.EntityId, Frame: buf}
}
