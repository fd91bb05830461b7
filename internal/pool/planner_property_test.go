package pool

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestPlanBatchesPartitionProperty checks that for any request size, pool
// size and memory hint, the planned batches form an exact partition of
// [0, n): contiguous, non-overlapping, in order, nothing missing.
func TestPlanBatchesPartitionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("batches partition the run range exactly", prop.ForAll(
		func(n, poolSize, suggested int) bool {
			batches := PlanBatches(n, poolSize, suggested)

			next := 0
			for _, b := range batches {
				if b.StartIndex != next || b.Size <= 0 {
					return false
				}
				next = b.EndIndex()
			}
			return next == n
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 16),
		gen.IntRange(0, 25),
	))

	properties.Property("batch sizes stay within planner bounds", prop.ForAll(
		func(n, poolSize, suggested int) bool {
			for _, b := range PlanBatches(n, poolSize, suggested) {
				if n > smallRunThreshold && b.Size > maxBatchSize {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 5000),
		gen.IntRange(1, 16),
		gen.IntRange(0, 25),
	))

	properties.TestingRun(t)
}
