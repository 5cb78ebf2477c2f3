package store

import (
	"context"
	"fmt"
)

// DeletePartition soft-deletes every live item in partition pk, then recurses
// into partitions owned by those items according to the registry.
// It is idempotent: already-deleted items are skipped, so a retry after a
// partial failure finishes the job. Returns the number of items marked.
func DeletePartition(ctx context.Context, k Keyed, registry *Registry, pk string) (int, error) {
	items, err := k.Query(ctx, Query{Partition: pk, ConsistentRead: true})
	if err != nil {
		return 0, fmt.Errorf("query partition %s: %w", pk, err)
	}

	marked := 0
	for _, item := range items {
		if owned, ok := registry.OwnedPartition(item.Key); ok && owned != pk {
			n, err := DeletePartition(ctx, k, registry, owned)
			marked += n
			if err != nil {
				return marked, err
			}
		}
		if err := k.Delete(ctx, item.Key); err != nil {
			return marked, fmt.Errorf("delete %s: %w", item.Key, err)
		}
		marked++
	}

	return marked, nil
}
