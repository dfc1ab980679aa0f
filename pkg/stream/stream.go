package stream

import (
	"context"

	"github.com/pixperk/lockttl/pkg/types"
)

// ChangeStream is the port onto the record table's change log
// events are ordered within a shard, delivered at least once
// the consumer tracks its own position
type ChangeStream interface {
	// Shards lists the shards of the stream.
	Shards(ctx context.Context) ([]string, error)

	// Read returns up to limit events from the shard, resuming after
	// position. An empty position starts at the tip of the shard.
	// nextPosition is passed back on the following call; it never moves
	// backward even when no events are returned.
	Read(ctx context.Context, shardID, position string, limit int) (events []types.ChangeEvent, nextPosition string, err error)
}
