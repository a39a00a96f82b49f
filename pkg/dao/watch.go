package dao

import (
	"context"
	"errors"
	"fmt"
	"io"

	cdc "github.com/litetable/litetable-cdc/go/v1"
	"github.com/litetable/litetable-mapper/pkg/mapper"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
)

// ChangeStream is the receiving side of a LiteTable CDC subscription.
type ChangeStream interface {
	Recv() (*cdc.CDCEvent, error)
}

// OpenChangeStream subscribes to the server's CDC stream as clientID. The stream ends when ctx
// is cancelled.
func OpenChangeStream(ctx context.Context, conn grpc.ClientConnInterface,
	clientID string) (cdc.CDCService_CDCStreamClient, error) {
	if clientID == "" {
		return nil, errors.New("client id required")
	}

	stream, err := cdc.NewCDCServiceClient(conn).CDCStream(ctx,
		&cdc.CDCSubscriptionRequest{ClientId: clientID})
	if err != nil {
		return nil, fmt.Errorf("failed to open change stream: %w", err)
	}
	return stream, nil
}

// Watch calls fn with the current record every time a row of T changes, until ctx is done or
// the stream ends. rec is the zero T when the change removed the row. Events from a single
// write are reported once. Reads and families T does not map are ignored.
func (d *DAO[T]) Watch(ctx context.Context, stream ChangeStream,
	fn func(rowKey string, rec T) error) error {
	var lastKey string
	var lastTS int64

	for {
		ev, err := stream.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("change stream failed: %w", err)
		}

		if !d.relevant(ev) {
			continue
		}
		if ev.GetRowKey() == lastKey && ev.GetTimestampUnix() == lastTS {
			continue
		}
		lastKey, lastTS = ev.GetRowKey(), ev.GetTimestampUnix()

		rec, err := d.Get(ctx, ev.GetRowKey())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := fn(ev.GetRowKey(), rec); err != nil {
			return err
		}
		log.Debug().Str("rowKey", ev.GetRowKey()).Str("operation", ev.GetOperation().String()).
			Msg("delivered change")
	}
}

func (d *DAO[T]) relevant(ev *cdc.CDCEvent) bool {
	if ev.GetRowKey() == "" || ev.GetOperation() == cdc.LitetableOperation_READ {
		return false
	}
	for _, family := range d.schema.Families() {
		if family == ev.GetFamily() {
			return true
		}
	}
	return false
}

// ReplayChanges folds a finished batch of change events into records of T. Events for families
// T does not map are dropped first.
func (d *DAO[T]) ReplayChanges(events []*cdc.CDCEvent) ([]T, error) {
	kept := make([]*cdc.CDCEvent, 0, len(events))
	for _, ev := range events {
		if ev != nil && d.relevant(ev) {
			kept = append(kept, ev)
		}
	}
	return mapper.ReadEvents[T](d.mapper, kept)
}
