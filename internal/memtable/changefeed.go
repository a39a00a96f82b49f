package memtable

import (
	"sync"

	cdc "github.com/litetable/litetable-cdc/go/v1"
	"github.com/rs/zerolog/log"
)

// changefeed streams write and delete events to CDC subscribers. Events are sent as they
// happen; there is no replay.
type changefeed struct {
	cdc.UnimplementedCDCServiceServer

	mu      sync.Mutex
	streams map[string]cdc.CDCService_CDCStreamServer

	done      chan struct{}
	closeOnce sync.Once
}

func newChangefeed() *changefeed {
	return &changefeed{
		streams: make(map[string]cdc.CDCService_CDCStreamServer),
		done:    make(chan struct{}),
	}
}

// close ends every open stream so a graceful stop does not wait on subscribers.
func (f *changefeed) close() {
	f.closeOnce.Do(func() { close(f.done) })
}

func (f *changefeed) CDCStream(req *cdc.CDCSubscriptionRequest,
	stream cdc.CDCService_CDCStreamServer) error {
	id := req.GetClientId()

	f.mu.Lock()
	f.streams[id] = stream
	f.mu.Unlock()
	log.Debug().Str("client", id).Msg("CDC subscriber connected")

	select {
	case <-stream.Context().Done():
	case <-f.done:
	}

	f.mu.Lock()
	if f.streams[id] == stream {
		delete(f.streams, id)
	}
	f.mu.Unlock()
	log.Debug().Str("client", id).Msg("CDC subscriber disconnected")
	return nil
}

func (f *changefeed) subscribers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.streams)
}

func (f *changefeed) publish(events ...*cdc.CDCEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, stream := range f.streams {
		for _, ev := range events {
			if err := stream.Send(ev); err != nil {
				log.Warn().Err(err).Str("client", id).Msg("removing CDC stream due to send error")
				delete(f.streams, id)
				break
			}
		}
	}
}

func writeEvents(rowKey, family string, written qualifiers) []*cdc.CDCEvent {
	events := make([]*cdc.CDCEvent, 0, len(written))
	for name, versions := range written {
		for _, v := range versions {
			events = append(events, &cdc.CDCEvent{
				RowKey:        rowKey,
				Family:        family,
				Qualifier:     name,
				Value:         v.value,
				TimestampUnix: v.timestamp,
				Operation:     cdc.LitetableOperation_WRITE,
			})
		}
	}
	return events
}

// deleteEvents describes a delete: one event per qualifier, or a single family-wide event
// with an empty qualifier.
func deleteEvents(rowKey, family string, names []string, ts int64) []*cdc.CDCEvent {
	if len(names) == 0 {
		names = []string{""}
	}

	events := make([]*cdc.CDCEvent, 0, len(names))
	for _, name := range names {
		events = append(events, &cdc.CDCEvent{
			RowKey:        rowKey,
			Family:        family,
			Qualifier:     name,
			TimestampUnix: ts,
			Tombstone:     true,
			Operation:     cdc.LitetableOperation_DELETE,
		})
	}
	return events
}
