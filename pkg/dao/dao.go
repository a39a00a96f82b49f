// Package dao reads and writes mapped records through the LiteTable gRPC API.
package dao

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/litetable/litetable-db/pkg/proto"
	"github.com/litetable/litetable-mapper/pkg/mapper"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

//go:generate mockgen -destination=./dao_mock.go -package=dao -source=dao.go

// litetableClient is the subset of proto.LitetableServiceClient the DAO uses.
type litetableClient interface {
	Read(ctx context.Context, in *proto.ReadRequest, opts ...grpc.CallOption) (*proto.LitetableData, error)
	Write(ctx context.Context, in *proto.WriteRequest, opts ...grpc.CallOption) (*proto.LitetableData, error)
	Delete(ctx context.Context, in *proto.DeleteRequest, opts ...grpc.CallOption) (*proto.Empty, error)
	CreateFamily(ctx context.Context, in *proto.CreateFamilyRequest, opts ...grpc.CallOption) (*proto.Empty, error)
}

// ErrEmptyRowKey is returned when a lookup or delete is asked for the empty row key.
var ErrEmptyRowKey = errors.New("row key required")

// maxConcurrentGets bounds the row reads GetMany keeps in flight.
const maxConcurrentGets = 8

// Config configures a DAO.
type Config struct {
	// Client is usually proto.NewLitetableServiceClient(conn).
	Client litetableClient
	Mapper *mapper.Mapper
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("dao config cannot be nil")
	}

	var errGrp []error
	if c.Client == nil {
		errGrp = append(errGrp, errors.New("client required"))
	}
	if c.Mapper == nil {
		errGrp = append(errGrp, errors.New("mapper required"))
	}
	return errors.Join(errGrp...)
}

// DAO stores records of type T, one LiteTable row per record. A DAO is safe for concurrent use.
type DAO[T mapper.Record] struct {
	client litetableClient
	mapper *mapper.Mapper
	schema *mapper.Schema
}

// New creates a DAO for T. T must be a valid record type.
func New[T mapper.Record](cfg *Config) (*DAO[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	schema, err := cfg.Mapper.Schema(reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}

	return &DAO[T]{
		client: cfg.Client,
		mapper: cfg.Mapper,
		schema: schema,
	}, nil
}

// Schema returns the schema of T.
func (d *DAO[T]) Schema() *mapper.Schema {
	return d.schema
}

// CreateFamilies creates every column family T is mapped to.
func (d *DAO[T]) CreateFamilies(ctx context.Context) error {
	families := d.schema.Families()
	if _, err := d.client.CreateFamily(ctx, &proto.CreateFamilyRequest{Family: families}); err != nil {
		return fmt.Errorf("failed to create families %v: %w", families, err)
	}
	log.Debug().Strs("families", families).Str("table", d.schema.Table()).Msg("created families")
	return nil
}

// Get reads the latest version of the row and decodes it. A missing row yields the zero T,
// a nil pointer, and no error.
func (d *DAO[T]) Get(ctx context.Context, rowKey string) (T, error) {
	var zero T
	if rowKey == "" {
		return zero, ErrEmptyRowKey
	}
	now := time.Now()

	snapshot, err := d.read(ctx, rowKey)
	if err != nil {
		return zero, err
	}

	rec, err := mapper.ReadSnapshot[T](d.mapper, snapshot)
	if err != nil {
		return zero, err
	}

	log.Debug().Msgf("Get latency: %v", time.Since(now))
	return rec, nil
}

// read issues one read per family concurrently and merges the answers into one snapshot.
func (d *DAO[T]) read(ctx context.Context, rowKey string) (*proto.Row, error) {
	families := d.schema.Families()
	parts := make([]*proto.Row, len(families))

	g, gctx := errgroup.WithContext(ctx)
	for i, family := range families {
		g.Go(func() error {
			resp, err := d.client.Read(gctx, &proto.ReadRequest{
				Family:    family,
				RowKey:    rowKey,
				QueryType: proto.QueryType_EXACT,
				Latest:    1,
			})
			if err != nil {
				if isNotFound(err) {
					return nil
				}
				return fmt.Errorf("failed to read %s from %q: %w", family, rowKey, err)
			}
			parts[i] = resp.GetRows()[rowKey]
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := &proto.Row{
		Key:  rowKey,
		Cols: make(map[string]*proto.VersionedQualifier, len(families)),
	}
	for i, part := range parts {
		if vq, ok := part.GetCols()[families[i]]; ok {
			merged.Cols[families[i]] = vq
		}
	}
	return merged, nil
}

// isNotFound reports whether err is how a LiteTable server says a row or family has no data.
func isNotFound(err error) bool {
	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case codes.NotFound:
		return true
	case codes.Internal:
		msg := st.Message()
		return strings.Contains(msg, "row not found") || strings.Contains(msg, "family not found")
	default:
		return false
	}
}

// GetMany reads several rows. The result lines up with rowKeys; missing rows are zero values.
func (d *DAO[T]) GetMany(ctx context.Context, rowKeys []string) ([]T, error) {
	out := make([]T, len(rowKeys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentGets)
	for i, key := range rowKeys {
		g.Go(func() error {
			rec, err := d.Get(gctx, key)
			if err != nil {
				return err
			}
			out[i] = rec
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Persist writes the non-nil fields of rec and returns its row key. Columns whose field is nil
// keep their stored value.
func (d *DAO[T]) Persist(ctx context.Context, rec T) (string, error) {
	row, err := d.mapper.ToRow(rec)
	if err != nil {
		return "", err
	}
	if err := d.write(ctx, row); err != nil {
		return "", err
	}
	return string(row.Key), nil
}

// PersistAll converts every record before writing any, then writes them in order. A write
// failure leaves the earlier records written.
func (d *DAO[T]) PersistAll(ctx context.Context, recs []T) ([]string, error) {
	batch := make([]mapper.Record, len(recs))
	for i, rec := range recs {
		batch[i] = rec
	}

	rows, err := d.mapper.ToRows(batch)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(rows))
	for _, row := range rows {
		if err := d.write(ctx, row); err != nil {
			return keys, err
		}
		keys = append(keys, string(row.Key))
	}
	return keys, nil
}

func (d *DAO[T]) write(ctx context.Context, row *mapper.Row) error {
	now := time.Now()
	for _, wr := range mapper.MutationView(row) {
		if _, err := d.client.Write(ctx, wr); err != nil {
			return fmt.Errorf("failed to write %s to %q: %w", wr.GetFamily(), row.Key, err)
		}
	}
	log.Debug().Msgf("Write latency: %v", time.Since(now))
	return nil
}

// Delete removes every family of T from the row.
func (d *DAO[T]) Delete(ctx context.Context, rowKey string) error {
	if rowKey == "" {
		return ErrEmptyRowKey
	}

	for _, family := range d.schema.Families() {
		_, err := d.client.Delete(ctx, &proto.DeleteRequest{RowKey: rowKey, Family: family})
		if err != nil {
			return fmt.Errorf("failed to delete %s from %q: %w", family, rowKey, err)
		}
	}
	return nil
}

// DeleteRecord removes the row rec is stored in.
func (d *DAO[T]) DeleteRecord(ctx context.Context, rec T) error {
	key, err := d.mapper.GetRowKey(rec)
	if err != nil {
		return err
	}
	return d.Delete(ctx, string(key))
}
