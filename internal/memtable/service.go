package memtable

import (
	"context"
	"errors"
	"time"

	"github.com/litetable/litetable-db/pkg/proto"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// service answers LitetableService calls from a store.
type service struct {
	proto.UnimplementedLitetableServiceServer
	store *store
	feed  *changefeed
}

func (s *service) validateCreateFamilyRequest(msg *proto.CreateFamilyRequest) error {
	var errGrp []error
	if len(msg.GetFamily()) == 0 {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "family required"))
	}
	for _, f := range msg.GetFamily() {
		if f == "" {
			errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "family name can't be empty"))
			break
		}
	}
	return errors.Join(errGrp...)
}

func (s *service) CreateFamily(ctx context.Context, msg *proto.CreateFamilyRequest) (*proto.Empty,
	error) {
	if err := s.validateCreateFamilyRequest(msg); err != nil {
		return nil, err
	}

	log.Debug().Strs("families", msg.GetFamily()).Msg("CreateFamily request")
	s.store.createFamilies(msg.GetFamily())
	return &proto.Empty{}, nil
}

func (s *service) validateWrite(msg *proto.WriteRequest) error {
	var errGrp []error
	if msg.GetFamily() == "" {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "family required"))
	}
	if msg.GetRowKey() == "" {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "rowKey required"))
	}
	if len(msg.GetQualifiers()) == 0 {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "qualifiers required"))
	}
	return errors.Join(errGrp...)
}

func (s *service) Write(ctx context.Context, msg *proto.WriteRequest) (*proto.LitetableData,
	error) {
	if err := s.validateWrite(msg); err != nil {
		return nil, err
	}
	now := time.Now()

	cells := make([]cell, 0, len(msg.GetQualifiers()))
	for _, q := range msg.GetQualifiers() {
		cells = append(cells, cell{qualifier: q.GetName(), value: q.GetValue()})
	}

	written, err := s.store.write(msg.GetRowKey(), msg.GetFamily(), cells)
	if err != nil {
		return nil, toStatus(err, "failed to write data")
	}

	s.feed.publish(writeEvents(msg.GetRowKey(), msg.GetFamily(), written)...)

	log.Debug().Msgf("Write latency: %v", time.Since(now))
	return toProtoData(msg.GetFamily(), map[string]qualifiers{msg.GetRowKey(): written}), nil
}

func (s *service) validateRead(msg *proto.ReadRequest) error {
	var errGrp []error
	if msg.GetFamily() == "" {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "family required"))
	}
	if msg.GetRowKey() == "" {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "rowKey required"))
	}
	return errors.Join(errGrp...)
}

func (s *service) Read(ctx context.Context, msg *proto.ReadRequest) (*proto.LitetableData, error) {
	now := time.Now()
	if err := s.validateRead(msg); err != nil {
		return nil, err
	}

	q := readQuery{
		family:     msg.GetFamily(),
		key:        msg.GetRowKey(),
		qualifiers: msg.GetQualifiers(),
		latest:     int(msg.GetLatest()),
	}
	switch msg.GetQueryType() {
	case proto.QueryType_PREFIX:
		q.selector = selectPrefix
	case proto.QueryType_REGEX:
		q.selector = selectRegex
	default:
		q.selector = selectExact
	}

	rows, err := s.store.read(q)
	if err != nil {
		return nil, toStatus(err, "failed to read data")
	}

	log.Debug().Msgf("Read latency: %v", time.Since(now))
	return toProtoData(msg.GetFamily(), rows), nil
}

func (s *service) validateDelete(msg *proto.DeleteRequest) error {
	var errGrp []error
	if msg.GetFamily() == "" {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "family required"))
	}
	if msg.GetRowKey() == "" {
		errGrp = append(errGrp, status.Errorf(codes.InvalidArgument, "rowKey required"))
	}
	return errors.Join(errGrp...)
}

// Delete removes data immediately; the TTL of the request is ignored.
func (s *service) Delete(ctx context.Context, msg *proto.DeleteRequest) (*proto.Empty, error) {
	if err := s.validateDelete(msg); err != nil {
		return nil, err
	}

	cutoff, err := s.store.remove(msg.GetRowKey(), msg.GetFamily(), msg.GetQualifiers(),
		int64(msg.GetTimestampUnix()))
	if err != nil {
		return nil, toStatus(err, "failed to delete data")
	}

	s.feed.publish(deleteEvents(msg.GetRowKey(), msg.GetFamily(), msg.GetQualifiers(), cutoff)...)
	return &proto.Empty{}, nil
}

func toStatus(err error, msg string) error {
	switch {
	case errors.Is(err, errRowNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", msg, err)
	case errors.Is(err, errFamilyNotFound):
		return status.Errorf(codes.InvalidArgument, "%s: %v", msg, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", msg, err)
	}
}

func toProtoData(family string, rows map[string]qualifiers) *proto.LitetableData {
	data := &proto.LitetableData{
		Rows: make(map[string]*proto.Row, len(rows)),
	}

	for key, fam := range rows {
		vq := &proto.VersionedQualifier{
			Qualifiers: make(map[string]*proto.QualifierValues, len(fam)),
		}
		for name, versions := range fam {
			values := &proto.QualifierValues{
				Values: make([]*proto.TimestampedValue, 0, len(versions)),
			}
			for _, v := range versions {
				values.Values = append(values.Values, &proto.TimestampedValue{
					Value:         v.value,
					TimestampUnix: v.timestamp,
				})
			}
			vq.Qualifiers[name] = values
		}

		data.Rows[key] = &proto.Row{
			Key:  key,
			Cols: map[string]*proto.VersionedQualifier{family: vq},
		}
	}
	return data
}
