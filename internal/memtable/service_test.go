package memtable

import (
	"context"
	"testing"

	"github.com/litetable/litetable-db/pkg/proto"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestService(t *testing.T, families ...string) *service {
	t.Helper()
	s := &service{store: newStore(), feed: newChangefeed()}
	if len(families) > 0 {
		_, err := s.CreateFamily(context.Background(), &proto.CreateFamilyRequest{Family: families})
		require.NoError(t, err)
	}
	return s
}

func writeCells(t *testing.T, s *service, key, family string, kv ...string) {
	t.Helper()
	msg := &proto.WriteRequest{RowKey: key, Family: family}
	for i := 0; i+1 < len(kv); i += 2 {
		msg.Qualifiers = append(msg.Qualifiers, &proto.ColumnQualifier{
			Name:  kv[i],
			Value: []byte(kv[i+1]),
		})
	}
	_, err := s.Write(context.Background(), msg)
	require.NoError(t, err)
}

func requireCode(t *testing.T, err error, code codes.Code, msg string) {
	t.Helper()
	st, ok := status.FromError(err)
	require.True(t, ok, "not a status error: %v", err)
	require.Equal(t, code, st.Code())
	require.Contains(t, st.Message(), msg)
}

func TestService_Validation(t *testing.T) {
	s := newTestService(t, "main")
	ctx := context.Background()

	tests := map[string]struct {
		call func() error
		code codes.Code
		msg  string
	}{
		"create without families": {
			call: func() error {
				_, err := s.CreateFamily(ctx, &proto.CreateFamilyRequest{})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "family required",
		},
		"create with empty name": {
			call: func() error {
				_, err := s.CreateFamily(ctx, &proto.CreateFamilyRequest{Family: []string{"a", ""}})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "family name can't be empty",
		},
		"write without qualifiers": {
			call: func() error {
				_, err := s.Write(ctx, &proto.WriteRequest{RowKey: "k", Family: "main"})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "qualifiers required",
		},
		"write to unknown family": {
			call: func() error {
				_, err := s.Write(ctx, &proto.WriteRequest{
					RowKey:     "k",
					Family:     "missing",
					Qualifiers: []*proto.ColumnQualifier{{Name: "q"}},
				})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "column family does not exist: missing",
		},
		"read without row key": {
			call: func() error {
				_, err := s.Read(ctx, &proto.ReadRequest{Family: "main"})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "rowKey required",
		},
		"read missing row": {
			call: func() error {
				_, err := s.Read(ctx, &proto.ReadRequest{Family: "main", RowKey: "nope"})
				return err
			},
			code: codes.NotFound,
			msg:  "row not found: nope",
		},
		"read with bad regex": {
			call: func() error {
				_, err := s.Read(ctx, &proto.ReadRequest{
					Family:    "main",
					RowKey:    "(",
					QueryType: proto.QueryType_REGEX,
				})
				return err
			},
			code: codes.Internal,
			msg:  "invalid row key regex",
		},
		"delete without family": {
			call: func() error {
				_, err := s.Delete(ctx, &proto.DeleteRequest{RowKey: "k"})
				return err
			},
			code: codes.InvalidArgument,
			msg:  "family required",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			requireCode(t, tc.call(), tc.code, tc.msg)
		})
	}
}

func TestService_ReadSelectors(t *testing.T) {
	s := newTestService(t, "main")
	ctx := context.Background()

	writeCells(t, s, "IND#1", "main", "name", "a")
	writeCells(t, s, "IND#2", "main", "name", "b")
	writeCells(t, s, "USA#1", "main", "name", "c")

	tests := map[string]struct {
		queryType proto.QueryType
		key       string
		want      []string
	}{
		"exact":  {queryType: proto.QueryType_EXACT, key: "IND#2", want: []string{"IND#2"}},
		"prefix": {queryType: proto.QueryType_PREFIX, key: "IND#", want: []string{"IND#1", "IND#2"}},
		"regex":  {queryType: proto.QueryType_REGEX, key: `^[A-Z]+#1$`, want: []string{"IND#1", "USA#1"}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)

			resp, err := s.Read(ctx, &proto.ReadRequest{
				Family:    "main",
				RowKey:    tc.key,
				QueryType: tc.queryType,
			})
			req.NoError(err)

			var keys []string
			for k := range resp.GetRows() {
				keys = append(keys, k)
			}
			req.ElementsMatch(tc.want, keys)
		})
	}
}

func TestService_VersionsAndQualifiers(t *testing.T) {
	req := require.New(t)
	s := newTestService(t, "main")
	ctx := context.Background()

	writeCells(t, s, "k", "main", "name", "v1", "age", "1")
	writeCells(t, s, "k", "main", "name", "v2")
	writeCells(t, s, "k", "main", "name", "v3")

	resp, err := s.Read(ctx, &proto.ReadRequest{Family: "main", RowKey: "k"})
	req.NoError(err)
	qs := resp.GetRows()["k"].GetCols()["main"].GetQualifiers()
	req.Len(qs, 2)
	req.Len(qs["name"].GetValues(), 3)
	req.Equal([]byte("v3"), qs["name"].GetValues()[0].GetValue())

	resp, err = s.Read(ctx, &proto.ReadRequest{
		Family:     "main",
		RowKey:     "k",
		Qualifiers: []string{"name"},
		Latest:     2,
	})
	req.NoError(err)
	qs = resp.GetRows()["k"].GetCols()["main"].GetQualifiers()
	req.Len(qs, 1)
	values := qs["name"].GetValues()
	req.Len(values, 2)
	req.Equal([]byte("v3"), values[0].GetValue())
	req.Equal([]byte("v2"), values[1].GetValue())
	req.Greater(values[0].GetTimestampUnix(), values[1].GetTimestampUnix())
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()

	t.Run("qualifier", func(t *testing.T) {
		req := require.New(t)
		s := newTestService(t, "main")
		writeCells(t, s, "k", "main", "name", "a", "age", "1")

		_, err := s.Delete(ctx, &proto.DeleteRequest{
			RowKey:     "k",
			Family:     "main",
			Qualifiers: []string{"name"},
		})
		req.NoError(err)

		resp, err := s.Read(ctx, &proto.ReadRequest{Family: "main", RowKey: "k"})
		req.NoError(err)
		qs := resp.GetRows()["k"].GetCols()["main"].GetQualifiers()
		req.NotContains(qs, "name")
		req.Contains(qs, "age")
	})

	t.Run("family", func(t *testing.T) {
		s := newTestService(t, "main", "optional")
		writeCells(t, s, "k", "main", "name", "a")
		writeCells(t, s, "k", "optional", "f1", "x")

		_, err := s.Delete(ctx, &proto.DeleteRequest{RowKey: "k", Family: "main"})
		require.NoError(t, err)

		_, err = s.Read(ctx, &proto.ReadRequest{Family: "main", RowKey: "k"})
		requireCode(t, err, codes.NotFound, "row not found")

		_, err = s.Read(ctx, &proto.ReadRequest{Family: "optional", RowKey: "k"})
		require.NoError(t, err)
	})

	t.Run("older than timestamp", func(t *testing.T) {
		req := require.New(t)
		s := newTestService(t, "main")
		writeCells(t, s, "k", "main", "name", "old")

		resp, err := s.Read(ctx, &proto.ReadRequest{Family: "main", RowKey: "k"})
		req.NoError(err)
		cutoff := resp.GetRows()["k"].GetCols()["main"].GetQualifiers()["name"].GetValues()[0].
			GetTimestampUnix()

		writeCells(t, s, "k", "main", "name", "new")

		_, err = s.Delete(ctx, &proto.DeleteRequest{RowKey: "k", Family: "main", TimestampUnix: cutoff})
		req.NoError(err)

		resp, err = s.Read(ctx, &proto.ReadRequest{Family: "main", RowKey: "k"})
		req.NoError(err)
		values := resp.GetRows()["k"].GetCols()["main"].GetQualifiers()["name"].GetValues()
		req.Len(values, 1)
		req.Equal([]byte("new"), values[0].GetValue())
	})

	t.Run("missing row", func(t *testing.T) {
		s := newTestService(t, "main")
		_, err := s.Delete(ctx, &proto.DeleteRequest{RowKey: "nope", Family: "main"})
		require.NoError(t, err)
	})
}
