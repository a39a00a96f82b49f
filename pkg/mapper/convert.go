package mapper

import (
	"fmt"
	"reflect"

	"github.com/litetable/litetable-db/pkg/proto"
)

// ToRow converts a record into a row. Nil column fields produce no cell, which keeps partial
// writes from clearing columns the record doesn't know about.
func (m *Mapper) ToRow(rec Record) (*Row, error) {
	if isNil(rec) {
		return nil, newError(ErrNilArgument, "record")
	}

	s, err := m.resolve(reflect.TypeOf(rec))
	if err != nil {
		return nil, err
	}
	return m.toRow(s, rec)
}

// ToRows converts records into rows. Every record type is validated before any conversion,
// and nothing is returned unless all records convert.
func (m *Mapper) ToRows(recs []Record) ([]*Row, error) {
	schemas := make([]*Schema, len(recs))
	for i, rec := range recs {
		if isNil(rec) {
			return nil, fmt.Errorf("record %d: %w", i, newError(ErrNilArgument, "record"))
		}
		s, err := m.resolve(reflect.TypeOf(rec))
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		schemas[i] = s
	}

	rows := make([]*Row, 0, len(recs))
	for i, rec := range recs {
		row, err := m.toRow(schemas[i], rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (m *Mapper) toRow(s *Schema, rec Record) (*Row, error) {
	key, err := composeRowKey(rec)
	if err != nil {
		return nil, err
	}

	v := reflect.ValueOf(rec).Elem()
	row := &Row{
		Key:   []byte(key),
		Cells: make([]Cell, 0, len(s.columns)),
	}

	for _, col := range s.columns {
		fv := v.FieldByIndex(col.index)
		if fv.IsNil() {
			continue
		}
		if col.pointer {
			fv = fv.Elem()
		}

		raw, err := col.codec.Encode(fv)
		if err != nil {
			return nil, wrapError(ErrColumnNotEncodable, err, "%s.%s", s.typ.Elem(), col.Name)
		}
		row.Cells = append(row.Cells, Cell{
			Family:    col.Family,
			Qualifier: col.Qualifier,
			Value:     raw,
		})
	}

	return row, nil
}

// ToMutation converts a record into the write requests that persist it.
func (m *Mapper) ToMutation(rec Record) ([]*proto.WriteRequest, error) {
	row, err := m.ToRow(rec)
	if err != nil {
		return nil, err
	}
	return MutationView(row), nil
}

// ToMutations is the batch form of ToMutation.
func (m *Mapper) ToMutations(recs []Record) ([][]*proto.WriteRequest, error) {
	rows, err := m.ToRows(recs)
	if err != nil {
		return nil, err
	}

	mutations := make([][]*proto.WriteRequest, 0, len(rows))
	for _, row := range rows {
		mutations = append(mutations, MutationView(row))
	}
	return mutations, nil
}

// ToSnapshot converts a record into the LiteTable read representation of its row.
func (m *Mapper) ToSnapshot(rec Record) (*proto.Row, error) {
	row, err := m.ToRow(rec)
	if err != nil {
		return nil, err
	}
	return SnapshotView(row), nil
}

// ToSnapshots is the batch form of ToSnapshot.
func (m *Mapper) ToSnapshots(recs []Record) ([]*proto.Row, error) {
	rows, err := m.ToRows(recs)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*proto.Row, 0, len(rows))
	for _, row := range rows {
		snapshots = append(snapshots, SnapshotView(row))
	}
	return snapshots, nil
}

// FromRow converts a row into a new record of type typ. A nil row, a row without a key or a
// row without cells is not an error: FromRow returns (nil, nil). Cells that no field is mapped
// to are ignored.
func (m *Mapper) FromRow(row *Row, typ reflect.Type) (Record, error) {
	return m.fromRow(nil, false, row, typ)
}

// FromRowWithKey is FromRow with the row key supplied separately; the row's own key is ignored.
func (m *Mapper) FromRowWithKey(key []byte, row *Row, typ reflect.Type) (Record, error) {
	return m.fromRow(key, true, row, typ)
}

// FromSnapshot converts the latest version of a LiteTable row into a record.
func (m *Mapper) FromSnapshot(snapshot *proto.Row, typ reflect.Type) (Record, error) {
	return m.FromRow(RowFromSnapshot(snapshot), typ)
}

// FromSnapshotWithKey is FromSnapshot with the row key supplied separately.
func (m *Mapper) FromSnapshotWithKey(key []byte, snapshot *proto.Row, typ reflect.Type) (Record,
	error) {
	return m.FromRowWithKey(key, RowFromSnapshot(snapshot), typ)
}

// FromMutation converts a list of write requests for one row into a record.
func (m *Mapper) FromMutation(mutation []*proto.WriteRequest, typ reflect.Type) (Record, error) {
	row, err := RowFromMutation(mutation)
	if err != nil {
		return nil, err
	}
	return m.FromRow(row, typ)
}

// FromMutationWithKey is FromMutation with the row key supplied separately.
func (m *Mapper) FromMutationWithKey(key []byte, mutation []*proto.WriteRequest,
	typ reflect.Type) (Record, error) {
	row, err := RowFromMutation(mutation)
	if err != nil {
		return nil, err
	}
	return m.FromRowWithKey(key, row, typ)
}

func (m *Mapper) fromRow(key []byte, external bool, row *Row, typ reflect.Type) (Record, error) {
	if typ == nil {
		return nil, newError(ErrNilArgument, "record type")
	}
	if row == nil || len(row.Cells) == 0 {
		return nil, nil
	}
	if !external {
		key = row.Key
	}
	if len(key) == 0 {
		return nil, nil
	}

	s, err := m.resolve(typ)
	if err != nil {
		return nil, err
	}

	rec, err := instantiate(s)
	if err != nil {
		return nil, err
	}
	if err := parseRowKey(rec, string(key)); err != nil {
		return nil, err
	}

	v := reflect.ValueOf(rec).Elem()
	for _, cell := range row.Cells {
		col, ok := s.Column(cell.Family, cell.Qualifier)
		if !ok {
			continue
		}

		val, err := col.codec.Decode(cell.Value)
		if err != nil {
			return nil, wrapError(ErrColumnNotDecodable, err, "%s.%s from %s:%s in row %q",
				s.typ.Elem(), col.Name, cell.Family, cell.Qualifier, key)
		}

		fv := v.FieldByIndex(col.index)
		if col.pointer {
			p := reflect.New(col.codec.Type())
			p.Elem().Set(val)
			fv.Set(p)
		} else {
			fv.Set(val)
		}
	}

	return rec, nil
}

// Read is FromRow for a statically known record type. It returns the zero T, a nil pointer,
// when the row is empty.
func Read[T Record](m *Mapper, row *Row) (T, error) {
	return as[T](m.FromRow(row, reflect.TypeFor[T]()))
}

// ReadSnapshot is FromSnapshot for a statically known record type.
func ReadSnapshot[T Record](m *Mapper, snapshot *proto.Row) (T, error) {
	return as[T](m.FromSnapshot(snapshot, reflect.TypeFor[T]()))
}

// ReadMutation is FromMutation for a statically known record type.
func ReadMutation[T Record](m *Mapper, mutation []*proto.WriteRequest) (T, error) {
	return as[T](m.FromMutation(mutation, reflect.TypeFor[T]()))
}

func as[T Record](rec Record, err error) (T, error) {
	var zero T
	if err != nil || rec == nil {
		return zero, err
	}
	return rec.(T), nil
}
