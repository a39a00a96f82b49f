package mapper

import (
	"sort"

	"github.com/litetable/litetable-db/pkg/proto"
)

// Cell is one stored column value of a row.
type Cell struct {
	Family    string
	Qualifier string
	Value     []byte
	// Timestamp is the version of the value in Unix nanoseconds, zero when unversioned.
	Timestamp int64
}

// Row is a row key plus the cells stored under it. Rows built by the mapper hold at most one
// cell per family:qualifier.
type Row struct {
	Key   []byte
	Cells []Cell
}

// IsEmpty reports whether the row carries no data: no row, no key or no cells.
func (r *Row) IsEmpty() bool {
	return r == nil || len(r.Key) == 0 || len(r.Cells) == 0
}

// Cell returns the cell stored at family:qualifier.
func (r *Row) Cell(family, qualifier string) (Cell, bool) {
	if r == nil {
		return Cell{}, false
	}
	for _, c := range r.Cells {
		if c.Family == family && c.Qualifier == qualifier {
			return c, true
		}
	}
	return Cell{}, false
}

// MutationView translates a row into the LiteTable write requests that store it, one per
// family in family order. Write requests carry no versions.
func MutationView(row *Row) []*proto.WriteRequest {
	if row == nil || len(row.Cells) == 0 {
		return nil
	}

	byFamily := make(map[string]*proto.WriteRequest)
	var families []string
	for _, c := range row.Cells {
		wr, ok := byFamily[c.Family]
		if !ok {
			wr = &proto.WriteRequest{
				RowKey: string(row.Key),
				Family: c.Family,
			}
			byFamily[c.Family] = wr
			families = append(families, c.Family)
		}
		wr.Qualifiers = append(wr.Qualifiers, &proto.ColumnQualifier{
			Name:  c.Qualifier,
			Value: c.Value,
		})
	}
	sort.Strings(families)

	mutation := make([]*proto.WriteRequest, 0, len(families))
	for _, family := range families {
		mutation = append(mutation, byFamily[family])
	}
	return mutation
}

// RowFromMutation collects the cells of a list of write requests into a row. All requests must
// target the same row key. An empty mutation yields a nil row.
func RowFromMutation(mutation []*proto.WriteRequest) (*Row, error) {
	var row *Row
	for _, wr := range mutation {
		if wr == nil {
			continue
		}
		if row == nil {
			row = &Row{Key: []byte(wr.GetRowKey())}
		} else if string(row.Key) != wr.GetRowKey() {
			return nil, newError(ErrMixedRowKeys, "%q and %q", row.Key, wr.GetRowKey())
		}

		for _, q := range wr.GetQualifiers() {
			if q == nil {
				continue
			}
			row.Cells = append(row.Cells, Cell{
				Family:    wr.GetFamily(),
				Qualifier: q.GetName(),
				Value:     q.GetValue(),
			})
		}
	}
	return row, nil
}

// SnapshotView translates a row into the LiteTable read representation.
func SnapshotView(row *Row) *proto.Row {
	if row == nil {
		return nil
	}

	snapshot := &proto.Row{
		Key:  string(row.Key),
		Cols: make(map[string]*proto.VersionedQualifier),
	}

	for _, c := range row.Cells {
		family, ok := snapshot.Cols[c.Family]
		if !ok {
			family = &proto.VersionedQualifier{
				Qualifiers: make(map[string]*proto.QualifierValues),
			}
			snapshot.Cols[c.Family] = family
		}

		values, ok := family.Qualifiers[c.Qualifier]
		if !ok {
			values = &proto.QualifierValues{}
			family.Qualifiers[c.Qualifier] = values
		}
		values.Values = append(values.Values, &proto.TimestampedValue{
			Value:         c.Value,
			TimestampUnix: c.Timestamp,
		})
	}

	return snapshot
}

// RowFromSnapshot keeps the latest version of every qualifier of a LiteTable row. Cells are
// ordered by family, then qualifier.
func RowFromSnapshot(snapshot *proto.Row) *Row {
	if snapshot == nil {
		return nil
	}

	row := &Row{Key: []byte(snapshot.GetKey())}

	cols := snapshot.GetCols()
	families := make([]string, 0, len(cols))
	for family := range cols {
		families = append(families, family)
	}
	sort.Strings(families)

	for _, family := range families {
		qualifiers := cols[family].GetQualifiers()
		names := make([]string, 0, len(qualifiers))
		for name := range qualifiers {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			latest := latestValue(qualifiers[name].GetValues())
			if latest == nil {
				continue
			}
			row.Cells = append(row.Cells, Cell{
				Family:    family,
				Qualifier: name,
				Value:     latest.GetValue(),
				Timestamp: latest.GetTimestampUnix(),
			})
		}
	}

	return row
}

// latestValue returns the newest version; on equal timestamps the last one written wins.
func latestValue(values []*proto.TimestampedValue) *proto.TimestampedValue {
	var latest *proto.TimestampedValue
	for _, v := range values {
		if v == nil {
			continue
		}
		if latest == nil || v.GetTimestampUnix() >= latest.GetTimestampUnix() {
			latest = v
		}
	}
	return latest
}
