package mapper

import (
	"fmt"
	"reflect"

	cdc "github.com/litetable/litetable-cdc/go/v1"
)

// rowState is the fold of every change event seen for one row key.
type rowState struct {
	key   string
	cells map[column]Cell
	order []column

	// Delete high-water marks per column, per family and for the whole row. Writes at or
	// below the applicable mark arrived late and stay deleted.
	deletedCols     map[column]int64
	deletedFamilies map[string]int64
	deletedRow      int64
}

func newRowState(key string) *rowState {
	return &rowState{
		key:             key,
		cells:           make(map[column]Cell),
		deletedCols:     make(map[column]int64),
		deletedFamilies: make(map[string]int64),
	}
}

func (s *rowState) deletedAt(col column) int64 {
	return max(s.deletedRow, s.deletedFamilies[col.family], s.deletedCols[col])
}

func (s *rowState) write(c Cell) {
	col := column{family: c.Family, qualifier: c.Qualifier}
	if c.Timestamp <= s.deletedAt(col) {
		return
	}
	current, ok := s.cells[col]
	if ok && c.Timestamp < current.Timestamp {
		return
	}
	if !ok && !containsColumn(s.order, col) {
		s.order = append(s.order, col)
	}
	s.cells[col] = c
}

// remove drops cells older than ts. An empty qualifier removes the family, an empty family
// removes the row. A zero ts removes every cell but leaves no mark for later writes.
func (s *rowState) remove(family, qualifier string, ts int64) {
	switch {
	case ts == 0:
	case family == "":
		s.deletedRow = max(s.deletedRow, ts)
	case qualifier == "":
		s.deletedFamilies[family] = max(s.deletedFamilies[family], ts)
	default:
		col := column{family: family, qualifier: qualifier}
		s.deletedCols[col] = max(s.deletedCols[col], ts)
	}

	for col, c := range s.cells {
		if family != "" && col.family != family {
			continue
		}
		if qualifier != "" && col.qualifier != qualifier {
			continue
		}
		if ts != 0 && c.Timestamp > ts {
			continue
		}
		delete(s.cells, col)
	}
}

func (s *rowState) row() *Row {
	row := &Row{Key: []byte(s.key)}
	for _, col := range s.order {
		if c, ok := s.cells[col]; ok {
			row.Cells = append(row.Cells, c)
		}
	}
	return row
}

func containsColumn(cols []column, col column) bool {
	for _, c := range cols {
		if c == col {
			return true
		}
	}
	return false
}

// RowsFromEvents folds LiteTable change events into the rows they leave behind, one row per
// row key in the order keys are first seen. Writes replace a cell unless they are older than
// it or not newer than a delete already seen for it; deletes and tombstones remove it. Read
// events are ignored. Rows whose cells were all deleted are returned without cells.
func RowsFromEvents(events []*cdc.CDCEvent) []*Row {
	states := make(map[string]*rowState)
	var keys []string

	for _, ev := range events {
		if ev == nil || ev.GetRowKey() == "" {
			continue
		}

		s, ok := states[ev.GetRowKey()]
		if !ok {
			s = newRowState(ev.GetRowKey())
			states[ev.GetRowKey()] = s
			keys = append(keys, ev.GetRowKey())
		}

		switch {
		case ev.GetOperation() == cdc.LitetableOperation_DELETE || ev.GetTombstone():
			s.remove(ev.GetFamily(), ev.GetQualifier(), ev.GetTimestampUnix())
		case ev.GetOperation() == cdc.LitetableOperation_WRITE:
			s.write(Cell{
				Family:    ev.GetFamily(),
				Qualifier: ev.GetQualifier(),
				Value:     ev.GetValue(),
				Timestamp: ev.GetTimestampUnix(),
			})
		}
	}

	rows := make([]*Row, 0, len(keys))
	for _, key := range keys {
		rows = append(rows, states[key].row())
	}
	return rows
}

// FromEvents decodes the rows folded from a change stream into records of type typ. Rows left
// without cells are skipped.
func (m *Mapper) FromEvents(events []*cdc.CDCEvent, typ reflect.Type) ([]Record, error) {
	var recs []Record
	for _, row := range RowsFromEvents(events) {
		rec, err := m.FromRow(row, typ)
		if err != nil {
			return nil, fmt.Errorf("row %q: %w", row.Key, err)
		}
		if rec != nil {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}

// ReadEvents is FromEvents for a statically known record type.
func ReadEvents[T Record](m *Mapper, events []*cdc.CDCEvent) ([]T, error) {
	recs, err := m.FromEvents(events, reflect.TypeFor[T]())
	if err != nil {
		return nil, err
	}

	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.(T))
	}
	return out, nil
}
