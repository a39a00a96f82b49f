package mapper

import (
	"errors"
	"fmt"
	"go/token"
	"reflect"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/litetable/litetable-mapper/pkg/codec"
	"github.com/rs/zerolog/log"
)

const tagName = "litetable"

// RowKeyField is a struct field that takes part in the row key.
type RowKeyField struct {
	Name  string
	Order int

	index []int
}

// ColumnField is a struct field bound to a single (family, qualifier) column.
type ColumnField struct {
	Name      string
	Family    string
	Qualifier string
	Type      reflect.Type

	index   []int
	codec   *codec.Codec
	pointer bool // the field is *T and the codec handles T
}

type column struct {
	family    string
	qualifier string
}

// Schema is the validated description of how a record type maps onto a row. A Schema is never
// modified after it is published.
type Schema struct {
	typ      reflect.Type
	table    string
	rowKeys  []RowKeyField
	columns  []ColumnField
	byColumn map[column]int
	families []string
}

// Type returns the record type described by the schema.
func (s *Schema) Type() reflect.Type { return s.typ }

// Table returns the table the record type belongs to.
func (s *Schema) Table() string { return s.table }

// RowKeyFields returns the row key fields ordered by position.
func (s *Schema) RowKeyFields() []RowKeyField { return slices.Clone(s.rowKeys) }

// ColumnFields returns the column fields in declaration order.
func (s *Schema) ColumnFields() []ColumnField { return slices.Clone(s.columns) }

// Families returns the sorted column families used by the record type.
func (s *Schema) Families() []string { return slices.Clone(s.families) }

// Column returns the field bound to family:qualifier.
func (s *Schema) Column(family, qualifier string) (ColumnField, bool) {
	i, ok := s.byColumn[column{family: family, qualifier: qualifier}]
	if !ok {
		return ColumnField{}, false
	}
	return s.columns[i], true
}

// resolution is the cached outcome of validating a record type: exactly one of schema or err
// is set.
type resolution struct {
	schema *Schema
	err    error
}

// resolve returns the schema for typ, validating it on first use. Concurrent first uses may
// each validate, but all of them return the single resolution that won LoadOrStore.
func (m *Mapper) resolve(typ reflect.Type) (*Schema, error) {
	if typ == nil {
		return nil, newError(ErrNilArgument, "record type")
	}
	if v, ok := m.schemas.Load(typ); ok {
		r := v.(*resolution)
		return r.schema, r.err
	}

	s, err := resolveSchema(typ, m.codecs)
	actual, loaded := m.schemas.LoadOrStore(typ, &resolution{schema: s, err: err})
	r := actual.(*resolution)

	if !loaded {
		if r.err != nil {
			log.Warn().Err(r.err).Str("type", typ.String()).Msg("record type failed validation")
		} else {
			log.Debug().
				Str("type", typ.String()).
				Str("table", r.schema.table).
				Int("rowKeys", len(r.schema.rowKeys)).
				Int("columns", len(r.schema.columns)).
				Msg("resolved record schema")
		}
	}

	return r.schema, r.err
}

// resolveSchema validates typ and builds its schema. It reports the first defect found: type
// level checks first, then fields in declaration order, then the field counts.
func resolveSchema(typ reflect.Type, codecs *codec.Registry) (*Schema, error) {
	if !typ.Implements(recordType) {
		return nil, newError(ErrNotRecord, "%s", typ)
	}
	if typ.Kind() != reflect.Pointer || typ.Elem().Kind() != reflect.Struct {
		return nil, newError(ErrNoEmptyConstructor,
			"%s: records must be pointers to structs so a zero value can be allocated", typ)
	}

	st := typ.Elem()
	if !token.IsExported(st.Name()) {
		return nil, newError(ErrEmptyConstructorInaccessible,
			"%s: type is not exported and can't be constructed by callers", typ)
	}

	s := &Schema{
		typ:      typ,
		table:    st.Name(),
		byColumn: make(map[column]int),
	}

	for i := 0; i < st.NumField(); i++ {
		f := st.Field(i)
		tag, ok := f.Tag.Lookup(tagName)
		if !ok || tag == "-" {
			continue
		}

		b, err := parseTag(tag)
		if err != nil {
			return nil, wrapError(ErrInvalidTag, err, "%s.%s", st, f.Name)
		}

		if b.rowKey {
			order := b.order
			if order == 0 {
				order = len(s.rowKeys) + 1
			}
			for _, k := range s.rowKeys {
				if k.Order == order {
					return nil, wrapError(ErrInvalidTag,
						fmt.Errorf("row key order %d is already used by %s", order, k.Name),
						"%s.%s", st, f.Name)
				}
			}
			s.rowKeys = append(s.rowKeys, RowKeyField{Name: f.Name, Order: order, index: f.Index})
			continue
		}

		col, err := bindColumn(st, f, b, s, codecs)
		if err != nil {
			return nil, err
		}
		s.byColumn[column{family: col.Family, qualifier: col.Qualifier}] = len(s.columns)
		s.columns = append(s.columns, col)
	}

	if len(s.columns) == 0 {
		return nil, newError(ErrMissingColumnFields, "%s", typ)
	}
	if len(s.rowKeys) == 0 {
		return nil, newError(ErrMissingRowKeyFields, "%s", typ)
	}

	sort.SliceStable(s.rowKeys, func(i, j int) bool {
		return s.rowKeys[i].Order < s.rowKeys[j].Order
	})

	for _, col := range s.columns {
		if !slices.Contains(s.families, col.Family) {
			s.families = append(s.families, col.Family)
		}
	}
	sort.Strings(s.families)

	name, err := tableName(typ)
	if err != nil {
		return nil, err
	}
	if name != "" {
		s.table = name
	}

	return s, nil
}

// tableName asks a zero record of typ for its table, or returns "" when typ is not a Tabler.
func tableName(typ reflect.Type) (name string, err error) {
	defer func() {
		if r := recover(); r != nil {
			name, err = "", wrapError(ErrTableNameFailed, panicError(r), "%s", typ)
		}
	}()

	if t, ok := reflect.New(typ.Elem()).Interface().(Tabler); ok {
		return t.TableName(), nil
	}
	return "", nil
}

// bindColumn checks a column-tagged field against the schema built so far and the codec
// registry.
func bindColumn(st reflect.Type, f reflect.StructField, b binding, s *Schema,
	codecs *codec.Registry) (ColumnField, error) {
	key := column{family: b.family, qualifier: b.qualifier}
	if i, dup := s.byColumn[key]; dup {
		return ColumnField{}, newError(ErrFieldsMappedToSameColumn,
			"%s.%s and %s.%s are both mapped to %s:%s", st, s.columns[i].Name, st, f.Name,
			b.family, b.qualifier)
	}

	col := ColumnField{
		Name:      f.Name,
		Family:    b.family,
		Qualifier: b.qualifier,
		Type:      f.Type,
		index:     f.Index,
	}

	if f.Type.Kind() == reflect.Pointer {
		if c, ok := codecs.Lookup(f.Type.Elem()); ok {
			col.codec, col.pointer = c, true
		}
	}
	if col.codec == nil {
		c, ok := codecs.Lookup(f.Type)
		if !ok {
			return ColumnField{}, newError(ErrUnsupportedFieldType, "%s.%s has type %s", st,
				f.Name, f.Type)
		}
		if !nilable(f.Type) {
			return ColumnField{}, newError(ErrMappedColumnCantBePrimitive,
				"%s.%s has type %s, use *%s so a missing cell can be represented", st, f.Name,
				f.Type, f.Type)
		}
		col.codec = c
	}

	if f.Name == "_" {
		return ColumnField{}, newError(ErrMappedColumnCantBeStatic,
			"%s has a blank field mapped to %s:%s", st, b.family, b.qualifier)
	}
	if !f.IsExported() {
		return ColumnField{}, newError(ErrMappedColumnCantBeTransient,
			"%s.%s is unexported", st, f.Name)
	}

	return col, nil
}

func nilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return true
	default:
		return false
	}
}

// binding is a parsed litetable struct tag.
//
//	`litetable:"rowkey"`
//	`litetable:"rowkey,order=2"`
//	`litetable:"family=main,qualifier=name"`
type binding struct {
	rowKey    bool
	order     int
	family    string
	qualifier string
}

func parseTag(tag string) (binding, error) {
	parts := strings.Split(tag, ",")

	if strings.TrimSpace(parts[0]) == "rowkey" {
		b := binding{rowKey: true}
		for _, opt := range parts[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(opt), "=")
			if !ok || k != "order" {
				return binding{}, fmt.Errorf("unknown rowkey option %q", opt)
			}
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				return binding{}, fmt.Errorf("order must be a positive integer, got %q", v)
			}
			b.order = n
		}
		return b, nil
	}

	var b binding
	for _, opt := range parts {
		k, v, ok := strings.Cut(strings.TrimSpace(opt), "=")
		if !ok {
			return binding{}, fmt.Errorf("expected key=value, got %q", opt)
		}
		switch k {
		case "family":
			b.family = v
		case "qualifier":
			b.qualifier = v
		default:
			return binding{}, fmt.Errorf("unknown option %q", k)
		}
	}

	if b.family == "" {
		return binding{}, errors.New("missing family")
	}
	if b.qualifier == "" {
		return binding{}, errors.New("missing qualifier")
	}
	return b, nil
}
