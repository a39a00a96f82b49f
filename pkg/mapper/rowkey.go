package mapper

import (
	"fmt"
	"reflect"
)

// GetRowKey composes the row key of rec. It does not validate the record's schema.
func (m *Mapper) GetRowKey(rec Record) ([]byte, error) {
	if isNil(rec) {
		return nil, newError(ErrNilArgument, "record")
	}

	key, err := composeRowKey(rec)
	if err != nil {
		return nil, err
	}
	return []byte(key), nil
}

func composeRowKey(rec Record) (key string, err error) {
	defer func() {
		if r := recover(); r != nil {
			key, err = "", wrapError(ErrRowKeyCantBeComposed, panicError(r), "%T", rec)
		}
	}()

	key, err = rec.ComposeRowKey()
	if err != nil {
		return "", wrapError(ErrRowKeyCantBeComposed, err, "%T", rec)
	}
	if key == "" {
		return "", newError(ErrRowKeyCantBeEmpty, "%T", rec)
	}
	return key, nil
}

// instantiate allocates a zero record of the schema's type and runs its Initializer.
func instantiate(s *Schema) (rec Record, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec, err = nil, wrapError(ErrObjectNotInstantiatable, panicError(r), "%s", s.typ)
		}
	}()

	rec = reflect.New(s.typ.Elem()).Interface().(Record)
	if in, ok := rec.(Initializer); ok {
		if err := in.Initialize(); err != nil {
			return nil, wrapError(ErrObjectNotInstantiatable, err, "%s", s.typ)
		}
	}
	return rec, nil
}

func parseRowKey(rec Record, key string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = wrapError(ErrRowKeyCouldNotBeParsed, panicError(r), "row key %q for %T", key,
				rec)
		}
	}()

	if err := rec.ParseRowKey(key); err != nil {
		return wrapError(ErrRowKeyCouldNotBeParsed, err, "row key %q for %T", key, rec)
	}
	return nil
}

func isNil(rec Record) bool {
	if rec == nil {
		return true
	}
	v := reflect.ValueOf(rec)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan,
		reflect.Interface:
		return v.IsNil()
	default:
		return false
	}
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", r)
}
