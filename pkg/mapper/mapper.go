// Package mapper converts tagged Go records to and from LiteTable rows.
//
// A record type is validated once, on first use, into an immutable Schema that is cached by the
// Mapper for the rest of its life. Conversions walk the schema: row keys come from the record's
// own ComposeRowKey/ParseRowKey, column values go through the codec registry.
//
// A Mapper is safe for concurrent use.
package mapper

import (
	"errors"
	"reflect"
	"sync"

	"github.com/litetable/litetable-mapper/pkg/codec"
)

// Mapper converts records to rows and back.
type Mapper struct {
	codecs *codec.Registry
	// schemas maps reflect.Type to *resolution. Entries are added on first use and never
	// evicted: a record type's shape can't change while the process runs.
	schemas sync.Map
}

// Config configures a Mapper.
type Config struct {
	// Codecs converts column values. A registry with the built-in codecs is used when nil.
	// Register custom codecs before the first conversion of a type that needs them.
	Codecs *codec.Registry
}

func (c *Config) validate() error {
	if c == nil {
		return errors.New("mapper config cannot be nil")
	}
	return nil
}

// New creates a Mapper with an empty schema cache.
func New(cfg *Config) (*Mapper, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	codecs := cfg.Codecs
	if codecs == nil {
		codecs = codec.NewRegistry()
	}

	return &Mapper{
		codecs: codecs,
	}, nil
}

// Codecs returns the registry used for column values.
func (m *Mapper) Codecs() *codec.Registry {
	return m.codecs
}

// Validate returns the validation failure of typ, or nil when typ is a valid record type.
func (m *Mapper) Validate(typ reflect.Type) error {
	_, err := m.resolve(typ)
	return err
}

// IsValid reports whether typ is a valid record type.
func (m *Mapper) IsValid(typ reflect.Type) bool {
	return m.Validate(typ) == nil
}

// Schema returns the validated schema of typ.
func (m *Mapper) Schema(typ reflect.Type) (*Schema, error) {
	return m.resolve(typ)
}
