package mapper

import "reflect"

// Record is implemented by every type the mapper can convert. Records are pointers to exported
// structs; the row key is owned by the record itself:
//
//	type Citizen struct {
//		CountryCode string  `litetable:"rowkey"`
//		UID         int     `litetable:"rowkey,order=2"`
//		Name        *string `litetable:"family=main,qualifier=name"`
//	}
//
//	func (c *Citizen) ComposeRowKey() (string, error) {
//		return fmt.Sprintf("%s#%d", c.CountryCode, c.UID), nil
//	}
//
//	func (c *Citizen) ParseRowKey(rowKey string) error { ... }
type Record interface {
	// ComposeRowKey builds the row key from the record's row key fields.
	ComposeRowKey() (string, error)
	// ParseRowKey populates the record's row key fields from a row key.
	ParseRowKey(rowKey string) error
}

// Initializer is implemented by records whose zero value needs setup before the mapper
// populates it. A failing Initialize makes the record uninstantiatable for decoding.
type Initializer interface {
	Initialize() error
}

// Tabler lets a record name its table. Records without it use their type name.
type Tabler interface {
	TableName() string
}

var recordType = reflect.TypeFor[Record]()
