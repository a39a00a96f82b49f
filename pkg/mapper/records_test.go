package mapper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/litetable/litetable-mapper/pkg/codec"
	"github.com/shopspring/decimal"
)

func ptr[T any](v T) *T {
	return &v
}

func newTestMapper() *Mapper {
	reg := codec.NewRegistry()
	codec.RegisterMsgPack[Address](reg)
	m, err := New(&Config{Codecs: reg})
	if err != nil {
		panic(err)
	}
	return m
}

type Status string

type Address struct {
	Street string   `msgpack:"s"`
	City   string   `msgpack:"c"`
	Tags   []string `msgpack:"t"`
}

type Citizen struct {
	CountryCode string `litetable:"rowkey"`
	UID         int    `litetable:"rowkey,order=2"`

	Name             *string          `litetable:"family=main,qualifier=name"`
	NameInHindi      *string          `litetable:"family=main,qualifier=name_hindi"`
	Age              *int16           `litetable:"family=main,qualifier=age"`
	Salary           *int32           `litetable:"family=optional,qualifier=salary"`
	IsPassportHolder *bool            `litetable:"family=optional,qualifier=passport_holder"`
	F1               *float32         `litetable:"family=optional,qualifier=f1"`
	F2               *float64         `litetable:"family=optional,qualifier=f2"`
	F3               *int64           `litetable:"family=optional,qualifier=f3"`
	F4               *decimal.Decimal `litetable:"family=optional,qualifier=f4"`
	DOB              *time.Time       `litetable:"family=main,qualifier=dob"`
	PassportID       *uuid.UUID       `litetable:"family=optional,qualifier=passport_id"`
	Photo            []byte           `litetable:"family=optional,qualifier=photo"`
	Status           *Status          `litetable:"family=main,qualifier=status"`
	Address          *Address         `litetable:"family=main,qualifier=address"`

	Notes string `litetable:"-"`
	Email string
}

func (c *Citizen) ComposeRowKey() (string, error) {
	if c.CountryCode == "" {
		return "", errors.New("country code is required")
	}
	return fmt.Sprintf("%s#%d", c.CountryCode, c.UID), nil
}

func (c *Citizen) ParseRowKey(rowKey string) error {
	country, uid, ok := strings.Cut(rowKey, "#")
	if !ok {
		return fmt.Errorf("expected <country>#<uid>, got %q", rowKey)
	}
	n, err := strconv.Atoi(uid)
	if err != nil {
		return err
	}
	c.CountryCode, c.UID = country, n
	return nil
}

func (c *Citizen) TableName() string {
	return "citizens"
}

// CitizenSummary reads a subset of a Citizen row.
type CitizenSummary struct {
	CountryCode string `litetable:"rowkey"`
	UID         int    `litetable:"rowkey"`

	Name *string `litetable:"family=main,qualifier=name"`
	Age  *int16  `litetable:"family=main,qualifier=age"`
}

func (c *CitizenSummary) ComposeRowKey() (string, error) {
	return (&Citizen{CountryCode: c.CountryCode, UID: c.UID}).ComposeRowKey()
}

func (c *CitizenSummary) ParseRowKey(rowKey string) error {
	var full Citizen
	if err := full.ParseRowKey(rowKey); err != nil {
		return err
	}
	c.CountryCode, c.UID = full.CountryCode, full.UID
	return nil
}

// Tag uses its row key field verbatim.
type Tag struct {
	Key   string  `litetable:"rowkey"`
	Value *string `litetable:"family=meta,qualifier=value"`
}

func (t *Tag) ComposeRowKey() (string, error) { return t.Key, nil }
func (t *Tag) ParseRowKey(rowKey string) error {
	t.Key = rowKey
	return nil
}

type Reversed struct {
	First  string  `litetable:"rowkey,order=2"`
	Second string  `litetable:"rowkey,order=1"`
	Value  *string `litetable:"family=meta,qualifier=value"`
}

func (r *Reversed) ComposeRowKey() (string, error) { return r.Second + "/" + r.First, nil }
func (r *Reversed) ParseRowKey(rowKey string) error {
	r.Second, r.First, _ = strings.Cut(rowKey, "/")
	return nil
}

func validCitizens() []*Citizen {
	dob := time.Date(1985, 1, 18, 0, 0, 0, 0, time.UTC)
	status := Status("active")
	return []*Citizen{
		{
			CountryCode:      "IND",
			UID:              101,
			Name:             ptr("Manu"),
			NameInHindi:      ptr("मनु"),
			Age:              ptr(int16(30)),
			Salary:           ptr(int32(30000)),
			IsPassportHolder: ptr(true),
			F1:               ptr(float32(2.3)),
			F2:               ptr(11.1),
			F3:               ptr(int64(-9000)),
			F4:               ptr(decimal.New(1250, -2)),
			DOB:              &dob,
			PassportID:       ptr(uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")),
			Photo:            []byte{0xca, 0xfe},
			Status:           &status,
			Address: &Address{
				Street: "MG Road",
				City:   "Bengaluru",
				Tags:   []string{"home"},
			},
		},
		{
			CountryCode:      "IND",
			UID:              102,
			Name:             ptr("Sathish"),
			NameInHindi:      ptr("सतीश"),
			Age:              ptr(int16(28)),
			Salary:           ptr(int32(20000)),
			IsPassportHolder: ptr(false),
			F3:               ptr(int64(0)),
		},
		{
			CountryCode: "IND",
			UID:         103,
			Name:        ptr("Ankit"),
			Photo:       []byte{},
		},
		{
			CountryCode: "USA",
			UID:         1,
			Name:        ptr("Alice"),
		},
	}
}

// The types below are each invalid in exactly one way.

type singleton struct {
	Key  string  `litetable:"rowkey"`
	Name *string `litetable:"family=main,qualifier=name"`
}

var theSingleton = &singleton{Key: "only"}

func getSingleton() *singleton { return theSingleton }

func (s *singleton) ComposeRowKey() (string, error) { return s.Key, nil }
func (s *singleton) ParseRowKey(rowKey string) error {
	s.Key = rowKey
	return nil
}

type ValueRecord struct {
	Key  string  `litetable:"rowkey"`
	Name *string `litetable:"family=main,qualifier=name"`
}

func (v ValueRecord) ComposeRowKey() (string, error) { return v.Key, nil }
func (v ValueRecord) ParseRowKey(string) error      { return nil }

type WithPrimitives struct {
	Key string  `litetable:"rowkey"`
	F1  float32 `litetable:"family=main,qualifier=f1"`
}

func (w *WithPrimitives) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithPrimitives) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}

type WithTwoFieldsMappedToSameColumn struct {
	Key   string  `litetable:"rowkey"`
	Name  *string `litetable:"family=main,qualifier=name"`
	Alias *string `litetable:"family=main,qualifier=name"`
}

func (w *WithTwoFieldsMappedToSameColumn) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithTwoFieldsMappedToSameColumn) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}

type WithUnsupportedType struct {
	Key    string      `litetable:"rowkey"`
	Coords *complex128 `litetable:"family=main,qualifier=coords"`
}

func (w *WithUnsupportedType) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithUnsupportedType) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}

type WithBlankColumn struct {
	Key  string  `litetable:"rowkey"`
	Name *string `litetable:"family=main,qualifier=name"`
	_    *string `litetable:"family=main,qualifier=blank"`
}

func (w *WithBlankColumn) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithBlankColumn) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}

type WithUnexportedColumn struct {
	Key       string  `litetable:"rowkey"`
	FirstName *string `litetable:"family=main,qualifier=first_name"`
	lastName  *string `litetable:"family=main,qualifier=last_name"`
}

func (w *WithUnexportedColumn) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithUnexportedColumn) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}

type WithNoColumns struct {
	Key   string `litetable:"rowkey"`
	Notes *string
}

func (w *WithNoColumns) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithNoColumns) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}

type WithNoRowKeys struct {
	Key  string
	Name *string `litetable:"family=main,qualifier=name"`
}

func (w *WithNoRowKeys) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithNoRowKeys) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}

type WithMalformedTag struct {
	Key  string  `litetable:"rowkey"`
	Name *string `litetable:"family=main"`
}

func (w *WithMalformedTag) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithMalformedTag) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}

type WithDuplicateRowKeyOrder struct {
	Region string  `litetable:"rowkey,order=2"`
	ID     string  `litetable:"rowkey"`
	Name   *string `litetable:"family=main,qualifier=name"`
}

func (w *WithDuplicateRowKeyOrder) ComposeRowKey() (string, error) { return w.Region + "/" + w.ID, nil }
func (w *WithDuplicateRowKeyOrder) ParseRowKey(rowKey string) error {
	w.Region, w.ID, _ = strings.Cut(rowKey, "/")
	return nil
}

type TableMeta struct {
	Name string
}

// WithPanickingTableName derives its table from a field that is nil on the zero value.
type WithPanickingTableName struct {
	Key  string  `litetable:"rowkey"`
	Name *string `litetable:"family=main,qualifier=name"`
	Meta *TableMeta
}

func (w *WithPanickingTableName) ComposeRowKey() (string, error) { return w.Key, nil }
func (w *WithPanickingTableName) ParseRowKey(rowKey string) error {
	w.Key = rowKey
	return nil
}
func (w *WithPanickingTableName) TableName() string { return w.Meta.Name }

// Uninstantiatable passes validation but can never be initialized.
type Uninstantiatable struct {
	Key  string  `litetable:"rowkey"`
	Name *string `litetable:"family=main,qualifier=name"`
}

func (u *Uninstantiatable) Initialize() error { return errors.New("needs a database handle") }
func (u *Uninstantiatable) ComposeRowKey() (string, error) {
	return (&Citizen{CountryCode: u.Key}).ComposeRowKey()
}
func (u *Uninstantiatable) ParseRowKey(rowKey string) error {
	u.Key = rowKey
	return nil
}

type PanickingInitializer struct {
	Key  string  `litetable:"rowkey"`
	Name *string `litetable:"family=main,qualifier=name"`
}

func (p *PanickingInitializer) Initialize() error               { panic("boom") }
func (p *PanickingInitializer) ComposeRowKey() (string, error) { return p.Key, nil }
func (p *PanickingInitializer) ParseRowKey(rowKey string) error {
	p.Key = rowKey
	return nil
}

// rowKeyFunc adapts a function to Record for row key tests.
type rowKeyFunc func() (string, error)

func (f rowKeyFunc) ComposeRowKey() (string, error) { return f() }
func (f rowKeyFunc) ParseRowKey(string) error       { return nil }
