package bplist

import (
	"fmt"
	"time"
)

// Kind identifies the concrete type of a Value.
type Kind uint8

// The kinds a decoded object can take.
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindReal
	KindDate
	KindData
	KindText
	KindArray
	KindDictionary
)

var kindNames = [...]string{
	KindNull:       "null",
	KindBool:       "bool",
	KindInt:        "int",
	KindReal:       "real",
	KindDate:       "date",
	KindData:       "data",
	KindText:       "text",
	KindArray:      "array",
	KindDictionary: "dictionary",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Value is a decoded object. The set of implementations is closed: Null,
// Bool, Int, Real, Date, Data, Text, Array and Dictionary.
type Value interface {
	Kind() Kind
	isValue()
}

// Null is the value of null objects, reserved primitives, UIDs and unknown
// tags.
type Null struct{}

// Bool is a boolean primitive.
type Bool bool

// Int is an integer object.
type Int int64

// Real is a 32- or 64-bit floating point object, widened to float64.
type Real float64

// Date is an absolute timestamp.
type Date time.Time

// Data is an opaque byte payload owned by the caller.
type Data []byte

// Text is a decoded ASCII/Latin-1 or UTF-16 string.
type Text string

// Array is an ordered sequence of values. Sets decode to Array as well.
type Array []Value

// Pair is one dictionary entry.
type Pair struct {
	Key   Value
	Value Value
}

// Dictionary is an ordered sequence of key/value pairs in encoded order.
// Keys are neither sorted nor de-duplicated.
type Dictionary []Pair

func (Null) Kind() Kind       { return KindNull }
func (Bool) Kind() Kind       { return KindBool }
func (Int) Kind() Kind        { return KindInt }
func (Real) Kind() Kind       { return KindReal }
func (Date) Kind() Kind       { return KindDate }
func (Data) Kind() Kind       { return KindData }
func (Text) Kind() Kind       { return KindText }
func (Array) Kind() Kind      { return KindArray }
func (Dictionary) Kind() Kind { return KindDictionary }

func (Null) isValue()       {}
func (Bool) isValue()       {}
func (Int) isValue()        {}
func (Real) isValue()       {}
func (Date) isValue()       {}
func (Data) isValue()       {}
func (Text) isValue()       {}
func (Array) isValue()      {}
func (Dictionary) isValue() {}

// Time returns d as a time.Time in UTC.
func (d Date) Time() time.Time {
	return time.Time(d).UTC()
}

// Lookup returns the value of the first pair whose key is the text key.
func (d Dictionary) Lookup(key string) (Value, bool) {
	for _, p := range d {
		if k, ok := p.Key.(Text); ok && string(k) == key {
			return p.Value, true
		}
	}
	return nil, false
}

// Keys returns the text keys of d in encoded order, skipping non-text keys.
func (d Dictionary) Keys() []string {
	out := make([]string, 0, len(d))
	for _, p := range d {
		if k, ok := p.Key.(Text); ok {
			out = append(out, string(k))
		}
	}
	return out
}
