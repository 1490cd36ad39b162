package kernel

import (
	"fmt"
	"sort"
)

// AttributeKind discriminates the AttributeValue sum type.
type AttributeKind int

const (
	KindBool AttributeKind = iota
	KindLong
	KindString
	KindSet
	KindRecord
	KindEntityRef
)

func (k AttributeKind) String() string {
	switch k {
	case KindBool:
		return "Bool"
	case KindLong:
		return "Long"
	case KindString:
		return "String"
	case KindSet:
		return "Set"
	case KindRecord:
		return "Record"
	case KindEntityRef:
		return "EntityRef"
	default:
		return "Unknown"
	}
}

// AttributeValue is the kernel's agnostic representation of an entity or
// context attribute value. Exactly one of the typed fields is meaningful,
// selected by Kind. Domain entities (pkg/identity, pkg/organizations, and
// any future bounded context) produce these from their native types so
// that the translator never needs to know a domain's concrete Go types.
type AttributeValue struct {
	kind      AttributeKind
	boolVal   bool
	longVal   int64
	stringVal string
	setVal    []AttributeValue
	recordVal map[string]AttributeValue
	entityVal HRN
}

// BoolValue constructs a Bool-kind AttributeValue.
func BoolValue(b bool) AttributeValue { return AttributeValue{kind: KindBool, boolVal: b} }

// LongValue constructs a Long-kind AttributeValue.
func LongValue(n int64) AttributeValue { return AttributeValue{kind: KindLong, longVal: n} }

// StringValue constructs a String-kind AttributeValue.
func StringValue(s string) AttributeValue { return AttributeValue{kind: KindString, stringVal: s} }

// SetValue constructs a Set-kind AttributeValue.
func SetValue(vs []AttributeValue) AttributeValue {
	cp := make([]AttributeValue, len(vs))
	copy(cp, vs)
	return AttributeValue{kind: KindSet, setVal: cp}
}

// RecordValue constructs a Record-kind AttributeValue.
func RecordValue(m map[string]AttributeValue) AttributeValue {
	cp := make(map[string]AttributeValue, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return AttributeValue{kind: KindRecord, recordVal: cp}
}

// EntityRefValue constructs an EntityRef-kind AttributeValue wrapping an
// HRN, used for attributes that reference another entity (e.g. a
// resource's owner).
func EntityRefValue(h HRN) AttributeValue { return AttributeValue{kind: KindEntityRef, entityVal: h} }

// Kind reports the AttributeValue's discriminant.
func (v AttributeValue) Kind() AttributeKind { return v.kind }

// AsBool returns the Bool payload; ok is false if Kind() != KindBool.
func (v AttributeValue) AsBool() (bool, bool) { return v.boolVal, v.kind == KindBool }

// AsLong returns the Long payload; ok is false if Kind() != KindLong.
func (v AttributeValue) AsLong() (int64, bool) { return v.longVal, v.kind == KindLong }

// AsString returns the String payload; ok is false if Kind() != KindString.
func (v AttributeValue) AsString() (string, bool) { return v.stringVal, v.kind == KindString }

// AsSet returns the Set payload; ok is false if Kind() != KindSet.
func (v AttributeValue) AsSet() ([]AttributeValue, bool) { return v.setVal, v.kind == KindSet }

// AsRecord returns the Record payload; ok is false if Kind() != KindRecord.
func (v AttributeValue) AsRecord() (map[string]AttributeValue, bool) {
	return v.recordVal, v.kind == KindRecord
}

// AsEntityRef returns the EntityRef payload; ok is false if Kind() != KindEntityRef.
func (v AttributeValue) AsEntityRef() (HRN, bool) { return v.entityVal, v.kind == KindEntityRef }

// Equal reports structural equality between two AttributeValues. Set
// equality is order-insensitive (Cedar set semantics); Record equality
// compares by key.
func (v AttributeValue) Equal(other AttributeValue) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.boolVal == other.boolVal
	case KindLong:
		return v.longVal == other.longVal
	case KindString:
		return v.stringVal == other.stringVal
	case KindEntityRef:
		return v.entityVal == other.entityVal
	case KindSet:
		return setEqual(v.setVal, other.setVal)
	case KindRecord:
		return recordEqual(v.recordVal, other.recordVal)
	default:
		return false
	}
}

func setEqual(a, b []AttributeValue) bool {
	if len(a) != len(b) {
		return false
	}
	used := make([]bool, len(b))
	for _, av := range a {
		found := false
		for i, bv := range b {
			if used[i] {
				continue
			}
			if av.Equal(bv) {
				used[i] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func recordEqual(a, b map[string]AttributeValue) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}

// String renders a debug-friendly representation, primarily for log lines
// and test failure messages — not used by the translator's wire format.
func (v AttributeValue) String() string {
	switch v.kind {
	case KindBool:
		return fmt.Sprintf("%t", v.boolVal)
	case KindLong:
		return fmt.Sprintf("%d", v.longVal)
	case KindString:
		return fmt.Sprintf("%q", v.stringVal)
	case KindEntityRef:
		return v.entityVal.String()
	case KindSet:
		return fmt.Sprintf("%v", v.setVal)
	case KindRecord:
		keys := make([]string, 0, len(v.recordVal))
		for k := range v.recordVal {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return fmt.Sprintf("%v", keys)
	default:
		return "<invalid>"
	}
}
