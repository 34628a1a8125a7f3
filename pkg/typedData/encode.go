package typedData

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// SlotSize is the width of every encoded field.
const SlotSize = 32

type FieldKind uint8

const (
	KindAddress FieldKind = iota + 1
	KindUint256
	KindBool
	KindString
	KindBytes
	KindBytes32
)

var kindTypeNames = map[FieldKind]string{
	KindAddress: "address",
	KindUint256: "uint256",
	KindBool:    "bool",
	KindString:  "string",
	KindBytes:   "bytes",
	KindBytes32: "bytes32",
}

var typeNameKinds = map[string]FieldKind{
	"address": KindAddress,
	"uint256": KindUint256,
	"bool":    KindBool,
	"string":  KindString,
	"bytes":   KindBytes,
	"bytes32": KindBytes32,
}

func (k FieldKind) String() string {
	if name, ok := kindTypeNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FieldKind(%d)", uint8(k))
}

// FieldValue is a single typed value. Only the member matching kind is meaningful.
type FieldValue struct {
	kind FieldKind
	addr common.Address
	num  uint256.Int
	flag bool
	str  string
	raw  []byte
	word common.Hash
}

func Address(addr common.Address) FieldValue {
	return FieldValue{kind: KindAddress, addr: addr}
}

// AddressOf unwraps anything that carries an address, such as a bound contract handle.
func AddressOf(v interface{ Address() common.Address }) FieldValue {
	return Address(v.Address())
}

func Uint256(v *uint256.Int) FieldValue {
	fv := FieldValue{kind: KindUint256}
	if v != nil {
		fv.num.Set(v)
	}
	return fv
}

func Uint64(v uint64) FieldValue {
	return Uint256(uint256.NewInt(v))
}

func Bool(v bool) FieldValue {
	return FieldValue{kind: KindBool, flag: v}
}

func String(v string) FieldValue {
	return FieldValue{kind: KindString, str: v}
}

func Bytes(v []byte) FieldValue {
	return FieldValue{kind: KindBytes, raw: common.CopyBytes(v)}
}

func Bytes32(v common.Hash) FieldValue {
	return FieldValue{kind: KindBytes32, word: v}
}

func (v FieldValue) Kind() FieldKind {
	return v.kind
}

// TypeName is the Solidity type name used in type signatures.
func (v FieldValue) TypeName() string {
	return v.kind.String()
}

// Encode returns the 32-byte slot for the value. Integers are big-endian, addresses are
// right-aligned, booleans are 0 or 1, and strings and bytes are replaced by their keccak256.
func (v FieldValue) Encode() [SlotSize]byte {
	var slot [SlotSize]byte
	switch v.kind {
	case KindAddress:
		copy(slot[SlotSize-common.AddressLength:], v.addr[:])
	case KindUint256:
		slot = v.num.Bytes32()
	case KindBool:
		if v.flag {
			slot[SlotSize-1] = 1
		}
	case KindString:
		slot = crypto.Keccak256Hash([]byte(v.str))
	case KindBytes:
		slot = crypto.Keccak256Hash(v.raw)
	case KindBytes32:
		slot = v.word
	default:
		panic("typedData: encode of unset FieldValue")
	}
	return slot
}

func (v FieldValue) String() string {
	switch v.kind {
	case KindAddress:
		return v.addr.Hex()
	case KindUint256:
		return v.num.Dec()
	case KindBool:
		return fmt.Sprintf("%t", v.flag)
	case KindString:
		return fmt.Sprintf("%q", v.str)
	case KindBytes:
		return common.Bytes2Hex(v.raw)
	case KindBytes32:
		return v.word.Hex()
	default:
		return "<unset>"
	}
}

// FieldDef is one member of a struct type declaration.
type FieldDef struct {
	Name string
	Type string
}

// StructType is a named, ordered list of fields. Its signature and hash are fixed at construction.
type StructType struct {
	Name   string
	Fields []FieldDef

	signature string
	hash      common.Hash
}

func NewStructType(name string, fields ...FieldDef) (*StructType, error) {
	if name == "" {
		return nil, fmt.Errorf("struct type name is required")
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("struct type %s has no fields", name)
	}
	seen := make(map[string]struct{}, len(fields))
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return nil, fmt.Errorf("struct type %s has an unnamed field", name)
		}
		if _, ok := typeNameKinds[f.Type]; !ok {
			return nil, fmt.Errorf("struct type %s field %s has unsupported type %q", name, f.Name, f.Type)
		}
		if _, dup := seen[f.Name]; dup {
			return nil, fmt.Errorf("struct type %s has duplicate field %s", name, f.Name)
		}
		seen[f.Name] = struct{}{}
		parts = append(parts, f.Type+" "+f.Name)
	}

	sig := name + "(" + strings.Join(parts, ",") + ")"
	return &StructType{
		Name:      name,
		Fields:    append([]FieldDef(nil), fields...),
		signature: sig,
		hash:      crypto.Keccak256Hash([]byte(sig)),
	}, nil
}

// MustStructType is NewStructType for package-level constants.
func MustStructType(name string, fields ...FieldDef) *StructType {
	t, err := NewStructType(name, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Signature returns the canonical type string, e.g. Permit(address owner,...).
func (t *StructType) Signature() string {
	return t.signature
}

// Hash returns keccak256 of Signature().
func (t *StructType) Hash() common.Hash {
	return t.hash
}

type TypedField struct {
	Name  string
	Value FieldValue
}

// StructuredMessage is a type hash plus its ordered field values.
type StructuredMessage struct {
	TypeHash common.Hash
	Fields   []TypedField

	typ *StructType
}

// NewStructuredMessage binds values to t in declaration order. The number and types of values
// must match t exactly.
func NewStructuredMessage(t *StructType, values ...FieldValue) (*StructuredMessage, error) {
	if t == nil {
		return nil, fmt.Errorf("struct type is nil")
	}
	if len(values) != len(t.Fields) {
		return nil, fmt.Errorf("%s expects %d fields, got %d", t.Name, len(t.Fields), len(values))
	}
	fields := make([]TypedField, len(values))
	for i, v := range values {
		def := t.Fields[i]
		if v.TypeName() != def.Type {
			return nil, fmt.Errorf("%s field %s expects %s, got %s", t.Name, def.Name, def.Type, v.TypeName())
		}
		fields[i] = TypedField{Name: def.Name, Value: v}
	}
	return &StructuredMessage{
		TypeHash: t.Hash(),
		Fields:   fields,
		typ:      t,
	}, nil
}

// Type returns the struct type the message was built from.
func (m *StructuredMessage) Type() *StructType {
	return m.typ
}

// Field returns the value of the named field.
func (m *StructuredMessage) Field(name string) (FieldValue, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return FieldValue{}, false
}

// EncodeMessage returns typeHash || slot_1 || ... || slot_n, the exact preimage of MessageDigest.
func EncodeMessage(m *StructuredMessage) []byte {
	out := make([]byte, 0, SlotSize*(len(m.Fields)+1))
	out = append(out, m.TypeHash[:]...)
	for _, f := range m.Fields {
		slot := f.Value.Encode()
		out = append(out, slot[:]...)
	}
	return out
}
