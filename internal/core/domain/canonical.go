package domain

import (
	"encoding"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/cyberphone/json-canonicalization/go/src/webpki.org/jsoncanonicalizer"
	"go.trai.ch/zerr"
)

// CodeIdentityKey is the input key the code identity is stored under.
const CodeIdentityKey = "__code_identity__"

// maxValueDepth bounds recursion so cyclic pointers fail instead of overflowing the stack.
const maxValueDepth = 64

// Value tags of the canonical tree.
const (
	tagNull  = "null"
	tagBool  = "bool"
	tagInt   = "int"
	tagFloat = "float"
	tagStr   = "str"
	tagBytes = "bytes"
	tagText  = "text"
	tagList  = "list"
	tagMap   = "map"

	// Strings that are not valid UTF-8 are carried as hex; JSON would replace the
	// offending bytes with U+FFFD.
	tagRawStr  = "rawstr"
	tagRawText = "rawtext"
)

var (
	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	stringerType      = reflect.TypeFor[fmt.Stringer]()
)

// CanonicalInputs returns the canonical serialization of inputs merged with the code identity.
//
// Every value is rewritten into a [tag, payload] pair, so that 4, int64(4) and uint8(4) agree while
// 4 and "4" do not. The resulting tree is encoded as RFC 8785 canonical JSON, which fixes key order.
func CanonicalInputs(codeIdentity string, inputs map[string]any) ([]byte, error) {
	if codeIdentity == "" {
		return nil, ErrEmptyCodeIdentity
	}
	if _, ok := inputs[CodeIdentityKey]; ok {
		return nil, zerr.With(zerr.Wrap(ErrReservedKey, "input name is reserved"), "key", CodeIdentityKey)
	}

	tree := make(map[string]any, len(inputs)+1)
	for key, value := range inputs {
		if !utf8.ValidString(key) {
			return nil, zerr.With(zerr.Wrap(ErrUnhashableInput, "input name is not valid UTF-8"), "key", []byte(key))
		}
		node, err := canonicalize(reflect.ValueOf(value), 0)
		if err != nil {
			return nil, zerr.With(err, "key", key)
		}
		tree[key] = node
	}
	tree[CodeIdentityKey] = stringNode(tagStr, tagRawStr, codeIdentity)

	raw, err := json.Marshal([]any{tagMap, tree})
	if err != nil {
		return nil, zerr.Wrap(ErrUnhashableInput, err.Error())
	}

	canonical, err := jsoncanonicalizer.Transform(raw)
	if err != nil {
		return nil, zerr.Wrap(ErrUnhashableInput, err.Error())
	}
	return canonical, nil
}

//nolint:cyclop,gocyclo // one case per reflect kind
func canonicalize(v reflect.Value, depth int) (any, error) {
	if depth > maxValueDepth {
		return nil, zerr.Wrap(ErrUnhashableInput, "value nested too deeply")
	}
	if !v.IsValid() {
		return []any{tagNull, nil}, nil
	}

	if text, ok, err := textOf(v); ok || err != nil {
		if err != nil {
			return nil, err
		}
		return stringNode(tagText, tagRawText, text), nil
	}

	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return []any{tagNull, nil}, nil
		}
		return canonicalize(v.Elem(), depth+1)
	case reflect.Bool:
		return []any{tagBool, v.Bool()}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return []any{tagInt, strconv.FormatInt(v.Int(), 10)}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return []any{tagInt, strconv.FormatUint(v.Uint(), 10)}, nil
	case reflect.Float32, reflect.Float64:
		return []any{tagFloat, formatFloat(v.Float(), v.Type().Bits())}, nil
	case reflect.String:
		return stringNode(tagStr, tagRawStr, v.String()), nil
	case reflect.Slice:
		if v.IsNil() {
			return []any{tagNull, nil}, nil
		}
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return []any{tagBytes, hex.EncodeToString(v.Bytes())}, nil
		}
		return canonicalList(v, depth)
	case reflect.Array:
		return canonicalList(v, depth)
	case reflect.Map:
		if v.IsNil() {
			return []any{tagNull, nil}, nil
		}
		return canonicalMap(v, depth)
	default:
		return nil, zerr.With(zerr.Wrap(ErrUnhashableInput, "unsupported type"), "type", v.Type().String())
	}
}

func canonicalList(v reflect.Value, depth int) (any, error) {
	items := make([]any, v.Len())
	for i := range items {
		item, err := canonicalize(v.Index(i), depth+1)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return []any{tagList, items}, nil
}

func canonicalMap(v reflect.Value, depth int) (any, error) {
	entries := make(map[string]any, v.Len())
	keys := v.MapKeys()
	sort.Slice(keys, func(i, j int) bool { return fmt.Sprint(keys[i]) < fmt.Sprint(keys[j]) })

	for _, k := range keys {
		key, err := mapKey(k)
		if err != nil {
			return nil, err
		}
		if _, dup := entries[key]; dup {
			return nil, zerr.With(zerr.Wrap(ErrUnhashableInput, "map keys collide"), "key", key)
		}
		node, err := canonicalize(v.MapIndex(k), depth+1)
		if err != nil {
			return nil, err
		}
		entries[key] = node
	}
	return []any{tagMap, entries}, nil
}

func mapKey(k reflect.Value) (string, error) {
	for k.Kind() == reflect.Interface && !k.IsNil() {
		k = k.Elem()
	}
	switch k.Kind() {
	case reflect.String:
		if !utf8.ValidString(k.String()) {
			return "", zerr.With(zerr.Wrap(ErrUnhashableInput, "map key is not valid UTF-8"), "key", []byte(k.String()))
		}
		return k.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(k.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return strconv.FormatUint(k.Uint(), 10), nil
	default:
		return "", zerr.With(zerr.Wrap(ErrUnhashableInput, "unsupported map key"), "key_type", k.Type().String())
	}
}

func stringNode(tag, rawTag, s string) []any {
	if utf8.ValidString(s) {
		return []any{tag, s}
	}
	return []any{rawTag, hex.EncodeToString([]byte(s))}
}

// textOf returns the stable string form of values that provide one.
func textOf(v reflect.Value) (string, bool, error) {
	if v.Kind() == reflect.Pointer && v.IsNil() {
		return "", false, nil
	}
	if v.Kind() == reflect.Interface {
		return "", false, nil
	}
	if !v.CanInterface() {
		return "", false, nil
	}

	if v.Type().Implements(textMarshalerType) {
		text, err := v.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return "", false, zerr.Wrap(ErrUnhashableInput, err.Error())
		}
		return string(text), true, nil
	}
	if v.Type().Implements(stringerType) {
		return v.Interface().(fmt.Stringer).String(), true, nil
	}
	return "", false, nil
}

func formatFloat(f float64, bits int) string {
	if f == 0 {
		// Fold -0 into 0.
		f = 0
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
