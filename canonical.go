package contracts

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"unicode/utf16"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Type tags for the canonical parameter encoding. A tag byte precedes every
// value so that no two distinct (type, value) pairs share an encoding:
// Int(1) and Float(1.0) and String("1") all encode differently.
const (
	tagBool   byte = 0x01
	tagInt    byte = 0x02
	tagFloat  byte = 0x03
	tagString byte = 0x04
)

// EncodeParams produces the deterministic byte encoding of a parameter
// mapping for content-addressed identity computation.
// CRITICAL: This is the ONLY serialization that should be used to derive
// a ParamID.
//
// Layout:
//  1. 4-byte big-endian entry count
//  2. Entries sorted by byte-wise key order, each as:
//     4-byte big-endian key length, NFC-normalized UTF-8 key bytes,
//     then the tagged value
//
// Tagged values:
//   - Bool:   tag 0x01, one byte (0x00 or 0x01)
//   - Int:    tag 0x02, 8-byte big-endian two's-complement
//   - Float:  tag 0x03, 8-byte big-endian IEEE-754 bit pattern
//     (-0.0 normalized to +0.0; NaN and infinities rejected)
//   - String: tag 0x04, 4-byte big-endian byte length,
//     NFC-normalized UTF-8 bytes
//
// Insertion order never matters: two mappings with identical key/value
// pairs encode identically.
func EncodeParams(p Params) ([]byte, error) {
	var buf bytes.Buffer

	var count [4]byte
	binary.BigEndian.PutUint32(count[:], uint32(len(p)))
	buf.Write(count[:])

	for _, k := range p.SortedKeys() {
		if err := appendCanonicalString(&buf, k); err != nil {
			return nil, withField(err, k)
		}
		if err := appendTaggedValue(&buf, p[k]); err != nil {
			return nil, withField(err, k)
		}
	}
	return buf.Bytes(), nil
}

// appendTaggedValue writes one tag byte plus the value payload.
func appendTaggedValue(buf *bytes.Buffer, v Scalar) error {
	switch val := v.(type) {
	case Bool:
		buf.WriteByte(tagBool)
		if val {
			buf.WriteByte(0x01)
		} else {
			buf.WriteByte(0x00)
		}
		return nil
	case Int:
		buf.WriteByte(tagInt)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], uint64(int64(val)))
		buf.Write(b[:])
		return nil
	case Float:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return NewStructuralError("", fmt.Sprintf("non-finite float cannot be encoded: %v", f))
		}
		bits := math.Float64bits(f)
		if f == 0 {
			bits = 0 // -0.0 and +0.0 share one identity
		}
		buf.WriteByte(tagFloat)
		var b [8]byte
		binary.BigEndian.PutUint64(b[:], bits)
		buf.Write(b[:])
		return nil
	case String:
		buf.WriteByte(tagString)
		return appendCanonicalString(buf, string(val))
	case nil:
		return NewStructuralError("", "null is not a valid parameter value")
	default:
		return NewStructuralError("", fmt.Sprintf("unsupported parameter type: %T", v))
	}
}

// appendCanonicalString writes a 4-byte big-endian length followed by the
// NFC-normalized UTF-8 bytes. NFC normalization at the encoding boundary
// keeps visually identical keys from hashing differently.
func appendCanonicalString(buf *bytes.Buffer, s string) error {
	if !utf8.ValidString(s) {
		return NewStructuralError("", "text is not valid UTF-8")
	}
	normalized := norm.NFC.String(s)
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(len(normalized)))
	buf.Write(b[:])
	buf.WriteString(normalized)
	return nil
}

// MarshalCanonicalJSON produces RFC 8785 canonical JSON for hashing
// structured payloads (provenance roots, task identity, environment
// fingerprints). Parameter mappings use EncodeParams instead; this form
// exists for payloads with nested structure.
//
// Key differences from standard json.Marshal:
//  1. Object keys sorted by UTF-16 code units (not UTF-8 bytes)
//  2. No HTML escaping (< > & are NOT escaped)
//  3. Strings are NFC normalized
//  4. No floats (returns error)
//  5. No null (returns error)
func MarshalCanonicalJSON(v any) ([]byte, error) {
	return marshalCanonicalJSON(v)
}

func marshalCanonicalJSON(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case string:
		return marshalCanonicalJSONString(val)
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case uint64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []string:
		arr := make([]any, len(val))
		for i, s := range val {
			arr[i] = s
		}
		return marshalCanonicalJSONArray(arr)
	case []any:
		return marshalCanonicalJSONArray(val)
	case map[string]string:
		obj := make(map[string]any, len(val))
		for k, s := range val {
			obj[k] = s
		}
		return marshalCanonicalJSONObject(obj)
	case map[string]any:
		return marshalCanonicalJSONObject(val)
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

// marshalCanonicalJSONString produces a canonical JSON string with NFC
// normalization. RFC 8785 compliance:
//   - No HTML escaping (<, >, & are NOT escaped)
//   - U+2028 and U+2029 are NOT escaped
//   - Only control characters (U+0000-U+001F), backslash, and quote are escaped
func marshalCanonicalJSONString(s string) ([]byte, error) {
	normalized := norm.NFC.String(s)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, err
	}

	// json.Encoder adds a trailing newline, remove it
	result := buf.Bytes()
	if len(result) > 0 && result[len(result)-1] == '\n' {
		result = result[:len(result)-1]
	}

	// Go's json.Encoder escapes U+2028/U+2029 for JavaScript compatibility,
	// which violates RFC 8785. Unescape them, preserving \\u202x sequences
	// that encode a literal backslash followed by "u202x" text.
	return unescapeU2028U2029(result), nil
}

// unescapeU2028U2029 converts   and   escape sequences to literal
// characters per RFC 8785, but preserves \\u2028/\\u2029 (escaped backslash
// followed by u2028/u2029 text).
func unescapeU2028U2029(data []byte) []byte {
	if !bytes.Contains(data, []byte(`\u202`)) {
		return data
	}

	var result []byte
	i := 0
	for i < len(data) {
		if i+6 <= len(data) && data[i] == '\\' && data[i+1] == 'u' && data[i+2] == '2' && data[i+3] == '0' && data[i+4] == '2' &&
			(data[i+5] == '8' || data[i+5] == '9') {
			// Count backslashes immediately before this position in the
			// output built so far. An even count (including 0) means this
			// backslash starts a real \u202x escape; an odd count means it
			// is itself escaped and must stay.
			backslashes := 0
			if result == nil {
				for j := i - 1; j >= 0 && data[j] == '\\'; j-- {
					backslashes++
				}
			} else {
				for j := len(result) - 1; j >= 0 && result[j] == '\\'; j-- {
					backslashes++
				}
			}

			if backslashes%2 == 0 {
				if result == nil {
					result = make([]byte, 0, len(data))
					result = append(result, data[:i]...)
				}
				if data[i+5] == '8' {
					result = append(result, "\u2028"...)
				} else {
					result = append(result, "\u2029"...)
				}
				i += 6
				continue
			}
		}

		if result != nil {
			result = append(result, data[i])
		}
		i++
	}

	if result == nil {
		return data
	}
	return result
}

func marshalCanonicalJSONArray(arr []any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')

	for i, elem := range arr {
		if i > 0 {
			buf.WriteByte(',')
		}
		elemBytes, err := marshalCanonicalJSON(elem)
		if err != nil {
			return nil, fmt.Errorf("array[%d]: %w", i, err)
		}
		buf.Write(elemBytes)
	}

	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func marshalCanonicalJSONObject(obj map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	// RFC 8785 UTF-16 code unit ordering
	slices.SortFunc(keys, compareKeysRFC8785)

	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}

		keyBytes, err := marshalCanonicalJSONString(k)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", k, err)
		}
		buf.Write(keyBytes)
		buf.WriteByte(':')

		valBytes, err := marshalCanonicalJSON(obj[k])
		if err != nil {
			return nil, fmt.Errorf("value for key %q: %w", k, err)
		}
		buf.Write(valBytes)
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// compareKeysRFC8785 compares strings using UTF-16 code unit ordering as
// required by RFC 8785. Go's default string comparison uses UTF-8 bytes,
// which produces a DIFFERENT order past the BMP boundary.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	minLen := len(a16)
	if len(b16) < minLen {
		minLen = len(b16)
	}

	for i := 0; i < minLen; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	if len(a16) < len(b16) {
		return -1
	}
	if len(a16) > len(b16) {
		return 1
	}
	return 0
}
