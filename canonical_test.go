package contracts

import (
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeParamsGolden(t *testing.T) {
	params := Params{
		"R0":     Float(2.5),
		"city":   String("boston"),
		"detect": Bool(true),
		"waves":  Int(3),
	}

	encoded, err := EncodeParams(params)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "encode_params_reference", encoded)
}

func TestEncodeParamsEmptyGolden(t *testing.T) {
	encoded, err := EncodeParams(Params{})
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "encode_params_empty", encoded)
}

func TestEncodeParamsLayout(t *testing.T) {
	// One entry: 4-byte count, 4-byte key length, key bytes, tag, payload.
	encoded, err := EncodeParams(Params{"a": Int(1)})
	require.NoError(t, err)

	expected := []byte{
		0x00, 0x00, 0x00, 0x01, // count
		0x00, 0x00, 0x00, 0x01, 'a', // key
		0x02,                                           // int tag
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x01, // big-endian value
	}
	assert.Equal(t, expected, encoded)
}

func TestEncodeParamsDeterministicAcrossInsertionOrder(t *testing.T) {
	a := Params{}
	a["alpha"] = Int(1)
	a["zebra"] = String("z")
	a["mid"] = Bool(false)

	b := Params{}
	b["zebra"] = String("z")
	b["mid"] = Bool(false)
	b["alpha"] = Int(1)

	encA, err := EncodeParams(a)
	require.NoError(t, err)
	encB, err := EncodeParams(b)
	require.NoError(t, err)

	assert.Equal(t, encA, encB, "insertion order must never matter")
}

func TestEncodeParamsNilAndEmptyAgree(t *testing.T) {
	encNil, err := EncodeParams(nil)
	require.NoError(t, err)
	encEmpty, err := EncodeParams(Params{})
	require.NoError(t, err)

	assert.Equal(t, encEmpty, encNil)
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x00}, encNil)
}

func TestEncodeParamsTypeTagsDistinguish(t *testing.T) {
	// Int(1), Float(1.0), String("1"), and Bool(true) must all encode
	// differently - the tag byte keeps cross-type collisions impossible.
	variants := []Params{
		{"x": Int(1)},
		{"x": Float(1.0)},
		{"x": String("1")},
		{"x": Bool(true)},
	}

	seen := make(map[string]int)
	for i, p := range variants {
		encoded, err := EncodeParams(p)
		require.NoError(t, err)
		if prev, dup := seen[string(encoded)]; dup {
			t.Fatalf("variant %d and %d share an encoding", prev, i)
		}
		seen[string(encoded)] = i
	}
}

func TestEncodeParamsNegativeZero(t *testing.T) {
	negZero := math.Copysign(0, -1)
	require.True(t, math.Signbit(negZero))

	encNeg, err := EncodeParams(Params{"x": Float(negZero)})
	require.NoError(t, err)
	encPos, err := EncodeParams(Params{"x": Float(0.0)})
	require.NoError(t, err)

	assert.Equal(t, encPos, encNeg, "-0.0 and +0.0 share one identity")
}

func TestEncodeParamsRejectsNonFinite(t *testing.T) {
	tests := []struct {
		name  string
		value float64
	}{
		{"NaN", math.NaN()},
		{"+Inf", math.Inf(1)},
		{"-Inf", math.Inf(-1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := EncodeParams(Params{"loss_scale": Float(tt.value)})
			require.Error(t, err)
			assert.True(t, IsStructuralError(err))

			var ce *ContractError
			require.ErrorAs(t, err, &ce)
			assert.Equal(t, "loss_scale", ce.Field)
		})
	}
}

func TestEncodeParamsIntBoundaries(t *testing.T) {
	encMax, err := EncodeParams(Params{"x": Int(math.MaxInt64)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x7f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}, encMax[len(encMax)-9:])

	encMin, err := EncodeParams(Params{"x": Int(math.MinInt64)})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x02, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}, encMin[len(encMin)-9:])
}

func TestEncodeParamsNFCKeyEquivalence(t *testing.T) {
	// "é" as precomposed U+00E9 vs decomposed U+0065 U+0301. NFC collapses
	// both, so visually identical keys cannot hash differently.
	composed := "café"
	decomposed := "café"

	encComposed, err := EncodeParams(Params{composed: Int(1)})
	require.NoError(t, err)
	encDecomposed, err := EncodeParams(Params{decomposed: Int(1)})
	require.NoError(t, err)

	assert.Equal(t, encComposed, encDecomposed)
}

func TestEncodeParamsNFCValueEquivalence(t *testing.T) {
	encComposed, err := EncodeParams(Params{"name": String("café")})
	require.NoError(t, err)
	encDecomposed, err := EncodeParams(Params{"name": String("café")})
	require.NoError(t, err)

	assert.Equal(t, encComposed, encDecomposed)
}

func TestMarshalCanonicalJSONBasic(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected string
	}{
		{"string", "hello", `"hello"`},
		{"empty string", "", `""`},
		{"int", 42, "42"},
		{"negative int", -100, "-100"},
		{"int64", int64(42), "42"},
		{"max int64", int64(9223372036854775807), "9223372036854775807"},
		{"min int64", int64(-9223372036854775808), "-9223372036854775808"},
		{"uint64 above int64", uint64(18446744073709551615), "18446744073709551615"},
		{"bool true", true, "true"},
		{"bool false", false, "false"},
		{"empty array", []any{}, "[]"},
		{"empty object", map[string]any{}, "{}"},
		{"array of ints", []any{1, 2, 3}, "[1,2,3]"},
		{"string slice", []string{"a", "b"}, `["a","b"]`},
		{"simple object", map[string]any{"a": 1}, `{"a":1}`},
		{"string map", map[string]string{"k": "v"}, `{"k":"v"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonicalJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalJSONSortedKeys(t *testing.T) {
	obj := map[string]any{
		"zebra": 1,
		"alpha": 2,
		"beta":  3,
	}

	result, err := MarshalCanonicalJSON(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"alpha":2,"beta":3,"zebra":1}`, string(result))
}

func TestMarshalCanonicalJSONNestedSortedKeys(t *testing.T) {
	obj := map[string]any{
		"z": map[string]any{
			"b": 1,
			"a": 2,
		},
		"a": 3,
	}

	result, err := MarshalCanonicalJSON(obj)
	require.NoError(t, err)
	assert.Equal(t, `{"a":3,"z":{"a":2,"b":1}}`, string(result))
}

func TestMarshalCanonicalJSONGolden(t *testing.T) {
	payload := map[string]any{
		"version":    1,
		"entrypoint": "covid.models.SEIR/baseline",
		"labels":     []string{"test", "smoke"},
		"nested":     map[string]any{"zulu": true, "alpha": 7},
	}

	result, err := MarshalCanonicalJSON(payload)
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "canonical_payload", result)
}

func TestMarshalCanonicalJSONUTF16Ordering(t *testing.T) {
	// U+E000 vs U+10000 - UTF-16 order differs from UTF-8. In UTF-16 the
	// supplementary plane character encodes as a surrogate pair starting at
	// 0xD800, which sorts BEFORE 0xE000; UTF-8 bytes sort the other way.
	obj := map[string]any{
		"":     1,
		"\U00010000": 2,
	}

	result, err := MarshalCanonicalJSON(obj)
	require.NoError(t, err)

	expected := `{"` + "\U00010000" + `":2,"` + "" + `":1}`
	assert.Equal(t, expected, string(result))
}

func TestMarshalCanonicalJSONNoHTMLEscape(t *testing.T) {
	result, err := MarshalCanonicalJSON(map[string]any{
		"html": "<script>alert('x')</script>",
		"amp":  "a & b",
	})
	require.NoError(t, err)

	assert.Contains(t, string(result), "<script>")
	assert.Contains(t, string(result), "a & b")
	assert.NotContains(t, string(result), `<`)
	assert.NotContains(t, string(result), `>`)
	assert.NotContains(t, string(result), `&`)
}

func TestMarshalCanonicalJSONRejectsFloats(t *testing.T) {
	tests := []struct {
		name  string
		input any
	}{
		{"float64", float64(3.14)},
		{"float32", float32(3.14)},
		{"float in object", map[string]any{"x": 3.14}},
		{"float in array", []any{3.14}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MarshalCanonicalJSON(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "float")
		})
	}
}

func TestMarshalCanonicalJSONRejectsNull(t *testing.T) {
	_, err := MarshalCanonicalJSON(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")

	_, err = MarshalCanonicalJSON(map[string]any{"x": nil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null")
}

func TestMarshalCanonicalJSONNFCNormalization(t *testing.T) {
	result1, err := MarshalCanonicalJSON("café")
	require.NoError(t, err)
	result2, err := MarshalCanonicalJSON("café")
	require.NoError(t, err)

	assert.Equal(t, result1, result2, "NFC normalization should make these equal")
}

func TestMarshalCanonicalJSONCompactOutput(t *testing.T) {
	result, err := MarshalCanonicalJSON(map[string]any{
		"array": []any{1, 2},
		"bool":  true,
		"int":   42,
	})
	require.NoError(t, err)

	assert.NotContains(t, string(result), " ")
	assert.NotContains(t, string(result), "\n")
	assert.NotContains(t, string(result), "\t")
}

func TestMarshalCanonicalJSONStringEscaping(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"newline", "a\nb", `"a\nb"`},
		{"tab", "a\tb", `"a\tb"`},
		{"quote", `a"b`, `"a\"b"`},
		{"backslash", `a\b`, `"a\\b"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonicalJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}

func TestMarshalCanonicalJSONU2028U2029NotEscaped(t *testing.T) {
	// RFC 8785: U+2028 and U+2029 appear literally; only control characters,
	// backslash, and quote are escaped.
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "U+2028 LINE SEPARATOR",
			input:    "hello world",
			expected: "\"hello world\"",
		},
		{
			name:     "U+2029 PARAGRAPH SEPARATOR",
			input:    "hello world",
			expected: "\"hello world\"",
		},
		{
			name:     "both",
			input:    "a b c",
			expected: "\"a b c\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonicalJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
			assert.NotContains(t, string(result), ` `)
			assert.NotContains(t, string(result), ` `)
		})
	}
}

func TestMarshalCanonicalJSONLiteralBackslashU2028(t *testing.T) {
	// Strings containing a literal backslash followed by "u2028" text must
	// keep their escaped backslash; only real   escapes are unescaped.
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "literal backslash-u2028 text",
			input:    `the escape sequence is  `,
			expected: `"the escape sequence is \\u2028"`,
		},
		{
			name:     "literal backslash-u2029 text",
			input:    `the escape sequence is  `,
			expected: `"the escape sequence is \\u2029"`,
		},
		{
			name:     "mixed literal and actual",
			input:    "literal \\u2028 and actual  ",
			expected: "\"literal \\\\u2028 and actual  \"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := MarshalCanonicalJSON(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, string(result))
		})
	}
}
