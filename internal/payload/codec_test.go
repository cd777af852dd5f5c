package payload

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fullName struct {
	First  string `json:"first"`
	Remark string `json:"remark"`
}

type valueOnly struct {
	Value string `json:"value"`
}

type nested struct {
	Title  string            `json:"title"`
	Tags   []string          `json:"tags"`
	Limits map[string]int    `json:"limits"`
	Owner  *fullName         `json:"owner"`
	Extra  map[string]string `json:"extra,omitempty"`
}

type measurement struct {
	Reading float64 `json:"reading"`
}

type invoice struct {
	Number string `json:"number"`
}

func (invoice) PayloadKind() string { return "invoice" }

type receipt struct {
	Number string `json:"number"`
}

func (receipt) PayloadKind() string { return "receipt" }

type positive struct {
	N int `json:"n"`
}

func (p positive) Validate() error {
	if p.N <= 0 {
		return errors.New("n must be positive")
	}
	return nil
}

func TestRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   Payload[nested]
	}{
		{"Empty", Payload[nested]{}},
		{"DataOnly", Payload[nested]{Data: map[string]string{"b": "2", "a": "1"}}},
		{"EmptyData", Payload[nested]{Data: map[string]string{}}},
		{"MetaOnly", New(nested{Title: "x"}, nil)},
		{"Full", New(nested{
			Title:  "héllo \"quoted\" <tag>",
			Tags:   []string{"a", "b"},
			Limits: map[string]int{"max": 3, "min": -1},
			Owner:  &fullName{First: "Ada", Remark: "admin"},
			Extra:  map[string]string{"k": "v"},
		}, map[string]string{"source": "import", "": "empty key"})},
	} {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := Encode(tc.in)
			require.NoError(t, err)

			got, err := Decode[nested](raw)
			require.NoError(t, err)
			assert.Equal(t, tc.in, got)
		})
	}
}

func TestDecode_ShapeMismatch(t *testing.T) {
	raw, err := Encode(New(fullName{First: "Ada", Remark: "hi"}, nil))
	require.NoError(t, err)

	got, err := Decode[valueOnly](raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.NotErrorIs(t, err, ErrMalformed)
	assert.True(t, got.IsZero(), "no partial value on mismatch")

	var ce *CodecError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrSchemaMismatch, ce.Kind)

	// The other direction: the stored value lacks fields the reader needs.
	type firstOnly struct {
		First string `json:"first"`
	}
	raw, err = Encode(New(firstOnly{First: "Ada"}, nil))
	require.NoError(t, err)
	partial, err := Decode[fullName](raw)
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.ErrorContains(t, err, "meta.remark: missing")
	assert.True(t, partial.IsZero())
}

func TestDecode_MissingFields(t *testing.T) {
	for _, raw := range []string{
		`{"meta":{"first":"x"},"data":null}`,
		`{"meta":{},"data":null}`,
		`{"meta":{"first":"x","remark":null},"data":null}`,
	} {
		t.Run(raw, func(t *testing.T) {
			got, err := Decode[fullName]([]byte(raw))
			assert.ErrorIs(t, err, ErrSchemaMismatch)
			assert.True(t, got.IsZero())
		})
	}

	// Nested objects are held to the same rule.
	_, err := Decode[nested]([]byte(`{"meta":{"title":"t","tags":null,"limits":null,"owner":{"first":"Ada"}},"data":null}`))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.ErrorContains(t, err, "meta.owner.remark")
}

func TestDecode_OptionalFields(t *testing.T) {
	// Pointers and omitempty fields may be absent; slices and maps may be null.
	got, err := Decode[nested]([]byte(`{"meta":{"Title":"t","tags":null,"limits":null},"data":null}`))
	require.NoError(t, err)
	assert.Equal(t, "t", got.Meta.Title)
	assert.Nil(t, got.Meta.Owner)
	assert.Nil(t, got.Meta.Extra)
}

func TestDecode_TypeMismatch(t *testing.T) {
	for _, raw := range []string{
		`{"meta":{"first":42,"remark":"x"},"data":null}`,
		`{"meta":null,"data":{"k":1}}`,
		`{"meta":"text","data":null}`,
		`[1,2,3]`,
		`"just a string"`,
		`null`,
		`{"meta":null,"data":null,"extra":true}`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode[fullName]([]byte(raw))
			assert.ErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestDecode_Malformed(t *testing.T) {
	for _, raw := range []string{
		``,
		`   `,
		`{`,
		`not json`,
		`{"meta":null,"data":null} trailing`,
		`{}{}`,
	} {
		t.Run(raw, func(t *testing.T) {
			_, err := Decode[fullName]([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformed)
			assert.NotErrorIs(t, err, ErrSchemaMismatch)
		})
	}
}

func TestDecode_KindTag(t *testing.T) {
	raw, err := Encode(New(invoice{Number: "INV-1"}, nil))
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"invoice"`)

	// Same shape, different declared kind.
	_, err = Decode[receipt](raw)
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	got, err := Decode[invoice](raw)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", got.Meta.Number)

	// Untagged readers accept any kind.
	generic, err := Decode[map[string]any](raw)
	require.NoError(t, err)
	assert.Equal(t, "INV-1", (*generic.Meta)["number"])

	// A tagged reader requires the tag.
	_, err = Decode[invoice]([]byte(`{"meta":{"number":"INV-0"},"data":null}`))
	assert.ErrorIs(t, err, ErrSchemaMismatch)
	assert.ErrorContains(t, err, "no kind")
}

func TestDecode_Validate(t *testing.T) {
	_, err := Decode[positive]([]byte(`{"meta":{"n":0},"data":null}`))
	assert.ErrorIs(t, err, ErrSchemaMismatch)

	got, err := Decode[positive]([]byte(`{"meta":{"n":2},"data":null}`))
	require.NoError(t, err)
	assert.Equal(t, 2, got.Meta.N)

	// Validate is only called when meta is present.
	_, err = Decode[positive]([]byte(`{"meta":null,"data":null}`))
	assert.NoError(t, err)
}

func TestEncode_NonFinite(t *testing.T) {
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := Encode(New(measurement{Reading: v}, nil))
		assert.ErrorIs(t, err, ErrUnencodable)
	}
}

func TestEncode_StringsThatDoNotRoundTrip(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   Payload[nested]
		want string
	}{
		{"InvalidUTF8Value", Payload[nested]{Data: map[string]string{"k": "a\xffb"}}, "data[k]: invalid UTF-8"},
		{"InvalidUTF8Key", Payload[nested]{Data: map[string]string{"a\xffb": "v"}}, "data key: invalid UTF-8"},
		{"NULValue", Payload[nested]{Data: map[string]string{"k": "a\x00b"}}, "data[k]: contains NUL"},
		{"MetaField", New(nested{Title: "\xc3\x28"}, nil), "meta.title: invalid UTF-8"},
		{"MetaNested", New(nested{Owner: &fullName{Remark: "x\x00"}}, nil), "meta.owner.remark: contains NUL"},
		{"MetaSlice", New(nested{Tags: []string{"ok", "\xff"}}, nil), "meta.tags[1]: invalid UTF-8"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Encode(tc.in)
			assert.ErrorIs(t, err, ErrUnencodable)
			assert.ErrorContains(t, err, tc.want)
		})
	}

	_, err := Encode(Payload[map[string]any]{Meta: &map[string]any{"k": []any{"\x00"}}})
	assert.ErrorIs(t, err, ErrUnencodable)
}

func TestKind(t *testing.T) {
	assert.Equal(t, "invoice", Kind[invoice]())
	assert.Equal(t, "", Kind[fullName]())
	assert.Equal(t, "", Kind[map[string]any]())
}

func TestClone(t *testing.T) {
	orig := New(nested{
		Title: "a",
		Tags:  []string{"x"},
		Owner: &fullName{First: "Ada"},
	}, map[string]string{"k": "v"})

	c := orig.Clone()
	require.Equal(t, orig, c)

	c.Meta.Tags[0] = "changed"
	c.Meta.Owner.First = "Grace"
	c.Data["k"] = "changed"

	assert.Equal(t, "x", orig.Meta.Tags[0])
	assert.Equal(t, "Ada", orig.Meta.Owner.First)
	assert.Equal(t, "v", orig.Data["k"])

	assert.True(t, Payload[nested]{}.Clone().IsZero())
}

func TestValueScan(t *testing.T) {
	in := New(fullName{First: "Ada", Remark: "r"}, map[string]string{"a": "b"})
	v, err := in.Value()
	require.NoError(t, err)
	s, ok := v.(string)
	require.True(t, ok, "Value should return a string, got %T", v)

	var fromString, fromBytes Payload[fullName]
	require.NoError(t, fromString.Scan(s))
	require.NoError(t, fromBytes.Scan([]byte(s)))
	assert.Equal(t, in, fromString)
	assert.Equal(t, in, fromBytes)
}

func TestScan_Invalid(t *testing.T) {
	var p Payload[fullName]
	assert.ErrorIs(t, p.Scan(nil), ErrMalformed)
	assert.ErrorIs(t, p.Scan(42), ErrMalformed)
	assert.ErrorIs(t, p.Scan([]byte(`{"meta":{"value":"x"},"data":null}`)), ErrSchemaMismatch)
	assert.True(t, p.IsZero(), "failed scans leave the destination untouched")
}

func TestValue_Unencodable(t *testing.T) {
	_, err := New(measurement{Reading: math.NaN()}, nil).Value()
	assert.ErrorIs(t, err, ErrUnencodable)
}
