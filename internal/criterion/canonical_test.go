package criterion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_BooleanComposition(t *testing.T) {
	c := NewAnd(
		Equals{Field: "feature.properties.status", Value: StringValue("active")},
		Not{Child: Equals{Field: "feature.properties.owner", Value: StringValue("bob")}},
	)

	data, err := MarshalCanonical(c)
	require.NoError(t, err)

	want := `{"children":[` +
		`{"field":"feature.properties.status","type":"equals","value":{"kind":"STRING","text":"active"}},` +
		`{"child":{"field":"feature.properties.owner","type":"equals","value":{"kind":"STRING","text":"bob"}},"type":"not"}` +
		`],"type":"and"}`
	assert.Equal(t, want, string(data))
}

func TestMarshalCanonical_OpenRange(t *testing.T) {
	c := Between{Field: "feature.properties.size", Lower: Int32(10), LowerInclusive: true, UpperInclusive: true}

	data, err := MarshalCanonical(c)
	require.NoError(t, err)

	assert.Equal(t,
		`{"field":"feature.properties.size","lower":{"kind":"INTEGER","text":"10"},"lower_inclusive":true,"type":"between","upper_inclusive":true}`,
		string(data))
}

func TestMarshalCanonical_Leaves(t *testing.T) {
	testCases := []struct {
		name string
		c    Criterion
		want string
	}{
		{
			name: "boolean",
			c:    BooleanMatch{Field: "f", Value: false},
			want: `{"field":"f","type":"boolean","value":false}`,
		},
		{
			name: "double",
			c:    NumberMatch{Field: "f", Value: Float64(1.5)},
			want: `{"field":"f","type":"number","value":{"kind":"DOUBLE","text":"1.5"}}`,
		},
		{
			name: "date",
			c:    Equals{Field: "f", Value: NewDate(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))},
			want: `{"field":"f","type":"equals","value":{"kind":"DATE","text":"2024-03-01T00:00:00.000000000Z"}}`,
		},
		{
			name: "pattern keeps html characters",
			c:    Pattern{Field: "f", Pattern: "<a&b>*"},
			want: `{"field":"f","pattern":"<a&b>*","type":"pattern"}`,
		},
		{
			name: "escapes",
			c:    Equals{Field: "f", Value: StringValue("say \"hi\"\\\n\x01")},
			want: `{"field":"f","type":"equals","value":{"kind":"STRING","text":"say \"hi\"\\\n\u0001"}}`,
		},
		{
			name: "all",
			c:    All{},
			want: `{"type":"all"}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := MarshalCanonical(tc.c)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(data))
		})
	}
}

func TestMarshalCanonical_NFC(t *testing.T) {
	decomposed := Equals{Field: "f", Value: StringValue("e\u0301")}
	composed := Equals{Field: "f", Value: StringValue("\u00e9")}

	a, err := MarshalCanonical(decomposed)
	require.NoError(t, err)
	b, err := MarshalCanonical(composed)
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestMarshalCanonical_Deterministic(t *testing.T) {
	first, err := MarshalCanonical(sampleTree())
	require.NoError(t, err)
	for i := 0; i < 20; i++ {
		again, err := MarshalCanonical(sampleTree())
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestMarshalCanonical_RejectsMissingValue(t *testing.T) {
	_, err := MarshalCanonical(NewAnd(Equals{Field: "f"}))
	assert.Error(t, err)
}

func TestEncodeCanonical(t *testing.T) {
	data, err := EncodeCanonical(map[string]any{
		"z":     []any{"b", "a"},
		"a":     true,
		"inner": map[string]any{"q": "x\"y"},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"a":true,"inner":{"q":"x\"y"},"z":["b","a"]}`, string(data))

	_, err = EncodeCanonical(map[string]any{"n": 1})
	require.Error(t, err)
}
