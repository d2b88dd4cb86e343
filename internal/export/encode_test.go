package export

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pgporter/pgporter/internal/catalog"
	"github.com/pgporter/pgporter/internal/testutil"
)

func col(udt string) catalog.Column {
	return catalog.Column{Name: "c", UDTName: udt}
}

func TestClassify(t *testing.T) {
	t.Parallel()
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

	tests := []struct {
		name string
		in   any
		col  catalog.Column
		want Kind
	}{
		{"nil", nil, col("text"), KindNull},
		{"bool", true, col("bool"), KindBool},
		{"int64", int64(42), col("int8"), KindNumber},
		{"float64", 3.25, col("float8"), KindNumber},
		{"time", ts, col("timestamptz"), KindTime},
		{"text bytes", []byte("hello"), col("text"), KindString},
		{"bytea", []byte{0xde, 0xad}, col("bytea"), KindBytes},
		{"json bytes", []byte(`{"a": 1}`), col("jsonb"), KindJSON},
		{"json string", `{"a": 1}`, col("json"), KindJSON},
		{"numeric bytes", []byte("12.50"), col("numeric"), KindNumber},
		{"money is text", []byte("$1,234.56"), col("money"), KindString},
		{"plain string", "hi", col("text"), KindString},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Classify(tt.in, tt.col)
			testutil.Equal(t, tt.want, got.Kind)
		})
	}
}

func TestSQLLiteral(t *testing.T) {
	t.Parallel()
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

	tests := []struct {
		name string
		in   Value
		want string
	}{
		{"null", Value{Kind: KindNull}, "NULL"},
		{"true", Value{Kind: KindBool, Bool: true}, "true"},
		{"false", Value{Kind: KindBool, Bool: false}, "false"},
		{"integer", Value{Kind: KindNumber, Num: "42"}, "42"},
		{"decimal", Value{Kind: KindNumber, Num: "12.50"}, "12.50"},
		{"scientific", Value{Kind: KindNumber, Num: "1e5"}, "1e5"},
		{"NaN quoted", Value{Kind: KindNumber, Num: "NaN"}, "'NaN'"},
		{"Infinity quoted", Value{Kind: KindNumber, Num: "Infinity"}, "'Infinity'"},
		{"-Infinity quoted", Value{Kind: KindNumber, Num: "-Infinity"}, "'-Infinity'"},
		{"string", Value{Kind: KindString, Str: "hello"}, "'hello'"},
		{"quote doubling", Value{Kind: KindString, Str: "it's"}, "'it''s'"},
		{"two quotes", Value{Kind: KindString, Str: "a'b'c"}, "'a''b''c'"},
		{"timestamp ms precision", Value{Kind: KindTime, Time: ts}, "'2025-03-14T09:26:53.589Z'"},
		{"bytea hex", Value{Kind: KindBytes, Bytes: []byte{0xde, 0xad, 0xbe, 0xef}}, `'\xdeadbeef'`},
		{"json", Value{Kind: KindJSON, JSON: []byte(`{"a":1}`)}, `'{"a":1}'`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			testutil.Equal(t, tt.want, tt.in.SQLLiteral())
		})
	}
}

// money scans as locale-formatted text; it must land quoted so the INSERT
// parses and Postgres casts it back on replay.
func TestSQLLiteralMoney(t *testing.T) {
	t.Parallel()
	v := Classify([]byte("$1,234.56"), col("money"))
	testutil.Equal(t, "'$1,234.56'", v.SQLLiteral())
}

// JSON values with embedded single quotes must come out with the quotes
// doubled and the JSON compacted.
func TestSQLLiteralJSONQuoteDoubling(t *testing.T) {
	t.Parallel()
	v := Classify([]byte(`{"a": "it's"}`), col("jsonb"))
	testutil.Equal(t, `'{"a":"it''s"}'`, v.SQLLiteral())
}

// Encoding the same information twice yields the same literal: classifying
// the rendered form of a value re-renders identically.
func TestEncodeIdempotent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   any
		col  catalog.Column
	}{
		{"string", "o'brien", col("text")},
		{"number", []byte("1234.5"), col("numeric")},
		{"json", []byte(`{"k": [1, 2, "three"]}`), col("jsonb")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			first := Classify(tt.in, tt.col)
			second := Classify(decodedForm(first), tt.col)
			testutil.Equal(t, first.SQLLiteral(), second.SQLLiteral())
		})
	}
}

// decodedForm simulates reading back the value a literal represents.
func decodedForm(v Value) any {
	switch v.Kind {
	case KindNumber:
		return v.Num
	case KindJSON:
		return []byte(v.JSON)
	default:
		return v.Str
	}
}

func TestJSONValue(t *testing.T) {
	t.Parallel()
	ts := time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)

	testutil.Nil(t, Value{Kind: KindNull}.JSONValue())
	testutil.Equal(t, true, Value{Kind: KindBool, Bool: true}.JSONValue().(bool))
	testutil.Equal(t, "2025-03-14T09:26:53.589Z", Value{Kind: KindTime, Time: ts}.JSONValue().(string))
	testutil.Equal(t, `\xdead`, Value{Kind: KindBytes, Bytes: []byte{0xde, 0xad}}.JSONValue().(string))
}

// NaN and Infinity are legal numeric column values but not legal JSON
// numbers; they have to marshal as strings, not raw tokens that would
// abort the whole table's encoding.
func TestJSONValueNonFiniteNumbers(t *testing.T) {
	t.Parallel()

	testutil.Equal(t, "NaN", Value{Kind: KindNumber, Num: "NaN"}.JSONValue().(string))
	testutil.Equal(t, "Infinity", Value{Kind: KindNumber, Num: "Infinity"}.JSONValue().(string))

	out, err := json.Marshal(map[string]any{"v": Value{Kind: KindNumber, Num: "NaN"}.JSONValue()})
	testutil.NoError(t, err)
	testutil.Equal(t, `{"v":"NaN"}`, string(out))
}

func TestInsertStatement(t *testing.T) {
	t.Parallel()

	row := []Value{
		{Kind: KindNumber, Num: "1"},
		{Kind: KindString, Str: "o'brien"},
		{Kind: KindNull},
	}
	got := InsertStatement("public", "users", []string{"id", "name", "bio"}, row)
	want := `INSERT INTO "public"."users" ("id", "name", "bio") VALUES (1, 'o''brien', NULL) ON CONFLICT DO NOTHING;`
	testutil.Equal(t, want, got)
}
