package export

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/pgporter/pgporter/internal/catalog"
	"github.com/pgporter/pgporter/internal/dbconn"
)

// Kind tags the closed set of shapes a column value can take once it has
// been read. Classification happens exactly once per value, at scan time,
// so rendering never re-inspects runtime types.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindTime
	KindBytes
	KindJSON
)

// Value is one column value in tagged form.
type Value struct {
	Kind  Kind
	Bool  bool
	Num   string // numeric literal exactly as the driver reported it
	Str   string
	Time  time.Time
	Bytes []byte
	JSON  []byte // compact JSON text
}

// timeFormat renders timestamps as ISO 8601 with millisecond precision.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func isJSONColumn(col catalog.Column) bool {
	return col.UDTName == "json" || col.UDTName == "jsonb"
}

func isNumericColumn(col catalog.Column) bool {
	// money is deliberately absent: the driver reports it as locale-formatted
	// text ("$1,234.56"), which is not a bare numeric literal. It takes the
	// quoted-string branch and Postgres casts it back on replay.
	switch col.UDTName {
	case "int2", "int4", "int8", "numeric", "float4", "float8", "oid":
		return true
	}
	return false
}

// isBareNumeric reports whether s can stand unquoted in SQL and raw in
// JSON. numeric columns can hold NaN and Infinity, which Postgres only
// accepts in quoted form, and JSON not at all.
func isBareNumeric(s string) bool {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Classify converts a driver-scanned value into its tagged form. The column
// metadata disambiguates the []byte and string cases, which the driver uses
// for bytea, json, arrays and plain text alike.
func Classify(v any, col catalog.Column) Value {
	switch tv := v.(type) {
	case nil:
		return Value{Kind: KindNull}
	case bool:
		return Value{Kind: KindBool, Bool: tv}
	case int64:
		return Value{Kind: KindNumber, Num: strconv.FormatInt(tv, 10)}
	case float64:
		return Value{Kind: KindNumber, Num: strconv.FormatFloat(tv, 'g', -1, 64)}
	case time.Time:
		return Value{Kind: KindTime, Time: tv}
	case []byte:
		if isJSONColumn(col) {
			return jsonValue(tv)
		}
		if col.UDTName == "bytea" {
			return Value{Kind: KindBytes, Bytes: tv}
		}
		if isNumericColumn(col) {
			return Value{Kind: KindNumber, Num: string(tv)}
		}
		return Value{Kind: KindString, Str: string(tv)}
	case string:
		if isJSONColumn(col) {
			return jsonValue([]byte(tv))
		}
		if isNumericColumn(col) {
			return Value{Kind: KindNumber, Num: tv}
		}
		return Value{Kind: KindString, Str: tv}
	default:
		return Value{Kind: KindString, Str: fmt.Sprint(tv)}
	}
}

// jsonValue compacts raw JSON text. Input that fails to compact is kept
// verbatim rather than dropped.
func jsonValue(raw []byte) Value {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return Value{Kind: KindJSON, JSON: raw}
	}
	return Value{Kind: KindJSON, JSON: buf.Bytes()}
}

// SQLLiteral renders the value as a SQL literal suitable for embedding in
// an INSERT statement. Strings and JSON double embedded single quotes,
// timestamps become quoted ISO 8601, bytea becomes the hex form.
func (v Value) SQLLiteral() string {
	switch v.Kind {
	case KindNull:
		return "NULL"
	case KindBool:
		return strconv.FormatBool(v.Bool)
	case KindNumber:
		if isBareNumeric(v.Num) {
			return v.Num
		}
		return dbconn.QuoteLiteral(v.Num)
	case KindTime:
		return dbconn.QuoteLiteral(v.Time.UTC().Format(timeFormat))
	case KindBytes:
		return `'\x` + hex.EncodeToString(v.Bytes) + `'`
	case KindJSON:
		return dbconn.QuoteLiteral(string(v.JSON))
	default:
		return dbconn.QuoteLiteral(v.Str)
	}
}

// JSONValue returns the value in a form json.Marshal embeds natively:
// null, bool and number stay native, timestamps and bytea become strings,
// JSON column text passes through untouched.
func (v Value) JSONValue() any {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		if isBareNumeric(v.Num) {
			return json.RawMessage(v.Num)
		}
		return v.Num
	case KindTime:
		return v.Time.UTC().Format(timeFormat)
	case KindBytes:
		return `\x` + hex.EncodeToString(v.Bytes)
	case KindJSON:
		return json.RawMessage(v.JSON)
	default:
		return v.Str
	}
}

// InsertStatement renders one row as a single INSERT naming every column.
// ON CONFLICT DO NOTHING keeps replays of the same artifact from failing
// on rows that already landed.
func InsertStatement(schema, table string, columns []string, row []Value) string {
	var sb strings.Builder
	sb.WriteString("INSERT INTO ")
	sb.WriteString(dbconn.QualifiedName(schema, table))
	sb.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(dbconn.QuoteIdent(c))
	}
	sb.WriteString(") VALUES (")
	for i, v := range row {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(v.SQLLiteral())
	}
	sb.WriteString(") ON CONFLICT DO NOTHING;")
	return sb.String()
}
