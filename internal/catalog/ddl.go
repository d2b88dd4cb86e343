package catalog

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pgporter/pgporter/internal/dbconn"
)

// pgTypeName maps information_schema data types to PostgreSQL DDL type names.
// information_schema uses verbose names like "character varying" while DDL
// conventionally uses "varchar".
func pgTypeName(infoSchemaType string) string {
	switch infoSchemaType {
	case "character varying":
		return "varchar"
	case "character":
		return "char"
	case "timestamp without time zone":
		return "timestamp"
	case "timestamp with time zone":
		return "timestamptz"
	case "time without time zone":
		return "time"
	case "time with time zone":
		return "timetz"
	case "double precision":
		return "float8"
	case "boolean":
		return "bool"
	default:
		return infoSchemaType
	}
}

// arrayElementType maps an array's udt_name ("_int4") to its element DDL type.
func arrayElementType(udtName string) string {
	elem := strings.TrimPrefix(udtName, "_")
	switch elem {
	case "int2":
		return "smallint"
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "float4":
		return "real"
	case "float8":
		return "float8"
	case "bool":
		return "bool"
	default:
		return elem
	}
}

// ColumnType renders the DDL type for a column, preserving length, precision,
// array, and user-defined type information.
func ColumnType(c Column) string {
	switch c.DataType {
	case "ARRAY":
		return arrayElementType(c.UDTName) + "[]"
	case "USER-DEFINED":
		return c.UDTName
	case "character varying", "character":
		base := pgTypeName(c.DataType)
		if c.CharMaxLen > 0 {
			return fmt.Sprintf("%s(%d)", base, c.CharMaxLen)
		}
		return base
	case "numeric":
		if c.NumPrec > 0 {
			if c.NumScale > 0 {
				return fmt.Sprintf("numeric(%d,%d)", c.NumPrec, c.NumScale)
			}
			return fmt.Sprintf("numeric(%d)", c.NumPrec)
		}
		return "numeric"
	default:
		return pgTypeName(c.DataType)
	}
}

// CreateSchemaSQL renders plain CREATE SCHEMA. The replay transformer owns
// the IF NOT EXISTS rewrite, so there is exactly one place that applies it.
func CreateSchemaSQL(schema string) string {
	return fmt.Sprintf("CREATE SCHEMA %s;", dbconn.QuoteIdent(schema))
}

// CreateTableSQL generates CREATE TABLE IF NOT EXISTS DDL from a Table.
// Foreign keys are deliberately not inlined; they are added afterwards by
// AddConstraintSQL so that cyclic table graphs never block creation.
func CreateTableSQL(t Table) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "CREATE TABLE IF NOT EXISTS %s (\n", dbconn.QualifiedName(t.Schema, t.Name))

	for i, col := range t.Columns {
		fmt.Fprintf(&sb, "  %s %s", dbconn.QuoteIdent(col.Name), ColumnType(col))
		if !col.IsNullable {
			sb.WriteString(" NOT NULL")
		}
		if col.Default != "" {
			fmt.Fprintf(&sb, " DEFAULT %s", col.Default)
		}
		if i < len(t.Columns)-1 || len(t.PrimaryKey) > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}

	if len(t.PrimaryKey) > 0 {
		quoted := make([]string, len(t.PrimaryKey))
		for i, col := range t.PrimaryKey {
			quoted[i] = dbconn.QuoteIdent(col)
		}
		fmt.Fprintf(&sb, "  PRIMARY KEY (%s)\n", strings.Join(quoted, ", "))
	}

	sb.WriteString(");")
	return sb.String()
}

// AddConstraintSQL generates an ALTER TABLE ADD CONSTRAINT wrapped in a
// duplicate_object guard, so re-running it against a target that already has
// the constraint is a no-op instead of an error.
func AddConstraintSQL(c Constraint) string {
	return fmt.Sprintf(`DO $$ BEGIN
  ALTER TABLE %s ADD CONSTRAINT %s %s;
EXCEPTION WHEN duplicate_object THEN NULL;
END $$;`,
		dbconn.QualifiedName(c.Schema, c.Table), dbconn.QuoteIdent(c.Name), c.Definition)
}

var createIndexRe = regexp.MustCompile(`(?i)^(CREATE(?:\s+UNIQUE)?\s+INDEX)\s+`)

// CreateIndexSQL rewrites a pg_get_indexdef statement to carry IF NOT EXISTS.
func CreateIndexSQL(idx Index) string {
	def := strings.TrimSpace(idx.Definition)
	rewritten := createIndexRe.ReplaceAllString(def, "$1 IF NOT EXISTS ")
	if !strings.HasSuffix(rewritten, ";") {
		rewritten += ";"
	}
	return rewritten
}

// CreateViewSQL generates a CREATE OR REPLACE VIEW statement.
func CreateViewSQL(v View) string {
	return fmt.Sprintf("CREATE OR REPLACE VIEW %s AS %s",
		dbconn.QualifiedName(v.Schema, v.Name), strings.TrimSpace(v.Definition))
}

// CreateSequenceSQL generates CREATE SEQUENCE IF NOT EXISTS. Serial and
// identity columns recreate their sequences implicitly; emitting the
// sequence anyway keeps explicitly created ones alive.
func CreateSequenceSQL(s Sequence) string {
	return fmt.Sprintf("CREATE SEQUENCE IF NOT EXISTS %s;", dbconn.QualifiedName(s.Schema, s.Name))
}

// CreateExtensionSQL generates CREATE EXTENSION IF NOT EXISTS.
func CreateExtensionSQL(e Extension) string {
	return fmt.Sprintf("CREATE EXTENSION IF NOT EXISTS %s;", dbconn.QuoteIdent(e.Name))
}

// CreateEnumSQL generates a CREATE TYPE ... AS ENUM wrapped in a
// duplicate_object guard.
func CreateEnumSQL(e EnumType) string {
	quoted := make([]string, len(e.Labels))
	for i, l := range e.Labels {
		quoted[i] = dbconn.QuoteLiteral(l)
	}
	return fmt.Sprintf(`DO $$ BEGIN
  CREATE TYPE %s AS ENUM (%s);
EXCEPTION WHEN duplicate_object THEN NULL;
END $$;`,
		dbconn.QualifiedName(e.Schema, e.Name), strings.Join(quoted, ", "))
}
