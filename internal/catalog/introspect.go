package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgporter/pgporter/internal/dbconn"
)

// Schemas lists user schemas, excluding Postgres internals.
func Schemas(ctx context.Context, db *sql.DB) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT nspname
		FROM pg_namespace
		WHERE nspname NOT IN ('pg_catalog', 'information_schema', 'pg_toast')
		  AND nspname NOT LIKE 'pg_temp_%'
		  AND nspname NOT LIKE 'pg_toast_temp_%'
		ORDER BY nspname
	`)
	if err != nil {
		return nil, fmt.Errorf("querying schemas: %w", err)
	}
	defer rows.Close()

	var schemas []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning schema name: %w", err)
		}
		schemas = append(schemas, name)
	}
	return schemas, rows.Err()
}

// TableNames lists base tables in a schema, alphabetically.
func TableNames(ctx context.Context, db *sql.DB, schema string) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("querying tables in %s: %w", schema, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableDetail gets column, key, and row-count info for a single table.
func TableDetail(ctx context.Context, db *sql.DB, schema, name string) (*Table, error) {
	t := &Table{Schema: schema, Name: name}

	// Columns.
	colRows, err := db.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name, is_nullable,
		       COALESCE(column_default, ''), ordinal_position,
		       COALESCE(character_maximum_length, 0),
		       COALESCE(numeric_precision, 0), COALESCE(numeric_scale, 0)
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, schema, name)
	if err != nil {
		return nil, fmt.Errorf("querying columns: %w", err)
	}
	defer colRows.Close()

	for colRows.Next() {
		var c Column
		var nullable string
		if err := colRows.Scan(&c.Name, &c.DataType, &c.UDTName, &nullable, &c.Default,
			&c.OrdinalPos, &c.CharMaxLen, &c.NumPrec, &c.NumScale); err != nil {
			return nil, fmt.Errorf("scanning column: %w", err)
		}
		c.IsNullable = nullable == "YES"
		t.Columns = append(t.Columns, c)
	}
	if err := colRows.Err(); err != nil {
		return nil, err
	}

	// Primary key columns in index order.
	pkRows, err := db.QueryContext(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = $1::regclass AND i.indisprimary
		ORDER BY array_position(i.indkey, a.attnum)
	`, dbconn.QualifiedName(schema, name))
	if err != nil {
		return nil, fmt.Errorf("querying primary key: %w", err)
	}
	defer pkRows.Close()

	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			return nil, fmt.Errorf("scanning primary key column: %w", err)
		}
		t.PrimaryKey = append(t.PrimaryKey, col)
	}
	if err := pkRows.Err(); err != nil {
		return nil, err
	}

	// Foreign keys, including the referenced side's schema.
	fkRows, err := db.QueryContext(ctx, `
		SELECT tc.constraint_name, kcu.column_name,
		       ccu.table_schema AS ref_schema, ccu.table_name AS ref_table,
		       ccu.column_name AS ref_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
		  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.table_schema = $1
		  AND tc.table_name = $2
		  AND tc.constraint_type = 'FOREIGN KEY'
		ORDER BY tc.constraint_name
	`, schema, name)
	if err != nil {
		return nil, fmt.Errorf("querying foreign keys: %w", err)
	}
	defer fkRows.Close()

	for fkRows.Next() {
		var fk ForeignKey
		if err := fkRows.Scan(&fk.ConstraintName, &fk.Column, &fk.RefSchema, &fk.RefTable, &fk.RefColumn); err != nil {
			return nil, fmt.Errorf("scanning foreign key: %w", err)
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	if err := fkRows.Err(); err != nil {
		return nil, err
	}

	// Exact row count, measured once up front.
	countSQL := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, dbconn.QualifiedName(schema, name))
	if err := db.QueryRowContext(ctx, countSQL).Scan(&t.RowCount); err != nil {
		return nil, fmt.Errorf("counting rows: %w", err)
	}

	return t, nil
}

// Tables introspects every base table in a schema. Any single table failing
// fails the whole call; callers that want per-table tolerance iterate
// TableNames + TableDetail themselves.
func Tables(ctx context.Context, db *sql.DB, schema string) ([]Table, error) {
	names, err := TableNames(ctx, db, schema)
	if err != nil {
		return nil, err
	}
	var tables []Table
	for _, name := range names {
		t, err := TableDetail(ctx, db, schema, name)
		if err != nil {
			return nil, fmt.Errorf("introspecting table %s.%s: %w", schema, name, err)
		}
		tables = append(tables, *t)
	}
	return tables, nil
}

// Views gets user-defined view definitions in a schema.
func Views(ctx context.Context, db *sql.DB, schema string) ([]View, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT viewname, definition
		FROM pg_views
		WHERE schemaname = $1
		ORDER BY viewname
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("querying views: %w", err)
	}
	defer rows.Close()

	var views []View
	for rows.Next() {
		v := View{Schema: schema}
		if err := rows.Scan(&v.Name, &v.Definition); err != nil {
			return nil, fmt.Errorf("scanning view: %w", err)
		}
		views = append(views, v)
	}
	return views, rows.Err()
}

// Sequences gets sequences owned by table columns in a schema.
func Sequences(ctx context.Context, db *sql.DB, schema string) ([]Sequence, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.relname AS seq_name,
		       t.relname AS table_name,
		       a.attname AS column_name
		FROM pg_class s
		JOIN pg_depend d ON d.objid = s.oid
		JOIN pg_class t ON d.refobjid = t.oid
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = d.refobjsubid
		JOIN pg_namespace n ON s.relnamespace = n.oid
		WHERE s.relkind = 'S'
		  AND n.nspname = $1
		ORDER BY s.relname
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("querying sequences: %w", err)
	}
	defer rows.Close()

	var seqs []Sequence
	for rows.Next() {
		s := Sequence{Schema: schema}
		if err := rows.Scan(&s.Name, &s.TableName, &s.ColumnName); err != nil {
			return nil, fmt.Errorf("scanning sequence: %w", err)
		}
		seqs = append(seqs, s)
	}
	return seqs, rows.Err()
}

// Extensions gets installed extensions, excluding the always-present plpgsql.
func Extensions(ctx context.Context, db *sql.DB) ([]Extension, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT extname, extversion
		FROM pg_extension
		WHERE extname <> 'plpgsql'
		ORDER BY extname
	`)
	if err != nil {
		return nil, fmt.Errorf("querying extensions: %w", err)
	}
	defer rows.Close()

	var exts []Extension
	for rows.Next() {
		var e Extension
		if err := rows.Scan(&e.Name, &e.Version); err != nil {
			return nil, fmt.Errorf("scanning extension: %w", err)
		}
		exts = append(exts, e)
	}
	return exts, rows.Err()
}

// EnumTypes gets user-defined enums in a schema with labels in sort order.
func EnumTypes(ctx context.Context, db *sql.DB, schema string) ([]EnumType, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT t.typname, e.enumlabel
		FROM pg_type t
		JOIN pg_enum e ON e.enumtypid = t.oid
		JOIN pg_namespace n ON n.oid = t.typnamespace
		WHERE n.nspname = $1
		ORDER BY t.typname, e.enumsortorder
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("querying enum types: %w", err)
	}
	defer rows.Close()

	var enums []EnumType
	var cur *EnumType
	for rows.Next() {
		var typName, label string
		if err := rows.Scan(&typName, &label); err != nil {
			return nil, fmt.Errorf("scanning enum label: %w", err)
		}
		if cur == nil || cur.Name != typName {
			enums = append(enums, EnumType{Schema: schema, Name: typName})
			cur = &enums[len(enums)-1]
		}
		cur.Labels = append(cur.Labels, label)
	}
	return enums, rows.Err()
}

// Functions gets user-defined functions in a schema. Functions owned by an
// extension are excluded; replaying them belongs to the extension, not us.
func Functions(ctx context.Context, db *sql.DB, schema string) ([]Function, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT p.proname, pg_get_functiondef(p.oid)
		FROM pg_proc p
		JOIN pg_namespace n ON n.oid = p.pronamespace
		WHERE n.nspname = $1
		  AND p.prokind = 'f'
		  AND NOT EXISTS (
		      SELECT 1 FROM pg_depend d
		      WHERE d.objid = p.oid AND d.deptype = 'e'
		  )
		ORDER BY p.proname
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("querying functions: %w", err)
	}
	defer rows.Close()

	var fns []Function
	for rows.Next() {
		f := Function{Schema: schema}
		if err := rows.Scan(&f.Name, &f.Definition); err != nil {
			return nil, fmt.Errorf("scanning function: %w", err)
		}
		fns = append(fns, f)
	}
	return fns, rows.Err()
}

// Triggers gets user triggers in a schema (internal constraint triggers excluded).
func Triggers(ctx context.Context, db *sql.DB, schema string) ([]Trigger, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT c.relname, t.tgname, pg_get_triggerdef(t.oid)
		FROM pg_trigger t
		JOIN pg_class c ON c.oid = t.tgrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		WHERE n.nspname = $1
		  AND NOT t.tgisinternal
		ORDER BY c.relname, t.tgname
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	var trgs []Trigger
	for rows.Next() {
		trg := Trigger{Schema: schema}
		if err := rows.Scan(&trg.Table, &trg.Name, &trg.Definition); err != nil {
			return nil, fmt.Errorf("scanning trigger: %w", err)
		}
		trgs = append(trgs, trg)
	}
	return trgs, rows.Err()
}

// Indexes gets indexes in a schema that do not back a constraint
// (primary key and unique constraints replay via their constraint DDL).
func Indexes(ctx context.Context, db *sql.DB, schema string) ([]Index, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT i.tablename, i.indexname, i.indexdef
		FROM pg_indexes i
		WHERE i.schemaname = $1
		  AND NOT EXISTS (
		      SELECT 1 FROM pg_constraint con
		      JOIN pg_class rel ON rel.oid = con.conindid
		      JOIN pg_namespace n ON n.oid = rel.relnamespace
		      WHERE n.nspname = i.schemaname AND rel.relname = i.indexname
		  )
		ORDER BY i.tablename, i.indexname
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("querying indexes: %w", err)
	}
	defer rows.Close()

	var idxs []Index
	for rows.Next() {
		idx := Index{Schema: schema}
		if err := rows.Scan(&idx.Table, &idx.Name, &idx.Definition); err != nil {
			return nil, fmt.Errorf("scanning index: %w", err)
		}
		idxs = append(idxs, idx)
	}
	return idxs, rows.Err()
}

// Constraints gets foreign key, unique, and check constraints in a schema.
// These are emitted after all tables exist so cyclic references never block
// table creation.
func Constraints(ctx context.Context, db *sql.DB, schema string) ([]Constraint, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT rel.relname, con.conname, pg_get_constraintdef(con.oid)
		FROM pg_constraint con
		JOIN pg_class rel ON rel.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = con.connamespace
		WHERE n.nspname = $1
		  AND con.contype IN ('f', 'u', 'c')
		ORDER BY rel.relname, con.conname
	`, schema)
	if err != nil {
		return nil, fmt.Errorf("querying constraints: %w", err)
	}
	defer rows.Close()

	var cons []Constraint
	for rows.Next() {
		c := Constraint{Schema: schema}
		if err := rows.Scan(&c.Table, &c.Name, &c.Definition); err != nil {
			return nil, fmt.Errorf("scanning constraint: %w", err)
		}
		cons = append(cons, c)
	}
	return cons, rows.Err()
}
