// Package catalog reads schema metadata from a PostgreSQL database and
// renders it back as idempotent DDL.
package catalog

// TableID identifies a table within a run.
type TableID struct {
	Schema string
	Name   string
}

func (id TableID) String() string {
	return id.Schema + "." + id.Name
}

// Column describes one table column.
type Column struct {
	Name       string
	DataType   string // information_schema data_type ("character varying", "ARRAY", ...)
	UDTName    string // underlying type name ("varchar", "_int4", enum name, ...)
	IsNullable bool
	Default    string
	OrdinalPos int
	CharMaxLen int // 0 when not applicable
	NumPrec    int // 0 when not applicable
	NumScale   int
}

// ForeignKey describes a single-column foreign key reference.
type ForeignKey struct {
	ConstraintName string
	Column         string
	RefSchema      string
	RefTable       string
	RefColumn      string
}

// Table describes one base table.
type Table struct {
	Schema      string
	Name        string
	Columns     []Column
	PrimaryKey  []string // in index order; empty when the table has no PK
	ForeignKeys []ForeignKey
	RowCount    int64
}

func (t *Table) ID() TableID {
	return TableID{Schema: t.Schema, Name: t.Name}
}

// View is a user-defined view.
type View struct {
	Schema     string
	Name       string
	Definition string
}

// Sequence is a sequence owned by a table column.
type Sequence struct {
	Schema     string
	Name       string
	TableName  string
	ColumnName string
}

// Extension is an installed extension (plpgsql excluded).
type Extension struct {
	Name    string
	Version string
}

// EnumType is a user-defined enum with its labels in sort order.
type EnumType struct {
	Schema string
	Name   string
	Labels []string
}

// Function is a user-defined function with its full definition.
type Function struct {
	Schema     string
	Name       string
	Definition string // pg_get_functiondef output
}

// Trigger is a user trigger with its full definition.
type Trigger struct {
	Schema     string
	Table      string
	Name       string
	Definition string // pg_get_triggerdef output
}

// Index is a non-constraint-backing index.
type Index struct {
	Schema     string
	Table      string
	Name       string
	Definition string // pg_get_indexdef output
}

// Constraint is a table constraint applied after table creation
// (foreign key, unique, or check).
type Constraint struct {
	Schema     string
	Table      string
	Name       string
	Definition string // pg_get_constraintdef output
}
