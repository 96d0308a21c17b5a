package store

import (
	"fmt"
	"strings"

	"github.com/Cetendo/EnergyLogger/internal/domain"
)

// Dialect holds the differences between the supported SQL engines.
type Dialect struct {
	Driver     string
	idColumn   string
	tsType     string
	realType   string
	intType    string
	textType   string
	dollarArgs bool
}

var (
	SQLite = Dialect{
		Driver:   "sqlite",
		idColumn: "id INTEGER PRIMARY KEY AUTOINCREMENT",
		tsType:   "INTEGER",
		realType: "REAL",
		intType:  "INTEGER",
		textType: "TEXT",
	}
	Postgres = Dialect{
		Driver:     "postgres",
		idColumn:   "id BIGSERIAL PRIMARY KEY",
		tsType:     "BIGINT",
		realType:   "DOUBLE PRECISION",
		intType:    "INTEGER",
		textType:   "TEXT",
		dollarArgs: true,
	}
)

// DialectFor resolves a configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "", "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pq":
		return Postgres, nil
	default:
		return Dialect{}, fmt.Errorf("%w: %q", ErrUnsupportedDriver, driver)
	}
}

// Placeholder returns the n-th (1-based) bind parameter.
func (d Dialect) Placeholder(n int) string {
	if d.dollarArgs {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

func (d Dialect) columnType(k domain.ColumnKind) string {
	switch k {
	case domain.KindInteger:
		return d.intType
	case domain.KindText:
		return d.textType
	default:
		return d.realType
	}
}

func (d Dialect) createTable(t domain.TableSchema) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(t.Table)
	b.WriteString(" (\n\t")
	b.WriteString(d.idColumn)
	b.WriteString(",\n\ttimestamp ")
	b.WriteString(d.tsType)
	b.WriteString(" NOT NULL")
	for _, c := range t.Columns {
		b.WriteString(",\n\t")
		b.WriteString(c.Name)
		b.WriteString(" ")
		b.WriteString(d.columnType(c.Kind))
	}
	b.WriteString("\n)")
	return b.String()
}

func (d Dialect) createIndex(t domain.TableSchema) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s(timestamp)", t.Table, t.Table)
}

func (d Dialect) insert(t domain.TableSchema) string {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(t.Table)
	b.WriteString(" (timestamp")
	for _, c := range t.Columns {
		b.WriteString(", ")
		b.WriteString(c.Name)
	}
	b.WriteString(") VALUES (")
	for i := 0; i <= len(t.Columns); i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Placeholder(i + 1))
	}
	b.WriteString(")")
	return b.String()
}

func (d Dialect) deleteBefore(t domain.TableSchema) string {
	return fmt.Sprintf("DELETE FROM %s WHERE timestamp < %s", t.Table, d.Placeholder(1))
}

func (d Dialect) selectLatest(t domain.TableSchema) string {
	var b strings.Builder
	b.WriteString("SELECT id, timestamp")
	for _, c := range t.Columns {
		b.WriteString(", ")
		b.WriteString(c.Name)
	}
	b.WriteString(" FROM ")
	b.WriteString(t.Table)
	b.WriteString(" ORDER BY timestamp DESC, id DESC LIMIT ")
	b.WriteString(d.Placeholder(1))
	return b.String()
}

func (d Dialect) count(t domain.TableSchema) string {
	return "SELECT COUNT(*) FROM " + t.Table
}
