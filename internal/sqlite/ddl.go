package sqlite

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/lowercasename/eggcms/pkg/schema"
)

// quoteIdent quotes a table or column name.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteString renders a SQL string literal.
func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// defaultLiteral renders a field default as a SQL literal.
func defaultLiteral(v any) string {
	switch x := v.(type) {
	case string:
		return quoteString(x)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case json.Number:
		return x.String()
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return quoteString(fmt.Sprint(x))
		}
		return quoteString(string(data))
	}
}

// columnDef renders one field column. NOT NULL is only emitted when creating a
// table; SQLite cannot add a NOT NULL column without a default to existing rows.
func columnDef(f schema.FieldDefinition, create bool) string {
	var b strings.Builder
	b.WriteString(quoteIdent(f.Name))
	b.WriteByte(' ')
	b.WriteString(f.Type.SQLType())
	if create && f.Required {
		b.WriteString(" NOT NULL")
	}
	if f.HasDefault() {
		b.WriteString(" DEFAULT ")
		b.WriteString(defaultLiteral(f.Default))
	}
	return b.String()
}

// GenerateTableSQL returns the CREATE TABLE statement for a table-backed
// schema: id first, then one column per field in declared order, the draft
// flag for collections, then the timestamps.
func GenerateTableSQL(def *schema.Definition) string {
	columns := make([]string, 0, len(def.Fields)+4)
	columns = append(columns, quoteIdent(colID)+" TEXT PRIMARY KEY")
	for _, f := range def.Fields {
		columns = append(columns, columnDef(f, true))
	}
	if def.DraftsEnabled() {
		columns = append(columns, quoteIdent(colDraft)+" INTEGER DEFAULT 1")
	}
	columns = append(columns,
		quoteIdent(colCreatedAt)+" TEXT",
		quoteIdent(colUpdatedAt)+" TEXT",
	)
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)",
		quoteIdent(def.Name), strings.Join(columns, ",\n  "))
}

// AddColumnSQL returns the ALTER TABLE statement adding a field's column.
func AddColumnSQL(table string, f schema.FieldDefinition) string {
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", quoteIdent(table), columnDef(f, false))
}
