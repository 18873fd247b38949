package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/storage"
	"github.com/xwb1989/sqlparser"
)

// TableSchema is a table definition parsed from DDL, before it is registered in a catalog.
type TableSchema struct {
	Name string
	Desc *storage.TupleDesc
}

// columnType maps a SQL column type to a storage type. Integer types are stored as 64-bit integers and
// character types as fixed-width strings; everything else is rejected.
func columnType(sqlType string) (common.Type, bool) {
	switch strings.ToLower(sqlType) {
	case "int", "integer", "bigint", "smallint", "tinyint", "mediumint":
		return common.IntType, true
	case "char", "varchar", "text", "tinytext":
		return common.StringType, true
	}
	return common.DefaultType, false
}

// parseCreateTable converts a CREATE TABLE statement into a TableSchema.
func parseCreateTable(ddl *sqlparser.DDL) (TableSchema, error) {
	name := ddl.NewName.Name.String()
	if name == "" {
		name = ddl.Table.Name.String()
	}
	if ddl.TableSpec == nil || len(ddl.TableSpec.Columns) == 0 {
		return TableSchema{}, common.NewError(common.ConfigurationError, "table '%s' declares no columns", name)
	}

	types := make([]common.Type, len(ddl.TableSpec.Columns))
	names := make([]string, len(ddl.TableSpec.Columns))
	for i, col := range ddl.TableSpec.Columns {
		t, ok := columnType(col.Type.Type)
		if !ok {
			return TableSchema{}, common.NewError(common.ConfigurationError,
				"column %s.%s: unsupported type %s", name, col.Name.String(), col.Type.Type)
		}
		types[i] = t
		names[i] = col.Name.String()
	}
	if err := storage.CheckTupleWidth(types); err != nil {
		return TableSchema{}, fmt.Errorf("table '%s': %w", name, err)
	}
	return TableSchema{Name: name, Desc: storage.NewTupleDesc(types, names)}, nil
}

// ParseSchema parses a sequence of semicolon separated CREATE TABLE statements. Any other kind of statement is
// a ConfigurationError.
func ParseSchema(ddl string) ([]TableSchema, error) {
	tokens := sqlparser.NewStringTokenizer(ddl)
	var schemas []TableSchema
	for {
		stmt, err := sqlparser.ParseNext(tokens)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, common.NewError(common.ConfigurationError, "parse schema: %v", err)
		}
		create, ok := stmt.(*sqlparser.DDL)
		if !ok || create.Action != sqlparser.CreateStr {
			return nil, common.NewError(common.ConfigurationError,
				"only CREATE TABLE statements are supported, got: %s", sqlparser.String(stmt))
		}
		schema, err := parseCreateTable(create)
		if err != nil {
			return nil, err
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// LoadSchema reads CREATE TABLE statements from the file at path and adds every table to the catalog, creating
// its heap file when the catalog has a page fetcher. Tables before the first failing one stay registered.
func (c *Catalog) LoadSchema(path string) ([]*Table, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}
	schemas, err := ParseSchema(string(content))
	if err != nil {
		return nil, err
	}
	tables := make([]*Table, 0, len(schemas))
	for _, s := range schemas {
		t, err := c.AddTable(s.Name, s.Desc)
		if err != nil {
			return tables, err
		}
		tables = append(tables, t)
		if c.fetcher != nil {
			if _, err := c.GetHeapFile(t.Oid); err != nil {
				return tables, err
			}
		}
	}
	return tables, nil
}
