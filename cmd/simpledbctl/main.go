package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mspronesti/simpledb"
	"github.com/mspronesti/simpledb/common"
	"github.com/mspronesti/simpledb/execution"
	"github.com/mspronesti/simpledb/planner"
	"github.com/mspronesti/simpledb/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	if err := run(os.Args[1], os.Args[2:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("simpledb control utility")
	fmt.Println("Usage:")
	fmt.Println("  simpledbctl create -schema <file.sql>")
	fmt.Println("  simpledbctl tables")
	fmt.Println("  simpledbctl insert -table <t> v1,v2,...")
	fmt.Println("  simpledbctl scan -table <t> [-limit n]")
	fmt.Println("  simpledbctl agg -table <t> -field <f> -op <min|max|sum|avg|count> [-group <g>]")
	fmt.Println("  simpledbctl delete -table <t> [-field <f> -eq <value>]")
	fmt.Println("Every command also takes -data <dir>, -config <file.yaml> and -explain.")
}

func run(cmd string, args []string, out io.Writer) error {
	switch cmd {
	case "create":
		return runCreate(args, out)
	case "tables":
		return runTables(args, out)
	case "insert":
		return runInsert(args, out)
	case "scan":
		return runScan(args, out)
	case "agg":
		return runAgg(args, out)
	case "delete":
		return runDelete(args, out)
	case "help", "-h", "--help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// dbFlags are the flags shared by every subcommand.
type dbFlags struct {
	dataDir    string
	configPath string
	explain    bool
}

func (f *dbFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.dataDir, "data", "", "data directory (overrides the config file)")
	fs.StringVar(&f.configPath, "config", "", "YAML configuration file")
	fs.BoolVar(&f.explain, "explain", false, "print the query plan before running it")
}

func (f *dbFlags) open() (*simpledb.GoDB, error) {
	cfg := simpledb.DefaultConfig()
	if f.configPath != "" {
		loaded, err := simpledb.LoadConfig(f.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if f.dataDir != "" {
		cfg.DataDir = f.dataDir
	}
	return simpledb.NewGoDB(cfg)
}

func runCreate(args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	var db dbFlags
	db.register(fs)
	schema := fs.String("schema", "", "file of CREATE TABLE statements")
	fs.Parse(args)
	if *schema == "" {
		return fmt.Errorf("-schema is required")
	}

	gdb, err := db.open()
	if err != nil {
		return err
	}
	defer closeDB(gdb, &err)

	tables, err := gdb.Catalog.LoadSchema(*schema)
	for _, t := range tables {
		fmt.Fprintf(out, "Created table %s (%s)\n", t.Name, t.TupleDesc())
	}
	return err
}

func runTables(args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("tables", flag.ExitOnError)
	var db dbFlags
	db.register(fs)
	fs.Parse(args)

	gdb, err := db.open()
	if err != nil {
		return err
	}
	defer closeDB(gdb, &err)

	for _, name := range gdb.Catalog.TableNames() {
		file, err := gdb.Table(name)
		if err != nil {
			return err
		}
		pages, err := file.NumPages()
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\t(%s)\t%d pages\t%s\n", name, file.TupleDesc(), pages,
			humanize.IBytes(uint64(pages*common.PageSize)))
	}
	return nil
}

func runInsert(args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("insert", flag.ExitOnError)
	var db dbFlags
	db.register(fs)
	table := fs.String("table", "", "table to insert into")
	fs.Parse(args)
	if *table == "" || fs.NArg() != 1 {
		return fmt.Errorf("usage: simpledbctl insert -table <t> v1,v2,...")
	}

	gdb, err := db.open()
	if err != nil {
		return err
	}
	defer closeDB(gdb, &err)

	oid, err := gdb.Catalog.GetTableID(*table)
	if err != nil {
		return err
	}
	desc, err := gdb.Catalog.GetTupleDesc(oid)
	if err != nil {
		return err
	}
	row, err := parseRow(desc, fs.Arg(0))
	if err != nil {
		return err
	}
	plan := planner.NewInsertNode(oid, planner.NewValuesNode(desc, []storage.Tuple{row}))
	return execute(gdb, plan, db.explain, func(rows []storage.Tuple, _ *storage.TupleDesc) {
		fmt.Fprintf(out, "Inserted %s rows\n", rows[0])
	}, out)
}

func parseRow(desc *storage.TupleDesc, text string) (storage.Tuple, error) {
	parts := strings.Split(text, ",")
	if len(parts) != desc.NumFields() {
		return storage.Tuple{}, fmt.Errorf("expected %d values for (%s), got %d", desc.NumFields(), desc, len(parts))
	}
	values := make([]common.Value, len(parts))
	for i, p := range parts {
		v, err := common.ParseValue(desc.FieldType(i), strings.TrimSpace(p))
		if err != nil {
			return storage.Tuple{}, fmt.Errorf("field %s: %w", desc.FieldName(i), err)
		}
		values[i] = v
	}
	return storage.NewTuple(desc, values...), nil
}

func runScan(args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("scan", flag.ExitOnError)
	var db dbFlags
	db.register(fs)
	table := fs.String("table", "", "table to scan")
	limit := fs.Int("limit", -1, "maximum rows to print, -1 for all")
	fs.Parse(args)
	if *table == "" {
		return fmt.Errorf("-table is required")
	}

	gdb, err := db.open()
	if err != nil {
		return err
	}
	defer closeDB(gdb, &err)

	scan, err := planner.ScanTable(gdb.Catalog, *table, "")
	if err != nil {
		return err
	}
	var plan planner.PlanNode = scan
	if *limit >= 0 {
		plan = planner.NewLimitNode(plan, *limit)
	}
	return execute(gdb, plan, db.explain, printRows(out), out)
}

func runAgg(args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("agg", flag.ExitOnError)
	var db dbFlags
	db.register(fs)
	table := fs.String("table", "", "table to aggregate")
	field := fs.String("field", "", "field to aggregate")
	opName := fs.String("op", "count", "aggregate: min, max, sum, avg or count")
	group := fs.String("group", "", "field to group by")
	fs.Parse(args)
	if *table == "" || *field == "" {
		return fmt.Errorf("-table and -field are required")
	}
	op, err := execution.ParseAggOp(*opName)
	if err != nil {
		return err
	}

	gdb, err := db.open()
	if err != nil {
		return err
	}
	defer closeDB(gdb, &err)

	scan, err := planner.ScanTable(gdb.Catalog, *table, "")
	if err != nil {
		return err
	}
	desc, err := gdb.Catalog.GetTupleDesc(scan.TableOid)
	if err != nil {
		return err
	}
	aField, err := desc.FieldNameToIndex(*field)
	if err != nil {
		return err
	}
	gField := execution.NoGrouping
	if *group != "" {
		if gField, err = desc.FieldNameToIndex(*group); err != nil {
			return err
		}
	}
	return execute(gdb, planner.NewAggregateNode(scan, aField, gField, op), db.explain, printRows(out), out)
}

func runDelete(args []string, out io.Writer) (err error) {
	fs := flag.NewFlagSet("delete", flag.ExitOnError)
	var db dbFlags
	db.register(fs)
	table := fs.String("table", "", "table to delete from")
	field := fs.String("field", "", "field to match")
	eq := fs.String("eq", "", "value the field must equal")
	fs.Parse(args)
	if *table == "" {
		return fmt.Errorf("-table is required")
	}
	if (*field == "") != (*eq == "") {
		return fmt.Errorf("-field and -eq go together")
	}

	gdb, err := db.open()
	if err != nil {
		return err
	}
	defer closeDB(gdb, &err)

	scan, err := planner.ScanTable(gdb.Catalog, *table, "")
	if err != nil {
		return err
	}
	var victims planner.PlanNode = scan
	if *field != "" {
		desc, err := gdb.Catalog.GetTupleDesc(scan.TableOid)
		if err != nil {
			return err
		}
		idx, err := desc.FieldNameToIndex(*field)
		if err != nil {
			return err
		}
		operand, err := common.ParseValue(desc.FieldType(idx), *eq)
		if err != nil {
			return err
		}
		victims = planner.NewFilterNode(victims, execution.NewPredicate(idx, execution.Equal, operand))
	}
	return execute(gdb, planner.NewDeleteNode(victims), db.explain, func(rows []storage.Tuple, _ *storage.TupleDesc) {
		fmt.Fprintf(out, "Deleted %s rows\n", rows[0])
	}, out)
}

// execute runs plan in one transaction and hands its rows to report once the transaction has committed.
func execute(gdb *simpledb.GoDB, plan planner.PlanNode, explain bool, report func([]storage.Tuple, *storage.TupleDesc), out io.Writer) error {
	if explain {
		fmt.Fprint(out, planner.Explain(plan))
	}
	op, err := planner.Build(plan, gdb.Catalog)
	if err != nil {
		return err
	}
	var rows []storage.Tuple
	err = gdb.Update(func(ctx *execution.ExecutorContext) error {
		var err error
		rows, err = simpledb.Collect(ctx, op)
		return err
	})
	if err != nil {
		return err
	}
	report(rows, op.Descriptor())
	return nil
}

func printRows(out io.Writer) func([]storage.Tuple, *storage.TupleDesc) {
	return func(rows []storage.Tuple, desc *storage.TupleDesc) {
		names := make([]string, desc.NumFields())
		for i := range names {
			names[i] = desc.FieldName(i)
		}
		fmt.Fprintln(out, strings.Join(names, "\t"))
		for _, row := range rows {
			fmt.Fprintln(out, row)
		}
		fmt.Fprintf(out, "(%d rows)\n", len(rows))
	}
}

func closeDB(db *simpledb.GoDB, err *error) {
	if cerr := db.Close(); cerr != nil && *err == nil {
		*err = cerr
	}
}
