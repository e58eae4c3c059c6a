// Command factum is a small REPL/demo exercising the full write+read
// path of the factum engine over a BadgerDB-backed store.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/mercerlabs/factum"
	"github.com/mercerlabs/factum/storage"
)

func main() {
	var dbPath string
	var dbName string
	var interactive bool
	var dump bool
	var help bool

	flag.StringVar(&dbPath, "path", "factum.db", "directory holding the backing store")
	flag.StringVar(&dbName, "db", "demo", "logical database name")
	flag.BoolVar(&interactive, "i", false, "interactive mode")
	flag.BoolVar(&dump, "dump", false, "dump every datom after the demo runs")
	flag.BoolVar(&help, "h", false, "show help")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "A temporally-aware fact store demo.\n\nOptions:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if help {
		flag.Usage()
		os.Exit(0)
	}

	store, err := storage.NewBadgerDocStore(dbPath)
	if err != nil {
		fatal("opening store", err)
	}
	defer store.Close()

	client := factum.NewClient(store)
	if err := client.CreateDatabase(dbName); err != nil {
		var verr *factum.ValidationError
		if !errors.As(err, &verr) {
			fatal("creating database", err)
		}
	}

	conn, err := client.Connect(dbName)
	if err != nil {
		fatal("connecting", err)
	}
	defer conn.Close()

	db, err := conn.Db()
	if err != nil {
		fatal("reading database", err)
	}
	entities, err := db.Entities()
	if err != nil {
		fatal("reading entities", err)
	}

	if len(entities) == 0 {
		color.Green("database %q is empty, loading demo schema + data", dbName)
		runDemo(conn)
	} else {
		color.Yellow("database %q already has data (%d entities)", dbName, len(entities))
	}

	if interactive {
		runInteractive(conn)
	}

	if dump {
		dumpDatoms(conn)
	}
}

func fatal(op string, err error) {
	color.Red("factum: %s: %v", op, err)
	os.Exit(1)
}

// runDemo defines a schema, inserts an entity, then replaces one of
// its attribute values.
func runDemo(conn *factum.Connection) {
	schema := factum.NewFacts()
	schema.Add(factum.TempID("provider/id"), "db/ident", "provider/id")
	schema.Add(factum.TempID("provider/id"), "db/valueType", "db.type/string")
	schema.Add(factum.TempID("provider/id"), "db/cardinality", "db.cardinality/one")
	schema.Add(factum.TempID("provider/id"), "db/unique", "db.unique/value")

	schema.Add(factum.TempID("provider/name"), "db/ident", "provider/name")
	schema.Add(factum.TempID("provider/name"), "db/valueType", "db.type/string")
	schema.Add(factum.TempID("provider/name"), "db/cardinality", "db.cardinality/one")

	if _, _, _, _, err := conn.Transact(schema); err != nil {
		fatal("transacting schema", err)
	}

	data := factum.NewFacts()
	data.AddSet(factum.TempID("apple"), map[string]any{
		"provider/id":   "AAPL",
		"provider/name": "Apple",
	})
	if _, _, _, _, err := conn.Transact(data); err != nil {
		fatal("transacting data", err)
	}

	rename := factum.NewFacts()
	rename.Replace(factum.Lookup("provider/id", "AAPL"), "provider/name", "Apple", "Apple Inc.")
	if _, _, _, _, err := conn.Transact(rename); err != nil {
		fatal("transacting rename", err)
	}

	db, err := conn.Db()
	if err != nil {
		fatal("reading database", err)
	}
	m, err := db.Get(factum.Lookup("provider/id", "AAPL"))
	if err != nil {
		fatal("looking up AAPL", err)
	}
	fmt.Printf("provider/id=AAPL -> %v\n", m)
}

// runInteractive is a minimal REPL: `get <e>`, `facts <e>`, `entities`,
// `find <attr> [value]`, `quit`.
func runInteractive(conn *factum.Connection) {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("factum interactive mode. Commands: get <e>, facts <e>, entities, find <attr> [value], quit")
	for {
		fmt.Print("factum> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		switch fields[0] {
		case "quit", "exit":
			return
		case "entities":
			db, err := conn.Db()
			if err != nil {
				color.Red("%v", err)
				continue
			}
			entities, err := db.Entities()
			if err != nil {
				color.Red("%v", err)
				continue
			}
			fmt.Println(entities)
		case "get":
			if len(fields) < 2 {
				fmt.Println("usage: get <entity-id>")
				continue
			}
			db, err := conn.Db()
			if err != nil {
				color.Red("%v", err)
				continue
			}
			var e int64
			fmt.Sscanf(fields[1], "%d", &e)
			m, err := db.Get(factum.EntityID(e))
			if err != nil {
				color.Red("%v", err)
				continue
			}
			fmt.Printf("%v\n", m)
		case "facts":
			if len(fields) < 2 {
				fmt.Println("usage: facts <entity-id>")
				continue
			}
			db, err := conn.Db()
			if err != nil {
				color.Red("%v", err)
				continue
			}
			var e int64
			fmt.Sscanf(fields[1], "%d", &e)
			facts, err := db.Facts(factum.EntityID(e))
			if err != nil {
				color.Red("%v", err)
				continue
			}
			for _, d := range facts {
				fmt.Println(d)
			}
		case "find":
			if len(fields) < 2 {
				fmt.Println("usage: find <attr> [value]")
				continue
			}
			db, err := conn.Db()
			if err != nil {
				color.Red("%v", err)
				continue
			}
			criterion := factum.FindCriterion{Attribute: fields[1]}
			if len(fields) > 2 {
				criterion.Value = strings.Join(fields[2:], " ")
			}
			matches, err := db.Find([]factum.FindCriterion{criterion})
			if err != nil {
				color.Red("%v", err)
				continue
			}
			for _, m := range matches {
				fmt.Printf("%v\n", m)
			}
		default:
			fmt.Println("unknown command:", fields[0])
		}
	}
}

func dumpDatoms(conn *factum.Connection) {
	db, err := conn.Db()
	if err != nil {
		fatal("reading database", err)
	}
	all, err := db.AllFacts()
	if err != nil {
		fatal("reading all facts", err)
	}
	table := tablewriter.NewTable(os.Stdout)
	table.Header([]string{"id", "e", "a", "v", "tx", "op"})
	for _, d := range all {
		op := "assert"
		if !d.Op {
			op = "retract"
		}
		table.Append([]string{
			fmt.Sprintf("%d", d.ID),
			fmt.Sprintf("%d", d.E),
			d.A,
			fmt.Sprintf("%v", d.V),
			fmt.Sprintf("%d", d.Tx),
			op,
		})
	}
	table.Render()
}
