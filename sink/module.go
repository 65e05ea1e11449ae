package sink

import (
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/cyberinferno/go-sqlio/logger"
)

// Install registers every definition on conn. Each sink gets ctx with its
// logger scoped to the sink name.
//
// Parameters:
//   - conn: The driver connection being set up, usually inside a ConnectHook
//   - ctx: Handle and logger shared by the sinks
//   - defs: The sinks to register
//
// Returns:
//   - The first registration error, if any
func Install(conn *sqlite3.SQLiteConn, ctx Context, defs ...Definition) error {
	if ctx.Logger == nil {
		ctx.Logger = logger.Nop()
	}

	for _, d := range defs {
		scoped := Context{
			Handle: ctx.Handle,
			Logger: ctx.Logger.With(logger.Field{Key: "sink", Value: d.Name}),
		}
		if err := conn.CreateModule(d.Name, NewModule(d, scoped)); err != nil {
			return fmt.Errorf("register %s: %w", d.Name, err)
		}
	}

	return nil
}

// module adapts a Definition to go-sqlite3's eponymous-only module.
type module struct {
	def Definition
	ctx Context
}

// NewModule returns the go-sqlite3 module for def. Pass it to
// SQLiteConn.CreateModule under def.Name.
func NewModule(def Definition, ctx Context) sqlite3.EponymousOnlyModule {
	return &module{def: def, ctx: ctx}
}

func (m *module) EponymousOnlyModule() {}

func (m *module) Create(c *sqlite3.SQLiteConn, args []string) (sqlite3.VTab, error) {
	return m.Connect(c, args)
}

func (m *module) Connect(c *sqlite3.SQLiteConn, _ []string) (sqlite3.VTab, error) {
	if err := c.DeclareVTab(m.def.Schema()); err != nil {
		return nil, fmt.Errorf("declare %s: %w", m.def.Name, err)
	}

	return newTable(m.def.Name, m.def.New(m.ctx)), nil
}

func (m *module) DestroyModule() {}

// table is one connection's instance of a sink table.
type table struct {
	name string
	sink Sink
}

func newTable(name string, s Sink) *table {
	return &table{name: name, sink: s}
}

// TableName is picked up by go-sqlite3 for its read-only error message.
func (t *table) TableName() string {
	return t.name
}

func (t *table) BestIndex(cst []sqlite3.InfoConstraint, _ []sqlite3.InfoOrderBy) (*sqlite3.IndexResult, error) {
	return &sqlite3.IndexResult{
		Used:          make([]bool, len(cst)),
		EstimatedCost: 1,
	}, nil
}

func (t *table) Disconnect() error { return nil }

func (t *table) Destroy() error { return nil }

// Open snapshots the sink's rows for one enumeration.
func (t *table) Open() (sqlite3.VTabCursor, error) {
	g, ok := t.sink.(Getter)
	if !ok {
		return &cursor{}, nil
	}

	rows, err := g.Get()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", t.name, err)
	}

	return &cursor{rows: rows}, nil
}

func (t *table) Insert(_ any, vals []any) (int64, error) {
	if err := t.sink.OnInsert(Row(vals)); err != nil {
		return 0, fmt.Errorf("%s: %w", t.name, err)
	}

	return 0, nil
}

func (t *table) Update(any, []any) error {
	return fmt.Errorf("%w: can't UPDATE %s", ErrUnsupported, t.name)
}

func (t *table) Delete(any) error {
	return fmt.Errorf("%w: can't DELETE FROM %s", ErrUnsupported, t.name)
}

// cursor walks a fixed snapshot. The row index doubles as the rowid.
type cursor struct {
	rows []Row
	pos  int
}

func (c *cursor) Filter(int, string, []any) error {
	c.pos = 0
	return nil
}

func (c *cursor) Next() error {
	c.pos++
	return nil
}

func (c *cursor) EOF() bool {
	return c.pos >= len(c.rows)
}

func (c *cursor) Column(ctx *sqlite3.SQLiteContext, col int) error {
	row := c.rows[c.pos]
	if col < 0 || col >= len(row) {
		ctx.ResultNull()
		return nil
	}

	switch v := row[col].(type) {
	case nil:
		ctx.ResultNull()
	case int64:
		ctx.ResultInt64(v)
	case int:
		ctx.ResultInt64(int64(v))
	case float64:
		ctx.ResultDouble(v)
	case bool:
		ctx.ResultBool(v)
	case string:
		ctx.ResultText(v)
	case []byte:
		ctx.ResultBlob(v)
	default:
		return fmt.Errorf("column %d: unsupported value type %T", col, v)
	}

	return nil
}

func (c *cursor) Rowid() (int64, error) {
	return int64(c.pos), nil
}

func (c *cursor) Close() error {
	return nil
}
