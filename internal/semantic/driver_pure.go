//go:build !cgo

package semantic

import (
	"database/sql/driver"
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	sqlite "modernc.org/sqlite"
	"modernc.org/sqlite/vtab"
)

// sqlDriverName is the database/sql driver initVecStore opens. Without cgo
// the pure-Go modernc.org/sqlite driver is used instead of mattn's
// cgo-wrapped one, so the vec0 virtual table and cosine-distance function
// sqlite-vec would otherwise provide are registered by hand below.
const sqlDriverName = "sqlite"

func init() {
	_ = vtab.RegisterModule(nil, "vec0", &vec0Module{})
	_ = sqlite.RegisterDeterministicScalarFunction("vec_distance_cosine", 2, vecDistanceCosine)
}

// vec0Module is a minimal in-process stand-in for sqlite-vec's vec0 virtual
// table: a float[N] embedding column plus a code column, scanned in full on
// every query (initVecStore's tables are rebuilt from scratch on every
// reload, so no durability is needed here).
type vec0Module struct{}

var (
	vec0TablesMu sync.RWMutex
	vec0Tables   = map[string]*vec0Table{}
)

type vec0Row struct {
	rowid     int64
	embedding []byte
	code      string
}

type vec0Table struct {
	name      string
	mu        sync.RWMutex
	rows      []vec0Row
	nextRowID int64
}

func (m *vec0Module) Create(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *vec0Module) Connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	return m.connect(ctx, args)
}

func (m *vec0Module) connect(ctx vtab.Context, args []string) (vtab.Table, error) {
	if len(args) < 3 {
		return nil, fmt.Errorf("vec0: insufficient args")
	}
	name := args[2]
	if err := ctx.Declare("CREATE TABLE x(embedding BLOB, code TEXT)"); err != nil {
		return nil, err
	}

	vec0TablesMu.Lock()
	defer vec0TablesMu.Unlock()
	tbl, ok := vec0Tables[name]
	if !ok {
		tbl = &vec0Table{name: name, nextRowID: 1}
		vec0Tables[name] = tbl
	}
	return tbl, nil
}

func (t *vec0Table) BestIndex(info *vtab.IndexInfo) error {
	info.EstimatedRows = int64(len(t.rows))
	return nil
}

func (t *vec0Table) Open() (vtab.Cursor, error) {
	return &vec0Cursor{tbl: t, idx: -1}, nil
}

func (t *vec0Table) Disconnect() error { return nil }
func (t *vec0Table) Destroy() error    { return nil }

func (t *vec0Table) Insert(cols []vtab.Value, rowid *int64) error {
	if len(cols) < 2 {
		return fmt.Errorf("vec0: insert expects 2 columns")
	}
	emb, err := coerceBlob(cols[0])
	if err != nil {
		return err
	}
	code := toString(cols[1])

	t.mu.Lock()
	defer t.mu.Unlock()
	rid := *rowid
	if rid <= 0 {
		rid = t.nextRowID
		t.nextRowID++
	}
	for i := range t.rows {
		if t.rows[i].rowid == rid {
			t.rows[i] = vec0Row{rowid: rid, embedding: emb, code: code}
			*rowid = rid
			return nil
		}
	}
	t.rows = append(t.rows, vec0Row{rowid: rid, embedding: emb, code: code})
	*rowid = rid
	return nil
}

func (t *vec0Table) Update(oldRowid int64, cols []vtab.Value, newRowid *int64) error {
	if len(cols) < 2 {
		return fmt.Errorf("vec0: update expects 2 columns")
	}
	emb, err := coerceBlob(cols[0])
	if err != nil {
		return err
	}
	code := toString(cols[1])

	t.mu.Lock()
	defer t.mu.Unlock()
	target := oldRowid
	if newRowid != nil && *newRowid > 0 {
		target = *newRowid
	}
	for i := range t.rows {
		if t.rows[i].rowid == oldRowid {
			t.rows[i] = vec0Row{rowid: target, embedding: emb, code: code}
			return nil
		}
	}
	t.rows = append(t.rows, vec0Row{rowid: target, embedding: emb, code: code})
	if target >= t.nextRowID {
		t.nextRowID = target + 1
	}
	return nil
}

func (t *vec0Table) Delete(oldRowid int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.rows {
		if t.rows[i].rowid == oldRowid {
			t.rows = append(t.rows[:i], t.rows[i+1:]...)
			break
		}
	}
	return nil
}

type vec0Cursor struct {
	tbl *vec0Table
	idx int
}

func (c *vec0Cursor) Filter(idxNum int, idxStr string, vals []vtab.Value) error {
	c.idx = -1
	return c.Next()
}

func (c *vec0Cursor) Next() error {
	c.idx++
	return nil
}

func (c *vec0Cursor) Eof() bool {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	return c.idx >= len(c.tbl.rows)
}

func (c *vec0Cursor) Column(col int) (vtab.Value, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return nil, fmt.Errorf("vec0: cursor out of range")
	}
	row := c.tbl.rows[c.idx]
	switch col {
	case 0:
		return row.embedding, nil
	case 1:
		return row.code, nil
	default:
		return nil, fmt.Errorf("vec0: invalid column %d", col)
	}
}

func (c *vec0Cursor) Rowid() (int64, error) {
	c.tbl.mu.RLock()
	defer c.tbl.mu.RUnlock()
	if c.idx < 0 || c.idx >= len(c.tbl.rows) {
		return 0, fmt.Errorf("vec0: cursor out of range")
	}
	return c.tbl.rows[c.idx].rowid, nil
}

func (c *vec0Cursor) Close() error { return nil }

// vecDistanceCosine mirrors sqlite-vec's vec_distance_cosine: 1 minus the
// cosine similarity of two little-endian float32 blobs.
func vecDistanceCosine(ctx *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_distance_cosine expects 2 arguments")
	}
	a, err := decodeFloat32(args[0])
	if err != nil {
		return nil, err
	}
	b, err := decodeFloat32(args[1])
	if err != nil {
		return nil, err
	}
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return float64(1), nil
	}
	var dot, na, nb float64
	for i := range a {
		af, bf := float64(a[i]), float64(b[i])
		dot += af * bf
		na += af * af
		nb += bf * bf
	}
	if na == 0 || nb == 0 {
		return float64(1), nil
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb)), nil
}

func decodeFloat32(v driver.Value) ([]float32, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []byte:
		if len(x)%4 != 0 {
			return nil, fmt.Errorf("vec_distance_cosine: blob length %d not multiple of 4", len(x))
		}
		out := make([]float32, len(x)/4)
		for i := range out {
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(x[i*4:]))
		}
		return out, nil
	case string:
		return decodeFloat32([]byte(x))
	default:
		return nil, fmt.Errorf("vec_distance_cosine: unsupported type %T", v)
	}
}

func coerceBlob(v vtab.Value) ([]byte, error) {
	switch x := v.(type) {
	case []byte:
		cp := make([]byte, len(x))
		copy(cp, x)
		return cp, nil
	case string:
		return []byte(x), nil
	default:
		return nil, fmt.Errorf("vec0: unsupported embedding type %T", v)
	}
}

func toString(v vtab.Value) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprintf("%v", x)
	}
}
