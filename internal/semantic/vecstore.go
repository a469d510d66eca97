package semantic

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"

	"audiencelens/internal/logging"
	"audiencelens/internal/models"
)

// initVecStore opens an in-memory sqlite database and probes for sqlite-vec
// support by attempting to create a vec0 virtual table. If the probe
// succeeds, every embedded variable is loaded into the ANN index and
// idx.vecEnabled is set; otherwise the index relies on brute-force cosine
// search (searchBruteForce), which is what happens in cgo builds without
// the sqlite_vec tag.
func (idx *Index) initVecStore() {
	db, err := sql.Open(sqlDriverName, "file::memory:?cache=shared")
	if err != nil {
		logging.Get(logging.CategorySemantic).Warn("failed to open in-memory sqlite for vec index: %v", err)
		return
	}

	probe := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[%d])", idx.dims)
	if _, err := db.Exec(probe); err != nil {
		logging.SemanticDebug("sqlite-vec extension not available, using brute-force cosine search: %v", err)
		_ = db.Close()
		return
	}
	_, _ = db.Exec("DROP TABLE IF EXISTS vec_probe")

	create := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS vec_index USING vec0(embedding float[%d], code TEXT)", idx.dims)
	if _, err := db.Exec(create); err != nil {
		logging.Get(logging.CategorySemantic).Warn("failed to create vec_index table: %v", err)
		_ = db.Close()
		return
	}

	tx, err := db.Begin()
	if err != nil {
		_ = db.Close()
		return
	}
	stmt, err := tx.Prepare("INSERT INTO vec_index (embedding, code) VALUES (?, ?)")
	if err != nil {
		_ = tx.Rollback()
		_ = db.Close()
		return
	}
	for i, vec := range idx.vectors {
		if _, err := stmt.Exec(encodeFloat32Slice(vec), idx.codes[i]); err != nil {
			logging.Get(logging.CategorySemantic).Warn("failed to insert vector for %s: %v", idx.codes[i], err)
		}
	}
	_ = stmt.Close()
	if err := tx.Commit(); err != nil {
		logging.Get(logging.CategorySemantic).Warn("failed to commit vec_index backfill: %v", err)
		_ = db.Close()
		return
	}

	idx.mu.Lock()
	idx.db = db
	idx.vecEnabled = true
	idx.mu.Unlock()

	logging.Semantic("sqlite-vec ANN index initialized with %d vectors (dims=%d)", len(idx.vectors), idx.dims)
}

// searchVec performs ANN search via sqlite-vec's cosine distance operator.
func (idx *Index) searchVec(ctx context.Context, queryVec []float32, topN int) ([]*models.Candidate, error) {
	idx.mu.RLock()
	db := idx.db
	idx.mu.RUnlock()
	if db == nil {
		return nil, fmt.Errorf("vec index not initialized")
	}

	rows, err := db.QueryContext(ctx,
		"SELECT code, vec_distance_cosine(embedding, ?) AS dist FROM vec_index ORDER BY dist ASC LIMIT ?",
		encodeFloat32Slice(queryVec), topN,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Candidate
	for rows.Next() {
		var code string
		var dist float64
		if err := rows.Scan(&code, &dist); err != nil {
			continue
		}
		v := idx.snapshot.Get(code)
		if v == nil {
			continue
		}
		out = append(out, &models.Candidate{
			Code:          code,
			Variable:      v,
			SemanticScore: semScore(1 - dist),
			SearchMethod:  models.SearchMethodSemantic,
		})
	}
	return out, nil
}

func encodeFloat32Slice(vec []float32) []byte {
	buf := &bytes.Buffer{}
	_ = binary.Write(buf, binary.LittleEndian, vec)
	return buf.Bytes()
}
