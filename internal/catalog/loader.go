package catalog

import (
	"bufio"
	"encoding/binary"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"audiencelens/internal/errs"
	"audiencelens/internal/logging"
	"audiencelens/internal/models"
)

// columnarMagic identifies the columnar binary catalog format.
const columnarMagic = "ALC1"

// requiredCSVColumns are the only columns that must be present for the CSV
// fallback to succeed; everything else is optional and unknown columns are
// ignored.
var requiredCSVColumns = []string{"code", "description"}

// Load reads variables from path, preferring the columnar binary format and
// falling back to CSV when path does not exist or is not columnar-framed.
// On success it returns a fully built Snapshot — never a partially built one.
func Load(path, csvFallbackPath, embeddingsPath string) (*Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryCatalog, "Load")
	start := time.Now()

	if path != "" {
		if snap, err := loadColumnar(path); err == nil {
			snap.LoadDuration = time.Since(start)
			snap.LoadedAt = start
			if embeddingsPath != "" {
				if err := loadEmbeddings(snap, embeddingsPath); err != nil {
					logging.Get(logging.CategoryCatalog).Warn("embeddings load failed, continuing without: %v", err)
				}
			}
			timer.Stop()
			logging.Catalog("loaded %d variables from columnar source %s in %v", snap.Count(), path, snap.LoadDuration)
			return snap, nil
		} else if !os.IsNotExist(err) {
			logging.CatalogError("columnar load of %s failed, falling back to CSV: %v", path, err)
		}
	}

	if csvFallbackPath == "" {
		timer.Stop()
		return nil, errs.Wrap(errs.KindCatalogLoadError, "no catalog source available", fmt.Errorf("columnar path %q unusable and no csv fallback configured", path))
	}

	snap, err := loadCSV(csvFallbackPath)
	if err != nil {
		timer.Stop()
		return nil, errs.Wrap(errs.KindCatalogLoadError, "catalog load failed", err)
	}
	snap.LoadDuration = time.Since(start)
	snap.LoadedAt = start
	if embeddingsPath != "" {
		if err := loadEmbeddings(snap, embeddingsPath); err != nil {
			logging.Get(logging.CategoryCatalog).Warn("embeddings load failed, continuing without: %v", err)
		}
	}
	timer.Stop()
	logging.Catalog("loaded %d variables from CSV fallback %s in %v", snap.Count(), csvFallbackPath, snap.LoadDuration)
	return snap, nil
}

// loadColumnar reads the binary columnar format:
//
//	magic(4) | version(uint32) | count(uint32) | count * record
//
// record := len-prefixed-string(code,name,description,category,theme,
//
//	product,domain,data_type) | uint32 operator-count | operators
//	(len-prefixed strings) | uint32 keyword-count | keywords
func loadColumnar(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return nil, fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != columnarMagic {
		return nil, fmt.Errorf("not a columnar catalog file (bad magic %q)", magic)
	}

	var version, count uint32
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return nil, fmt.Errorf("read version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return nil, fmt.Errorf("read count: %w", err)
	}

	snap := newSnapshot()
	snap.SourceFormat = SourceColumnar

	for i := uint32(0); i < count; i++ {
		v, err := readColumnarRecord(r)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		if v.Code == "" || v.Description == "" {
			return nil, fmt.Errorf("record %d: missing required field (code/description)", i)
		}
		snap.add(v)
	}
	return snap, nil
}

func readColumnarRecord(r io.Reader) (*models.Variable, error) {
	v := &models.Variable{}
	strs := make([]*string, 8)
	strs[0] = &v.Code
	strs[1] = &v.Name
	strs[2] = &v.Description
	strs[3] = &v.Category
	strs[4] = &v.Theme
	strs[5] = &v.Product
	strs[6] = &v.Domain
	var dataType string
	strs[7] = &dataType

	for _, s := range strs {
		val, err := readString(r)
		if err != nil {
			return nil, err
		}
		*s = val
	}
	v.DataType = models.DataType(dataType)

	ops, err := readStringSlice(r)
	if err != nil {
		return nil, err
	}
	v.Operators = ops

	kws, err := readStringSlice(r)
	if err != nil {
		return nil, err
	}
	v.Keywords = kws

	return v, nil
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if n > 0 {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", err
		}
	}
	return string(buf), nil
}

func readStringSlice(r io.Reader) ([]string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	out := make([]string, n)
	for i := range out {
		s, err := readString(r)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// loadCSV reads the delimited text fallback: comma-separated with header
// row, quoted fields may contain commas and newlines (encoding/csv handles
// both natively). Unknown columns are ignored.
func loadCSV(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv catalog: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, req := range requiredCSVColumns {
		if _, ok := colIdx[req]; !ok {
			return nil, fmt.Errorf("csv catalog missing required column %q", req)
		}
	}

	snap := newSnapshot()
	snap.SourceFormat = SourceCSV

	get := func(row []string, col string) string {
		idx, ok := colIdx[col]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	lineNum := 1
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv row %d: %w", lineNum, err)
		}
		lineNum++

		v := &models.Variable{
			Code:        get(row, "code"),
			Name:        get(row, "name"),
			Description: get(row, "description"),
			Category:    get(row, "category"),
			Theme:       get(row, "theme"),
			Product:     get(row, "product"),
			Domain:      get(row, "domain"),
			DataType:    models.DataType(get(row, "data_type")),
		}
		if v.Code == "" || v.Description == "" {
			return nil, fmt.Errorf("csv row %d: missing required field (code/description)", lineNum-1)
		}
		if ops := get(row, "operators"); ops != "" {
			v.Operators = strings.Split(ops, "|")
		}
		v.Keywords = deriveKeywords(v)
		snap.add(v)
	}
	return snap, nil
}

// deriveKeywords tokenizes name+description+category into the keyword set
// the CSV path doesn't carry pre-computed (the columnar format is expected
// to ship it already derived).
func deriveKeywords(v *models.Variable) []string {
	text := strings.ToLower(v.Name + " " + v.Description + " " + v.Category)
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !(r >= 'a' && r <= 'z') && !(r >= '0' && r <= '9')
	})
	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

// loadEmbeddings reads the sibling embeddings container (§6: binary
// container keyed by variable code, fixed-length float32 vectors of
// dimension D, with a metadata file listing (code, D, model_name)) and
// attaches vectors to the matching variables already in snap.
//
//	magic(4="ALE1") | dims(uint32) | count(uint32) | count * (code, D floats)
func loadEmbeddings(snap *Snapshot, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("read embeddings magic: %w", err)
	}
	if string(magic) != "ALE1" {
		return fmt.Errorf("not an embeddings container (bad magic %q)", magic)
	}

	var dims, count uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return err
	}

	matched := 0
	for i := uint32(0); i < count; i++ {
		code, err := readString(r)
		if err != nil {
			return fmt.Errorf("embedding %d: %w", i, err)
		}
		vec := make([]float32, dims)
		if err := binary.Read(r, binary.LittleEndian, vec); err != nil {
			return fmt.Errorf("embedding %d vector: %w", i, err)
		}
		if v := snap.byCode[code]; v != nil {
			v.Embedding = vec
			matched++
		}
	}
	snap.Dimensions = int(dims)
	snap.HasEmbeddings = matched > 0
	logging.CatalogDebug("attached %d/%d embeddings (dims=%d)", matched, count, dims)
	return nil
}
