package entity

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/ryanyen2/Scholet/pkg/errors"
)

// Format names a dataset encoding.
type Format string

const (
	FormatAuto Format = "auto"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat maps a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	default:
		return "", errors.New(errors.ErrCodeDatasetFormat, "unsupported dataset format").WithDetail(s)
	}
}

// DetectFormat guesses the format from a file or object name.
func DetectFormat(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".jsonl":
		return FormatJSON
	default:
		return FormatCSV
	}
}

// LoadOptions selects the columns that carry identity and position.
type LoadOptions struct {
	IDColumn string
	XColumn  string
	YColumn  string
	// Kind applies to rows without a "kind" column. Defaults to KindPaper.
	Kind Kind
}

func (o LoadOptions) withDefaults() LoadOptions {
	if o.IDColumn == "" {
		o.IDColumn = "paper_id"
	}
	if o.XColumn == "" {
		o.XColumn = "umap_x"
	}
	if o.YColumn == "" {
		o.YColumn = "umap_y"
	}
	if !o.Kind.Valid() {
		o.Kind = KindPaper
	}
	return o
}

// LoadFile opens path and decodes it with Load. FormatAuto resolves from the
// file extension.
func LoadFile(path string, format Format, opts LoadOptions) (*Set, Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, errors.ErrCodeDatasetUnavailable, "failed to open dataset").
			WithDetail(path)
	}
	defer f.Close()

	if format == FormatAuto || format == "" {
		format = DetectFormat(path)
	}
	return Load(f, format, opts)
}

// Load decodes records from r. Rows with missing or non-finite coordinates
// are dropped, as are duplicate identifiers after the first. Columns other
// than the coordinates land verbatim in the attribute bag.
func Load(r io.Reader, format Format, opts LoadOptions) (*Set, Stats, error) {
	opts = opts.withDefaults()

	var (
		rows    []Record
		dropped Stats
		err     error
	)
	switch format {
	case FormatJSON:
		rows, dropped, err = decodeJSON(r, opts)
	case FormatCSV, FormatAuto, "":
		rows, dropped, err = decodeCSV(r, opts)
	default:
		return nil, Stats{}, errors.New(errors.ErrCodeDatasetFormat, "unsupported dataset format").
			WithDetail(string(format))
	}
	if err != nil {
		return nil, Stats{}, err
	}

	set, st := NewSet(rows)
	st.NonFinite += dropped.NonFinite
	st.Malformed += dropped.Malformed
	return set, st, nil
}

// rowBuilder turns one decoded row into a Record, reporting whether the row
// was skipped for a missing or non-finite coordinate.
type rowBuilder struct {
	opts    LoadOptions
	dropped Stats
}

func (b *rowBuilder) build(index int, fields map[string]string) (Record, bool, error) {
	xs, ys := strings.TrimSpace(fields[b.opts.XColumn]), strings.TrimSpace(fields[b.opts.YColumn])
	if xs == "" || ys == "" {
		b.dropped.NonFinite++
		return Record{}, false, nil
	}
	x, err := strconv.ParseFloat(xs, 64)
	if err != nil {
		return Record{}, false, err
	}
	y, err := strconv.ParseFloat(ys, 64)
	if err != nil {
		return Record{}, false, err
	}
	if !IsFinite(x) || !IsFinite(y) {
		b.dropped.NonFinite++
		return Record{}, false, nil
	}

	id := strings.TrimSpace(fields[b.opts.IDColumn])
	if id == "" {
		id = strconv.Itoa(index)
	}
	kind := b.opts.Kind
	if k := Kind(strings.ToLower(fields["kind"])); k.Valid() {
		kind = k
	}

	attrs := make(map[string]string, len(fields))
	for k, v := range fields {
		if k == b.opts.XColumn || k == b.opts.YColumn || k == "kind" {
			continue
		}
		attrs[k] = v
	}
	rec, err := NewRecord(id, x, y, kind, attrs)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func decodeCSV(r io.Reader, opts LoadOptions) ([]Record, Stats, error) {
	cr := csv.NewReader(bufio.NewReader(r))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, Stats{}, errors.New(errors.ErrCodeDatasetEmpty, "dataset has no header row")
	}
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, errors.ErrCodeDatasetParse, "failed to read csv header")
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if indexOf(header, opts.XColumn) < 0 || indexOf(header, opts.YColumn) < 0 {
		return nil, Stats{}, errors.New(errors.ErrCodeDatasetParse, "coordinate columns missing from csv header").
			WithDetail(opts.XColumn + "," + opts.YColumn)
	}

	b := &rowBuilder{opts: opts}
	var out []Record
	for index := 0; ; index++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, Stats{}, errors.Wrap(err, errors.ErrCodeDatasetParse, "failed to read csv row").
				WithDetail("row=" + strconv.Itoa(index))
		}
		if len(row) != len(header) {
			b.dropped.Malformed++
			continue
		}
		fields := make(map[string]string, len(header))
		for i, col := range header {
			fields[col] = row[i]
		}
		rec, ok, err := b.build(index, fields)
		if err != nil {
			b.dropped.Malformed++
			continue
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, b.dropped, nil
}

func decodeJSON(r io.Reader, opts LoadOptions) ([]Record, Stats, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, Stats{}, errors.Wrap(err, errors.ErrCodeDatasetUnavailable, "failed to read dataset")
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, Stats{}, errors.New(errors.ErrCodeDatasetEmpty, "dataset is empty")
	}

	var rows []map[string]json.RawMessage
	if raw[0] == '{' {
		// Envelope produced by the legacy /data endpoint: {"df": [...], "date": "..."}.
		var env struct {
			DF []map[string]json.RawMessage `json:"df"`
		}
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, Stats{}, errors.Wrap(err, errors.ErrCodeDatasetParse, "failed to decode json dataset")
		}
		rows = env.DF
	} else if err := json.Unmarshal(raw, &rows); err != nil {
		return nil, Stats{}, errors.Wrap(err, errors.ErrCodeDatasetParse, "failed to decode json dataset")
	}

	b := &rowBuilder{opts: opts}
	var out []Record
	for index, row := range rows {
		fields := make(map[string]string, len(row))
		for k, v := range row {
			if s, ok := scalarString(v); ok {
				fields[k] = s
			}
		}
		rec, ok, err := b.build(index, fields)
		if err != nil {
			b.dropped.Malformed++
			continue
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, b.dropped, nil
}

// scalarString renders a JSON scalar as text. Arrays, objects and null are
// not carried into the attribute bag.
func scalarString(v json.RawMessage) (string, bool) {
	v = bytes.TrimSpace(v)
	if len(v) == 0 {
		return "", false
	}
	switch v[0] {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case '[', '{', 'n':
		return "", false
	default:
		return string(v), true
	}
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return -1
}
