// Package output writes a built dataset, its subsets, stats and run report
// to disk.
//
// Every CSV file is read back after writing and its row count compared with
// the number of rows written.
package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"unicode/utf8"

	"github.com/fyrsmithlabs/dtiset/internal/dataset"
	"github.com/fyrsmithlabs/dtiset/internal/pipeline"
	"github.com/fyrsmithlabs/dtiset/internal/stats"
	"github.com/fyrsmithlabs/dtiset/internal/subset"
	"go.uber.org/zap"
)

var (
	// ErrVerify indicates a written file did not read back as written.
	ErrVerify = errors.New("output verification failed")
	// ErrInvalidDelimiter indicates a delimiter csv cannot use.
	ErrInvalidDelimiter = errors.New("invalid delimiter")
)

// Options configures a Writer.
type Options struct {
	Dir string
	// Delimiter is a single character. Defaults to ";".
	Delimiter     string
	ChEMBLVersion string
	// WriteFull writes the full dataset in addition to subsets.
	WriteFull bool
	WriteBF   bool
	WriteB    bool
	Logger    *zap.Logger
}

// Writer writes build results under one directory.
type Writer struct {
	dir     string
	comma   rune
	version string
	full    bool
	scopes  map[dataset.Scope]bool
	logger  *zap.Logger
}

// NewWriter validates opts and creates the output directory.
func NewWriter(opts Options) (*Writer, error) {
	delim := opts.Delimiter
	if delim == "" {
		delim = ";"
	}
	comma, size := utf8.DecodeRuneInString(delim)
	if size != len(delim) || comma == '"' || comma == '\r' || comma == '\n' || comma == utf8.RuneError {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDelimiter, delim)
	}
	if opts.Dir == "" {
		return nil, errors.New("output directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		dir:     opts.Dir,
		comma:   comma,
		version: opts.ChEMBLVersion,
		full:    opts.WriteFull,
		scopes: map[dataset.Scope]bool{
			dataset.ScopeEvidence: opts.WriteBF,
			dataset.ScopeBinding:  opts.WriteB,
		},
		logger: logger.Named("output"),
	}, nil
}

// prefix is the common file name prefix of a run.
func (w *Writer) prefix(literatureOnly bool) string {
	limited := "all"
	if literatureOnly {
		limited = "literature"
	}
	return fmt.Sprintf("ChEMBL%s_CTI_%s", w.version, limited)
}

// WriteResult writes every enabled file for res and returns the paths
// written.
func (w *Writer) WriteResult(res *pipeline.Result) ([]string, error) {
	if res == nil || res.Report == nil || res.Rows == nil {
		return nil, pipeline.ErrNotBuilt
	}
	prefix := w.prefix(res.Report.LiteratureOnly)
	descriptors := DescriptorNames(res.Rows)
	var written []string

	if w.full {
		var subsetCols []string
		for _, sr := range res.Subsets {
			subsetCols = append(subsetCols, sr.Columns...)
		}
		layout := NewLayout([]dataset.Scope{dataset.ScopeEvidence, dataset.ScopeBinding}, true, descriptors, subsetCols)
		paths, err := w.writeDataset(prefix+"_full_dataset", layout, res.Rows)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}

	for _, sr := range res.Subsets {
		if !w.scopes[sr.Scope] {
			continue
		}
		paths, err := w.writeSubsets(prefix, sr, res.Rows, descriptors)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}

	path, err := w.WriteSizes(res.Report.Sizes)
	if err != nil {
		return written, err
	}
	written = append(written, path)

	return written, nil
}

// writeSubsets writes the scope's rows and one file per subset column. Only
// the summaries of the subset's own scope are written.
func (w *Writer) writeSubsets(prefix string, sr subset.Result, rows []*dataset.CompoundTargetPair, descriptors []string) ([]string, error) {
	layout := NewLayout([]dataset.Scope{sr.Scope}, false, descriptors, sr.Columns)
	var written []string

	inScope := make([]*dataset.CompoundTargetPair, 0, len(rows))
	for _, p := range rows {
		if subset.InScope(p, sr.Scope) {
			inScope = append(inScope, p)
		}
	}
	paths, err := w.writeDataset(fmt.Sprintf("%s_%s", prefix, sr.Scope), layout, inScope)
	if err != nil {
		return nil, err
	}
	written = append(written, paths...)

	for _, col := range sr.Columns {
		paths, err := w.writeDataset(prefix+"_"+col, layout, subset.Select(rows, col))
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}
	return written, nil
}

// writeDataset writes rows and their stats file.
func (w *Writer) writeDataset(name string, layout Layout, rows []*dataset.CompoundTargetPair) ([]string, error) {
	path := filepath.Join(w.dir, name+".csv")
	records := make([][]string, 0, len(rows))
	for _, p := range rows {
		records = append(records, layout.Record(p))
	}
	if err := w.writeCSV(path, layout.Header(), records); err != nil {
		return nil, err
	}

	statsPath, err := w.WriteStats(name+"_stats", stats.Compute(rows))
	if err != nil {
		return []string{path}, err
	}
	return []string{path, statsPath}, nil
}

// WriteStats writes unique-value counts to <name>.csv.
func (w *Writer) WriteStats(name string, st []stats.Stat) (string, error) {
	path := filepath.Join(w.dir, name+".csv")
	records := make([][]string, 0, len(st))
	for _, s := range st {
		records = append(records, []string{s.Column, s.Description, s.Subset, strconv.Itoa(s.Count)})
	}
	header := []string{"column", "column_description", "subset_type", "counts"}
	return path, w.writeCSV(path, header, records)
}

// WriteSizes writes dataset sizes after each pipeline step, one row per
// step, group and column.
func (w *Writer) WriteSizes(sizes []stats.Size) (string, error) {
	path := filepath.Join(w.dir, "debug_sizes.csv")
	var records [][]string
	for _, s := range sizes {
		for _, col := range stats.Columns {
			records = append(records,
				[]string{s.Step, "all", col.Name, strconv.Itoa(s.All[col.Name])},
				[]string{s.Step, "drugs", col.Name, strconv.Itoa(s.Drugs[col.Name])},
			)
		}
	}
	return path, w.writeCSV(path, []string{"step", "group", "column", "counts"}, records)
}

// WriteReport writes the run report as indented JSON.
func (w *Writer) WriteReport(rep *pipeline.Report) (string, error) {
	path := filepath.Join(w.dir, "report.json")
	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	w.logger.Info("report written", zap.String("path", path))
	return path, nil
}

func (w *Writer) writeCSV(path string, header []string, records [][]string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", filepath.Base(path), cerr)
		}
	}()

	cw := csv.NewWriter(f)
	cw.Comma = w.comma
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", filepath.Base(path), err)
	}

	if err := w.verify(path, header, len(records)); err != nil {
		return err
	}
	w.logger.Info("file written", zap.String("path", path), zap.Int("rows", len(records)))
	return nil
}

// verify reads path back and compares its header and row count.
func (w *Writer) verify(path string, header []string, rows int) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrVerify, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.Comma = w.comma
	r.ReuseRecord = true

	got, err := r.Read()
	if err != nil {
		return fmt.Errorf("%w: reading header of %s: %v", ErrVerify, filepath.Base(path), err)
	}
	if len(got) != len(header) {
		return fmt.Errorf("%w: %s has %d columns, wrote %d", ErrVerify, filepath.Base(path), len(got), len(header))
	}

	n := 0
	for {
		_, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: reading %s: %v", ErrVerify, filepath.Base(path), err)
		}
		n++
	}
	if n != rows {
		return fmt.Errorf("%w: %s has %d rows, wrote %d", ErrVerify, filepath.Base(path), n, rows)
	}
	return nil
}
