package journal

import (
	"fmt"
	"os"
	"sync"

	"github.com/gocarina/gocsv"
)

// CSV appends fills and equity snapshots to two CSV files.
type CSV struct {
	mu     sync.Mutex
	fills  *os.File
	equity *os.File
}

// NewCSV opens both files for appending. Headers are written only to
// files that start out empty, so a journal can be reopened by every CLI
// invocation of one session.
func NewCSV(fillsPath, equityPath string) (*CSV, error) {
	ff, err := openAppend(fillsPath)
	if err != nil {
		return nil, err
	}
	ef, err := openAppend(equityPath)
	if err != nil {
		ff.Close()
		return nil, err
	}

	j := &CSV{fills: ff, equity: ef}
	if err := writeHeader(ff, &[]*FillRecord{}); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal: fills header: %w", err)
	}
	if err := writeHeader(ef, &[]*EquitySnapshot{}); err != nil {
		j.Close()
		return nil, fmt.Errorf("journal: equity header: %w", err)
	}
	return j, nil
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

func writeHeader(f *os.File, empty any) error {
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if info.Size() > 0 {
		return nil
	}
	return gocsv.Marshal(empty, f)
}

func (j *CSV) RecordFill(r FillRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return gocsv.MarshalWithoutHeaders(&[]*FillRecord{&r}, j.fills)
}

func (j *CSV) RecordEquity(e EquitySnapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return gocsv.MarshalWithoutHeaders(&[]*EquitySnapshot{&e}, j.equity)
}

func (j *CSV) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	ferr := j.fills.Close()
	eerr := j.equity.Close()
	if ferr != nil {
		return ferr
	}
	return eerr
}
