// Package snapshot persists the reconciled records and the enrichment
// progress ledger. All writes go through a temp file and rename so a crash
// mid-write never leaves a torn snapshot.
package snapshot

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/firmographics-cli/internal/model"
)

// SaveRecords writes the full record set to path atomically.
func SaveRecords(path string, records []model.CompanyRecord) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal records")
	}
	return writeAtomic(path, append(data, '\n'))
}

// LoadRecords reads a record set previously written by SaveRecords.
func LoadRecords(path string) ([]model.CompanyRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "snapshot: read %s", path)
	}
	var records []model.CompanyRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, eris.Wrap(err, "snapshot: unmarshal records")
	}
	return records, nil
}

// Ledger tracks which companies the enrichment pass has completed.
type Ledger struct {
	done map[string]bool
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{done: map[string]bool{}}
}

// Add marks a company as completed.
func (l *Ledger) Add(entityName string) {
	l.done[entityName] = true
}

// Has reports whether a company has been completed.
func (l *Ledger) Has(entityName string) bool {
	return l.done[entityName]
}

// Len returns the number of completed companies.
func (l *Ledger) Len() int {
	return len(l.done)
}

// Names returns the completed entity names, sorted for stable persistence.
func (l *Ledger) Names() []string {
	names := make([]string, 0, len(l.done))
	for name := range l.done {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SaveLedger writes the ledger to path atomically as a JSON array of names.
func SaveLedger(path string, l *Ledger) error {
	data, err := json.MarshalIndent(l.Names(), "", "  ")
	if err != nil {
		return eris.Wrap(err, "snapshot: marshal ledger")
	}
	return writeAtomic(path, append(data, '\n'))
}

// LoadLedger reads the ledger at path. A missing file yields an empty
// ledger so a fresh run and a resumed run share one code path.
func LoadLedger(path string) (*Ledger, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewLedger(), nil
		}
		return nil, eris.Wrapf(err, "snapshot: read ledger %s", path)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, eris.Wrap(err, "snapshot: unmarshal ledger")
	}
	l := NewLedger()
	for _, name := range names {
		l.Add(name)
	}
	return l, nil
}

// DeleteLedger removes the ledger file after a complete pass. A missing
// file is not an error.
func DeleteLedger(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return eris.Wrapf(err, "snapshot: delete ledger %s", path)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrap(err, "snapshot: create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return eris.Wrap(err, "snapshot: write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return eris.Wrap(err, "snapshot: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return eris.Wrapf(err, "snapshot: rename to %s", path)
	}
	return nil
}
