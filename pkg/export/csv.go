// Package export writes search results as CSV.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Sternrassler/github-user-browser/pkg/model"
)

// Header is the fixed column layout of an export.
var Header = []string{"Login", "Name", "Email", "Company", "URL", "Hireable"}

// Row returns the CSV fields of one record. The URL column is the API URL
// (Record.URL) for every row. Records that were never loaded in full export
// their login and URL only.
func Row(r model.Record) []string {
	if r.Full == nil {
		return []string{r.Summary.Login, "", "", "", r.URL(), ""}
	}

	u := r.Full
	hireable := ""
	if u.Hireable != nil {
		hireable = "False"
		if *u.Hireable {
			hireable = "True"
		}
	}
	return []string{u.Login, u.Name, u.Email, u.Company, r.URL(), hireable}
}

// Write writes the header followed by one row per record.
func Write(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(Row(r)); err != nil {
			return fmt.Errorf("write row %d: %w", i, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// WriteFile writes records to path. The file is written under a temporary
// name in the same directory and renamed into place, so an existing file is
// never left half written.
func WriteFile(path string, records []model.Record) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename into %s: %w", path, err)
	}
	return nil
}
