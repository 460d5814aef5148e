package scan

import (
	"errors"
	"fmt"
	"io"
	"iter"

	"github.com/yourorg/reuse-assistant/internal/model"
)

// Result is the outcome of one parsing pass over scanner output.
type Result struct {
	Licenses *model.LicenseMap
	// Accepted holds the entries that made it into Licenses, in order.
	Accepted    []model.ScanEntry
	Diagnostics []model.Diagnostic
}

// Collect builds a LicenseMap from a sequence of entries. The first license
// seen for a directory wins; later ones and malformed groups become
// diagnostics. Only read errors abort collection.
func Collect(entries iter.Seq2[model.ScanEntry, error]) (Result, error) {
	res := Result{Licenses: model.NewLicenseMap()}
	for e, err := range entries {
		if err != nil {
			var me *MalformedLineError
			if !errors.As(err, &me) {
				return res, fmt.Errorf("read scan output: %w", err)
			}
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Kind:    model.DiagMalformedScanLine,
				Line:    me.Line,
				Message: me.Reason,
			})
			continue
		}
		if !res.Licenses.Add(e.Directory, e.License) {
			first, _ := res.Licenses.Get(e.Directory)
			res.Diagnostics = append(res.Diagnostics, model.Diagnostic{
				Kind:      model.DiagDuplicateDirectory,
				Line:      e.Line,
				Directory: e.Directory,
				License:   e.License,
				Message:   fmt.Sprintf("duplicate information for directory %s, keeping %s", e.Directory, first),
			})
			continue
		}
		res.Accepted = append(res.Accepted, e)
	}
	return res, nil
}

// Parse decodes scanner output read from r.
func Parse(r io.Reader, root string) (Result, error) {
	return Collect(Entries(r, root))
}
