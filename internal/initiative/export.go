package initiative

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// ExportHeader is the first row of a CSV export.
var ExportHeader = []string{
	"Initiative ID/Name", "Owner", "Status", "Progress percentage",
	"Due date", "Description", "Related OKR/Goal",
}

// ExportCSV renders a snapshot as CSV. It is a read-only projection.
func ExportCSV(items []Initiative) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(ExportHeader); err != nil {
		return "", fmt.Errorf("write header: %w", err)
	}
	for _, it := range items {
		row := []string{
			it.Identity(),
			it.Owner,
			string(it.Status),
			it.Progress.String() + "%",
			it.DueDate,
			it.Description,
			it.RelatedOKR,
		}
		if err := w.Write(row); err != nil {
			return "", fmt.Errorf("write row %s: %w", it.Identity(), err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("flush csv: %w", err)
	}
	return buf.String(), nil
}
