package history

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"roast-tracker/internal/model"
)

// CSVHeader is the first row written by WriteCSV.
var CSVHeader = []string{"time", "roast_index", "roast_label", "confidence", "advisory"}

// WriteCSV writes records as CSV, one row per record, in the given order.
// Confidence is printed as a percentage with one decimal.
func WriteCSV(w io.Writer, records []model.DetectionRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.CreatedAt.Format(time.RFC3339),
			strconv.FormatFloat(r.RoastIndex, 'f', -1, 64),
			string(r.RoastLabel),
			fmt.Sprintf("%.1f%%", r.Confidence*100),
			r.Advisory,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
