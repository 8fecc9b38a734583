package tsv

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/AlfredBerg/rod-route-tracker/internal/track"
)

// TsvOutput appends one "<timestamp>\t<duration>\t<distance>" row per measurement.
// The file is opened for every row so earlier content is never touched.
type TsvOutput struct {
	Path string
}

func (o *TsvOutput) HandleMeasurement(m track.Measurement) error {
	if o.Path == "" {
		return fmt.Errorf("tsv output file not set")
	}

	f, err := os.OpenFile(o.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed opening %s: %w", o.Path, err)
	}

	w := csv.NewWriter(f)
	w.Comma = '\t'
	err = w.Write([]string{track.FormatTimestamp(m.CapturedAt), m.Duration, m.Distance})
	if err == nil {
		w.Flush()
		err = w.Error()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("failed appending to %s: %w", o.Path, err)
	}
	return nil
}
