package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

// Supported output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// ErrUnknownFormat is returned by Write for unsupported formats.
var ErrUnknownFormat = errors.New("unknown export format")

// Write encodes schedules in the given format.
func Write(w io.Writer, format string, schedules []Schedule) error {
	switch strings.ToLower(format) {
	case "", FormatJSON:
		return WriteJSON(w, schedules)
	case FormatCSV:
		return WriteCSV(w, schedules)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}
}

// WriteJSON writes the schedules to w as indented JSON.
func WriteJSON(w io.Writer, schedules []Schedule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(schedules)
}

// WriteCSV writes one row per task. Unscheduled dates are left empty and
// resources are joined with ';'.
func WriteCSV(w io.Writer, schedules []Schedule) error {
	cw := csv.NewWriter(w)
	header := []string{"scenario", "task_id", "name", "start", "end", "scheduled", "effort_done", "criticalness", "path_criticalness", "resources"}
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, s := range schedules {
		for _, t := range s.Tasks {
			rec := []string{
				s.Scenario,
				t.ID,
				t.Name,
				formatTime(t.Start),
				formatTime(t.End),
				strconv.FormatBool(t.Scheduled),
				formatFloat(t.EffortDone),
				formatFloat(t.Criticalness),
				formatFloat(t.PathCriticalness),
				strings.Join(t.Resources, ";"),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteBookingsCSV writes one row per booked interval.
func WriteBookingsCSV(w io.Writer, schedules []Schedule) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"scenario", "resource", "task", "start", "end"}); err != nil {
		return err
	}
	for _, s := range schedules {
		for _, r := range s.Resources {
			for _, b := range r.Bookings {
				rec := []string{s.Scenario, r.ID, b.Task, b.Start.Format(time.RFC3339), b.End.Format(time.RFC3339)}
				if err := cw.Write(rec); err != nil {
					return err
				}
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
