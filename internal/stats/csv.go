package stats

import (
	"encoding/csv"
	"os"
	"strconv"

	"satqm/internal/model"
)

var csvHeader = []string{
	"count_timeslots",
	"count_received_dailylog",
	"count_failed_dailylog",
	"count_received_afd",
	"count_failed_afd",
	"count_processed_pytroll",
	"count_processed_pytroll_rel_afd",
	"count_failed_pytroll",
	"mean_process_time_pytroll",
	"process_time_pytroll_exceeded",
	"param_product_name",
	"param_period_year",
	"param_period_month",
	"param_allowed_process_time",
	"param_steps",
}

// AppendCSV adds one summary row to the ledger file, writing the header
// first when the file does not exist yet. Fields without a value stay empty.
func AppendCSV(stats model.QmStats, path string) error {
	_, statErr := os.Stat(path)
	addHeader := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if addHeader {
		if err := w.Write(csvHeader); err != nil {
			return err
		}
	}
	row := []string{
		strconv.Itoa(stats.CountTimeslots),
		strconv.Itoa(stats.CountReceivedDailylog),
		strconv.Itoa(stats.CountFailedDailylog),
		strconv.Itoa(stats.CountReceivedAfd),
		strconv.Itoa(stats.CountFailedAfd),
		strconv.Itoa(stats.CountProcessedPytroll),
		formatFloat(stats.CountProcessedPytrollRelAfd),
		strconv.Itoa(stats.CountFailedPytroll),
		formatFloat(stats.MeanProcessTimePytroll),
		formatInt(stats.ProcessTimePytrollExceeded),
		stats.ProductName,
		strconv.Itoa(stats.PeriodYear),
		strconv.Itoa(stats.PeriodMonth),
		formatFloat(stats.AllowedProcessTime),
		strconv.Itoa(stats.Steps),
	}
	if err := w.Write(row); err != nil {
		return err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return f.Sync()
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'g', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
