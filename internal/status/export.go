package status

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

var csvHeader = []string{
	"pad_code", "current_status", "number_of_run", "num_of_success", "num_of_error",
	"success_rate", "temple_id", "phone_number_counts", "forward_num", "secondary_email_num",
	"country", "code", "latitude", "longitude", "language", "time_zone", "proxy",
	"created_at", "updated_at",
}

// WriteCSV writes devices as CSV with a header row.
func WriteCSV(w io.Writer, devices []Device) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	for _, d := range devices {
		row := []string{
			d.PadCode,
			d.CurrentStatus,
			strconv.Itoa(d.NumberOfRun),
			strconv.Itoa(d.NumOfSuccess),
			strconv.Itoa(d.NumOfError),
			strconv.FormatFloat(d.SuccessRate(), 'f', 1, 64),
			strconv.Itoa(d.TempleID),
			strconv.Itoa(d.PhoneNumberCounts),
			strconv.Itoa(d.ForwardNum),
			strconv.Itoa(d.SecondaryEmailNum),
			d.Country,
			d.Code,
			strconv.FormatFloat(d.Latitude, 'f', -1, 64),
			strconv.FormatFloat(d.Longitude, 'f', -1, 64),
			d.Language,
			d.TimeZone,
			d.Proxy,
			d.CreatedAt,
			d.UpdatedAt,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row %s: %w", d.PadCode, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
