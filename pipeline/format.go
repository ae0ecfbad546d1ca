package pipeline

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	json "github.com/goccy/go-json"

	"noshow-prediction-api/models"
)

// Columns is the result table header, in order.
var Columns = []string{"MRN", "APPOINTMENT DATE", "CLINIC", "NO SHOW (Y/N)", "RECOMMENDATION"}

func Format(rs models.ResultSet) []models.ResultRow {
	rows := make([]models.ResultRow, len(rs))
	for i, r := range rs {
		rows[i] = models.ResultRow{
			MRN:             r.MRN,
			AppointmentDate: r.AppointmentDate.Format(TimestampLayout),
			Clinic:          r.Clinic,
			NoShow:          r.NoShow,
			Recommendation:  r.Recommendation.Label(),
		}
	}
	return rows
}

func rowValues(r models.ResultRow) []string {
	return []string{r.MRN, r.AppointmentDate, r.Clinic, r.NoShow, r.Recommendation}
}

// EncodeFrame renders rows as column-oriented JSON ({"MRN":{"0":...},...}),
// the layout pandas.read_json reads by default. Columns keep their table
// order and rows are keyed by position, so the output is byte-stable.
func EncodeFrame(rows []models.ResultRow) ([]byte, error) {
	values := make([][]string, len(rows))
	for i, r := range rows {
		values[i] = rowValues(r)
	}

	var buf bytes.Buffer
	buf.WriteByte('{')
	for c, col := range Columns {
		if c > 0 {
			buf.WriteByte(',')
		}
		if err := writeJSONString(&buf, col); err != nil {
			return nil, err
		}
		buf.WriteString(":{")
		for i, v := range values {
			if i > 0 {
				buf.WriteByte(',')
			}
			buf.WriteByte('"')
			buf.WriteString(strconv.Itoa(i))
			buf.WriteString(`":`)
			if err := writeJSONString(&buf, v[c]); err != nil {
				return nil, err
			}
		}
		buf.WriteByte('}')
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode %q: %w", s, err)
	}
	buf.Write(b)
	return nil
}

// WriteCSV writes the downloadable report.
func WriteCSV(w io.Writer, rows []models.ResultRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(rowValues(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
