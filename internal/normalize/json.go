package normalize

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// MarshalJSON writes the row in the engine's flat shape. Absent numbers are
// omitted and unreadable ones are written as the string "NaN", which
// Normalize reads back as NaN.
func (r BatchRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"index":`)
	buf.WriteString(strconv.Itoa(r.Index))

	switch o := r.Outcome.(type) {
	case Succeeded:
		m := o.Metrics
		for _, f := range m.fields() {
			if *f.ptr == nil {
				continue
			}
			buf.WriteString(`,"` + f.name + `":`)
			buf.WriteString(formatNumber(**f.ptr))
		}
		buf.WriteString(`,"error":null`)
	case Failed:
		reason, err := json.Marshal(o.Reason)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"error":`)
		buf.Write(reason)
	default:
		buf.WriteString(`,"error":null`)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return `"NaN"`
	case math.IsInf(f, 1):
		return `"Infinity"`
	case math.IsInf(f, -1):
		return `"-Infinity"`
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}
