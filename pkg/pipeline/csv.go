package pipeline

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/meloslabs/streamlake/pkg/duck"
)

// CSV field encoders for the writer staging files. NULL is the duck.NullField
// sentinel; an empty field stays a valid empty string.

func csvInt(v int) string {
	return strconv.Itoa(v)
}

func csvInt64(v int64) string {
	return strconv.FormatInt(v, 10)
}

func csvFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func csvTime(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05.000")
}

func csvNullString(s sql.NullString) string {
	if !s.Valid {
		return duck.NullField
	}
	return s.String
}

func csvNullFloat(f sql.NullFloat64) string {
	if !f.Valid {
		return duck.NullField
	}
	return strconv.FormatFloat(f.Float64, 'f', -1, 64)
}
