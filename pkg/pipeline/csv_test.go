package pipeline

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/meloslabs/streamlake/pkg/duck"
)

func TestCSVEncoders(t *testing.T) {
	require.Equal(t, "42", csvInt(42))
	require.Equal(t, "8589934592", csvInt64(int64(1)<<33))
	require.Equal(t, "269.58279", csvFloat(269.58279))
	require.Equal(t, "2018-11-01 21:37:10.796", csvTime(time.Date(2018, 11, 1, 21, 37, 10, 796e6, time.UTC)))

	// Invalid Null values encode as the NULL sentinel; a valid empty string
	// stays an empty field and survives the staging load as ''.
	require.Equal(t, duck.NullField, csvNullString(sql.NullString{}))
	require.Equal(t, "", csvNullString(sql.NullString{String: "", Valid: true}))
	require.Equal(t, "Chicago", csvNullString(sql.NullString{String: "Chicago", Valid: true}))
	require.Equal(t, duck.NullField, csvNullFloat(sql.NullFloat64{}))
	require.Equal(t, "41.88", csvNullFloat(sql.NullFloat64{Float64: 41.88, Valid: true}))
}
