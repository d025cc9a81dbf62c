package service_test

import (
	"errors"
	"testing"
	"time"

	"github.com/CZERTAINLY/notary-scan/internal/service"

	"github.com/stretchr/testify/require"
)

func TestParseCron(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		scenario string
		given    string
		next     time.Time
		err      error
	}{
		{"valid_5_fields", "*/15 * * * *", base.Add(15 * time.Minute), nil},
		{"macro_hourly", "@hourly", base.Add(time.Hour), nil},
		{"macro_every", "@every 6h", base.Add(6 * time.Hour), nil},
		{"padded", "  0 3 * * *  ", base.Add(3 * time.Hour), nil},
		{"invalid_field_count_6", "0 */2 * * * *", time.Time{}, errors.New("expected exactly 5 fields, found 6: [0 */2 * * * *]")},
		{"invalid_token_5_fields", "* * 32 * *", time.Time{}, errors.New("end of range (32) above maximum (31): 32")},
		{"empty", "", time.Time{}, errors.New("empty cron expression")},
	}

	for _, tc := range cases {
		t.Run(tc.scenario, func(t *testing.T) {
			schedule, err := service.ParseCron(tc.given)
			if tc.err != nil {
				require.EqualError(t, err, tc.err.Error())
				return
			}
			require.NoError(t, err)
			next := schedule.Next(base)
			require.True(t, tc.next.Equal(next), "got %s", next)
		})
	}
}
