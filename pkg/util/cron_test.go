package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateCronExpr(t *testing.T) {
	tests := []struct {
		expr    string
		wantErr bool
	}{
		{"0 8 * * *", false},
		{"*/15 * * * *", false},
		{"0 8 * * 1-5", false},
		{"", true},
		{"0 8 * *", true},
		{"61 8 * * *", true},
		{"@every 1h", true},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			err := ValidateCronExpr(tt.expr)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNextCronTime(t *testing.T) {
	from := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	next, err := NextCronTime("0 8 * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 11, 8, 0, 0, 0, time.UTC), next)

	_, err = NextCronTime("bogus", from)
	assert.Error(t, err)
}

func TestNewLogger_Levels(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("", "development").String())
	assert.Equal(t, "INFO", parseLevel("", "production").String())
	assert.Equal(t, "WARN", parseLevel("warning", "development").String())
	assert.Equal(t, "ERROR", parseLevel("ERROR", "production").String())
	assert.NotNil(t, NewLogger("production", "info"))
}
