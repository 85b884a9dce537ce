package replication

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFrequency(t *testing.T) {
	tests := []struct {
		input   string
		want    Frequency
		wantErr bool
	}{
		{"minute", Minutely, false},
		{"minutely", Minutely, false},
		{"m", Minutely, false},
		{"hour", Hourly, false},
		{"h", Hourly, false},
		{"day", Daily, false},
		{"daily", Daily, false},
		{"changeset", Changeset, false},
		{"weekly", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseFrequency(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInferFrequency(t *testing.T) {
	tests := []struct {
		path string
		want Frequency
	}{
		{"replication/minute/004/230/996", Minutely},
		{"replication/hour/000/075/000", Hourly},
		{"replication/day/000/002/891", Daily},
		{"replication/changesets/004/139/992", Changeset},
		{"somewhere/else", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, InferFrequency(tt.path))
		})
	}
}

func TestFrequencyInterval(t *testing.T) {
	assert.Equal(t, time.Minute, Minutely.Interval())
	assert.Equal(t, time.Hour, Hourly.Interval())
	assert.Equal(t, 24*time.Hour, Daily.Interval())
	assert.Equal(t, time.Minute, Changeset.Interval())
}
