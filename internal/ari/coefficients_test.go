package ari

import (
	"math"
	"testing"

	"github.com/m-juang/healthy-waters-and-flood-resilience-internship/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCoefficientTable_Lookup(t *testing.T) {
	table, err := NewCoefficientTable([]domain.Coefficient{
		{LocationID: "g2", Duration: domain.Duration10m, M: 0.1, B: 1},
		{LocationID: "g1", Duration: domain.Duration10m, M: 0.2, B: 2},
		{LocationID: "g1", Duration: domain.Duration24h, M: 0.01, B: 0.3},
	})
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []string{"g1", "g2"}, table.Locations())

	c, err := table.Lookup("g1", domain.Duration24h)
	require.NoError(t, err)
	assert.InDelta(t, 0.01, c.M, 1e-12)

	_, err = table.Lookup("g2", domain.Duration24h)
	var missing *domain.MissingCoefficientError
	assert.ErrorAs(t, err, &missing)
}

func TestNewCoefficientTable_Fatal(t *testing.T) {
	tests := []struct {
		name string
		rows []domain.Coefficient
		want error
	}{
		{
			name: "duplicate key",
			rows: []domain.Coefficient{
				{LocationID: "g1", Duration: domain.Duration10m, M: 0.1, B: 1},
				{LocationID: "g1", Duration: domain.Duration10m, M: 0.2, B: 1},
			},
			want: domain.ErrDuplicateCoefficient,
		},
		{
			name: "nan coefficient",
			rows: []domain.Coefficient{{LocationID: "g1", Duration: domain.Duration10m, M: math.NaN(), B: 1}},
			want: domain.ErrInvalidCoefficient,
		},
		{
			name: "unknown duration",
			rows: []domain.Coefficient{{LocationID: "g1", Duration: "15m", M: 0.1, B: 1}},
			want: domain.ErrInvalidCoefficient,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCoefficientTable(tt.rows)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}
