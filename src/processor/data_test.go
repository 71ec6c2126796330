package processor

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	pc := sampleContext(t)
	assert.Equal(t, 15, pc.Rows())
	assert.Equal(t, 3, pc.Report().RowsKept)

	opts := pc.Options()
	assert.Equal(t, []int{2020, 2021}, opts.Years)
	assert.Equal(t, []string{"Alaska Airlines Inc.", "Delta Air Lines Inc."}, opts.Carriers)
	assert.Equal(t, []string{"GA", "MA", "WA"}, opts.States)
	require.Len(t, opts.Causes, 6)
	assert.Equal(t, CauseOption{Label: SelectAll, Value: SelectAll}, opts.Causes[0])
	assert.Equal(t, CauseOption{Label: "Late Aircraft Delays", Value: "late_aircraft_ct"}, opts.Causes[5])
}

func TestNewContextMissingColumn(t *testing.T) {
	_, err := NewContext(sampleRaw(t).Drop(ColArrFlights))
	assert.ErrorIs(t, err, ErrMissingColumn)
}

func TestRunAllCauses(t *testing.T) {
	pc := sampleContext(t)

	res, err := pc.Run(context.Background(), FilterSpec{}, AllCauses)
	require.NoError(t, err)
	assert.Equal(t, ModeAll, res.Mode)
	assert.True(t, res.Jittered)
	assert.Equal(t, 15, res.Rows.Nrow())
	assert.Equal(t, StatusOK, res.Pie.Status)
	assert.Equal(t, "Delay Cause Breakdown — All Carriers, All States, All Years", res.Title())

	// 饼图基于抖动前的计数
	assert.Equal(t, 50.0, res.Pie.Total)

	// 基础表不受影响
	base := pc.Base()
	assert.Equal(t, 100.0, base.Col(ColArrFlights).Float()[0])
}

func TestRunCauseFilterSkipsJitter(t *testing.T) {
	pc := sampleContext(t)

	res, err := pc.Run(context.Background(), FilterSpec{
		Years:  Only("2020"),
		States: Only("GA"),
		Causes: Only(string(CauseCarrier)),
	}, nil)
	require.NoError(t, err)
	assert.False(t, res.Jittered)

	rows := res.Records()
	require.Len(t, rows, 1)
	row := rows[0]
	assert.Equal(t, 2020, row.Year)
	assert.Equal(t, "GA", row.State)
	assert.Equal(t, 100.0, row.ArrFlights)
	assert.Equal(t, 90.0, row.OnTimePercent)
	assert.Equal(t, CauseCarrier, row.DelayType)
	assert.Equal(t, "Carrier Delay", row.DelayLabel)
	require.NotNil(t, row.DelayShare)
	assert.Equal(t, 50.0, *row.DelayShare)
	require.NotNil(t, row.ArrDelay)
	assert.Equal(t, 300.0, *row.ArrDelay)

	require.Len(t, res.Pie.Slices, 1)
	assert.Equal(t, 100.0, res.Pie.Slices[0].Percent)
}

func TestRunDominant(t *testing.T) {
	pc := sampleContext(t)

	res, err := pc.Run(context.Background(), FilterSpec{
		Years:    Only("2020"),
		Carriers: Only("Delta Air Lines Inc."),
	}, DominantCause)
	require.NoError(t, err)
	assert.Equal(t, ModeDominant, res.Mode)

	rows := res.Records()
	require.Len(t, rows, 1)
	assert.Equal(t, CauseCarrier, rows[0].DelayType)
	assert.Equal(t, 5.0, rows[0].DelayCount)

	// 饼图只统计主要原因
	require.Len(t, res.Pie.Slices, 1)
	assert.Equal(t, 5.0, res.Pie.Total)
}

func TestRunEmptyAndNoDelays(t *testing.T) {
	pc := sampleContext(t)

	res, err := pc.Run(context.Background(), FilterSpec{Years: Only("1999")}, AllCauses)
	require.NoError(t, err)
	assert.Zero(t, res.Rows.Nrow())
	assert.Empty(t, res.Records())
	assert.Equal(t, StatusNoData, res.Pie.Status)

	res, err = pc.Run(context.Background(), FilterSpec{Years: Only("2021")}, AllCauses)
	require.NoError(t, err)
	assert.Equal(t, StatusNoDelays, res.Pie.Status)
	for _, row := range res.Records() {
		assert.Nil(t, row.DelayShare)
		assert.Equal(t, "NaN%", row.DelayShareLabel)
		assert.Equal(t, "0.0%", row.DelayPercentLabel)
	}
}

func TestRunCancelled(t *testing.T) {
	pc := sampleContext(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pc.Run(ctx, FilterSpec{}, AllCauses)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunConcurrent(t *testing.T) {
	pc := sampleContext(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := pc.Run(context.Background(), FilterSpec{}, DominantCause)
			assert.NoError(t, err)
			assert.Equal(t, 3, res.Rows.Nrow())
		}()
	}
	wg.Wait()
}
