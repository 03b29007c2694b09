package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hackgods/hospital-admin/internal/bed"
)

func TestWriteOccupancy(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	bedID := uuid.New()
	exited := from.Add(6 * time.Hour)

	entries := []bed.LedgerEntry{
		{
			OccupancyRecord: bed.OccupancyRecord{
				ID: uuid.New(), BedID: bedID, PatientID: uuid.New(), PatientName: "Ana Lopez",
				EnteredAt: from.Add(-2 * time.Hour), ExitedAt: &exited, Reason: "observation",
			},
			BedNumber: "101", Floor: 1, BedType: bed.TypeStandard,
		},
		{
			OccupancyRecord: bed.OccupancyRecord{
				ID: uuid.New(), BedID: bedID, PatientID: uuid.New(), PatientName: "Luis Gil",
				EnteredAt: from.Add(12 * time.Hour), Reason: "surgery",
			},
			BedNumber: "101", Floor: 1, BedType: bed.TypeStandard,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteOccupancy(&buf, entries, from, to, time.UTC))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{ledgerSheet, summarySheet}, f.GetSheetList())

	rows, err := f.GetRows(ledgerSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, ledgerColumns, rows[0])
	assert.Equal(t, "Ana Lopez", rows[1][3])
	assert.Equal(t, "6", rows[1][7], "stay is clipped to the period")
	assert.Equal(t, "2025-03-01 12:00", rows[2][5])
	assert.Equal(t, "12", rows[2][7], "open stay runs to the end of the period")

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 2)
	assert.Equal(t, []string{"1", "101", "standard", "2", "18"}, summary[1])
}

func TestWriteOccupancyEmpty(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	var buf bytes.Buffer
	require.NoError(t, WriteOccupancy(&buf, nil, from, from.AddDate(0, 1, 0), nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(ledgerSheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
