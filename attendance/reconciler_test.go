package attendance_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-ledger/attendance"
	"github.com/warp/attendance-ledger/generic"
)

const marchExport = `No.,Name,AC-No.,Time,State
1,Sara Adel,17,10/03/2024 8:10 AM,C/In
2,Sara Adel,17,10/03/2024 8:45 AM,C/In
3,Sara Adel,17,10/03/2024 1:00 PM,C/Out
4,Sara Adel,17,10/03/2024 5:00 PM,C/Out
5,Omar Nabil,22,11/03/2024 9:00 AM,C/In
6,Omar Nabil,22,01/04/2024 9:00 AM,C/In
`

func TestReconcileMonth_FoldsFirstInLastOut(t *testing.T) {
	// GIVEN: Two check-ins and two check-outs for one employee on one day
	// WHEN: Reconciling March
	// THEN: The first check-in and the last check-out are kept

	r := attendance.NewReconciler(time.UTC, nil)
	res, err := r.ReconcileMonth(strings.NewReader(marchExport), 2024, time.March)
	require.NoError(t, err)

	day := res.Days["17"][generic.NewDate(2024, time.March, 10)]
	require.NotNil(t, day)
	require.NotNil(t, day.CheckIn)
	require.NotNil(t, day.CheckOut)
	assert.Equal(t, time.Date(2024, time.March, 10, 8, 10, 0, 0, time.UTC), *day.CheckIn)
	assert.Equal(t, time.Date(2024, time.March, 10, 17, 0, 0, 0, time.UTC), *day.CheckOut)
	assert.Equal(t, "Sara Adel", res.Names["17"])
	assert.Empty(t, res.Notes)
}

func TestReconcileMonth_DropsRowsOutsidePeriod(t *testing.T) {
	r := attendance.NewReconciler(time.UTC, nil)
	res, err := r.ReconcileMonth(strings.NewReader(marchExport), 2024, time.March)
	require.NoError(t, err)

	require.Contains(t, res.Days, "22")
	assert.Len(t, res.Days["22"], 1)
	assert.NotContains(t, res.Days["22"], generic.NewDate(2024, time.April, 1))
}

func TestReconcileMonth_CaseInsensitiveHeadersAnyOrder(t *testing.T) {
	// GIVEN: Headers in a different order and case, plus a byte-order mark
	// WHEN: Reconciling
	// THEN: Columns are still located

	export := "\ufeffSTATE,time,ac-no.,name,Department\n" +
		"c/in,10/03/2024 08:00,5,Lina,HR\n" +
		"C/OUT,10/03/2024 16:00,5,Lina,HR\n"

	r := attendance.NewReconciler(time.UTC, nil)
	res, err := r.ReconcileMonth(strings.NewReader(export), 2024, time.March)
	require.NoError(t, err)

	day := res.Days["5"][generic.NewDate(2024, time.March, 10)]
	require.NotNil(t, day)
	assert.NotNil(t, day.CheckIn)
	assert.NotNil(t, day.CheckOut)
}

func TestReconcileMonth_DataQualityNotes(t *testing.T) {
	// GIVEN: Rows without a machine ID, with a bad time and an unknown state
	// WHEN: Reconciling
	// THEN: Each problem becomes one note and no error is returned

	export := `Name,AC-No.,Time,State
Hana,,10/03/2024 8:00,C/In
Hana,,10/03/2024 16:00,C/Out
Ali,9,yesterday,C/In
Ali,9,10/03/2024 9:00,Break
`
	r := attendance.NewReconciler(time.UTC, nil)
	res, err := r.ReconcileMonth(strings.NewReader(export), 2024, time.March)
	require.NoError(t, err)

	require.Len(t, res.Notes, 3)
	assert.Equal(t, `"Hana" has records for attendance in the sheet, but doesn't have a fingerprint machine ID.`, res.Notes[0])
	assert.Equal(t, `Line 4: cannot read punch time "yesterday" for "Ali".`, res.Notes[1])
	assert.Equal(t, `Line 5: unknown punch state "Break" for "Ali".`, res.Notes[2])
	assert.Empty(t, res.Days["9"])
}

func TestReconcileMonth_MissingColumn(t *testing.T) {
	tests := []struct {
		name   string
		export string
	}{
		{"no state", "Name,AC-No.,Time\nA,1,10/03/2024 8:00\n"},
		{"no machine id", "Name,Time,State\nA,10/03/2024 8:00,C/In\n"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := attendance.NewReconciler(time.UTC, nil)
			_, err := r.ReconcileMonth(strings.NewReader(tt.export), 2024, time.March)
			assert.True(t, errors.Is(err, generic.ErrMissingColumn), "got %v", err)
		})
	}
}

func TestReconcileMonth_Deterministic(t *testing.T) {
	r := attendance.NewReconciler(time.UTC, nil)

	first, err := r.ReconcileMonth(strings.NewReader(marchExport), 2024, time.March)
	require.NoError(t, err)
	second, err := r.ReconcileMonth(strings.NewReader(marchExport), 2024, time.March)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReconcileDay_OnlyThatDay(t *testing.T) {
	r := attendance.NewReconciler(time.UTC, nil)
	res, err := r.ReconcileDay(strings.NewReader(marchExport), generic.NewDate(2024, time.March, 11))
	require.NoError(t, err)

	assert.Len(t, res.Days, 1)
	require.Contains(t, res.Days, "22")
	assert.Nil(t, res.Days["22"].CheckOut)
}

func TestReconciler_CustomStates(t *testing.T) {
	r := attendance.NewReconciler(time.UTC, nil)
	r.CheckInState = "IN"
	r.CheckOutState = "OUT"

	export := "Name,AC-No.,Time,State\nA,1,10/03/2024 8:00,in\nA,1,10/03/2024 15:00,out\n"
	res, err := r.ReconcileMonth(strings.NewReader(export), 2024, time.March)
	require.NoError(t, err)

	day := res.Days["1"][generic.NewDate(2024, time.March, 10)]
	require.NotNil(t, day)
	assert.NotNil(t, day.CheckOut)
}
