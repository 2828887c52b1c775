package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/attendance-ledger/config"
	"github.com/warp/attendance-ledger/generic"
)

// chdir moves into an empty directory so no stray config file is picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdir(t)

	cfg, err := config.Load("attendance-test")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, config.EnvDevelopment, cfg.Server.Environment)
	assert.Equal(t, "attendance.db", cfg.Database.Path)

	grace, err := cfg.Attendance.Grace()
	require.NoError(t, err)
	assert.Equal(t, generic.ClockTime{Hour: 7}, grace)

	quota, err := cfg.Attendance.Quota()
	require.NoError(t, err)
	require.NotNil(t, quota)
	assert.Equal(t, 8*generic.Hour+30*generic.Minute, *quota)

	weekend, err := cfg.Attendance.WeekendDays()
	require.NoError(t, err)
	assert.Equal(t, generic.DefaultWeekend, weekend)

	month, day, err := cfg.Leave.ResetMonthDay()
	require.NoError(t, err)
	assert.Equal(t, time.July, month)
	assert.Equal(t, 1, day)
	assert.True(t, cfg.Leave.IncrementExperience)
	assert.Equal(t, 2, cfg.Leave.PermissionHoursPerMonth)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	chdir(t)
	t.Setenv("ATTENDANCE_SERVER_PORT", "9090")
	t.Setenv("ATTENDANCE_ATTENDANCE_DAILY_QUOTA", "08:00:00")
	t.Setenv("ATTENDANCE_LEAVE_TRANSFER_RESET_DATE", "04-01")

	cfg, err := config.Load("attendance-test")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	quota, err := cfg.Attendance.Quota()
	require.NoError(t, err)
	assert.Equal(t, 8*generic.Hour, *quota)

	month, _, err := cfg.Leave.ResetMonthDay()
	require.NoError(t, err)
	assert.Equal(t, time.April, month)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "attendance-test.yaml"), []byte(`
attendance:
  grace_start: "06:30"
  weekend: [sunday]
database:
  path: ":memory:"
`), 0o644))

	cfg, err := config.Load("attendance-test")
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.Database.Path)
	grace, err := cfg.Attendance.Grace()
	require.NoError(t, err)
	assert.Equal(t, generic.ClockTime{Hour: 6, Minute: 30}, grace)
	weekend, err := cfg.Attendance.WeekendDays()
	require.NoError(t, err)
	assert.Equal(t, generic.Weekend{time.Sunday}, weekend)
}

func TestLoad_RejectsBadSettings(t *testing.T) {
	tests := map[string]string{
		"ATTENDANCE_ATTENDANCE_TIMEZONE":              "Mars/Olympus",
		"ATTENDANCE_ATTENDANCE_GRACE_START":           "late",
		"ATTENDANCE_ATTENDANCE_DAILY_QUOTA":           "eight hours",
		"ATTENDANCE_LEAVE_TRANSFER_RESET_DATE":        "13-45",
		"ATTENDANCE_LEAVE_PERMISSION_HOURS_PER_MONTH": "-1",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			chdir(t)
			t.Setenv(key, value)

			_, err := config.Load("attendance-test")
			assert.Error(t, err)
		})
	}
}

func TestAttendanceConfig_EmptyQuota(t *testing.T) {
	q, err := config.AttendanceConfig{}.Quota()
	require.NoError(t, err)
	assert.Nil(t, q)
}

func TestDefaults_MatchLoad(t *testing.T) {
	chdir(t)

	loaded, err := config.Load("attendance-test")
	require.NoError(t, err)

	d := config.Defaults()
	assert.Equal(t, loaded, d)
	assert.NoError(t, d.Validate())
	assert.Equal(t, time.Hour, d.Scheduler.CheckInterval)
}
