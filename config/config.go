package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/warp/attendance-ledger/generic"
)

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Files      FilesConfig
	Attendance AttendanceConfig
	Leave      LeaveConfig
	Scheduler  SchedulerConfig
	Log        LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

// DatabaseConfig holds the SQLite location
type DatabaseConfig struct {
	// Path is a file path, or ":memory:" for a throwaway database.
	Path string `mapstructure:"path"`
}

// FilesConfig locates uploaded punch exports
type FilesConfig struct {
	Dir string `mapstructure:"dir"`
}

// AttendanceConfig holds punch parsing and work-time rules
type AttendanceConfig struct {
	Timezone        string   `mapstructure:"timezone"`
	GraceStart      string   `mapstructure:"grace_start"`
	DailyQuota      string   `mapstructure:"daily_quota"`
	IgnoreSeconds   bool     `mapstructure:"ignore_seconds"`
	CheckInState    string   `mapstructure:"check_in_state"`
	CheckOutState   string   `mapstructure:"check_out_state"`
	NameHeader      string   `mapstructure:"name_header"`
	MachineIDHeader string   `mapstructure:"machine_id_header"`
	TimeHeader      string   `mapstructure:"time_header"`
	StateHeader     string   `mapstructure:"state_header"`
	Weekend         []string `mapstructure:"weekend"`
}

// LeaveConfig holds accrual and balance rules
type LeaveConfig struct {
	// PermissionHoursPerMonth is used when a subsidiary rule leaves it unset.
	PermissionHoursPerMonth int `mapstructure:"permission_hours_per_month"`
	// TransferResetDate is "MM-DD" inside the balance year.
	TransferResetDate   string `mapstructure:"transfer_reset_date"`
	IncrementExperience bool   `mapstructure:"increment_experience"`
}

// SchedulerConfig drives the background accrual and reset runs
type SchedulerConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	CheckInterval time.Duration `mapstructure:"check_interval"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load loads configuration from environment and config files.
// Environment variables use the ATTENDANCE_ prefix, e.g.
// ATTENDANCE_SERVER_PORT or ATTENDANCE_ATTENDANCE_DAILY_QUOTA.
func Load(serviceName string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName(serviceName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(".")

	v.SetEnvPrefix("ATTENDANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Defaults returns the configuration with every default applied and no
// file or environment lookups.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	return &cfg
}

// Validate checks that every parsed setting is usable.
func (c *Config) Validate() error {
	if _, err := c.Attendance.Location(); err != nil {
		return err
	}
	if _, err := c.Attendance.Grace(); err != nil {
		return err
	}
	if _, err := c.Attendance.Quota(); err != nil {
		return err
	}
	if _, err := c.Attendance.WeekendDays(); err != nil {
		return err
	}
	if _, _, err := c.Leave.ResetMonthDay(); err != nil {
		return err
	}
	if c.Scheduler.Enabled && c.Scheduler.CheckInterval <= 0 {
		return errors.New("scheduler.check_interval must be positive")
	}
	if c.Leave.PermissionHoursPerMonth < 0 {
		return errors.New("leave.permission_hours_per_month must not be negative")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.environment", EnvDevelopment)
	v.SetDefault("server.allow_origins", []string{"http://localhost:5173", "http://localhost:8080"})

	v.SetDefault("database.path", "attendance.db")
	v.SetDefault("files.dir", "./sheets")

	// Attendance defaults
	v.SetDefault("attendance.timezone", "Africa/Cairo")
	v.SetDefault("attendance.grace_start", "07:00")
	v.SetDefault("attendance.daily_quota", "08:30:00")
	v.SetDefault("attendance.ignore_seconds", true)
	v.SetDefault("attendance.check_in_state", "C/In")
	v.SetDefault("attendance.check_out_state", "C/Out")
	v.SetDefault("attendance.name_header", "Name")
	v.SetDefault("attendance.machine_id_header", "AC-No.")
	v.SetDefault("attendance.time_header", "Time")
	v.SetDefault("attendance.state_header", "State")
	v.SetDefault("attendance.weekend", []string{"friday", "saturday"})

	// Leave defaults
	v.SetDefault("leave.permission_hours_per_month", 2)
	v.SetDefault("leave.transfer_reset_date", "07-01")
	v.SetDefault("leave.increment_experience", true)

	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.check_interval", time.Hour)

	v.SetDefault("log.level", "info")
}

// =============================================================================
// TYPED ACCESSORS
// =============================================================================

func (a AttendanceConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("attendance.timezone: %w", err)
	}
	return loc, nil
}

func (a AttendanceConfig) Grace() (generic.ClockTime, error) {
	c, err := generic.ParseClock(a.GraceStart)
	if err != nil {
		return generic.ClockTime{}, fmt.Errorf("attendance.grace_start: %w", err)
	}
	return c, nil
}

// Quota returns nil when no daily quota is configured.
func (a AttendanceConfig) Quota() (*generic.Millis, error) {
	if strings.TrimSpace(a.DailyQuota) == "" {
		return nil, nil
	}
	q, err := generic.ParseHHMMSS(a.DailyQuota)
	if err != nil {
		return nil, fmt.Errorf("attendance.daily_quota: %w", err)
	}
	return &q, nil
}

func (a AttendanceConfig) WeekendDays() (generic.Weekend, error) {
	w, err := generic.ParseWeekend(a.Weekend)
	if err != nil {
		return nil, fmt.Errorf("attendance.weekend: %w", err)
	}
	return w, nil
}

// ResetMonthDay parses the "MM-DD" transfer reset date.
func (l LeaveConfig) ResetMonthDay() (time.Month, int, error) {
	t, err := time.Parse("01-02", strings.TrimSpace(l.TransferResetDate))
	if err != nil {
		return 0, 0, fmt.Errorf("leave.transfer_reset_date: %w", err)
	}
	return t.Month(), t.Day(), nil
}
