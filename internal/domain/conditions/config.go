package conditions

// Config tunes the conditions service.
type Config struct {
	DefaultDaysAhead int
	MaxDaysAhead     int
	ArchiveRaw       bool
}

// DefaultConfig mirrors the public API defaults.
func DefaultConfig() Config {
	return Config{DefaultDaysAhead: 7, MaxDaysAhead: 7}
}
