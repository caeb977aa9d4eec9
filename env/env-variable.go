package env

import "github.com/mcdexio/chain-collector/common/config"

// IsCI returns true if we are in CI mode.
func IsCI() bool {
	return config.GetBool("CI", false)
}

// HasDatabase reports whether a database connection string is configured; database-backed
// tests skip without it.
func HasDatabase() bool {
	return config.GetString("DB_ARGS", "") != ""
}
