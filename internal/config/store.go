package config

import "strings"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StoreConfig selects the relational backend for canonical records.
type StoreConfig struct {
	Driver string
	DSN    string
}

func loadStore() StoreConfig {
	driver := strings.ToLower(envOrDefault(envStoreDriver, defaultStoreDriver))
	if driver != DriverSQLite && driver != DriverPostgres {
		driver = defaultStoreDriver
	}
	return StoreConfig{
		Driver: driver,
		DSN:    envOrDefault(envStoreDSN, defaultStoreDSN),
	}
}
