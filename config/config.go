package config

import (
	"os"
	"strconv"

	"gopkg.in/ini.v1"
)

// Config holds the provider configuration
type Config struct {
	MySQL MySQLConfig
	Batch BatchConfig
}

// MySQLConfig holds connection settings
type MySQLConfig struct {
	DSN string
}

// BatchConfig holds batching settings
type BatchConfig struct {
	MaxBatchSize        int  // rows per batch, capped at 1000
	NetworkPacketSize   int  // derives the script byte ceiling
	ContiguousInsertIDs bool // per-row identities for grouped inserts
	StatementCacheSize  int  // rendered-statement cache entries
}

// Load reads configuration from an INI file with environment variable
// overrides
func Load(path string) (*Config, error) {
	cfg, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	mysqlSec := cfg.Section("mysql")
	batchSec := cfg.Section("batch")

	config := &Config{
		MySQL: MySQLConfig{
			DSN: mysqlSec.Key("dsn").MustString("root@tcp(127.0.0.1:3306)/app"),
		},
		Batch: BatchConfig{
			MaxBatchSize:        batchSec.Key("max_batch_size").MustInt(1000),
			NetworkPacketSize:   batchSec.Key("network_packet_size").MustInt(4096),
			ContiguousInsertIDs: batchSec.Key("contiguous_insert_ids").MustBool(true),
			StatementCacheSize:  batchSec.Key("statement_cache_size").MustInt(1024),
		},
	}

	// Environment variable overrides
	if v := os.Getenv("TQORMYSQL_DSN"); v != "" {
		config.MySQL.DSN = v
	}
	if v := os.Getenv("TQORMYSQL_MAX_BATCH_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Batch.MaxBatchSize = n
		}
	}
	if v := os.Getenv("TQORMYSQL_NETWORK_PACKET_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Batch.NetworkPacketSize = n
		}
	}
	if v := os.Getenv("TQORMYSQL_CONTIGUOUS_INSERT_IDS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			config.Batch.ContiguousInsertIDs = b
		}
	}

	return config, nil
}
