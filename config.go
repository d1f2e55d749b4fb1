package openvocab

import (
	"time"
)

// Store drivers understood by the factory.
const (
	StoreDriverMemory   = "memory"
	StoreDriverFile     = "file"
	StoreDriverPostgres = "postgres"
)

// OrphanPolicy decides what happens to physical items tagged with a deleted association.
type OrphanPolicy string

const (
	// OrphanPolicyIgnore leaves orphaned items in place. They are invisible to
	// every virtual field until the association is restored.
	OrphanPolicyIgnore OrphanPolicy = "ignore"
	// OrphanPolicyPurgeOnWrite drops orphaned items of an anchor field
	// whenever one of its virtual fields is written back.
	OrphanPolicyPurgeOnWrite OrphanPolicy = "purge_on_write"
)

// Config consolidates the engine settings
type Config struct {
	Store      StoreConfig      `json:"store"`
	Cache      CacheConfig      `json:"cache"`
	Placement  PlacementConfig  `json:"placement"`
	Projection ProjectionConfig `json:"projection"`
	Snapshot   SnapshotConfig   `json:"snapshot"`
	Logging    LoggingConfig    `json:"logging"`
}

// StoreConfig selects where vocabulary and association configuration lives
type StoreConfig struct {
	Driver    string         `json:"driver"`
	Directory string         `json:"directory"`
	Database  DatabaseConfig `json:"database"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Database        string        `json:"database"`
	Username        string        `json:"username"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"sslMode"`
	MaxConnections  int           `json:"maxConnections"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	Timeout         time.Duration `json:"timeout"`
	TableNames      TableNames    `json:"tableNames"`
	Breaker         BreakerConfig `json:"breaker"`
}

// BreakerConfig trips the database store after Threshold failures within
// Window and keeps it failing fast for OpenDuration. A zero Threshold
// disables the breaker.
type BreakerConfig struct {
	Threshold    int           `json:"threshold"`
	Window       time.Duration `json:"window"`
	OpenDuration time.Duration `json:"openDuration"`
}

// TableNames holds the configuration table names
type TableNames struct {
	Vocabularies string `json:"vocabularies"`
	Associations string `json:"associations"`
}

// CacheConfig controls the synthesized schema cache
type CacheConfig struct {
	Enabled bool `json:"enabled"`
}

// PlacementConfig controls how virtual fields are positioned around their anchor.
// Association weights must stay within ±MaxAssociationWeight so that the
// fractional offset weight/WeightDivisor never reaches the next integer slot.
type PlacementConfig struct {
	WeightDivisor        float64 `json:"weightDivisor"`
	MaxAssociationWeight int     `json:"maxAssociationWeight"`
	StrictWeightRange    bool    `json:"strictWeightRange"`
}

// ProjectionConfig controls the read and write paths of virtual fields
type ProjectionConfig struct {
	OrphanPolicy OrphanPolicy `json:"orphanPolicy"`
}

// SnapshotConfig points at the S3 location used to export and import configuration
type SnapshotConfig struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver: StoreDriverMemory,
			Database: DatabaseConfig{
				Host:            "localhost",
				Port:            5432,
				SSLMode:         "disable",
				MaxConnections:  5,
				ConnMaxLifetime: 5 * time.Minute,
				Timeout:         30 * time.Second,
				TableNames: TableNames{
					Vocabularies: "open_vocabulary",
					Associations: "open_vocabulary_association",
				},
				Breaker: BreakerConfig{
					Threshold:    5,
					Window:       30 * time.Second,
					OpenDuration: 15 * time.Second,
				},
			},
		},
		Cache: CacheConfig{
			Enabled: true,
		},
		Placement: PlacementConfig{
			WeightDivisor:        1000,
			MaxAssociationWeight: 999,
			StrictWeightRange:    false,
		},
		Projection: ProjectionConfig{
			OrphanPolicy: OrphanPolicyIgnore,
		},
		Snapshot: SnapshotConfig{
			Prefix: "openvocab/",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverFile:
		if c.Store.Directory == "" {
			return &ConfigError{Field: "store.directory", Message: "is required for the file driver"}
		}
	case StoreDriverPostgres:
		if c.Store.Database.TableNames.Vocabularies == "" || c.Store.Database.TableNames.Associations == "" {
			return &ConfigError{Field: "store.database.tableNames", Message: "vocabulary and association tables are required"}
		}
		if c.Store.Database.MaxConnections <= 0 {
			return &ConfigError{Field: "store.database.maxConnections", Message: "must be greater than 0"}
		}
		if b := c.Store.Database.Breaker; b.Threshold > 0 && (b.Window <= 0 || b.OpenDuration <= 0) {
			return &ConfigError{Field: "store.database.breaker", Message: "window and openDuration must be positive when threshold is set"}
		}
	default:
		return &ConfigError{Field: "store.driver", Message: "must be one of memory, file, postgres"}
	}

	if c.Placement.MaxAssociationWeight <= 0 {
		return &ConfigError{Field: "placement.maxAssociationWeight", Message: "must be greater than 0"}
	}

	if c.Placement.WeightDivisor <= float64(c.Placement.MaxAssociationWeight) {
		return &ConfigError{Field: "placement.weightDivisor", Message: "must be greater than maxAssociationWeight"}
	}

	switch c.Projection.OrphanPolicy {
	case OrphanPolicyIgnore, OrphanPolicyPurgeOnWrite:
	default:
		return &ConfigError{Field: "projection.orphanPolicy", Message: "must be ignore or purge_on_write"}
	}

	return nil
}

// ConfigError represents a configuration validation error
type ConfigError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	return "config validation error for field '" + e.Field + "': " + e.Message
}
