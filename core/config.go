package core

import (
	"fmt"
	"strings"
)

// SupportedDBTypes lists the databases SQL can be generated for.
var SupportedDBTypes = []string{"postgres"}

const (
	defaultDBSchema  = "ehr"
	defaultCacheSize = 1000
)

// Config holds the compiler settings. It is usually loaded from a YAML or
// JSON file.
type Config struct {
	// SystemID identifies this server in versioned object ids
	// (uuid::system_id::version) and is returned as the EHR system id.
	SystemID string `mapstructure:"system_id" json:"system_id" yaml:"system_id" jsonschema:"title=System ID"`

	// DBType is the database the SQL is generated for. Only postgres.
	DBType string `mapstructure:"db_type" json:"db_type" yaml:"db_type" jsonschema:"title=Database Type,enum=postgres"`

	// DBSchema is the schema holding the EHR tables. Defaults to ehr.
	DBSchema string `mapstructure:"db_schema" json:"db_schema" yaml:"db_schema" jsonschema:"title=Database Schema,default=ehr"`

	// LateralFilterWorkaround wraps the columns of lateral joins in the
	// aql_identity function of the schema. Defaults to true.
	LateralFilterWorkaround *bool `mapstructure:"lateral_filter_workaround" json:"lateral_filter_workaround" yaml:"lateral_filter_workaround" jsonschema:"title=Lateral Filter Workaround,default=true"`

	// CacheSize is the number of compiled queries kept. Zero uses the
	// default, a negative size disables the cache.
	CacheSize int `mapstructure:"cache_size" json:"cache_size" yaml:"cache_size" jsonschema:"title=Compile Cache Size,default=1000"`

	// Templates lists the known templates when no template store is set.
	Templates []TemplateConfig `mapstructure:"templates" json:"templates" yaml:"templates" jsonschema:"title=Templates"`
}

// TemplateConfig maps a template id to the uuid it is stored under.
type TemplateConfig struct {
	ID   string `mapstructure:"id" json:"id" yaml:"id"`
	UUID string `mapstructure:"uuid" json:"uuid" yaml:"uuid"`
}

func (c *Config) setDefaults() {
	if c.DBType == "" {
		c.DBType = "postgres"
	}
	if c.DBSchema == "" {
		c.DBSchema = defaultDBSchema
	}
	if c.LateralFilterWorkaround == nil {
		v := true
		c.LateralFilterWorkaround = &v
	}
	if c.CacheSize == 0 {
		c.CacheSize = defaultCacheSize
	}
}

// ValidateDBType checks if the given database type is supported
func ValidateDBType(dbType string) error {
	if dbType == "" {
		return nil
	}
	for _, t := range SupportedDBTypes {
		if strings.EqualFold(dbType, t) {
			return nil
		}
	}
	return fmt.Errorf("unsupported database type %q: supported types are %s",
		dbType, strings.Join(SupportedDBTypes, ", "))
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if err := ValidateDBType(c.DBType); err != nil {
		return err
	}
	if strings.TrimSpace(c.SystemID) == "" {
		return fmt.Errorf("system_id is required")
	}
	if strings.Contains(c.SystemID, "::") {
		return fmt.Errorf("system_id %q must not contain '::'", c.SystemID)
	}

	seen := make(map[string]struct{}, len(c.Templates))
	for _, t := range c.Templates {
		if t.ID == "" {
			return fmt.Errorf("template with uuid %q has no id", t.UUID)
		}
		if _, ok := seen[t.ID]; ok {
			return fmt.Errorf("template %q listed twice", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return nil
}
