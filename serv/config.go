package serv

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ehrbase/aqlengine/core"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

type Core = core.Config

// Configuration for the aqlc tool
type Config struct {
	// Configuration for the AQL compiler core
	Core `mapstructure:",squash" jsonschema:"title=Compiler Configuration"`

	// Configuration for the tool itself
	Serv `mapstructure:",squash" jsonschema:"title=Service Configuration"`

	viper *viper.Viper
}

type Serv struct {
	// Logging level must be one of debug, error, warn, info
	LogLevel string `mapstructure:"log_level" jsonschema:"title=Log Level,enum=debug,enum=error,enum=warn,enum=info"`

	// Logging Format: "json" or "simple" (colored console)
	LogFormat string `mapstructure:"log_format" jsonschema:"title=Logging Format,enum=json,enum=simple"`

	// The default path to find all configuration files
	ConfigPath string `mapstructure:"config_path" jsonschema:"title=Config Path"`

	// Database the templates are loaded from. Optional, templates listed
	// in the config are used when it is not set.
	DB Database `mapstructure:"database" jsonschema:"title=Database"`
}

// Database connection settings
type Database struct {
	ConnString string `mapstructure:"connection_string" jsonschema:"title=Connection String"`
	Host       string `jsonschema:"title=Host"`
	Port       uint16 `jsonschema:"title=Port"`
	DBName     string `mapstructure:"dbname" jsonschema:"title=Database Name"`
	User       string `jsonschema:"title=User"`
	Password   string `jsonschema:"title=Password"`

	// Table holding the stored operational templates
	TemplateTable string `mapstructure:"template_table" jsonschema:"title=Template Table,default=template_store"`
}

// Configured reports whether a database connection is configured
func (d Database) Configured() bool {
	return d.ConnString != "" || (d.Host != "" && d.DBName != "")
}

// ReadInConfig function reads in the config file for the environment specified in the GO_ENV
// environment variable. This is the best way to create a new config object.
func ReadInConfig(configFile string) (*Config, error) {
	return readInConfig(configFile, nil)
}

// ReadInConfigFS is the same as ReadInConfig but it also takes a filesytem as an argument
func ReadInConfigFS(configFile string, fs afero.Fs) (*Config, error) {
	return readInConfig(configFile, fs)
}

func readInConfig(configFile string, fs afero.Fs) (*Config, error) {
	cp := filepath.Dir(configFile)
	vi := newViper(cp, filepath.Base(configFile))

	if fs != nil {
		vi.SetFs(fs)
	}

	if err := vi.ReadInConfig(); err != nil {
		return nil, err
	}

	if pcf := vi.GetString("inherits"); pcf != "" {
		cf := vi.ConfigFileUsed()
		vi = newViper(cp, pcf)
		if fs != nil {
			vi.SetFs(fs)
		}

		if err := vi.ReadInConfig(); err != nil {
			return nil, err
		}

		if value := vi.GetString("inherits"); value != "" {
			return nil, fmt.Errorf("inherited config '%s' cannot itself inherit '%s'", pcf, value)
		}

		vi.SetConfigFile(cf)

		if err := vi.MergeInConfig(); err != nil {
			return nil, err
		}
	}

	config := &Config{viper: vi}

	if err := vi.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}
	config.ConfigPath = cp

	return config, nil
}

// NewConfig function creates a new configuration from the provided config string
func NewConfig(config, format string) (*Config, error) {
	if format == "" {
		format = "yaml"
	}

	vi := newViperWithDefaults()
	vi.SetConfigType(format)

	if err := vi.ReadConfig(strings.NewReader(config)); err != nil {
		return nil, err
	}

	c := &Config{viper: vi}

	if err := vi.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode config, %v", err)
	}

	return c, nil
}

// newViperWithDefaults returns a new viper instance with the default settings.
// Every key has a default so AQLC_ environment variables override it.
func newViperWithDefaults() *viper.Viper {
	vi := viper.New()

	vi.SetDefault("system_id", "")
	vi.SetDefault("db_type", "postgres")
	vi.SetDefault("db_schema", "ehr")
	vi.SetDefault("lateral_filter_workaround", true)
	vi.SetDefault("cache_size", 1000)

	vi.SetDefault("log_level", "info")
	vi.SetDefault("log_format", "simple")

	vi.SetDefault("database.connection_string", "")
	vi.SetDefault("database.host", "")
	vi.SetDefault("database.port", 5432)
	vi.SetDefault("database.dbname", "")
	vi.SetDefault("database.user", "")
	vi.SetDefault("database.password", "")
	vi.SetDefault("database.template_table", "template_store")

	vi.SetEnvPrefix("AQLC")
	vi.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vi.AutomaticEnv()

	return vi
}

func newViper(configPath, configFile string) *viper.Viper {
	vi := newViperWithDefaults()
	vi.SetConfigName(strings.TrimSuffix(configFile, filepath.Ext(configFile)))

	if configPath == "" {
		vi.AddConfigPath("./config")
	} else {
		vi.AddConfigPath(configPath)
	}

	return vi
}

// GetConfigName returns the name of the config file for the current environment
func GetConfigName() string {
	goEnv := strings.TrimSpace(strings.ToLower(os.Getenv("GO_ENV")))

	switch goEnv {
	case "production", "prod":
		return "prod"

	case "staging", "stage":
		return "stage"

	case "testing", "test":
		return "test"

	case "development", "dev", "":
		return "dev"

	default:
		return goEnv
	}
}
