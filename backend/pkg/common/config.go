package common

import (
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	Port         string
	ResourceRoot string
	LogSpec      string
	Metrics      bool
	Fabric       FabricConfig
	Auth         AuthConfig
	Journal      JournalConfig
}

type FabricConfig struct {
	// ConnectionProfile is inline JSON or the name of a resource under
	// ResourceRoot.
	ConnectionProfile string
	Channel           string
	ContractID        string
	WalletProfile     string
	Timeout           time.Duration
}

type AuthConfig struct {
	// JWTSecret enables bearer token checks when set.
	JWTSecret string
}

type JournalConfig struct {
	Enabled bool
	DB      DBConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

const ConfigFileEnv = "ASSET_CONFIG"

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("RESOURCE_ROOT", "resources")
	v.SetDefault("FABRIC_LOGGING_SPEC", "info")
	v.SetDefault("METRICS_ENABLED", true)
	v.SetDefault("FABRIC_CONNECTION_PROFILE", "connection.json")
	v.SetDefault("FABRIC_CHANNEL", "mychannel")
	v.SetDefault("FABRIC_CONTRACT_ID", "mycontract")
	v.SetDefault("FABRIC_WALLET_PROFILE", `{"type":"FILE_SYSTEM","options":{"path":"wallet"}}`)
	v.SetDefault("FABRIC_TIMEOUT", 30*time.Second)
	v.SetDefault("JWT_SECRET", "")
	v.SetDefault("JOURNAL_ENABLED", false)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "assets")
	v.SetDefault("DB_SSLMODE", "disable")
}

// LoadConfig resolves the configuration from defaults, an optional YAML
// file and the environment, in increasing order of precedence. configFile
// falls back to $ASSET_CONFIG.
func LoadConfig(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()

	if configFile == "" {
		configFile = v.GetString(ConfigFileEnv)
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "couldn't read the config file [%s]", configFile)
		}
	}

	return &Config{
		Port:         v.GetString("PORT"),
		ResourceRoot: v.GetString("RESOURCE_ROOT"),
		LogSpec:      v.GetString("FABRIC_LOGGING_SPEC"),
		Metrics:      v.GetBool("METRICS_ENABLED"),
		Fabric: FabricConfig{
			ConnectionProfile: v.GetString("FABRIC_CONNECTION_PROFILE"),
			Channel:           v.GetString("FABRIC_CHANNEL"),
			ContractID:        v.GetString("FABRIC_CONTRACT_ID"),
			WalletProfile:     v.GetString("FABRIC_WALLET_PROFILE"),
			Timeout:           v.GetDuration("FABRIC_TIMEOUT"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("JWT_SECRET"),
		},
		Journal: JournalConfig{
			Enabled: v.GetBool("JOURNAL_ENABLED"),
			DB: DBConfig{
				Host:     v.GetString("DB_HOST"),
				Port:     v.GetString("DB_PORT"),
				User:     v.GetString("DB_USER"),
				Password: v.GetString("DB_PASSWORD"),
				Name:     v.GetString("DB_NAME"),
				SSLMode:  v.GetString("DB_SSLMODE"),
			},
		},
	}, nil
}
