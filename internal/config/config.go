package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	DB          DBConfig          `mapstructure:"db"`
	JWT         JWTConfig         `mapstructure:"jwt"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Limits      LimitsConfig      `mapstructure:"limits"`
	UploadCodes UploadCodesConfig `mapstructure:"upload_codes"`
	Root        RootConfig        `mapstructure:"root"`
	AppHost     string            `mapstructure:"host"`
}

type DBConfig struct {
	Source string `mapstructure:"source"`
}

type JWTConfig struct {
	Secret string `mapstructure:"secret"`
}

type StorageConfig struct {
	// Path is the permanent blob area. StagingPath must be on the same
	// partition because uploads are promoted with an atomic rename.
	Path        string `mapstructure:"path"`
	StagingPath string `mapstructure:"staging_path"`
}

type LimitsConfig struct {
	MaxUploadBytes    int64 `mapstructure:"max_upload_bytes"`
	DefaultQuotaBytes int64 `mapstructure:"default_quota_bytes"`
	DefaultMaxFiles   int64 `mapstructure:"default_max_files"`
}

type UploadCodesConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type RootConfig struct {
	// Password used when bootstrapping the root account on first start.
	Password string `mapstructure:"password"`
}

func Load() (*Config, error) {
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/configs")
	viper.SetConfigName("settings")
	viper.SetConfigType("yml")

	viper.SetDefault("storage.path", "./uploads")
	viper.SetDefault("storage.staging_path", "./.tmp.uploads")
	viper.SetDefault("limits.max_upload_bytes", int64(4)*1024*1024*1024)
	viper.SetDefault("limits.default_quota_bytes", int64(1)*1024*1024*1024)
	viper.SetDefault("limits.default_max_files", int64(100))
	viper.SetDefault("upload_codes.ttl", 2*time.Minute)
	viper.SetDefault("root.password", "root")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
