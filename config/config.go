// Copyright 2020 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/usercf/storage"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Config is the configuration for the recommender.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Dataset   DatasetConfig   `mapstructure:"dataset"`
	Recommend RecommendConfig `mapstructure:"recommend"`
	Server    ServerConfig    `mapstructure:"server"`
}

// DatabaseConfig is the configuration for the database.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"required,data_store"`
	CacheStore  string `mapstructure:"cache_store" validate:"omitempty,cache_store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

type DatasetConfig struct {
	BatchSize int     `mapstructure:"batch_size" validate:"gt=0"`
	MinRating float64 `mapstructure:"min_rating"`
	MaxRating float64 `mapstructure:"max_rating" validate:"gtefield=MinRating"`
}

type RecommendConfig struct {
	NumJobs     int           `mapstructure:"num_jobs" validate:"gte=1"`
	TopN        int           `mapstructure:"top_n" validate:"gte=0"`
	HeldOut     bool          `mapstructure:"held_out"`
	CacheExpire time.Duration `mapstructure:"cache_expire" validate:"gte=0"`
}

type ServerConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port" validate:"gte=1,lte=65535"`
	APIKey string `mapstructure:"api_key"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			BatchSize: 10000,
			MinRating: 0.5,
			MaxRating: 5.0,
		},
		Recommend: RecommendConfig{
			NumJobs:     1,
			TopN:        10,
			CacheExpire: 24 * time.Hour,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8087,
		},
	}
}

func setDefault() {
	defaultConfig := GetDefaultConfig()
	// [dataset]
	viper.SetDefault("dataset.batch_size", defaultConfig.Dataset.BatchSize)
	viper.SetDefault("dataset.min_rating", defaultConfig.Dataset.MinRating)
	viper.SetDefault("dataset.max_rating", defaultConfig.Dataset.MaxRating)
	// [recommend]
	viper.SetDefault("recommend.num_jobs", defaultConfig.Recommend.NumJobs)
	viper.SetDefault("recommend.top_n", defaultConfig.Recommend.TopN)
	viper.SetDefault("recommend.held_out", defaultConfig.Recommend.HeldOut)
	viper.SetDefault("recommend.cache_expire", defaultConfig.Recommend.CacheExpire)
	// [server]
	viper.SetDefault("server.host", defaultConfig.Server.Host)
	viper.SetDefault("server.port", defaultConfig.Server.Port)
}

type configBinding struct {
	key string
	env string
}

var bindings = []configBinding{
	{"database.cache_store", "USERCF_CACHE_STORE"},
	{"database.data_store", "USERCF_DATA_STORE"},
	{"database.table_prefix", "USERCF_TABLE_PREFIX"},
	{"server.host", "USERCF_SERVER_HOST"},
	{"server.port", "USERCF_SERVER_PORT"},
	{"server.api_key", "USERCF_SERVER_API_KEY"},
	{"recommend.num_jobs", "USERCF_RECOMMEND_JOBS"},
}

func bindEnv() error {
	for _, binding := range bindings {
		if err := viper.BindEnv(binding.key, binding.env); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

func unmarshal(config *Config) error {
	return viper.Unmarshal(config, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)))
}

// LoadConfig loads configuration from toml file. Values in environment variables
// override values in the file.
func LoadConfig(path string) (*Config, error) {
	setDefault()
	if err := bindEnv(); err != nil {
		return nil, errors.Trace(err)
	}
	// environment variables only
	if path != "" {
		viper.SetConfigType("toml")
		viper.SetConfigFile(path)
		if err := viper.ReadInConfig(); err != nil {
			return nil, errors.Trace(err)
		}
	}
	var config Config
	if err := unmarshal(&config); err != nil {
		return nil, errors.Trace(err)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		lo.Must0(validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
			return hasAnyPrefix(fl.Field().String(), storage.DataStorePrefixes)
		}))
		lo.Must0(validate.RegisterValidation("cache_store", func(fl validator.FieldLevel) bool {
			return hasAnyPrefix(fl.Field().String(), storage.CacheStorePrefixes)
		}))
	})
	return validate
}

func hasAnyPrefix(s string, prefixes []string) bool {
	return lo.ContainsBy(prefixes, func(prefix string) bool {
		return strings.HasPrefix(s, prefix)
	})
}

// Validate checks values of the configuration.
func (config *Config) Validate() error {
	if err := getValidator().Struct(config); err != nil {
		var fieldErrors validator.ValidationErrors
		if errors.As(err, &fieldErrors) && len(fieldErrors) > 0 {
			fieldError := fieldErrors[0]
			return errors.NotValidf("%s (%v, rule %s)", fieldError.Namespace(), fieldError.Value(), fieldError.Tag())
		}
		return errors.Trace(err)
	}
	return nil
}
