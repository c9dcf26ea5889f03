// Copyright 2026 gorse Project Authors
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
	"math"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/gorse-io/imputer/model"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

const EnvPrefix = "IMPUTER"

// Config is the configuration for iterative imputation.
type Config struct {
	Split   SplitConfig   `mapstructure:"split"`
	Columns ColumnsConfig `mapstructure:"columns"`
	Imputer ImputerConfig `mapstructure:"imputer"`
	Jobs    int           `mapstructure:"jobs" validate:"gte=1"`
}

// SplitConfig is the configuration of the train/test split.
type SplitConfig struct {
	TestFraction float64 `mapstructure:"test_fraction" validate:"gt=0,lt=1"`
	RandomSeed   int64   `mapstructure:"random_seed"`
}

// ColumnsConfig overrides column roles detected from column types. A nil list means
// detection.
type ColumnsConfig struct {
	Numerical   []string `mapstructure:"numerical"`
	Categorical []string `mapstructure:"categorical"`
}

// ImputerConfig is the configuration of the iterative imputer.
type ImputerConfig struct {
	MaxIter          int     `mapstructure:"max_iter" validate:"gte=0"`
	Tol              float64 `mapstructure:"tol" validate:"gte=0"`
	InitialStrategy  string  `mapstructure:"initial_strategy" validate:"oneof=mean median most_frequent constant"`
	ImputationOrder  string  `mapstructure:"imputation_order" validate:"oneof=ascending descending roman arabic random"`
	NNearestFeatures int     `mapstructure:"n_nearest_features" validate:"gte=0"`
	SkipComplete     bool    `mapstructure:"skip_complete"`
	MinValue         float64 `mapstructure:"min_value"`
	MaxValue         float64 `mapstructure:"max_value" validate:"gtefield=MinValue"`
	SamplePosterior  bool    `mapstructure:"sample_posterior"`
	RandomState      int64   `mapstructure:"random_state"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Split: SplitConfig{
			TestFraction: 0.25,
			RandomSeed:   1,
		},
		Imputer: ImputerConfig{
			MaxIter:          10,
			Tol:              1e-3,
			InitialStrategy:  model.Mean,
			ImputationOrder:  model.Ascending,
			NNearestFeatures: 0,
			SkipComplete:     false,
			MinValue:         math.Inf(-1),
			MaxValue:         math.Inf(1),
			SamplePosterior:  false,
			RandomState:      0,
		},
		Jobs: 1,
	}
}

func (config *Config) LoadDefaultIfNil() *Config {
	if config == nil {
		return GetDefaultConfig()
	}
	return config
}

// Validate checks values against their validate tags.
func (config *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(config); err != nil {
		return errors.NewNotValid(err, "invalid config")
	}
	return nil
}

// ImputerParams converts the imputer section into hyper-parameters of the iterative imputer.
func (config *Config) ImputerParams() model.Params {
	params := model.Params{
		model.MaxIter:          config.Imputer.MaxIter,
		model.Tol:              config.Imputer.Tol,
		model.InitialStrategy:  config.Imputer.InitialStrategy,
		model.ImputationOrder:  config.Imputer.ImputationOrder,
		model.NNearestFeatures: config.Imputer.NNearestFeatures,
		model.SkipComplete:     config.Imputer.SkipComplete,
		model.SamplePosterior:  config.Imputer.SamplePosterior,
		model.RandomState:      config.Imputer.RandomState,
	}
	// unbounded values are the defaults of the imputer
	if !math.IsInf(config.Imputer.MinValue, 0) {
		params[model.MinValue] = config.Imputer.MinValue
	}
	if !math.IsInf(config.Imputer.MaxValue, 0) {
		params[model.MaxValue] = config.Imputer.MaxValue
	}
	return params
}

// ToMap converts the config into a map keyed by configuration names.
func (config *Config) ToMap() (map[string]any, error) {
	var configMap map[string]any
	if err := mapstructure.Decode(config, &configMap); err != nil {
		return nil, errors.Trace(err)
	}
	return configMap, nil
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [split]
	v.SetDefault("split.test_fraction", defaultConfig.Split.TestFraction)
	v.SetDefault("split.random_seed", defaultConfig.Split.RandomSeed)
	// [imputer]
	v.SetDefault("imputer.max_iter", defaultConfig.Imputer.MaxIter)
	v.SetDefault("imputer.tol", defaultConfig.Imputer.Tol)
	v.SetDefault("imputer.initial_strategy", defaultConfig.Imputer.InitialStrategy)
	v.SetDefault("imputer.imputation_order", defaultConfig.Imputer.ImputationOrder)
	v.SetDefault("imputer.n_nearest_features", defaultConfig.Imputer.NNearestFeatures)
	v.SetDefault("imputer.skip_complete", defaultConfig.Imputer.SkipComplete)
	v.SetDefault("imputer.min_value", defaultConfig.Imputer.MinValue)
	v.SetDefault("imputer.max_value", defaultConfig.Imputer.MaxValue)
	v.SetDefault("imputer.sample_posterior", defaultConfig.Imputer.SamplePosterior)
	v.SetDefault("imputer.random_state", defaultConfig.Imputer.RandomState)
	v.SetDefault("jobs", defaultConfig.Jobs)
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	// keys without defaults are only read from the environment once bound
	for _, key := range []string{"columns.numerical", "columns.categorical"} {
		if err := v.BindEnv(key); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// LoadConfig loads configuration from defaults, an optional file and environment
// variables (IMPUTER_SPLIT_TEST_FRACTION, IMPUTER_IMPUTER_MAX_ITER, ...). Later sources
// take precedence.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	if err := bindEnv(v); err != nil {
		return nil, errors.Trace(err)
	}
	if path != "" {
		v.SetConfigFile(path)
		if ext := strings.TrimPrefix(filepath.Ext(path), "."); !lo.Contains(viper.SupportedExts, ext) {
			v.SetConfigType("toml")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config file %s", path)
		}
	}
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, errors.Annotate(err, "failed to decode config")
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}
