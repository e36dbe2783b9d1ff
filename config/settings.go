//
// Copyright 2016 Gregory Trubetskoy. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Settings are the tool settings. They come from an optional
// rrdb.toml and RRDB_* environment variables, e.g. RRDB_DATA_DIR.
type Settings struct {
	LogLevel    string        `mapstructure:"log-level"`
	LogFile     string        `mapstructure:"log-file"`
	LockTimeout time.Duration `mapstructure:"lock-timeout"`
	Fsync       bool          `mapstructure:"fsync"`
	DataDir     string        `mapstructure:"data-dir"`
	MaxOpen     int           `mapstructure:"max-open"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log-level", "info")
	v.SetDefault("log-file", "")
	v.SetDefault("lock-timeout", "5s")
	v.SetDefault("fsync", false)
	v.SetDefault("data-dir", ".")
	v.SetDefault("max-open", 64)
}

// LoadSettings reads settings from cfgPath. An empty cfgPath means
// rrdb.toml in the current directory or in $HOME/.rrdb, and it is
// fine for that file not to exist.
func LoadSettings(cfgPath string) (*Settings, error) {
	v := viper.New()
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("rrdb")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.rrdb")
	}

	setDefaults(v)

	v.SetEnvPrefix("RRDB")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("decoding settings: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Settings) validate() error {
	if s.MaxOpen < 1 {
		return fmt.Errorf("max-open must be at least 1, got %d", s.MaxOpen)
	}
	if s.DataDir == "" {
		return fmt.Errorf("data-dir setting empty")
	}
	return nil
}
