// Copyright 2024 The walletd Authors
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
	"fmt"
	"os"
	"path/filepath"
	"strings"

	yaml "gopkg.in/yaml.v2"
)

// Version is the current version of the config format.
// This will change whenever we make breaking changes to the config format.
const Version = 1

// Wallet contains all the config used by a walletd instance.
type Wallet struct {
	// The version of the configuration file.
	// If the version in a file is less than the current version then we can assume that
	// the config is valid but has missing fields and should rerun Defaults on it.
	Version int `yaml:"version"`

	Global    Global    `yaml:"global"`
	WalletAPI WalletAPI `yaml:"wallet_api"`

	// The config for logging informational messages.
	Logging []LogrusHook `yaml:"logging"`
}

// A Path on the filesystem.
type Path string

// An Address to listen on, in the form "host:port".
type Address string

// A DataSource for opening a database, possibly containing secrets.
type DataSource string

func (d DataSource) IsSQLite() bool {
	return strings.HasPrefix(string(d), "file:")
}

func (d DataSource) IsPostgres() bool {
	return strings.HasPrefix(string(d), "postgres:") ||
		strings.HasPrefix(string(d), "postgresql:")
}

// LogrusHook represents a single logrus hook. At this point, only parsing and
// verification of the proper values for type and level are done.
// Validity/integrity checks on the parameters are done when configuring logrus.
type LogrusHook struct {
	// The type of hook, currently only "file" is supported.
	Type string `yaml:"type"`

	// The level of the logs to produce. Will output only this level and above.
	Level string `yaml:"level"`

	// The parameters for this hook.
	Params map[string]interface{} `yaml:"params"`
}

// ConfigErrors stores problems encountered when parsing a config file.
// It implements the error interface.
type ConfigErrors []string

// Load a yaml config file for a server run as a single process.
// Checks the config to ensure that it is valid.
func Load(configPath string) (*Wallet, error) {
	configData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	absBasePath, err := filepath.Abs(filepath.Dir(configPath))
	if err != nil {
		return nil, err
	}
	return loadConfig(absBasePath, configData)
}

func loadConfig(basePath string, configData []byte) (*Wallet, error) {
	var c Wallet
	c.Defaults(false)

	var err error
	if err = yaml.Unmarshal(configData, &c); err != nil {
		return nil, err
	}

	if err = c.check(); err != nil {
		return nil, err
	}

	c.WalletAPI.Passes.TemplatePath = absPath(basePath, c.WalletAPI.Passes.TemplatePath)
	c.WalletAPI.Orders.TemplatePath = absPath(basePath, c.WalletAPI.Orders.TemplatePath)

	return &c, nil
}

// Defaults sets default config values. If generate is true then representative
// example values are used for anything that must normally be supplied by the
// operator.
func (c *Wallet) Defaults(generate bool) {
	c.Version = Version

	c.Global.Defaults(generate)
	c.WalletAPI.Defaults(generate)

	c.Wire()
}

// Wire fills in the parent pointers on the component configs. This must be
// called any time the Wallet config is copied.
func (c *Wallet) Wire() {
	c.WalletAPI.Global = &c.Global
}

func (c *Wallet) Verify(configErrs *ConfigErrors) {
	c.Global.Verify(configErrs)
	c.WalletAPI.Verify(configErrs)
}

// Error returns a string detailing how many errors were contained within a
// ConfigErrors type.
func (errs ConfigErrors) Error() string {
	if len(errs) == 1 {
		return errs[0]
	}
	return fmt.Sprintf(
		"%s (and %d other problems)", errs[0], len(errs)-1,
	)
}

// Add appends an error to the list of errors in this ConfigErrors.
// It is a wrapper to the builtin append and hides pointers from
// the client code.
// This method is safe to use with an uninitialized ConfigErrors because
// if it is nil, it will be properly allocated.
func (errs *ConfigErrors) Add(str string) {
	*errs = append(*errs, str)
}

// checkNotEmpty verifies the given value is not empty in the configuration.
// If it is, adds an error to the list.
func checkNotEmpty(configErrs *ConfigErrors, key, value string) {
	if value == "" {
		configErrs.Add(fmt.Sprintf("missing config key %q", key))
	}
}

// checkPositive verifies the given value is positive (zero included)
// in the configuration. If it is not, adds an error to the list.
func checkPositive(configErrs *ConfigErrors, key string, value int64) {
	if value < 0 {
		configErrs.Add(fmt.Sprintf("invalid value for config key %q: %d", key, value))
	}
}

// check returns an error type containing all errors found within the config
// file.
func (c *Wallet) check() error {
	var configErrs ConfigErrors

	if c.Version != Version {
		configErrs.Add(fmt.Sprintf(
			"config version is %q, expected %q - this means that the format of the configuration "+
				"file has changed in some significant way, so please revisit the sample config "+
				"and update it accordingly",
			c.Version, Version,
		))
		return configErrs
	}

	c.Verify(&configErrs)

	if configErrs != nil {
		return configErrs
	}
	return nil
}

// absPath returns the absolute path for a given relative or absolute path.
func absPath(dir string, path Path) Path {
	if path == "" {
		return ""
	}
	if filepath.IsAbs(string(path)) {
		// filepath.Join cleans the path so we should clean the absolute paths as well for consistency.
		return Path(filepath.Clean(string(path)))
	}
	return Path(filepath.Join(dir, string(path)))
}
