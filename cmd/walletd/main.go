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

package main

import (
	"flag"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/walletkit/walletd/apns"
	"github.com/walletkit/walletd/internal"
	"github.com/walletkit/walletd/internal/httputil"
	"github.com/walletkit/walletd/setup/config"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi"
)

var (
	configPath     = flag.String("config", "walletd.yaml", "The path to the config file")
	generateConfig = flag.Bool("generate-config", false, "Write a sample config to stdout and exit")
)

func main() {
	flag.Parse()

	if *generateConfig {
		cfg := &config.Wallet{}
		cfg.Defaults(true)
		out, err := yaml.Marshal(cfg)
		if err != nil {
			logrus.Fatalf("Failed to marshal sample config: %s", err)
		}
		fmt.Print(string(out))
		return
	}

	internal.SetupStdLogging()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.Fatalf("Invalid config file: %s", err)
	}
	internal.SetupHookLogging(cfg.Logging)

	db, err := storage.Open(&cfg.Global.DatabaseOptions)
	if err != nil {
		logrus.WithError(err).Fatalf("Failed to open database")
	}
	client, err := apns.NewHTTPClient(&cfg.WalletAPI.APNS)
	if err != nil {
		logrus.WithError(err).Fatalf("Failed to set up APNs client")
	}

	router := mux.NewRouter()
	if _, err = walletapi.AddPublicRoutes(router, &cfg.WalletAPI, db, client); err != nil {
		logrus.WithError(err).Fatalf("Failed to set up wallet API")
	}
	if cfg.Global.Metrics.Enabled {
		router.Handle("/metrics", httputil.WrapHandlerInBasicAuth(promhttp.Handler(), httputil.BasicAuth{
			Username: cfg.Global.Metrics.BasicAuth.Username,
			Password: cfg.Global.Metrics.BasicAuth.Password,
		}))
	}

	logrus.Infof("Listening on %s", cfg.WalletAPI.Listen)
	logrus.Fatal(http.ListenAndServe(string(cfg.WalletAPI.Listen), router))
}
