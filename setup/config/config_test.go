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
	"path/filepath"
	"testing"
)

const testConfig = `
version: 1
global:
  database:
    connection_string: file:walletd.db
  metrics:
    enabled: false
wallet_api:
  listen: localhost:7745
  operator_token: secret-operator-token
  passes:
    enabled: true
    type_identifier: pass.com.example.test
    template_path: ./passes_template
    certificate: /etc/walletd/pass.pem
    private_key: /etc/walletd/pass.key
    wwdr_certificate: /etc/walletd/wwdr.pem
  apns:
    endpoint: https://api.push.apple.com
    certificate: /etc/walletd/apns.pem
    private_key: /etc/walletd/apns.key
logging:
- type: file
  level: info
  params:
    path: /var/log/walletd
`

func TestLoadConfig(t *testing.T) {
	cfg, err := loadConfig("/my/config/dir", []byte(testConfig))
	if err != nil {
		t.Fatalf("loadConfig returned an error: %s", err)
	}
	if cfg.Version != 1 {
		t.Errorf("Version: got %d, want 1", cfg.Version)
	}
	if cfg.WalletAPI.Passes.TypeIdentifier != "pass.com.example.test" {
		t.Errorf("Passes.TypeIdentifier: got %q", cfg.WalletAPI.Passes.TypeIdentifier)
	}
	// Relative template paths are resolved against the config directory.
	want := filepath.Join("/my/config/dir", "passes_template")
	if string(cfg.WalletAPI.Passes.TemplatePath) != want {
		t.Errorf("Passes.TemplatePath: got %q, want %q", cfg.WalletAPI.Passes.TemplatePath, want)
	}
	if cfg.WalletAPI.Global != &cfg.Global {
		t.Errorf("WalletAPI.Global not wired to the global config")
	}
	if len(cfg.Logging) != 1 || cfg.Logging[0].Type != "file" {
		t.Errorf("Logging: got %+v", cfg.Logging)
	}
}

func TestLoadConfigWrongVersion(t *testing.T) {
	if _, err := loadConfig("/", []byte("version: 0")); err == nil {
		t.Fatalf("expected an error for an unsupported config version")
	}
}

func TestWalletAPIVerify(t *testing.T) {
	tests := []struct {
		name    string
		fields  WalletAPI
		wantErr bool
	}{
		{
			name: "no family enabled",
			fields: WalletAPI{
				Listen:        "localhost:7745",
				OperatorToken: "token",
			},
			wantErr: true,
		},
		{
			name: "enabled family missing signing material",
			fields: WalletAPI{
				Listen:        "localhost:7745",
				OperatorToken: "token",
				Passes: FamilyOptions{
					Enabled:        true,
					TypeIdentifier: "pass.com.example.test",
					TemplatePath:   "./passes_template",
				},
			},
			wantErr: true,
		},
		{
			name: "missing operator token",
			fields: WalletAPI{
				Listen: "localhost:7745",
				Passes: FamilyOptions{
					Enabled:         true,
					TypeIdentifier:  "pass.com.example.test",
					TemplatePath:    "./passes_template",
					Certificate:     "/etc/walletd/pass.pem",
					PrivateKey:      "/etc/walletd/pass.key",
					WWDRCertificate: "/etc/walletd/wwdr.pem",
				},
				APNS: APNSOptions{
					Endpoint:    "https://api.push.apple.com",
					Certificate: "/etc/walletd/apns.pem",
					PrivateKey:  "/etc/walletd/apns.key",
				},
			},
			wantErr: true,
		},
		{
			name: "complete",
			fields: WalletAPI{
				Listen:        "localhost:7745",
				OperatorToken: "token",
				Passes: FamilyOptions{
					Enabled:         true,
					TypeIdentifier:  "pass.com.example.test",
					TemplatePath:    "./passes_template",
					Certificate:     "/etc/walletd/pass.pem",
					PrivateKey:      "/etc/walletd/pass.key",
					WWDRCertificate: "/etc/walletd/wwdr.pem",
				},
				APNS: APNSOptions{
					Endpoint:    "https://api.push.apple.com",
					Certificate: "/etc/walletd/apns.pem",
					PrivateKey:  "/etc/walletd/apns.key",
				},
			},
			wantErr: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configErrs := &ConfigErrors{}
			tt.fields.Verify(configErrs)
			if tt.wantErr != (len(*configErrs) > 0) {
				t.Errorf("Verify: wantErr=%v, got '%+v'", tt.wantErr, *configErrs)
			}
		})
	}
}
