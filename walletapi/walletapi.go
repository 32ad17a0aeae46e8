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

package walletapi

import (
	"fmt"

	"github.com/gorilla/mux"

	"github.com/walletkit/walletd/apns"
	"github.com/walletkit/walletd/bundle"
	"github.com/walletkit/walletd/push"
	"github.com/walletkit/walletd/renderer"
	"github.com/walletkit/walletd/setup/config"
	"github.com/walletkit/walletd/storage"
	"github.com/walletkit/walletd/walletapi/api"
	walletinternal "github.com/walletkit/walletd/walletapi/internal"
	"github.com/walletkit/walletd/walletapi/routing"
)

// AddPublicRoutes sets up one Family per enabled item family and registers
// every wallet endpoint on the router. The returned WalletAPI is the entry
// point for item payload writes.
func AddPublicRoutes(
	publicAPIMux *mux.Router,
	cfg *config.WalletAPI,
	db storage.Database,
	client apns.Client,
) (*walletinternal.WalletAPI, error) {
	dispatcher := push.NewDispatcher(db, client)
	walletAPI := &walletinternal.WalletAPI{DB: db, Dispatcher: dispatcher}

	var families []*routing.Family
	if cfg.Passes.Enabled {
		family, err := newFamily(api.PassKind(cfg.Passes.TypeIdentifier, cfg.Passes.EnablePersonalization), &cfg.Passes)
		if err != nil {
			return nil, fmt.Errorf("passes family: %w", err)
		}
		families = append(families, family)
	}
	if cfg.Orders.Enabled {
		family, err := newFamily(api.OrderKind(cfg.Orders.TypeIdentifier), &cfg.Orders)
		if err != nil {
			return nil, fmt.Errorf("orders family: %w", err)
		}
		families = append(families, family)
	}

	routing.Setup(publicAPIMux, cfg, db, walletAPI, dispatcher, families)
	return walletAPI, nil
}

func newFamily(kind api.Kind, cfg *config.FamilyOptions) (*routing.Family, error) {
	signer, err := bundle.LoadSigner(cfg.Certificate, cfg.PrivateKey, cfg.WWDRCertificate, cfg.PrivateKeyPassword)
	if err != nil {
		return nil, err
	}
	return &routing.Family{
		Kind:     kind,
		Renderer: renderer.NewItemRenderer(kind, cfg.TemplatePath),
		Builder:  bundle.NewBuilder(signer, kind),
		Signer:   signer,
	}, nil
}
