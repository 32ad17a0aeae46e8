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

package postgres

import (
	"fmt"

	"github.com/walletkit/walletd/internal/sqlutil"
	"github.com/walletkit/walletd/setup/config"
	"github.com/walletkit/walletd/storage/shared"
)

// NewDatabase opens a PostgreSQL wallet database, creating the tables when
// they do not exist yet.
func NewDatabase(dbProperties *config.DatabaseOptions) (*shared.Database, error) {
	db, err := sqlutil.Open(dbProperties)
	if err != nil {
		return nil, fmt.Errorf("sqlutil.Open: %w", err)
	}
	devices, err := NewPostgresDevicesTable(db)
	if err != nil {
		return nil, err
	}
	items, err := NewPostgresItemsTable(db)
	if err != nil {
		return nil, err
	}
	itemData, err := NewPostgresItemDataTable(db)
	if err != nil {
		return nil, err
	}
	registrations, err := NewPostgresRegistrationsTable(db)
	if err != nil {
		return nil, err
	}
	personalization, err := NewPostgresPersonalizationTable(db)
	if err != nil {
		return nil, err
	}
	return &shared.Database{
		DB:              db,
		Writer:          sqlutil.NewDummyWriter(),
		Devices:         devices,
		Items:           items,
		ItemData:        itemData,
		Registrations:   registrations,
		Personalization: personalization,
	}, nil
}
