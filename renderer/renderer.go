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

// Package renderer projects stored items into the files a bundle needs: the
// item JSON with the wallet bookkeeping fields merged in, and the static
// resource files from the family's template directory.
package renderer

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/walletkit/walletd/setup/config"
	"github.com/walletkit/walletd/walletapi/api"
)

// personalizationKey is the payload field holding the item's
// personalization.json contents, split out of the item JSON at render time.
const personalizationKey = "personalization"

// ItemRenderer implements api.Renderer from a template directory on disk.
// The directory's regular files, plus files inside xx-YY.lproj/
// subdirectories, become the bundle's resource files.
type ItemRenderer struct {
	kind         api.Kind
	templatePath string
}

func NewItemRenderer(kind api.Kind, templatePath config.Path) *ItemRenderer {
	return &ItemRenderer{
		kind:         kind,
		templatePath: string(templatePath),
	}
}

// ItemJSON merges the wallet bookkeeping fields into the stored payload:
// the type identifier, the serial number (the item id) and the
// authentication token the device must present on later requests.
func (r *ItemRenderer) ItemJSON(item *api.Item, data *api.ItemData) ([]byte, error) {
	fields := make(map[string]interface{})
	if data != nil && len(data.Payload) > 0 {
		if err := json.Unmarshal(data.Payload, &fields); err != nil {
			return nil, fmt.Errorf("item payload is not valid JSON: %w", err)
		}
	}
	delete(fields, personalizationKey)
	fields["authenticationToken"] = item.AuthToken
	if r.kind.Family == api.FamilyOrder {
		fields["orderTypeIdentifier"] = item.TypeIdentifier
		fields["orderIdentifier"] = item.ID
	} else {
		fields["passTypeIdentifier"] = item.TypeIdentifier
		fields["serialNumber"] = item.ID
	}
	return json.Marshal(fields)
}

// SourceFiles reads the template directory. Hidden files are skipped;
// localized resources keep their xx-YY.lproj/ prefix; nothing else is
// picked up from deeper directories.
func (r *ItemRenderer) SourceFiles() (map[string][]byte, error) {
	files := make(map[string][]byte)
	err := filepath.WalkDir(r.templatePath, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			if path == r.templatePath {
				return nil
			}
			if strings.HasSuffix(entry.Name(), ".lproj") {
				return nil
			}
			return fs.SkipDir
		}
		if strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		name, err := filepath.Rel(r.templatePath, path)
		if err != nil {
			return err
		}
		// Reserved names are always generated, never copied from the
		// template.
		switch name {
		case "manifest.json", "signature", r.kind.PayloadName, "personalization.json":
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		files[filepath.ToSlash(name)] = content
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// PersonalizationJSON returns the payload's personalization object, or nil
// when the family is not personalizable or the payload has none.
func (r *ItemRenderer) PersonalizationJSON(item *api.Item, data *api.ItemData) ([]byte, error) {
	if !r.kind.Personalizable || data == nil || len(data.Payload) == 0 {
		return nil, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data.Payload, &fields); err != nil {
		return nil, fmt.Errorf("item payload is not valid JSON: %w", err)
	}
	personalization, ok := fields[personalizationKey]
	if !ok {
		return nil, nil
	}
	return personalization, nil
}
