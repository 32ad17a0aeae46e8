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

// Package bundle assembles the signed archives handed to wallet clients: a
// zip containing the item JSON, its resource files, a manifest of per-file
// digests and a detached CMS signature over the manifest.
package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"hash"
	"sort"

	"github.com/walletkit/walletd/walletapi/api"
)

const (
	manifestName  = "manifest.json"
	signatureName = "signature"

	personalizationName = "personalization.json"

	minBundledItems = 2
	maxBundledItems = 10
)

// ErrInvalidItemCount is returned by BuildMany for counts outside [2,10].
var ErrInvalidItemCount = errors.New("bundling requires between 2 and 10 items")

// Input is everything needed to build one item's bundle.
type Input struct {
	// Payload is the item JSON, stored under the family's payload name.
	Payload []byte
	// Files maps in-bundle names to resource file contents. Localized
	// files keep their xx-YY.lproj/ prefix.
	Files map[string][]byte
	// Personalization is the optional personalization.json contents.
	Personalization []byte
}

// Builder builds bundles for one item family.
type Builder struct {
	signer  *Signer
	newHash func() hash.Hash
	kind    api.Kind
}

// NewBuilder returns a builder producing bundles in the given family's
// format, signed by signer.
func NewBuilder(signer *Signer, kind api.Kind) *Builder {
	return &Builder{
		signer:  signer,
		newHash: kind.NewHash,
		kind:    kind,
	}
}

// Build assembles and signs a single-item bundle.
func (b *Builder) Build(in Input) ([]byte, error) {
	files := make(map[string][]byte, len(in.Files)+2)
	for name, content := range in.Files {
		files[name] = content
	}
	files[b.kind.PayloadName] = in.Payload
	if in.Personalization != nil {
		files[personalizationName] = in.Personalization
	}

	manifest := make(map[string]string, len(files))
	for name, content := range files {
		manifest[name] = b.digest(content)
	}
	manifestJSON, err := json.Marshal(manifest)
	if err != nil {
		return nil, err
	}
	signature, err := b.signer.Sign(manifestJSON)
	if err != nil {
		return nil, fmt.Errorf("signing manifest: %w", err)
	}
	files[manifestName] = manifestJSON
	files[signatureName] = signature

	return writeArchive(files)
}

// BuildMany builds each item's bundle independently and packages them as
// sibling entries of an outer, unsigned archive. Valid for 2 to 10 items;
// any single build failure aborts the whole operation.
func (b *Builder) BuildMany(inputs []Input) ([]byte, error) {
	if len(inputs) < minBundledItems || len(inputs) > maxBundledItems {
		return nil, ErrInvalidItemCount
	}
	entries := make(map[string][]byte, len(inputs))
	for i, in := range inputs {
		bundled, err := b.Build(in)
		if err != nil {
			return nil, err
		}
		entries[fmt.Sprintf("%s%d%s", b.kind.Family, i, b.kind.Extension)] = bundled
	}
	return writeArchive(entries)
}

func (b *Builder) digest(content []byte) string {
	h := b.newHash()
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

// writeArchive serialises the named files as a zip, in name order so the
// output is deterministic for identical inputs.
func writeArchive(files map[string][]byte) ([]byte, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err = w.Write(files[name]); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
