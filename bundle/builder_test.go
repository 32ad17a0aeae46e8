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

package bundle

import (
	"archive/zip"
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"testing"

	"github.com/smallstep/pkcs7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walletkit/walletd/test"
	"github.com/walletkit/walletd/walletapi/api"
)

func newTestBuilder(t *testing.T, kind api.Kind) *Builder {
	t.Helper()
	certPEM, keyPEM := test.SignerPEM(t)
	signer, err := NewSigner(certPEM, keyPEM, certPEM, "")
	require.NoError(t, err)
	return NewBuilder(signer, kind)
}

func readArchive(t *testing.T, b []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		r, err := f.Open()
		require.NoError(t, err)
		content, err := io.ReadAll(r)
		require.NoError(t, err)
		require.NoError(t, r.Close())
		files[f.Name] = content
	}
	return files
}

func TestBuildLayoutAndManifest(t *testing.T) {
	kind := api.PassKind("pass.com.example.test", false)
	builder := newTestBuilder(t, kind)

	payload := []byte(`{"description":"Test Pass"}`)
	bundled, err := builder.Build(Input{
		Payload: payload,
		Files: map[string][]byte{
			"icon.png":          {0x01, 0x02, 0x03},
			"en-GB.lproj/strip": []byte("localized"),
		},
	})
	require.NoError(t, err)

	files := readArchive(t, bundled)
	assert.Contains(t, files, "pass.json")
	assert.Contains(t, files, "icon.png")
	assert.Contains(t, files, "en-GB.lproj/strip")
	assert.Contains(t, files, "manifest.json")
	assert.Contains(t, files, "signature")
	assert.NotContains(t, files, "personalization.json")
	assert.Equal(t, payload, files["pass.json"])

	var manifest map[string]string
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	assert.Len(t, manifest, 3)
	for name, wantDigest := range manifest {
		h := kind.NewHash()
		h.Write(files[name])
		assert.Equal(t, wantDigest, hex.EncodeToString(h.Sum(nil)), "digest mismatch for %s", name)
	}

	// The signature must verify as a detached CMS signature over the
	// manifest bytes.
	p7, err := pkcs7.Parse(files["signature"])
	require.NoError(t, err)
	p7.Content = files["manifest.json"]
	assert.NoError(t, p7.Verify())
}

func TestBuildIncludesPersonalization(t *testing.T) {
	kind := api.PassKind("pass.com.example.test", true)
	builder := newTestBuilder(t, kind)

	personalization := []byte(`{"requiredPersonalizationFields":["PKPassPersonalizationFieldName"]}`)
	bundled, err := builder.Build(Input{
		Payload:         []byte(`{}`),
		Personalization: personalization,
	})
	require.NoError(t, err)

	files := readArchive(t, bundled)
	assert.Equal(t, personalization, files["personalization.json"])

	var manifest map[string]string
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	assert.Contains(t, manifest, "personalization.json")
}

func TestBuildManyCountGate(t *testing.T) {
	builder := newTestBuilder(t, api.PassKind("pass.com.example.test", false))

	input := Input{Payload: []byte(`{}`)}
	for _, count := range []int{0, 1, 11} {
		inputs := make([]Input, count)
		for i := range inputs {
			inputs[i] = input
		}
		_, err := builder.BuildMany(inputs)
		assert.ErrorIs(t, err, ErrInvalidItemCount, "count %d", count)
	}

	bundled, err := builder.BuildMany([]Input{input, input, input})
	require.NoError(t, err)
	files := readArchive(t, bundled)
	require.Len(t, files, 3)
	for _, name := range []string{"pass0.pkpass", "pass1.pkpass", "pass2.pkpass"} {
		require.Contains(t, files, name)
		inner := readArchive(t, files[name])
		assert.Contains(t, inner, "pass.json")
		assert.Contains(t, inner, "manifest.json")
		assert.Contains(t, inner, "signature")
	}
}

func TestOrderBundleUsesOrderNames(t *testing.T) {
	kind := api.OrderKind("order.com.example.test")
	builder := newTestBuilder(t, kind)

	bundled, err := builder.Build(Input{Payload: []byte(`{"orderNumber":"1"}`)})
	require.NoError(t, err)

	files := readArchive(t, bundled)
	assert.Contains(t, files, "order.json")
	assert.NotContains(t, files, "pass.json")

	var manifest map[string]string
	require.NoError(t, json.Unmarshal(files["manifest.json"], &manifest))
	// Orders carry SHA-256 digests.
	assert.Len(t, manifest["order.json"], 64)
}
