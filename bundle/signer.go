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
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"os"

	"github.com/smallstep/pkcs7"

	"github.com/walletkit/walletd/setup/config"
)

// Signer produces the detached CMS signatures embedded in wallet bundles.
// Apple requires the WWDR intermediate certificate in the signature chain.
type Signer struct {
	cert *x509.Certificate
	key  crypto.PrivateKey
	wwdr *x509.Certificate
}

// NewSigner builds a signer from PEM-encoded key material. The private key
// may be protected with a password.
func NewSigner(certPEM, keyPEM, wwdrPEM []byte, keyPassword string) (*Signer, error) {
	cert, err := parseCertificate(certPEM)
	if err != nil {
		return nil, fmt.Errorf("signing certificate: %w", err)
	}
	wwdr, err := parseCertificate(wwdrPEM)
	if err != nil {
		return nil, fmt.Errorf("WWDR certificate: %w", err)
	}
	key, err := parsePrivateKey(keyPEM, keyPassword)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	return &Signer{cert: cert, key: key, wwdr: wwdr}, nil
}

// LoadSigner reads the PEM files named in the family config.
func LoadSigner(certPath, keyPath, wwdrPath config.Path, keyPassword string) (*Signer, error) {
	certPEM, err := os.ReadFile(string(certPath))
	if err != nil {
		return nil, err
	}
	keyPEM, err := os.ReadFile(string(keyPath))
	if err != nil {
		return nil, err
	}
	wwdrPEM, err := os.ReadFile(string(wwdrPath))
	if err != nil {
		return nil, err
	}
	return NewSigner(certPEM, keyPEM, wwdrPEM, keyPassword)
}

// Sign returns a detached CMS signature over the given bytes.
func (s *Signer) Sign(data []byte) ([]byte, error) {
	signedData, err := pkcs7.NewSignedData(data)
	if err != nil {
		return nil, err
	}
	signedData.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)
	err = signedData.AddSignerChain(s.cert, s.key, []*x509.Certificate{s.wwdr}, pkcs7.SignerInfoConfig{})
	if err != nil {
		return nil, err
	}
	signedData.Detach()
	return signedData.Finish()
}

func parseCertificate(pemBytes []byte) (*x509.Certificate, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	return x509.ParseCertificate(block.Bytes)
}

func parsePrivateKey(pemBytes []byte, password string) (crypto.PrivateKey, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil {
		return nil, errors.New("no PEM block found")
	}
	der := block.Bytes
	if x509.IsEncryptedPEMBlock(block) { // nolint:staticcheck
		var err error
		der, err = x509.DecryptPEMBlock(block, []byte(password)) // nolint:staticcheck
		if err != nil {
			return nil, err
		}
	}
	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(der); err == nil {
		return key, nil
	}
	return nil, errors.New("unsupported private key format")
}
