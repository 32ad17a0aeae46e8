package config

import "fmt"

type WalletAPI struct {
	Global *Global `yaml:"-"`

	// Listen address for the public Wallet Web Service endpoints.
	Listen Address `yaml:"listen"`

	// The pass and order families served by this instance. At least one
	// of the two must be enabled.
	Passes FamilyOptions `yaml:"passes"`
	Orders FamilyOptions `yaml:"orders"`

	// APNs transport used to wake devices when an item changes.
	APNS APNSOptions `yaml:"apns"`

	// Bearer token required on the operator endpoints (/push, /items).
	OperatorToken string `yaml:"operator_token"`
}

func (c *WalletAPI) Defaults(generate bool) {
	c.Listen = "localhost:7745"
	c.APNS.Defaults(generate)
	if generate {
		c.Passes.Enabled = true
		c.Passes.TypeIdentifier = "pass.com.example.walletd"
		c.Passes.TemplatePath = "./passes_template"
		c.Orders.Enabled = false
		c.OperatorToken = "secret-operator-token"
	}
}

func (c *WalletAPI) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "wallet_api.listen", string(c.Listen))
	checkNotEmpty(configErrs, "wallet_api.operator_token", c.OperatorToken)
	if !c.Passes.Enabled && !c.Orders.Enabled {
		configErrs.Add("at least one of wallet_api.passes or wallet_api.orders must be enabled")
	}
	if c.Passes.Enabled {
		c.Passes.Verify(configErrs, "wallet_api.passes")
	}
	if c.Orders.Enabled {
		c.Orders.Verify(configErrs, "wallet_api.orders")
	}
	if c.Passes.Enabled || c.Orders.Enabled {
		c.APNS.Verify(configErrs)
	}
}

// FamilyOptions configures one item family (passes or orders).
type FamilyOptions struct {
	Enabled bool `yaml:"enabled"`

	// The type identifier that namespaces every item of this family,
	// e.g. "pass.com.example.loyalty" or "order.com.example.shop".
	TypeIdentifier string `yaml:"type_identifier"`

	// Directory containing the resource files (icons, logos,
	// xx-YY.lproj/ localizations) bundled with every item.
	TemplatePath Path `yaml:"template_path"`

	// The signing certificate, its private key and Apple's WWDR
	// intermediate certificate, all in PEM format.
	Certificate        Path   `yaml:"certificate"`
	PrivateKey         Path   `yaml:"private_key"`
	PrivateKeyPassword string `yaml:"private_key_password"`
	WWDRCertificate    Path   `yaml:"wwdr_certificate"`

	// Whether the personalization endpoints are served. Only honoured
	// for the passes family; orders have no personalization flow.
	EnablePersonalization bool `yaml:"enable_personalization"`
}

func (c *FamilyOptions) Verify(configErrs *ConfigErrors, key string) {
	checkNotEmpty(configErrs, fmt.Sprintf("%s.type_identifier", key), c.TypeIdentifier)
	checkNotEmpty(configErrs, fmt.Sprintf("%s.template_path", key), string(c.TemplatePath))
	checkNotEmpty(configErrs, fmt.Sprintf("%s.certificate", key), string(c.Certificate))
	checkNotEmpty(configErrs, fmt.Sprintf("%s.private_key", key), string(c.PrivateKey))
	checkNotEmpty(configErrs, fmt.Sprintf("%s.wwdr_certificate", key), string(c.WWDRCertificate))
}

// APNSOptions configures the connection to the Apple Push Notification
// service. The same certificate used for signing items is normally also
// valid for the APNs TLS client connection.
type APNSOptions struct {
	// The APNs endpoint to talk to. Defaults to the production
	// endpoint; override it for the sandbox or in tests.
	Endpoint string `yaml:"endpoint"`

	// TLS client certificate and private key, in PEM format.
	Certificate Path `yaml:"certificate"`
	PrivateKey  Path `yaml:"private_key"`

	// DisableTLSValidation disables the validation of X.509 TLS certs
	// on the remote endpoint. This is not recommended in production!
	DisableTLSValidation bool `yaml:"disable_tls_validation"`
}

func (c *APNSOptions) Defaults(generate bool) {
	c.Endpoint = "https://api.push.apple.com"
}

func (c *APNSOptions) Verify(configErrs *ConfigErrors) {
	checkNotEmpty(configErrs, "wallet_api.apns.endpoint", c.Endpoint)
	checkNotEmpty(configErrs, "wallet_api.apns.certificate", string(c.Certificate))
	checkNotEmpty(configErrs, "wallet_api.apns.private_key", string(c.PrivateKey))
}
