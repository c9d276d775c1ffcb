// Package config loads the bridge's TOML configuration file and layers
// CLI flags and environment variables on top of it, following the same
// viper-based pattern used throughout the example corpus.
package config

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// MQTTConfig holds the broker connection settings from the "[MQTT]"
// table. Server may be the literal sentinel "<gateway>", meaning
// "resolve the default gateway address at startup" (see
// utils.DefaultGateway).
type MQTTConfig struct {
	Server string `mapstructure:"server"`
	Port   int    `mapstructure:"port"`
}

// MQTTTLSConfig holds the broker TLS settings from the "[MQTT_TLS]"
// table.
type MQTTTLSConfig struct {
	UseTLS          bool   `mapstructure:"use_tls"`
	CACerts         string `mapstructure:"ca_certs"`
	CertFile        string `mapstructure:"certfile"`
	KeyFile         string `mapstructure:"keyfile"`
	CertReqs        int    `mapstructure:"cert_reqs"`
	TLSVersion      string `mapstructure:"tls_version"`
	Ciphers         string `mapstructure:"ciphers"`
	KeyFilePassword string `mapstructure:"keyfile_password"`
}

// tlsVersions maps the python-paho-style version strings the
// "[MQTT_TLS]" table accepts to the corresponding crypto/tls constant.
var tlsVersions = map[string]uint16{
	"":        0, // let crypto/tls pick the default minimum
	"tlsv1":   tls.VersionTLS10,
	"tlsv1.1": tls.VersionTLS11,
	"tlsv1.2": tls.VersionTLS12,
	"tlsv1.3": tls.VersionTLS13,
}

// cert_reqs values mirror python ssl.CERT_NONE/CERT_OPTIONAL/CERT_REQUIRED,
// which is what the "[MQTT_TLS]" table's cert_reqs key was defined against.
const certReqsNone = 0

// BuildTLSConfig turns the "[MQTT_TLS]" table into a *tls.Config for the
// MQTT client, or returns (nil, nil) when TLS is not enabled. CACerts,
// CertFile/KeyFile are all optional: a bare "use_tls = true" is enough to
// get system root verification over TLS.
func (t MQTTTLSConfig) BuildTLSConfig() (*tls.Config, error) {
	if !t.UseTLS {
		return nil, nil
	}

	cfg := &tls.Config{
		InsecureSkipVerify: t.CertReqs == certReqsNone,
	}

	if v, ok := tlsVersions[strings.ToLower(t.TLSVersion)]; ok && v != 0 {
		cfg.MinVersion = v
	}

	if t.CACerts != "" {
		pem, err := os.ReadFile(t.CACerts)
		if err != nil {
			return nil, fmt.Errorf("config: read ca_certs %s: %w", t.CACerts, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("config: no certificates parsed from ca_certs %s", t.CACerts)
		}
		cfg.RootCAs = pool
	}

	if t.CertFile != "" && t.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(t.CertFile, t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("config: load client keypair: %w", err)
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}

// Config is the bridge's fully resolved configuration.
type Config struct {
	MQTT    MQTTConfig    `mapstructure:"mqtt"`
	MQTTTLS MQTTTLSConfig `mapstructure:"mqtt_tls"`

	Identifier string
	Debug      bool
}

// Overrides carries CLI-flag values, which take precedence over
// environment variables, which take precedence over the config file,
// which takes precedence over built-in defaults.
type Overrides struct {
	Server     string
	Port       int
	Identifier string
	Debug      bool
}

const gatewaySentinel = "<gateway>"

// Load reads configPath (if non-empty) as TOML and applies overrides on
// top. An empty configPath is not an error: the bridge can run on
// defaults plus flags/env alone. A non-empty configPath that cannot be
// read is an error.
func Load(configPath string, overrides Overrides) (Config, error) {
	v := viper.New()
	v.SetConfigType("toml")

	v.SetDefault("mqtt.server", gatewaySentinel)
	v.SetDefault("mqtt.port", 1883)
	v.SetDefault("mqtt_tls.use_tls", false)
	v.SetDefault("mqtt_tls.cert_reqs", 0)
	v.SetDefault("mqtt_tls.tls_version", "")
	v.SetDefault("mqtt_tls.ciphers", "")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	_ = v.BindEnv("mqtt.server", "MQTT_SERVER")
	_ = v.BindEnv("mqtt.port", "MQTT_PORT")
	_ = v.BindEnv("mqtt_tls.use_tls", "MQTT_TLS_USE_TLS")
	_ = v.BindEnv("mqtt_tls.ca_certs", "MQTT_TLS_CA_CERTS")
	_ = v.BindEnv("mqtt_tls.certfile", "MQTT_TLS_CERTFILE")
	_ = v.BindEnv("mqtt_tls.keyfile", "MQTT_TLS_KEYFILE")
	_ = v.BindEnv("mqtt_tls.keyfile_password", "MQTT_TLS_KEYFILE_PASSWORD")

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}

	if overrides.Server != "" {
		cfg.MQTT.Server = overrides.Server
	}
	if overrides.Port != 0 {
		cfg.MQTT.Port = overrides.Port
	}
	cfg.Identifier = overrides.Identifier
	cfg.Debug = overrides.Debug

	return cfg, nil
}

// ResolveGateway replaces the "<gateway>" sentinel in cfg.MQTT.Server
// with the result of resolve, leaving any concrete address untouched.
func ResolveGateway(cfg Config, resolve func() (string, error)) (Config, error) {
	if cfg.MQTT.Server != gatewaySentinel {
		return cfg, nil
	}
	gw, err := resolve()
	if err != nil {
		return Config{}, fmt.Errorf("config: resolve gateway: %w", err)
	}
	cfg.MQTT.Server = gw
	return cfg, nil
}
