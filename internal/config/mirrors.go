package config

import (
	"net/url"
	"strings"
)

// MirrorConfig groups the optional remote copies of the local token record.
// The local file stays authoritative; mirrors only receive copies of it.
type MirrorConfig struct {
	Postgres PostgresMirrorConfig `yaml:"postgres" json:"postgres"`
	Object   ObjectMirrorConfig   `yaml:"object" json:"object"`
}

// PostgresMirrorConfig enables the Postgres-backed mirror when DSN is set.
type PostgresMirrorConfig struct {
	DSN    string `yaml:"dsn" json:"-" env:"PGSTORE_DSN"`
	Schema string `yaml:"schema" json:"schema" env:"PGSTORE_SCHEMA"`
	Table  string `yaml:"table" json:"table" env:"PGSTORE_TABLE"`
}

// Enabled reports whether a DSN was configured.
func (c PostgresMirrorConfig) Enabled() bool { return c.DSN != "" }

// ObjectMirrorConfig enables the S3-compatible mirror when Endpoint is set.
type ObjectMirrorConfig struct {
	// Endpoint may be a bare host[:port] or an http(s) URL; the scheme selects TLS.
	Endpoint  string `yaml:"endpoint" json:"endpoint" env:"OBJECTSTORE_ENDPOINT"`
	AccessKey string `yaml:"access-key" json:"-" env:"OBJECTSTORE_ACCESS_KEY"`
	SecretKey string `yaml:"secret-key" json:"-" env:"OBJECTSTORE_SECRET_KEY"`
	Bucket    string `yaml:"bucket" json:"bucket" env:"OBJECTSTORE_BUCKET"`
	Region    string `yaml:"region" json:"region" env:"OBJECTSTORE_REGION"`
	Prefix    string `yaml:"prefix" json:"prefix" env:"OBJECTSTORE_PREFIX"`
	UseSSL    bool   `yaml:"-" json:"-"`
}

// Enabled reports whether an endpoint was configured.
func (c ObjectMirrorConfig) Enabled() bool { return c.Endpoint != "" }

func (m *MirrorConfig) normalize() {
	m.Postgres.DSN = strings.TrimSpace(m.Postgres.DSN)
	m.Postgres.Schema = strings.TrimSpace(m.Postgres.Schema)
	m.Postgres.Table = strings.TrimSpace(m.Postgres.Table)

	o := &m.Object
	o.AccessKey = strings.TrimSpace(o.AccessKey)
	o.SecretKey = strings.TrimSpace(o.SecretKey)
	o.Bucket = strings.TrimSpace(o.Bucket)
	o.Region = strings.TrimSpace(o.Region)
	o.Prefix = strings.Trim(strings.TrimSpace(o.Prefix), "/")
	o.Endpoint, o.UseSSL = resolveObjectEndpoint(o.Endpoint)
}

// resolveObjectEndpoint strips an http(s) scheme from the endpoint; TLS stays on unless
// the scheme is explicitly http.
func resolveObjectEndpoint(raw string) (string, bool) {
	endpoint := strings.TrimSpace(raw)
	useSSL := true
	if strings.Contains(endpoint, "://") {
		if parsed, err := url.Parse(endpoint); err == nil && parsed.Host != "" {
			useSSL = !strings.EqualFold(parsed.Scheme, "http")
			endpoint = parsed.Host
			if parsed.Path != "" && parsed.Path != "/" {
				endpoint = parsed.Host + parsed.Path
			}
		}
	}
	return strings.TrimRight(endpoint, "/"), useSSL
}
