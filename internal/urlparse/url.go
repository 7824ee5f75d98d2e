// Package urlparse resolves a boltgraph connection URL
// (scheme://[user[:pass]@]host[:port][/database][?opt=val&...]) into the
// vendor, TLS profile, endpoint, credentials, and database it names.
package urlparse

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"boltgraph/internal/errs"
)

const defaultPort = 7687

// TLSProfile is the connection security mode implied by a scheme suffix.
type TLSProfile int

const (
	// Plain is unencrypted ("bolt", "neo4j", "memgraph").
	Plain TLSProfile = iota
	// Verified is TLS with certificate verification ("+ssl").
	Verified
	// SelfSigned is TLS accepting self-signed/unverified certs ("+ssc", "+s").
	SelfSigned
)

// Parsed is the resolved shape of a connection URL.
type Parsed struct {
	Vendor      string // "bolt", "neo4j", or "memgraph"
	TLS         TLSProfile
	Host        string
	Port        int
	Database    string
	User        string
	Password    string
	HasPassword bool
	Options     map[string]string
}

// Parse resolves raw into its vendor/TLS/endpoint/database/credential
// components. Database defaults to empty; callers resolve the vendor
// default (dialect.Adapter.DefaultDatabase) themselves since that decision
// belongs to the dialect, not the URL grammar.
func Parse(raw string) (Parsed, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Parsed{}, errs.New(errs.Configuration, fmt.Sprintf("urlparse: malformed URL: %v", err))
	}
	if u.Host == "" {
		return Parsed{}, errs.New(errs.Configuration, "urlparse: URL has no host")
	}

	vendor, tlsProfile, err := resolveScheme(u.Scheme)
	if err != nil {
		return Parsed{}, err
	}

	host := u.Hostname()
	port := defaultPort
	if portStr := u.Port(); portStr != "" {
		p, err := strconv.Atoi(portStr)
		if err != nil {
			return Parsed{}, errs.New(errs.Configuration, fmt.Sprintf("urlparse: invalid port %q", portStr))
		}
		port = p
	}

	database := strings.TrimPrefix(u.Path, "/")

	p := Parsed{
		Vendor:   vendor,
		TLS:      tlsProfile,
		Host:     host,
		Port:     port,
		Database: database,
		Options:  map[string]string{},
	}
	if u.User != nil {
		p.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			p.Password = pw
			p.HasPassword = true
		}
	}
	for k, v := range u.Query() {
		if len(v) > 0 {
			p.Options[k] = v[0]
		}
	}
	return p, nil
}

// resolveScheme splits a scheme like "neo4j+ssc" into its vendor
// ("neo4j", "bolt", "memgraph") and TLS profile.
func resolveScheme(scheme string) (vendor string, profile TLSProfile, err error) {
	base, suffix, hasSuffix := strings.Cut(scheme, "+")
	switch base {
	case "bolt", "neo4j", "memgraph":
		vendor = base
	default:
		return "", Plain, errs.New(errs.Configuration, fmt.Sprintf("urlparse: unknown scheme %q", scheme))
	}
	if !hasSuffix {
		return vendor, Plain, nil
	}
	switch suffix {
	case "ssl":
		return vendor, Verified, nil
	case "ssc", "s":
		return vendor, SelfSigned, nil
	default:
		return "", Plain, errs.New(errs.Configuration, fmt.Sprintf("urlparse: unknown TLS suffix %q", suffix))
	}
}
