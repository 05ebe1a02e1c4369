// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

// Package seed loads the service catalog, role grants and bootstrap
// accounts from a YAML manifest.
package seed

import (
	"github.com/Masterminds/semver/v3"
	"github.com/gobwas/glob"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"

	"github.com/talentdesk/backoffice/internal/auth"
)

// SupportedVersions is the manifest version range this build understands.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

// Manifest is a seed.yaml file.
type Manifest struct {
	Version     string       `yaml:"version" json:"version" jsonschema:"minLength=5,description=Manifest format version (semver)"`
	Services    []Service    `yaml:"services,omitempty" json:"services,omitempty"`
	Permissions []Permission `yaml:"permissions,omitempty" json:"permissions,omitempty"`
	Accounts    []Account    `yaml:"accounts,omitempty" json:"accounts,omitempty"`
}

// Service is one catalog entry.
type Service struct {
	Code      string `yaml:"code" json:"code" jsonschema:"minLength=1"`
	Name      string `yaml:"name" json:"name" jsonschema:"minLength=1"`
	Path      string `yaml:"path" json:"path" jsonschema:"minLength=1"`
	Portal    string `yaml:"portal" json:"portal" jsonschema:"enum=backoffice,enum=candidate"`
	SortOrder int    `yaml:"sortOrder,omitempty" json:"sortOrder,omitempty"`
}

// Permission grants glob patterns over service codes to a role.
type Permission struct {
	Role     string   `yaml:"role" json:"role" jsonschema:"minLength=1"`
	Patterns []string `yaml:"patterns" json:"patterns" jsonschema:"minItems=1"`
}

// Account is a bootstrap staff account. Accounts that have never logged
// in and are SUSPENDED must set their own password on first sign-in.
type Account struct {
	Username    string `yaml:"username" json:"username" jsonschema:"minLength=3"`
	Password    string `yaml:"password,omitempty" json:"password,omitempty"`
	PasswordEnv string `yaml:"passwordEnv,omitempty" json:"passwordEnv,omitempty" jsonschema:"description=Environment variable holding the password"`
	Role        string `yaml:"role" json:"role" jsonschema:"minLength=1"`
	Status      string `yaml:"status,omitempty" json:"status,omitempty" jsonschema:"enum=ACTIVE,enum=SUSPENDED"`
	FullName    string `yaml:"fullName" json:"fullName" jsonschema:"minLength=1"`
	Email       string `yaml:"email" json:"email" jsonschema:"minLength=3"`
}

// Parse validates data against the manifest schema, decodes it and checks
// the constraints the schema cannot express.
func Parse(data []byte) (*Manifest, error) {
	if err := ValidateSchema(data); err != nil {
		return nil, err
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, oops.Code("SEED_INVALID_YAML").Wrap(err)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the version range, portals, glob patterns and usernames.
func (m *Manifest) Validate() error {
	v, err := semver.StrictNewVersion(m.Version)
	if err != nil {
		return oops.Code("SEED_INVALID_VERSION").With("version", m.Version).Wrap(err)
	}
	supported, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return oops.Code("SEED_INVALID_VERSION").Wrap(err)
	}
	if !supported.Check(v) {
		return oops.Code("SEED_UNSUPPORTED_VERSION").
			With("version", m.Version).
			With("supported", SupportedVersions).
			Errorf("manifest version %s is not supported", m.Version)
	}

	seen := make(map[string]bool, len(m.Services))
	for _, svc := range m.Services {
		if _, err := auth.ParsePortal(svc.Portal); err != nil {
			return oops.Code("SEED_INVALID_SERVICE").With("code", svc.Code).Wrap(err)
		}
		if seen[svc.Code] {
			return oops.Code("SEED_INVALID_SERVICE").With("code", svc.Code).Errorf("service %q is listed twice", svc.Code)
		}
		seen[svc.Code] = true
	}

	for _, p := range m.Permissions {
		for _, pattern := range p.Patterns {
			if _, err := glob.Compile(pattern, ':'); err != nil {
				return oops.Code("SEED_INVALID_PATTERN").With("role", p.Role).With("pattern", pattern).Wrap(err)
			}
		}
	}

	for _, a := range m.Accounts {
		if err := auth.ValidateUsername(a.Username); err != nil {
			return oops.Code("SEED_INVALID_ACCOUNT").
				With("username", a.Username).
				With("reason", err.Error()).
				Errorf("account %q: %v", a.Username, err)
		}
		if (a.Password == "") == (a.PasswordEnv == "") {
			return oops.Code("SEED_INVALID_ACCOUNT").
				With("username", a.Username).
				Errorf("account %q needs exactly one of password or passwordEnv", a.Username)
		}
	}
	return nil
}
