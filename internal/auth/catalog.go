// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package auth

import (
	"context"
	"sort"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// ServiceDescriptor is an auth-gated area of a portal, such as a menu entry.
type ServiceDescriptor struct {
	Code      string `json:"code"`
	Name      string `json:"name"`
	Path      string `json:"path"`
	Portal    Portal `json:"portal"`
	SortOrder int    `json:"sortOrder"`
}

// CatalogRepository reads the service catalog and role grants.
type CatalogRepository interface {
	// ListServices returns every service ordered by portal and sort order.
	ListServices(ctx context.Context) ([]ServiceDescriptor, error)

	// RolePermissions returns the glob patterns granted to role.
	RolePermissions(ctx context.Context, role string) ([]string, error)
}

// Catalog resolves which services a role can reach.
//
// Permission patterns are globs over service codes with ':' as the segment
// separator, so "recruitment:*" grants "recruitment:jobs" but not
// "recruitment:jobs:edit", and "recruitment:**" grants both.
type Catalog struct {
	repo  CatalogRepository
	links Links
}

// NewCatalog creates a Catalog.
func NewCatalog(repo CatalogRepository, links Links) (*Catalog, error) {
	if repo == nil {
		return nil, oops.Errorf("catalog repository is required")
	}
	return &Catalog{repo: repo, links: links}, nil
}

// All returns the full catalog.
func (c *Catalog) All(ctx context.Context) ([]ServiceDescriptor, error) {
	services, err := c.repo.ListServices(ctx)
	if err != nil {
		return nil, oops.Code("CATALOG_LIST_FAILED").Wrap(err)
	}
	sortServices(services)
	return services, nil
}

// Available returns the services role may reach. An empty portal means all portals.
func (c *Catalog) Available(ctx context.Context, role string, portal Portal) ([]ServiceDescriptor, error) {
	patterns, err := c.repo.RolePermissions(ctx, role)
	if err != nil {
		return nil, oops.Code("CATALOG_PERMISSIONS_FAILED").With("role", role).Wrap(err)
	}
	if len(patterns) == 0 {
		return []ServiceDescriptor{}, nil
	}

	matchers := make([]glob.Glob, 0, len(patterns))
	for _, p := range patterns {
		g, err := glob.Compile(p, ':')
		if err != nil {
			return nil, oops.Code("CATALOG_INVALID_PATTERN").With("role", role).With("pattern", p).Wrap(err)
		}
		matchers = append(matchers, g)
	}

	all, err := c.All(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]ServiceDescriptor, 0, len(all))
	for _, svc := range all {
		if portal != "" && svc.Portal != portal {
			continue
		}
		for _, g := range matchers {
			if g.Match(svc.Code) {
				out = append(out, svc)
				break
			}
		}
	}
	return out, nil
}

// RedirectFor picks the landing service after login: the first service the
// account's role reaches in portal, or the portal home when there is none.
func (c *Catalog) RedirectFor(ctx context.Context, account *Account, portal Portal) (*ServiceDescriptor, error) {
	services, err := c.Available(ctx, account.Role, portal)
	if err != nil {
		return nil, err
	}
	if len(services) > 0 {
		first := services[0]
		return &first, nil
	}
	return &ServiceDescriptor{Code: "home", Name: "Home", Path: "/", Portal: portal}, nil
}

// LoginPage is the redirect target after a password reset.
func (c *Catalog) LoginPage(portal Portal) *ServiceDescriptor {
	return &ServiceDescriptor{
		Code:   "login",
		Name:   "Login",
		Path:   c.links.LoginURL(portal),
		Portal: portal,
	}
}

func sortServices(services []ServiceDescriptor) {
	sort.SliceStable(services, func(i, j int) bool {
		if services[i].Portal != services[j].Portal {
			return services[i].Portal < services[j].Portal
		}
		if services[i].SortOrder != services[j].SortOrder {
			return services[i].SortOrder < services[j].SortOrder
		}
		return services[i].Code < services[j].Code
	})
}
