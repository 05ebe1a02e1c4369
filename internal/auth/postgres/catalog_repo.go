// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package postgres

import (
	"context"

	"github.com/samber/oops"

	"github.com/talentdesk/backoffice/internal/auth"
)

// CatalogRepository implements auth.CatalogRepository and the writes the
// seed loader needs.
type CatalogRepository struct {
	db DB
}

// NewCatalogRepository creates a CatalogRepository.
func NewCatalogRepository(db DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListServices returns every service.
func (r *CatalogRepository) ListServices(ctx context.Context) ([]auth.ServiceDescriptor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT code, name, path, portal, sort_order
		FROM services
		ORDER BY portal, sort_order, code
	`)
	if err != nil {
		return nil, oops.Code("CATALOG_QUERY_FAILED").With("operation", "list services").Wrap(err)
	}
	defer rows.Close()

	services := []auth.ServiceDescriptor{}
	for rows.Next() {
		var (
			svc    auth.ServiceDescriptor
			portal string
		)
		if err := rows.Scan(&svc.Code, &svc.Name, &svc.Path, &portal, &svc.SortOrder); err != nil {
			return nil, oops.Code("CATALOG_QUERY_FAILED").With("operation", "scan service").Wrap(err)
		}
		svc.Portal = auth.Portal(portal)
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CATALOG_QUERY_FAILED").With("operation", "iterate services").Wrap(err)
	}
	return services, nil
}

// RolePermissions returns the glob patterns granted to role.
func (r *CatalogRepository) RolePermissions(ctx context.Context, role string) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT pattern FROM role_permissions WHERE role = $1 ORDER BY pattern`, role)
	if err != nil {
		return nil, oops.Code("CATALOG_QUERY_FAILED").With("operation", "role permissions").With("role", role).Wrap(err)
	}
	defer rows.Close()

	var patterns []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, oops.Code("CATALOG_QUERY_FAILED").With("operation", "scan permission").Wrap(err)
		}
		patterns = append(patterns, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("CATALOG_QUERY_FAILED").With("operation", "iterate permissions").Wrap(err)
	}
	return patterns, nil
}

// SaveService inserts svc or updates the service with the same code.
func (r *CatalogRepository) SaveService(ctx context.Context, svc auth.ServiceDescriptor) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO services (code, name, path, portal, sort_order)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE
		SET name = EXCLUDED.name, path = EXCLUDED.path,
		    portal = EXCLUDED.portal, sort_order = EXCLUDED.sort_order
	`, svc.Code, svc.Name, svc.Path, string(svc.Portal), svc.SortOrder)
	if err != nil {
		return oops.Code("CATALOG_WRITE_FAILED").With("code", svc.Code).Wrap(err)
	}
	return nil
}

// Grant gives role the pattern. Granting twice is a no-op; the return
// value reports whether a row was added.
func (r *CatalogRepository) Grant(ctx context.Context, role, pattern string) (bool, error) {
	tag, err := r.db.Exec(ctx, `
		INSERT INTO role_permissions (role, pattern) VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, role, pattern)
	if err != nil {
		return false, oops.Code("CATALOG_WRITE_FAILED").With("role", role).With("pattern", pattern).Wrap(err)
	}
	return tag.RowsAffected() > 0, nil
}

var _ auth.CatalogRepository = (*CatalogRepository)(nil)
