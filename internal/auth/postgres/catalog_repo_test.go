// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talentdesk/backoffice/internal/auth"
	"github.com/talentdesk/backoffice/pkg/errutil"
)

func newMockCatalog(t *testing.T) (*CatalogRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		mock.Close()
	})
	return NewCatalogRepository(mock), mock
}

func TestCatalogRepository_ListServices(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(mock pgxmock.PgxPoolIface)
		want    []auth.ServiceDescriptor
		wantErr bool
	}{
		{
			name: "rows",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`SELECT code, name, path, portal, sort_order FROM services`).
					WillReturnRows(pgxmock.NewRows([]string{"code", "name", "path", "portal", "sort_order"}).
						AddRow("recruitment:jobs", "Jobs", "/jobs", "backoffice", 10).
						AddRow("candidate:applications", "Applications", "/applications", "candidate", 10))
			},
			want: []auth.ServiceDescriptor{
				{Code: "recruitment:jobs", Name: "Jobs", Path: "/jobs", Portal: auth.PortalStaff, SortOrder: 10},
				{Code: "candidate:applications", Name: "Applications", Path: "/applications", Portal: auth.PortalCandidate, SortOrder: 10},
			},
		},
		{
			name: "empty",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM services`).
					WillReturnRows(pgxmock.NewRows([]string{"code", "name", "path", "portal", "sort_order"}))
			},
			want: []auth.ServiceDescriptor{},
		},
		{
			name: "query error",
			setup: func(mock pgxmock.PgxPoolIface) {
				mock.ExpectQuery(`FROM services`).WillReturnError(errors.New("connection refused"))
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockCatalog(t)
			tt.setup(mock)

			got, err := repo.ListServices(context.Background())
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "CATALOG_QUERY_FAILED")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCatalogRepository_RolePermissions(t *testing.T) {
	repo, mock := newMockCatalog(t)
	mock.ExpectQuery(`SELECT pattern FROM role_permissions WHERE role = \$1`).
		WithArgs("recruiter").
		WillReturnRows(pgxmock.NewRows([]string{"pattern"}).AddRow("recruitment:*").AddRow("reports:weekly"))

	got, err := repo.RolePermissions(context.Background(), "recruiter")
	require.NoError(t, err)
	assert.Equal(t, []string{"recruitment:*", "reports:weekly"}, got)
}

func TestCatalogRepository_Writes(t *testing.T) {
	ctx := context.Background()

	t.Run("save upserts by code", func(t *testing.T) {
		repo, mock := newMockCatalog(t)
		mock.ExpectExec(`INSERT INTO services .* ON CONFLICT \(code\) DO UPDATE`).
			WithArgs("recruitment:jobs", "Jobs", "/jobs", "backoffice", 10).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.SaveService(ctx, auth.ServiceDescriptor{
			Code: "recruitment:jobs", Name: "Jobs", Path: "/jobs", Portal: auth.PortalStaff, SortOrder: 10,
		})
		require.NoError(t, err)
	})

	t.Run("grant reports whether a row was added", func(t *testing.T) {
		repo, mock := newMockCatalog(t)
		mock.ExpectExec(`INSERT INTO role_permissions`).
			WithArgs("recruiter", "recruitment:*").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mock.ExpectExec(`INSERT INTO role_permissions`).
			WithArgs("recruiter", "recruitment:*").
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		added, err := repo.Grant(ctx, "recruiter", "recruitment:*")
		require.NoError(t, err)
		assert.True(t, added)

		added, err = repo.Grant(ctx, "recruiter", "recruitment:*")
		require.NoError(t, err)
		assert.False(t, added)
	})

	t.Run("grant failure", func(t *testing.T) {
		repo, mock := newMockCatalog(t)
		mock.ExpectExec(`INSERT INTO role_permissions`).
			WithArgs("recruiter", "x").
			WillReturnError(errors.New("read-only transaction"))

		_, err := repo.Grant(ctx, "recruiter", "x")
		errutil.AssertErrorCode(t, err, "CATALOG_WRITE_FAILED")
	})
}
