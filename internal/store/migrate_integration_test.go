// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Talentdesk Contributors

//go:build integration

package store_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/talentdesk/backoffice/internal/store"
)

var _ = Describe("Migrator", Ordered, func() {
	var (
		ctx       context.Context
		container *postgres.PostgresContainer
		dsn       string
		migrator  *store.Migrator
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("backoffice_test"),
			postgres.WithUsername("backoffice"),
			postgres.WithPassword("backoffice"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		dsn, err = container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err = store.NewMigrator(dsn)
		Expect(err).NotTo(HaveOccurred())
	})

	AfterAll(func() {
		if migrator != nil {
			Expect(migrator.Close()).To(Succeed())
		}
		if container != nil {
			Expect(container.Terminate(ctx)).To(Succeed())
		}
	})

	It("starts empty", func() {
		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Current).To(BeZero())
		Expect(st.Applied).To(BeEmpty())
		Expect(st.Pending).NotTo(BeEmpty())
	})

	It("applies every migration and is idempotent", func() {
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Up()).To(Succeed())

		st, err := migrator.Status()
		Expect(err).NotTo(HaveOccurred())
		Expect(st.Pending).To(BeEmpty())
		Expect(st.Dirty).To(BeFalse())
	})

	It("creates the tables the repositories use", func() {
		pool, err := store.OpenPool(ctx, dsn, store.PoolConfig{})
		Expect(err).NotTo(HaveOccurred())
		defer pool.Close()

		for _, table := range []string{"accounts", "profiles", "services", "role_permissions"} {
			var exists bool
			err := pool.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, table).Scan(&exists)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue(), table)
		}
	})

	It("steps down and back up", func() {
		Expect(migrator.Steps(-1)).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(Equal(uint(1)))

		Expect(migrator.Steps(1)).To(Succeed())
	})

	It("reverts everything", func() {
		Expect(migrator.Down()).To(Succeed())
		version, _, err := migrator.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(version).To(BeZero())
	})
})

var _ = Describe("OpenPool", func() {
	It("fails fast on an unreachable host", func() {
		_, err := store.OpenPool(context.Background(),
			"postgres://u:p@127.0.0.1:1/db?sslmode=disable",
			store.PoolConfig{ConnectTimeout: time.Second})
		Expect(err).To(HaveOccurred())
	})
})
