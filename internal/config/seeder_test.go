package config_test

import (
	"context"
	"testing"

	"libraryhub/internal/adapters/persistence/models"
	"libraryhub/internal/config"
	"libraryhub/internal/core/domain"
	"libraryhub/internal/pkg/password"
	"libraryhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeederIsIdempotent(t *testing.T) {
	db := testutil.NewDB(t)
	seeder := config.NewSeeder(db, config.AdminSeed{Username: "root", Email: "root@library.test", Password: "s3cret-pass"})

	require.NoError(t, seeder.Run(context.Background()))
	require.NoError(t, seeder.Run(context.Background()))

	var categories int64
	require.NoError(t, db.Model(&models.Category{}).Count(&categories).Error)
	assert.Equal(t, int64(len(domain.KnownCategories)), categories)

	var admins []models.User
	require.NoError(t, db.Where("role = ?", string(domain.RoleAdmin)).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "root", admins[0].Username)
	assert.True(t, password.Verify("s3cret-pass", admins[0].Password))
}

func TestSeederSkipsAdminWithoutCredentials(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, config.NewSeeder(db, config.AdminSeed{}).Run(context.Background()))

	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Zero(t, users)
}
