package persistence

import (
	"context"
	"testing"

	"github.com/finledger/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedCostCenter(t *testing.T, db *gorm.DB, companyID uuid.UUID, name string, active bool) uuid.UUID {
	t.Helper()
	model := &models.CostCenterModel{
		CompanyID:     companyID,
		Name:          name,
		ApproverEmail: "approver@example.com",
		ReleaserEmail: "releaser@example.com",
		Active:        active,
	}
	model.ID = uuid.New()
	require.NoError(t, db.Create(model).Error)
	return model.ID
}

func TestGormCostCenterDirectory_Resolve(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.CostCenterModel{}))
	dir := NewGormCostCenterDirectory(db)
	ctx := context.Background()

	companyID := uuid.New()
	activeID := seedCostCenter(t, db, companyID, "Facilities", true)
	inactiveID := seedCostCenter(t, db, companyID, "Old projects", false)

	t.Run("resolves active cost center", func(t *testing.T) {
		info, err := dir.Resolve(ctx, companyID, activeID)
		require.NoError(t, err)
		require.NotNil(t, info)
		assert.Equal(t, "Facilities", info.Name)
		assert.Equal(t, "approver@example.com", info.ApproverEmail)
		assert.Equal(t, "releaser@example.com", info.ReleaserEmail)
	})

	t.Run("inactive cost center is unknown", func(t *testing.T) {
		info, err := dir.Resolve(ctx, companyID, inactiveID)
		require.NoError(t, err)
		assert.Nil(t, info)
	})

	t.Run("other company cannot resolve it", func(t *testing.T) {
		info, err := dir.Resolve(ctx, uuid.New(), activeID)
		require.NoError(t, err)
		assert.Nil(t, info)
	})
}

func TestGormCostCenterDirectory_UsageCounters(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.AutoMigrate(&models.CostCenterModel{}))
	dir := NewGormCostCenterDirectory(db)
	ctx := context.Background()

	companyID := uuid.New()
	first := seedCostCenter(t, db, companyID, "Facilities", true)
	second := seedCostCenter(t, db, companyID, "Marketing", true)

	usage := func(id uuid.UUID) int {
		var model models.CostCenterModel
		require.NoError(t, db.First(&model, "id = ?", id).Error)
		return model.UsageCount
	}

	require.NoError(t, dir.IncrementUsage(ctx, companyID, []uuid.UUID{first, second}))
	require.NoError(t, dir.IncrementUsage(ctx, companyID, []uuid.UUID{first}))
	assert.Equal(t, 2, usage(first))
	assert.Equal(t, 1, usage(second))

	require.NoError(t, dir.DecrementUsage(ctx, companyID, []uuid.UUID{first, second}))
	require.NoError(t, dir.DecrementUsage(ctx, companyID, []uuid.UUID{second}))
	assert.Equal(t, 1, usage(first))
	// the counter never goes below zero
	assert.Equal(t, 0, usage(second))

	// empty slices are a no-op
	require.NoError(t, dir.IncrementUsage(ctx, companyID, nil))
	require.NoError(t, dir.DecrementUsage(ctx, companyID, nil))
}
