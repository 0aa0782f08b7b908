package categories

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/angelmondragon/fashionstore-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (Service, *gorm.DB) {
	t.Helper()
	conn, client := dbtest.OpenClient(t)
	svc, err := NewService(NewRepository(conn), client, logger.New(logger.Options{Output: io.Discard}))
	require.NoError(t, err)
	return svc, conn
}

func mustCreate(t *testing.T, svc Service, name string, parent *CategoryDTO) *CategoryDTO {
	t.Helper()
	input := Input{Name: name}
	if parent != nil {
		input.ParentID = &parent.ID
	}
	created, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	return created
}

func TestCreateComputesLevelAndSlug(t *testing.T) {
	svc, _ := newTestService(t)

	women := mustCreate(t, svc, "Thời trang Nữ", nil)
	assert.Equal(t, 1, women.Level)
	assert.Equal(t, "thoi-trang-nu", women.Slug)

	tops := mustCreate(t, svc, "Tops", women)
	assert.Equal(t, 2, tops.Level)

	shirts := mustCreate(t, svc, "Shirts", tops)
	assert.Equal(t, 3, shirts.Level)

	_, err := svc.Create(context.Background(), Input{Name: "Too Deep", ParentID: &shirts.ID})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidParentCategory))
}

func TestCreateRejectsUnknownParent(t *testing.T) {
	svc, _ := newTestService(t)
	missing := uuid.New()

	_, err := svc.Create(context.Background(), Input{Name: "Ghost", ParentID: &missing})
	assert.True(t, errors.Is(err, ErrInvalidParentCategory))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDuplicateNamesScopedToParent(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	women := mustCreate(t, svc, "Women", nil)
	men := mustCreate(t, svc, "Men", nil)
	mustCreate(t, svc, "Shirts", women)

	_, err := svc.Create(ctx, Input{Name: "  SHIRTS ", ParentID: &women.ID})
	assert.True(t, errors.Is(err, ErrDuplicateCategoryName))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	menShirts, err := svc.Create(ctx, Input{Name: "Shirts", ParentID: &men.ID})
	require.NoError(t, err)
	assert.Equal(t, "shirts-2", menShirts.Slug)

	_, err = svc.Create(ctx, Input{Name: "women"})
	assert.True(t, errors.Is(err, ErrDuplicateCategoryName))
}

func TestUpdateRejectsSelfAndDescendantParents(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	women := mustCreate(t, svc, "Women", nil)
	tops := mustCreate(t, svc, "Tops", women)

	_, err := svc.Update(ctx, women.ID, Input{Name: "Women", ParentID: &women.ID})
	assert.True(t, errors.Is(err, ErrInvalidParentCategory))

	_, err = svc.Update(ctx, women.ID, Input{Name: "Women", ParentID: &tops.ID})
	assert.True(t, errors.Is(err, ErrInvalidParentCategory))

	current, err := svc.Get(ctx, women.ID)
	require.NoError(t, err)
	assert.Nil(t, current.ParentID)
	assert.Equal(t, 1, current.Level)
}

func TestUpdateMovesSubtreeAndRelevels(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	women := mustCreate(t, svc, "Women", nil)
	tops := mustCreate(t, svc, "Tops", nil)
	shirts := mustCreate(t, svc, "Shirts", tops)

	moved, err := svc.Update(ctx, tops.ID, Input{Name: "Tops", ParentID: &women.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, moved.Level)
	assert.Equal(t, tops.Slug, moved.Slug)

	child, err := svc.Get(ctx, shirts.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, child.Level)

	deep := mustCreate(t, svc, "Accessories", nil)
	_, err = svc.Update(ctx, women.ID, Input{Name: "Women", ParentID: &deep.ID})
	assert.True(t, errors.Is(err, ErrInvalidParentCategory), "moving a 3-level subtree below a root must fail")
}

func TestDeleteDetachesChildrenAndProducts(t *testing.T) {
	svc, conn := newTestService(t)
	ctx := context.Background()

	women := mustCreate(t, svc, "Women", nil)
	tops := mustCreate(t, svc, "Tops", women)
	shirts := mustCreate(t, svc, "Shirts", tops)

	product := &models.Product{
		Name:       "Linen shirt",
		Slug:       "linen-shirt",
		Price:      decimal.NewFromInt(250000),
		Stock:      3,
		IsActive:   true,
		CategoryID: &women.ID,
	}
	require.NoError(t, conn.Create(product).Error)

	require.NoError(t, svc.Delete(ctx, women.ID))

	_, err := svc.Get(ctx, women.ID)
	assert.True(t, errors.Is(err, ErrCategoryNotFound))

	orphan, err := svc.Get(ctx, tops.ID)
	require.NoError(t, err)
	assert.Nil(t, orphan.ParentID)
	assert.Equal(t, 1, orphan.Level)

	grandchild, err := svc.Get(ctx, shirts.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, grandchild.Level)

	var reloaded models.Product
	require.NoError(t, conn.First(&reloaded, "id = ?", product.ID).Error)
	assert.Nil(t, reloaded.CategoryID)

	assert.True(t, errors.Is(svc.Delete(ctx, women.ID), ErrCategoryNotFound))
}

func TestTreeViewsAndStats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	women := mustCreate(t, svc, "Women", nil)
	mustCreate(t, svc, "Men", nil)
	tops := mustCreate(t, svc, "Tops", women)
	mustCreate(t, svc, "Shirts", tops)

	forest, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, forest, 2)

	flat, err := svc.Flattened(ctx)
	require.NoError(t, err)
	require.Len(t, flat, 4)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, LevelStats{Level1: 2, Level2: 1, Level3: 1, Total: 4}, stats)

	ids, err := svc.Descendants(ctx, women.ID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
	assert.Equal(t, women.ID, ids[0])
}

func TestCreateRequiresName(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.Create(context.Background(), Input{Name: "   "})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}
