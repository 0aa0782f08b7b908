package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/fashionstore-backend/internal/categories"
	"github.com/angelmondragon/fashionstore-backend/pkg/db"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/angelmondragon/fashionstore-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxSlugAttempts = 50

var maxPrice = decimal.RequireFromString("999999999999.99")

// Service exposes the catalog to storefront and admin handlers.
type Service interface {
	List(ctx context.Context, input ListInput) (*ListResult, error)
	Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error)
	Create(ctx context.Context, input CreateInput) (*ProductDTO, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProductDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type categoryTree interface {
	Get(ctx context.Context, id uuid.UUID) (*categories.CategoryDTO, error)
	Descendants(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
}

type service struct {
	repo       Repository
	categories categoryTree
	logg       *logger.Logger
}

func NewService(repo Repository, tree categoryTree, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if tree == nil {
		return nil, fmt.Errorf("category service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, categories: tree, logg: logg}, nil
}

func (s *service) List(ctx context.Context, input ListInput) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(input.Pagination.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	pageSize := pagination.NormalizeLimit(input.Pagination.Limit)

	query := listQuery{
		Search:          input.Query,
		Cursor:          cursor,
		Limit:           pagination.LimitWithBuffer(input.Pagination.Limit),
		IncludeInactive: input.IncludeInactive,
	}
	if input.CategoryID != nil {
		ids, err := s.categories.Descendants(ctx, *input.CategoryID)
		if err != nil {
			return nil, err
		}
		query.CategoryIDs = ids
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list products")
	}

	nextCursor := ""
	if len(rows) > pageSize {
		rows = rows[:pageSize]
		last := rows[len(rows)-1]
		nextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	out := make([]ProductDTO, 0, len(rows))
	for i := range rows {
		out = append(out, *toDTO(&rows[i]))
	}
	return &ListResult{Products: out, NextCursor: nextCursor}, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID, includeInactive bool) (*ProductDTO, error) {
	product, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !product.IsActive && !includeInactive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return toDTO(product), nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*ProductDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
	}
	if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
		return nil, err
	}

	base := input.Slug
	if strings.TrimSpace(base) == "" {
		base = name
	}
	slug, err := s.uniqueSlug(ctx, categories.Slugify(base))
	if err != nil {
		return nil, err
	}

	product := &models.Product{
		CategoryID:  input.CategoryID,
		Name:        name,
		Slug:        slug,
		Description: strings.TrimSpace(input.Description),
		Price:       input.Price,
		Stock:       input.Stock,
		ImageURL:    input.ImageURL,
		IsActive:    true,
	}
	if err := s.repo.Create(ctx, product); err != nil {
		if db.IsUniqueViolation(err, "products_slug_key") || db.IsUniqueViolation(err, "products.slug") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "product slug already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create product")
	}

	s.logg.Info(s.logg.WithField(ctx, "product_id", product.ID.String()), "products.created")
	return toDTO(product), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*ProductDTO, error) {
	if _, err := s.find(ctx, id); err != nil {
		return nil, err
	}

	fields := map[string]any{}
	if input.ClearCategory {
		fields["category_id"] = nil
	} else if input.CategoryID != nil {
		if err := s.ensureCategory(ctx, input.CategoryID); err != nil {
			return nil, err
		}
		fields["category_id"] = *input.CategoryID
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
		}
		fields["name"] = name
	}
	if input.Description != nil {
		fields["description"] = strings.TrimSpace(*input.Description)
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
		fields["price"] = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock must not be negative")
		}
		fields["stock"] = *input.Stock
	}
	if input.ImageURL != nil {
		fields["image_url"] = *input.ImageURL
	}
	if input.IsActive != nil {
		fields["is_active"] = *input.IsActive
	}

	if len(fields) > 0 {
		if _, err := s.repo.Update(ctx, id, fields); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update product")
		}
	}

	updated, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return toDTO(updated), nil
}

// Delete hides the product from the storefront. Order history keeps pointing
// at the row.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	affected, err := s.repo.Update(ctx, id, map[string]any{"is_active": false})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate product")
	}
	if affected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), "products.deactivated")
	return nil
}

func (s *service) find(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	return product, nil
}

func (s *service) ensureCategory(ctx context.Context, id *uuid.UUID) error {
	if id == nil {
		return nil
	}
	if _, err := s.categories.Get(ctx, *id); err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
			return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
		}
		return err
	}
	return nil
}

func (s *service) uniqueSlug(ctx context.Context, base string) (string, error) {
	if base == "" {
		base = "product"
	}
	candidate := base
	for attempt := 2; attempt <= maxSlugAttempts+1; attempt++ {
		taken, err := s.repo.SlugTaken(ctx, candidate)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check product slug")
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}

func validatePrice(price decimal.Decimal) error {
	switch {
	case price.IsNegative():
		return pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	case !price.Equal(price.Round(2)):
		return pkgerrors.New(pkgerrors.CodeValidation, "price supports at most 2 decimal places")
	case price.GreaterThan(maxPrice):
		return pkgerrors.New(pkgerrors.CodeValidation, "price exceeds the maximum allowed")
	}
	return nil
}
