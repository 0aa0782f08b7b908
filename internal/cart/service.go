package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/fashionstore-backend/pkg/db"
	"github.com/angelmondragon/fashionstore-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
	"github.com/angelmondragon/fashionstore-backend/pkg/logger"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// Service manages a shopper's cart.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error)
	Add(ctx context.Context, userID uuid.UUID, input AddInput) (*CartDTO, error)
	Update(ctx context.Context, userID, itemID uuid.UUID, input UpdateInput) (*CartDTO, error)
	Remove(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     Repository
	products productLoader
	tx       txRunner
	logg     *logger.Logger
}

// NewService builds a cart service backed by the provided stack.
func NewService(repo Repository, products productLoader, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, products: products, tx: tx, logg: logg}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*CartDTO, error) {
	items, err := s.repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart")
	}
	return buildCart(items), nil
}

// Add inserts the variant or bumps the quantity of the existing line with the
// same (product, size, color).
func (s *service) Add(ctx context.Context, userID uuid.UUID, input AddInput) (*CartDTO, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	size := strings.TrimSpace(input.Size)
	color := strings.TrimSpace(input.Color)

	product, err := s.activeProduct(ctx, input.ProductID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		existing, err := repo.FindVariant(ctx, userID, product.ID, size, color)
		switch {
		case err == nil:
			qty := existing.Quantity + input.Quantity
			if err := checkStock(product, qty); err != nil {
				return err
			}
			_, err := repo.SetQuantity(ctx, userID, existing.ID, qty)
			return err
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := checkStock(product, input.Quantity); err != nil {
				return err
			}
			return repo.Create(ctx, &models.CartItem{
				UserID:    userID,
				ProductID: product.ID,
				Quantity:  input.Quantity,
				Size:      size,
				Color:     color,
			})
		default:
			return err
		}
	})
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		if db.IsUniqueViolation(err, "cart_items_variant_key") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart changed concurrently, retry")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "add cart item")
	}
	return s.Get(ctx, userID)
}

func (s *service) Update(ctx context.Context, userID, itemID uuid.UUID, input UpdateInput) (*CartDTO, error) {
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	item, err := s.repo.FindByID(ctx, userID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load cart item")
	}
	if item.Product != nil {
		if err := checkStock(item.Product, input.Quantity); err != nil {
			return nil, err
		}
	}
	if _, err := s.repo.SetQuantity(ctx, userID, itemID, input.Quantity); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update cart item")
	}
	return s.Get(ctx, userID)
}

func (s *service) Remove(ctx context.Context, userID, itemID uuid.UUID) (*CartDTO, error) {
	affected, err := s.repo.Delete(ctx, userID, itemID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "remove cart item")
	}
	if affected == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	return s.Get(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.repo.Clear(ctx, userID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "clear cart")
	}
	return nil
}

func (s *service) activeProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.products.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load product")
	}
	if !product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return product, nil
}

func checkStock(product *models.Product, quantity int) error {
	if quantity > product.Stock {
		return pkgerrors.New(pkgerrors.CodeValidation, "requested quantity exceeds available stock").
			WithDetails(map[string]any{"product_id": product.ID, "available": product.Stock})
	}
	return nil
}
