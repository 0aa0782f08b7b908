package categories

import (
	"errors"

	pkgerrors "github.com/angelmondragon/fashionstore-backend/pkg/errors"
)

var (
	ErrCategoryNotFound      = errors.New("category not found")
	ErrDuplicateCategoryName = errors.New("duplicate category name")
	ErrInvalidParentCategory = errors.New("invalid parent category")
)

func notFound() error {
	return pkgerrors.Wrap(pkgerrors.CodeNotFound, ErrCategoryNotFound, "category not found")
}

func duplicateName(name string) error {
	return pkgerrors.Wrap(pkgerrors.CodeConflict, ErrDuplicateCategoryName, "a category with this name already exists under the same parent").
		WithDetails(map[string]any{"name": name})
}

func invalidParent(reason string) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, ErrInvalidParentCategory, reason)
}
