package categories

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

const maxSlugAttempts = 50

// Service manages the category hierarchy. Level is computed here on every
// write and is never accepted from callers.
type Service interface {
	List(ctx context.Context) ([]CategoryDTO, error)
	Tree(ctx context.Context) ([]*Node, error)
	Flattened(ctx context.Context) ([]FlatNode, error)
	Stats(ctx context.Context) (LevelStats, error)
	Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error)
	Descendants(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error)
	Create(ctx context.Context, input Input) (*CategoryDTO, error)
	Update(ctx context.Context, id uuid.UUID, input Input) (*CategoryDTO, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type service struct {
	repo Repository
	tx   txRunner
	logg *logger.Logger
}

func NewService(repo Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("category repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, tx: tx, logg: logg}, nil
}

func (s *service) List(ctx context.Context) ([]CategoryDTO, error) {
	rows, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
	}
	flat := toDTOs(rows)
	if bad := Mismatched(flat); len(bad) > 0 {
		s.logg.Warn(s.logg.WithField(ctx, "category_ids", bad), "categories.level_mismatch")
	}
	return flat, nil
}

func (s *service) Tree(ctx context.Context) ([]*Node, error) {
	flat, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	return BuildTree(flat), nil
}

func (s *service) Flattened(ctx context.Context) ([]FlatNode, error) {
	forest, err := s.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return Flatten(forest), nil
}

func (s *service) Stats(ctx context.Context) (LevelStats, error) {
	flat, err := s.List(ctx)
	if err != nil {
		return LevelStats{}, err
	}
	return Stats(flat), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*CategoryDTO, error) {
	row, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapLookupError(err)
	}
	dto := toDTO(*row)
	return &dto, nil
}

// Descendants returns the category's own id followed by every id below it.
func (s *service) Descendants(ctx context.Context, id uuid.UUID) ([]uuid.UUID, error) {
	flat, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := Index(flat)[id]; !ok {
		return nil, notFound()
	}
	return append([]uuid.UUID{id}, Descendants(id, flat)...), nil
}

func (s *service) Create(ctx context.Context, input Input) (*CategoryDTO, error) {
	input, err := normalize(input)
	if err != nil {
		return nil, err
	}

	var created models.Category
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		level := 1
		if input.ParentID != nil {
			parent, err := repo.FindByID(ctx, *input.ParentID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return invalidParent("parent category does not exist")
				}
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load parent category")
			}
			level = parent.Level + 1
		}
		if level > MaxDepth {
			return invalidParent(fmt.Sprintf("categories can be nested at most %d levels deep", MaxDepth))
		}

		if err := ensureNameFree(ctx, repo, input.ParentID, input.Name, uuid.Nil); err != nil {
			return err
		}
		slug, err := uniqueSlug(ctx, repo, input.Slug, uuid.Nil)
		if err != nil {
			return err
		}

		created = models.Category{
			Name:        input.Name,
			Description: input.Description,
			ParentID:    input.ParentID,
			ImageURL:    input.ImageURL,
			Level:       level,
			Slug:        slug,
		}
		if err := repo.Create(ctx, &created); err != nil {
			return mapWriteError(err, input.Name)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"category_id": created.ID.String(),
		"level":       created.Level,
	}), "category.created")
	dto := toDTO(created)
	return &dto, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input Input) (*CategoryDTO, error) {
	if input.ParentID != nil && *input.ParentID == id {
		return nil, invalidParent("a category cannot be its own parent")
	}
	input, err := normalize(input)
	if err != nil {
		return nil, err
	}

	var updated models.Category
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.FindByID(ctx, id)
		if err != nil {
			return mapLookupError(err)
		}
		rows, err := repo.List(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
		}
		flat := toDTOs(rows)
		byID := Index(flat)

		level := 1
		if input.ParentID != nil {
			parent, ok := byID[*input.ParentID]
			if !ok {
				return invalidParent("parent category does not exist")
			}
			if isAncestor(id, parent.ID, byID) {
				return invalidParent("a category cannot be moved under its own descendant")
			}
			level = parent.Level + 1
		}
		if level+subtreeHeight(id, flat)-1 > MaxDepth {
			return invalidParent(fmt.Sprintf("categories can be nested at most %d levels deep", MaxDepth))
		}

		if err := ensureNameFree(ctx, repo, input.ParentID, input.Name, id); err != nil {
			return err
		}
		slug := current.Slug
		if input.Slug != current.Slug {
			if slug, err = uniqueSlug(ctx, repo, input.Slug, id); err != nil {
				return err
			}
		}

		current.Name = input.Name
		current.Description = input.Description
		current.ParentID = input.ParentID
		current.ImageURL = input.ImageURL
		current.Slug = slug
		levelChanged := current.Level != level
		current.Level = level
		if err := repo.Save(ctx, current); err != nil {
			return mapWriteError(err, input.Name)
		}

		if levelChanged {
			if err := relevel(ctx, repo, id, level, replace(flat, toDTO(*current))); err != nil {
				return err
			}
		}
		updated = *current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logg.Info(s.logg.WithField(ctx, "category_id", id.String()), "category.updated")
	dto := toDTO(updated)
	return &dto, nil
}

// Delete removes the category. Children become roots and products lose
// their category reference.
func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		rows, err := repo.List(ctx)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list categories")
		}
		flat := toDTOs(rows)
		if _, ok := Index(flat)[id]; !ok {
			return notFound()
		}

		if err := repo.DetachChildren(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "detach child categories")
		}
		if err := repo.DetachProducts(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "detach products")
		}
		if _, err := repo.Delete(ctx, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete category")
		}

		remaining := make([]CategoryDTO, 0, len(flat))
		var orphans []uuid.UUID
		for _, c := range flat {
			if c.ID == id {
				continue
			}
			if c.ParentID != nil && *c.ParentID == id {
				c.ParentID = nil
				orphans = append(orphans, c.ID)
			}
			remaining = append(remaining, c)
		}
		for _, orphan := range orphans {
			if err := relevel(ctx, repo, orphan, 1, remaining); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logg.Info(s.logg.WithField(ctx, "category_id", id.String()), "category.deleted")
	return nil
}

// relevel writes level to root and parent+1 to every node below it.
func relevel(ctx context.Context, repo Repository, root uuid.UUID, level int, flat []CategoryDTO) error {
	byID := Index(flat)
	if byID[root].Level != level {
		if err := repo.UpdateLevel(ctx, root, level); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update category level")
		}
	}
	levels := map[uuid.UUID]int{root: level}
	for _, child := range Descendants(root, flat) {
		node := byID[child]
		want := levels[*node.ParentID] + 1
		levels[child] = want
		if node.Level == want {
			continue
		}
		if err := repo.UpdateLevel(ctx, child, want); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update category level")
		}
	}
	return nil
}

func replace(flat []CategoryDTO, updated CategoryDTO) []CategoryDTO {
	out := make([]CategoryDTO, len(flat))
	for i, c := range flat {
		if c.ID == updated.ID {
			c = updated
		}
		out[i] = c
	}
	return out
}

func normalize(input Input) (Input, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Description = strings.TrimSpace(input.Description)
	if input.Name == "" {
		return input, pkgerrors.New(pkgerrors.CodeValidation, "category name is required")
	}
	if input.ImageURL != nil && strings.TrimSpace(*input.ImageURL) == "" {
		input.ImageURL = nil
	}
	if input.ParentID != nil && *input.ParentID == uuid.Nil {
		input.ParentID = nil
	}
	slug := Slugify(input.Slug)
	if slug == "" {
		slug = Slugify(input.Name)
	}
	if slug == "" {
		slug = "category"
	}
	input.Slug = slug
	return input, nil
}

func ensureNameFree(ctx context.Context, repo Repository, parentID *uuid.UUID, name string, exclude uuid.UUID) error {
	taken, err := repo.NameTaken(ctx, parentID, name, exclude)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check category name")
	}
	if taken {
		return duplicateName(name)
	}
	return nil
}

// uniqueSlug appends -2, -3, ... until the slug is free.
func uniqueSlug(ctx context.Context, repo Repository, base string, exclude uuid.UUID) (string, error) {
	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		taken, err := repo.SlugTaken(ctx, candidate, exclude)
		if err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check category slug")
		}
		if !taken {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return fmt.Sprintf("%s-%s", base, uuid.NewString()[:8]), nil
}

func mapLookupError(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound()
	}
	return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load category")
}

func mapWriteError(err error, name string) error {
	switch {
	case db.IsUniqueViolation(err, "idx_categories_parent_name"):
		return duplicateName(name)
	case db.IsUniqueViolation(err, "categories_slug_key"), db.IsUniqueViolation(err, "categories.slug"):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "category slug already in use")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save category")
	}
}
