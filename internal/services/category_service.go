package services

import (
	"context"
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"cmsapi/internal/apperr"
	"cmsapi/internal/authz"
	"cmsapi/internal/models"
	"cmsapi/internal/repositories"
	"cmsapi/internal/utils"
)

type CategoryService interface {
	List(ctx context.Context) ([]*models.Category, error)
	Get(ctx context.Context, slug string) (*models.Category, error)
	Create(ctx context.Context, actor *models.User, in models.CategoryInput) (*models.Category, error)
	Update(ctx context.Context, actor *models.User, slug string, in models.CategoryInput) (*models.Category, error)
	Delete(ctx context.Context, actor *models.User, slug string) error
}

type categoryService struct {
	repo repositories.CategoryRepository
}

func NewCategoryService(repo repositories.CategoryRepository) CategoryService {
	return &categoryService{repo: repo}
}

func validateCategory(in *models.CategoryInput) error {
	in.Name = strings.TrimSpace(in.Name)
	return apperr.FromValidation(validation.ValidateStruct(in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Description, validation.Length(0, 500)),
	))
}

func categorySlug(name string) string {
	if s := utils.Slugify(name); s != "" {
		return s
	}
	return "category"
}

func duplicateName(err error) error {
	if errors.Is(err, repositories.ErrDuplicate) {
		return apperr.Field("name", "category with this name already exists")
	}
	return err
}

func (s *categoryService) List(ctx context.Context) ([]*models.Category, error) {
	return s.repo.List(ctx)
}

func (s *categoryService) Get(ctx context.Context, slug string) (*models.Category, error) {
	c, err := s.repo.GetBySlug(ctx, slug)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("category not found")
	}
	return c, err
}

func (s *categoryService) Create(ctx context.Context, actor *models.User, in models.CategoryInput) (*models.Category, error) {
	if err := authz.Authorize(actor, authz.ActionManageCategory, 0); err != nil {
		return nil, err
	}
	if err := validateCategory(&in); err != nil {
		return nil, err
	}
	c := &models.Category{Name: in.Name, Description: in.Description, Slug: categorySlug(in.Name)}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, duplicateName(err)
	}
	return c, nil
}

func (s *categoryService) Update(ctx context.Context, actor *models.User, slug string, in models.CategoryInput) (*models.Category, error) {
	if err := authz.Authorize(actor, authz.ActionManageCategory, 0); err != nil {
		return nil, err
	}
	if err := validateCategory(&in); err != nil {
		return nil, err
	}
	c, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	c.Name, c.Description, c.Slug = in.Name, in.Description, categorySlug(in.Name)
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, duplicateName(err)
	}
	return c, nil
}

func (s *categoryService) Delete(ctx context.Context, actor *models.User, slug string) error {
	if err := authz.Authorize(actor, authz.ActionManageCategory, 0); err != nil {
		return err
	}
	c, err := s.Get(ctx, slug)
	if err != nil {
		return err
	}
	return s.repo.Delete(ctx, c.ID)
}
