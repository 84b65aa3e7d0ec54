package services

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"cmsapi/internal/apperr"
	"cmsapi/internal/authz"
	"cmsapi/internal/models"
	"cmsapi/internal/repositories"
	"cmsapi/internal/utils"
)

const galleryDir = "file_gallery"

type GalleryService interface {
	Upload(ctx context.Context, actor *models.User, title string, upload models.Upload) (*models.GalleryFile, error)
	List(ctx context.Context, limit, offset int) ([]*models.GalleryFile, error)
	Get(ctx context.Context, id int64) (*models.GalleryFile, error)
	UpdateTitle(ctx context.Context, actor *models.User, id int64, title string) (*models.GalleryFile, error)
	Delete(ctx context.Context, actor *models.User, id int64) error
}

type galleryService struct {
	repo  repositories.FileRepository
	files FileStore
	log   *zap.Logger
}

func NewGalleryService(repo repositories.FileRepository, files FileStore, log *zap.Logger) GalleryService {
	if log == nil {
		log = zap.NewNop()
	}
	return &galleryService{repo: repo, files: files, log: log.Named("gallery")}
}

func (s *galleryService) decorate(f *models.GalleryFile) *models.GalleryFile {
	f.FileURL = s.files.URL(f.FilePath)
	f.SizeHuman = utils.HumanSize(f.Size)
	return f
}

func validTitle(title string) error {
	return apperr.FromValidation(validation.Errors{
		"title": validation.Validate(title, validation.Length(0, 255)),
	}.Filter())
}

func (s *galleryService) Upload(ctx context.Context, actor *models.User, title string, upload models.Upload) (*models.GalleryFile, error) {
	if err := authz.Authorize(actor, authz.ActionUploadFile, 0); err != nil {
		return nil, err
	}
	if upload.Reader == nil || strings.TrimSpace(upload.Filename) == "" {
		return nil, apperr.Field("file", "a file is required")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = filepath.Base(upload.Filename)
	}
	if err := validTitle(title); err != nil {
		return nil, err
	}
	path, size, err := s.files.Save(ctx, upload.Reader, galleryDir, upload.Filename)
	if err != nil {
		return nil, err
	}
	f := &models.GalleryFile{Title: title, FilePath: path, Size: size, UploadedBy: actor.ID}
	if err := s.repo.Create(ctx, f); err != nil {
		_ = s.files.Remove(path)
		return nil, err
	}
	s.log.Info("file uploaded", zap.Int64("file_id", f.ID), zap.Int64("size", size))
	return s.decorate(f), nil
}

func (s *galleryService) List(ctx context.Context, limit, offset int) ([]*models.GalleryFile, error) {
	files, err := s.repo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		s.decorate(f)
	}
	return files, nil
}

func (s *galleryService) Get(ctx context.Context, id int64) (*models.GalleryFile, error) {
	f, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("file not found")
	}
	if err != nil {
		return nil, err
	}
	return s.decorate(f), nil
}

func (s *galleryService) owned(ctx context.Context, actor *models.User, id int64) (*models.GalleryFile, error) {
	f, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(actor, authz.ActionModifyFile, f.UploadedBy); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *galleryService) UpdateTitle(ctx context.Context, actor *models.User, id int64, title string) (*models.GalleryFile, error) {
	f, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperr.Field("title", "title is required")
	}
	if err := validTitle(title); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateTitle(ctx, id, title); err != nil {
		return nil, err
	}
	f.Title = title
	return f, nil
}

func (s *galleryService) Delete(ctx context.Context, actor *models.User, id int64) error {
	f, err := s.owned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.files.Remove(f.FilePath); err != nil {
		s.log.Warn("failed to remove stored file", zap.String("path", f.FilePath), zap.Error(err))
	}
	return nil
}
