package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"go.uber.org/zap"

	"cmsapi/internal/apperr"
	"cmsapi/internal/authz"
	"cmsapi/internal/models"
	"cmsapi/internal/repositories"
	"cmsapi/internal/utils"
)

const (
	excerptWords = 40
	thumbnailDir = "post_thumbnails"
)

var reTag = regexp.MustCompile(`<[^<]+?>`)

// Excerpt strips markup and keeps the first 40 words of body.
func Excerpt(body string) string {
	words := strings.Fields(reTag.ReplaceAllString(body, ""))
	if len(words) <= excerptWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:excerptWords], " ") + "..."
}

type PostQuery struct {
	IncludeDeleted bool
	Category       string
	Limit          int
	Offset         int
}

type PostService interface {
	Create(ctx context.Context, actor *models.User, in models.PostInput, thumbnail *models.Upload) (*models.Post, error)
	Update(ctx context.Context, actor *models.User, slug string, in models.PostInput, thumbnail *models.Upload) (*models.Post, error)
	Get(ctx context.Context, actor *models.User, slug string) (*models.Post, error)
	List(ctx context.Context, actor *models.User, q PostQuery) ([]*models.Post, error)
	Publish(ctx context.Context, actor *models.User, slug string) (*models.Post, error)
	Unpublish(ctx context.Context, actor *models.User, slug string) (*models.Post, error)
	Delete(ctx context.Context, actor *models.User, slug string) error
	Restore(ctx context.Context, actor *models.User, slug string) (*models.Post, error)
}

type postService struct {
	repo  repositories.PostRepository
	files FileStore
	log   *zap.Logger
}

func NewPostService(repo repositories.PostRepository, files FileStore, log *zap.Logger) PostService {
	if log == nil {
		log = zap.NewNop()
	}
	return &postService{repo: repo, files: files, log: log.Named("posts")}
}

func (s *postService) decorate(p *models.Post) *models.Post {
	if p != nil && p.Thumbnail != "" && s.files != nil {
		p.ThumbnailURL = s.files.URL(p.Thumbnail)
	}
	return p
}

func validatePost(in *models.PostInput, creating bool) error {
	titleRules := []validation.Rule{validation.NilOrNotEmpty, validation.Length(1, 255)}
	bodyRules := []validation.Rule{validation.NilOrNotEmpty}
	if creating {
		titleRules = append([]validation.Rule{validation.Required}, titleRules...)
		bodyRules = append([]validation.Rule{validation.Required}, bodyRules...)
	}
	err := validation.ValidateStruct(in,
		validation.Field(&in.Title, titleRules...),
		validation.Field(&in.Body, bodyRules...),
		validation.Field(&in.Tags, validation.By(tagsRule)),
	)
	return apperr.FromValidation(err)
}

func tagsRule(value interface{}) error {
	tags, _ := value.([]string)
	for _, t := range tags {
		if len(strings.TrimSpace(t)) > 50 {
			return errors.New("tags must be at most 50 characters")
		}
	}
	return nil
}

func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func (s *postService) saveThumbnail(ctx context.Context, up *models.Upload) (string, error) {
	if up == nil || up.Reader == nil {
		return "", nil
	}
	if s.files == nil {
		return "", errors.New("file storage is not configured")
	}
	path, _, err := s.files.Save(ctx, up.Reader, thumbnailDir, up.Filename)
	return path, err
}

func (s *postService) Create(ctx context.Context, actor *models.User, in models.PostInput, thumbnail *models.Upload) (*models.Post, error) {
	if err := authz.Authorize(actor, authz.ActionCreatePost, 0); err != nil {
		return nil, err
	}
	if err := validatePost(&in, true); err != nil {
		return nil, err
	}
	slug, err := utils.UniqueSlug(*in.Title, "post", 6)
	if err != nil {
		return nil, err
	}
	p := &models.Post{
		AuthorID:       actor.ID,
		AuthorUsername: actor.Username,
		Title:          strings.TrimSpace(*in.Title),
		Body:           *in.Body,
		Excerpt:        Excerpt(*in.Body),
		Tags:           cleanTags(in.Tags),
		Slug:           slug,
		IsPublished:    in.IsPublished != nil && *in.IsPublished,
	}
	if p.Thumbnail, err = s.saveThumbnail(ctx, thumbnail); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, p, in.CategoryIDs); err != nil {
		if p.Thumbnail != "" {
			_ = s.files.Remove(p.Thumbnail)
		}
		return nil, err
	}
	s.log.Info("post created", zap.Int64("post_id", p.ID), zap.Int64("author_id", p.AuthorID))
	// Re-read to pick up linked categories.
	return s.fetch(ctx, p.Slug)
}

func (s *postService) fetch(ctx context.Context, slug string) (*models.Post, error) {
	p, err := s.repo.GetBySlug(ctx, slug)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperr.NotFound("post not found")
	}
	if err != nil {
		return nil, err
	}
	return s.decorate(p), nil
}

// canSee reports whether actor may read p. Drafts and deleted posts are
// visible only to their author and to admins.
func canSee(actor *models.User, p *models.Post) bool {
	if p.IsPublished && !p.IsDeleted {
		return true
	}
	return authz.IsAdmin(actor) || authz.IsOwner(actor, p.AuthorID)
}

func (s *postService) Get(ctx context.Context, actor *models.User, slug string) (*models.Post, error) {
	p, err := s.fetch(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, p) {
		return nil, apperr.NotFound("post not found")
	}
	return p, nil
}

func (s *postService) List(ctx context.Context, actor *models.User, q PostQuery) ([]*models.Post, error) {
	f := repositories.PostFilter{
		Visibility:   repositories.VisibilityPublic,
		CategorySlug: q.Category,
		Limit:        q.Limit,
		Offset:       q.Offset,
	}
	switch {
	case authz.IsActive(actor) && authz.IsAdmin(actor):
		f.Visibility = repositories.VisibilityAll
		f.IncludeDeleted = q.IncludeDeleted
	case authz.IsActive(actor):
		f.Visibility = repositories.VisibilityMember
		f.ViewerID = actor.ID
	}
	posts, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	for _, p := range posts {
		s.decorate(p)
	}
	return posts, nil
}

// mutable loads a post and checks the owner-or-admin policy for action.
func (s *postService) mutable(ctx context.Context, actor *models.User, slug string, action authz.Action) (*models.Post, error) {
	p, err := s.fetch(ctx, slug)
	if err != nil {
		return nil, err
	}
	if !canSee(actor, p) {
		return nil, apperr.NotFound("post not found")
	}
	if err := authz.Authorize(actor, action, p.AuthorID); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *postService) Update(ctx context.Context, actor *models.User, slug string, in models.PostInput, thumbnail *models.Upload) (*models.Post, error) {
	p, err := s.mutable(ctx, actor, slug, authz.ActionUpdatePost)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, apperr.InvalidState("restore the post before editing it")
	}
	if err := validatePost(&in, false); err != nil {
		return nil, err
	}
	if in.Title != nil {
		p.Title = strings.TrimSpace(*in.Title)
	}
	if in.Body != nil {
		p.Body = *in.Body
		p.Excerpt = Excerpt(p.Body)
	}
	if in.Tags != nil {
		p.Tags = cleanTags(in.Tags)
	}
	if in.IsPublished != nil {
		p.IsPublished = *in.IsPublished
	}
	old := p.Thumbnail
	newThumb, err := s.saveThumbnail(ctx, thumbnail)
	if err != nil {
		return nil, err
	}
	if newThumb != "" {
		p.Thumbnail = newThumb
	}
	if err := s.repo.Update(ctx, p, in.CategoryIDs); err != nil {
		if newThumb != "" {
			_ = s.files.Remove(newThumb)
		}
		return nil, err
	}
	if newThumb != "" && old != "" {
		if err := s.files.Remove(old); err != nil {
			s.log.Warn("failed to remove old thumbnail", zap.String("path", old), zap.Error(err))
		}
	}
	return s.fetch(ctx, p.Slug)
}

func (s *postService) setPublished(ctx context.Context, actor *models.User, slug string, published bool) (*models.Post, error) {
	p, err := s.mutable(ctx, actor, slug, authz.ActionUpdatePost)
	if err != nil {
		return nil, err
	}
	if p.IsDeleted {
		return nil, apperr.InvalidState("post is deleted")
	}
	if p.IsPublished == published {
		if published {
			return nil, apperr.InvalidState("post is already published")
		}
		return nil, apperr.InvalidState("post is not published")
	}
	if err := s.repo.SetPublished(ctx, p.ID, published); err != nil {
		return nil, err
	}
	p.IsPublished = published
	return p, nil
}

func (s *postService) Publish(ctx context.Context, actor *models.User, slug string) (*models.Post, error) {
	return s.setPublished(ctx, actor, slug, true)
}

func (s *postService) Unpublish(ctx context.Context, actor *models.User, slug string) (*models.Post, error) {
	return s.setPublished(ctx, actor, slug, false)
}

func (s *postService) Delete(ctx context.Context, actor *models.User, slug string) error {
	p, err := s.mutable(ctx, actor, slug, authz.ActionDeletePost)
	if err != nil {
		return err
	}
	if p.IsDeleted {
		return apperr.InvalidState("post is already deleted")
	}
	if err := s.repo.SetDeleted(ctx, p.ID, true); err != nil {
		return err
	}
	s.log.Info("post deleted", zap.Int64("post_id", p.ID), zap.Int64("actor_id", actor.ID))
	return nil
}

// Restore brings a deleted post back as a draft.
func (s *postService) Restore(ctx context.Context, actor *models.User, slug string) (*models.Post, error) {
	p, err := s.mutable(ctx, actor, slug, authz.ActionRestorePost)
	if err != nil {
		return nil, err
	}
	if !p.IsDeleted {
		return nil, apperr.InvalidState("post is not deleted")
	}
	if err := s.repo.SetDeleted(ctx, p.ID, false); err != nil {
		return nil, err
	}
	p.IsDeleted = false
	return p, nil
}
