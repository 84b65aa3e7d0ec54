package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"cmsapi/internal/models"
	"cmsapi/internal/repositories"
)

type memPosts struct {
	mu     sync.Mutex
	posts  map[string]*models.Post
	nextID int64
}

func newMemPosts() *memPosts { return &memPosts{posts: map[string]*models.Post{}} }

func copyPost(p *models.Post) *models.Post {
	cp := *p
	cp.Tags = append([]string(nil), p.Tags...)
	cp.Categories = append([]models.Category(nil), p.Categories...)
	return &cp
}

func (r *memPosts) setCategories(p *models.Post, ids []int64) {
	p.Categories = []models.Category{}
	for _, id := range ids {
		p.Categories = append(p.Categories, models.Category{ID: id})
	}
}

func (r *memPosts) Create(_ context.Context, p *models.Post, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	p.ID = r.nextID
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	cp := copyPost(p)
	r.setCategories(cp, ids)
	r.posts[p.Slug] = cp
	return nil
}

func (r *memPosts) Update(_ context.Context, p *models.Post, ids []int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.posts[p.Slug]
	if !ok {
		return repositories.ErrNotFound
	}
	cp := copyPost(p)
	cp.Categories = cur.Categories
	if ids != nil {
		r.setCategories(cp, ids)
	}
	r.posts[p.Slug] = cp
	return nil
}

func (r *memPosts) GetBySlug(_ context.Context, slug string) (*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[slug]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return copyPost(p), nil
}

func (r *memPosts) List(_ context.Context, f repositories.PostFilter) ([]*models.Post, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Post
	for _, p := range r.posts {
		keep := false
		switch f.Visibility {
		case repositories.VisibilityPublic:
			keep = p.IsPublished && !p.IsDeleted
		case repositories.VisibilityMember:
			keep = !p.IsDeleted && (p.IsPublished || p.AuthorID == f.ViewerID)
		case repositories.VisibilityAll:
			keep = f.IncludeDeleted || !p.IsDeleted
		}
		if keep {
			out = append(out, copyPost(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *memPosts) byID(id int64) *models.Post {
	for _, p := range r.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (r *memPosts) SetPublished(_ context.Context, id int64, published bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID(id)
	if p == nil {
		return repositories.ErrNotFound
	}
	p.IsPublished = published
	return nil
}

func (r *memPosts) SetDeleted(_ context.Context, id int64, deleted bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.byID(id)
	if p == nil {
		return repositories.ErrNotFound
	}
	p.IsDeleted = deleted
	if deleted {
		p.IsPublished = false
	}
	return nil
}

type memCategories struct {
	mu     sync.Mutex
	items  map[int64]*models.Category
	nextID int64
}

func newMemCategories() *memCategories { return &memCategories{items: map[int64]*models.Category{}} }

func (r *memCategories) Create(_ context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ex := range r.items {
		if strings.EqualFold(ex.Name, c.Name) {
			return repositories.ErrDuplicate
		}
	}
	r.nextID++
	c.ID = r.nextID
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memCategories) GetBySlug(_ context.Context, slug string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.items {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memCategories) List(context.Context) ([]*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Category
	for _, c := range r.items {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *memCategories) Update(_ context.Context, c *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[c.ID]; !ok {
		return repositories.ErrNotFound
	}
	for id, ex := range r.items {
		if id != c.ID && strings.EqualFold(ex.Name, c.Name) {
			return repositories.ErrDuplicate
		}
	}
	cp := *c
	r.items[c.ID] = &cp
	return nil
}

func (r *memCategories) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

type memGallery struct {
	mu     sync.Mutex
	items  map[int64]*models.GalleryFile
	nextID int64
	clock  *fakeClock
}

func newMemGallery(clock *fakeClock) *memGallery {
	return &memGallery{items: map[int64]*models.GalleryFile{}, clock: clock}
}

func (r *memGallery) Create(_ context.Context, f *models.GalleryFile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	f.ID = r.nextID
	f.UploadedAt = r.clock.Now()
	r.clock.Advance(time.Second)
	cp := *f
	r.items[f.ID] = &cp
	return nil
}

func (r *memGallery) GetByID(_ context.Context, id int64) (*models.GalleryFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.items[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *memGallery) List(_ context.Context, limit, offset int) ([]*models.GalleryFile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.GalleryFile
	for _, f := range r.items {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (r *memGallery) UpdateTitle(_ context.Context, id int64, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.items[id]
	if !ok {
		return repositories.ErrNotFound
	}
	f.Title = title
	return nil
}

func (r *memGallery) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.items[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.items, id)
	return nil
}
