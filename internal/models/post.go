package models

import "time"

type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Slug        string `json:"slug"`
}

type Post struct {
	ID             int64      `json:"id"`
	AuthorID       int64      `json:"author_id"`
	AuthorUsername string     `json:"author"`
	Title          string     `json:"title"`
	Body           string     `json:"body"`
	Excerpt        string     `json:"excerpt"`
	Tags           []string   `json:"tags"`
	Categories     []Category `json:"categories"`
	Thumbnail      string     `json:"thumbnail"`
	ThumbnailURL   string     `json:"thumbnail_url,omitempty"`
	Slug           string     `json:"slug"`
	IsPublished    bool       `json:"is_published"`
	IsDeleted      bool       `json:"is_deleted"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// PostInput is shared by create and update; nil fields are left unchanged on update.
type PostInput struct {
	Title       *string
	Body        *string
	Tags        []string
	CategoryIDs []int64
	IsPublished *bool
}

type CategoryInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
