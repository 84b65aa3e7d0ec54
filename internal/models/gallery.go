package models

import (
	"io"
	"time"
)

type GalleryFile struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	FilePath   string    `json:"file"`
	FileURL    string    `json:"file_url,omitempty"`
	Size       int64     `json:"size"`
	SizeHuman  string    `json:"size_human,omitempty"`
	UploadedBy int64     `json:"uploaded_by"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Upload is a file received from a multipart request.
type Upload struct {
	Reader   io.Reader
	Filename string
	Size     int64
}
