package models

import (
	"strings"
	"time"
)

// FileRecord is a document as reported by the document service
type FileRecord struct {
	ID            string    `json:"id"`
	OriginalName  string    `json:"originalName"`
	MimeType      string    `json:"mimeType"`
	Size          int64     `json:"size"`
	CreatedAt     time.Time `json:"createdAt"`
	DownloadCount int       `json:"downloadCount"`
	IsPublic      bool      `json:"isPublic"`
	Description   string    `json:"description,omitempty"`
	FolderID      string    `json:"folderId,omitempty"`
}

// Category derives the filter category from the record's MIME type
func (f FileRecord) Category() FileCategory {
	return Categorize(f.MimeType)
}

// FolderRecord is a node of the backend folder tree
type FolderRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Description string    `json:"description,omitempty"`
	IsPublic    bool      `json:"isPublic"`
	CreatedAt   time.Time `json:"createdAt"`
	ParentID    string    `json:"parentId,omitempty"`
}

// IsRoot reports whether the folder has no parent
func (f FolderRecord) IsRoot() bool {
	return f.ParentID == ""
}

// FilePage is one page of a file listing
type FilePage struct {
	Items []FileRecord `json:"items"`
	Total int          `json:"total"`
}

// FileCategory groups MIME types for the type filter
type FileCategory string

const (
	CategoryAll      FileCategory = ""
	CategoryImage    FileCategory = "image"
	CategoryVideo    FileCategory = "video"
	CategoryAudio    FileCategory = "audio"
	CategoryDocument FileCategory = "document"
	CategoryArchive  FileCategory = "archive"
	CategoryOther    FileCategory = "other"
)

// Categories lists the selectable filter values, "all" first
func Categories() []FileCategory {
	return []FileCategory{
		CategoryAll,
		CategoryImage,
		CategoryVideo,
		CategoryAudio,
		CategoryDocument,
		CategoryArchive,
		CategoryOther,
	}
}

// Label is the display name of a category
func (c FileCategory) Label() string {
	if c == CategoryAll {
		return "All types"
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// ParseCategory maps a label or value back to a category
func ParseCategory(s string) (FileCategory, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "all types" || s == "all" {
		return CategoryAll, true
	}
	for _, c := range Categories() {
		if string(c) == s {
			return c, true
		}
	}
	return CategoryAll, false
}

var documentTypes = []string{
	"application/pdf",
	"application/msword",
	"application/rtf",
	"application/vnd.openxmlformats-officedocument",
	"application/vnd.ms-",
	"application/vnd.oasis.opendocument",
	"application/json",
	"application/xml",
}

var archiveTypes = []string{
	"application/zip",
	"application/x-zip-compressed",
	"application/x-tar",
	"application/gzip",
	"application/x-gzip",
	"application/x-7z-compressed",
	"application/x-rar-compressed",
	"application/vnd.rar",
	"application/x-bzip2",
}

// Categorize maps a MIME type to its category. Parameters such as
// "; charset=utf-8" are ignored.
func Categorize(mimeType string) FileCategory {
	mt, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(mimeType)), ";")
	mt = strings.TrimSpace(mt)

	switch {
	case mt == "":
		return CategoryOther
	case strings.HasPrefix(mt, "image/"):
		return CategoryImage
	case strings.HasPrefix(mt, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mt, "audio/"):
		return CategoryAudio
	case strings.HasPrefix(mt, "text/"):
		return CategoryDocument
	}
	for _, a := range archiveTypes {
		if mt == a {
			return CategoryArchive
		}
	}
	for _, d := range documentTypes {
		if strings.HasPrefix(mt, d) {
			return CategoryDocument
		}
	}
	return CategoryOther
}
