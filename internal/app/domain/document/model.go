// Package document holds files attached to assets.
package document

import (
	"strings"
	"time"
)

// FileType is the coarse classification of an uploaded document.
type FileType string

const (
	FileTypeImage    FileType = "image"
	FileTypePDF      FileType = "pdf"
	FileTypeDocument FileType = "document"
)

// FileTypeFor classifies a MIME type.
func FileTypeFor(mime string) FileType {
	switch {
	case strings.HasPrefix(mime, "image/"):
		return FileTypeImage
	case mime == "application/pdf":
		return FileTypePDF
	default:
		return FileTypeDocument
	}
}

// Document is the metadata row for an uploaded file.
type Document struct {
	ID         string    `json:"id" db:"id"`
	AssetID    string    `json:"asset_id" db:"asset_id"`
	Name       string    `json:"name" db:"name"`
	FilePath   string    `json:"file_path" db:"file_path"`
	FileType   FileType  `json:"file_type" db:"file_type"`
	FileSize   int64     `json:"file_size" db:"file_size"`
	UploadedAt time.Time `json:"uploaded_at" db:"uploaded_at"`
}
