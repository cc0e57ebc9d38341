package models

import "time"

// Thumbnail status values stored on a Document.
const (
	ThumbnailPending = "PENDING"
	ThumbnailReady   = "READY"
	ThumbnailFailed  = "FAILED"
)

// Document is the stored record of an uploaded file. ThumbnailPath is empty until a preview
// has been published and confirmed; it is always written so stores can query for "".
type Document struct {
	ID               string    `firestore:"-" json:"id"`
	OriginalFilename string    `firestore:"originalFilename,omitempty" json:"originalFilename"`
	MimeType         string    `firestore:"mimeType,omitempty" json:"mimeType"`
	StoragePath      string    `firestore:"storagePath,omitempty" json:"storagePath"`
	ThumbnailPath    string    `firestore:"thumbnailPath" json:"thumbnailPath,omitempty"`
	ThumbnailStatus  string    `firestore:"thumbnailStatus,omitempty" json:"thumbnailStatus"`
	ThumbnailError   string    `firestore:"thumbnailError,omitempty" json:"thumbnailError,omitempty"`
	Size             int64     `firestore:"size,omitempty" json:"size"`
	CreatedAt        time.Time `firestore:"createdAt,omitempty" json:"createdAt"`
	UpdatedAt        time.Time `firestore:"updatedAt,omitempty" json:"updatedAt"`
}

// HasThumbnail reports whether a confirmed preview exists.
func (d *Document) HasThumbnail() bool {
	return d.ThumbnailPath != ""
}
