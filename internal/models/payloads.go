package models

// These structs define the JSON payloads of the HTTP functions.

// ThumbnailOptions overrides the rasterization defaults for one request. Zero fields keep the
// configured default.
type ThumbnailOptions struct {
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	Quality    int    `json:"quality,omitempty"`
	Density    int    `json:"density,omitempty"`
	Background string `json:"background,omitempty"`
}

// GenerateThumbnailRequest is the input for the thumbnail-generator function.
type GenerateThumbnailRequest struct {
	StoragePath        string            `json:"storagePath"`
	DerivedStoragePath string            `json:"derivedStoragePath"`
	OriginalFilename   string            `json:"originalFilename"`
	MimeType           string            `json:"mimeType,omitempty"`
	DocumentID         string            `json:"documentId,omitempty"`
	Options            *ThumbnailOptions `json:"options,omitempty"`
}

// MissingFields lists the required fields that are empty.
func (r *GenerateThumbnailRequest) MissingFields() []string {
	var missing []string
	if r.StoragePath == "" {
		missing = append(missing, "storagePath")
	}
	if r.DerivedStoragePath == "" {
		missing = append(missing, "derivedStoragePath")
	}
	if r.OriginalFilename == "" {
		missing = append(missing, "originalFilename")
	}
	return missing
}

// GenerateThumbnailResponse is the output of the thumbnail-generator function.
type GenerateThumbnailResponse struct {
	DerivedStoragePath string `json:"derivedStoragePath"`
}

// ErrorResponse is the body of every non-2xx JSON response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// StorageObjectEvent is the data payload of a storage object finalize CloudEvent.
type StorageObjectEvent struct {
	Bucket      string            `json:"bucket"`
	Name        string            `json:"name"`
	ContentType string            `json:"contentType"`
	Size        string            `json:"size"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// ViewerPlanRequest is the input for the viewer-plan function. Either DocumentID or FileURL
// must be set; explicit fields override what is stored on the document.
type ViewerPlanRequest struct {
	DocumentID   string `json:"documentId,omitempty"`
	FileURL      string `json:"fileUrl,omitempty"`
	FileType     string `json:"fileType,omitempty"`
	Title        string `json:"title,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// BackfillRequest is the input for the thumbnail-backfill function.
type BackfillRequest struct {
	Limit       int `json:"limit,omitempty"`
	Concurrency int `json:"concurrency,omitempty"`
}

// BackfillResponse summarizes one backfill run.
type BackfillResponse struct {
	Status    string   `json:"status"`
	Attempted int      `json:"attempted"`
	Succeeded int      `json:"succeeded"`
	Failed    []string `json:"failed,omitempty"`
}
