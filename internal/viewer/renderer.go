// Package viewer decides how an uploaded file is displayed and escalates through fallback
// renderers until something usable is on screen.
package viewer

import (
	"net/url"
	"path"
	"strings"

	"github.com/Lllllllleong/documentpreview/internal/format"
)

// Target is everything a viewer is given about the file it shows.
type Target struct {
	FileURL      string `json:"fileUrl"`
	FileType     string `json:"fileType"`
	Title        string `json:"title"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
}

// Renderer is one concrete way of putting a file on screen.
type Renderer int

const (
	DirectPDF Renderer = iota + 1
	GoogleDocsViewer
	OfficeOnlineViewer
	ImageElement
	VideoElement
	AudioElement
)

func (r Renderer) String() string {
	switch r {
	case DirectPDF:
		return "direct-pdf"
	case GoogleDocsViewer:
		return "google-docs-viewer"
	case OfficeOnlineViewer:
		return "office-online-viewer"
	case ImageElement:
		return "image-element"
	case VideoElement:
		return "video-element"
	case AudioElement:
		return "audio-element"
	default:
		return "none"
	}
}

// MarshalText lets renderers appear by name in JSON plans.
func (r Renderer) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Paginated reports whether the renderer exposes page, zoom and rotation controls.
func (r Renderer) Paginated() bool {
	return r == DirectPDF
}

// URL returns what the renderer loads for fileURL: the file itself, or an embed viewer
// pointed at it.
func (r Renderer) URL(fileURL string) string {
	switch r {
	case GoogleDocsViewer:
		return "https://docs.google.com/gview?url=" + escape(fileURL) + "&embedded=true"
	case OfficeOnlineViewer:
		return "https://view.officeapps.live.com/op/embed.aspx?src=" + escape(fileURL)
	default:
		return fileURL
	}
}

func escape(fileURL string) string {
	return url.QueryEscape(fileURL)
}

var chains = map[format.Variant][]Renderer{
	format.InlineDocument: {DirectPDF, GoogleDocsViewer},
	format.OfficeDocument: {OfficeOnlineViewer, GoogleDocsViewer},
	format.Image:          {ImageElement},
	format.Video:          {VideoElement},
	format.Audio:          {AudioElement},
	format.Unsupported:    nil,
}

// Chain returns the escalation order for a variant. Chains never repeat a renderer and an
// empty chain means the file goes straight to the download state.
func Chain(v format.Variant) []Renderer {
	c := chains[v]
	out := make([]Renderer, len(c))
	copy(out, c)
	return out
}

// Classify picks the variant for a target. The declared type wins; the file name in the URL
// and then the title are used as extension hints.
func Classify(t Target) format.Variant {
	return format.Classify(t.FileType, filenameHint(t))
}

func filenameHint(t Target) string {
	if u, err := url.Parse(t.FileURL); err == nil {
		if base := path.Base(u.Path); path.Ext(base) != "" {
			return base
		}
	}
	return strings.TrimSpace(t.Title)
}
