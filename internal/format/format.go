// Package format maps a declared MIME type and file name to the renderer variant used for
// previews and thumbnails.
package format

import (
	"path"
	"strings"
)

// Variant is the closed set of renderer variants.
type Variant int

const (
	Unsupported Variant = iota
	InlineDocument
	Image
	OfficeDocument
	Video
	Audio
)

func (v Variant) String() string {
	switch v {
	case InlineDocument:
		return "inline-document"
	case Image:
		return "image"
	case OfficeDocument:
		return "office-document"
	case Video:
		return "video"
	case Audio:
		return "audio"
	default:
		return "unsupported"
	}
}

// Variants lists every member of the closed set.
func Variants() []Variant {
	return []Variant{Unsupported, InlineDocument, Image, OfficeDocument, Video, Audio}
}

var mimeTypes = map[string]Variant{
	"application/pdf": InlineDocument,

	"application/msword":            OfficeDocument,
	"application/vnd.ms-excel":      OfficeDocument,
	"application/vnd.ms-powerpoint": OfficeDocument,
	"application/rtf":               OfficeDocument,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   OfficeDocument,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         OfficeDocument,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": OfficeDocument,
	"application/vnd.oasis.opendocument.text":                                   OfficeDocument,
	"application/vnd.oasis.opendocument.spreadsheet":                            OfficeDocument,
	"application/vnd.oasis.opendocument.presentation":                           OfficeDocument,

	"image/jpeg":    Image,
	"image/png":     Image,
	"image/gif":     Image,
	"image/webp":    Image,
	"image/bmp":     Image,
	"image/svg+xml": Image,
	"image/tiff":    Image,

	"video/mp4":       Video,
	"video/webm":      Video,
	"video/ogg":       Video,
	"video/quicktime": Video,

	"audio/mpeg": Audio,
	"audio/wav":  Audio,
	"audio/ogg":  Audio,
	"audio/webm": Audio,
	"audio/aac":  Audio,
	"audio/flac": Audio,
}

// subtypeTokens covers vendor and legacy MIME types by their subtype.
var subtypeTokens = []struct {
	token   string
	variant Variant
}{
	{"pdf", InlineDocument},
	{"officedocument", OfficeDocument},
	{"opendocument", OfficeDocument},
	{"msword", OfficeDocument},
	{"ms-excel", OfficeDocument},
	{"ms-powerpoint", OfficeDocument},
	{"word", OfficeDocument},
	{"excel", OfficeDocument},
	{"powerpoint", OfficeDocument},
}

var extensions = map[string]Variant{
	".pdf": InlineDocument,

	".doc": OfficeDocument, ".docx": OfficeDocument, ".odt": OfficeDocument, ".rtf": OfficeDocument,
	".xls": OfficeDocument, ".xlsx": OfficeDocument, ".ods": OfficeDocument,
	".ppt": OfficeDocument, ".pptx": OfficeDocument, ".odp": OfficeDocument,

	".jpg": Image, ".jpeg": Image, ".png": Image, ".gif": Image, ".webp": Image,
	".bmp": Image, ".svg": Image, ".tif": Image, ".tiff": Image,

	".mp4": Video, ".webm": Video, ".ogv": Video, ".mov": Video, ".m4v": Video,

	".mp3": Audio, ".wav": Audio, ".ogg": Audio, ".oga": Audio, ".m4a": Audio, ".aac": Audio, ".flac": Audio,
}

// Classify picks the renderer variant for a file. A recognized MIME type always wins; an
// unrecognized one is matched by its top-level type or subtype tokens, and only then is the
// file name's extension consulted. Anything left is Unsupported.
func Classify(mimeType, filename string) Variant {
	mt := normalizeMIME(mimeType)
	if v, ok := mimeTypes[mt]; ok {
		return v
	}
	if v, ok := classifySubtype(mt); ok {
		return v
	}
	return ClassifyExtension(filename)
}

// ClassifyExtension classifies by file extension alone.
func ClassifyExtension(filename string) Variant {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if v, ok := extensions[ext]; ok {
		return v
	}
	return Unsupported
}

// IsText reports whether the file is plain text by MIME type or extension.
func IsText(mimeType, filename string) bool {
	mt := normalizeMIME(mimeType)
	if mt == "text/plain" || mt == "text/markdown" || mt == "text/csv" {
		return true
	}
	switch strings.ToLower(path.Ext(filename)) {
	case ".txt", ".md", ".csv", ".log":
		return true
	}
	return false
}

func normalizeMIME(mimeType string) string {
	mt := strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mt, ';'); i >= 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}

func classifySubtype(mt string) (Variant, bool) {
	top, sub, ok := strings.Cut(mt, "/")
	if !ok || sub == "" {
		return Unsupported, false
	}
	switch top {
	case "image":
		return Image, true
	case "video":
		return Video, true
	case "audio":
		return Audio, true
	}
	for _, t := range subtypeTokens {
		if strings.Contains(sub, t.token) {
			return t.variant, true
		}
	}
	return Unsupported, false
}

// canonicalExtensions maps MIME types to the extension converters expect on disk.
var canonicalExtensions = map[string]string{
	"application/pdf":               ".pdf",
	"application/msword":            ".doc",
	"application/rtf":               ".rtf",
	"application/vnd.ms-excel":      ".xls",
	"application/vnd.ms-powerpoint": ".ppt",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         ".xlsx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"application/vnd.oasis.opendocument.text":                                   ".odt",
	"application/vnd.oasis.opendocument.spreadsheet":                            ".ods",
	"application/vnd.oasis.opendocument.presentation":                           ".odp",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/bmp":       ".bmp",
	"image/svg+xml":   ".svg",
	"image/tiff":      ".tiff",
	"video/mp4":       ".mp4",
	"video/webm":      ".webm",
	"video/ogg":       ".ogv",
	"video/quicktime": ".mov",
	"text/plain":      ".txt",
	"text/markdown":   ".md",
	"text/csv":        ".csv",
}

// InputExtension returns the extension a source file should carry on disk. A recognized
// extension on filename is kept; otherwise the MIME type supplies one. The result is
// lowercase and empty only when neither input identifies the format.
func InputExtension(mimeType, filename string) string {
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	if _, ok := extensions[ext]; ok {
		return ext
	}
	if IsText("", filename) {
		return ext
	}
	if canonical, ok := canonicalExtensions[normalizeMIME(mimeType)]; ok {
		return canonical
	}
	return ext
}
