package media

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"whatsapp-template-studio/internal/template"
)

// Asset is the binary sample submitted with a media header.
type Asset struct {
	Filename string `json:"filename"`
	MimeType string `json:"mime_type"`
	Size     int    `json:"size"`
	Data     []byte `json:"-"`
}

// NewAsset wraps uploaded bytes. When the client did not send a usable
// content type the bytes are sniffed.
func NewAsset(filename, mimeType string, data []byte) Asset {
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}
	return Asset{
		Filename: filename,
		MimeType: mimeType,
		Size:     len(data),
		Data:     data,
	}
}

func (a Asset) clone() Asset {
	a.Data = append([]byte(nil), a.Data...)
	return a
}

var documentExtensions = []string{".pdf", ".doc", ".docx"}

var documentMimeTypes = []string{
	"application/pdf",
	"application/msword",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Accept is the file-picker filter for a header format.
func Accept(f template.Format) string {
	switch f {
	case template.FormatImage:
		return "image/*"
	case template.FormatVideo:
		return "video/*"
	case template.FormatDocument:
		return strings.Join(documentExtensions, ",")
	default:
		return "*/*"
	}
}

// Accepts reports whether a matches the accept filter for f. Advisory only.
func Accepts(f template.Format, a Asset) bool {
	mimeType := strings.ToLower(a.MimeType)
	switch f {
	case template.FormatImage:
		return strings.HasPrefix(mimeType, "image/")
	case template.FormatVideo:
		return strings.HasPrefix(mimeType, "video/")
	case template.FormatDocument:
		ext := strings.ToLower(filepath.Ext(a.Filename))
		for _, e := range documentExtensions {
			if ext == e {
				return true
			}
		}
		base := strings.TrimSpace(strings.SplitN(mimeType, ";", 2)[0])
		for _, m := range documentMimeTypes {
			if base == m {
				return true
			}
		}
		return false
	default:
		return true
	}
}
