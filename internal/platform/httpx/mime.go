package httpx

import (
	"log/slog"
	"mime"
	"path"
)

const defaultContentType = "application/octet-stream"

func init() {
	ensureMimeType(".csv", "text/csv; charset=utf-8")
	ensureMimeType(".pdf", "application/pdf")
}

func ensureMimeType(ext, typ string) {
	if mime.TypeByExtension(ext) != "" {
		return
	}
	if err := mime.AddExtensionType(ext, typ); err != nil {
		slog.Default().Warn("httpx: register mime type", slog.String("ext", ext), slog.Any("error", err))
	}
}

// contentTypeFor resolves the content type of a download from its extension.
func contentTypeFor(filename string) string {
	if typ := mime.TypeByExtension(path.Ext(filename)); typ != "" {
		return typ
	}
	return defaultContentType
}
