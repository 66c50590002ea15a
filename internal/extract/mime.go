package extract

import (
	"net/http"
	"path/filepath"
	"strings"
)

var extensionTypes = map[string]string{
	".pdf":  "application/pdf",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".heic": "image/heic",
	".txt":  "text/plain",
}

// DetectMIME sniffs the document type, falling back to the file extension
// when the content is not recognized.
func DetectMIME(name string, data []byte) string {
	sniffed := http.DetectContentType(data)
	if base, _, _ := strings.Cut(sniffed, ";"); base != "application/octet-stream" && base != "text/plain" {
		return base
	}

	if typ, ok := extensionTypes[strings.ToLower(filepath.Ext(name))]; ok {
		return typ
	}

	base, _, _ := strings.Cut(sniffed, ";")
	return base
}
