package conversion

import (
	"path"
	"strings"
)

const (
	// InputExtension is the only accepted input type.
	InputExtension = ".pdf"
	// ConvertedMarker is appended to the base name of every output file.
	ConvertedMarker = "-cmyk"
	// PDFContentType is bound into upload URLs and set on published output.
	PDFContentType = "application/pdf"

	tokenLength    = 8
	tokenSeparator = "_"
)

// IsConvertedName reports whether name looks like our own output. Such names
// are never reprocessed, which breaks loops when output and input share an
// event source.
func IsConvertedName(name string) bool {
	return strings.HasSuffix(name, ConvertedMarker+InputExtension) ||
		strings.Contains(name, ConvertedMarker+".")
}

// HasInputExtension reports whether name carries the accepted input extension.
func HasInputExtension(name string) bool {
	return strings.HasSuffix(name, InputExtension)
}

// ConvertedName derives the output object name: same base, marker, same extension.
func ConvertedName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + ConvertedMarker + ext
}

// StorageName prefixes original with a collision-resistant token.
func StorageName(token, original string) string {
	return token + tokenSeparator + original
}

// SourceName recovers the client-supplied name from a StorageName result.
func SourceName(storageName string) (string, bool) {
	token, original, ok := strings.Cut(storageName, tokenSeparator)
	if !ok || original == "" || len(token) != tokenLength {
		return "", false
	}
	for _, r := range token {
		if !strings.ContainsRune("0123456789abcdef", r) {
			return "", false
		}
	}
	return original, true
}
