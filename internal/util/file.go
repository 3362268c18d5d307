package util

import (
	"errors"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
)

// ValidateMimeType sniffs the first 512 bytes and checks them against
// allowedTypes (prefixes such as "image/" or full types).
func ValidateMimeType(reader io.Reader, allowedTypes []string) (string, error) {
	buffer := make([]byte, 512)
	n, err := reader.Read(buffer)
	if err != nil && err != io.EOF {
		return "", err
	}

	mimeType := http.DetectContentType(buffer[:n])

	for _, allowed := range allowedTypes {
		if strings.HasPrefix(mimeType, allowed) || mimeType == allowed {
			return mimeType, nil
		}
	}

	return mimeType, errors.New("invalid file type: " + mimeType)
}

func IsImage(mimeType string) bool {
	return strings.HasPrefix(mimeType, "image/")
}

func IsVideo(mimeType string) bool {
	return strings.HasPrefix(mimeType, "video/") || mimeType == "application/x-mpegURL"
}

// FileExt returns the lower-cased extension including the dot.
func FileExt(name string) string {
	return strings.ToLower(filepath.Ext(name))
}

// ExtensionAllowed reports whether name's extension is in allowed (case-insensitive).
func ExtensionAllowed(name string, allowed []string) bool {
	ext := FileExt(name)
	if ext == "" {
		return false
	}
	for _, a := range allowed {
		if strings.EqualFold(ext, a) {
			return true
		}
	}
	return false
}

// BaseName reduces a requested file name to its final path element, treating
// both slash styles as separators. "", "." and ".." come back as "".
func BaseName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(path.Clean("/" + name))
	if base == "/" || base == "." || base == ".." {
		return ""
	}
	return base
}

// SanitizeDownloadName canonicalizes name to its base name and requires it to
// carry exactly the one permitted extension.
func SanitizeDownloadName(name, extension string) (string, error) {
	base := BaseName(name)
	if base == "" {
		return "", Validationf("file name is required")
	}
	if strings.Count(base, ".") != 1 || !strings.EqualFold(filepath.Ext(base), extension) {
		return "", Validationf("only %s files can be downloaded", extension)
	}
	if strings.HasPrefix(base, ".") {
		return "", Validationf("invalid file name")
	}
	return base, nil
}
