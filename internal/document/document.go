package document

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spigell/cv-matcher/internal/talent"
)

const (
	ExtPDF  = ".pdf"
	ExtDOCX = ".docx"
)

// Supported reports whether Convert accepts the extension.
func Supported(ext string) bool {
	switch normalizeExt(ext) {
	case ExtPDF, ExtDOCX:
		return true
	}
	return false
}

// Convert extracts plain text from a document. Only PDF and DOCX are accepted;
// anything else fails with talent.ErrUnsupportedFormat.
func Convert(data []byte, ext string) (string, error) {
	var (
		text string
		err  error
	)

	switch normalizeExt(ext) {
	case ExtPDF:
		text, err = pdfText(data)
	case ExtDOCX:
		text, err = docxText(data)
	default:
		return "", fmt.Errorf("%w: %q", talent.ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return "", err
	}

	return Clean(text), nil
}

// ConvertFile reads path and converts it based on its extension.
func ConvertFile(path string) (string, error) {
	ext := filepath.Ext(path)
	if !Supported(ext) {
		return "", fmt.Errorf("%w: %s", talent.ErrUnsupportedFormat, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	text, err := Convert(data, ext)
	if err != nil {
		return "", fmt.Errorf("converting %s: %w", path, err)
	}
	return text, nil
}

// Clean trims every line and drops blank ones.
func Clean(text string) string {
	lines := strings.Split(text, "\n")
	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			cleaned = append(cleaned, line)
		}
	}
	return strings.Join(cleaned, "\n")
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
