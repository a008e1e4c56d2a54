package scan

import (
	"path/filepath"
	"strings"
)

// ExtensionPolicy is the default FilePolicy: it attempts plain-text-like
// extensions, marks PDFs for OCR fallback, and skips everything else.
type ExtensionPolicy struct {
	Attempt []string
	OCR     []string
}

// DefaultExtensionPolicy covers the formats the bundled text Processor can
// actually read.
func DefaultExtensionPolicy() ExtensionPolicy {
	return ExtensionPolicy{
		Attempt: []string{".txt", ".md", ".csv", ".log", ".json"},
		OCR:     []string{".pdf"},
	}
}

var _ FilePolicy = ExtensionPolicy{}

func (p ExtensionPolicy) Decide(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	for _, a := range p.Attempt {
		if ext == a {
			return policyAttempt
		}
	}
	for _, o := range p.OCR {
		if ext == o {
			return policyOCR
		}
	}
	return policySkip
}
