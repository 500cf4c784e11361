// Package pdfutil handles the PDF-level concerns of ingestion: text
// extraction, content hashing, and metadata keyword harvesting.
package pdfutil

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

// pageBreakMarker separates pages in extracted text so downstream
// extraction can see document structure
const pageBreakMarker = "\n\n---- Page Break ----\n\n"

// ComputeHash returns the SHA-256 hex digest of the file content. This is
// the deduplication key for reports.
func ComputeHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// ExtractText pulls the plain text out of a PDF, page by page. Downloaded
// files are untrusted input; parser panics are converted to errors.
func ExtractText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to extract text from PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			// A single bad page should not lose the document
			continue
		}
		sb.WriteString(pageText)
		sb.WriteString(pageBreakMarker)
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("no extractable text in PDF")
	}
	return sb.String(), nil
}

// MetadataKeywords harvests keywords from the PDF Info dictionary. Keyword
// strings can be comma or semicolon separated; errors just mean no
// keywords, never a failed document.
func MetadataKeywords(data []byte) (keywords []string) {
	defer func() {
		if r := recover(); r != nil {
			keywords = nil
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil
	}

	info := reader.Trailer().Key("Info")
	if info.IsNull() {
		return nil
	}

	for _, key := range []string{"Keywords", "Subject"} {
		value := info.Key(key)
		if value.IsNull() {
			continue
		}
		keywords = append(keywords, SplitKeywordString(value.Text())...)
	}

	return keywords
}

// SplitKeywordString breaks a metadata keyword string on the first
// separator it finds; an unseparated string is a single keyword
func SplitKeywordString(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	for _, sep := range []string{",", ";"} {
		if strings.Contains(s, sep) {
			var parts []string
			for _, kw := range strings.Split(s, sep) {
				if kw = strings.TrimSpace(kw); kw != "" {
					parts = append(parts, kw)
				}
			}
			return parts
		}
	}
	return []string{s}
}

// ProcessKeywords merges PDF metadata keywords with AI-extracted keywords,
// normalizing to lowercase and deduplicating while preserving order
func ProcessKeywords(pdfKeywords, aiKeywords []string) []string {
	seen := make(map[string]bool)
	var unique []string

	for _, kw := range append(append([]string{}, pdfKeywords...), aiKeywords...) {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		unique = append(unique, kw)
	}

	return unique
}
