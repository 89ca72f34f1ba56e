// Package extract converts uploaded files into plain text for ingestion.
// Supported formats: PDF, DOCX, XLSX, and plain text (.txt, .md). An
// unsupported extension is a hard failure surfaced before any chunking or
// embedding happens, so a rejected file never partially ingests.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// Text extracts the plain text content of the file at path, dispatching on
// the file extension.
func Text(path string) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return pdfText(path)
	case ".docx":
		return docxText(path)
	case ".xlsx":
		return xlsxText(path)
	case ".txt", ".md":
		return plainText(path)
	default:
		return "", fmt.Errorf("extract: unsupported file type %q", filepath.Ext(path))
	}
}

// Supported reports whether the file at path has an extractable extension.
func Supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".docx", ".xlsx", ".txt", ".md":
		return true
	default:
		return false
	}
}

// pdfText concatenates the plain text of every page.
func pdfText(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("extract: open %s: %w", path, err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("extract: stat %s: %w", path, err)
	}

	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", fmt.Errorf("extract: parse pdf %s: %w", path, err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("extract: pdf %s page %d: %w", path, i, err)
		}
		b.WriteString(text)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// docxText returns the document body with XML markup stripped to paragraphs.
func docxText(path string) (string, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("extract: parse docx %s: %w", path, err)
	}
	defer r.Close()

	content := r.Editable().GetContent()

	var b strings.Builder
	for _, para := range strings.Split(content, "\n") {
		para = stripTags(para)
		if strings.TrimSpace(para) == "" {
			continue
		}
		b.WriteString(para)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// xlsxText flattens every sheet into tab-separated rows headed by the sheet
// name.
func xlsxText(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("extract: parse xlsx %s: %w", path, err)
	}
	defer f.Close()

	var b strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("extract: xlsx %s sheet %s: %w", path, sheet, err)
		}
		b.WriteString("Sheet: " + sheet + "\n")
		for _, row := range rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}

// plainText reads the file as UTF-8 text.
func plainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("extract: read %s: %w", path, err)
	}
	return string(data), nil
}

// stripTags removes anything between angle brackets. The docx body arrives
// as raw document XML; dropping the tags leaves the run text.
func stripTags(s string) string {
	var b strings.Builder
	depth := 0
	for _, r := range s {
		switch {
		case r == '<':
			depth++
		case r == '>':
			if depth > 0 {
				depth--
			}
		case depth == 0:
			b.WriteRune(r)
		}
	}
	return b.String()
}
