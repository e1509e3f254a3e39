package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"ragkit/internal/models"
)

// Parse extracts the text of a file into a Document ready for
// ingestion. Chunking is left to the pipeline's splitter.
func Parse(filePath string) (*models.Document, error) {
	ext := strings.ToLower(filepath.Ext(filePath))

	var content string
	var meta map[string]any
	var err error
	switch ext {
	case ".pdf":
		content, meta, err = parsePDF(filePath)
	case ".docx":
		content, meta, err = parseDOCX(filePath)
	case ".pptx":
		content, meta, err = parsePPTX(filePath)
	case ".xlsx":
		content, meta, err = parseXLSX(filePath)
	case ".ods":
		content, meta, err = parseODS(filePath)
	case ".md", ".markdown":
		content, meta, err = parseMarkdown(filePath)
	case ".txt":
		content, meta, err = parseText(filePath)
	default:
		return nil, fmt.Errorf("%w: unsupported file format %q", models.ErrConfiguration, ext)
	}
	if err != nil {
		return nil, err
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["file_type"] = ext
	meta["title"] = filepath.Base(filePath)

	return &models.Document{
		Content:  content,
		Source:   filePath,
		Metadata: meta,
	}, nil
}

func parsePDF(filePath string) (string, map[string]any, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return "", nil, err
	}
	reader, err := pdf.NewReader(f, stat.Size())
	if err != nil {
		return "", nil, err
	}

	var text strings.Builder
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		pageText, err := reader.Page(i).GetPlainText(nil)
		if err != nil {
			return "", nil, err
		}
		text.WriteString(pageText)
		text.WriteString("\n\n")
	}
	return text.String(), map[string]any{"page_count": numPages}, nil
}

func parseDOCX(filePath string) (string, map[string]any, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()
	return r.Editable().GetContent(), nil, nil
}

func parsePPTX(filePath string) (string, map[string]any, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	var text strings.Builder
	slides := 0
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		text.WriteString(extractTextFromXML(string(data)))
		text.WriteString("\n\n")
		slides++
	}
	return text.String(), map[string]any{"slide_count": slides}, nil
}

func parseXLSX(filePath string) (string, map[string]any, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return "", nil, err
	}

	var text strings.Builder
	for _, sheet := range f.Sheets {
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	return text.String(), map[string]any{"sheet_count": len(f.Sheets)}, nil
}

func parseODS(filePath string) (string, map[string]any, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	var text strings.Builder
	sheets := f.GetSheetList()
	for _, sheetName := range sheets {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		text.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))
		for _, row := range rows {
			text.WriteString(strings.Join(row, "\t"))
			text.WriteString("\n")
		}
		text.WriteString("\n")
	}
	return text.String(), map[string]any{"sheet_count": len(sheets)}, nil
}

var htmlTagRe = regexp.MustCompile(`<[^>]+>`)

// parseMarkdown renders markdown to HTML with goldmark and strips the
// tags, flattening formatting into plain text.
func parseMarkdown(filePath string) (string, map[string]any, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", nil, err
	}

	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var buf bytes.Buffer
	if err := md.Convert(data, &buf); err != nil {
		return "", nil, err
	}
	text := htmlTagRe.ReplaceAllString(buf.String(), " ")
	return strings.TrimSpace(text), nil, nil
}

func parseText(filePath string) (string, map[string]any, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return "", nil, err
	}
	return string(data), nil, nil
}

func extractTextFromXML(xmlContent string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, "<a:t>")
	for i, part := range parts {
		if i == 0 {
			continue
		}
		if endIdx := strings.Index(part, "</a:t>"); endIdx >= 0 {
			text.WriteString(part[:endIdx] + " ")
		}
	}
	return text.String()
}
