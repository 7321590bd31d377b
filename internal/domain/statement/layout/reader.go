package layout

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document wraps an open PDF statement. Callers must Close it.
type Document struct {
	path   string
	file   *os.File
	reader *pdf.Reader
}

// OpenDocument opens the statement PDF at path.
func OpenDocument(path string) (*Document, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	return &Document{path: path, file: f, reader: r}, nil
}

func (d *Document) Close() error {
	return d.file.Close()
}

// Path returns the file the document was opened from.
func (d *Document) Path() string { return d.path }

// PageCount returns the number of pages in the document.
func (d *Document) PageCount() int { return d.reader.NumPage() }

// Tokens reads the positioned text fragments of every page selected by pages.
// An empty result is valid: it means the selected pages carry no text layer.
func (d *Document) Tokens(pages PageRange) ([]Token, error) {
	total := d.reader.NumPage()
	var tokens []Token
	for n := 1; n <= total; n++ {
		if !pages.Contains(n, total) {
			continue
		}
		page := d.reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		content := page.Content()
		for _, t := range content.Text {
			s := strings.TrimRight(t.S, "\n")
			if strings.TrimSpace(s) == "" {
				continue
			}
			tokens = append(tokens, Token{
				Text:     s,
				Page:     n,
				X:        t.X,
				Y:        t.Y,
				W:        t.W,
				FontSize: t.FontSize,
			})
		}
	}
	return tokens, nil
}

// PlainText concatenates the plain text of the selected pages, one page per
// chunk. Used by the semantic extraction path, which works on running text
// rather than positioned tokens.
func (d *Document) PlainText(pages PageRange) (string, error) {
	total := d.reader.NumPage()
	var sb strings.Builder
	for n := 1; n <= total; n++ {
		if !pages.Contains(n, total) {
			continue
		}
		page := d.reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read text of page %d: %w", n, err)
		}
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// PageRange selects a subset of pages. The zero value selects every page.
type PageRange struct {
	spans []pageSpan
}

type pageSpan struct {
	from, to int // 1-based inclusive; to == 0 means "until the last page"
}

// ParsePageRange parses specs like "6", "6-7", "2-", "1,3,6-7". The empty
// string selects all pages.
func ParsePageRange(spec string) (PageRange, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return PageRange{}, nil
	}

	var pr PageRange
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to := part, ""
		if idx := strings.Index(part, "-"); idx >= 0 {
			from, to = strings.TrimSpace(part[:idx]), strings.TrimSpace(part[idx+1:])
		} else {
			to = from
		}

		start, err := strconv.Atoi(from)
		if err != nil || start < 1 {
			return PageRange{}, fmt.Errorf("invalid page range %q", spec)
		}
		end := 0
		if to != "" {
			end, err = strconv.Atoi(to)
			if err != nil || end < start {
				return PageRange{}, fmt.Errorf("invalid page range %q", spec)
			}
		}
		pr.spans = append(pr.spans, pageSpan{from: start, to: end})
	}
	return pr, nil
}

// Contains reports whether page n (1-based, of total pages) is selected.
func (pr PageRange) Contains(n, total int) bool {
	if len(pr.spans) == 0 {
		return n >= 1 && n <= total
	}
	for _, s := range pr.spans {
		to := s.to
		if to == 0 {
			to = total
		}
		if n >= s.from && n <= to {
			return true
		}
	}
	return false
}

// IsAll reports whether the range selects every page.
func (pr PageRange) IsAll() bool { return len(pr.spans) == 0 }

// String renders the range back into spec form, for logs and error reports.
func (pr PageRange) String() string {
	if len(pr.spans) == 0 {
		return "all"
	}
	parts := make([]string, 0, len(pr.spans))
	for _, s := range pr.spans {
		switch {
		case s.to == 0:
			parts = append(parts, fmt.Sprintf("%d-", s.from))
		case s.to == s.from:
			parts = append(parts, strconv.Itoa(s.from))
		default:
			parts = append(parts, fmt.Sprintf("%d-%d", s.from, s.to))
		}
	}
	return strings.Join(parts, ",")
}
