// Package publisher exports finished documents as Markdown and HTML files.
package publisher

import (
	"bytes"
	"errors"
	"fmt"
	"html"
	"log"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// ExportParams describes the document to be exported.
type ExportParams struct {
	Name     string // file base name, usually the document name
	Title    string
	Markdown string
	Digest   string
	// Inline converts headings and lists to styled paragraphs for pasting
	// into editors that drop those tags.
	Inline bool
}

// Result lists the files written by Export.
type Result struct {
	MarkdownPath string `json:"markdownPath"`
	HTMLPath     string `json:"htmlPath"`
	Digest       string `json:"digest"`
}

// Publisher writes exports below a directory of an afero filesystem.
type Publisher struct {
	fs      afero.Fs
	dir     string
	md      goldmark.Markdown
	verbose bool
	logger  *log.Logger
}

// New creates a Publisher writing into dir.
func New(fs afero.Fs, dir string, verbose bool, logger *log.Logger) *Publisher {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{
		fs:      fs,
		dir:     dir,
		md:      goldmark.New(goldmark.WithExtensions(extension.GFM)),
		verbose: verbose,
		logger:  logger,
	}
}

func (p *Publisher) infof(format string, args ...interface{}) {
	if !p.verbose {
		return
	}
	p.logger.Printf("[INFO] "+format, args...)
}

// Export converts Markdown to a standalone HTML page and writes both files.
func (p *Publisher) Export(params ExportParams) (Result, error) {
	if strings.TrimSpace(params.Markdown) == "" {
		return Result{}, errors.New("document has no content to export")
	}
	base := fileName(params.Name)
	if base == "" {
		base = fileName(params.Title)
	}
	if base == "" {
		return Result{}, errors.New("export name is required")
	}

	finalDigest := params.Digest
	if finalDigest == "" {
		finalDigest = defaultDigest(params.Markdown, 120)
	}

	body, err := p.ToHTML(params.Markdown)
	if err != nil {
		return Result{}, err
	}
	p.infof("Converted Markdown to HTML")
	if params.Inline {
		body = normalizeForPaste(body)
		p.infof("Inlined heading and list styles")
	}

	if err := p.fs.MkdirAll(p.dir, 0o755); err != nil {
		return Result{}, fmt.Errorf("creating export dir: %w", err)
	}
	res := Result{
		MarkdownPath: filepath.Join(p.dir, base+".md"),
		HTMLPath:     filepath.Join(p.dir, base+".html"),
		Digest:       finalDigest,
	}
	if err := afero.WriteFile(p.fs, res.MarkdownPath, []byte(params.Markdown), 0o644); err != nil {
		return Result{}, fmt.Errorf("writing markdown: %w", err)
	}
	page := renderPage(params.Title, finalDigest, body)
	if err := afero.WriteFile(p.fs, res.HTMLPath, []byte(page), 0o644); err != nil {
		return Result{}, fmt.Errorf("writing html: %w", err)
	}
	p.infof("Exported %s -> %s", base, res.HTMLPath)
	return res, nil
}

// ToHTML renders Markdown (GFM) to an HTML fragment.
func (p *Publisher) ToHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := p.md.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderPage(title, digest, body string) string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n")
	fmt.Fprintf(&b, "<title>%s</title>\n", html.EscapeString(title))
	fmt.Fprintf(&b, "<meta name=\"description\" content=\"%s\">\n", html.EscapeString(digest))
	b.WriteString("</head>\n<body>\n")
	b.WriteString(body)
	b.WriteString("</body>\n</html>\n")
	return b.String()
}

var unsafeNameRe = regexp.MustCompile(`[\\/:*?"<>|\x00-\x1f]+`)

func fileName(name string) string {
	name = unsafeNameRe.ReplaceAllString(strings.TrimSpace(name), "_")
	return strings.Trim(name, ". ")
}

var (
	olRe = regexp.MustCompile(`(?s)<ol[^>]*>(.*?)</ol>`)
	ulRe = regexp.MustCompile(`(?s)<ul[^>]*>(.*?)</ul>`)
	liRe = regexp.MustCompile(`(?s)<li[^>]*>(.*?)</li>`)
	hRe  = regexp.MustCompile(`(?s)<h([1-6])[^>]*>(.*?)</h[1-6]>`)
)

// 部分富文本编辑器会弱化列表和标题标签，导致有序列表合并、标题样式丢失。
// 这里把列表展开、把标题转成带字号的段落，让粘贴后的排版更稳定。
func flattenLists(html string) string {
	html = olRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for i, item := range items {
			fmt.Fprintf(&b, "<p>%d. %s</p>", i+1, strings.TrimSpace(item[1]))
		}
		return b.String()
	})

	return ulRe.ReplaceAllStringFunc(html, func(block string) string {
		items := liRe.FindAllStringSubmatch(block, -1)
		if len(items) == 0 {
			return block
		}
		var b strings.Builder
		for _, item := range items {
			fmt.Fprintf(&b, "<p>• %s</p>", strings.TrimSpace(item[1]))
		}
		return b.String()
	})
}

var headingSizes = map[string]string{
	"1": "24px",
	"2": "22px",
	"3": "20px",
	"4": "18px",
	"5": "16px",
	"6": "15px",
}

func convertHeadings(html string) string {
	return hRe.ReplaceAllStringFunc(html, func(block string) string {
		parts := hRe.FindStringSubmatch(block)
		if len(parts) != 3 {
			return block
		}
		return fmt.Sprintf(`<p style="font-size:%s;font-weight:700;margin:1em 0 0.6em;">%s</p>`,
			headingSizes[parts[1]], strings.TrimSpace(parts[2]))
	})
}

func normalizeForPaste(html string) string {
	return flattenLists(convertHeadings(html))
}

func defaultDigest(md string, limit int) string {
	var kept []string
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "#") {
			continue
		}
		kept = append(kept, line)
	}
	joined := strings.Join(strings.Fields(strings.Join(kept, " ")), " ")
	if utf8.RuneCountInString(joined) <= limit {
		return joined
	}
	return string([]rune(joined)[:limit])
}
