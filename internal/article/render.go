package article

import (
	"bytes"
	"fmt"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/seenimoa/finpress/pkg/models"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// Render converts rec.Content in place to format. Template articles are
// markdown and model-written ones are HTML; the native format and records
// already in the target format are left alone.
func Render(rec *models.ArticleRecord, format string) error {
	if rec == nil || rec.GeneratedBy == models.GeneratedByError {
		return nil
	}
	native := FormatHTML
	if rec.GeneratedBy == models.GeneratedByTemplate {
		native = FormatMarkdown
	}

	switch format {
	case FormatNative, native:
		return nil
	case FormatHTML:
		html, err := MarkdownToHTML(rec.Content)
		if err != nil {
			return err
		}
		rec.Content = html
	case FormatMarkdown:
		text, err := HTMLToMarkdown(rec.Content)
		if err != nil {
			return err
		}
		rec.Content = text
	default:
		return fmt.Errorf("article: unknown output format %q", format)
	}
	return nil
}

// MarkdownToHTML renders GitHub-flavoured markdown.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("article: markdown to html: %w", err)
	}
	return buf.String(), nil
}

// HTMLToMarkdown converts model HTML into markdown.
func HTMLToMarkdown(html string) (string, error) {
	out, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("article: html to markdown: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// PlainText strips markup from an article body, for previews and logs.
func PlainText(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return content
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
