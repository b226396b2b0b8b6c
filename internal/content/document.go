package content

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html/charset"

	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/document"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/domain/history"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/resources"
	"github.com/GriffinCanCode/AgentOS/constellation/internal/shared/id"
)

var titlePolicy = bluemonday.StrictPolicy()

// Document is one pipeline hosted by a content thread
type Document struct {
	Pipeline        id.PipelineID
	BrowsingContext id.BrowsingContextID
	TopLevel        id.TopLevelBrowsingContextID
	Parent          *id.PipelineID
	Generation      history.Generation
	LoadID          id.LoadID

	// URL is the address the document answers to; Title may be rewritten by scripts
	URL   string
	Title string

	Active bool
}

// parsed is what a content thread extracts from a fetched document
type parsed struct {
	title   string
	frames  []string
	scripts []string
}

// parse extracts the title, resolved iframe sources and inline scripts.
// base resolves relative frame sources.
func parse(resp *resources.Response, base string) (*parsed, error) {
	var body io.Reader = bytes.NewReader(resp.Body)
	if resp.Charset != "" && !strings.EqualFold(resp.Charset, "utf-8") {
		decoded, err := charset.NewReaderLabel(resp.Charset, body)
		if err == nil {
			body = decoded
		}
	}

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}

	out := &parsed{title: cleanTitle(doc.Find("title").First().Text())}

	doc.Find("iframe[src]").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		if strings.TrimSpace(src) == "" {
			return
		}
		resolved, err := document.Resolve(base, src)
		if err != nil {
			return
		}
		out.frames = append(out.frames, resolved)
	})

	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, external := s.Attr("src"); external {
			return
		}
		if typ, ok := s.Attr("type"); ok && !isJavaScript(typ) {
			return
		}
		if src := s.Text(); strings.TrimSpace(src) != "" {
			out.scripts = append(out.scripts, src)
		}
	})

	return out, nil
}

// cleanTitle strips markup and collapses whitespace
func cleanTitle(raw string) string {
	text := html.UnescapeString(titlePolicy.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

func isJavaScript(typ string) bool {
	switch strings.ToLower(strings.TrimSpace(typ)) {
	case "", "text/javascript", "application/javascript":
		return true
	}
	return false
}
