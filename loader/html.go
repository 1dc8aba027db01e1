package loader

import (
	"bytes"
	"fmt"
	"mime"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/liuxd6825/smresolve/srcmap"
)

// ScriptURLs returns the absolute urls of the external scripts of the html
// page located at pageURL, in document order and without duplicates.
// contentType is the Content-Type the page was served with, if known, and is
// used to detect its encoding.
func ScriptURLs(pageURL string, page []byte, contentType string) ([]string, error) {
	r, err := charset.NewReader(bytes.NewReader(page), contentType)
	if err != nil {
		return nil, fmt.Errorf("couldn't detect the encoding of %s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("couldn't parse %s as html: %w", pageURL, err)
	}

	base := pageURL
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok && strings.TrimSpace(href) != "" {
		base, err = srcmap.ResolveChain(pageURL, strings.TrimSpace(href))
		if err != nil {
			return nil, err
		}
	}

	var urls []string
	seen := make(map[string]struct{})
	doc.Find("script[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if !isScriptType(s.AttrOr("type", "")) {
			return true
		}
		src := strings.TrimSpace(s.AttrOr("src", ""))
		if src == "" || strings.HasPrefix(strings.ToLower(src), "data:") {
			return true
		}
		var u string
		u, err = srcmap.ResolveChain(base, src)
		if err != nil {
			return false
		}
		if _, ok := seen[u]; !ok {
			seen[u] = struct{}{}
			urls = append(urls, u)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	return urls, nil
}

// isScriptType checks the type attribute of a script element, only
// JavaScript has source maps.
func isScriptType(typ string) bool {
	typ = strings.TrimSpace(typ)
	if typ == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(typ)
	if err != nil {
		return false
	}
	switch mediaType {
	case "module", "text/javascript", "application/javascript", "text/ecmascript",
		"application/ecmascript", "application/x-javascript", "text/jsx":
		return true
	default:
		return false
	}
}
