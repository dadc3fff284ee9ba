// Package htmlfile implements translation extraction and substitution for
// HTML documents, email templates included.
//
// Extraction walks a fixed set of text-bearing tags plus the alt, title,
// and placeholder attributes; each string is keyed by the first 12 hex
// characters of the MD5 of its text. Writing re-parses the original
// document, substitutes translated text at each matched position, and then
// restores the original file's formatting quirks: DOCTYPE, the verbatim
// <html> root tag, meta charset casing, &nbsp; entities, and
// conditional-comment/VML markup that parsing may have escaped.
package htmlfile

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/algebras-ai/algebras-cli/resource"
)

// textTags are the elements whose direct text content is translatable.
var textTags = map[string]bool{
	"p": true, "span": true, "div": true, "td": true, "th": true,
	"li": true, "a": true, "h1": true, "h2": true, "h3": true,
	"h4": true, "h5": true, "h6": true, "button": true, "label": true,
	"strong": true, "em": true, "b": true, "i": true, "u": true,
	"small": true, "big": true, "caption": true, "title": true,
	"option": true, "textarea": true, "legend": true, "figcaption": true,
	"summary": true, "details": true,
}

// textAttrs are attributes whose values are translatable on any element.
var textAttrs = []string{"alt", "title", "placeholder"}

// Key returns the translation key for a piece of text.
func Key(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:12]
}

// style captures the formatting quirks of the original file.
type style struct {
	raw     []byte
	doctype string // verbatim <!DOCTYPE …> line, "" if none
	rootTag string // verbatim <html …> opening tag, "" if none
	charset string // verbatim charset attribute value, "" if none
	nbsp    bool   // original used &nbsp; entities
}

var (
	doctypeRe     = regexp.MustCompile(`(?i)<!DOCTYPE[^>]*>`)
	rootTagRe     = regexp.MustCompile(`(?i)<html[^>]*>`)
	charsetAttrRe = regexp.MustCompile(`(?i)charset=["']?([A-Za-z0-9_-]+)`)
)

func detectStyle(data []byte) *style {
	s := &style{raw: data}
	text := string(data)
	s.doctype = doctypeRe.FindString(text)
	s.rootTag = rootTagRe.FindString(text)
	if m := charsetAttrRe.FindStringSubmatch(text); m != nil {
		s.charset = m[1]
	}
	s.nbsp = strings.Contains(text, "&nbsp;")
	return s
}

// ---------------------------------------------------------------------------
// Reading
// ---------------------------------------------------------------------------

// Read extracts the translatable strings of an HTML document.
func Read(path string) (*resource.File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, &resource.ParseError{Path: path, Format: "HTML", Err: err}
	}

	m := resource.NewMap()
	walk(doc, func(text string) string {
		if _, ok := m.Get(Key(text)); !ok {
			m.Set(Key(text), text)
		}
		return text
	})
	return &resource.File{Map: m, Original: detectStyle(data)}, nil
}

// walk visits every translatable string in document order and replaces it
// with the visitor's return value. Text nodes keep their surrounding
// whitespace; only the trimmed core is offered for translation.
func walk(doc *goquery.Document, visit func(string) string) {
	var rec func(n *html.Node)
	rec = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for i, attr := range n.Attr {
				for _, name := range textAttrs {
					if attr.Key == name && strings.TrimSpace(attr.Val) != "" {
						n.Attr[i].Val = visit(attr.Val)
					}
				}
			}
		}
		if n.Type == html.TextNode && n.Parent != nil &&
			n.Parent.Type == html.ElementNode && textTags[n.Parent.Data] {
			if core := strings.TrimSpace(n.Data); core != "" {
				leading := n.Data[:strings.Index(n.Data, core[:1])]
				trailing := n.Data[len(leading)+len(core):]
				n.Data = leading + visit(core) + trailing
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			rec(c)
		}
	}
	for _, root := range doc.Nodes {
		rec(root)
	}
}

// ---------------------------------------------------------------------------
// Writing
// ---------------------------------------------------------------------------

// WriteFull re-parses the original document, substitutes every string
// whose key has a value in the map, renders, and normalizes the output to
// the original's formatting style. In-place writing is not supported.
func WriteFull(path string, f *resource.File) error {
	st, ok := f.Original.(*style)
	if !ok {
		return fmt.Errorf("%s: no original document to substitute into", path)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(st.raw))
	if err != nil {
		return fmt.Errorf("re-parsing original document: %w", err)
	}

	walk(doc, func(text string) string {
		if translated, ok := f.Map.GetString(Key(text)); ok && translated != "" {
			return translated
		}
		return text
	})

	var buf bytes.Buffer
	for _, root := range doc.Nodes {
		if err := html.Render(&buf, root); err != nil {
			return fmt.Errorf("rendering document: %w", err)
		}
	}
	out := normalize(buf.String(), st)

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, []byte(out), 0644)
}

var (
	vmlEscapedRe = regexp.MustCompile(`&lt;(/?v:[A-Za-z][^&]*?)&gt;`)
	condOpenRe   = regexp.MustCompile(`&lt;!--(\[if [^\]]*\])&gt;`)
	condCloseRe  = regexp.MustCompile(`&lt;!(\[endif\])--&gt;`)
	charsetFixRe = regexp.MustCompile(`(?i)(charset=["']?)[A-Za-z0-9_-]+`)
	renderRootRe = regexp.MustCompile(`(?i)<html[^>]*>`)
	renderDoctRe = regexp.MustCompile(`(?i)<!DOCTYPE[^>]*>`)
)

// normalize rewrites the rendered output in the original file's style.
func normalize(out string, st *style) string {
	// The renderer emits a lowercase doctype and reorders nothing else on
	// the root; restore both verbatim from the source.
	if st.doctype != "" {
		if renderDoctRe.MatchString(out) {
			out = renderDoctRe.ReplaceAllString(out, st.doctype)
		} else {
			out = st.doctype + "\n" + out
		}
	}
	if st.rootTag != "" {
		out = renderRootRe.ReplaceAllString(out, st.rootTag)
	}
	if st.charset != "" {
		out = charsetFixRe.ReplaceAllString(out, "${1}"+st.charset)
	}
	if st.nbsp {
		out = strings.ReplaceAll(out, "\u00a0", "&nbsp;")
	}
	// Conditional comments and v:-namespaced VML tags that came out
	// entity-escaped go back to markup. Other namespaces stay escaped.
	out = condOpenRe.ReplaceAllString(out, "<!--$1>")
	out = condCloseRe.ReplaceAllString(out, "<!$1-->")
	out = vmlEscapedRe.ReplaceAllString(out, "<$1>")
	return out
}
