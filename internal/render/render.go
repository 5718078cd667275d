// Package render turns assistant replies written in a small markdown dialect
// into HTML fragments that callers insert verbatim.
//
// Rendering is a fixed pipeline of stages over a node tree. Each stage only
// rewrites plain text nodes, so an href or a bare link's label is never
// matched again by a later stage. Explicit link labels stay text nodes and
// still take emphasis. All escaping happens when the tree is serialized.
package render

import (
	"html"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	docIcon       = "📄 "
	downloadLabel = "📥 Descargar archivo"
	lineBreak     = "<br>"
	anchorAttrs   = ` target="_blank" rel="noopener noreferrer"`

	// trimmed from the end of bare URLs, "see https://x.com." links x.com
	trailingPunct = ".,;:!?"
)

// DefaultFileStorageHosts are the hosts whose URLs are offered as downloads.
var DefaultFileStorageHosts = []string{"storage.googleapis.com"}

var (
	strongPattern       = regexp.MustCompile(`\*\*(.+?)\*\*`)
	emPattern           = regexp.MustCompile(`\*([^*\n]+?)\*`)
	explicitLinkPattern = regexp.MustCompile(`\[([^\[\]]+)\]\((https?://[^\s()<>"]+)\)`)
	bareURLPattern      = regexp.MustCompile(`https?://[^\s<>"'()\[\]]+`)

	// leftovers of link syntax the link stages could not consume, e.g.
	// "[Doc](" before an unterminated link or the legacy "📥 Descargar](".
	orphanOpener = regexp.MustCompile(`(?:\[[^\[\]]*|📥[^\[\]]*)?\]\($`)

	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
)

var headingPrefixes = []struct {
	prefix string
	level  int
}{
	{"### ", 4},
	{"## ", 3},
	{"# ", 2},
}

type kind int

const (
	textNode kind = iota
	breakNode
	headingNode
	strongNode
	emNode
	linkNode
)

// objectMarker stands in for a non-text sibling while emphasis is matched
// over a run of nodes.
const objectMarker = "\uFFFC"

type node struct {
	kind     kind
	text     string // literal text, or the label of a bare link
	href     string
	level    int
	children []node
}

func textOf(s string) node {
	return node{kind: textNode, text: s}
}

// Renderer converts assistant text to HTML. The zero value is not usable;
// construct one with New.
type Renderer struct {
	fileHosts []string
}

type Option func(*Renderer)

// WithFileStorageHosts replaces the hosts treated as file storage. Subdomains
// of a listed host match too.
func WithFileStorageHosts(hosts ...string) Option {
	return func(r *Renderer) {
		r.fileHosts = r.fileHosts[:0]
		for _, h := range hosts {
			h = strings.ToLower(strings.TrimSpace(h))
			if h != "" {
				r.fileHosts = append(r.fileHosts, h)
			}
		}
	}
}

func New(opts ...Option) *Renderer {
	r := &Renderer{fileHosts: append([]string(nil), DefaultFileStorageHosts...)}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var defaultRenderer = New()

// Render converts text with the default file storage hosts.
func Render(text string) string {
	return defaultRenderer.Render(text)
}

// Render never fails: input the dialect does not recognize comes out as
// escaped literal text.
func (r *Renderer) Render(text string) string {
	if text == "" {
		return ""
	}
	nodes := blocks(strings.ReplaceAll(text, "\r\n", "\n"))
	nodes = mapText(nodes, explicitLinks)
	nodes = emphasis(nodes, strongPattern, strongNode)
	nodes = emphasis(nodes, emPattern, emNode)
	nodes = mapText(nodes, r.bareLinks)
	nodes = cleanup(nodes)

	var b strings.Builder
	b.Grow(len(text) + len(text)/2)
	write(&b, nodes)
	return b.String()
}

// EscapeText escapes s for use as HTML element content.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}

// blocks splits text into lines, wraps heading lines and separates lines
// with break nodes.
func blocks(text string) []node {
	lines := strings.Split(text, "\n")
	out := make([]node, 0, 2*len(lines))
	for i, line := range lines {
		if i > 0 {
			out = append(out, node{kind: breakNode})
		}
		out = append(out, headingOrText(line))
	}
	return out
}

func headingOrText(line string) node {
	for _, h := range headingPrefixes {
		if rest, ok := strings.CutPrefix(line, h.prefix); ok {
			return node{kind: headingNode, level: h.level, children: []node{textOf(rest)}}
		}
	}
	return textOf(line)
}

// mapText replaces every text node with f's output. It descends into headings
// and emphasis but never into links.
func mapText(nodes []node, f func(string) []node) []node {
	out := make([]node, 0, len(nodes))
	for _, n := range nodes {
		switch n.kind {
		case textNode:
			out = append(out, f(n.text)...)
		case headingNode, strongNode, emNode:
			n.children = mapText(n.children, f)
			out = append(out, n)
		default:
			out = append(out, n)
		}
	}
	return out
}

// emphasis wraps matches of re in k nodes. Matching runs over the text of
// a whole sibling run, so a span may enclose an explicit link, and it
// descends into headings, emphasis and explicit link labels. Breaks are seen
// as newlines, which keeps every span on one line.
func emphasis(nodes []node, re *regexp.Regexp, k kind) []node {
	for i := range nodes {
		switch nodes[i].kind {
		case headingNode, strongNode, emNode, linkNode:
			nodes[i].children = emphasis(nodes[i].children, re, k)
		}
	}

	var b strings.Builder
	spans := make([]span, len(nodes))
	for i, n := range nodes {
		start := b.Len()
		switch n.kind {
		case textNode:
			b.WriteString(n.text)
		case breakNode:
			b.WriteByte('\n')
		default:
			b.WriteString(objectMarker)
		}
		spans[i] = span{start: start, end: b.Len(), n: n}
	}
	s := b.String()

	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return nodes
	}
	out := make([]node, 0, len(nodes)+2*len(matches))
	last := 0
	for _, m := range matches {
		out = append(out, sliceSpans(spans, last, m[0])...)
		out = append(out, node{kind: k, children: sliceSpans(spans, m[2], m[3])})
		last = m[1]
	}
	return append(out, sliceSpans(spans, last, len(s))...)
}

// span is the byte range a node occupies in the joined sibling text.
type span struct {
	start, end int
	n          node
}

// sliceSpans returns the nodes covering [from, to) of the joined text. Text
// nodes are cut at the bounds; matches never split a marker or a break.
func sliceSpans(spans []span, from, to int) []node {
	var out []node
	for _, sp := range spans {
		if sp.end <= from || sp.start >= to {
			continue
		}
		if sp.n.kind != textNode {
			out = append(out, sp.n)
			continue
		}
		if a, z := max(from, sp.start), min(to, sp.end); a < z {
			out = append(out, textOf(sp.n.text[a-sp.start:z-sp.start]))
		}
	}
	return out
}

func explicitLinks(s string) []node {
	return splitMatches(s, explicitLinkPattern, func(groups []string) node {
		return node{kind: linkNode, href: groups[2], children: []node{textOf(docIcon + groups[1])}}
	})
}

func splitMatches(s string, re *regexp.Regexp, build func(groups []string) node) []node {
	matches := re.FindAllStringSubmatchIndex(s, -1)
	if len(matches) == 0 {
		return []node{textOf(s)}
	}
	out := make([]node, 0, 2*len(matches)+1)
	last := 0
	for _, m := range matches {
		if m[0] > last {
			out = append(out, textOf(s[last:m[0]]))
		}
		groups := make([]string, len(m)/2)
		for g := range groups {
			if m[2*g] >= 0 {
				groups[g] = s[m[2*g]:m[2*g+1]]
			}
		}
		out = append(out, build(groups))
		last = m[1]
	}
	if last < len(s) {
		out = append(out, textOf(s[last:]))
	}
	return out
}

func (r *Renderer) bareLinks(s string) []node {
	matches := bareURLPattern.FindAllStringIndex(s, -1)
	if len(matches) == 0 {
		return []node{textOf(s)}
	}
	var out []node
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		for end > start && strings.IndexByte(trailingPunct, s[end-1]) >= 0 {
			end--
		}
		raw := s[start:end]
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			continue
		}
		if start > last {
			out = append(out, textOf(s[last:start]))
		}
		label := raw
		if r.isFileStorage(u.Hostname()) {
			label = downloadLabel
		}
		out = append(out, node{kind: linkNode, text: label, href: raw})
		last = end
	}
	if last < len(s) {
		out = append(out, textOf(s[last:]))
	}
	return out
}

func (r *Renderer) isFileStorage(host string) bool {
	host = strings.ToLower(host)
	for _, h := range r.fileHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}

// cleanup drops bracket and paren fragments left around links by malformed
// link syntax.
func cleanup(nodes []node) []node {
	for i := range nodes {
		switch nodes[i].kind {
		case headingNode, strongNode, emNode:
			nodes[i].children = cleanup(nodes[i].children)
		case linkNode:
			prev, next := siblingText(nodes, i-1), siblingText(nodes, i+1)
			if prev == nil {
				continue
			}
			if loc := orphanOpener.FindStringIndex(prev.text); loc != nil {
				prev.text = prev.text[:loc[0]]
				if next != nil {
					next.text = strings.TrimPrefix(next.text, ")")
				}
			} else if strings.HasSuffix(prev.text, "[") {
				prev.text = strings.TrimSuffix(prev.text, "[")
				if next != nil {
					next.text = strings.TrimPrefix(next.text, "]")
				}
			}
		}
	}
	return nodes
}

func siblingText(nodes []node, i int) *node {
	if i < 0 || i >= len(nodes) || nodes[i].kind != textNode {
		return nil
	}
	return &nodes[i]
}

func write(b *strings.Builder, nodes []node) {
	for _, n := range nodes {
		switch n.kind {
		case textNode:
			b.WriteString(EscapeText(n.text))
		case breakNode:
			b.WriteString(lineBreak)
		case headingNode:
			tag := "h" + strconv.Itoa(n.level)
			b.WriteString("<" + tag + ">")
			write(b, n.children)
			b.WriteString("</" + tag + ">")
		case strongNode:
			b.WriteString("<strong>")
			write(b, n.children)
			b.WriteString("</strong>")
		case emNode:
			b.WriteString("<em>")
			write(b, n.children)
			b.WriteString("</em>")
		case linkNode:
			b.WriteString(`<a href="`)
			b.WriteString(html.EscapeString(n.href))
			b.WriteString(`"` + anchorAttrs + `>`)
			if len(n.children) > 0 {
				write(b, n.children)
			} else {
				b.WriteString(EscapeText(n.text))
			}
			b.WriteString("</a>")
		}
	}
}
