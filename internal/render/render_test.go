package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const attrs = ` target="_blank" rel="noopener noreferrer"`

func TestRender_Empty(t *testing.T) {
	require.Equal(t, "", Render(""))
}

func TestRender_PlainTextJoinsLinesWithBreaks(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"hola", "hola"},
		{"hola\nmundo", "hola<br>mundo"},
		{"uno\n\ndos", "uno<br><br>dos"},
		{"línea con \"comillas\"\r\notra", "línea con \"comillas\"<br>otra"},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, Render(tc.in), "in=%q", tc.in)
	}
}

func TestRender_Emphasis(t *testing.T) {
	require.Equal(t, "<strong>bold</strong>", Render("**bold**"))
	require.Equal(t, "<em>it</em>", Render("*it*"))
	require.Equal(t, "a <strong>b</strong> c <em>d</em>", Render("a **b** c *d*"))
	require.Equal(t, "<strong>x</strong> y <strong>z</strong>", Render("**x** y **z**"))
}

func TestRender_EmphasisDoesNotCrossLines(t *testing.T) {
	require.Equal(t, "*a<br>b*", Render("*a\nb*"))
	require.Equal(t, "**a<br>b**", Render("**a\nb**"))
}

func TestRender_UnterminatedMarkersStayLiteral(t *testing.T) {
	require.Equal(t, "**bold", Render("**bold"))
	require.Equal(t, "a * b", Render("a * b"))
	require.Equal(t, "**", Render("**"))
}

func TestRender_Headings(t *testing.T) {
	require.Equal(t, "<h2>Title</h2>", Render("# Title"))
	require.Equal(t, "<h3>Sub</h3>", Render("## Sub"))
	require.Equal(t, "<h4>Small</h4>", Render("### Small"))
	require.Equal(t, "<h2>Title</h2><br>body", Render("# Title\nbody"))
	require.Equal(t, "#NoSpace", Render("#NoSpace"))
	require.Equal(t, "#### four", Render("#### four"))
	require.Equal(t, "<h3>Pasos <strong>clave</strong></h3>", Render("## Pasos **clave**"))
}

func TestRender_ExplicitLink(t *testing.T) {
	got := Render("[Doc](https://storage.googleapis.com/x)")
	require.Equal(t, `<a href="https://storage.googleapis.com/x"`+attrs+`>📄 Doc</a>`, got)
	require.Equal(t, 1, strings.Count(got, "<a "))
}

func TestRender_BareURLs(t *testing.T) {
	file := Render("https://storage.googleapis.com/bucket/cert.pdf")
	other := Render("https://cootradecun.com/convenios")

	require.Equal(t, `<a href="https://storage.googleapis.com/bucket/cert.pdf"`+attrs+`>📥 Descargar archivo</a>`, file)
	require.Equal(t, `<a href="https://cootradecun.com/convenios"`+attrs+`>https://cootradecun.com/convenios</a>`, other)
}

func TestRender_BareURLTrailingPunctuation(t *testing.T) {
	got := Render("Visita https://cootradecun.com.")
	require.Equal(t, `Visita <a href="https://cootradecun.com"`+attrs+`>https://cootradecun.com</a>.`, got)

	got = Render("(ver https://x.com/a)")
	require.Equal(t, `(ver <a href="https://x.com/a"`+attrs+`>https://x.com/a</a>)`, got)
}

func TestRender_LinkLabelsAreNotRelinked(t *testing.T) {
	got := Render("[https://a.com](https://a.com)")
	require.Equal(t, `<a href="https://a.com"`+attrs+`>📄 https://a.com</a>`, got)
}

func TestRender_MixedLinks(t *testing.T) {
	got := Render("Ver [Doc](https://x.com/a) y https://y.com")
	want := `Ver <a href="https://x.com/a"` + attrs + `>📄 Doc</a> y <a href="https://y.com"` + attrs + `>https://y.com</a>`
	require.Equal(t, want, got)
}

func TestRender_EmphasisInsideLinkLabel(t *testing.T) {
	require.Equal(t,
		`<a href="https://x.com/a"`+attrs+`>📄 <strong>Doc</strong></a>`,
		Render("[**Doc**](https://x.com/a)"))
	require.Equal(t,
		`Ver <a href="https://storage.googleapis.com/b/f.pdf"`+attrs+`>📄 <em>Certificado</em> 2024</a>`,
		Render("Ver [*Certificado* 2024](https://storage.googleapis.com/b/f.pdf)"))
}

func TestRender_EmphasisAroundLink(t *testing.T) {
	require.Equal(t,
		`<strong><a href="https://x.com/a"`+attrs+`>📄 Doc</a></strong> fin`,
		Render("**[Doc](https://x.com/a)** fin"))
	require.Equal(t,
		`<em>lee <a href="https://x.com/a"`+attrs+`>📄 Doc</a> hoy</em>`,
		Render("*lee [Doc](https://x.com/a) hoy*"))
}

func TestRender_StarRunsStayLiteral(t *testing.T) {
	require.Equal(t, "****", Render("****"))
	require.Equal(t, "a *** b", Render("a *** b"))
}

func TestRender_CleanupOrphanedLinkSyntax(t *testing.T) {
	link := `<a href="https://storage.googleapis.com/b/f.pdf"` + attrs + `>📥 Descargar archivo</a>`
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"legacy download prefix", "📥 Descargar PDF](https://storage.googleapis.com/b/f.pdf)", link},
		{"unterminated link", "[Certificado](https://storage.googleapis.com/b/f.pdf", link},
		{"bare opener", "Aquí ](https://storage.googleapis.com/b/f.pdf) listo", "Aquí " + link + " listo"},
		{"bracketed url", "[https://storage.googleapis.com/b/f.pdf]", link},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Render(tc.in))
		})
	}
}

func TestRender_EscapesMarkup(t *testing.T) {
	require.Equal(t, "&lt;script&gt;alert(1)&lt;/script&gt;", Render("<script>alert(1)</script>"))
	require.Equal(t, "<strong>&lt;b&gt;</strong>", Render("**<b>**"))
	require.Equal(t, "a &amp; b", Render("a & b"))
}

func TestRender_EscapesHrefAttributes(t *testing.T) {
	got := Render("[x](https://e.com/a'b)")
	require.Contains(t, got, `href="https://e.com/a&#39;b"`)

	got = Render(`https://e.com/"onmouseover=alert(1)`)
	require.True(t, strings.HasPrefix(got, `<a href="https://e.com/"`+attrs+`>`), got)
	require.NotContains(t, got, `onmouseover=alert(1)"`)

	got = Render("https://e.com/?a=1&b=2")
	require.Contains(t, got, `href="https://e.com/?a=1&amp;b=2"`)
}

func TestRender_RejectsNonHTTPSchemes(t *testing.T) {
	require.NotContains(t, Render("[x](javascript:alert(1))"), "<a")
	require.NotContains(t, Render("ftp://files.example.com/a"), "<a")
	require.Equal(t, "https://", Render("https://"))
}

func TestRender_IsTotal(t *testing.T) {
	inputs := []string{
		"**", "*", "***x***", ")", "[", "](", "[](", "[a](", "[a](http", "📥 ](",
		"# ", "##", "\n\n\n", "**a*b**c*", "[[x](https://a.com)]", "https://a.com)))",
		"\x00\xff", "*\n*", "### **[d](https://s.com)**",
	}
	for _, in := range inputs {
		require.NotPanics(t, func() { _ = Render(in) }, "in=%q", in)
	}
}

func TestRender_Deterministic(t *testing.T) {
	in := "# T\n**a** [d](https://x.com) https://storage.googleapis.com/f"
	require.Equal(t, Render(in), Render(in))
}

func TestRenderer_CustomFileStorageHosts(t *testing.T) {
	r := New(WithFileStorageHosts("files.coop.co"))
	require.Contains(t, r.Render("https://cdn.files.coop.co/a.pdf"), "📥 Descargar archivo")
	require.NotContains(t, r.Render("https://storage.googleapis.com/a.pdf"), "📥")
	// the package default is untouched
	require.Contains(t, Render("https://storage.googleapis.com/a.pdf"), "📥")
}

func TestEscapeText(t *testing.T) {
	require.Equal(t, "&lt;i&gt; &amp; \"q\"", EscapeText(`<i> & "q"`))
}
