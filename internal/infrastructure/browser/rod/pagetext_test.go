package rod

import (
	"strings"
	"testing"
)

func TestExtractPageText_RemovesScriptStyle(t *testing.T) {
	html := `
<body>
    <div id="main">Hello</div>
    <script>alert("hi")</script>
    <style>.x {}</style>
</body>`

	out := ExtractPageText(html, 0)

	if strings.Contains(out, "alert") || strings.Contains(out, ".x {}") {
		t.Errorf("script/style content must be removed, output: %s", out)
	}
	if !strings.Contains(out, "Hello") {
		t.Errorf("visible text must be kept, output: %s", out)
	}
}

func TestExtractPageText_RemovesComments(t *testing.T) {
	html := `
<body>
    <!-- hidden note -->
    <div>Text</div>
</body>`

	out := ExtractPageText(html, 0)

	if strings.Contains(out, "hidden note") {
		t.Errorf("HTML comments must be removed, output: %s", out)
	}
}

func TestExtractPageText_KeepsLinkTargets(t *testing.T) {
	html := `<body><a href="https://example.com">Go there</a></body>`

	out := ExtractPageText(html, 0)

	if !strings.Contains(out, "Go there (https://example.com)") {
		t.Errorf("link must be rendered as text (href), output: %s", out)
	}
}

func TestExtractPageText_SkipsAnchorFragments(t *testing.T) {
	html := `<body><a href="#top">Back to top</a></body>`

	out := ExtractPageText(html, 0)

	if strings.Contains(out, "#top") {
		t.Errorf("fragment-only hrefs must not be rendered, output: %s", out)
	}
	if !strings.Contains(out, "Back to top") {
		t.Errorf("link text must be kept, output: %s", out)
	}
}

func TestExtractPageText_CollapsesWhitespace(t *testing.T) {
	html := `<body><p>  one
	two   </p><p>three</p></body>`

	out := ExtractPageText(html, 0)

	if strings.Contains(out, "  ") {
		t.Errorf("runs of spaces must be collapsed, output: %q", out)
	}
	if !strings.Contains(out, "one two") {
		t.Errorf("inline text must stay on one line, output: %q", out)
	}
}

func TestExtractPageText_BlockTagsBreakLines(t *testing.T) {
	html := `<body><h1>Title</h1><p>Body text</p></body>`

	out := ExtractPageText(html, 0)

	lines := strings.Split(out, "\n")
	if len(lines) < 2 {
		t.Fatalf("block elements must produce separate lines, output: %q", out)
	}
}

func TestExtractPageText_Truncates(t *testing.T) {
	html := "<body><p>" + strings.Repeat("a", 500) + "</p></body>"

	out := ExtractPageText(html, 100)

	if !strings.HasSuffix(out, "... (truncated)") {
		t.Errorf("oversized output must be marked truncated, got %q", out)
	}
	if len(out) > 100+len("\n... (truncated)") {
		t.Errorf("output exceeds the limit: %d bytes", len(out))
	}
}

func TestExtractPageText_EmptyLimitMeansUnbounded(t *testing.T) {
	html := "<body><p>" + strings.Repeat("b", 500) + "</p></body>"

	out := ExtractPageText(html, 0)

	if strings.Contains(out, "truncated") {
		t.Errorf("limit 0 must not truncate")
	}
}
