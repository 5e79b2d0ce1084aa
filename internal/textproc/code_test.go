package textproc

import (
	"reflect"
	"strings"
	"testing"
)

func TestExtractCodeRegionsVerbatim(t *testing.T) {
	const body = "Wrap it like this:\n```java\nList<String> names = new ArrayList<>();\nnames.sort(null);\n```\nDone."
	regions := ExtractCodeRegions(body)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1", len(regions))
	}
	want := "List<String> names = new ArrayList<>();\nnames.sort(null);\n"
	if regions[0] != want {
		t.Errorf("region = %q, want %q", regions[0], want)
	}
}

func TestExtractCodeRegionsOrder(t *testing.T) {
	body := "<pre><code>first block</code></pre> some prose <code>second block</code> and `third`"
	regions := ExtractCodeRegions(body)
	want := []string{"first block", "second block", "third"}
	if !reflect.DeepEqual(regions, want) {
		t.Errorf("regions = %v, want %v", regions, want)
	}
}

func TestExtractCodeRegionsInterleavedOrder(t *testing.T) {
	body := "<code>alpha()</code> then\n```go\nbeta()\n```\nand finally <code>gamma()</code>"
	regions := ExtractCodeRegions(body)
	want := []string{"alpha()", "beta()\n", "gamma()"}
	if !reflect.DeepEqual(regions, want) {
		t.Errorf("regions = %q, want %q", regions, want)
	}
}

func TestFencedBlockSwallowsInlineBackticks(t *testing.T) {
	body := "```\na := `raw`\n```"
	regions := ExtractCodeRegions(body)
	if len(regions) != 1 {
		t.Fatalf("got %d regions, want 1: %q", len(regions), regions)
	}
	if !strings.Contains(regions[0], "`raw`") {
		t.Errorf("fenced block lost inner backticks: %q", regions[0])
	}
}

func TestCodeKeywords(t *testing.T) {
	tests := []struct {
		name   string
		region string
		want   []string
	}{
		{
			"annotation and class",
			"@Override\npublic void run(MyService svc) {}",
			[]string{"myservice", "override", "run"},
		},
		{
			"sql keywords",
			"SELECT id FROM users WHERE age > 21 ORDER BY id",
			[]string{"from", "order", "select", "where"},
		},
		{
			"method calls",
			"result = parser.parse(input)",
			[]string{"parse"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := make(map[string]struct{})
			codeKeywords(tt.region, got)
			for _, w := range tt.want {
				if _, ok := got[w]; !ok {
					t.Errorf("keywords %v missing %q", keys(got), w)
				}
			}
		})
	}
}

func keys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

func TestStripMarkup(t *testing.T) {
	in := "<p>Use <b>generics</b> &amp; bounds</p> <code>ignored()</code>"
	got := strings.Join(strings.Fields(StripMarkup(in)), " ")
	want := "Use generics & bounds"
	if got != want {
		t.Errorf("StripMarkup = %q, want %q", got, want)
	}
}
