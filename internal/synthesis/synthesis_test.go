package synthesis

import (
	"reflect"
	"strings"
	"testing"
)

func TestSynthesizeBucketsAndCitations(t *testing.T) {
	sources := []Source{
		{
			DocID: 1, Title: "How to cache results", Link: "https://example.com/q/1",
			Bodies: []string{
				"First you should enable the cache in the configuration file. " +
					"A bloom filter is a probabilistic structure for fast membership tests. " +
					"The library performs well under heavy concurrent load." +
					"<pre><code>SELECT id FROM users WHERE active = 1</code></pre>",
			},
		},
		{
			DocID: 2, Link: "https://example.com/a/2",
			Bodies: []string{
				"The library performs very well under heavy concurrent load. " +
					"Then wire the middleware into your router chain.",
			},
		},
		{
			DocID: 3, Link: "https://example.com/a/3",
			Bodies: []string{
				"The library performs well under heavy concurrent load.",
			},
		},
	}

	answer := Synthesize("cache results", sources, Options{})

	wantSteps := []string{
		"First you should enable the cache in the configuration file",
		"Then wire the middleware into your router chain",
	}
	if !reflect.DeepEqual(answer.Steps, wantSteps) {
		t.Errorf("Steps = %v, want %v", answer.Steps, wantSteps)
	}
	wantConcepts := []string{
		"A bloom filter is a probabilistic structure for fast membership tests",
	}
	if !reflect.DeepEqual(answer.Concepts, wantConcepts) {
		t.Errorf("Concepts = %v, want %v", answer.Concepts, wantConcepts)
	}
	wantDetails := []string{
		"The library performs well under heavy concurrent load",
	}
	if !reflect.DeepEqual(answer.Details, wantDetails) {
		t.Errorf("Details = %v, want %v", answer.Details, wantDetails)
	}
	if len(answer.CodeExamples) != 1 {
		t.Fatalf("got %d code examples, want 1", len(answer.CodeExamples))
	}
	if answer.CodeExamples[0].Language != "sql" {
		t.Errorf("code language = %q, want sql", answer.CodeExamples[0].Language)
	}
	if answer.LowConfidence {
		t.Error("answer should not be low confidence")
	}

	// Document 3's only sentence is a near-duplicate of kept content; it
	// corroborates the answer and is still cited.
	var cited []int64
	for _, c := range answer.Citations {
		cited = append(cited, c.DocID)
	}
	if !reflect.DeepEqual(cited, []int64{1, 2, 3}) {
		t.Errorf("cited docs = %v, want [1 2 3]", cited)
	}
}

func TestSynthesizeDuplicateSentenceStillCited(t *testing.T) {
	const sentence = "Wrap the reader in a buffered scanner before parsing each line."
	sources := []Source{
		{DocID: 1, Link: "https://example.com/a/1", Bodies: []string{sentence}},
		{DocID: 2, Link: "https://example.com/a/2", Bodies: []string{sentence}},
	}
	answer := Synthesize("read lines", sources, Options{})
	if len(answer.Steps) != 1 {
		t.Fatalf("identical sentence should be kept once, got %v", answer.Steps)
	}
	var cited []int64
	for _, c := range answer.Citations {
		cited = append(cited, c.DocID)
	}
	if !reflect.DeepEqual(cited, []int64{1, 2}) {
		t.Errorf("cited docs = %v, want both sources", cited)
	}
}

func TestSynthesizeStepPriorityOverConcept(t *testing.T) {
	sources := []Source{{DocID: 1, Bodies: []string{
		"First remember that a mutex is a lock primitive guarding shared state.",
	}}}
	answer := Synthesize("mutex", sources, Options{})
	if len(answer.Steps) != 1 || len(answer.Concepts) != 0 {
		t.Errorf("step marker should win over concept marker: steps=%v concepts=%v",
			answer.Steps, answer.Concepts)
	}
}

func TestSynthesizeNumberedListIsSteps(t *testing.T) {
	sources := []Source{{DocID: 1, Bodies: []string{
		"1) Declare the interface in its own package. 2) Wrap the client with the retry decorator.",
	}}}
	answer := Synthesize("retry", sources, Options{})
	if len(answer.Steps) != 2 {
		t.Fatalf("got steps %v, want both numbered items", answer.Steps)
	}
	if !strings.HasPrefix(answer.Steps[1], "2)") {
		t.Errorf("numbered prefix should be preserved, got %q", answer.Steps[1])
	}
}

func TestSynthesizeCodeVerbatim(t *testing.T) {
	body := "Use the helper below.\n```go\nfunc main() {\n\tfmt.Println(\"hi\")\n}\n```"
	sources := []Source{{DocID: 9, Link: "https://example.com/a/9", Bodies: []string{body}}}

	answer := Synthesize("main", sources, Options{})
	if len(answer.CodeExamples) != 1 {
		t.Fatalf("got %d code examples, want 1", len(answer.CodeExamples))
	}
	want := "func main() {\n\tfmt.Println(\"hi\")\n}"
	if answer.CodeExamples[0].Code != want {
		t.Errorf("code = %q, want %q", answer.CodeExamples[0].Code, want)
	}
	if answer.CodeExamples[0].Language != "go" {
		t.Errorf("language = %q, want go", answer.CodeExamples[0].Language)
	}
	// The prose sentence is under the length floor; the code alone must
	// still earn the source its citation.
	if len(answer.Citations) != 1 || answer.Citations[0].DocID != 9 {
		t.Errorf("citations = %v, want doc 9", answer.Citations)
	}
}

func TestSynthesizeCodeDeduplicated(t *testing.T) {
	code := "<code>int x = compute();</code>"
	sources := []Source{
		{DocID: 1, Bodies: []string{"Answer one explains the approach thoroughly. " + code}},
		{DocID: 2, Bodies: []string{"Answer two repeats the snippet verbatim here. " + code}},
	}
	answer := Synthesize("compute", sources, Options{})
	if len(answer.CodeExamples) != 1 {
		t.Errorf("got %d code examples, want identical snippet kept once", len(answer.CodeExamples))
	}
}

func TestSynthesizeCodeCap(t *testing.T) {
	sources := []Source{{DocID: 1, Bodies: []string{
		"<code>first();</code> and <code>second();</code> and <code>third();</code>",
	}}}
	answer := Synthesize("q", sources, Options{MaxCodeExamples: 2})
	if len(answer.CodeExamples) != 2 {
		t.Errorf("got %d code examples, want cap of 2", len(answer.CodeExamples))
	}
}

func TestSynthesizeLowConfidence(t *testing.T) {
	sources := []Source{
		{DocID: 4, Title: "short", Link: "https://example.com/q/4", Bodies: []string{"Too short here. Nope."}},
		{DocID: 5, Link: "https://example.com/a/5", Bodies: []string{"Also tiny."}},
	}
	answer := Synthesize("anything", sources, Options{})
	if !answer.LowConfidence {
		t.Fatal("expected low confidence when nothing survives extraction")
	}
	if len(answer.Details) != 1 || !strings.Contains(answer.Details[0], "consult the cited discussions") {
		t.Errorf("fallback note missing, details = %v", answer.Details)
	}
	// Low confidence keeps every source citable.
	if len(answer.Citations) != 2 {
		t.Errorf("got %d citations, want all sources cited", len(answer.Citations))
	}
}

func TestSynthesizeMinSentenceLen(t *testing.T) {
	sources := []Source{{DocID: 1, Bodies: []string{"Install the package now."}}}

	strict := Synthesize("install", sources, Options{})
	if len(strict.Steps) != 0 {
		t.Errorf("four-word sentence should fall under the default floor, got %v", strict.Steps)
	}

	loose := Synthesize("install", sources, Options{MinSentenceLen: 3})
	if len(loose.Steps) != 1 {
		t.Errorf("lowered floor should keep the sentence, got %v", loose.Steps)
	}
}

func TestSynthesizeBucketCaps(t *testing.T) {
	variants := [][3]string{
		{"alpha", "beta", "gamma"},
		{"delta", "epsilon", "zeta"},
		{"eta", "theta", "iota"},
		{"kappa", "lambda", "mu"},
	}
	var b strings.Builder
	for _, v := range variants {
		// Enough distinct tokens per sentence to stay under the
		// near-duplicate threshold.
		b.WriteString("The " + v[0] + " handler logs " + v[1] + " warnings during " + v[2] + " restarts. ")
	}
	sources := []Source{{DocID: 1, Bodies: []string{b.String()}}}
	answer := Synthesize("q", sources, Options{MaxDetails: 2})
	if len(answer.Details) != 2 {
		t.Errorf("got %d details, want cap of 2", len(answer.Details))
	}
}
