package synthesis

import (
	"reflect"
	"testing"
)

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		prose string
		want  []string
	}{
		{
			"Works with node.js today. See docs!",
			[]string{"Works with node.js today", "See docs"},
		},
		{
			"Use version 3.14 if possible.",
			[]string{"Use version 3.14 if possible"},
		},
		{
			"Some tools, e.g. linters, help a lot. Really.",
			[]string{"Some tools, e.g. linters, help a lot", "Really"},
		},
		{
			"Does it block? No, it returns immediately.",
			[]string{"Does it block", "No, it returns immediately"},
		},
		{
			"no terminator at all here",
			[]string{"no terminator at all here"},
		},
		{"", nil},
	}
	for _, tc := range cases {
		got := splitSentences(tc.prose)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("splitSentences(%q) = %v, want %v", tc.prose, got, tc.want)
		}
	}
}

func TestSimilarity(t *testing.T) {
	a := normalizeSentence("The cache invalidates entries lazily")
	if s := similarity(a, a); s != 1.0 {
		t.Errorf("self similarity = %f, want 1", s)
	}
	b := normalizeSentence("Completely unrelated words appear here")
	if s := similarity(a, b); s != 0.0 {
		t.Errorf("disjoint similarity = %f, want 0", s)
	}
	if s := similarity(nil, a); s != 0.0 {
		t.Errorf("empty similarity = %f, want 0", s)
	}
	almost := normalizeSentence("The cache invalidates most entries lazily")
	if s := similarity(a, almost); s < dedupThreshold {
		t.Errorf("near-duplicate similarity = %f, want >= %f", s, dedupThreshold)
	}
}
