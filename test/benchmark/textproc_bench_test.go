// Package benchmark contains Go benchmarks for the text pipeline, the index
// builder, and the ranker, measuring throughput and allocation behaviour.
package benchmark

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stackseek/stackseek/internal/textproc"
)

var sampleBodies = map[string]string{
	"short": "<p>How do I remove duplicate elements from a slice?</p>",
	"medium": `<p>I am building a REST client that retries failed requests with
        exponential backoff. The first attempt usually succeeds, but under load
        the service returns 429 and the client gives up immediately instead of
        waiting. I tried wrapping the call in a loop but the backoff interval
        never grows.</p><pre><code>for attempt := 0; attempt < max; attempt++ {
            resp, err := client.Do(req)
            if err == nil { return resp, nil }
        }</code></pre><p>What is the idiomatic way to structure this?</p>`,
	"long": strings.Repeat(`<p>Relevance ranking combines term frequency,
        inverse document frequency, and document length normalization into a
        single score. Title matches are weighted above body matches because a
        question title summarizes the asker's intent. Code fragments are kept
        verbatim and contribute exact-match identifiers that stemming would
        otherwise destroy. Stop words are dropped but their positions are
        preserved so phrase proximity still works. </p>`, 20),
}

func BenchmarkProcess(b *testing.B) {
	for name, body := range sampleBodies {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(body)))
			for i := 0; i < b.N; i++ {
				tokens := textproc.Process(body)
				_ = tokens
			}
		})
	}
}

func BenchmarkProcessParallel(b *testing.B) {
	body := sampleBodies["medium"]
	b.ReportAllocs()
	b.SetBytes(int64(len(body)))
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			tokens := textproc.Process(body)
			_ = tokens
		}
	})
}

func BenchmarkProcessQuery(b *testing.B) {
	queries := []string{
		"how to sort a map by value",
		"NullPointerException when calling getUser() in spring boot",
		"convert utf-8 string to bytes in node.js",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		terms, codeTerms := textproc.ProcessQuery(queries[i%len(queries)])
		_, _ = terms, codeTerms
	}
}

func BenchmarkStem(b *testing.B) {
	words := []string{
		"serialization", "dependencies", "configurational", "exceptions",
		"effectively", "statements", "sorting", "queries", "happiness",
		"normalization",
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		for _, w := range words {
			_ = textproc.Stem(w)
		}
	}
}

func BenchmarkStripMarkup(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	base := "<p>Some <b>marked up</b> prose with <code>inline()</code> code and &amp; entities. </p>"
	for _, size := range sizes {
		body := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(body)))
			for i := 0; i < b.N; i++ {
				_ = textproc.StripMarkup(body)
			}
		})
	}
}
