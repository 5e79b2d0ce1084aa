package benchmark

import (
	"fmt"
	"testing"

	"github.com/stackseek/stackseek/internal/synthesis"
)

func benchSources(n int) []synthesis.Source {
	sources := make([]synthesis.Source, 0, n)
	for i := 0; i < n; i++ {
		sources = append(sources, synthesis.Source{
			DocID: int64(i + 1),
			Title: fmt.Sprintf("Question %d about connection pooling", i+1),
			Link:  fmt.Sprintf("https://example.com/q/%d", i+1),
			Bodies: []string{fmt.Sprintf(
				"First configure the pool with a sensible maximum of %d connections. "+
					"A connection pool is a cache of open connections reused across requests. "+
					"The driver blocks when the pool is exhausted rather than failing fast. "+
					"<pre><code>db.SetMaxOpenConns(%d)\ndb.SetMaxIdleConns(%d)</code></pre>",
				i+10, i+10, i+5)},
		})
	}
	return sources
}

// BenchmarkSynthesize measures extractive answer assembly over growing
// source counts, the hot path of /ragsearch.
func BenchmarkSynthesize(b *testing.B) {
	for _, n := range []int{1, 5, 10} {
		sources := benchSources(n)
		b.Run(fmt.Sprintf("sources_%d", n), func(b *testing.B) {
			b.ReportAllocs()
			for i := 0; i < b.N; i++ {
				answer := synthesis.Synthesize("connection pooling", sources, synthesis.Options{})
				_ = answer
			}
		})
	}
}
