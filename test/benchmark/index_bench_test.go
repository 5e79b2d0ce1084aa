package benchmark

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stackseek/stackseek/internal/document"
	"github.com/stackseek/stackseek/internal/index"
	"github.com/stackseek/stackseek/internal/index/snapfile"
	"github.com/stackseek/stackseek/internal/ranker"
)

var benchTerms = []string{
	"slice", "goroutine", "channel", "interface", "pointer",
	"exception", "nullpointer", "dependency", "injection", "serialization",
}

func benchCorpus(n int) []document.Document {
	docs := make([]document.Document, 0, n)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		a := benchTerms[i%len(benchTerms)]
		b := benchTerms[(i+3)%len(benchTerms)]
		c := benchTerms[(i+7)%len(benchTerms)]
		docs = append(docs, document.Document{
			ID:    int64(i + 1),
			Kind:  document.KindQuestion,
			Title: fmt.Sprintf("How to handle %s with %s", a, b),
			Body: fmt.Sprintf("I keep running into %s problems when my %s interacts with a %s. "+
				"The documentation covers %s but not this combination.", a, b, c, c),
			Tags:        []string{a},
			SourceScore: i % 100,
			CreatedAt:   base.AddDate(0, 0, i%365),
			Link:        fmt.Sprintf("https://example.com/q/%d", i+1),
		})
	}
	return docs
}

func buildSnapshot(b *testing.B, docs []document.Document, workers int) *index.Snapshot {
	b.Helper()
	ch := make(chan document.Document, len(docs))
	for _, d := range docs {
		ch <- d
	}
	close(ch)
	snap, err := index.NewBuilder(workers).Build(context.Background(), ch)
	if err != nil {
		b.Fatal(err)
	}
	return snap
}

// BenchmarkBuild measures full index construction throughput at several
// corpus sizes.
func BenchmarkBuild(b *testing.B) {
	sizes := []int{100, 1000, 10000}
	for _, size := range sizes {
		docs := benchCorpus(size)
		b.Run(fmt.Sprintf("docs_%d", size), func(b *testing.B) {
			builder := index.NewBuilder(4)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ch := make(chan document.Document, len(docs))
				for _, d := range docs {
					ch <- d
				}
				close(ch)
				if _, err := builder.Build(context.Background(), ch); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkBuildWorkers compares builder throughput by worker count over a
// fixed corpus.
func BenchmarkBuildWorkers(b *testing.B) {
	docs := benchCorpus(5000)
	for _, workers := range []int{1, 2, 4, 8} {
		b.Run(fmt.Sprintf("workers_%d", workers), func(b *testing.B) {
			builder := index.NewBuilder(workers)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				ch := make(chan document.Document, len(docs))
				for _, d := range docs {
					ch <- d
				}
				close(ch)
				if _, err := builder.Build(context.Background(), ch); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkRank measures query scoring latency over a 10 000 document
// snapshot, including the top-k heap and boost computation.
func BenchmarkRank(b *testing.B) {
	snap := buildSnapshot(b, benchCorpus(10000), 4)
	opts := ranker.Options{MinScore: 0.001, Now: time.Now()}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		q := ranker.Query{Terms: []string{
			benchTerms[i%len(benchTerms)],
			benchTerms[(i+1)%len(benchTerms)],
		}}
		if _, _, err := ranker.Rank(snap, q, opts); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkRankParallel measures concurrent query throughput against one
// shared snapshot.
func BenchmarkRankParallel(b *testing.B) {
	snap := buildSnapshot(b, benchCorpus(10000), 4)
	opts := ranker.Options{MinScore: 0.001, Now: time.Now()}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			q := ranker.Query{Terms: []string{benchTerms[i%len(benchTerms)]}}
			if _, _, err := ranker.Rank(snap, q, opts); err != nil {
				b.Fatal(err)
			}
			i++
		}
	})
}

// BenchmarkSnapshotWrite measures snapshot persistence cost.
func BenchmarkSnapshotWrite(b *testing.B) {
	snap := buildSnapshot(b, benchCorpus(5000), 4)
	dir := b.TempDir()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := snapfile.Write(dir, snap); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSnapshotLoad measures restore cost from disk.
func BenchmarkSnapshotLoad(b *testing.B) {
	snap := buildSnapshot(b, benchCorpus(5000), 4)
	dir := b.TempDir()
	name, err := snapfile.Write(dir, snap)
	if err != nil {
		b.Fatal(err)
	}
	path := filepath.Join(dir, name)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := snapfile.Load(path); err != nil {
			b.Fatal(err)
		}
	}
}
