package index

import (
	"context"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/stackseek/stackseek/internal/document"
)

func feed(docs ...document.Document) <-chan document.Document {
	ch := make(chan document.Document, len(docs))
	for _, d := range docs {
		ch <- d
	}
	close(ch)
	return ch
}

func testCorpus() []document.Document {
	return []document.Document{
		{
			ID:          1,
			Kind:        document.KindQuestion,
			Title:       "How to sort a list in Java",
			Body:        "I need to sort a list of strings. Sorting should be stable.",
			Tags:        []string{"java", "sorting"},
			SourceScore: 42,
			CreatedAt:   time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          2,
			Kind:        document.KindAnswer,
			Body:        "Use <code>Collections.sort(list)</code> for stable sorting.",
			SourceScore: 90,
			ParentID:    1,
			CreatedAt:   time.Date(2023, 5, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:          3,
			Kind:        document.KindQuestion,
			Title:       "Python dictionary iteration",
			Body:        "What is the fastest way to iterate a dictionary in Python?",
			Tags:        []string{"python"},
			SourceScore: 7,
			CreatedAt:   time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestBuildIndexesAllFields(t *testing.T) {
	snap, err := NewBuilder(2).Build(context.Background(), feed(testCorpus()...))
	if err != nil {
		t.Fatal(err)
	}
	if snap.DocCount() != 3 {
		t.Fatalf("DocCount = %d, want 3", snap.DocCount())
	}

	// "sort" appears in doc 1's title and body and in doc 2's body, plus as
	// a code keyword from Collections.sort(list).
	postings := snap.Postings("sort")
	if postings.DocFreq() != 2 {
		t.Errorf("DocFreq(sort) = %d, want 2", postings.DocFreq())
	}
	var titleFreq int
	for _, p := range postings {
		if p.DocID == 1 && p.Field == document.FieldTitle {
			titleFreq = p.Frequency
		}
	}
	if titleFreq != 1 {
		t.Errorf("title frequency of sort in doc 1 = %d, want 1", titleFreq)
	}

	// Tags are exact pseudo-tokens, unstemmed.
	if snap.Postings("sorting").DocFreq() == 0 {
		t.Error("tag term sorting should be indexed")
	}
	if snap.Postings("python").DocFreq() == 0 {
		t.Error("tag term python should be indexed")
	}
}

func TestBuildPostingOrder(t *testing.T) {
	snap, err := NewBuilder(4).Build(context.Background(), feed(testCorpus()...))
	if err != nil {
		t.Fatal(err)
	}
	for _, term := range snap.Terms() {
		postings := snap.Postings(term)
		for i := 1; i < len(postings); i++ {
			a, b := postings[i-1], postings[i]
			if a.DocID > b.DocID || (a.DocID == b.DocID && a.Field >= b.Field) {
				t.Fatalf("postings for %q out of order: %+v before %+v", term, a, b)
			}
		}
	}
}

// The same corpus must produce the same index regardless of worker count.
func TestBuildDeterministicAcrossWorkerCounts(t *testing.T) {
	var snaps []*Snapshot
	for _, workers := range []int{1, 2, 8} {
		snap, err := NewBuilder(workers).Build(context.Background(), feed(testCorpus()...))
		if err != nil {
			t.Fatal(err)
		}
		snaps = append(snaps, snap)
	}
	base := snaps[0]
	for _, snap := range snaps[1:] {
		if !reflect.DeepEqual(base.postings, snap.postings) {
			t.Error("postings differ across worker counts")
		}
		if !reflect.DeepEqual(base.stats, snap.stats) {
			t.Error("stats differ across worker counts")
		}
		if base.avgDocLen != snap.avgDocLen {
			t.Errorf("avgdl differs: %f vs %f", base.avgDocLen, snap.avgDocLen)
		}
	}
}

func TestBuildAvgDocLength(t *testing.T) {
	snap, err := NewBuilder(1).Build(context.Background(), feed(testCorpus()...))
	if err != nil {
		t.Fatal(err)
	}
	total := 0
	for _, id := range snap.DocIDs() {
		st, _ := snap.Stats(id)
		total += st.Length()
	}
	want := float64(total) / float64(snap.DocCount())
	if math.Abs(snap.AvgDocLength()-want) > 1e-12 {
		t.Errorf("AvgDocLength = %f, want %f", snap.AvgDocLength(), want)
	}
	if snap.AvgDocLength() <= 0 {
		t.Error("avgdl should be positive for a non-empty corpus")
	}
}

func TestBuildGenerationsIncrease(t *testing.T) {
	a, err := NewBuilder(1).Build(context.Background(), feed(testCorpus()...))
	if err != nil {
		t.Fatal(err)
	}
	b, err := NewBuilder(1).Build(context.Background(), feed(testCorpus()...))
	if err != nil {
		t.Fatal(err)
	}
	if b.Generation() <= a.Generation() {
		t.Errorf("generations not increasing: %d then %d", a.Generation(), b.Generation())
	}
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	docs := make(chan document.Document) // never closed
	if _, err := NewBuilder(2).Build(ctx, docs); err == nil {
		t.Error("Build should fail when the context is cancelled")
	}
}

func TestIDF(t *testing.T) {
	snap, err := NewBuilder(1).Build(context.Background(), feed(testCorpus()...))
	if err != nil {
		t.Fatal(err)
	}
	// df(sort)=2 in a 3-doc corpus.
	want := math.Log((3.0-2.0+0.5)/(2.0+0.5) + 1)
	if got := snap.IDF("sort"); math.Abs(got-want) > 1e-12 {
		t.Errorf("IDF(sort) = %f, want %f", got, want)
	}
	if got := snap.IDF("nonexistent"); got != 0 {
		t.Errorf("IDF of unindexed term = %f, want 0", got)
	}
	// Rarer terms weigh more.
	if snap.IDF("python") <= snap.IDF("sort") {
		t.Error("IDF should decrease with document frequency")
	}
}

func TestHolder(t *testing.T) {
	h := NewHolder()
	if h.Ready() {
		t.Error("new holder should not be ready")
	}
	if _, err := h.Load(); err == nil {
		t.Error("Load on an empty holder should fail")
	}
	snap, err := NewBuilder(1).Build(context.Background(), feed(testCorpus()...))
	if err != nil {
		t.Fatal(err)
	}
	h.Publish(snap)
	if !h.Ready() {
		t.Error("holder should be ready after Publish")
	}
	got, err := h.Load()
	if err != nil {
		t.Fatal(err)
	}
	if got.Generation() != snap.Generation() {
		t.Errorf("loaded generation %d, want %d", got.Generation(), snap.Generation())
	}
}
