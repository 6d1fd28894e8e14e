package docsearch

import (
	"math"
	"regexp"
	"sort"
	"strings"
)

const (
	bm25K1      = 1.2
	bm25B       = 0.75
	bm25Epsilon = 0.25
)

var tokenPattern = regexp.MustCompile(`[a-z0-9]+`)

type weightedField struct {
	text   string
	weight int
}

type hit struct {
	doc   int
	score float64
}

// bm25 scores composite documents built by repeating each field's tokens
// weight times.
type bm25 struct {
	termFreqs []map[string]int
	lengths   []int
	avgLength float64
	idf       map[string]float64
}

func newBM25(docs [][]weightedField) *bm25 {
	b := &bm25{
		termFreqs: make([]map[string]int, len(docs)),
		lengths:   make([]int, len(docs)),
		idf:       make(map[string]float64),
	}

	docFreq := make(map[string]int)
	total := 0
	for i, fields := range docs {
		tf := make(map[string]int)
		for _, f := range fields {
			tokens := tokenize(f.text)
			for w := 0; w < f.weight; w++ {
				for _, tok := range tokens {
					tf[tok]++
					b.lengths[i]++
				}
			}
		}
		for tok := range tf {
			docFreq[tok]++
		}
		b.termFreqs[i] = tf
		total += b.lengths[i]
	}
	if len(docs) > 0 {
		b.avgLength = float64(total) / float64(len(docs))
	}

	n := float64(len(docs))
	for tok, df := range docFreq {
		idf := math.Log(1 + (n-float64(df)+0.5)/(float64(df)+0.5))
		if idf <= 0 {
			idf = bm25Epsilon
		}
		b.idf[tok] = idf
	}
	return b
}

func (b *bm25) search(query string, limit int) []hit {
	tokens := tokenize(query)
	if len(tokens) == 0 || b.avgLength == 0 {
		return nil
	}

	var hits []hit
	for i := range b.termFreqs {
		if s := b.score(i, tokens); s > 0 {
			hits = append(hits, hit{doc: i, score: s})
		}
	}
	sort.SliceStable(hits, func(x, y int) bool { return hits[x].score > hits[y].score })
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

func (b *bm25) score(doc int, tokens []string) float64 {
	tf := b.termFreqs[doc]
	length := float64(b.lengths[doc])

	var score float64
	for _, tok := range tokens {
		freq := float64(tf[tok])
		if freq == 0 {
			continue
		}
		num := freq * (bm25K1 + 1)
		den := freq + bm25K1*(1-bm25B+bm25B*length/b.avgLength)
		score += b.idf[tok] * num / den
	}
	return score
}

// tokenize lowercases and keeps alphanumeric runs of two or more characters.
func tokenize(s string) []string {
	matches := tokenPattern.FindAllString(strings.ToLower(s), -1)
	out := matches[:0]
	for _, m := range matches {
		if len(m) >= 2 {
			out = append(out, m)
		}
	}
	return out
}
