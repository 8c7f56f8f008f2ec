// Package clustering groups articles that report the same event into clusters
// with one primary article and one "also reported by" entry per other outlet.
package clustering

import (
	"sort"

	"stirimm/internal/models"
	"stirimm/internal/similarity"
)

// Options tunes the pairwise duplicate detector.
type Options struct {
	// SameSourceThreshold applies when both articles come from the same outlet.
	SameSourceThreshold float64
	// CrossSourceThreshold applies to articles from different outlets.
	CrossSourceThreshold float64
	// SecondaryWeight discounts the description-trigram and title-word signals.
	SecondaryWeight float64
	// DescriptionLimit is the number of leading description characters fingerprinted.
	DescriptionLimit int
}

// DefaultOptions returns the production thresholds.
func DefaultOptions() Options {
	return Options{
		SameSourceThreshold:  0.8,
		CrossSourceThreshold: 0.35,
		SecondaryWeight:      0.9,
		DescriptionLimit:     500,
	}
}

// Builder turns an article window into clusters. It holds no state between
// calls and is safe for concurrent use.
type Builder struct {
	opts Options
}

// NewBuilder creates a builder, filling unset options with defaults.
func NewBuilder(opts Options) *Builder {
	defaults := DefaultOptions()
	if opts.SameSourceThreshold <= 0 {
		opts.SameSourceThreshold = defaults.SameSourceThreshold
	}
	if opts.CrossSourceThreshold <= 0 {
		opts.CrossSourceThreshold = defaults.CrossSourceThreshold
	}
	if opts.SecondaryWeight <= 0 {
		opts.SecondaryWeight = defaults.SecondaryWeight
	}
	if opts.DescriptionLimit <= 0 {
		opts.DescriptionLimit = defaults.DescriptionLimit
	}
	return &Builder{opts: opts}
}

// Options returns the effective options.
func (b *Builder) Options() Options {
	return b.opts
}

type fingerprint struct {
	titleGrams similarity.Set
	descGrams  similarity.Set
	titleWords similarity.Set
	descWords  similarity.Set
}

func (b *Builder) fingerprint(article models.Article) fingerprint {
	desc := truncate(article.Description, b.opts.DescriptionLimit)
	return fingerprint{
		titleGrams: similarity.Trigrams(article.Title),
		descGrams:  similarity.Trigrams(desc),
		titleWords: similarity.Words(article.Title),
		descWords:  similarity.Words(desc),
	}
}

func (b *Builder) score(x, y fingerprint) float64 {
	return max(
		similarity.JaccardSimilarity(x.titleGrams, y.titleGrams),
		similarity.JaccardSimilarity(x.descGrams, y.descGrams)*b.opts.SecondaryWeight,
		similarity.DiceSimilarity(x.descWords, y.descWords),
		similarity.DiceSimilarity(x.titleWords, y.titleWords)*b.opts.SecondaryWeight,
	)
}

// Score returns the duplicate score of a pair: the strongest of the four
// similarity signals.
func (b *Builder) Score(x, y models.Article) float64 {
	return b.score(b.fingerprint(x), b.fingerprint(y))
}

// Threshold returns the score a pair must exceed to be merged.
func (b *Builder) Threshold(x, y models.Article) float64 {
	if x.Source == y.Source {
		return b.opts.SameSourceThreshold
	}
	return b.opts.CrossSourceThreshold
}

// Build clusters the articles. The result is ordered by primary publish date,
// most recent first, and is fully determined by the input order.
func (b *Builder) Build(articles []models.Article) []models.Cluster {
	n := len(articles)
	if n == 0 {
		return []models.Cluster{}
	}

	prints := make([]fingerprint, n)
	for i, article := range articles {
		prints[i] = b.fingerprint(article)
	}

	sets := NewDisjointSet(n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if b.score(prints[i], prints[j]) > b.Threshold(articles[i], articles[j]) {
				sets.Union(i, j)
			}
		}
	}

	var roots []int
	members := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := sets.Find(i)
		if _, seen := members[root]; !seen {
			roots = append(roots, root)
		}
		members[root] = append(members[root], i)
	}

	built := make([]indexedCluster, 0, len(roots))
	for _, root := range roots {
		built = append(built, collapse(articles, members[root]))
	}

	sort.SliceStable(built, func(i, j int) bool {
		pi := built[i].cluster.Primary.PublishDate
		pj := built[j].cluster.Primary.PublishDate
		if !pi.Equal(pj) {
			return pi.After(pj)
		}
		return built[i].primaryIndex < built[j].primaryIndex
	})

	clusters := make([]models.Cluster, len(built))
	for i, c := range built {
		clusters[i] = c.cluster
	}
	return clusters
}

type indexedCluster struct {
	cluster      models.Cluster
	primaryIndex int
}

// collapse keeps the latest article per source (an outlet's corrected
// version), then picks the earliest of those as primary. indices must be
// ascending so equal publish dates resolve to the lowest index.
func collapse(articles []models.Article, indices []int) indexedCluster {
	latest := make(map[string]int)
	var sources []string
	for _, idx := range indices {
		source := articles[idx].Source
		current, ok := latest[source]
		if !ok {
			sources = append(sources, source)
			latest[source] = idx
			continue
		}
		if articles[idx].PublishDate.After(articles[current].PublishDate) {
			latest[source] = idx
		}
	}

	kept := make([]int, 0, len(sources))
	for _, source := range sources {
		kept = append(kept, latest[source])
	}
	sort.Slice(kept, func(i, j int) bool {
		pi := articles[kept[i]].PublishDate
		pj := articles[kept[j]].PublishDate
		if !pi.Equal(pj) {
			return pi.Before(pj)
		}
		return kept[i] < kept[j]
	})

	primary := articles[kept[0]]
	duplicates := make([]models.Article, 0, len(kept)-1)
	for _, idx := range kept[1:] {
		if articles[idx].Source == primary.Source {
			continue
		}
		duplicates = append(duplicates, articles[idx])
	}

	return indexedCluster{
		cluster:      models.Cluster{Primary: primary, Duplicates: duplicates},
		primaryIndex: kept[0],
	}
}

func truncate(text string, limit int) string {
	count := 0
	for i := range text {
		if count == limit {
			return text[:i]
		}
		count++
	}
	return text
}
