package query

import (
	"sort"

	"stirimm/internal/models"
)

// Apply filters clusters and returns the requested page along with the
// number of clusters that matched before paging. The input is not modified.
func Apply(clusters []models.Cluster, q models.ClusterQuery) ([]models.Cluster, int, error) {
	parser := NewFilterParser()
	expr, err := parser.Parse(q.Filter)
	if err != nil {
		return nil, 0, err
	}

	matched := clusters
	if expr != nil {
		matched = make([]models.Cluster, 0, len(clusters))
		for _, cluster := range clusters {
			ok, err := parser.Evaluate(expr, cluster)
			if err != nil {
				return nil, 0, err
			}
			if ok {
				matched = append(matched, cluster)
			}
		}
	}

	total := len(matched)
	if q.Skip > 0 {
		if q.Skip >= len(matched) {
			return []models.Cluster{}, total, nil
		}
		matched = matched[q.Skip:]
	}
	if q.Top > 0 && q.Top < len(matched) {
		matched = matched[:q.Top]
	}

	page := make([]models.Cluster, len(matched))
	copy(page, matched)
	return page, total, nil
}

// Popular returns the clusters reported by more than one source, most
// sources first. Clusters with equal source counts keep their recency order.
func Popular(clusters []models.Cluster) []models.Cluster {
	popular := make([]models.Cluster, 0, len(clusters))
	for _, cluster := range clusters {
		if len(cluster.Duplicates) > 0 {
			popular = append(popular, cluster)
		}
	}

	sort.SliceStable(popular, func(i, j int) bool {
		return popular[i].SourceCount() > popular[j].SourceCount()
	})
	return popular
}
