package query

import (
	"testing"

	"stirimm/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func primaryIDs(clusters []models.Cluster) []int64 {
	ids := make([]int64, 0, len(clusters))
	for _, c := range clusters {
		ids = append(ids, c.Primary.ID)
	}
	return ids
}

func TestApply(t *testing.T) {
	clusters := testClusters()

	tests := []struct {
		name      string
		query     models.ClusterQuery
		wantIDs   []int64
		wantTotal int
	}{
		{"no options", models.ClusterQuery{}, []int64{1, 4, 6}, 3},
		{"top", models.ClusterQuery{Top: 2}, []int64{1, 4}, 3},
		{"skip", models.ClusterQuery{Skip: 1}, []int64{4, 6}, 3},
		{"skip and top", models.ClusterQuery{Skip: 1, Top: 1}, []int64{4}, 3},
		{"skip past end", models.ClusterQuery{Skip: 10}, []int64{}, 3},
		{"top larger than list", models.ClusterQuery{Top: 50}, []int64{1, 4, 6}, 3},
		{"filter then page", models.ClusterQuery{Filter: "source_count ge 2", Skip: 1}, []int64{4}, 2},
		{"filter matches nothing", models.ClusterQuery{Filter: "source eq 'agerpres'"}, []int64{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, total, err := Apply(clusters, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.wantIDs, primaryIDs(page))
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestApply_InvalidFilter(t *testing.T) {
	_, _, err := Apply(testClusters(), models.ClusterQuery{Filter: "author eq 'x'"})
	assert.Error(t, err)
}

func TestApply_DoesNotAliasInput(t *testing.T) {
	clusters := testClusters()
	page, _, err := Apply(clusters, models.ClusterQuery{})
	require.NoError(t, err)

	page[0] = models.Cluster{}
	assert.Equal(t, int64(1), clusters[0].Primary.ID)
}

func TestPopular(t *testing.T) {
	clusters := testClusters()
	// a second two-source cluster after the first one keeps recency order
	clusters = append(clusters, models.Cluster{
		Primary:    models.Article{ID: 7, Source: "agerpres"},
		Duplicates: []models.Article{{ID: 8, Source: "digi24"}},
	})

	popular := Popular(clusters)
	assert.Equal(t, []int64{1, 4, 7}, primaryIDs(popular))
	assert.Len(t, clusters, 4, "input must not be modified")
}

func TestPopular_Empty(t *testing.T) {
	assert.Empty(t, Popular(nil))
	assert.NotNil(t, Popular(nil))
}
