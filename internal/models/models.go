package models

import (
	"time"
)

// Article represents a single scraped news item as stored in the news table
type Article struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishDate time.Time `json:"publish_date"`
	IngestDate  time.Time `json:"ingest_date"`
}

// Cluster groups articles reporting the same event. Primary is the earliest
// report; Duplicates holds at most one article per other source.
type Cluster struct {
	Primary    Article   `json:"primary"`
	Duplicates []Article `json:"duplicates"`
}

// SourceCount returns the number of distinct outlets in the cluster
func (c Cluster) SourceCount() int {
	return len(c.Duplicates) + 1
}

// Sources lists the outlet names, primary first
func (c Cluster) Sources() []string {
	sources := make([]string, 0, c.SourceCount())
	sources = append(sources, c.Primary.Source)
	for _, dup := range c.Duplicates {
		sources = append(sources, dup.Source)
	}
	return sources
}

// ClusterFeed is the API envelope for a list of clusters
type ClusterFeed struct {
	Clusters    []Cluster `json:"clusters"`
	Count       int       `json:"count"`
	Total       int       `json:"total"`
	Watermark   *int64    `json:"watermark,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// ClusterQuery represents the OData-style query options accepted by the API
type ClusterQuery struct {
	Filter string `json:"filter"`
	Top    int    `json:"top"`
	Skip   int    `json:"skip"`
}
