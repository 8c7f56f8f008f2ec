// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

// @title Stirimm API
// @version 1.0
// @description Near-duplicate clustering of recent Romanian news articles
// @license.name MIT
// @license.url https://opensource.org/licenses/MIT
// @BasePath /api/v1

func init() {
	swag.Register(swag.Name, &swag.Spec{
		InfoInstanceName: "swagger",
		SwaggerTemplate:  docTemplate,
	})
}

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Stirimm API",
        "description": "Near-duplicate clustering of recent Romanian news articles",
        "version": "1.0.0",
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        }
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "consumes": ["application/json"],
    "produces": ["application/json"],
    "paths": {
        "/clusters": {
            "get": {
                "description": "Clusters of the most recent articles, newest primary article first",
                "summary": "List Clusters",
                "operationId": "getClusters",
                "parameters": [
                    {"$ref": "#/parameters/filter"},
                    {"$ref": "#/parameters/top"},
                    {"$ref": "#/parameters/skip"}
                ],
                "responses": {
                    "200": {
                        "description": "A page of clusters",
                        "schema": {"$ref": "#/definitions/ClusterFeed"}
                    },
                    "400": {"description": "Invalid query options", "schema": {"$ref": "#/definitions/Error"}},
                    "503": {"description": "Clusters could not be computed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/clusters/popular": {
            "get": {
                "description": "Clusters reported by more than one source, ordered by number of sources",
                "summary": "List Popular Clusters",
                "operationId": "getPopularClusters",
                "parameters": [
                    {"$ref": "#/parameters/filter"},
                    {"$ref": "#/parameters/top"},
                    {"$ref": "#/parameters/skip"}
                ],
                "responses": {
                    "200": {
                        "description": "A page of clusters",
                        "schema": {"$ref": "#/definitions/ClusterFeed"}
                    },
                    "400": {"description": "Invalid query options", "schema": {"$ref": "#/definitions/Error"}},
                    "503": {"description": "Clusters could not be computed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/cache/status": {
            "get": {
                "description": "Cluster cache counters and change monitor state",
                "summary": "Cache Status",
                "operationId": "getCacheStatus",
                "responses": {
                    "200": {
                        "description": "Cache and monitor status",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "cache": {"$ref": "#/definitions/CacheStats"},
                                "monitor": {"$ref": "#/definitions/MonitorStatus"}
                            }
                        }
                    }
                }
            }
        },
        "/cache/refresh": {
            "post": {
                "description": "Recompute the clusters from the article store now",
                "summary": "Refresh Cache",
                "operationId": "refreshCache",
                "responses": {
                    "200": {"description": "Cache refreshed"},
                    "500": {"description": "Refresh failed, previous clusters are still served", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        },
        "/cache/safety-check": {
            "post": {
                "description": "Compare the store watermark with the cache and refresh on mismatch",
                "summary": "Run Safety Check",
                "operationId": "runSafetyCheck",
                "responses": {
                    "200": {
                        "description": "Safety check completed",
                        "schema": {
                            "type": "object",
                            "properties": {
                                "refreshed": {"type": "boolean"}
                            }
                        }
                    },
                    "500": {"description": "Safety check failed", "schema": {"$ref": "#/definitions/Error"}}
                }
            }
        }
    },
    "parameters": {
        "filter": {
            "name": "$filter",
            "in": "query",
            "required": false,
            "type": "string",
            "description": "Filter expression, e.g. source_count ge 2 and contains(title, 'Cluj'). Fields: title, description, url, source, sources, published_at, source_count"
        },
        "top": {
            "name": "$top",
            "in": "query",
            "required": false,
            "type": "integer",
            "minimum": 1,
            "maximum": 1000,
            "description": "Maximum number of clusters"
        },
        "skip": {
            "name": "$skip",
            "in": "query",
            "required": false,
            "type": "integer",
            "minimum": 0,
            "description": "Number of clusters to skip"
        }
    },
    "definitions": {
        "Article": {
            "type": "object",
            "properties": {
                "id": {"type": "integer", "format": "int64"},
                "title": {"type": "string"},
                "description": {"type": "string"},
                "url": {"type": "string"},
                "source": {"type": "string"},
                "publish_date": {"type": "string", "format": "date-time"},
                "ingest_date": {"type": "string", "format": "date-time"}
            }
        },
        "Cluster": {
            "type": "object",
            "properties": {
                "primary": {"$ref": "#/definitions/Article"},
                "duplicates": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Article"}
                }
            }
        },
        "ClusterFeed": {
            "type": "object",
            "properties": {
                "clusters": {
                    "type": "array",
                    "items": {"$ref": "#/definitions/Cluster"}
                },
                "count": {"type": "integer"},
                "total": {"type": "integer"},
                "watermark": {"type": "integer", "format": "int64"},
                "refreshed_at": {"type": "string", "format": "date-time"}
            }
        },
        "CacheStats": {
            "type": "object",
            "properties": {
                "hits": {"type": "integer"},
                "misses": {"type": "integer"},
                "refreshes": {"type": "integer"},
                "failures": {"type": "integer"},
                "last_refresh": {"type": "string", "format": "date-time"},
                "last_duration": {"type": "integer", "description": "nanoseconds"},
                "last_error": {"type": "string"},
                "populated": {"type": "boolean"},
                "cluster_count": {"type": "integer"},
                "article_count": {"type": "integer"},
                "has_watermark": {"type": "boolean"},
                "watermark": {"type": "integer", "format": "int64"}
            }
        },
        "MonitorStatus": {
            "type": "object",
            "properties": {
                "running": {"type": "boolean"},
                "listener_enabled": {"type": "boolean"},
                "listening": {"type": "boolean"},
                "topic": {"type": "string"},
                "notifications": {"type": "integer"},
                "last_notification": {"type": "string", "format": "date-time"},
                "reconnects": {"type": "integer"},
                "safety_checks": {"type": "integer"},
                "last_safety_check": {"type": "string", "format": "date-time"},
                "missed_changes": {"type": "integer"}
            }
        },
        "Error": {
            "type": "object",
            "properties": {
                "error": {"type": "string"}
            }
        }
    }
}`
