package catalog

import "time"

// Counts holds the per-kind media file counts of a folder.
type Counts struct {
	Images   int `json:"images"`
	Gifs     int `json:"gifs"`
	Videos   int `json:"videos"`
	Archives int `json:"archives"`
	Stls     int `json:"stls"`
}

// FolderRecord is one catalog entry (project). Path is the stable external
// key; Rel is the path relative to the collection root.
type FolderRecord struct {
	Name          string     `json:"name"`
	Path          string     `json:"path"`
	Rel           string     `json:"rel"`
	Counts        Counts     `json:"counts"`
	Tags          []string   `json:"tags,omitempty"`
	Rating        *int       `json:"rating,omitempty"` // nil = unrated, else 0..5
	ThumbnailPath string     `json:"thumbnail_path,omitempty"`
	CreatedAt     *time.Time `json:"created_at,omitempty"`
	ModifiedAt    *time.Time `json:"modified_at,omitempty"`
	Printed       bool       `json:"printed"`
	ToPrint       bool       `json:"to_print"`
}

// Media enumerates a folder's files by kind.
type Media struct {
	Images   []string `json:"images,omitempty"`
	Gifs     []string `json:"gifs,omitempty"`
	Videos   []string `json:"videos,omitempty"`
	Archives []string `json:"archives,omitempty"`
	Stls     []string `json:"stls,omitempty"`
	Others   []string `json:"others,omitempty"`
}

// FolderDetail is the full expansion of one selected record. It is fetched on
// selection and discarded on navigation away; it is reconciled by field-level
// patches after mutations, never merged from a FolderRecord.
type FolderDetail struct {
	FolderRecord
	Hero       string           `json:"hero,omitempty"`
	Media      Media            `json:"media"`
	MediaSizes map[string]int64 `json:"media_sizes,omitempty"`
}

// Page is the result of executing a Query: the records, the total match
// count, and the query that produced it (staleness detection).
type Page struct {
	Items []FolderRecord `json:"items"`
	Total int            `json:"total"`
	Query Query          `json:"-"`
}

// DuplicateSide identifies one half of a duplicate pair.
type DuplicateSide struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	ThumbnailPath string `json:"thumbnail_path,omitempty"`
}

// DuplicatePair is a likely-duplicate match with its score and the shared
// tags that produced it. Never persisted beyond the current view session.
type DuplicatePair struct {
	A          DuplicateSide `json:"a"`
	B          DuplicateSide `json:"b"`
	Score      float64       `json:"score"`
	SharedTags []string      `json:"shared_tags,omitempty"`
}

// TagCount is one entry of the tags-overview listing.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// ReindexSummary reports what an incremental reindex changed.
type ReindexSummary struct {
	Added     int `json:"added"`
	Updated   int `json:"updated"`
	Removed   int `json:"removed"`
	Unchanged int `json:"unchanged"`
}

// DiskUsage is the collection's used/total byte counts.
type DiskUsage struct {
	Used  uint64 `json:"used"`
	Total uint64 `json:"total"`
}

// Patch carries the server-confirmed fields returned by a mutation. Nil
// pointers mean "not returned"; the cache keeps its optimistic value then.
type Patch struct {
	Path          *string  `json:"path,omitempty"` // rename returns the new path
	Name          *string  `json:"name,omitempty"`
	Counts        *Counts  `json:"counts,omitempty"`
	Tags          []string `json:"tags,omitempty"`
	Rating        *int     `json:"rating,omitempty"`
	ThumbnailPath *string  `json:"thumbnail_path,omitempty"`
	Hero          *string  `json:"hero,omitempty"`
	Printed       *bool    `json:"printed,omitempty"`
	ToPrint       *bool    `json:"to_print,omitempty"`
}
