package catalog

import (
	"net/http"
	"net/url"
	"strconv"
)

type SortKey string

const (
	SortName     SortKey = "name"
	SortDate     SortKey = "date"
	SortCreated  SortKey = "created"
	SortModified SortKey = "modified"
	SortRating   SortKey = "rating"
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// PrintFilter is the exposed printed-state filter. The data model keeps
// printed and to_print independent; the filter offers one choice at a time.
type PrintFilter string

const (
	PrintAll    PrintFilter = "all"
	PrintYes    PrintFilter = "yes"
	PrintNo     PrintFilter = "no"
	PrintQueued PrintFilter = "to_print"
)

// Query is the composable, immutable filter/sort/pagination descriptor. All
// With* methods return a copy; any change other than the page number resets
// the page to 1.
type Query struct {
	Term     string
	Tags     []string // AND semantics: a result carries all of them
	Print    PrintFilter
	Rating   int // 0 = any, else exact 1..5
	Sort     SortKey
	Order    SortOrder
	Page     int // 1-based
	PageSize int
}

func (q Query) WithTerm(term string) Query {
	q.Term = term
	q.Page = 1
	return q
}

func (q Query) WithTags(tags []string) Query {
	q.Tags = append([]string(nil), tags...)
	q.Page = 1
	return q
}

func (q Query) WithTagAdded(tag string) Query {
	for _, t := range q.Tags {
		if t == tag {
			return q
		}
	}
	tags := append(append([]string(nil), q.Tags...), tag)
	return q.WithTags(tags)
}

func (q Query) WithTagRemoved(tag string) Query {
	var tags []string
	for _, t := range q.Tags {
		if t != tag {
			tags = append(tags, t)
		}
	}
	return q.WithTags(tags)
}

func (q Query) WithPrint(p PrintFilter) Query {
	q.Print = p
	q.Page = 1
	return q
}

func (q Query) WithRating(r int) Query {
	q.Rating = r
	q.Page = 1
	return q
}

func (q Query) WithSort(key SortKey, order SortOrder) Query {
	q.Sort = key
	q.Order = order
	q.Page = 1
	return q
}

func (q Query) WithPage(page int) Query {
	if page < 1 {
		page = 1
	}
	q.Page = page
	return q
}

func (q Query) WithPageSize(size int) Query {
	q.PageSize = size
	q.Page = 1
	return q
}

// Equal reports whether two queries would produce the same request.
func (q Query) Equal(o Query) bool {
	if q.Term != o.Term || q.Print != o.Print || q.Rating != o.Rating ||
		q.Sort != o.Sort || q.Order != o.Order || q.Page != o.Page || q.PageSize != o.PageSize {
		return false
	}
	if len(q.Tags) != len(o.Tags) {
		return false
	}
	for i := range q.Tags {
		if q.Tags[i] != o.Tags[i] {
			return false
		}
	}
	return true
}

// Descriptor is the canonical request derived from a Query.
type Descriptor struct {
	Method string
	Path   string
	Values url.Values
}

// Descriptor maps the query to its request. Tags serialize as repeated
// parameters so tag tokens stay unambiguous; the rating parameter is omitted
// entirely for "any"; the print filter emits at most one of printed=true,
// printed=false, or to_print=true.
func (q Query) Descriptor() Descriptor {
	v := url.Values{}
	if q.Term != "" {
		v.Set("q", q.Term)
	}
	for _, t := range q.Tags {
		v.Add("tag", t)
	}
	switch q.Print {
	case PrintYes:
		v.Set("printed", "true")
	case PrintNo:
		v.Set("printed", "false")
	case PrintQueued:
		v.Set("to_print", "true")
	}
	if q.Rating != 0 {
		v.Set("rating", strconv.Itoa(q.Rating))
	}
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	if q.Order != "" {
		v.Set("order", string(q.Order))
	}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("page_size", strconv.Itoa(q.PageSize))
	return Descriptor{Method: http.MethodGet, Path: "/folders", Values: v}
}

// PageCount derives the total page count for a result total. Always at
// least 1 so an empty result still has a current page.
func PageCount(total, pageSize int) int {
	if pageSize <= 0 {
		return 1
	}
	n := (total + pageSize - 1) / pageSize
	if n < 1 {
		n = 1
	}
	return n
}
