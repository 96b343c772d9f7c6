package controller

import (
	"github.com/jolivier22/stlmanager/internal/cache"
	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/config"
	"github.com/jolivier22/stlmanager/internal/logging"
	"github.com/jolivier22/stlmanager/internal/prefs"
)

// ViewState is the catalog view's lifecycle. Errored presents as an empty
// result set with total 0, never a fault: the view stays interactive and any
// state change retries naturally.
type ViewState int

const (
	Idle ViewState = iota
	Loading
	Loaded
	Errored
)

// Job is one list query to execute: the settled query, its canonical request
// descriptor, and the staleness token its result must present back.
type Job struct {
	Token      uint64
	Query      catalog.Query
	Descriptor catalog.Descriptor
}

// Controller owns the composable filter/sort/page state. Mutators only mark
// the state dirty; Flush derives at most one Job per settled state, so rapid
// successive changes in the same tick coalesce into a single request.
// Results come back through ApplyResult, which guards staleness by token,
// clamps the page when the result set shrank, and hands back the single
// corrective re-query that clamp requires.
type Controller struct {
	store *prefs.Store
	cache *cache.Store
	log   *logging.Logger

	query    catalog.Query
	state    ViewState
	total    int
	gen      uint64
	dirty    bool
	active   bool
	sizes    []int
	clampGen uint64 // token of the in-flight clamp correction, 0 when none

	detailGen  uint64
	detailPath string
}

// New builds the controller, reading persisted defaults from the preference
// store exactly once; later changes write through, nothing polls.
func New(cfg *config.Config, store *prefs.Store, cs *cache.Store, log *logging.Logger) *Controller {
	cat := cfg.Catalog
	q := catalog.Query{
		Sort:     catalog.SortKey(store.GetString(prefs.KeySort, cat.DefaultSort)),
		Order:    catalog.SortOrder(store.GetString(prefs.KeyOrder, cat.DefaultOrder)),
		Print:    catalog.PrintFilter(store.GetString(prefs.KeyPrintFilter, string(catalog.PrintAll))),
		Page:     1,
		PageSize: store.GetInt(prefs.KeyPageSize, cat.DefaultPageSize),
	}
	sizes := cat.PageSizes
	if len(sizes) == 0 {
		sizes = []int{q.PageSize}
	}
	if !allowedSize(sizes, q.PageSize) {
		q.PageSize = sizes[0]
	}
	return &Controller{store: store, cache: cs, log: log, query: q, sizes: sizes, active: true}
}

func (c *Controller) Query() catalog.Query { return c.query }

func (c *Controller) ViewState() ViewState { return c.state }

func (c *Controller) Total() int { return c.total }

func (c *Controller) TotalPages() int {
	return catalog.PageCount(c.total, c.query.PageSize)
}

// PageSizes returns the allowed page sizes.
func (c *Controller) PageSizes() []int { return c.sizes }

func (c *Controller) SetTerm(term string) {
	if c.query.Term == term {
		return
	}
	c.query = c.query.WithTerm(term)
	c.dirty = true
}

func (c *Controller) AddTag(tag string) {
	next := c.query.WithTagAdded(tag)
	if next.Equal(c.query) {
		return
	}
	c.query = next
	c.dirty = true
}

func (c *Controller) RemoveTag(tag string) {
	next := c.query.WithTagRemoved(tag)
	if next.Equal(c.query) {
		return
	}
	c.query = next
	c.dirty = true
}

func (c *Controller) SetPrint(p catalog.PrintFilter) {
	if c.query.Print == p {
		return
	}
	c.query = c.query.WithPrint(p)
	c.dirty = true
	c.persist(prefs.KeyPrintFilter, string(p))
}

func (c *Controller) SetRating(r int) {
	if c.query.Rating == r {
		return
	}
	c.query = c.query.WithRating(r)
	c.dirty = true
}

func (c *Controller) SetSort(key catalog.SortKey, order catalog.SortOrder) {
	if c.query.Sort == key && c.query.Order == order {
		return
	}
	c.query = c.query.WithSort(key, order)
	c.dirty = true
	c.persist(prefs.KeySort, string(key))
	c.persist(prefs.KeyOrder, string(order))
}

func (c *Controller) SetPage(page int) {
	if page < 1 {
		page = 1
	}
	if max := c.TotalPages(); c.state == Loaded && page > max {
		page = max
	}
	if c.query.Page == page {
		return
	}
	c.query = c.query.WithPage(page)
	c.dirty = true
}

func (c *Controller) NextPage() { c.SetPage(c.query.Page + 1) }

func (c *Controller) PrevPage() { c.SetPage(c.query.Page - 1) }

// SetPageSize ignores sizes outside the allowed set.
func (c *Controller) SetPageSize(size int) {
	if !allowedSize(c.sizes, size) || c.query.PageSize == size {
		return
	}
	c.query = c.query.WithPageSize(size)
	c.dirty = true
	c.persist(prefs.KeyPageSize, size)
}

// Suspend marks the catalog view inactive: state changes made while away
// accumulate but trigger no query.
func (c *Controller) Suspend() { c.active = false }

// Resume reactivates the view; the next Flush re-queries even without an
// intervening change, so stale results from before the switch refresh.
func (c *Controller) Resume() {
	c.active = true
	c.dirty = true
}

// Flush emits the single Job for the settled state, or nil when nothing
// changed or the view is inactive. Bumps the generation so every older
// in-flight response becomes stale the moment a new request is issued.
func (c *Controller) Flush() *Job {
	if !c.dirty || !c.active {
		return nil
	}
	c.dirty = false
	c.clampGen = 0
	return c.issue()
}

func (c *Controller) issue() *Job {
	c.gen++
	c.state = Loading
	return &Job{Token: c.gen, Query: c.query, Descriptor: c.query.Descriptor()}
}

// ApplyResult settles a list response; page carries the query that produced
// it, and the cache rejects the page when that query no longer matches the
// controller's. Stale tokens are discarded outright.
// Failures degrade to an empty page with total 0 (Errored). A success whose
// total no longer justifies the current page clamps to the last page and
// returns exactly one corrective Job; the correction uses the already-known
// total and is never re-derived from its own response.
func (c *Controller) ApplyResult(token uint64, page catalog.Page, err error) *Job {
	if token != c.gen {
		return nil
	}
	if err != nil {
		c.log.Warnf("list query failed: %v", err)
		c.total = 0
		c.state = Errored
		c.cache.ReplacePage(catalog.Page{Query: c.query}, c.query)
		return nil
	}

	c.total = page.Total
	c.state = Loaded

	wasCorrection := c.clampGen == token
	c.clampGen = 0
	if max := c.TotalPages(); !wasCorrection && c.query.Page > max {
		c.query = c.query.WithPage(max)
		job := c.issue()
		c.clampGen = job.Token
		return job
	}

	c.cache.ReplacePage(page, c.query)
	return nil
}

func (c *Controller) persist(key string, value any) {
	if err := c.store.Set(key, value); err != nil {
		c.log.Warnf("persist %s: %v", key, err)
	}
}

func allowedSize(sizes []int, v int) bool {
	for _, s := range sizes {
		if s == v {
			return true
		}
	}
	return false
}
