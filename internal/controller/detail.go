package controller

import "github.com/jolivier22/stlmanager/internal/catalog"

// Detail loads carry their own generation so a slow response for a project
// the user already navigated away from never lands in the cache.

// OpenDetail registers intent to load the project at path and returns the
// token its response must carry.
func (c *Controller) OpenDetail(path string) uint64 {
	c.detailGen++
	c.detailPath = path
	return c.detailGen
}

// ApplyDetail settles a detail response. Stale tokens and failures both
// report false; on failure the caller surfaces a notification and the view
// falls back to the list.
func (c *Controller) ApplyDetail(token uint64, d *catalog.FolderDetail, err error) bool {
	if token != c.detailGen {
		return false
	}
	if err != nil {
		c.log.Warnf("detail load failed for %s: %v", c.detailPath, err)
		return false
	}
	c.cache.SetDetail(d)
	return true
}

// CloseDetail invalidates any in-flight detail load.
func (c *Controller) CloseDetail() {
	c.detailGen++
	c.detailPath = ""
}
