package cache

import (
	"strings"

	"github.com/jolivier22/stlmanager/internal/catalog"
)

// Store holds the visible catalog page and the currently open detail record.
// It is the single source of truth for rendering; all writes go through its
// apply methods, so no other component can tear its state.
type Store struct {
	page   catalog.Page
	detail *catalog.FolderDetail
}

func New() *Store {
	return &Store{}
}

func (s *Store) Page() catalog.Page { return s.page }

func (s *Store) Detail() *catalog.FolderDetail { return s.detail }

// ReplacePage installs a fresh list result, but only if its originating query
// still matches current. A slow response to an old query is discarded, never
// applied over newer state. Reports whether the page was applied.
func (s *Store) ReplacePage(p catalog.Page, current catalog.Query) bool {
	if !p.Query.Equal(current) {
		return false
	}
	s.page = p
	return true
}

// SetDetail installs the open detail record.
func (s *Store) SetDetail(d *catalog.FolderDetail) { s.detail = d }

// ClearDetail drops the open detail record (navigation away, project delete).
func (s *Store) ClearDetail() { s.detail = nil }

// RemoveProject removes a confirmed-deleted record from the visible page and
// clears the detail if it was the open one. Deletion is never optimistic, so
// this runs only after server confirmation.
func (s *Store) RemoveProject(path string) {
	items := s.page.Items[:0]
	for _, r := range s.page.Items {
		if r.Path != path {
			items = append(items, r)
		}
	}
	if len(items) < len(s.page.Items) {
		s.page.Items = items
		if s.page.Total > 0 {
			s.page.Total--
		}
	}
	if s.detail != nil && s.detail.Path == path {
		s.detail = nil
	}
}

// Mutation is one in-flight optimistic write. The pre-mutation values are
// snapshotted at begin time; Rollback restores them exactly, Commit overlays
// the server-confirmed patch on top of the optimistic state.
type Mutation struct {
	store      *Store
	path       string
	recordIdx  int // -1 when the record is not on the visible page
	prevRecord catalog.FolderRecord
	prevDetail *catalog.FolderDetail
	settled    bool
}

func (s *Store) begin(path string) *Mutation {
	m := &Mutation{store: s, path: path, recordIdx: -1}
	for i := range s.page.Items {
		if s.page.Items[i].Path == path {
			m.recordIdx = i
			m.prevRecord = copyRecord(s.page.Items[i])
			break
		}
	}
	if s.detail != nil && s.detail.Path == path {
		m.prevDetail = copyDetail(s.detail)
	}
	return m
}

// Rollback restores the exact pre-mutation state. Safe to call once.
func (m *Mutation) Rollback() {
	if m.settled {
		return
	}
	m.settled = true
	if m.recordIdx >= 0 && m.recordIdx < len(m.store.page.Items) {
		m.store.page.Items[m.recordIdx] = m.prevRecord
	}
	if m.prevDetail != nil && m.store.detail != nil && m.store.detail.Path == m.path {
		m.store.detail = m.prevDetail
	}
}

// Commit overlays server-confirmed fields (recomputed counts, thumbnail after
// a preview change, the new path after a rename) on the optimistic state.
// A nil patch keeps the optimistic values.
func (m *Mutation) Commit(patch *catalog.Patch) {
	if m.settled {
		return
	}
	m.settled = true
	if patch == nil {
		return
	}
	m.store.eachView(m.path, func(r *catalog.FolderRecord) {
		applyPatchRecord(r, patch)
	})
	if patch.Hero != nil && m.store.detail != nil && m.store.detail.Path == m.path {
		m.store.detail.Hero = *patch.Hero
	}
	if patch.Path != nil && *patch.Path != m.path {
		m.store.rewritePaths(m.path, *patch.Path)
	}
}

// eachView runs fn on the matching list record and the open detail, the two
// local views of one remote record.
func (s *Store) eachView(path string, fn func(*catalog.FolderRecord)) {
	for i := range s.page.Items {
		if s.page.Items[i].Path == path {
			fn(&s.page.Items[i])
			break
		}
	}
	if s.detail != nil && s.detail.Path == path {
		fn(&s.detail.FolderRecord)
	}
}

// ApplyRating writes the new rating into both views before the network call.
func (s *Store) ApplyRating(path string, rating *int) *Mutation {
	m := s.begin(path)
	s.eachView(path, func(r *catalog.FolderRecord) {
		r.Rating = copyIntPtr(rating)
	})
	return m
}

func (s *Store) ApplyPrinted(path string, printed bool) *Mutation {
	m := s.begin(path)
	s.eachView(path, func(r *catalog.FolderRecord) {
		r.Printed = printed
	})
	return m
}

func (s *Store) ApplyToPrint(path string, toPrint bool) *Mutation {
	m := s.begin(path)
	s.eachView(path, func(r *catalog.FolderRecord) {
		r.ToPrint = toPrint
	})
	return m
}

func (s *Store) ApplyTagAdded(path, tag string) *Mutation {
	m := s.begin(path)
	s.eachView(path, func(r *catalog.FolderRecord) {
		for _, t := range r.Tags {
			if t == tag {
				return
			}
		}
		r.Tags = append(append([]string(nil), r.Tags...), tag)
	})
	return m
}

func (s *Store) ApplyTagRemoved(path, tag string) *Mutation {
	m := s.begin(path)
	s.eachView(path, func(r *catalog.FolderRecord) {
		var tags []string
		for _, t := range r.Tags {
			if t != tag {
				tags = append(tags, t)
			}
		}
		r.Tags = tags
	})
	return m
}

// ApplyPreview optimistically points the thumbnail at the chosen file; the
// server patch then overwrites it with the recomputed reference.
func (s *Store) ApplyPreview(path, file string) *Mutation {
	m := s.begin(path)
	optimistic := path + "/" + file
	s.eachView(path, func(r *catalog.FolderRecord) {
		r.ThumbnailPath = optimistic
	})
	return m
}

// ApplyRename optimistically shows the new name. The path rewrite is
// structural and happens only on Commit, when the server confirms the new
// path.
func (s *Store) ApplyRename(path, newName string) *Mutation {
	m := s.begin(path)
	s.eachView(path, func(r *catalog.FolderRecord) {
		r.Name = newName
	})
	return m
}

// ApplyFileDeleted removes the filename from the detail's media sequences
// immediately; counts, thumbnail and hero reconcile from the server patch.
func (s *Store) ApplyFileDeleted(path, file string) *Mutation {
	m := s.begin(path)
	if s.detail != nil && s.detail.Path == path {
		d := s.detail
		d.Media.Images = removeString(d.Media.Images, file)
		d.Media.Gifs = removeString(d.Media.Gifs, file)
		d.Media.Videos = removeString(d.Media.Videos, file)
		d.Media.Archives = removeString(d.Media.Archives, file)
		d.Media.Stls = removeString(d.Media.Stls, file)
		d.Media.Others = removeString(d.Media.Others, file)
		if d.MediaSizes != nil {
			delete(d.MediaSizes, file)
		}
	}
	return m
}

// rewritePaths rewrites the record identity and any path-prefixed derived
// references after a confirmed rename. Only exact-prefix matches of the old
// path are substituted, so unrelated paths that merely share a substring
// stay untouched.
func (s *Store) rewritePaths(oldPath, newPath string) {
	rewriteRecord := func(r *catalog.FolderRecord) {
		r.Path = newPath
		r.Rel = lastSegment(newPath)
		r.ThumbnailPath = replacePathPrefix(r.ThumbnailPath, oldPath, newPath)
	}
	for i := range s.page.Items {
		if s.page.Items[i].Path == oldPath {
			rewriteRecord(&s.page.Items[i])
			break
		}
	}
	if s.detail != nil && s.detail.Path == oldPath {
		rewriteRecord(&s.detail.FolderRecord)
		s.detail.Hero = replacePathPrefix(s.detail.Hero, oldPath, newPath)
	}
}

// replacePathPrefix substitutes old for new when ref is old itself or lives
// under it. "/col/dragonfly" is not under "/col/dragon".
func replacePathPrefix(ref, old, new string) string {
	if ref == old {
		return new
	}
	if strings.HasPrefix(ref, old+"/") {
		return new + ref[len(old):]
	}
	return ref
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}

func applyPatchRecord(r *catalog.FolderRecord, patch *catalog.Patch) {
	if patch.Name != nil {
		r.Name = *patch.Name
	}
	if patch.Counts != nil {
		r.Counts = *patch.Counts
	}
	if patch.Tags != nil {
		r.Tags = append([]string(nil), patch.Tags...)
	}
	if patch.Rating != nil {
		r.Rating = copyIntPtr(patch.Rating)
	}
	if patch.ThumbnailPath != nil {
		r.ThumbnailPath = *patch.ThumbnailPath
	}
	if patch.Printed != nil {
		r.Printed = *patch.Printed
	}
	if patch.ToPrint != nil {
		r.ToPrint = *patch.ToPrint
	}
}

func copyIntPtr(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyRecord(r catalog.FolderRecord) catalog.FolderRecord {
	out := r
	out.Tags = append([]string(nil), r.Tags...)
	out.Rating = copyIntPtr(r.Rating)
	return out
}

func copyDetail(d *catalog.FolderDetail) *catalog.FolderDetail {
	out := *d
	out.FolderRecord = copyRecord(d.FolderRecord)
	out.Media.Images = append([]string(nil), d.Media.Images...)
	out.Media.Gifs = append([]string(nil), d.Media.Gifs...)
	out.Media.Videos = append([]string(nil), d.Media.Videos...)
	out.Media.Archives = append([]string(nil), d.Media.Archives...)
	out.Media.Stls = append([]string(nil), d.Media.Stls...)
	out.Media.Others = append([]string(nil), d.Media.Others...)
	if d.MediaSizes != nil {
		out.MediaSizes = make(map[string]int64, len(d.MediaSizes))
		for k, v := range d.MediaSizes {
			out.MediaSizes[k] = v
		}
	}
	return &out
}

func removeString(xs []string, s string) []string {
	var out []string
	for _, x := range xs {
		if x != s {
			out = append(out, x)
		}
	}
	return out
}
