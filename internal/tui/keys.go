package tui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/dupes"
	"github.com/jolivier22/stlmanager/internal/prefs"
)

func (m *Model) updateKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.modal != nil {
		return m.updateModal(msg)
	}
	if m.searching {
		return m.updateSearchKey(msg)
	}
	if m.tagging {
		return m.updateTagKey(msg)
	}
	if m.excluding {
		return m.updateExcludeKey(msg)
	}

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	switch m.activeTab {
	case tabCatalog:
		return m.updateCatalogKey(msg)
	case tabDetail:
		return m.updateDetailKey(msg)
	case tabDupes:
		return m.updateDupesKey(msg)
	case tabTags:
		return m.updateTagsKey(msg)
	case tabSettings:
		return m.updateSettingsKey(msg)
	}
	return m, nil
}

// switchTab suspends the catalog controller while another view has focus and
// resumes it on the way back, so changes made elsewhere trigger exactly one
// refresh on return.
func (m *Model) switchTab(to tab) tea.Cmd {
	if m.activeTab == to {
		return nil
	}
	from := m.activeTab
	m.activeTab = to
	if to == tabCatalog {
		m.sess.Controller.Resume()
		return m.flushCmd()
	}
	if from == tabCatalog {
		m.sess.Controller.Suspend()
	}
	switch to {
	case tabDupes:
		if m.dupeState.Phase == dupes.Idle {
			m.sess.Dupes.Start(context.Background(), m.sess.DuplicateParams())
		}
	case tabTags:
		return m.tagCountsCmd()
	}
	return nil
}

func (m *Model) updateCatalogKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctl := m.sess.Controller
	items := m.sess.Cache.Page().Items

	switch msg.String() {
	case "/":
		m.searching = true
		m.searchInput.SetValue(ctl.Query().Term)
		m.searchInput.Focus()
		return m, nil
	case "j", "down":
		if m.selected < len(items)-1 {
			m.selected++
		}
		return m, nil
	case "k", "up":
		if m.selected > 0 {
			m.selected--
		}
		return m, nil
	case "h", "left":
		ctl.PrevPage()
		return m, m.flushCmd()
	case "l", "right":
		ctl.NextPage()
		return m, m.flushCmd()
	case "s":
		ctl.SetSort(nextSortKey(ctl.Query().Sort), ctl.Query().Order)
		return m, m.flushCmd()
	case "o":
		order := catalog.Asc
		if ctl.Query().Order == catalog.Asc {
			order = catalog.Desc
		}
		ctl.SetSort(ctl.Query().Sort, order)
		return m, m.flushCmd()
	case "f":
		ctl.SetPrint(nextPrintFilter(ctl.Query().Print))
		return m, m.flushCmd()
	case "m":
		ctl.SetRating((ctl.Query().Rating + 1) % 6)
		return m, m.flushCmd()
	case "z":
		ctl.SetPageSize(nextPageSize(ctl.PageSizes(), ctl.Query().PageSize))
		return m, m.flushCmd()
	case "u":
		ctl.SetTerm("")
		for _, t := range ctl.Query().Tags {
			ctl.RemoveTag(t)
		}
		ctl.SetRating(0)
		ctl.SetPrint(catalog.PrintAll)
		return m, m.flushCmd()
	case "x":
		if tags := ctl.Query().Tags; len(tags) > 0 {
			ctl.RemoveTag(tags[len(tags)-1])
			return m, m.flushCmd()
		}
		return m, nil
	case "enter":
		if m.selected >= 0 && m.selected < len(items) {
			m.activeTab = tabDetail
			m.sess.Controller.Suspend()
			return m, m.detailCmd(items[m.selected].Path)
		}
		return m, nil
	case "S":
		m.addToast("incremental scan started")
		return m, m.scanCmd("incremental")
	case "F":
		m.addToast("full scan started")
		return m, m.scanCmd("full")
	case "2":
		return m, m.switchTab(tabDupes)
	case "3":
		return m, m.switchTab(tabTags)
	case "4":
		return m, m.switchTab(tabSettings)
	}
	return m, nil
}

func (m *Model) updateSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.searching = false
		m.searchInput.Blur()
		m.searchHints = nil
		m.sess.Search.SetInput("")
		m.sess.Controller.SetTerm(m.searchInput.Value())
		return m, m.flushCmd()
	case "esc":
		m.searching = false
		m.searchInput.Blur()
		m.searchHints = nil
		m.sess.Search.SetInput("")
		return m, nil
	case "tab":
		// promote the top suggestion to a tag filter
		if len(m.searchHints) > 0 {
			m.sess.Controller.AddTag(m.searchHints[0])
			m.searchInput.Reset()
			m.searchHints = nil
			m.sess.Search.SetInput("")
			return m, m.flushCmd()
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	m.sess.Search.SetInput(m.searchInput.Value())
	return m, cmd
}

func (m *Model) updateDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.sess.Cache.Detail()
	if d == nil {
		if msg.String() == "esc" {
			m.closeDetail()
			m.sess.Controller.Resume()
			return m, m.flushCmd()
		}
		return m, nil
	}

	switch msg.String() {
	case "esc":
		m.closeDetail()
		m.sess.Controller.Resume()
		return m, m.flushCmd()
	case "t":
		m.tagging = true
		m.tagInput.Reset()
		m.tagInput.Focus()
		return m, nil
	case "[":
		if m.tagCursor > 0 {
			m.tagCursor--
		}
		return m, nil
	case "]":
		if m.tagCursor < len(d.Tags)-1 {
			m.tagCursor++
		}
		return m, nil
	case "x":
		if m.tagCursor >= 0 && m.tagCursor < len(d.Tags) {
			tag := d.Tags[m.tagCursor]
			if m.tagCursor > 0 {
				m.tagCursor--
			}
			return m, m.removeTagCmd(d.Path, tag)
		}
		return m, nil
	case "p":
		return m, m.setPrintedCmd(d.Path, !d.Printed)
	case "y":
		return m, m.setToPrintCmd(d.Path, !d.ToPrint)
	case "1", "2", "3", "4", "5":
		r := int(msg.String()[0] - '0')
		return m, m.setRatingCmd(d.Path, &r)
	case "0":
		return m, m.setRatingCmd(d.Path, nil)
	case "j", "down":
		if m.mediaCursor < len(mediaFiles(d))-1 {
			m.mediaCursor++
		}
		return m, nil
	case "k", "up":
		if m.mediaCursor > 0 {
			m.mediaCursor--
		}
		return m, nil
	case "v":
		files := mediaFiles(d)
		if m.mediaCursor >= 0 && m.mediaCursor < len(files) {
			return m, m.setPreviewCmd(d.Path, files[m.mediaCursor])
		}
		return m, nil
	case "R":
		path := d.Path
		m.modal = newInputModal("Rename project", d.Name, func(name string) tea.Cmd {
			return m.renameCmd(path, name)
		})
		return m, nil
	case "D":
		files := mediaFiles(d)
		if m.mediaCursor >= 0 && m.mediaCursor < len(files) {
			path, file := d.Path, files[m.mediaCursor]
			m.modal = newConfirmModal("Delete file "+file+"?", func() tea.Cmd {
				return m.deleteFileCmd(path, file)
			})
		}
		return m, nil
	case "X":
		path := d.Path
		m.modal = newConfirmModal("Delete project "+d.Name+" and all its files?", func() tea.Cmd {
			return m.deleteProjectCmd(path)
		})
		return m, nil
	case "G":
		return m, m.fixTagsCmd(d.Path)
	}
	return m, nil
}

func (m *Model) updateTagKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	d := m.sess.Cache.Detail()
	switch msg.String() {
	case "enter":
		value := m.tagInput.Value()
		if len(m.tagHints) > 0 && m.tagCursor < len(m.tagHints) {
			value = m.tagHints[m.tagCursor]
		}
		m.tagging = false
		m.tagInput.Blur()
		m.tagHints = nil
		m.sess.Tags.SetInput("")
		if d == nil || value == "" {
			return m, nil
		}
		return m, m.addTagCmd(d.Path, value)
	case "esc":
		m.tagging = false
		m.tagInput.Blur()
		m.tagHints = nil
		m.sess.Tags.SetInput("")
		return m, nil
	case "down":
		if m.tagCursor < len(m.tagHints)-1 {
			m.tagCursor++
		}
		return m, nil
	case "up":
		if m.tagCursor > 0 {
			m.tagCursor--
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.tagInput, cmd = m.tagInput.Update(msg)
	m.sess.Tags.SetInput(m.tagInput.Value())
	return m, cmd
}

func (m *Model) updateExcludeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		value := m.excludeInput.Value()
		if len(m.excludeHints) > 0 && m.excludeSel < len(m.excludeHints) {
			value = m.excludeHints[m.excludeSel]
		}
		m.excluding = false
		m.excludeInput.Blur()
		m.excludeHints = nil
		m.sess.Exclude.SetInput("")
		if value != "" {
			m.sess.AddExcludeTag(value)
			m.addToast("excluded #" + value + " (r to re-run)")
		}
		return m, nil
	case "esc":
		m.excluding = false
		m.excludeInput.Blur()
		m.excludeHints = nil
		m.sess.Exclude.SetInput("")
		return m, nil
	case "down":
		if m.excludeSel < len(m.excludeHints)-1 {
			m.excludeSel++
		}
		return m, nil
	case "up":
		if m.excludeSel > 0 {
			m.excludeSel--
		}
		return m, nil
	}
	var cmd tea.Cmd
	m.excludeInput, cmd = m.excludeInput.Update(msg)
	m.sess.Exclude.SetInput(m.excludeInput.Value())
	return m, cmd
}

func (m *Model) updateDupesKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "1":
		return m, m.switchTab(tabCatalog)
	case "3":
		return m, m.switchTab(tabTags)
	case "4":
		return m, m.switchTab(tabSettings)
	case "r":
		m.sess.Dupes.Start(context.Background(), m.sess.DuplicateParams())
		return m, nil
	case "e":
		m.excluding = true
		m.excludeInput.Reset()
		m.excludeInput.Focus()
		return m, nil
	case "j", "down":
		if m.dupeSel < len(m.dupeState.Pairs)-1 {
			m.dupeSel++
		}
		return m, nil
	case "k", "up":
		if m.dupeSel > 0 {
			m.dupeSel--
		}
		return m, nil
	case "enter":
		if m.dupeSel >= 0 && m.dupeSel < len(m.dupeState.Pairs) {
			m.activeTab = tabDetail
			return m, m.detailCmd(m.dupeState.Pairs[m.dupeSel].A.Path)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) updateTagsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "1":
		return m, m.switchTab(tabCatalog)
	case "2":
		return m, m.switchTab(tabDupes)
	case "4":
		return m, m.switchTab(tabSettings)
	case "j", "down":
		if m.tagSel < len(m.tagCounts)-1 {
			m.tagSel++
		}
		return m, nil
	case "k", "up":
		if m.tagSel > 0 {
			m.tagSel--
		}
		return m, nil
	case "enter":
		if m.tagSel >= 0 && m.tagSel < len(m.tagCounts) {
			m.sess.Controller.AddTag(m.tagCounts[m.tagSel].Name)
			return m, m.switchTab(tabCatalog)
		}
		return m, nil
	case "r":
		return m, m.tagCountsCmd()
	}
	return m, nil
}

func (m *Model) updateSettingsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "1":
		return m, m.switchTab(tabCatalog)
	case "2":
		return m, m.switchTab(tabDupes)
	case "3":
		return m, m.switchTab(tabTags)
	case "a":
		running := m.sess.Scanner != nil && m.sess.Scanner.Running()
		m.sess.SetAutoScan(!running, scanInterval(m))
		if running {
			m.addToast("auto scan disabled")
		} else {
			m.addToast("auto scan enabled")
		}
		return m, nil
	}
	return m, nil
}

func scanInterval(m *Model) time.Duration {
	mins := m.sess.Prefs.GetInt(prefs.KeyScanInterval, m.cfg.Scan.IntervalMinutes)
	return time.Duration(mins) * time.Minute
}

func nextSortKey(k catalog.SortKey) catalog.SortKey {
	order := []catalog.SortKey{catalog.SortName, catalog.SortDate, catalog.SortCreated, catalog.SortModified, catalog.SortRating}
	for i, s := range order {
		if s == k {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

func nextPrintFilter(p catalog.PrintFilter) catalog.PrintFilter {
	order := []catalog.PrintFilter{catalog.PrintAll, catalog.PrintYes, catalog.PrintNo, catalog.PrintQueued}
	for i, f := range order {
		if f == p {
			return order[(i+1)%len(order)]
		}
	}
	return order[0]
}

func nextPageSize(sizes []int, cur int) int {
	for i, s := range sizes {
		if s == cur {
			return sizes[(i+1)%len(sizes)]
		}
	}
	if len(sizes) > 0 {
		return sizes[0]
	}
	return cur
}
