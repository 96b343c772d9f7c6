package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/controller"
	"github.com/jolivier22/stlmanager/internal/dupes"
	"github.com/jolivier22/stlmanager/internal/prefs"
)

func (m *Model) View() string {
	if m.w == 0 {
		m.w = 120
	}
	if m.h == 0 {
		m.h = 30
	}
	if m.modal != nil {
		return m.renderModal()
	}

	header := m.th.border.Render(lipgloss.JoinHorizontal(lipgloss.Top,
		m.th.title.Render("stlman"), "  ", m.renderTabs()))

	var main string
	switch m.activeTab {
	case tabCatalog:
		main = m.renderCatalog()
	case tabDetail:
		main = m.renderDetail()
	case tabDupes:
		main = m.renderDupes()
	case tabTags:
		main = m.renderTags()
	case tabSettings:
		main = m.renderSettings()
	}

	footerText := m.footerLine()
	if !m.healthy && m.healthErr != "" {
		footerText = m.th.warn.Render("server unreachable") + "  " + m.th.footer.Render(footerText)
	} else {
		footerText = m.th.footer.Render(footerText)
	}
	footer := m.th.border.Render(footerText)
	parts := []string{header, m.th.border.Width(m.w - 2).Render(main)}
	if t := m.renderToasts(); t != "" {
		parts = append(parts, m.th.label.Render(t))
	}
	parts = append(parts, footer)
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *Model) renderTabs() string {
	labels := []struct {
		name string
		t    tab
	}{
		{"Catalog", tabCatalog},
		{"Duplicates", tabDupes},
		{"Tags", tabTags},
		{"Settings", tabSettings},
	}
	var sb strings.Builder
	for i, it := range labels {
		style := m.th.tabInactive
		if it.t == m.activeTab || (m.activeTab == tabDetail && it.t == tabCatalog) {
			style = m.th.tabActive
		}
		sb.WriteString(style.Render(it.name))
		if i < len(labels)-1 {
			sb.WriteString("  •  ")
		}
	}
	return sb.String()
}

func (m *Model) footerLine() string {
	switch m.activeTab {
	case tabDetail:
		return "t tag • x untag • p printed • y queue • 1-5/0 rate • v preview • R rename • D del file • X del project • esc back"
	case tabDupes:
		return "j/k nav • enter open • r restart • e exclude tag • esc back"
	case tabTags:
		return "j/k nav • enter filter • r refresh • esc back"
	case tabSettings:
		return "a toggle auto scan • esc back"
	}
	return "/ search • j/k nav • h/l page • s sort • o order • f print filter • z page size • enter open • S scan • q quit"
}

func (m *Model) renderCatalog() string {
	ctl := m.sess.Controller
	page := m.sess.Cache.Page()
	var sb strings.Builder

	sb.WriteString(m.renderFilterBar(ctl))
	sb.WriteString("\n")
	if m.cfg.UI.Compact {
		sb.WriteString(m.th.head.Render(fmt.Sprintf("%-32s  %-6s  %-5s  %s",
			"NAME", "RATE", "PRNT", "TAGS")))
	} else {
		sb.WriteString(m.th.head.Render(fmt.Sprintf("%-32s  %-5s  %-6s  %-6s  %-5s  %s",
			"NAME", "STLS", "IMGS", "RATE", "PRNT", "TAGS")))
	}
	sb.WriteString("\n")

	if ctl.ViewState() == controller.Loading {
		sb.WriteString(m.th.label.Render("loading…"))
		sb.WriteString("\n")
	}
	maxRows := m.h - 12
	if maxRows < 3 {
		maxRows = len(page.Items)
	}
	for i, r := range page.Items {
		var line string
		if m.cfg.UI.Compact {
			line = fmt.Sprintf("%-32s  %-6s  %-5s  %s",
				clip(r.Name, 32), ratingStars(r.Rating), printMark(r),
				m.th.tag.Render(strings.Join(r.Tags, ",")))
		} else {
			line = fmt.Sprintf("%-32s  %-5d  %-6d  %-6s  %-5s  %s",
				clip(r.Name, 32), r.Counts.Stls, r.Counts.Images,
				ratingStars(r.Rating), printMark(r), m.th.tag.Render(strings.Join(r.Tags, ",")))
		}
		if i == m.selected {
			line = m.th.rowSelected.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
		if i+1 >= maxRows {
			break
		}
	}
	if len(page.Items) == 0 && ctl.ViewState() != controller.Loading {
		sb.WriteString(m.th.label.Render("(no projects)"))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	sb.WriteString(m.th.label.Render(fmt.Sprintf("page %d/%d • %d projects",
		ctl.Query().Page, ctl.TotalPages(), ctl.Total())))
	return sb.String()
}

func (m *Model) renderFilterBar(ctl *controller.Controller) string {
	q := ctl.Query()
	var parts []string
	if m.searching {
		bar := "search: " + m.searchInput.View()
		if len(m.searchHints) > 0 {
			bar += "  " + m.th.label.Render("tab→ "+strings.Join(m.searchHints, " "))
		}
		return bar
	}
	if q.Term != "" {
		parts = append(parts, "term:"+q.Term)
	}
	for _, t := range q.Tags {
		parts = append(parts, m.th.tag.Render("#"+t))
	}
	if q.Print != catalog.PrintAll {
		parts = append(parts, "print:"+string(q.Print))
	}
	if q.Rating > 0 {
		parts = append(parts, fmt.Sprintf("rating:%d", q.Rating))
	}
	parts = append(parts, m.th.label.Render(fmt.Sprintf("sort:%s/%s", q.Sort, q.Order)))
	return strings.Join(parts, "  ")
}

func (m *Model) renderDetail() string {
	d := m.sess.Cache.Detail()
	if d == nil {
		return m.th.label.Render("loading…")
	}
	var sb strings.Builder
	sb.WriteString(m.th.title.Render(d.Name))
	sb.WriteString("\n")
	sb.WriteString(m.th.label.Render(d.Rel))
	sb.WriteString("\n\n")

	sb.WriteString(m.th.label.Render("Rating: "))
	sb.WriteString(ratingStars(d.Rating))
	sb.WriteString("   ")
	if d.Printed {
		sb.WriteString(m.th.good.Render("printed"))
	} else if d.ToPrint {
		sb.WriteString(m.th.warn.Render("queued"))
	}
	sb.WriteString("\n\n")

	sb.WriteString(m.th.label.Render("Tags: "))
	for i, t := range d.Tags {
		s := m.th.tag.Render("#" + t)
		if i == m.tagCursor {
			s = m.th.rowSelected.Render("[#" + t + "]")
		}
		sb.WriteString(s + " ")
	}
	if m.tagging {
		sb.WriteString("\n  add: " + m.tagInput.View())
		for i, h := range m.tagHints {
			s := h
			if i == m.tagCursor {
				s = m.th.rowSelected.Render(s)
			}
			sb.WriteString("\n    " + s)
		}
	}
	sb.WriteString("\n\n")

	files := mediaFiles(d)
	sb.WriteString(m.th.head.Render(fmt.Sprintf("FILES (%d)", len(files))))
	sb.WriteString("\n")
	maxRows := m.h - 16
	if maxRows < 3 {
		maxRows = len(files)
	}
	for i, f := range files {
		size := ""
		if n, ok := d.MediaSizes[f]; ok {
			size = humanize.Bytes(uint64(n))
		}
		line := fmt.Sprintf("%-48s  %8s", clip(f, 48), size)
		if f == d.Hero {
			line += "  " + m.th.good.Render("hero")
		}
		if i == m.mediaCursor {
			line = m.th.rowSelected.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
		if i+1 >= maxRows {
			break
		}
	}
	return sb.String()
}

func (m *Model) renderDupes() string {
	st := m.dupeState
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("DUPLICATE CANDIDATES"))
	sb.WriteString("\n\n")

	if excl := m.sess.ExcludeTags(); len(excl) > 0 {
		sb.WriteString(m.th.label.Render("excluding: "))
		for _, t := range excl {
			sb.WriteString(m.th.tag.Render("#"+t) + " ")
		}
		sb.WriteString("\n")
	}
	if m.excluding {
		sb.WriteString("exclude: " + m.excludeInput.View())
		for i, h := range m.excludeHints {
			s := h
			if i == m.excludeSel {
				s = m.th.rowSelected.Render(s)
			}
			sb.WriteString("\n  " + s)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	switch st.Phase {
	case dupes.Idle:
		sb.WriteString(m.th.label.Render("press r to analyze"))
	case dupes.Streaming:
		sb.WriteString(m.dupeBar.ViewAs(st.Percent / 100))
		sb.WriteString("\n")
		sb.WriteString(m.th.label.Render(st.PhaseLabel))
	case dupes.Unavailable:
		sb.WriteString(m.th.label.Render("duplicate analysis unavailable on this server"))
	case dupes.Failed:
		sb.WriteString(m.th.warn.Render("analysis failed"))
		if st.Err != nil {
			sb.WriteString("\n" + m.th.label.Render(st.Err.Error()))
		}
	case dupes.Done:
		sb.WriteString(m.th.label.Render(fmt.Sprintf("%d likely pairs", len(st.Pairs))))
	}
	sb.WriteString("\n\n")

	for i, p := range st.Pairs {
		line := fmt.Sprintf("%-28s  ~  %-28s  %.0f%%  %s",
			clip(p.A.Name, 28), clip(p.B.Name, 28), p.Score*100,
			m.th.tag.Render(strings.Join(p.SharedTags, ",")))
		if i == m.dupeSel {
			line = m.th.rowSelected.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

func (m *Model) renderTags() string {
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("TAGS"))
	sb.WriteString("\n\n")
	if len(m.tagCounts) == 0 {
		sb.WriteString(m.th.label.Render("(no tags)"))
		return sb.String()
	}
	maxRows := m.h - 10
	if maxRows < 3 {
		maxRows = len(m.tagCounts)
	}
	for i, tc := range m.tagCounts {
		line := fmt.Sprintf("%-32s  %d", m.th.tag.Render("#"+tc.Name), tc.Count)
		if i == m.tagSel {
			line = m.th.rowSelected.Render("> " + line)
		} else {
			line = "  " + line
		}
		sb.WriteString(line + "\n")
		if i+1 >= maxRows {
			break
		}
	}
	return sb.String()
}

func (m *Model) renderSettings() string {
	q := m.sess.Controller.Query()
	auto := m.sess.Scanner != nil && m.sess.Scanner.Running()
	var sb strings.Builder
	sb.WriteString(m.th.head.Render("SETTINGS"))
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("%s %s\n", m.th.label.Render("Server:"), m.cfg.Server.BaseURL))
	sb.WriteString(fmt.Sprintf("%s %s/%s\n", m.th.label.Render("Default sort:"), q.Sort, q.Order))
	sb.WriteString(fmt.Sprintf("%s %d\n", m.th.label.Render("Page size:"), q.PageSize))
	mins := m.sess.Prefs.GetInt(prefs.KeyScanInterval, m.cfg.Scan.IntervalMinutes)
	if auto {
		sb.WriteString(fmt.Sprintf("%s %s\n", m.th.label.Render("Auto scan:"), m.th.good.Render(fmt.Sprintf("every %d min", mins))))
	} else {
		sb.WriteString(fmt.Sprintf("%s off\n", m.th.label.Render("Auto scan:")))
	}
	return sb.String()
}

// mediaFiles flattens a detail's media listing in display order.
func mediaFiles(d *catalog.FolderDetail) []string {
	var out []string
	out = append(out, d.Media.Images...)
	out = append(out, d.Media.Gifs...)
	out = append(out, d.Media.Videos...)
	out = append(out, d.Media.Stls...)
	out = append(out, d.Media.Archives...)
	out = append(out, d.Media.Others...)
	return out
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

func ratingStars(r *int) string {
	if r == nil {
		return "-"
	}
	return strings.Repeat("★", *r) + strings.Repeat("·", 5-*r)
}

func printMark(r catalog.FolderRecord) string {
	switch {
	case r.Printed:
		return "yes"
	case r.ToPrint:
		return "queue"
	}
	return ""
}
