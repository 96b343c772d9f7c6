package tui

import (
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jolivier22/stlmanager/internal/cache"
	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/config"
	"github.com/jolivier22/stlmanager/internal/controller"
	"github.com/jolivier22/stlmanager/internal/dupes"
	"github.com/jolivier22/stlmanager/internal/logging"
	"github.com/jolivier22/stlmanager/internal/suggest"
)

type tab int

const (
	tabCatalog tab = iota
	tabDetail
	tabDupes
	tabTags
	tabSettings
)

type tickMsg time.Time

type listResultMsg struct {
	token uint64
	page  catalog.Page
	err   error
}

type detailResultMsg struct {
	token  uint64
	detail *catalog.FolderDetail
	err    error
}

type mutationDoneMsg struct {
	mut   *cache.Mutation
	patch *catalog.Patch
	desc  string
	err   error
}

type projectDeletedMsg struct {
	path string
	err  error
}

type searchSuggestMsg suggest.Result

type tagSuggestMsg suggest.Result

type excludeSuggestMsg suggest.Result

type healthMsg struct {
	status string
	err    error
}

type dupesMsg dupes.State

type scanDueMsg struct{}

type scanDoneMsg struct {
	summary *catalog.ReindexSummary
	err     error
}

type tagsFixedMsg struct {
	path string
	err  error
}

type tagCountsMsg struct {
	counts []catalog.TagCount
	err    error
}

type toast struct {
	msg  string
	when time.Time
	ttl  time.Duration
}

// Relay bridges background deliveries (suggestions, duplicate-feed updates,
// the scan scheduler) onto the program loop. Deliveries that arrive before
// the program starts are dropped.
type Relay struct {
	mu   sync.Mutex
	send func(tea.Msg)
}

func (r *Relay) Bind(send func(tea.Msg)) {
	r.mu.Lock()
	r.send = send
	r.mu.Unlock()
}

func (r *Relay) Send(msg tea.Msg) {
	r.mu.Lock()
	send := r.send
	r.mu.Unlock()
	if send != nil {
		send(msg)
	}
}

type Model struct {
	cfg  *config.Config
	log  *logging.Logger
	sess *controller.Session
	th   Theme
	w, h int

	activeTab tab
	selected  int

	searchInput textinput.Model
	searching   bool
	searchHints []string

	tagInput  textinput.Model
	tagging   bool
	tagHints  []string
	tagCursor int

	mediaCursor int

	dupeState    dupes.State
	dupeBar      progress.Model
	dupeSel      int
	excludeInput textinput.Model
	excluding    bool
	excludeHints []string
	excludeSel   int

	healthy   bool
	healthErr string

	tagCounts []catalog.TagCount
	tagSel    int

	modal  *modal
	toasts []toast
}

// New builds the root model. The relay must be bound to the running
// program's Send before any background delivery can surface.
func New(cfg *config.Config, log *logging.Logger, relay *Relay) (*Model, error) {
	sess, err := controller.NewSession(cfg, log, controller.Hooks{
		SearchSuggest:  func(r suggest.Result) { relay.Send(searchSuggestMsg(r)) },
		TagSuggest:     func(r suggest.Result) { relay.Send(tagSuggestMsg(r)) },
		ExcludeSuggest: func(r suggest.Result) { relay.Send(excludeSuggestMsg(r)) },
		Dupes:          func(s dupes.State) { relay.Send(dupesMsg(s)) },
		ScanDue:        func() { relay.Send(scanDueMsg{}) },
	})
	if err != nil {
		return nil, err
	}

	search := textinput.New()
	search.Placeholder = "search projects"
	search.CharLimit = 120
	tag := textinput.New()
	tag.Placeholder = "add tag"
	tag.CharLimit = 60
	excl := textinput.New()
	excl.Placeholder = "exclude tag"
	excl.CharLimit = 60

	return &Model{
		cfg:          cfg,
		log:          log,
		sess:         sess,
		th:           defaultTheme(),
		searchInput:  search,
		tagInput:     tag,
		excludeInput: excl,
		dupeBar:      progress.New(progress.WithDefaultGradient()),
	}, nil
}

// Session exposes the synchronization layer for teardown by the caller.
func (m *Model) Session() *controller.Session { return m.sess }

func (m *Model) Init() tea.Cmd {
	m.sess.Controller.Resume()
	return tea.Batch(m.flushCmd(), m.healthCmd(), m.tickCmd())
}

func (m *Model) tickCmd() tea.Cmd {
	hz := m.cfg.UI.RefreshHz
	if hz <= 0 {
		hz = 1
	}
	if hz > 10 {
		hz = 10
	}
	d := time.Second / time.Duration(hz)
	return tea.Tick(d, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.w, m.h = msg.Width, msg.Height
		return m, nil

	case tea.KeyMsg:
		return m.updateKey(msg)

	case tickMsg:
		m.gcToasts()
		return m, m.tickCmd()

	case listResultMsg:
		if job := m.sess.Controller.ApplyResult(msg.token, msg.page, msg.err); job != nil {
			return m, m.listCmd(job)
		}
		m.clampSelection()
		return m, nil

	case detailResultMsg:
		if !m.sess.Controller.ApplyDetail(msg.token, msg.detail, msg.err) {
			if msg.err != nil && m.activeTab == tabDetail {
				m.addToast(m.th.warn.Render("could not open project"))
				m.activeTab = tabCatalog
			}
			return m, nil
		}
		m.publishAppliedTags()
		return m, nil

	case mutationDoneMsg:
		if msg.err != nil {
			msg.mut.Rollback()
			m.log.Warnf("%s rejected: %v", msg.desc, msg.err)
			m.addToast(m.th.warn.Render(msg.desc + " failed: " + msg.err.Error()))
		} else {
			msg.mut.Commit(msg.patch)
			m.addToast(msg.desc)
		}
		m.publishAppliedTags()
		return m, nil

	case projectDeletedMsg:
		if msg.err != nil {
			m.addToast(m.th.warn.Render("delete failed: " + msg.err.Error()))
			return m, nil
		}
		m.sess.Cache.RemoveProject(msg.path)
		if m.activeTab == tabDetail {
			m.closeDetail()
		}
		m.addToast("project deleted")
		m.clampSelection()
		return m, nil

	case searchSuggestMsg:
		if msg.Err != nil {
			m.searchHints = nil
			return m, nil
		}
		m.searchHints = msg.Candidates
		return m, nil

	case tagSuggestMsg:
		if msg.Err != nil {
			m.tagHints = nil
			return m, nil
		}
		m.tagHints = msg.Candidates
		m.tagCursor = 0
		return m, nil

	case excludeSuggestMsg:
		if msg.Err != nil {
			m.excludeHints = nil
			return m, nil
		}
		m.excludeHints = msg.Candidates
		m.excludeSel = 0
		return m, nil

	case healthMsg:
		m.healthy = msg.err == nil
		if msg.err != nil {
			m.healthErr = msg.err.Error()
		} else {
			m.healthErr = ""
		}
		return m, nil

	case dupesMsg:
		m.dupeState = dupes.State(msg)
		if m.dupeSel >= len(m.dupeState.Pairs) {
			m.dupeSel = 0
		}
		return m, nil

	case scanDueMsg:
		return m, m.scanCmd("incremental")

	case scanDoneMsg:
		if msg.err != nil {
			m.addToast(m.th.warn.Render("scan failed: " + msg.err.Error()))
			return m, nil
		}
		s := msg.summary
		m.addToast(scanSummaryLine(s))
		// Only the catalog shows query results; other tabs pick the
		// refresh up through Resume on the way back.
		if m.activeTab == tabCatalog {
			m.sess.Controller.Resume()
			return m, m.flushCmd()
		}
		return m, nil

	case tagsFixedMsg:
		if msg.err != nil {
			m.addToast(m.th.warn.Render("fix tags failed: " + msg.err.Error()))
			return m, nil
		}
		m.addToast("tags normalized")
		return m, m.detailCmd(msg.path)

	case tagCountsMsg:
		if msg.err != nil {
			m.addToast(m.th.warn.Render("tags unavailable"))
			return m, nil
		}
		m.tagCounts = msg.counts
		if m.tagSel >= len(m.tagCounts) {
			m.tagSel = 0
		}
		return m, nil
	}
	return m, nil
}

// flushCmd turns the controller's settled state into at most one request.
// The filter-tag snapshot feeds the search suggestion box off-loop, so it is
// republished on every settle.
func (m *Model) flushCmd() tea.Cmd {
	m.sess.SetFilterTags(m.sess.Controller.Query().Tags)
	job := m.sess.Controller.Flush()
	if job == nil {
		return nil
	}
	return m.listCmd(job)
}

func (m *Model) clampSelection() {
	if n := len(m.sess.Cache.Page().Items); m.selected >= n {
		m.selected = 0
	}
}

func (m *Model) publishAppliedTags() {
	if d := m.sess.Cache.Detail(); d != nil {
		m.sess.SetAppliedTags(d.Tags)
	} else {
		m.sess.SetAppliedTags(nil)
	}
}

func (m *Model) closeDetail() {
	m.sess.Controller.CloseDetail()
	m.sess.Cache.ClearDetail()
	m.sess.SetAppliedTags(nil)
	m.tagging = false
	m.tagInput.Reset()
	m.tagHints = nil
	m.mediaCursor = 0
	m.activeTab = tabCatalog
}

func (m *Model) addToast(s string) {
	m.toasts = append(m.toasts, toast{msg: s, when: time.Now(), ttl: 5 * time.Second})
	m.gcToasts()
}

func (m *Model) gcToasts() {
	now := time.Now()
	fresh := m.toasts[:0]
	for _, t := range m.toasts {
		if now.Sub(t.when) < t.ttl {
			fresh = append(fresh, t)
		}
	}
	m.toasts = fresh
}

func (m *Model) renderToasts() string {
	m.gcToasts()
	if len(m.toasts) == 0 {
		return ""
	}
	return m.toasts[len(m.toasts)-1].msg
}
