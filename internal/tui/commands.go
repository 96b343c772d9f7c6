package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jolivier22/stlmanager/internal/cache"
	"github.com/jolivier22/stlmanager/internal/catalog"
	"github.com/jolivier22/stlmanager/internal/controller"
)

func (m *Model) listCmd(job *controller.Job) tea.Cmd {
	gw := m.sess.Gateway
	return func() tea.Msg {
		page, err := gw.ListFolders(context.Background(), job.Descriptor)
		page.Query = job.Query
		return listResultMsg{token: job.Token, page: page, err: err}
	}
}

func (m *Model) detailCmd(path string) tea.Cmd {
	token := m.sess.Controller.OpenDetail(path)
	gw := m.sess.Gateway
	return func() tea.Msg {
		d, err := gw.Detail(context.Background(), path)
		return detailResultMsg{token: token, detail: d, err: err}
	}
}

// mutationCmd pairs an already-applied optimistic mutation with the request
// that settles it. The mutationDoneMsg handler commits or rolls back.
func mutationCmd(mut *cache.Mutation, desc string, call func() (*catalog.Patch, error)) tea.Cmd {
	return func() tea.Msg {
		patch, err := call()
		return mutationDoneMsg{mut: mut, patch: patch, desc: desc, err: err}
	}
}

func (m *Model) setRatingCmd(path string, rating *int) tea.Cmd {
	mut := m.sess.Cache.ApplyRating(path, rating)
	gw := m.sess.Gateway
	return mutationCmd(mut, "rating saved", func() (*catalog.Patch, error) {
		return gw.SetRating(context.Background(), path, rating)
	})
}

func (m *Model) setPrintedCmd(path string, printed bool) tea.Cmd {
	mut := m.sess.Cache.ApplyPrinted(path, printed)
	gw := m.sess.Gateway
	return mutationCmd(mut, "printed updated", func() (*catalog.Patch, error) {
		return gw.SetPrinted(context.Background(), path, printed)
	})
}

func (m *Model) setToPrintCmd(path string, toPrint bool) tea.Cmd {
	mut := m.sess.Cache.ApplyToPrint(path, toPrint)
	gw := m.sess.Gateway
	return mutationCmd(mut, "print queue updated", func() (*catalog.Patch, error) {
		return gw.SetToPrint(context.Background(), path, toPrint)
	})
}

func (m *Model) addTagCmd(path, tag string) tea.Cmd {
	mut := m.sess.Cache.ApplyTagAdded(path, tag)
	gw := m.sess.Gateway
	return mutationCmd(mut, "tag added", func() (*catalog.Patch, error) {
		return gw.AddTag(context.Background(), path, tag)
	})
}

func (m *Model) removeTagCmd(path, tag string) tea.Cmd {
	mut := m.sess.Cache.ApplyTagRemoved(path, tag)
	gw := m.sess.Gateway
	return mutationCmd(mut, "tag removed", func() (*catalog.Patch, error) {
		return gw.RemoveTag(context.Background(), path, tag)
	})
}

func (m *Model) setPreviewCmd(path, file string) tea.Cmd {
	mut := m.sess.Cache.ApplyPreview(path, file)
	gw := m.sess.Gateway
	return mutationCmd(mut, "preview set", func() (*catalog.Patch, error) {
		return gw.SetPreview(context.Background(), path, file)
	})
}

func (m *Model) renameCmd(path, newName string) tea.Cmd {
	mut := m.sess.Cache.ApplyRename(path, newName)
	gw := m.sess.Gateway
	return mutationCmd(mut, "renamed", func() (*catalog.Patch, error) {
		return gw.Rename(context.Background(), path, newName)
	})
}

func (m *Model) deleteFileCmd(path, file string) tea.Cmd {
	mut := m.sess.Cache.ApplyFileDeleted(path, file)
	gw := m.sess.Gateway
	return mutationCmd(mut, "file deleted", func() (*catalog.Patch, error) {
		return gw.DeleteFile(context.Background(), path, file)
	})
}

// deleteProjectCmd is confirm-then-commit: nothing changes in the cache
// until the server acknowledges.
func (m *Model) deleteProjectCmd(path string) tea.Cmd {
	gw := m.sess.Gateway
	return func() tea.Msg {
		err := gw.DeleteProject(context.Background(), path)
		return projectDeletedMsg{path: path, err: err}
	}
}

// fixTagsCmd normalizes a project's tags server-side; the refreshed detail
// is fetched afterwards rather than patched optimistically.
func (m *Model) fixTagsCmd(path string) tea.Cmd {
	gw := m.sess.Gateway
	return func() tea.Msg {
		_, err := gw.FixTags(context.Background(), path)
		return tagsFixedMsg{path: path, err: err}
	}
}

func (m *Model) scanCmd(mode string) tea.Cmd {
	gw := m.sess.Gateway
	return func() tea.Msg {
		s, err := gw.Reindex(context.Background(), mode)
		return scanDoneMsg{summary: s, err: err}
	}
}

func (m *Model) healthCmd() tea.Cmd {
	gw := m.sess.Gateway
	return func() tea.Msg {
		status, err := gw.Health(context.Background())
		return healthMsg{status: status, err: err}
	}
}

func (m *Model) tagCountsCmd() tea.Cmd {
	gw := m.sess.Gateway
	return func() tea.Msg {
		counts, _, err := gw.TagCounts(context.Background())
		return tagCountsMsg{counts: counts, err: err}
	}
}

func scanSummaryLine(s *catalog.ReindexSummary) string {
	return fmt.Sprintf("scan: %d added, %d updated, %d removed", s.Added, s.Updated, s.Removed)
}
