// Package browseconsole is a terminal list over one paging session: scroll,
// refresh, retry, switch sort order and edit the title filter.
package browseconsole

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"comicshelf/internal/bootstrap/logging"
	"comicshelf/internal/domain/comic"
	domainpaging "comicshelf/internal/domain/paging"
	"comicshelf/internal/errs"
	"comicshelf/internal/usecase/paging"
)

const defaultVisibleRows = 15

type Options struct {
	Filter      string
	Sort        comic.SortOrder
	VisibleRows int
}

type browseModel struct {
	ctx    context.Context
	engine *paging.Engine

	filter      string
	sort        comic.SortOrder
	visibleRows int

	pager       *paging.Pager
	unsubscribe func()
	updates     <-chan paging.Snapshot
	snapshot    paging.Snapshot

	cursor      int
	editing     bool
	filterInput string
	detail      *comic.Comic
	status      string
}

type pagerOpenedMsg struct {
	pager *paging.Pager
	err   error
}

type snapshotMsg struct {
	pager    *paging.Pager
	snapshot paging.Snapshot
	closed   bool
}

type loadDoneMsg struct {
	action string
	err    error
}

type detailLoadedMsg struct {
	item comic.Comic
	err  error
}

func NewBrowseModel(ctx context.Context, engine *paging.Engine, options Options) tea.Model {
	sort := options.Sort
	if !sort.Valid() {
		sort = comic.DefaultSortOrder
	}
	rows := options.VisibleRows
	if rows <= 0 {
		rows = defaultVisibleRows
	}
	return &browseModel{
		ctx:         logging.WithComponent(ctx, "console.browse"),
		engine:      engine,
		filter:      strings.TrimSpace(options.Filter),
		sort:        sort,
		visibleRows: rows,
		status:      "loading",
	}
}

func (m *browseModel) Init() tea.Cmd {
	return m.openCmd()
}

func (m *browseModel) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := message.(type) {
	case pagerOpenedMsg:
		if msg.err != nil {
			m.status = "open failed: " + msg.err.Error()
			return m, nil
		}
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		m.pager = msg.pager
		m.updates, m.unsubscribe = msg.pager.Subscribe()
		m.snapshot = paging.Snapshot{}
		m.cursor = 0
		m.detail = nil
		m.status = "opened " + msg.pager.Query().String()
		return m, m.waitSnapshotCmd()
	case snapshotMsg:
		if msg.pager != m.pager {
			return m, nil
		}
		if msg.closed {
			return m, nil
		}
		m.applySnapshot(msg.snapshot)
		return m, m.waitSnapshotCmd()
	case loadDoneMsg:
		if msg.err != nil {
			m.status = fmt.Sprintf("%s failed: %v (R to retry)", msg.action, msg.err)
		} else if msg.action != "" {
			m.status = msg.action + " done"
		}
		return m, nil
	case detailLoadedMsg:
		if msg.err != nil {
			m.status = "detail failed: " + msg.err.Error()
			return m, nil
		}
		item := msg.item
		m.detail = &item
		return m, nil
	case tea.KeyMsg:
		if m.editing {
			return m.updateFilterInput(msg)
		}
		switch msg.String() {
		case "q", "ctrl+c":
			if m.unsubscribe != nil {
				m.unsubscribe()
			}
			return m, tea.Quit
		case "j", "down":
			return m, m.move(1)
		case "k", "up":
			return m, m.move(-1)
		case "pgdown", "f":
			return m, m.move(m.visibleRows)
		case "pgup", "b":
			return m, m.move(-m.visibleRows)
		case "r":
			return m, m.loadCmd("refresh", func(ctx context.Context, p *paging.Pager) error { return p.Refresh(ctx) })
		case "R":
			return m, m.loadCmd("retry", func(ctx context.Context, p *paging.Pager) error { return p.Retry(ctx) })
		case "s":
			m.sort = m.sort.Next()
			m.status = "sort: " + m.sort.Description()
			return m, m.openCmd()
		case "/":
			m.editing = true
			m.filterInput = m.filter
			return m, nil
		case "enter":
			return m, m.detailCmd()
		case "esc":
			m.detail = nil
			return m, nil
		}
	}
	return m, nil
}

func (m *browseModel) updateFilterInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.editing = false
		m.filter = strings.TrimSpace(m.filterInput)
		return m, m.openCmd()
	case tea.KeyEsc:
		m.editing = false
		return m, nil
	case tea.KeyBackspace:
		if runes := []rune(m.filterInput); len(runes) > 0 {
			m.filterInput = string(runes[:len(runes)-1])
		}
		return m, nil
	case tea.KeySpace:
		m.filterInput += " "
		return m, nil
	case tea.KeyRunes:
		m.filterInput += string(msg.Runes)
		return m, nil
	case tea.KeyCtrlC:
		return m, tea.Quit
	}
	return m, nil
}

func (m *browseModel) applySnapshot(snap paging.Snapshot) {
	// Keep the cursor on the same absolute position when the window grows at
	// the front.
	absolute := m.snapshot.ItemsBefore + m.cursor
	m.snapshot = snap
	m.cursor = absolute - snap.ItemsBefore
	if m.cursor >= len(snap.Items) {
		m.cursor = len(snap.Items) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	if loadType, err := snap.States.FirstError(); err != nil {
		m.status = fmt.Sprintf("%s failed: %v (R to retry)", loadType, err)
	}
}

func (m *browseModel) move(delta int) tea.Cmd {
	if len(m.snapshot.Items) == 0 {
		return nil
	}
	m.cursor = min(max(m.cursor+delta, 0), len(m.snapshot.Items)-1)
	m.detail = nil
	index := m.cursor
	return m.loadCmd("", func(ctx context.Context, p *paging.Pager) error { return p.Access(ctx, index) })
}

func (m *browseModel) View() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("62"))
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("203"))

	var builder strings.Builder
	builder.WriteString(titleStyle.Render("Comic Shelf"))
	builder.WriteString("\n")

	filter := m.filter
	if m.editing {
		filter = m.filterInput + "_"
	}
	if filter == "" {
		filter = "(none)"
	}
	builder.WriteString(dimStyle.Render(fmt.Sprintf("sort=%s  filter=%s", m.sort.Description(), filter)))
	builder.WriteString("\n\n")

	builder.WriteString(sectionStyle.Render("Comics"))
	builder.WriteString("\n")
	items := m.snapshot.Items
	if len(items) == 0 {
		builder.WriteString(dimStyle.Render("- no comics"))
		builder.WriteString("\n")
	} else {
		first := min(max(m.cursor-m.visibleRows/2, 0), max(len(items)-m.visibleRows, 0))
		last := min(first+m.visibleRows, len(items))
		for i := first; i < last; i++ {
			line := fmt.Sprintf("%4d  %-8d %s", m.snapshot.ItemsBefore+i+1, items[i].ID, items[i].Title)
			if i == m.cursor {
				builder.WriteString(selectedStyle.Render("> " + line))
			} else {
				builder.WriteString("  " + line)
			}
			builder.WriteString("\n")
		}
	}
	builder.WriteString(dimStyle.Render(fmt.Sprintf("window %d-%d, %d more cached",
		m.snapshot.ItemsBefore+1, m.snapshot.ItemsBefore+len(items), m.snapshot.ItemsAfter)))
	builder.WriteString("\n\n")

	if m.detail != nil {
		builder.WriteString(sectionStyle.Render("Detail"))
		builder.WriteString("\n")
		builder.WriteString(renderDetail(*m.detail))
		builder.WriteString("\n")
	}

	builder.WriteString(sectionStyle.Render("Status"))
	builder.WriteString("\n")
	states := m.snapshot.States
	stateLine := fmt.Sprintf("refresh=%s  prepend=%s  append=%s",
		domainpaging.Describe(states.Refresh),
		domainpaging.Describe(states.Prepend),
		domainpaging.Describe(states.Append),
	)
	if _, err := states.FirstError(); err != nil {
		builder.WriteString(errorStyle.Render(stateLine))
	} else {
		builder.WriteString(stateLine)
	}
	builder.WriteString("\n")
	builder.WriteString(m.status)
	builder.WriteString("\n\n")
	builder.WriteString(dimStyle.Render("Keys: ↑/k ↓/j move  f/b page  enter detail  r refresh  R retry  s sort  / filter  q quit"))
	return builder.String()
}

func renderDetail(c comic.Comic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n", c.ID, c.Title)
	if c.Description != "" {
		fmt.Fprintf(&b, "%s\n", c.Description)
	}
	if url := c.Thumbnail.URL(); url != "" {
		fmt.Fprintf(&b, "thumbnail: %s\n", url)
	}
	for _, creator := range c.Creators {
		fmt.Fprintf(&b, "creator: %s (%s)\n", creator.Name, creator.Role)
	}
	for _, character := range c.Characters {
		fmt.Fprintf(&b, "character: %s\n", character.Name)
	}
	return b.String()
}

func (m *browseModel) openCmd() tea.Cmd {
	query := comic.Query{TitleStartsWith: m.filter, Sort: m.sort}
	return func() tea.Msg {
		pager, err := m.engine.Open(m.ctx, query)
		if err != nil {
			logging.Warn(m.ctx, "open pager failed", slog.Any("err", errs.Loggable(err)))
		}
		return pagerOpenedMsg{pager: pager, err: err}
	}
}

func (m *browseModel) waitSnapshotCmd() tea.Cmd {
	pager, updates := m.pager, m.updates
	return func() tea.Msg {
		snap, ok := <-updates
		return snapshotMsg{pager: pager, snapshot: snap, closed: !ok}
	}
}

func (m *browseModel) loadCmd(action string, load func(ctx context.Context, p *paging.Pager) error) tea.Cmd {
	pager := m.pager
	if pager == nil {
		return nil
	}
	return func() tea.Msg {
		return loadDoneMsg{action: action, err: load(m.ctx, pager)}
	}
}

func (m *browseModel) detailCmd() tea.Cmd {
	if m.cursor < 0 || m.cursor >= len(m.snapshot.Items) {
		return nil
	}
	id := m.snapshot.Items[m.cursor].ID
	return func() tea.Msg {
		item, err := m.engine.Comic(m.ctx, id)
		return detailLoadedMsg{item: item, err: err}
	}
}
