package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/dlapi/internal/models"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	JobListView ViewState = iota
	DetailView
)

// DefaultInterval is how often the job list is refreshed.
const DefaultInterval = time.Second

// JobClient is the subset of the API client the monitor needs.
type JobClient interface {
	ListJobs(ctx context.Context) ([]*models.Job, error)
	DeleteJob(ctx context.Context, id int64) error
}

// Model represents the TUI application state.
type Model struct {
	ctx       context.Context
	client    JobClient
	logger    *log.Logger
	interval  time.Duration
	view      ViewState
	width     int
	height    int
	jobList   list.Model
	jobs      []*models.Job
	selected  int64
	bar       progress.Model
	refreshed time.Time
	err       error
	help      help.Model
	keys      keyMap
}

// NewModel creates a new TUI model polling client every interval.
func NewModel(ctx context.Context, client JobClient, logger *log.Logger, interval time.Duration) *Model {
	if interval <= 0 {
		interval = DefaultInterval
	}

	jobList := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	jobList.Title = "Download Jobs"
	jobList.SetShowHelp(false)

	return &Model{
		ctx:      ctx,
		client:   client,
		logger:   logger,
		interval: interval,
		view:     JobListView,
		jobList:  jobList,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Init fetches the first page of jobs and starts the refresh timer.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.fetchJobs(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.jobList.SetSize(msg.Width-4, msg.Height-6)
		m.bar.Width = min(max(msg.Width-20, 10), 60)
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case JobListView:
			return m.handleListKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	var cmd tea.Cmd
	m.jobList, cmd = m.jobList.Update(msg)
	return m, cmd
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgJobsFetched:
		data := msg.data.(jobsFetched)
		if data.err != nil {
			m.logger.Error("failed to fetch jobs", "error", data.err)
			m.err = data.err
			return m, nil
		}
		m.err = nil
		m.jobs = data.jobs
		m.refreshed = time.Now()
		return m, m.jobList.SetItems(jobItems(data.jobs))

	case MsgTick:
		return m, tea.Batch(m.fetchJobs(), m.tick())

	case MsgJobDeleted:
		data := msg.data.(jobDeleted)
		if data.err != nil {
			m.logger.Error("failed to delete job", "job", data.id, "error", data.err)
			m.err = data.err
			return m, nil
		}
		m.logger.Info("deleted job", "job", data.id)
		if m.selected == data.id {
			m.view = JobListView
		}
		return m, m.fetchJobs()
	}
	return m, nil
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	var body string
	switch m.view {
	case DetailView:
		body = m.renderDetail()
	default:
		body = m.renderList()
	}

	if m.err != nil {
		body = fmt.Sprintf("%s\n%s", body, styles.err.Render(fmt.Sprintf("Error: %v", m.err)))
	}
	return body
}

// Jobs returns the most recently fetched jobs.
func (m *Model) Jobs() []*models.Job {
	return m.jobs
}

func (m *Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.jobList.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.jobList, cmd = m.jobList.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchJobs()
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.jobList.SelectedItem().(jobItem); ok {
			m.selected = item.job.ID
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.remove):
		if item, ok := m.jobList.SelectedItem().(jobItem); ok {
			return m, m.deleteJob(item.job.ID)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.jobList, cmd = m.jobList.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.back):
		m.view = JobListView
	case key.Matches(msg, m.keys.refresh):
		return m, m.fetchJobs()
	case key.Matches(msg, m.keys.remove):
		return m, m.deleteJob(m.selected)
	}
	return m, nil
}

func (m *Model) fetchJobs() tea.Cmd {
	return func() tea.Msg {
		jobs, err := m.client.ListJobs(m.ctx)
		return jobsFetchedMsg(jobs, err)
	}
}

func (m *Model) deleteJob(id int64) tea.Cmd {
	return func() tea.Msg {
		return jobDeletedMsg(id, m.client.DeleteJob(m.ctx, id))
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m *Model) selectedJob() *models.Job {
	for _, job := range m.jobs {
		if job.ID == m.selected {
			return job
		}
	}
	return nil
}

func (m *Model) renderList() string {
	status := styles.help.Render(m.summary())
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.enter, m.keys.remove, m.keys.refresh, m.keys.quit})
	return fmt.Sprintf("%s\n%s\n\n%s", m.jobList.View(), status, helpView)
}

func (m *Model) summary() string {
	counts := make(map[models.JobStatus]int)
	for _, job := range m.jobs {
		counts[job.Status]++
	}
	parts := []string{fmt.Sprintf("%d jobs", len(m.jobs))}
	for _, status := range []models.JobStatus{models.StatusFinished, models.StatusError} {
		if n := counts[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, strings.ToLower(status.String())))
		}
	}
	if !m.refreshed.IsZero() {
		parts = append(parts, "updated "+m.refreshed.Format(time.TimeOnly))
	}
	return strings.Join(parts, " • ")
}

func (m *Model) renderDetail() string {
	helpView := m.help.ShortHelpView([]key.Binding{m.keys.back, m.keys.remove, m.keys.quit})

	job := m.selectedJob()
	if job == nil {
		return fmt.Sprintf("%s\n%s\n\n%s",
			styles.title.Render(fmt.Sprintf("Job %d", m.selected)),
			styles.warn.Render("Job no longer exists"),
			helpView)
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(fmt.Sprintf("Job %d", job.ID)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Status"), styles.Status(job.Status))
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Started"), job.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Video"), reference(job.VideoID))
	fmt.Fprintf(&b, "%s%s\n", styles.label.Render("Artifact"), reference(job.ArtifactID))
	fmt.Fprintf(&b, "\n%s\n", m.bar.ViewAs(float64(job.Progress)/100))
	fmt.Fprintf(&b, "\n%s", helpView)
	return b.String()
}

func reference(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *id)
}
