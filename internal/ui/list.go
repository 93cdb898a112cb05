package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/dlapi/internal/formatter"
	"github.com/desertthunder/dlapi/internal/models"
)

var _ list.Item = jobItem{}

// jobItem wraps [models.Job] to implement [list.Item].
type jobItem struct {
	job *models.Job
}

func (i jobItem) FilterValue() string { return i.job.Status.String() }
func (i jobItem) Title() string {
	return fmt.Sprintf("Job %d  %s", i.job.ID, styles.Status(i.job.Status))
}
func (i jobItem) Description() string {
	desc := formatter.ProgressBar(i.job.Progress, 20)
	if i.job.ArtifactID != nil {
		desc = fmt.Sprintf("%s • artifact %d", desc, *i.job.ArtifactID)
	}
	return desc
}

func jobItems(jobs []*models.Job) []list.Item {
	items := make([]list.Item, len(jobs))
	for i, job := range jobs {
		items[i] = jobItem{job: job}
	}
	return items
}
