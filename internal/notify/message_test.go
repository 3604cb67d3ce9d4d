package notify_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"bananaslides/internal/domain"
	"bananaslides/internal/notify"
)

func TestCompose_Completed(t *testing.T) {
	task := &domain.ConversionTask{
		ID:                uuid.New(),
		ProjectID:         "Q3 <Review>",
		Status:            domain.TaskCompleted,
		Progress:          domain.TaskProgress{Total: 4},
		ResultArtifactRef: "artifacts/x.zip",
	}

	msg := notify.Compose(task)

	assert.Equal(t, "Slides ready: Q3 <Review>", msg.Subject)
	assert.Contains(t, msg.Text, "All 4 pages")
	assert.Contains(t, msg.Text, "artifacts/x.zip")
	assert.Contains(t, msg.HTML, "Q3 &lt;Review&gt;")
	assert.NotContains(t, msg.HTML, "<Review>")
}

func TestCompose_Failed(t *testing.T) {
	task := &domain.ConversionTask{
		ID:     uuid.New(),
		Status: domain.TaskFailed,
		Error: &domain.TaskError{
			Code: "RECONSTRUCTION_TIMEOUT", Stage: domain.StageReconstruct,
			Page: 2, PageID: "p2", Cause: "backend unavailable",
		},
	}

	msg := notify.Compose(task)

	assert.Equal(t, "Conversion failed: your slides", msg.Subject)
	assert.Contains(t, msg.Text, "Page: 2 (p2)")
	assert.Contains(t, msg.Text, "RECONSTRUCTION_TIMEOUT")
	assert.Contains(t, msg.Text, task.ID.String())
}
