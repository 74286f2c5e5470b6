package bus

import (
	"testing"

	"github.com/LucasAlfare/FL-BT/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "flbt.jobs.success", Subject("flbt.jobs", models.StatusSuccess))
	assert.Equal(t, "x.error", Subject("x", models.StatusError))

	c := &Client{prefix: "custom"}
	assert.Equal(t, "custom.running", c.Subject(models.StatusRunning))
}
