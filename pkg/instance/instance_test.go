package instance

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDPrefersWorkerID(t *testing.T) {
	t.Setenv("WORKER_ID", "cron-7")
	assert.Equal(t, "cron-7", ID())
}

func TestIDFallsBackToHostname(t *testing.T) {
	t.Setenv("WORKER_ID", "")
	assert.NotEmpty(t, ID())
}
