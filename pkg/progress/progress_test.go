package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wanderpod/pkg/config"
	"wanderpod/pkg/model"
)

func TestNewWithoutURLReturnsNop(t *testing.T) {
	r, err := New(config.ProgressConfig{Subject: "wanderpod.progress"})
	require.NoError(t, err)

	_, ok := r.(NopReporter)
	assert.True(t, ok)

	// Must be safe to call
	r.Report("req-1", "Lisbon", model.StageContentGathered)
	r.Close()
}
