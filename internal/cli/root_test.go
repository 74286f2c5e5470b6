package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/LucasAlfare/FL-BT/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteClosesLogOnFailure(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "flbt.log")
	t.Setenv("FLBT_LOG_FILE", logPath)
	t.Setenv("FLBT_HISTORY_BACKEND", config.HistoryNone)

	rootCmd.SetArgs([]string{"history"})
	rootCmd.SetOut(io.Discard)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})

	err := Execute()
	require.ErrorContains(t, err, "history is disabled")
	assert.Nil(t, logCleanup, "log file closed after a failed command")

	_, statErr := os.Stat(logPath)
	assert.NoError(t, statErr)
}
