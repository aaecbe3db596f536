package cmd

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecute(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	t.Run("version", func(t *testing.T) {
		os.Args = []string{"verdin", "version"}
		assert.NoError(t, Execute())
	})

	t.Run("help", func(t *testing.T) {
		os.Args = []string{"verdin", "help"}
		assert.NoError(t, Execute())
	})

	t.Run("no arguments prints help", func(t *testing.T) {
		os.Args = []string{"verdin"}
		assert.NoError(t, Execute())
	})

	t.Run("unknown command", func(t *testing.T) {
		os.Args = []string{"verdin", "frobnicate"}
		err := Execute()
		assert.ErrorContains(t, err, "unknown command")
	})
}
