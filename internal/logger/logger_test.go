package logger

import (
	"bytes"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func capture(t *testing.T, verbose bool) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetVerbose(verbose)
	t.Cleanup(func() {
		SetVerbose(false)
		SetOutput(os.Stderr)
	})
	return &buf
}

func TestSetVerbose(t *testing.T) {
	capture(t, false)

	assert.False(t, IsVerbose())
	SetVerbose(true)
	assert.True(t, IsVerbose())
	SetVerbose(false)
	assert.False(t, IsVerbose())
}

func TestGatedLevels_Verbose(t *testing.T) {
	buf := capture(t, true)

	Debug("chunked %s into %d nodes", "rules.md", 3)
	Info("collection %s ready", "exp_abc")
	Warn("empty file %s skipped", "notes.txt")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] chunked rules.md into 3 nodes\n")
	assert.Contains(t, out, "[INFO] collection exp_abc ready\n")
	assert.Contains(t, out, "[WARN] empty file notes.txt skipped\n")
}

func TestGatedLevels_Quiet(t *testing.T) {
	buf := capture(t, false)

	Debug("chunking")
	Info("embedding")
	Warn("skipping")
	Section("Ingestion")

	assert.Zero(t, buf.Len())
}

func TestError_AlwaysPrints(t *testing.T) {
	buf := capture(t, false)

	Error("ingest %s: %v", "doc.md", os.ErrNotExist)

	assert.Equal(t, "[ERROR] ingest doc.md: file does not exist\n", buf.String())
}

func TestSection(t *testing.T) {
	buf := capture(t, true)

	Section("Evaluation")

	assert.Equal(t, "\n=== Evaluation ===\n", buf.String())
}

func TestConcurrentAccess(t *testing.T) {
	capture(t, false)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			SetVerbose(true)
			Debug("worker %d", i)
			IsVerbose()
			SetVerbose(false)
		}(i)
	}
	wg.Wait()
}
