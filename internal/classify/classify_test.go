package classify

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"agentpty/internal/promptdetect"
)

func newTestClassifier() *Classifier {
	return New(promptdetect.New(), nil)
}

func TestClassify_ReadyOnShellPrompt(t *testing.T) {
	c := newTestClassifier()
	result := c.Classify(context.Background(), "user@host:~$ ", "", false, true)
	assert.Equal(t, Ready, result.Status)
}

func TestClassify_PasswordPriorityOverReady(t *testing.T) {
	c := newTestClassifier()
	result := c.Classify(context.Background(), "sudo apt update\nPassword: ", "", false, true)
	assert.Equal(t, Password, result.Status)
}

func TestClassify_ConfirmDangerousCommand(t *testing.T) {
	c := newTestClassifier()
	screen := "rm -rf /tmp/data\nAre you sure? [y/n] "
	result := c.Classify(context.Background(), screen, "", false, true)
	assert.Equal(t, Confirm, result.Status)
	assert.Contains(t, result.Reason, "destructive")
}

func TestClassify_ErrorPattern(t *testing.T) {
	c := newTestClassifier()
	screen := "Traceback (most recent call last):\n  File x\nKeyError: 'x'"
	result := c.Classify(context.Background(), screen, "", false, true)
	assert.Equal(t, Error, result.Status)
}

func TestClassify_StaleScrollbackErrorDoesNotPinFreshPrompt(t *testing.T) {
	c := newTestClassifier()
	var oldLines []string
	for i := 0; i < 30; i++ {
		oldLines = append(oldLines, "line of unrelated output")
	}
	scrollback := "Traceback (most recent call last):\n" + strings.Join(oldLines, "\n")
	result := c.Classify(context.Background(), "user@host:~$ ", scrollback, false, true)
	assert.Equal(t, Ready, result.Status)
}

func TestClassify_ReplPrompt(t *testing.T) {
	c := newTestClassifier()
	result := c.Classify(context.Background(), ">>> ", "", false, true)
	assert.Equal(t, Repl, result.Status)
}

func TestClassify_EOFWhenChildDead(t *testing.T) {
	c := newTestClassifier()
	result := c.Classify(context.Background(), "anything", "", false, false)
	assert.Equal(t, EOF, result.Status)
}

func TestClassify_RunningOnAltScreenNoMarkers(t *testing.T) {
	c := newTestClassifier()
	result := c.Classify(context.Background(), "some full-screen UI\nwith content", "", true, true)
	assert.Equal(t, Running, result.Status)
}

func TestClassify_UnknownWithoutSampler(t *testing.T) {
	c := newTestClassifier()
	var result Result
	for i := 0; i < 5; i++ {
		result = c.Classify(context.Background(), "garbled nonsense output", "", false, true)
	}
	assert.Equal(t, Unknown, result.Status)
}

func TestClassify_SamplerConsultedAfterThreshold(t *testing.T) {
	calls := 0
	sampler := func(ctx context.Context, screen, scrollback string) (Status, bool) {
		calls++
		return Running, true
	}
	c := New(promptdetect.New(), sampler)
	c.SamplerThreshold = 2

	c.Classify(context.Background(), "noise", "", false, true)
	assert.Equal(t, 0, calls, "sampler should not fire before threshold")

	result := c.Classify(context.Background(), "noise", "", false, true)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Running, result.Status)
}
