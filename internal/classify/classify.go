// Package classify infers a session's waiting-state from its rendered
// screen, in the fixed priority order the external interface's status
// vocabulary requires: password > confirm > error > repl > editor >
// pager > ready > running > unknown.
package classify

import (
	"context"
	"regexp"
	"strings"

	"agentpty/internal/promptdetect"
)

// Status is one of the wire-stable classification values.
type Status string

const (
	Running    Status = "running"
	Ready      Status = "ready"
	Repl       Status = "repl"
	Password   Status = "password"
	Confirm    Status = "confirm"
	Editor     Status = "editor"
	Pager      Status = "pager"
	Error      Status = "error"
	EOF        Status = "eof"
	Unknown    Status = "unknown"
	Terminated Status = "terminated"
)

// Sampler is the injected external hook consulted only when the
// heuristic result is Unknown, resolving the "should the sampler hook be
// eager or lazy" open question in favor of lazy: it is a fallback for
// screens the regex bank can't classify, not a replacement for it.
type Sampler func(ctx context.Context, screen, scrollback string) (Status, bool)

var (
	passwordRe = regexp.MustCompile(`(?i)(password|passphrase)\s*(for [^:]+)?:\s*$`)
	confirmRe  = regexp.MustCompile(`(?i)(\[y/n\]|\(y/n\)|yes/no|continue\?|are you sure)\s*[:?]?\s*$`)
	dangerRe   = regexp.MustCompile(`(?i)(rm -rf|drop table|force.push|--force|this (action|operation) (cannot|can't) be undone)`)
	errorRe    = regexp.MustCompile(`(?i)(traceback \(most recent call last\)|panic:|segmentation fault|command not found|no such file or directory|fatal error)`)
	pagerRe    = regexp.MustCompile(`(?i)(--more--|\(END\)|lines \d+-\d+)`)
	editorHint = regexp.MustCompile(`(?i)-- insert --|\[No Name\]|\(modified\)`)
)

// errorScrollbackWindow bounds the error check to recent scrollback lines
// only, so a traceback that has scrolled well past the viewport doesn't
// keep pinning every later classification to Error once the shell is back
// at a fresh prompt.
const errorScrollbackWindow = 20

// Classifier runs the heuristic bank and, lazily, the sampler.
type Classifier struct {
	prompts       *promptdetect.Detector
	sampler       Sampler
	unknownStreak int
	// SamplerThreshold is the number of consecutive Unknown results the
	// heuristic must produce before the sampler is consulted, avoiding a
	// sampler call on every single poll tick of a merely-slow command.
	SamplerThreshold int
}

// New builds a Classifier. A nil sampler disables the fallback entirely,
// and Unknown is then a terminal classification rather than a staging
// state.
func New(prompts *promptdetect.Detector, sampler Sampler) *Classifier {
	return &Classifier{prompts: prompts, sampler: sampler, SamplerThreshold: 3}
}

// Result is the full classification: the status plus a short free-text
// reason, mirroring the original's dangerous-command confirm sub-reason
// and making `state_reason` useful for a caller debugging a stuck
// session.
type Result struct {
	Status Status
	Reason string
}

// Classify inspects the rendered screen (and scrollback, for error
// patterns that scroll past the visible viewport) and an explicit
// altScreen/childAlive signal set the session already tracks.
func (c *Classifier) Classify(ctx context.Context, screen, scrollback string, altScreen, childAlive bool) Result {
	// Any result other than a heuristic Unknown ends the streak; the
	// Unknown path at the bottom restores and extends it.
	streak := c.unknownStreak
	c.unknownStreak = 0

	if !childAlive {
		return Result{Status: EOF, Reason: "child process exited"}
	}

	tail := lastNonEmptyLine(screen)

	if passwordRe.MatchString(tail) {
		return Result{Status: Password, Reason: "password prompt detected"}
	}
	if confirmRe.MatchString(tail) {
		reason := "confirmation prompt detected"
		if dangerRe.MatchString(screen) {
			reason = "confirmation prompt for a destructive command"
		}
		return Result{Status: Confirm, Reason: reason}
	}
	if errorRe.MatchString(screen) || errorRe.MatchString(recentLines(scrollback, errorScrollbackWindow)) {
		return Result{Status: Error, Reason: "error pattern in output"}
	}
	// looksLikeRepl checks the whole tail line, not just the matched
	// substring: a generic pattern earlier in the bank (e.g. "> $") can
	// match a shorter suffix of a REPL prompt like ">>> " and still leave
	// the REPL marker sitting right there in tail for this check to find.
	if matched, _ := c.prompts.Match(tail); matched && looksLikeRepl(tail) {
		return Result{Status: Repl, Reason: "REPL prompt detected"}
	}
	if altScreen && editorHint.MatchString(screen) {
		return Result{Status: Editor, Reason: "full-screen editor indicators present"}
	}
	if altScreen && pagerRe.MatchString(screen) {
		return Result{Status: Pager, Reason: "pager indicators present"}
	}
	if altScreen {
		return Result{Status: Running, Reason: "alternate screen active, no recognized prompt"}
	}
	if matched, _ := c.prompts.Match(tail); matched {
		return Result{Status: Ready, Reason: "shell prompt detected"}
	}
	if tail == "" {
		return Result{Status: Running, Reason: "no output yet"}
	}

	c.unknownStreak = streak + 1
	if c.sampler != nil && c.unknownStreak >= c.SamplerThreshold {
		if status, ok := c.sampler(ctx, screen, scrollback); ok {
			c.unknownStreak = 0
			return Result{Status: status, Reason: "sampler classification"}
		}
	}
	return Result{Status: Unknown, Reason: "no recognized prompt or state marker"}
}

func looksLikeRepl(promptText string) bool {
	for _, marker := range []string{">>>", "...", "(Pdb)", "In [", "irb("} {
		if strings.Contains(promptText, marker) {
			return true
		}
	}
	return false
}

// recentLines returns the last n lines of text, oldest first, for
// checks that should only look at what scrolled by recently rather than
// the whole retained history.
func recentLines(text string, n int) string {
	lines := strings.Split(text, "\n")
	if len(lines) <= n {
		return text
	}
	return strings.Join(lines[len(lines)-n:], "\n")
}

func lastNonEmptyLine(screen string) string {
	lines := strings.Split(screen, "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}
