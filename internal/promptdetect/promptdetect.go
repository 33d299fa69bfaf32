// Package promptdetect recognizes shell and REPL prompts in rendered
// screen text. The regex bank is carried over from the Python original's
// utils.py PROMPT_PATTERNS (bash/zsh/fish/root/generic/user_host) plus
// the REPL markers its core.py relied on pexpect's prompt matching to
// recognize implicitly (>>> / ... / (Pdb) / In [n]:).
package promptdetect

import "regexp"

// Detector matches rendered text against a bank of prompt patterns, with
// an optional per-session override that takes precedence over the
// defaults (set via configure_session when a custom PS1 is in play).
type Detector struct {
	override *regexp.Regexp
	bank     []*regexp.Regexp
}

// defaultBank mirrors the original's PROMPT_PATTERNS plus common REPL
// markers, anchored to end-of-text since a prompt is only actionable when
// it's the last thing on the screen.
var defaultBank = []string{
	`\$ $`,                 // bash
	`% $`,                  // zsh
	`> $`,                  // fish / generic continuation
	`# $`,                  // root
	`[$#>%] $`,              // generic
	`.+@.+[:#~].+[$#%>] $`, // user@host:~$
	`>>> $`,                // python REPL
	`\.\.\. $`,             // python REPL continuation
	`\(Pdb\) $`,            // python debugger
	`In \[\d+\]: $`,        // ipython
	`irb\(\w*\):\d+:\d+[>*] $`, // ruby irb
}

// New compiles the default bank.
func New() *Detector {
	d := &Detector{}
	for _, pat := range defaultBank {
		d.bank = append(d.bank, regexp.MustCompile(pat))
	}
	return d
}

// SetOverride installs a custom prompt pattern (e.g. a non-default PS1),
// which is checked before falling back to the default bank. Passing ""
// clears the override.
func (d *Detector) SetOverride(pattern string) error {
	if pattern == "" {
		d.override = nil
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	d.override = re
	return nil
}

// Match reports whether text ends in a recognized prompt, and the text of
// the match.
func (d *Detector) Match(text string) (bool, string) {
	if d.override != nil {
		if loc := d.override.FindStringIndex(text); loc != nil {
			return true, text[loc[0]:loc[1]]
		}
	}
	for _, re := range d.bank {
		if loc := re.FindStringIndex(text); loc != nil {
			return true, text[loc[0]:loc[1]]
		}
	}
	return false, ""
}
