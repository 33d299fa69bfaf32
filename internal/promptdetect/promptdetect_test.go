package promptdetect

import "testing"

func TestMatch_BashPrompt(t *testing.T) {
	d := New()
	ok, text := d.Match("user@host:~/project$ ")
	if !ok {
		t.Fatal("expected bash-style prompt to match")
	}
	if text == "" {
		t.Fatal("expected non-empty matched text")
	}
}

func TestMatch_PythonREPL(t *testing.T) {
	d := New()
	if ok, _ := d.Match(">>> "); !ok {
		t.Fatal("expected python REPL prompt to match")
	}
}

func TestMatch_IPython(t *testing.T) {
	d := New()
	if ok, _ := d.Match("In [12]: "); !ok {
		t.Fatal("expected ipython prompt to match")
	}
}

func TestMatch_NoPromptInMidOutput(t *testing.T) {
	d := New()
	if ok, _ := d.Match("compiling...\nstill working\n"); ok {
		t.Fatal("expected no match against non-prompt output")
	}
}

func TestMatch_OverrideTakesPrecedence(t *testing.T) {
	d := New()
	if err := d.SetOverride(`READY_FOR_INPUT$`); err != nil {
		t.Fatalf("SetOverride: %v", err)
	}
	ok, text := d.Match("READY_FOR_INPUT")
	if !ok || text != "READY_FOR_INPUT" {
		t.Fatalf("expected override to match, got ok=%v text=%q", ok, text)
	}
}

func TestMatch_ClearOverride(t *testing.T) {
	d := New()
	_ = d.SetOverride(`READY_FOR_INPUT$`)
	_ = d.SetOverride("")
	if ok, _ := d.Match("READY_FOR_INPUT"); ok {
		t.Fatal("expected override to be cleared, falling back to default bank with no match")
	}
}

func TestSetOverride_InvalidPattern(t *testing.T) {
	d := New()
	if err := d.SetOverride("(unclosed"); err == nil {
		t.Fatal("expected error for invalid regex")
	}
}
