package sandbox

import (
	"strings"
	"testing"
	"time"
)

func TestValidatePathRejectsTraversal(t *testing.T) {
	root := t.TempDir()
	c, err := New(root, nil, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.ValidatePath("../x") {
		t.Error("expected ../x to be rejected")
	}
	if !c.ValidatePath("a/b/../c") {
		t.Error("expected a/b/../c to resolve within root")
	}
	if c.ValidatePath("") {
		t.Error("expected empty path to be rejected")
	}
}

func TestValidateCommand(t *testing.T) {
	c, err := New(t.TempDir(), []string{"ls", "cat"}, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.ValidateCommand("ls -la") {
		t.Error("expected ls to be allowed")
	}
	if c.ValidateCommand("rm -rf /") {
		t.Error("expected rm to be denied")
	}
	if c.ValidateCommand("") {
		t.Error("expected empty command to be denied")
	}
}

func TestValidateCommandEmptyAllowlistAllowsAll(t *testing.T) {
	c, err := New(t.TempDir(), nil, 0, 0, 0, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.ValidateCommand("anything goes") {
		t.Error("expected empty allowlist to allow everything")
	}
}

func TestTruncateOutput(t *testing.T) {
	s := strings.Repeat("a", 100)
	out := TruncateOutput(s, 20)
	if !strings.HasPrefix(out, strings.Repeat("a", 10)) {
		t.Error("expected prefix preserved")
	}
	if !strings.HasSuffix(out, strings.Repeat("a", 10)) {
		t.Error("expected suffix preserved")
	}
	if !strings.Contains(out, "chars hidden") {
		t.Error("expected truncation marker")
	}
	if TruncateOutput("short", 20) != "short" {
		t.Error("expected short strings unchanged")
	}
}

func TestEffectiveTimeout(t *testing.T) {
	c, err := New(t.TempDir(), nil, 10, 0, 0, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := c.EffectiveTimeout(5 * time.Second); got != 5*time.Second {
		t.Errorf("expected requested timeout honored, got %v", got)
	}
	if got := c.EffectiveTimeout(60 * time.Second); got != 10*time.Second {
		t.Errorf("expected ceiling applied, got %v", got)
	}
	if got := c.EffectiveTimeout(0); got != 10*time.Second {
		t.Errorf("expected ceiling when unrequested, got %v", got)
	}
}

func TestHasDangerousMetacharacters(t *testing.T) {
	c, err := New(t.TempDir(), nil, 0, 0, 0, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !c.HasDangerousMetacharacters("ls; rm -rf /") {
		t.Error("expected semicolon to be flagged")
	}
	if c.HasDangerousMetacharacters("ls -la") {
		t.Error("expected plain command to pass")
	}
	if !c.RejectsShellMetacharacters() {
		t.Error("expected enhanced mode to be reported active")
	}
}
