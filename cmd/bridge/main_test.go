package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	err := cmd.Execute()
	return out.String(), err
}

func TestTypesCmd(t *testing.T) {
	out, err := execute(t, "types")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"Game.FastSpinner : Game.Spinner",
		"Game.Mover wraps demo.Mover",
		"speed: f32",
		"waypoints: list<vec2>",
		"update",
		"demo.Mover : Game.Movable",
		"demo.Health",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q\n%s", want, out)
		}
	}
}

func TestRunCmd(t *testing.T) {
	out, err := execute(t, "run", "--ticks", "2")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"tick 2", "Game.FastSpinner ready", `"angle": 6`, "Game.Mover ready"} {
		if !strings.Contains(out, want) {
			t.Errorf("output lacks %q\n%s", want, out)
		}
	}
}

func TestRunCmd_Errors(t *testing.T) {
	if _, err := execute(t, "run", "--mode", "hybrid"); err == nil {
		t.Error("expected error for an unknown mode")
	}
	if _, err := execute(t, "run", filepath.Join(t.TempDir(), "missing.wasm")); err == nil {
		t.Error("expected error for a missing module")
	}
	if _, err := execute(t, "run", "-i"); err == nil || !strings.Contains(err.Error(), "terminal") {
		t.Errorf("interactive without a terminal = %v", err)
	}
}

func TestDemoCmd(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "demo")
	if _, err := execute(t, "demo", dir); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"demo.wasm", "demo.lua", "demo.lua.sym", "demo.yaml"} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}

	out, err := execute(t, "run", filepath.Join(dir, "demo.lua"), "--scene", filepath.Join(dir, "demo.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Game.Follower ready") {
		t.Errorf("lua run output:\n%s", out)
	}
}
