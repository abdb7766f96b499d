package command

import (
	"errors"
	"strings"
	"sync"
	"testing"
)

func TestRegisterRejectsNilHandler(t *testing.T) {
	t.Parallel()

	tbl := NewTable("!")
	if err := tbl.Register("play", nil); err == nil {
		t.Fatal("expected error for nil handler")
	}
}

func TestRegisterRejectsDuplicate(t *testing.T) {
	t.Parallel()

	tbl := NewTable("!")
	h := func(Request) error { return nil }
	if err := tbl.Register("play", h); err != nil {
		t.Fatalf("first registration failed: %v", err)
	}
	if err := tbl.Register("play", h); err == nil {
		t.Fatal("expected error for duplicate registration")
	}
}

func TestResolveSplitsNameAndArgs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		content  string
		wantName string
		wantArgs string
	}{
		{"bare command", "!play", "play", ""},
		{"single arg", "!play despacito", "play", "despacito"},
		{"multi word args", "!play never gonna give you up", "play", "never gonna give you up"},
		{"tab separator", "!play\tdespacito", "play", "despacito"},
		{"args keep inner spacing", "!countdown  5", "countdown", " 5"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tbl := NewTable("!")
			for _, name := range []string{"play", "countdown"} {
				if err := tbl.Register(name, func(Request) error { return nil }); err != nil {
					t.Fatalf("register %s: %v", name, err)
				}
			}

			resolved, err := tbl.Resolve(tt.content)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if resolved.Name != tt.wantName {
				t.Errorf("name: got %q, want %q", resolved.Name, tt.wantName)
			}
			if resolved.Args != tt.wantArgs {
				t.Errorf("args: got %q, want %q", resolved.Args, tt.wantArgs)
			}
		})
	}
}

func TestResolveUnknownCommand(t *testing.T) {
	t.Parallel()

	tbl := NewTable("!")
	_, err := tbl.Resolve("!wiggle")

	var unknown *UnknownCommandError
	if !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCommandError, got %v", err)
	}
	if got, want := unknown.UserMessage(), "Command wiggle not recognized."; got != want {
		t.Errorf("user message: got %q, want %q", got, want)
	}
}

func TestResolveMissingPrefix(t *testing.T) {
	t.Parallel()

	tbl := NewTable("!")
	if _, err := tbl.Resolve("play something"); !errors.Is(err, ErrMissingPrefix) {
		t.Fatalf("expected ErrMissingPrefix, got %v", err)
	}
}

func TestResolveIsCaseSensitive(t *testing.T) {
	t.Parallel()

	tbl := NewTable("!")
	if err := tbl.Register("play", func(Request) error { return nil }); err != nil {
		t.Fatal(err)
	}

	var unknown *UnknownCommandError
	if _, err := tbl.Resolve("!Play song"); !errors.As(err, &unknown) {
		t.Fatalf("expected UnknownCommandError for mixed case, got %v", err)
	}
}

func TestGuardHeldDuringHandler(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	tbl := NewTable("!")
	err := tbl.Register("probe", func(Request) error {
		if mu.TryLock() {
			mu.Unlock()
			t.Error("guard was not held inside the handler")
		}
		return nil
	}, WithGuard(&mu))
	if err != nil {
		t.Fatal(err)
	}

	resolved, err := tbl.Resolve("!probe")
	if err != nil {
		t.Fatal(err)
	}
	if err := resolved.Run(Request{}); err != nil {
		t.Fatal(err)
	}
}

func TestGuardReleasedOnHandlerError(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	wantErr := errors.New("boom")
	tbl := NewTable("!")
	if err := tbl.Register("fail", func(Request) error { return wantErr }, WithGuard(&mu)); err != nil {
		t.Fatal(err)
	}

	resolved, err := tbl.Resolve("!fail")
	if err != nil {
		t.Fatal(err)
	}
	if err := resolved.Run(Request{}); !errors.Is(err, wantErr) {
		t.Fatalf("expected handler error, got %v", err)
	}

	if !mu.TryLock() {
		t.Fatal("guard still held after handler error")
	}
	mu.Unlock()
}

func TestHelpListsEveryCommand(t *testing.T) {
	t.Parallel()

	tbl := NewTable("!")
	h := func(Request) error { return nil }
	if err := tbl.Register("play", h, WithHelp("Play a song", "<url>")); err != nil {
		t.Fatal(err)
	}
	if err := tbl.Register("stop", h, WithHelp("Stop playback", "")); err != nil {
		t.Fatal(err)
	}

	help := tbl.Help()
	for _, want := range []string{"`!play <url>` - Play a song", "`!stop` - Stop playback"} {
		if !strings.Contains(help, want) {
			t.Errorf("help output missing %q:\n%s", want, help)
		}
	}

	line, ok := tbl.HelpFor("play")
	if !ok {
		t.Fatal("HelpFor(play) not found")
	}
	if line != "`!play <url>` - Play a song" {
		t.Errorf("unexpected help line: %q", line)
	}
	if _, ok := tbl.HelpFor("wiggle"); ok {
		t.Error("HelpFor(wiggle) should not be found")
	}
}
