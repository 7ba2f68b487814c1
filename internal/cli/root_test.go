package cli

import (
	"testing"

	"github.com/contenthub/hubdispatch/internal/config"
)

func TestNewRootCommandSubcommands(t *testing.T) {
	cmd := NewRootCommand(config.Config{})

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"publish", "payout"} {
		if !names[want] {
			t.Errorf("Expected subcommand %q, got %v", want, names)
		}
	}
	if cmd.PersistentFlags().Lookup("dry-run") == nil {
		t.Error("Expected persistent --dry-run flag")
	}
	if cmd.PersistentFlags().Lookup("verbose") == nil {
		t.Error("Expected persistent --verbose flag")
	}
}

func TestDryRunCombinesFlagAndEnvironment(t *testing.T) {
	cases := []struct {
		name string
		flag bool
		env  bool
		want bool
	}{
		{"neither", false, false, false},
		{"flag only", true, false, true},
		{"env only", false, true, true},
		{"both", true, true, true},
	}
	for _, tc := range cases {
		opts := &RootOptions{DryRun: tc.flag}
		if got := opts.dryRun(config.Config{DryRun: tc.env}); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestPublishCommandFailsWithoutStore(t *testing.T) {
	cmd := NewRootCommand(config.Config{})
	cmd.SetArgs([]string{"publish"})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected an error when no store backend is configured")
	}
}
