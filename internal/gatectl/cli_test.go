package gatectl

import (
	"path/filepath"
	"testing"

	"infergate/internal/keystore"
)

func run(t *testing.T, args ...string) error {
	t.Helper()
	cmd := BuildRootCmd()
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestKeysCommands(t *testing.T) {
	p := filepath.Join(t.TempDir(), "keys.json")

	if err := run(t, "keys", "init", "--file", p); err != nil {
		t.Fatalf("init: %v", err)
	}
	if err := run(t, "keys", "add", "service-a", "--file", p); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := run(t, "keys", "add", "service-a", "--file", p); err == nil {
		t.Fatalf("duplicate add must fail")
	}
	if err := run(t, "keys", "rotate", "service-a", "--file", p); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if err := run(t, "keys", "list", "--file", p); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := run(t, "keys", "remove", "service-a", "--file", p); err != nil {
		t.Fatalf("remove: %v", err)
	}

	names, err := keystore.ListKeys(p)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("names=%v", names)
	}
}

func TestKeysRequiresSubcommand(t *testing.T) {
	if err := run(t, "keys"); err == nil {
		t.Fatalf("bare keys must fail")
	}
}

func TestCheckRequiresURL(t *testing.T) {
	if err := run(t, "check"); err == nil {
		t.Fatalf("check without --url must fail")
	}
}
