package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/tailored-agentic-units/propstore/property"
)

// useBackend points the global options at a fresh file backend and
// captures command output.
func useBackend(t *testing.T) (string, *bytes.Buffer) {
	t.Helper()

	dir := t.TempDir()
	out := &bytes.Buffer{}

	prevOpts, prevOut := *opts, stdout
	t.Cleanup(func() {
		*opts = prevOpts
		stdout = prevOut
	})

	*opts = Options{Backend: property.BackendFile, Path: dir, Limit: 64}
	stdout = out
	return dir, out
}

func seed(t *testing.T, dir string, kv ...string) {
	t.Helper()
	s, err := property.NewFileStore(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	for i := 0; i+1 < len(kv); i += 2 {
		if err := s.Set(context.Background(), kv[i], kv[i+1]); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSetDumpDelete(t *testing.T) {
	_, out := useBackend(t)

	set := &cmdSet{}
	set.Args.Name, set.Args.Key, set.Args.Value = "wallets", "alice", `{"balance":12}`
	if err := set.Execute(nil); err != nil {
		t.Fatalf("set error = %v", err)
	}

	text := &cmdSet{Raw: true}
	text.Args.Name, text.Args.Key, text.Args.Value = "wallets", "note", "not json"
	if err := text.Execute(nil); err != nil {
		t.Fatalf("set --string error = %v", err)
	}

	bad := &cmdSet{}
	bad.Args.Name, bad.Args.Key, bad.Args.Value = "wallets", "bob", "not json"
	if err := bad.Execute(nil); err == nil {
		t.Error("set with invalid JSON should fail")
	}

	dump := &cmdDump{}
	dump.Args.Name = "wallets"
	if err := dump.Execute(nil); err != nil {
		t.Fatal(err)
	}
	if got, want := strings.TrimSpace(out.String()), `{"alice":{"balance":12},"note":"not json"}`; got != want {
		t.Errorf("dump = %s, want %s", got, want)
	}

	del := &cmdDelete{}
	del.Args.Name, del.Args.Key = "wallets", "alice"
	if err := del.Execute(nil); err != nil {
		t.Fatal(err)
	}
	if err := del.Execute(nil); err == nil {
		t.Error("deleting a missing key should fail")
	}

	missing := &cmdDelete{}
	missing.Args.Name, missing.Args.Key = "nothing", "k"
	if err := missing.Execute(nil); err == nil {
		t.Error("deleting from an absent store should fail")
	}
}

func TestListAndVerify(t *testing.T) {
	dir, out := useBackend(t)
	seed(t, dir,
		"goodIndex", "1", "good:0", `{"a":1}`,
		"brokenIndex", "2", "broken:0", `{"a":1,"b":`,
	)

	if err := (&cmdList{}).Execute(nil); err != nil {
		t.Fatal(err)
	}
	listing := out.String()
	for _, want := range []string{"good", "broken", "1 missing, corrupt"} {
		if !strings.Contains(listing, want) {
			t.Errorf("list output missing %q:\n%s", want, listing)
		}
	}

	out.Reset()
	verify := &cmdVerify{}
	verify.Args.Names = []string{"good"}
	if err := verify.Execute(nil); err != nil {
		t.Errorf("verify good error = %v", err)
	}

	if err := (&cmdVerify{}).Execute(nil); !errors.Is(err, errUnhealthy) {
		t.Errorf("verify all error = %v, want errUnhealthy", err)
	}
}

func TestRepair(t *testing.T) {
	dir, out := useBackend(t)
	seed(t, dir,
		"ledgerIndex", "1",
		"ledger:0", `{"alice":{"n":1}}{"bob":{"n":`,
	)

	repair := &cmdRepair{}
	repair.Args.Name = "ledger"
	if err := repair.Execute(nil); err != nil {
		t.Fatalf("repair error = %v", err)
	}
	if !strings.Contains(out.String(), "repaired with brace-match") {
		t.Errorf("repair output = %q", out.String())
	}

	out.Reset()
	verify := &cmdVerify{}
	verify.Args.Names = []string{"ledger"}
	if err := verify.Execute(nil); err != nil {
		t.Errorf("verify after repair error = %v (%s)", err, out.String())
	}

	out.Reset()
	inspect := &cmdInspect{}
	inspect.Args.Name = "ledger"
	if err := inspect.Execute(nil); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), "status") || !strings.Contains(out.String(), "ok") {
		t.Errorf("inspect output = %q", out.String())
	}
}

func TestEditsRefuseCorruptStore(t *testing.T) {
	dir, out := useBackend(t)
	corrupt := `{"transactions":[{"id":1},{"id":2},{"id":`
	seed(t, dir, "ledgerIndex", "1", "ledger:0", corrupt)

	set := &cmdSet{}
	set.Args.Name, set.Args.Key, set.Args.Value = "ledger", "note", `"hi"`
	if err := set.Execute(nil); !errors.Is(err, errNeedsRepair) {
		t.Fatalf("set error = %v, want errNeedsRepair", err)
	}

	del := &cmdDelete{}
	del.Args.Name, del.Args.Key = "ledger", "transactions"
	if err := del.Execute(nil); !errors.Is(err, errNeedsRepair) {
		t.Fatalf("delete error = %v, want errNeedsRepair", err)
	}

	s, err := property.NewFileStore(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	got, _, err := s.Get(context.Background(), "ledger:0")
	s.Close()
	if err != nil || got != corrupt {
		t.Fatalf("ledger:0 = (%q, %v), want the corrupt payload untouched", got, err)
	}

	repair := &cmdRepair{Field: "transactions"}
	repair.Args.Name = "ledger"
	if err := repair.Execute(nil); err != nil {
		t.Fatalf("repair error = %v", err)
	}
	if !strings.Contains(out.String(), "repaired with array-aware") {
		t.Errorf("repair output = %q", out.String())
	}

	if err := set.Execute(nil); err != nil {
		t.Errorf("set after repair error = %v", err)
	}
}
