package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/winchzone/dashboard/internal/access"
	"github.com/winchzone/dashboard/internal/auth"
)

func TestParseRoleCode(t *testing.T) {
	cases := map[string]int{"admin": access.CodeAdmin, "User": access.CodeUser, "1": access.CodeAdmin, "2": access.CodeUser}
	for raw, want := range cases {
		got, err := parseRoleCode(raw)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", raw, err)
		}
		if got != want {
			t.Fatalf("%s: expected %d, got %d", raw, want, got)
		}
	}
	for _, raw := range []string{"3", "driver", ""} {
		if _, err := parseRoleCode(raw); err == nil {
			t.Fatalf("%q: expected error", raw)
		}
	}
}

func TestHashPasswordCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"hash-password", "secret1"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	hash := strings.TrimSpace(out.String())
	ok, err := auth.Verify("secret1", hash)
	if err != nil || !ok {
		t.Fatalf("hash %q does not verify: %v", hash, err)
	}
}
