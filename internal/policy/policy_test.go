// Copyright 2026 Rob Macrae. All rights reserved.
// SPDX-License-Identifier: LicenseRef-Proprietary

package policy

import (
	"encoding/json"
	"strings"
	"testing"
)

const (
	testRoot = "/tmp/claude_users"
	testWS   = "/tmp/claude_users/abcdef0123456789"
)

func TestForTierModes(t *testing.T) {
	cases := map[Tier]string{
		TierStrict:     "deny",
		TierStandard:   "ask",
		TierPermissive: "acceptEdits",
	}
	for tier, mode := range cases {
		p, err := ForTier(tier, testRoot, testWS)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tier, err)
		}
		if p.DefaultMode != mode {
			t.Errorf("%s: expected mode %s, got %s", tier, mode, p.DefaultMode)
		}
	}
}

func TestForTierUnknown(t *testing.T) {
	if _, err := ForTier("paranoid", testRoot, testWS); err == nil {
		t.Fatal("expected error for unknown tier")
	}
}

func TestCrossWorkspaceDenied(t *testing.T) {
	for _, tier := range []Tier{TierStrict, TierStandard} {
		p, _ := ForTier(tier, testRoot, testWS)

		wantRead := "Read(" + testRoot + "/*)!" + testWS
		wantWrite := "Write(" + testRoot + "/*)!" + testWS
		if !contains(p.Deny, wantRead) {
			t.Errorf("%s: missing cross-workspace read denial", tier)
		}
		if !contains(p.Deny, wantWrite) {
			t.Errorf("%s: missing cross-workspace write denial", tier)
		}
	}
}

func TestEveryTierDeniesSudoAndRootRm(t *testing.T) {
	for _, tier := range []Tier{TierStrict, TierStandard, TierPermissive} {
		p, _ := ForTier(tier, testRoot, testWS)
		if !contains(p.Deny, "Bash(sudo:*)") {
			t.Errorf("%s: sudo not denied", tier)
		}
		if !contains(p.Deny, "Bash(rm:/)*") {
			t.Errorf("%s: rm / not denied", tier)
		}
	}
}

func TestWritesScopedToWorkspace(t *testing.T) {
	p, _ := ForTier(TierStrict, testRoot, testWS)
	for _, rule := range p.AllowedTools {
		if strings.HasPrefix(rule, "Write(") && !strings.Contains(rule, testWS) {
			t.Errorf("strict tier allows writes outside workspace: %s", rule)
		}
	}
}

func TestPermissionsJSONShape(t *testing.T) {
	p, _ := ForTier(TierStandard, testRoot, testWS)
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var doc map[string]json.RawMessage
	json.Unmarshal(data, &doc)
	for _, key := range []string{"defaultMode", "allowedTools", "deny"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("missing key %s", key)
		}
	}
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
