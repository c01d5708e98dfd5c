package capability

import "testing"

func TestValidate(t *testing.T) {
	if !Validate(FilesystemRead) {
		t.Error("filesystem.read should be valid")
	}
	if Validate(Tag("filesystem.teleport")) {
		t.Error("unknown tag should not validate")
	}
}

func TestSetHasAndDifference(t *testing.T) {
	granted := NewSet(FilesystemRead, MemoryRead)
	if !granted.Has(FilesystemRead) {
		t.Error("expected FilesystemRead in set")
	}
	if granted.Has(FilesystemWrite) {
		t.Error("did not expect FilesystemWrite in set")
	}

	missing := Difference([]Tag{FilesystemRead, ExecPkg}, granted)
	if len(missing) != 1 || missing[0] != ExecPkg {
		t.Errorf("expected [exec.pkg] missing, got %v", missing)
	}
}

func TestExpandPreset(t *testing.T) {
	tags := ExpandPreset("preset:readonly")
	if len(tags) != 3 {
		t.Fatalf("expected 3 tags, got %d", len(tags))
	}
	if !IsPreset("preset:readonly") {
		t.Error("expected preset:readonly to be known")
	}
	if ExpandPreset("preset:nonexistent") != nil {
		t.Error("expected nil for unknown preset")
	}
}

func TestNetworkAllowed(t *testing.T) {
	cases := []struct {
		name       string
		granted    Set
		isLoopback bool
		want       bool
	}{
		{"none sentinel overrides local", NewSet(NetworkNone, NetworkLocal), true, false},
		{"none sentinel overrides external", NewSet(NetworkNone, NetworkExternal), false, false},
		{"local allows loopback", NewSet(NetworkLocal), true, true},
		{"local denies non-loopback", NewSet(NetworkLocal), false, false},
		{"external allows non-loopback", NewSet(NetworkExternal), false, true},
		{"external allows loopback too", NewSet(NetworkExternal), true, true},
		{"no network capability", NewSet(FilesystemRead), false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := NetworkAllowed(c.granted, c.isLoopback); got != c.want {
				t.Errorf("got %v, want %v", got, c.want)
			}
		})
	}
}
