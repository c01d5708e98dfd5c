package commands

import "github.com/dohr-michael/ozymandias/internal/ozerrors"

// exitCodeForKind maps the nine closed error kinds to a CLI exit code.
// The taxonomy itself is fixed; the exact numbers are this CLI's own
// choice, not dictated by any external interface.
var exitCodeForKind = map[ozerrors.Kind]int{
	ozerrors.CapabilityDenied: 10,
	ozerrors.SkillNotAllowed:  11,
	ozerrors.SkillMissing:     12,
	ozerrors.InvalidPath:      13,
	ozerrors.SandboxViolation: 14,
	ozerrors.ExecutionError:   15,
	ozerrors.MemoryError:      16,
	ozerrors.NetworkViolation: 17,
	ozerrors.UnknownError:     18,
}

// exitCodeFor returns the exit code for a task error_type string, or 1
// if it does not match a known kind (should not happen given the
// closed taxonomy, but callers never crash on it).
func exitCodeFor(errorType string) int {
	if code, ok := exitCodeForKind[ozerrors.Kind(errorType)]; ok {
		return code
	}
	return 1
}
