// Package sandbox implements the function sandbox pool (C6): a
// dependency-hashed, time/use-bounded cache of isolated processes that run
// user-supplied tool function code, per spec.md §4.5.
//
// Grounded on the teacher's internal/agentctl/process.Manager — the same
// pipe-based subprocess lifecycle (Start/Stop, stdout/stderr readers,
// graceful-then-forced shutdown) generalized from a long-lived interactive
// agent CLI session to a single short-lived, non-interactive function
// invocation per Execute call.
package sandbox

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// ModuleKind discriminates how the entry file wraps the user's function code.
type ModuleKind string

const (
	ModuleESM ModuleKind = "esm"
	ModuleCJS ModuleKind = "cjs"
)

var (
	esmImportRe = regexp.MustCompile(`(?m)^\s*import\s+.+\s+from\s+['"]`)
	esmExportRe = regexp.MustCompile(`(?m)^\s*export\s+`)
	cjsRequire  = regexp.MustCompile(`\brequire\s*\(`)
	cjsExports  = regexp.MustCompile(`\bmodule\.exports\b`)
)

// DetectModuleKind pattern-matches executeCode per spec.md §4.5 step 3:
// explicit ESM indicators win when both ESM and CJS indicators are present
// (with a caller-visible warning obligation — see Pool.Execute), explicit
// CJS indicators alone select CJS, and the absence of either defaults to
// CJS.
func DetectModuleKind(code string) ModuleKind {
	kind, _ := DetectModuleKindWithAmbiguity(code)
	return kind
}

// DetectModuleKindWithAmbiguity is DetectModuleKind plus a flag reporting
// whether both ESM and CJS indicators were present — the case spec.md
// §4.5 step 3 calls out as warn-worthy even though ESM still wins.
func DetectModuleKindWithAmbiguity(code string) (ModuleKind, bool) {
	isESM := esmImportRe.MatchString(code) || esmExportRe.MatchString(code)
	isCJS := cjsRequire.MatchString(code) || cjsExports.MatchString(code)

	if isESM {
		return ModuleESM, isCJS
	}
	if isCJS {
		return ModuleCJS, false
	}
	return ModuleCJS, false
}

// DepHash computes spec.md §4.5 step 1's dependency hash: sha256 of the
// sorted "name@version" pairs joined by commas, truncated to 16 hex chars.
// Sorting first makes the hash independent of map iteration/declaration
// order — {a:1,b:2} and {b:2,a:1} must hash identically.
func DepHash(deps map[string]string) string {
	pairs := make([]string, 0, len(deps))
	for name, version := range deps {
		pairs = append(pairs, name+"@"+version)
	}
	sort.Strings(pairs)
	sum := sha256.Sum256([]byte(strings.Join(pairs, ",")))
	return hex.EncodeToString(sum[:])[:16]
}
