// Package buildinfo carries version metadata stamped in with -ldflags:
//
//	-X vrpsolver/internal/buildinfo.Version=v1.2.0 -X vrpsolver/internal/buildinfo.Commit=abc123
package buildinfo

import (
    "fmt"
    "runtime"
    "runtime/debug"
)

var (
    Version = "dev"
    Commit  = ""
    BuiltAt = ""
)

func init() {
    if Commit != "" {
        return
    }
    // fall back to VCS stamping from `go build` when ldflags were not set
    if bi, ok := debug.ReadBuildInfo(); ok {
        for _, s := range bi.Settings {
            switch s.Key {
            case "vcs.revision":
                Commit = s.Value
            case "vcs.time":
                if BuiltAt == "" { BuiltAt = s.Value }
            }
        }
    }
}

func Info() map[string]string {
    return map[string]string{
        "version":   Version,
        "commit":    Commit,
        "builtAt":   BuiltAt,
        "goVersion": runtime.Version(),
    }
}

// String is the one-line form printed by `vrpctl version` and at startup.
func String() string {
    commit := Commit
    if len(commit) > 12 { commit = commit[:12] }
    if commit == "" { commit = "unknown" }
    return fmt.Sprintf("%s (commit %s, built %s, %s)", Version, commit, or(BuiltAt, "unknown"), runtime.Version())
}

func or(v, d string) string {
    if v == "" { return d }
    return v
}
