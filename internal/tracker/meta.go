package tracker

import (
	"bufio"
	"os"
	"runtime"
	"strings"
	"sync"

	"codeberg.org/mutker/carbonwise/internal/runlog"
)

// Version is stamped into run meta; set at build time with -ldflags.
var Version = "dev"

const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var cpuModel = sync.OnceValue(func() string {
	f, err := os.Open("/proc/cpuinfo")
	if err != nil {
		return runtime.GOARCH
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if ok && strings.TrimSpace(key) == "model name" {
			return strings.TrimSpace(value)
		}
	}

	return runtime.GOARCH
})

// EnvMeta returns the provenance merged over caller meta in every record.
func EnvMeta(meterDesc string) map[string]any {
	hostname, _ := os.Hostname()
	cwd, _ := os.Getwd()

	return map[string]any{
		"schema_version":     runlog.SchemaVersion,
		"go_version":         runtime.Version(),
		"platform":           runtime.GOOS + "/" + runtime.GOARCH,
		"cpu":                cpuModel(),
		"num_cpu":            runtime.NumCPU(),
		"hostname":           hostname,
		"cwd":                cwd,
		"meter":              meterDesc,
		"carbonwise_version": Version,
	}
}

func callerMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	if _, ok := out["notes"]; !ok {
		out["notes"] = DefaultNotes
	}

	return out
}
