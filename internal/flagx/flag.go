// Package flagx lets several configuration layers share one command line.
// Each layer filters os.Args down to the flags it owns before parsing them.
package flagx

import (
	"flag"
	"io"
	"slices"
	"strings"
)

// FilterArgs keeps the flags named in allowed together with their values.
// A value is either joined with '=' (-d=agent.db) or the next argument when
// that argument does not start with '-'. Everything else is dropped.
func FilterArgs(args []string, allowed []string) []string {
	out := []string{}
	for i := 0; i < len(args); i++ {
		name, _, joined := strings.Cut(args[i], "=")
		if !strings.HasPrefix(name, "-") || !slices.Contains(allowed, name) {
			continue
		}
		out = append(out, args[i])
		if !joined && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// ConfigPath returns the JSON config path given with -c, -config or
// --config, or "" when none is present. The last occurrence wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to a JSON config file")
	fs.StringVar(&path, "c", "", "path to a JSON config file (shorthand)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--config"}))

	return path
}
