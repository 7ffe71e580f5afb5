// Package flagx lets several independent flag sets share one argument list.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs keeps only the arguments that belong to the named flags and
// drops everything else, so a flag.FlagSet that knows a subset of the
// program's flags can parse the result without failing.
//
// valueFlags take a value, either as the next argument ("-d /data") or inline
// ("-d=/data"). A following argument that starts with "-" is never taken as a
// value. boolFlags never consume the next argument; "-auto=false" still works.
//
// The result is never nil.
func FilterArgs(args []string, valueFlags []string, boolFlags ...string) []string {
	takesValue := make(map[string]bool, len(valueFlags)+len(boolFlags))
	for _, f := range valueFlags {
		takesValue[f] = true
	}
	for _, f := range boolFlags {
		takesValue[f] = false
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		if name, _, inline := strings.Cut(arg, "="); inline {
			if _, ok := takesValue[name]; ok {
				out = append(out, arg)
			}
			continue
		}

		wantsValue, ok := takesValue[arg]
		if !ok {
			continue
		}
		out = append(out, arg)
		if wantsValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			i++
			out = append(out, args[i])
		}
	}
	return out
}

// ConfigPath returns the JSON config file named by -c or -config in args, or
// "" when neither is present. When both appear the last one wins.
func ConfigPath(args []string) string {
	var path string

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&path, "config", "", "path to config file")
	fs.StringVar(&path, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, []string{"-c", "-config", "--c", "--config"}))

	return path
}
