package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jward/gircheck"
)

// parsedArgs is the positional part of the command line.
type parsedArgs struct {
	targets []gircheck.Target
	help    bool
}

// parseTargets turns the arguments left after cobra's flag parsing into
// targets. `--gir-file <name>` and `--gir-file=<name>` apply to every
// folder after them until the next one. `-h` or `--help` anywhere wins
// over everything else.
func parseTargets(args []string, girFile string) (parsedArgs, error) {
	if wantsHelp(args) {
		return parsedArgs{help: true}, nil
	}

	var res parsedArgs
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--gir-file":
			if i+1 >= len(args) {
				return res, errors.New("--gir-file needs a value")
			}
			i++
			girFile = args[i]
		case strings.HasPrefix(arg, "--gir-file="):
			girFile = strings.TrimPrefix(arg, "--gir-file=")
		case strings.HasPrefix(arg, "-") && arg != "-":
			return res, fmt.Errorf("unknown flag %q after the first folder", arg)
		default:
			res.targets = append(res.targets, gircheck.Target{Folder: arg, GirFile: girFile})
			continue
		}
		if girFile == "" {
			return res, errors.New("--gir-file must not be empty")
		}
	}
	return res, nil
}

// wantsHelp reports whether -h or --help appears among args.
func wantsHelp(args []string) bool {
	for _, arg := range args {
		if arg == "-h" || arg == "--help" {
			return true
		}
	}
	return false
}
