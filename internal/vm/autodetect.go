package vm

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
)

// candidate VM locations probed per platform, in order.
var candidatePaths = map[string][]string{
	"linux": {
		"/usr/bin/squeak",
		"/usr/local/bin/squeak",
		"/usr/bin/squeakvm",
	},
	"darwin": {
		"/Applications/Squeak.app/Contents/MacOS/Squeak",
	},
}

// candidateGlobs covers versioned install locations.
var candidateGlobs = map[string][]string{
	"darwin": {
		"/Applications/Squeak*.app/Contents/MacOS/Squeak",
	},
	"linux": {
		"/opt/squeak*/bin/squeak",
	},
}

// Autodetect finds a Smalltalk VM executable: $PATH first, then the
// platform's conventional install locations. Globbed matches are tried
// in reverse lexical order so the newest versioned install wins.
func Autodetect() (string, error) {
	if path, err := exec.LookPath("squeak"); err == nil {
		return path, nil
	}

	for _, p := range candidatePaths[runtime.GOOS] {
		if isExecutable(p) {
			return p, nil
		}
	}

	for _, g := range candidateGlobs[runtime.GOOS] {
		matches, err := filepath.Glob(g)
		if err != nil {
			continue
		}
		sort.Sort(sort.Reverse(sort.StringSlice(matches)))
		for _, m := range matches {
			if isExecutable(m) {
				return m, nil
			}
		}
	}

	return "", fmt.Errorf("no Smalltalk VM found; install squeak or pass --vm")
}

func isExecutable(path string) bool {
	_, err := exec.LookPath(path)
	return err == nil
}
