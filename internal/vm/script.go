package vm

import (
	"fmt"
	"path/filepath"
	"strings"
	"text/template"
)

// buildScript wraps a recipe chunk for a scripted build run. The image
// redirects its standard streams into output.txt/errors.txt, evaluates
// the chunk under an exception trap that dumps a backtrace and quits
// with exit status 1, and otherwise snapshots and quits cleanly.
const buildScript = `| squeakerOutput squeakerErrors |
squeakerOutput := FileStream forceNewFileNamed: '{{st .OutputPath}}'.
squeakerErrors := FileStream forceNewFileNamed: '{{st .ErrorsPath}}'.
Transcript addDependent: squeakerOutput.
[[
{{.Chunk}}
] on: Error do: [:err |
	squeakerErrors nextPutAll: err description; cr.
	err signalerContext errorReportOn: squeakerErrors.
	squeakerErrors flush; close.
	squeakerOutput flush; close.
	Smalltalk snapshot: true andQuit: false.
	Smalltalk quitPrimitive: 1]] value.
squeakerErrors flush; close.
squeakerOutput flush; close.
Smalltalk snapshot: true andQuit: true.
`

var scriptTemplate = template.New("script").Funcs(template.FuncMap{
	// st escapes a value for embedding in a Smalltalk string literal.
	"st": func(s string) string { return strings.ReplaceAll(s, "'", "''") },
})

func init() {
	template.Must(scriptTemplate.Parse(buildScript))
}

// renderScript produces the Smalltalk script driving one build
// invocation. All paths in the script are absolute; nothing depends on
// the child's working directory.
func renderScript(spec RunSpec) (string, error) {
	var b strings.Builder
	err := scriptTemplate.Execute(&b, map[string]string{
		"Chunk":      spec.Chunk,
		"OutputPath": joinAbs(spec.WorkDir, outputName),
		"ErrorsPath": joinAbs(spec.WorkDir, errorsName),
	})
	if err != nil {
		return "", fmt.Errorf("rendering vm script: %w", err)
	}
	return b.String(), nil
}

func joinAbs(dir, name string) string {
	joined := filepath.Join(dir, name)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return joined
	}
	return abs
}
