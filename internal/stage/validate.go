package stage

import (
	"fmt"
	"strings"

	"github.com/squeaker/squeaker/internal/digest"
)

// Validate checks a Record for internal consistency.
// Returns a list of validation error messages (empty if valid).
func Validate(r *Record) []string {
	var errs []string

	switch r.Type {
	case TypeURL, TypeChunk, TypeResource:
	default:
		errs = append(errs, fmt.Sprintf("unknown stage type %q", r.Type))
	}

	if r.Key == "" {
		errs = append(errs, "'stage_key' is required")
	}
	if r.ImageDigest == "" {
		errs = append(errs, "'image_digest' is required")
	}

	if want := digest.Stage(string(r.Type), r.Key); r.Digest != want {
		errs = append(errs, fmt.Sprintf("stage digest %s does not match its type and key (want %s)", r.Digest, want))
	}

	if r.Type == TypeURL && r.URL == "" {
		errs = append(errs, "url stage: 'url' is required")
	}
	if r.Type != TypeURL && r.Parent == "" {
		errs = append(errs, fmt.Sprintf("%s stage: 'parent' is required", r.Type))
	}

	// For derived stages the key must be the aggregate of the recorded inputs.
	if r.Type == TypeChunk || r.Type == TypeResource {
		if len(r.DigestInputs) == 0 {
			errs = append(errs, fmt.Sprintf("%s stage: 'digest_inputs' is required", r.Type))
		} else if agg, err := digest.Digests(r.DigestInputs); err != nil {
			errs = append(errs, fmt.Sprintf("digest_inputs: %v", err))
		} else if agg != r.Key {
			errs = append(errs, "stage key does not match the aggregate of digest_inputs")
		}
	}

	return errs
}

// ValidationError wraps the messages produced by Validate.
type ValidationError struct {
	Digest string
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("stage record %.12s is invalid:\n  - %s", e.Digest, strings.Join(e.Errors, "\n  - "))
}
