package stage

import (
	"strings"
	"testing"

	"github.com/squeaker/squeaker/internal/digest"
)

func validURLRecord() *Record {
	return &Record{
		Type:        TypeURL,
		Key:         "http://example.com/base.zip",
		Digest:      digest.Stage("url", "http://example.com/base.zip"),
		ImageDigest: digest.String("img"),
		URL:         "http://example.com/base.zip",
	}
}

func validChunkRecord(t *testing.T) *Record {
	t.Helper()
	inputs := []string{digest.String("parent"), digest.String("img"), digest.String("/vm"), digest.String("chunk")}
	key, err := digest.Digests(inputs)
	if err != nil {
		t.Fatal(err)
	}
	return &Record{
		Type:         TypeChunk,
		Key:          key,
		Digest:       digest.Stage("stage", key),
		ImageDigest:  digest.String("out"),
		Parent:       digest.String("parent"),
		DigestInputs: inputs,
		Chunk:        "chunk",
		VM:           "/vm",
	}
}

func TestValidateAcceptsWellFormedRecords(t *testing.T) {
	if errs := Validate(validURLRecord()); len(errs) != 0 {
		t.Errorf("url record: %v", errs)
	}
	if errs := Validate(validChunkRecord(t)); len(errs) != 0 {
		t.Errorf("chunk record: %v", errs)
	}
}

func TestValidateDigestMismatch(t *testing.T) {
	rec := validURLRecord()
	rec.Digest = digest.String("tampered")
	errs := Validate(rec)
	if len(errs) == 0 {
		t.Fatal("expected errors")
	}
	if !strings.Contains(strings.Join(errs, "; "), "does not match") {
		t.Errorf("errs = %v", errs)
	}
}

func TestValidateKeyMustAggregateInputs(t *testing.T) {
	rec := validChunkRecord(t)
	rec.DigestInputs[0] = digest.String("swapped")
	errs := Validate(rec)
	if len(errs) == 0 {
		t.Fatal("expected errors")
	}
}

func TestValidateRequiredFields(t *testing.T) {
	rec := validChunkRecord(t)
	rec.Parent = ""
	if errs := Validate(rec); len(errs) == 0 {
		t.Error("missing parent accepted")
	}

	rec = validURLRecord()
	rec.URL = ""
	if errs := Validate(rec); len(errs) == 0 {
		t.Error("missing url accepted")
	}

	if errs := Validate(&Record{Type: Type("bogus")}); len(errs) == 0 {
		t.Error("unknown type accepted")
	}
}

func TestValidateBadHexInput(t *testing.T) {
	rec := validChunkRecord(t)
	rec.DigestInputs = []string{"not-hex"}
	if errs := Validate(rec); len(errs) == 0 {
		t.Error("undecodable input accepted")
	}
}

func TestValidationErrorListsAll(t *testing.T) {
	rec := validURLRecord()
	rec.URL = ""
	rec.Key = ""
	err := &ValidationError{Digest: rec.Digest, Errors: Validate(rec)}
	msg := err.Error()
	if !strings.Contains(msg, "'url' is required") || !strings.Contains(msg, "'stage_key' is required") {
		t.Errorf("message = %q", msg)
	}
}
