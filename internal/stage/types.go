package stage

// Type discriminates the three kinds of derivation stages.
type Type string

const (
	// TypeURL is a stage whose image was downloaded from a URL.
	TypeURL Type = "url"
	// TypeChunk is a stage produced by evaluating a Smalltalk chunk
	// against its parent's image.
	TypeChunk Type = "stage"
	// TypeResource is a stage that pins the fingerprint of a local file
	// without changing the image.
	TypeResource Type = "resource"
)

// Record is one node of the derivation DAG, persisted as indented JSON
// under stages/<stage_digest>. The DAG is never held in memory; edges
// exist only as Parent pointers walked on demand.
type Record struct {
	Type        Type   `json:"stage_type"`
	Key         string `json:"stage_key"`
	Digest      string `json:"stage_digest"`
	ImageDigest string `json:"image_digest"`

	// URL stages only.
	URL string `json:"url,omitempty"`

	// Chunk and resource stages.
	Parent       string   `json:"parent,omitempty"`
	DigestInputs []string `json:"digest_inputs,omitempty"`

	// Chunk stages only.
	Chunk string `json:"chunk,omitempty"`
	VM    string `json:"vm,omitempty"`

	// Resource stages only. ResourceDigest is nil when the file was
	// absent at build time; absence is a valid, cacheable state.
	ResourcePath   string  `json:"resource_path,omitempty"`
	ResourceDigest *string `json:"resource_digest,omitempty"`
}

// Tag is a mutable, human-named pointer at a stage, persisted under
// tags/<name>. Tags are the garbage collector's roots.
type Tag struct {
	Name        string `json:"tag"`
	StageDigest string `json:"stage_digest"`
	ImageDigest string `json:"image_digest"`
}
