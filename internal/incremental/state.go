package incremental

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SchemaVersion is the BuildState layout version written by this build.
const SchemaVersion = 1

// StateDir is the bookkeeping directory inside the output tree.
const StateDir = ".corpora"

// ErrCorruptState indicates a state file that exists but cannot be decoded.
var ErrCorruptState = errors.New("build state is corrupt")

// DocState is the recorded outcome of one document's last successful render.
type DocState struct {
	SourcePath  string   `json:"source_path"`
	ContentHash string   `json:"content_hash"`
	ContextHash string   `json:"context_hash"`
	RenderHash  string   `json:"render_hash"`
	OutputHash  string   `json:"output_hash"`
	Tags        []string `json:"tags,omitempty"`
	Series      string   `json:"series,omitempty"`
}

// PageState is the recorded outcome of one index page.
type PageState struct {
	Path string `json:"path"`
	Hash string `json:"hash"`
}

// State is the BuildState persisted between runs.
type State struct {
	SchemaVersion   int                  `json:"schema_version"`
	RendererVersion string               `json:"renderer_version"`
	TemplateHash    string               `json:"template_hash"`
	IndexVersioning Versioning           `json:"index_versioning"`
	Documents       map[string]DocState  `json:"documents"`
	Pages           map[string]PageState `json:"pages"`
}

// NewState returns an empty state stamped with sig.
func NewState(sig Signature, v Versioning) *State {
	return &State{
		SchemaVersion:   sig.SchemaVersion,
		RendererVersion: sig.RendererVersion,
		TemplateHash:    sig.TemplateHash,
		IndexVersioning: v,
		Documents:       make(map[string]DocState),
		Pages:           make(map[string]PageState),
	}
}

// Signature returns the renderer identity recorded in the state.
func (s *State) Signature() Signature {
	return Signature{SchemaVersion: s.SchemaVersion, RendererVersion: s.RendererVersion, TemplateHash: s.TemplateHash}
}

// StatePath returns the state file location inside an output tree.
func StatePath(outDir string) string {
	return filepath.Join(outDir, StateDir, "state.json")
}

// LoadState reads a state file. A missing file yields (nil, nil); an
// undecodable one yields ErrCorruptState.
func LoadState(path string) (*State, error) {
	// #nosec G304 -- path is derived from the configured output directory.
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read build state: %w", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}
	if s.Documents == nil {
		s.Documents = make(map[string]DocState)
	}
	if s.Pages == nil {
		s.Pages = make(map[string]PageState)
	}
	return &s, nil
}

// SaveState writes s atomically: a temp file in the same directory is renamed
// over path.
func SaveState(path string, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal build state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace build state: %w", err)
	}
	return nil
}
