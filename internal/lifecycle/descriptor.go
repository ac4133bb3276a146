package lifecycle

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// descriptorFile is the live runtime descriptor's filename inside a
// project's state directory, per spec.md section 6's persisted state
// layout (".claude/agent-brain/runtime.json").
const descriptorFile = "runtime.json"

// RuntimeDescriptor is the discoverable record a server writes when it
// binds, so the CLI (and other tooling) can find a running instance for a
// given project without being told its port explicitly (spec.md section 4,
// "Lifecycle" row; section 6 "Server discovery order").
type RuntimeDescriptor struct {
	Mode        string `json:"mode"` // storage backend mode, e.g. "columnar" or "relational"
	ProjectRoot string `json:"project_root"`
	BindHost    string `json:"bind_host"`
	Port        int    `json:"port"`
	PID         int    `json:"pid"`
	BaseURL     string `json:"base_url"`
}

// WriteDescriptor persists the descriptor to stateDir/runtime.json. Called
// once, right before the server starts accepting requests.
func WriteDescriptor(stateDir string, d RuntimeDescriptor) error {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(stateDir, descriptorFile), data, 0o644)
}

// RemoveDescriptor deletes the descriptor on clean shutdown. Absence is not
// an error: a process that crashed before writing one, or was already
// cleaned up, should not fail shutdown a second time.
func RemoveDescriptor(stateDir string) error {
	err := os.Remove(filepath.Join(stateDir, descriptorFile))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ReadDescriptor loads the descriptor from a specific state directory.
// ok is false if no descriptor exists there.
func ReadDescriptor(stateDir string) (d RuntimeDescriptor, ok bool, err error) {
	data, err := os.ReadFile(filepath.Join(stateDir, descriptorFile))
	if err != nil {
		if os.IsNotExist(err) {
			return RuntimeDescriptor{}, false, nil
		}
		return RuntimeDescriptor{}, false, err
	}
	if err := json.Unmarshal(data, &d); err != nil {
		return RuntimeDescriptor{}, false, err
	}
	return d, true, nil
}

// DiscoverDescriptor walks upward from startDir looking for
// "<ancestor>/.claude/agent-brain/runtime.json", matching the CLI's
// "runtime descriptor of the nearest project" discovery step (spec.md
// section 6). Returns ok=false if no project up to and including the
// filesystem root has a live descriptor.
func DiscoverDescriptor(startDir string) (d RuntimeDescriptor, ok bool, err error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return RuntimeDescriptor{}, false, err
	}
	for {
		stateDir := filepath.Join(dir, ".claude", "agent-brain")
		d, found, err := ReadDescriptor(stateDir)
		if err != nil {
			return RuntimeDescriptor{}, false, err
		}
		if found {
			return d, true, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return RuntimeDescriptor{}, false, nil
		}
		dir = parent
	}
}
