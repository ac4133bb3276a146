// Package configs provides embedded configuration templates for agent-brain.
//
// Templates are embedded at build time using Go's embed directive so they
// ship inside the binary itself rather than depending on files next to it.
//
// Template files:
//   - project-config.example.yaml: written by `agent-brain init` as
//     agent-brain.yaml in the project root.
//   - user-config.example.yaml: written by `agent-brain init --global` at
//     the XDG user config path (see config.GetUserConfigPath).
//
// See internal/config/config.go's Load/candidatePaths for the full
// resolution order these templates participate in.
package configs

import _ "embed"

//go:embed user-config.example.yaml
var UserConfigTemplate string

//go:embed project-config.example.yaml
var ProjectConfigTemplate string
