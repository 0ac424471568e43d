package config

import (
	"bytes"
	"os"
	"text/template"
)

// ExpandEnv expands environment variables in YAML content using Go templates.
// Uses {{.VAR_NAME}} syntax to avoid collision with $ in literal values.
//
// Tokens, URLs with embedded credentials, and rule text frequently contain
// raw $ characters; shell-style expansion would corrupt them.
//
// Examples:
//   - {{.CODIAL_API_TOKEN}} → value of CODIAL_API_TOKEN
//   - {{.GATEWAY_HOST}}:{{.GATEWAY_PORT}} → hostname:port with both expanded
//
// Missing variables expand to empty string. Malformed templates pass the
// input through untouched so plain YAML never breaks.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("config").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	envMap := make(map[string]string)
	for _, env := range os.Environ() {
		// Split only on the first = to handle values containing =.
		if idx := bytes.IndexByte([]byte(env), '='); idx > 0 {
			envMap[env[:idx]] = env[idx+1:]
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, envMap); err != nil {
		return data
	}

	return buf.Bytes()
}
