package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// EnvVars holds an application's environment. Servers store whatever JSON
// the operator submitted, so numbers, booleans and null are accepted and
// kept as their literal text.
type EnvVars map[string]string

func (e *EnvVars) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*e = nil
		return nil
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("env_vars: %w", err)
	}
	out := make(EnvVars, len(raw))
	for key, value := range raw {
		text, ok := EnvText(value)
		if !ok {
			// nested values have no env form; keep the JSON so nothing is lost
			var buf bytes.Buffer
			if err := json.Compact(&buf, value); err != nil {
				return fmt.Errorf("env_vars %s: %w", key, err)
			}
			text = buf.String()
		}
		out[key] = text
	}
	*e = out
	return nil
}

// EnvText renders a scalar JSON value as an environment variable value.
// Strings are unquoted, numbers and booleans keep their literal text and
// null becomes "". It reports false for objects and arrays.
func EnvText(value json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 {
		return "", false
	}
	switch trimmed[0] {
	case '{', '[':
		return "", false
	case '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return "", false
		}
		return s, true
	case 'n':
		return "", string(trimmed) == "null"
	case 't', 'f':
		b, err := strconv.ParseBool(string(trimmed))
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(b), true
	default:
		var n json.Number
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return "", false
		}
		return n.String(), true
	}
}
