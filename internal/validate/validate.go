// Package validate holds the client-side checks that run before any
// mutating request is dispatched. Failures never reach the network.
package validate

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-playground/validator/v10"

	"github.com/munaimtahir/keystone/pkg/api/client"
)

// ErrInvalid matches every validation failure.
var ErrInvalid = errors.New("validation failed")

// Error is a user-facing validation failure for one field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

func invalid(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

const DefaultBranch = "main"

var scpLike = regexp.MustCompile(`^git@[A-Za-z0-9.\-]+:[^\s:]+\.git$`)

// GitURL accepts http(s) URLs with a host and git@host:path.git SSH remotes.
func GitURL(raw string) error {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return invalid("git_url", "Git URL is required")
	}
	ep, err := transport.NewEndpoint(trimmed)
	if err != nil {
		return invalid("git_url", "Git URL is not valid: %s", trimmed)
	}
	switch ep.Protocol {
	case "http", "https":
		if ep.Host == "" || strings.Trim(ep.Path, "/") == "" {
			return invalid("git_url", "Git URL must include a host and repository path")
		}
		return nil
	case "ssh":
		if !scpLike.MatchString(trimmed) {
			return invalid("git_url", "SSH remotes must look like git@host:org/repo.git")
		}
		return nil
	default:
		return invalid("git_url", "Git URL must start with https://, http:// or git@")
	}
}

// Port parses a container port in [1, 65535].
func Port(raw string) (int, error) {
	trimmed := strings.TrimSpace(raw)
	port, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, invalid("container_port", "Port must be a whole number between 1 and 65535")
	}
	if port < 1 || port > 65535 {
		return 0, invalid("container_port", "Port must be between 1 and 65535")
	}
	return port, nil
}

// EnvVars parses the env var text as a single flat JSON object. Blank input
// yields an empty map. Nested objects and arrays are rejected; numbers and
// booleans are kept as their literal text.
func EnvVars(raw string) (map[string]string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]string{}, nil
	}
	if !strings.HasPrefix(trimmed, "{") {
		return nil, invalid("env_vars", "Environment variables must be a JSON object like {\"KEY\": \"value\"}")
	}
	dec := json.NewDecoder(strings.NewReader(trimmed))
	var values map[string]json.RawMessage
	if err := dec.Decode(&values); err != nil {
		return nil, invalid("env_vars", "Environment variables are not valid JSON: %v", err)
	}
	if dec.More() {
		return nil, invalid("env_vars", "Environment variables must be a single JSON object")
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		if strings.TrimSpace(key) == "" {
			return nil, invalid("env_vars", "Environment variable names cannot be blank")
		}
		text, ok := client.EnvText(value)
		if !ok {
			return nil, invalid("env_vars", "Environment variable %s must be a string, not a nested value", key)
		}
		out[key] = text
	}
	return out, nil
}

var structs = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("giturl", func(fl validator.FieldLevel) bool {
		return GitURL(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

// Struct runs tag-based validation and converts the first failure into an *Error.
func Struct(v any, messages map[string]string) error {
	err := structs.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return invalid("", "%v", err)
	}
	fe := fieldErrs[0]
	key := fe.Field() + "." + fe.Tag()
	if msg, ok := messages[key]; ok {
		return invalid(fe.Field(), "%s", msg)
	}
	if msg, ok := messages[fe.Field()]; ok {
		return invalid(fe.Field(), "%s", msg)
	}
	return invalid(fe.Field(), "%s is invalid", fe.Field())
}
