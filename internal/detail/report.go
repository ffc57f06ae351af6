package detail

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Report is the structured inspection report attached to a repository.
// Sections the server did not send stay nil.
type Report struct {
	ComposeFiles    []string
	Services        []Service
	Issues          []string
	Recommendations []string
}

// Service is one service detected in the compose files.
type Service struct {
	Name  string
	Build string
	Image string
}

// Builds reports whether the service is built from source.
func (s Service) Builds() bool {
	return s.Build != ""
}

// Empty reports whether no section is present.
func (r Report) Empty() bool {
	return len(r.ComposeFiles) == 0 && len(r.Services) == 0 && len(r.Issues) == 0 && len(r.Recommendations) == 0
}

type rawReport struct {
	ComposeFiles    json.RawMessage `json:"compose_files"`
	Services        json.RawMessage `json:"services"`
	Issues          json.RawMessage `json:"issues"`
	Recommendations json.RawMessage `json:"recommendations"`
}

// ParseReport decodes inspection details. Absent or null input yields an
// empty report; unknown keys are ignored.
func ParseReport(raw json.RawMessage) (Report, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return Report{}, nil
	}
	var r rawReport
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return Report{}, fmt.Errorf("decode inspection details: %w", err)
	}
	var (
		out Report
		err error
	)
	if out.ComposeFiles, err = parseStrings(r.ComposeFiles); err != nil {
		return Report{}, fmt.Errorf("compose_files: %w", err)
	}
	if out.Services, err = parseServices(r.Services); err != nil {
		return Report{}, fmt.Errorf("services: %w", err)
	}
	if out.Issues, err = parseStrings(r.Issues); err != nil {
		return Report{}, fmt.Errorf("issues: %w", err)
	}
	if out.Recommendations, err = parseStrings(r.Recommendations); err != nil {
		return Report{}, fmt.Errorf("recommendations: %w", err)
	}
	return out, nil
}

// parseStrings accepts a list of strings or of {message|description|file}
// objects.
func parseStrings(raw json.RawMessage) ([]string, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
			continue
		}
		var obj struct {
			Message     string `json:"message"`
			Description string `json:"description"`
			File        string `json:"file"`
			Path        string `json:"path"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return nil, err
		}
		for _, candidate := range []string{obj.Message, obj.Description, obj.File, obj.Path} {
			if c := strings.TrimSpace(candidate); c != "" {
				out = append(out, c)
				break
			}
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

type rawService struct {
	Name  string          `json:"name"`
	Build json.RawMessage `json:"build"`
	Image string          `json:"image"`
}

// parseServices accepts either a list of services or a name-keyed object.
func parseServices(raw json.RawMessage) ([]Service, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var list []rawService
	if bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		var byName map[string]rawService
		if err := json.Unmarshal(raw, &byName); err != nil {
			return nil, err
		}
		names := make([]string, 0, len(byName))
		for name := range byName {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			svc := byName[name]
			if svc.Name == "" {
				svc.Name = name
			}
			list = append(list, svc)
		}
	} else if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]Service, 0, len(list))
	for _, svc := range list {
		out = append(out, Service{
			Name:  strings.TrimSpace(svc.Name),
			Build: buildMarker(svc.Build),
			Image: strings.TrimSpace(svc.Image),
		})
	}
	return out, nil
}

// buildMarker flattens the compose build key: a context string, an object
// with a context, or a boolean flag.
func buildMarker(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return "."
		}
		return ""
	}
	var obj struct {
		Context string `json:"context"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		if obj.Context == "" {
			return "."
		}
		return obj.Context
	}
	return ""
}

func isAbsent(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}
