package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/giantswarm/steward/internal/location"
)

// ValidationError is one rejected field. An empty Field marks a problem
// with the document as a whole.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors collects every rejected field of one document.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	switch len(ve) {
	case 0:
		return "no validation errors"
	case 1:
		return ve[0].Error()
	}
	messages := make([]string, 0, len(ve))
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return "validation failed: " + strings.Join(messages, "; ")
}

// Add records a rejected field.
func (ve *ValidationErrors) Add(field, message string, value any) {
	*ve = append(*ve, ValidationError{Field: field, Value: value, Message: message})
}

func (ve ValidationErrors) err() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

// required rejects blank values and reports whether value was present.
func (ve *ValidationErrors) required(field, value, owner string) bool {
	if strings.TrimSpace(value) == "" {
		ve.Add(field, "is required for "+owner, value)
		return false
	}
	return true
}

func (ve *ValidationErrors) oneOf(field, value string, allowed []string) {
	if !slices.Contains(allowed, value) {
		ve.Add(field, "must be one of: "+strings.Join(allowed, ", "), value)
	}
}

// name checks a name that ends up in member names and container names.
func (ve *ValidationErrors) name(field, value, owner string) {
	switch {
	case !ve.required(field, value, owner):
	case len(value) > 100:
		ve.Add(field, "must not exceed 100 characters", value)
	case strings.ContainsAny(value, " /"):
		ve.Add(field, "cannot contain spaces or slashes", value)
	}
}

func (ve *ValidationErrors) notNegative(field string, value int64) {
	if value < 0 {
		ve.Add(field, "must not be negative", value)
	}
}

// invalidFile wraps the validation errors of the file at path.
func invalidFile(what, path string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("invalid %s %s: %w", what, path, err)
}

// Validate checks config.yaml after it was merged onto the defaults.
func (c Config) Validate() error {
	var errs ValidationErrors

	positive := []struct {
		field string
		value time.Duration
	}{
		{"defaults.pollInterval", c.Defaults.PollInterval},
		{"defaults.maxPollBackoff", c.Defaults.MaxPollBackoff},
		{"defaults.waitInterval", c.Defaults.WaitInterval},
		{"defaults.readinessTimeout", c.Defaults.ReadinessTimeout},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errs.Add(p.field, "must be a positive duration", p.value)
		}
	}
	if c.Defaults.MaxPollBackoff < c.Defaults.PollInterval {
		errs.Add("defaults.maxPollBackoff", "must not be shorter than pollInterval", c.Defaults.MaxPollBackoff)
	}
	if c.Defaults.LaunchAttempts < 1 {
		errs.Add("defaults.launchAttempts", "must be at least 1", c.Defaults.LaunchAttempts)
	}
	errs.notNegative("defaults.launchBackoff", int64(c.Defaults.LaunchBackoff))

	if c.Location.Ports != "" {
		if _, err := location.ParsePortRange(c.Location.Ports); err != nil {
			errs.Add("location.ports", err.Error(), c.Location.Ports)
		}
	}

	launchers := []string{string(LauncherTypeDocker), string(LauncherTypePodman), string(LauncherTypeKubernetes)}
	errs.oneOf("launcher.type", string(c.Launcher.Type), launchers)

	for name, tc := range c.Types {
		errs.notNegative("types."+name+".readinessTimeout", int64(tc.ReadinessTimeout))
	}

	return errs.err()
}

// Validate checks a cluster definition. knownTypes lists the registered
// entity types; nil skips the member type check.
func (d ClusterDefinition) Validate(knownTypes []string) error {
	var errs ValidationErrors

	errs.name("name", d.Name, "cluster")
	if errs.required("memberType", d.MemberType, "cluster") && knownTypes != nil {
		errs.oneOf("memberType", d.MemberType, knownTypes)
	}

	errs.notNegative("initialSize", int64(d.InitialSize))
	errs.notNegative("minSuccess", int64(d.MinSuccess))
	errs.notNegative("maxConcurrency", int64(d.MaxConcurrency))
	errs.notNegative("scaleTimeout", int64(d.ScaleTimeout))

	return errs.err()
}
