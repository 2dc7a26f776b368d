package action

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/org/opsconsole/pkg/models"
)

// Bounds are the replica limits enforced before a request is sent.
type Bounds struct {
	ScaleMax   int `yaml:"scale_max"`
	ReplicaMax int `yaml:"replica_max"`
}

// DefaultBounds matches the console's scale and replica dialogs.
var DefaultBounds = Bounds{ScaleMax: 20, ReplicaMax: 10}

func (b Bounds) withDefaults() Bounds {
	if b.ScaleMax <= 0 {
		b.ScaleMax = DefaultBounds.ScaleMax
	}
	if b.ReplicaMax <= 0 {
		b.ReplicaMax = DefaultBounds.ReplicaMax
	}
	return b
}

// ValidationError blocks a submission locally. No request is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ScaleForm changes the replica count of a Kubernetes deployment.
type ScaleForm struct {
	Ref     models.DeploymentRef
	Current int
	Desired int
}

func (f ScaleForm) Validate(b Bounds) error {
	b = b.withDefaults()
	if f.Desired < 0 || f.Desired > b.ScaleMax {
		return invalid("replicas", "must be between 0 and %d", b.ScaleMax)
	}
	if f.Desired == f.Current {
		return invalid("replicas", "unchanged")
	}
	return nil
}

// Submittable reports whether the confirm control is enabled.
func (f ScaleForm) Submittable(b Bounds) bool { return f.Validate(b) == nil }

// ReplicaForm changes the replica count of an application, optionally of
// one named component.
type ReplicaForm struct {
	App       string
	Env       string
	Component string
	Current   int
	Desired   int
}

func (f ReplicaForm) Validate(b Bounds) error {
	b = b.withDefaults()
	if f.Desired < 0 || f.Desired > b.ReplicaMax {
		return invalid("replicas", "must be between 0 and %d", b.ReplicaMax)
	}
	if f.Desired == f.Current {
		return invalid("replicas", "unchanged")
	}
	return nil
}

func (f ReplicaForm) Submittable(b Bounds) bool { return f.Validate(b) == nil }

// RollbackForm redeploys an application at another version.
type RollbackForm struct {
	App     string
	Env     string
	Current string
	Target  string
}

func (f RollbackForm) Validate() error {
	if strings.TrimSpace(f.Target) == "" {
		return invalid("version", "no version selected")
	}
	if f.Target == f.Current {
		return invalid("version", "%s is already deployed", f.Target)
	}
	return nil
}

func (f RollbackForm) Submittable() bool { return f.Validate() == nil }

// ManifestForm replaces a deployment's manifest.
type ManifestForm struct {
	Ref     models.DeploymentRef
	Content string
}

func (f ManifestForm) Validate() error {
	if strings.TrimSpace(f.Content) == "" {
		return invalid("manifest", "empty")
	}
	var doc any
	if err := yaml.Unmarshal([]byte(f.Content), &doc); err != nil {
		return invalid("manifest", "not valid YAML: %v", err)
	}
	if doc == nil {
		return invalid("manifest", "empty")
	}
	return nil
}

func (f ManifestForm) Submittable() bool { return f.Validate() == nil }
