// -----------------------------------------------------------------------
// Job definition - inert description of work to be run on a site
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// EntryPointType classifies how a JobDefn entry point is interpreted.
type EntryPointType string

// EntryPointType constants
const (
	EntryTypeShell  EntryPointType = "SHELL"  // shell command string
	EntryTypeSite   EntryPointType = "SITE"   // dotted pillar.method name
	EntryTypeString EntryPointType = "STRING" // opaque string, site-interpreted
)

// Site pillar names for SITE entry points.
const (
	PillarAuth = "auth"
	PillarRun  = "run"
	PillarRepo = "repo"
	PillarSpin = "spin"
)

// JobDefn is the inert description of a unit of work. It carries no
// execution state; a JobContext is minted when the work is submitted.
type JobDefn struct {
	EntryPoint     string         `json:"entry_point" validate:"required"`
	EntryPointType EntryPointType `json:"entry_point_type" validate:"required,oneof=SHELL SITE STRING"`
	JobArgs        []string       `json:"job_args,omitempty"`
	SiteName       string         `json:"site_name,omitempty"`
	ComputeType    string         `json:"compute_type,omitempty"`
}

// NewJobDefn creates a shell job definition, the common case.
func NewJobDefn(entryPoint string, args ...string) *JobDefn {
	return &JobDefn{
		EntryPoint:     entryPoint,
		EntryPointType: EntryTypeShell,
		JobArgs:        args,
	}
}

// NewSiteJobDefn creates a definition whose entry point is a dotted
// pillar.method site endpoint, e.g. "repo.put".
func NewSiteJobDefn(entryPoint string, args ...string) *JobDefn {
	return &JobDefn{
		EntryPoint:     entryPoint,
		EntryPointType: EntryTypeSite,
		JobArgs:        args,
	}
}

// Validate validates the definition using go-playground/validator plus the
// pillar.method shape check for SITE entry points.
func (d *JobDefn) Validate() error {
	validate := validator.New()
	if err := validate.Struct(d); err != nil {
		return err
	}
	if d.EntryPointType == EntryTypeSite {
		pillar, _, err := d.SplitEntryPoint()
		if err != nil {
			return err
		}
		switch pillar {
		case PillarAuth, PillarRun, PillarRepo, PillarSpin:
		default:
			return fmt.Errorf("unknown site pillar: %s", pillar)
		}
	}
	return nil
}

// SplitEntryPoint splits a SITE entry point into its pillar and method.
func (d *JobDefn) SplitEntryPoint() (pillar, method string, err error) {
	parts := strings.SplitN(d.EntryPoint, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("site entry point must be pillar.method: %q", d.EntryPoint)
	}
	return parts[0], parts[1], nil
}
