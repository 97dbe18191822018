// Package check maps a subgraph schema check onto the subgraph check
// mutation and interprets its result.
package check

import (
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultVariant is used when a graph ref does not name a variant.
const DefaultVariant = "current"

// DefaultValidationWindow is how far back operations are checked when no
// validation period is configured.
const DefaultValidationWindow = 7 * 24 * time.Hour

// ErrInvalidGraphRef is returned by ParseGraphRef for malformed input.
var ErrInvalidGraphRef = errors.New("invalid graph ref")

// GraphRef identifies a graph variant, written "name@variant".
type GraphRef struct {
	Name    string
	Variant string
}

// ParseGraphRef parses "name" or "name@variant".
func ParseGraphRef(s string) (GraphRef, error) {
	name, variant, found := strings.Cut(strings.TrimSpace(s), "@")
	if name == "" || (found && variant == "") || strings.Contains(variant, "@") {
		return GraphRef{}, errors.WithMessagef(ErrInvalidGraphRef, "%q", s)
	}
	if !found {
		variant = DefaultVariant
	}
	return GraphRef{Name: name, Variant: variant}, nil
}

func (r GraphRef) String() string {
	return r.Name + "@" + r.Variant
}

// GitContext describes the commit a proposed schema comes from.
// Every field is optional.
type GitContext struct {
	Branch    *string
	Commit    *string
	Author    *string
	RemoteURL *string
}

// ValidationPeriod selects the window of historic operations to check
// against, as offsets into the past from the time of the check.
type ValidationPeriod struct {
	From time.Duration
	To   time.Duration
}

// DefaultValidationPeriod covers the last seven days.
func DefaultValidationPeriod() ValidationPeriod {
	return ValidationPeriod{From: DefaultValidationWindow}
}

// CheckConfig tunes how operation checks are evaluated.
type CheckConfig struct {
	QueryCountThreshold           *int64
	QueryCountThresholdPercentage *float64
	ValidationPeriod              *ValidationPeriod
}

// Input is everything needed to check a proposed subgraph schema.
type Input struct {
	GraphRef       GraphRef
	Subgraph       string
	ProposedSchema string
	GitContext     GitContext
	Config         CheckConfig
}

// ChangeSeverity is the outcome of a check as reported to users.
type ChangeSeverity string

const (
	Pass ChangeSeverity = "PASS"
	Fail ChangeSeverity = "FAIL"
)

// MutationChangeSeverity is the severity enum as it appears on the wire.
type MutationChangeSeverity string

const (
	SeverityNotice  MutationChangeSeverity = "NOTICE"
	SeverityFailure MutationChangeSeverity = "FAILURE"
)

// ErrUnreachableSeverity is matched by the DefectError returned for a
// severity value the API is not supposed to send.
var ErrUnreachableSeverity = errors.New("unreachable change severity")

// DefectError reports a condition that indicates a bug rather than bad input.
type DefectError struct {
	Value string
	Err   error
}

func (e *DefectError) Error() string {
	return fmt.Sprintf("%v %q: this is a bug, please report it", e.Err, e.Value)
}

func (e *DefectError) Unwrap() error { return e.Err }

// ToChangeSeverity maps NOTICE to Pass and FAILURE to Fail. Any other value
// is a defect and is reported as a *DefectError instead of being coerced.
func ToChangeSeverity(s MutationChangeSeverity) (ChangeSeverity, error) {
	switch s {
	case SeverityNotice:
		return Pass, nil
	case SeverityFailure:
		return Fail, nil
	default:
		return "", &DefectError{Value: string(s), Err: ErrUnreachableSeverity}
	}
}

// PartialSchemaInput is the proposed schema as sent in the mutation.
type PartialSchemaInput struct {
	SDL  *string `json:"sdl"`
	Hash *string `json:"hash"`
}

// HistoricQueryParameters selects which historic operations are checked.
type HistoricQueryParameters struct {
	QueryCountThreshold           *int64   `json:"queryCountThreshold"`
	QueryCountThresholdPercentage *float64 `json:"queryCountThresholdPercentage"`
	From                          *string  `json:"from"`
	To                            *string  `json:"to"`
	// not configurable, but the API requires them to be present
	ExcludedClients   []string `json:"excludedClients"`
	IgnoredOperations []string `json:"ignoredOperations"`
	IncludedVariants  []string `json:"includedVariants"`
}

// GitContextInput is the git context as sent in the mutation.
type GitContextInput struct {
	Branch    *string `json:"branch"`
	Commit    *string `json:"commit"`
	Committer *string `json:"committer"`
	RemoteURL *string `json:"remoteUrl"`
	Message   *string `json:"message"`
}

// MutationVariables are the variables of the subgraph check mutation.
type MutationVariables struct {
	GraphID        string                  `json:"graph_id"`
	Variant        string                  `json:"variant"`
	Subgraph       string                  `json:"subgraph"`
	ProposedSchema PartialSchemaInput      `json:"proposed_schema"`
	Config         HistoricQueryParameters `json:"config"`
	GitContext     GitContextInput         `json:"git_context"`
}

// Variables translates the input into mutation variables. The validation
// period is resolved against now and emitted as RFC 3339 timestamps in UTC.
func (in Input) Variables(now time.Time) MutationVariables {
	period := DefaultValidationPeriod()
	if in.Config.ValidationPeriod != nil {
		period = *in.Config.ValidationPeriod
	}
	now = now.UTC()
	from := now.Add(-period.From).Format(time.RFC3339)
	to := now.Add(-period.To).Format(time.RFC3339)
	sdl := in.ProposedSchema

	return MutationVariables{
		GraphID:  in.GraphRef.Name,
		Variant:  in.GraphRef.Variant,
		Subgraph: in.Subgraph,
		ProposedSchema: PartialSchemaInput{
			SDL: &sdl,
		},
		Config: HistoricQueryParameters{
			QueryCountThreshold:           in.Config.QueryCountThreshold,
			QueryCountThresholdPercentage: in.Config.QueryCountThresholdPercentage,
			From:                          &from,
			To:                            &to,
		},
		GitContext: in.GitContext.toInput(),
	}
}

func (g GitContext) toInput() GitContextInput {
	return GitContextInput{
		Branch:    g.Branch,
		Commit:    g.Commit,
		Committer: g.Author,
		RemoteURL: g.RemoteURL,
	}
}
