package check

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Zereker/localsocket/graphql"
)

// ErrGraphNotFound is returned when the API has no graph for the ref.
var ErrGraphNotFound = errors.New("graph not found")

// ErrNoCheckResult is returned when the API accepted the check but
// reported neither a result nor composition errors.
var ErrNoCheckResult = errors.New("check returned no result")

const mutationDocument = `mutation SubgraphCheckMutation(
  $graph_id: ID!
  $variant: String!
  $subgraph: String!
  $proposed_schema: PartialSchemaInput!
  $git_context: GitContextInput!
  $config: HistoricQueryParameters!
) {
  service(id: $graph_id) {
    checkPartialSchema(
      graphVariant: $variant
      implementingServiceName: $subgraph
      partialSchema: $proposed_schema
      gitContext: $git_context
      historicParameters: $config
    ) {
      compositionValidationResult {
        errors {
          message
        }
      }
      checkSchemaResult {
        diffToPrevious {
          severity
          numberOfCheckedOperations
          changes {
            severity
            code
            description
          }
        }
        targetUrl
      }
    }
  }
}`

// Mutation is the subgraph check operation.
var Mutation = graphql.Operation[MutationVariables, MutationResponseData]{
	Name:     "SubgraphCheckMutation",
	Document: mutationDocument,
}

// MutationResponseData is the data returned by the subgraph check mutation.
type MutationResponseData struct {
	Service *struct {
		CheckPartialSchema struct {
			CompositionValidationResult struct {
				Errors []struct {
					Message string `json:"message"`
				} `json:"errors"`
			} `json:"compositionValidationResult"`
			CheckSchemaResult *struct {
				DiffToPrevious struct {
					Severity                  MutationChangeSeverity `json:"severity"`
					NumberOfCheckedOperations *int64                 `json:"numberOfCheckedOperations"`
					Changes                   []struct {
						Severity    MutationChangeSeverity `json:"severity"`
						Code        string                 `json:"code"`
						Description string                 `json:"description"`
					} `json:"changes"`
				} `json:"diffToPrevious"`
				TargetURL *string `json:"targetUrl"`
			} `json:"checkSchemaResult"`
		} `json:"checkPartialSchema"`
	} `json:"service"`
}

// SchemaChange is one change found between the proposed and current schema.
type SchemaChange struct {
	Code        string
	Description string
	Severity    ChangeSeverity
}

// Response is the interpreted result of a check.
type Response struct {
	TargetURL                 *string
	NumberOfCheckedOperations int64
	Changes                   []SchemaChange
	ChangeSeverity            ChangeSeverity
}

// CompositionError reports that the proposed subgraph does not compose
// with the rest of the graph.
type CompositionError struct {
	GraphRef GraphRef
	Messages []string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("subgraph schema for %s failed to compose:\n%s",
		e.GraphRef, strings.Join(e.Messages, "\n"))
}

// Run checks the proposed schema against the graph.
func Run(ctx context.Context, client *graphql.Client, in Input) (*Response, error) {
	data, err := graphql.Post(ctx, client, Mutation, in.Variables(time.Now()))
	if err != nil {
		return nil, errors.WithMessagef(err, "subgraph check for %s", in.GraphRef)
	}
	return buildResponse(data, in.GraphRef)
}

func buildResponse(data *MutationResponseData, ref GraphRef) (*Response, error) {
	if data == nil || data.Service == nil {
		return nil, errors.WithMessagef(ErrGraphNotFound, "%s", ref)
	}
	result := data.Service.CheckPartialSchema

	if errs := result.CompositionValidationResult.Errors; len(errs) > 0 {
		msgs := make([]string, 0, len(errs))
		for _, e := range errs {
			msgs = append(msgs, e.Message)
		}
		return nil, &CompositionError{GraphRef: ref, Messages: msgs}
	}

	if result.CheckSchemaResult == nil {
		return nil, errors.WithMessagef(ErrNoCheckResult, "%s", ref)
	}
	diff := result.CheckSchemaResult.DiffToPrevious

	severity, err := ToChangeSeverity(diff.Severity)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		TargetURL:      result.CheckSchemaResult.TargetURL,
		ChangeSeverity: severity,
		Changes:        make([]SchemaChange, 0, len(diff.Changes)),
	}
	if diff.NumberOfCheckedOperations != nil {
		resp.NumberOfCheckedOperations = *diff.NumberOfCheckedOperations
	}
	for _, c := range diff.Changes {
		s, err := ToChangeSeverity(c.Severity)
		if err != nil {
			return nil, err
		}
		resp.Changes = append(resp.Changes, SchemaChange{
			Code:        c.Code,
			Description: c.Description,
			Severity:    s,
		})
	}
	return resp, nil
}
