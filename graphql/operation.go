package graphql

import (
	"encoding/json"
	"strings"
)

// Request is the wire shape of a GraphQL request body.
type Request struct {
	Query         string `json:"query"`
	OperationName string `json:"operationName,omitempty"`
	Variables     any    `json:"variables,omitempty"`
}

// Error is one entry of a GraphQL response's errors list.
type Error struct {
	Message    string         `json:"message"`
	Path       []any          `json:"path,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type envelope[R any] struct {
	Data   *R      `json:"data"`
	Errors []Error `json:"errors"`
}

// Operation describes one GraphQL document together with the Go types of
// its variables (V) and response data (R). Each query or mutation declares
// its own Operation value and passes it to Post.
type Operation[V, R any] struct {
	Name     string
	Document string
}

// BuildRequest returns the request body for vars.
func (o Operation[V, R]) BuildRequest(vars V) Request {
	return Request{
		Query:         o.Document,
		OperationName: o.Name,
		Variables:     vars,
	}
}

// ParseResponse decodes a response body. A null data field yields (nil, nil).
// Any errors list present in the body, even an empty one, yields a
// *GraphQLError with every message joined by a newline; data is then ignored.
func (o Operation[V, R]) ParseResponse(body []byte) (*R, error) {
	var resp envelope[R]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &ResponseError{Msg: "failed to parse response JSON", Err: err}
	}

	if resp.Errors != nil {
		msgs := make([]string, 0, len(resp.Errors))
		for _, e := range resp.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, &GraphQLError{Msg: strings.Join(msgs, "\n")}
	}
	return resp.Data, nil
}
