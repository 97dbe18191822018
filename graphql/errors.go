package graphql

import "fmt"

// RequestError reports that the endpoint could not be reached or the
// request could not be built.
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("could not send request: %v", e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

// ResponseError reports a response body that was not a GraphQL envelope.
type ResponseError struct {
	Msg string
	Err error
}

func (e *ResponseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *ResponseError) Unwrap() error { return e.Err }

// GraphQLError carries the errors reported by the endpoint, joined by newlines.
type GraphQLError struct {
	Msg string
}

func (e *GraphQLError) Error() string {
	return e.Msg
}
