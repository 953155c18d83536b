package models

import "encoding/json"

// GraphQLRequest is the body POSTed to the execution endpoint.
type GraphQLRequest struct {
	Query       string      `json:"query"`
	CostOptions LimitConfig `json:"costOptions"`
}

// QueryResponse carries the query payload and whether it was served from cache.
type QueryResponse struct {
	Data   json.RawMessage `json:"data"`
	Cached bool            `json:"cached"`
}

// GraphQLResponse is the execution endpoint's success body.
type GraphQLResponse struct {
	QueryResponse *QueryResponse `json:"queryResponse"`
}

// ErrorDetail describes a failed request.
type ErrorDetail struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

// ErrorResponse is the body written for non-2xx responses.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// OriginRequest is a plain GraphQL-over-HTTP request sent to the origin.
type OriginRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// OriginError is one entry of a GraphQL "errors" array.
type OriginError struct {
	Message string `json:"message"`
}

// OriginResponse is a plain GraphQL-over-HTTP response.
type OriginResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []OriginError   `json:"errors,omitempty"`
}
