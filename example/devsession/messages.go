package main

// Message kinds exchanged between supervisor and sessions.
const (
	kindHello     = "hello"
	kindSubgraphs = "subgraphs"
	kindGoodbye   = "goodbye"
	kindError     = "error"
)

type subgraph struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type message struct {
	Kind      string     `json:"kind"`
	Subgraph  *subgraph  `json:"subgraph,omitempty"`
	Subgraphs []subgraph `json:"subgraphs,omitempty"`
	Error     string     `json:"error,omitempty"`
}
