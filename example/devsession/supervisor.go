package main

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/Zereker/localsocket"
)

// supervisor tracks the subgraphs announced by connected sessions.
type supervisor struct {
	logger localsocket.Logger

	mu        sync.Mutex
	subgraphs map[string]subgraph
}

func newSupervisor(logger localsocket.Logger) *supervisor {
	return &supervisor{
		logger:    logger,
		subgraphs: make(map[string]subgraph),
	}
}

// Handle runs one session: a hello, then goodbye or disconnect.
func (s *supervisor) Handle(ctx context.Context, ch *localsocket.Channel) error {
	hello, err := localsocket.Receive[message](ch)
	if err != nil {
		return err
	}
	if hello.Kind != kindHello || hello.Subgraph == nil || hello.Subgraph.Name == "" {
		_ = ch.Send(message{Kind: kindError, Error: "expected hello with a subgraph"})
		return errors.Errorf("unexpected first message %q", hello.Kind)
	}

	name := hello.Subgraph.Name
	if !s.add(*hello.Subgraph) {
		_ = ch.Send(message{Kind: kindError, Error: "subgraph " + name + " is already running"})
		return errors.Errorf("duplicate subgraph %s", name)
	}
	defer s.remove(name)
	s.logger.Info("subgraph joined", "channel", ch.ID(), "subgraph", name, "url", hello.Subgraph.URL)

	if err := ch.Send(message{Kind: kindSubgraphs, Subgraphs: s.list()}); err != nil {
		return err
	}

	for {
		msg, err := localsocket.Receive[message](ch)
		switch {
		case errors.Is(err, localsocket.ErrPeerClosed):
			s.logger.Info("subgraph disconnected", "subgraph", name)
			return nil
		case err != nil:
			return err
		case msg.Kind == kindGoodbye:
			s.logger.Info("subgraph left", "subgraph", name)
			return nil
		default:
			s.logger.Warn("ignoring message", "subgraph", name, "kind", msg.Kind)
		}
	}
}

func (s *supervisor) add(sg subgraph) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subgraphs[sg.Name]; ok {
		return false
	}
	s.subgraphs[sg.Name] = sg
	return true
}

func (s *supervisor) remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.subgraphs, name)
}

func (s *supervisor) list() []subgraph {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]subgraph, 0, len(s.subgraphs))
	for _, sg := range s.subgraphs {
		out = append(out, sg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
