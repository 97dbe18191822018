// Command devsession runs either a supervisor that tracks local subgraphs,
// or a session that announces one subgraph to a running supervisor.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Zereker/localsocket"
	"github.com/Zereker/localsocket/check"
	"github.com/Zereker/localsocket/config"
	"github.com/Zereker/localsocket/graphql"
)

func main() {
	var (
		mode       = flag.String("mode", "supervisor", "supervisor or session")
		configPath = flag.String("config", "", "path to a TOML config file")
		name       = flag.String("name", "", "subgraph name (session mode)")
		url        = flag.String("url", "", "subgraph routing url (session mode)")
		graphRef   = flag.String("check", "", "graph ref to check the schema against before joining (session mode)")
		schemaPath = flag.String("schema", "", "path to the subgraph schema used with -check")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, err := newLogger(os.Stderr, cfg.Log.Level, *mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	switch *mode {
	case "supervisor":
		err = runSupervisor(ctx, cfg, logger)
	case "session":
		if *graphRef != "" {
			err = runCheck(ctx, cfg, *graphRef, *name, *schemaPath)
			if err != nil {
				break
			}
		}
		err = runSession(ctx, cfg, logger, subgraph{Name: *name, URL: *url})
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}

	if err != nil && ctx.Err() == nil {
		logger.Error("exiting", "error", err)
		os.Exit(1)
	}
}

func channelOptions(cfg config.Config, logger localsocket.Logger) []localsocket.Option {
	return []localsocket.Option{
		localsocket.LoggerOption(logger),
		localsocket.MessageMaxSize(cfg.Socket.MaxMessageSize),
		localsocket.ReadTimeoutOption(cfg.Socket.ReadTimeout.Duration),
		localsocket.WriteTimeoutOption(cfg.Socket.WriteTimeout.Duration),
	}
}

func runSupervisor(ctx context.Context, cfg config.Config, logger localsocket.Logger) error {
	server, err := localsocket.Listen(cfg.Socket.Path,
		localsocket.ServerLoggerOption(logger),
		localsocket.ServerShutdownTimeoutOption(cfg.Socket.ShutdownTimeout.Duration),
		localsocket.ServerMaxSessionsOption(cfg.Socket.MaxSessions),
		localsocket.ServerChannelOptions(channelOptions(cfg, logger)...),
	)
	if err != nil {
		return err
	}
	defer server.Close()

	return server.Serve(ctx, newSupervisor(logger))
}

func runSession(ctx context.Context, cfg config.Config, logger localsocket.Logger, sg subgraph) error {
	ch, err := localsocket.Dial(ctx, cfg.Socket.Path, channelOptions(cfg, logger)...)
	if err != nil {
		return err
	}
	defer ch.Close()

	subgraphs, err := join(ch, sg)
	if err != nil {
		return err
	}
	for _, s := range subgraphs {
		logger.Info("subgraph running", "subgraph", s.Name, "url", s.URL)
	}

	<-ctx.Done()
	return ch.Send(message{Kind: kindGoodbye})
}

// join announces sg and returns the subgraphs the supervisor knows about.
func join(ch *localsocket.Channel, sg subgraph) ([]subgraph, error) {
	if err := ch.Send(message{Kind: kindHello, Subgraph: &sg}); err != nil {
		return nil, err
	}
	reply, err := localsocket.Receive[message](ch)
	if err != nil {
		return nil, err
	}
	if reply.Kind == kindError {
		return nil, fmt.Errorf("supervisor rejected session: %s", reply.Error)
	}
	if reply.Kind != kindSubgraphs {
		return nil, fmt.Errorf("unexpected reply %q", reply.Kind)
	}
	return reply.Subgraphs, nil
}

func runCheck(ctx context.Context, cfg config.Config, ref, name, schemaPath string) error {
	graph, err := check.ParseGraphRef(ref)
	if err != nil {
		return err
	}
	sdl, err := os.ReadFile(schemaPath)
	if err != nil {
		return err
	}

	client := graphql.NewClient(cfg.GraphQL.APIKey, cfg.GraphQL.Endpoint)
	resp, err := check.Run(ctx, client, check.Input{
		GraphRef:       graph,
		Subgraph:       name,
		ProposedSchema: string(sdl),
	})
	if err != nil {
		return err
	}

	for _, c := range resp.Changes {
		fmt.Printf("%s\t%s\t%s\n", c.Severity, c.Code, c.Description)
	}
	if resp.ChangeSeverity == check.Fail {
		return fmt.Errorf("schema check for %s failed", graph)
	}
	return nil
}
