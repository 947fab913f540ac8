// Package orchestrator wires the watcher, aggregator, write-back engine,
// relay, hooks and MCP server around one embedded event bus.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/mark3labs/checkwatch/internal/config"
	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/hooks"
	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/mark3labs/checkwatch/internal/mcpserver"
	"github.com/mark3labs/checkwatch/internal/nats"
	"github.com/mark3labs/checkwatch/internal/progress"
	"github.com/mark3labs/checkwatch/internal/relay"
	"github.com/mark3labs/checkwatch/internal/watcher"
	"github.com/mark3labs/checkwatch/internal/writeback"
	natsserver "github.com/nats-io/nats-server/v2/server"
	natsgo "github.com/nats-io/nats.go"
	"golang.org/x/sync/errgroup"
)

// ErrBusClosed is returned by Wait when the event bus connection closes
// while the orchestrator is still running.
var ErrBusClosed = errors.New("event bus closed unexpectedly")

// Orchestrator runs the pipeline: watcher -> bus -> aggregator -> relay,
// with hooks and the MCP server as optional consumers.
type Orchestrator struct {
	cfg *config.Config

	ns       *natsserver.Server // Embedded NATS server
	natsPort int                // NATS server port
	natsDir  string             // Holds the port file
	nc       *natsgo.Conn       // In-process NATS connection
	bus      *nats.Bus

	coord  *watcher.Coordinator
	agg    *progress.Aggregator
	engine *writeback.Engine
	relay  *relay.Broadcaster
	hooks  *hooks.Runner
	mcp    *mcpserver.Server

	ctx       context.Context    // Context for cancellation
	cancel    context.CancelFunc // Cancel function
	group     *errgroup.Group
	busClosed chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
}

// New creates an orchestrator for cfg. Nothing runs until Start.
func New(cfg *config.Config) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:       cfg,
		agg:       progress.New(),
		engine:    writeback.New(writeback.Config{BackupDir: cfg.BackupPath(), MaxBackups: cfg.MaxBackups}),
		ctx:       ctx,
		cancel:    cancel,
		busClosed: make(chan struct{}),
	}, nil
}

// Start initializes all components. Subscribers are attached before the
// watcher's initial scan so no task:found event is missed.
func (o *Orchestrator) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.started {
		return errors.New("orchestrator already started")
	}
	o.started = true
	logger.Info("Starting orchestrator for %s", o.cfg.WorkspaceRoot)

	if err := o.startBus(); err != nil {
		return fmt.Errorf("failed to start event bus: %w", err)
	}

	var gctx context.Context
	o.group, gctx = errgroup.WithContext(o.ctx)
	o.group.Go(func() error {
		select {
		case <-gctx.Done():
			return nil
		case <-o.busClosed:
			if o.ctx.Err() != nil {
				return nil
			}
			return ErrBusClosed
		}
	})

	coord, err := watcher.New(watcher.Config{
		Root:     o.cfg.WorkspaceRoot,
		Patterns: o.cfg.Patterns,
		Ignore:   o.cfg.Ignore,
		Debounce: o.cfg.Debounce,
	}, o.bus)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	o.coord = coord

	if err := o.subscribe(); err != nil {
		return err
	}

	if o.relay != nil {
		o.relay.Connect(o.ctx)
	}

	if o.cfg.Project != "" {
		err = o.coord.WatchProject(o.cfg.Project)
	} else {
		err = o.coord.Start()
	}
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	if o.cfg.MCP {
		o.mcp = mcpserver.New(o.coord, o.engine, o.coord.Root())
		if _, err := o.mcp.Start(o.ctx); err != nil {
			return fmt.Errorf("failed to start MCP server: %w", err)
		}
		logger.Info("MCP tools available at %s", o.mcp.URL())
	}

	logger.Info("Orchestrator started")
	return nil
}

func (o *Orchestrator) startBus() error {
	o.natsDir = filepath.Join(o.cfg.DataDir, "nats")
	ns, port, err := nats.StartEmbeddedNATS(o.natsDir)
	if err != nil {
		return err
	}
	nc, err := nats.ConnectInProcess(ns)
	if err != nil {
		ns.Shutdown()
		return err
	}
	var once sync.Once
	nc.SetClosedHandler(func(*natsgo.Conn) {
		once.Do(func() { close(o.busClosed) })
	})

	o.ns, o.natsPort, o.nc = ns, port, nc
	o.bus = nats.NewBus(nc)
	return nil
}

// subscribe attaches every consumer to the bus.
func (o *Orchestrator) subscribe() error {
	if _, err := o.bus.Subscribe(o.fold, events.KindTaskFound, events.KindTasksSynced, events.KindTaskChanged); err != nil {
		return fmt.Errorf("failed to subscribe aggregator: %w", err)
	}
	if _, err := o.bus.Subscribe(o.projectChanged, events.KindProjectChanged); err != nil {
		return fmt.Errorf("failed to subscribe project tracker: %w", err)
	}
	if _, err := o.bus.Subscribe(logControl, events.ControlKinds...); err != nil {
		return fmt.Errorf("failed to subscribe control log: %w", err)
	}

	hookCfg, err := hooks.LoadConfig(o.coord.Root())
	if err != nil {
		return err
	}
	o.hooks = hooks.NewRunner(hookCfg, o.coord.Root())
	if o.hooks.Enabled() {
		if _, err := o.bus.Subscribe(o.hooks.Handle, events.KindTaskChanged, events.KindProgressUpdated); err != nil {
			return fmt.Errorf("failed to subscribe hooks: %w", err)
		}
	}

	if o.cfg.DashboardURL != "" || o.cfg.SharedContextURL != "" {
		o.relay = relay.New(relay.Config{
			DashboardURL:      o.cfg.DashboardURL,
			SharedContextURL:  o.cfg.SharedContextURL,
			ReconnectInterval: o.cfg.ReconnectInterval,
		}, o.agg, o.bus)
		_, err := o.bus.Subscribe(o.relay.Handle,
			events.KindTaskChanged, events.KindAgentsUpdated, events.KindProjectChanged, events.KindProgressUpdated)
		if err != nil {
			return fmt.Errorf("failed to subscribe relay: %w", err)
		}
	}
	return nil
}

// fold applies task events to the aggregator and republishes the rollup
// when the project's state changed.
func (o *Orchestrator) fold(e events.Event) {
	var projectID string
	var changed bool
	switch ev := e.(type) {
	case events.TaskFound:
		projectID = ev.ProjectID
		changed = o.agg.ApplyFile(ev.ProjectID, ev.SourceFile, ev.Tasks)
	case events.TasksSynced:
		projectID = ev.ProjectID
		changed = o.agg.ApplyFile(ev.ProjectID, ev.SourceFile, ev.Tasks)
	case events.TaskChanged:
		projectID = ev.Change.ProjectID
		changed = o.agg.ApplyChange(ev.Change)
	default:
		return
	}
	if !changed {
		return
	}

	snap := o.agg.Snapshot(projectID)
	o.publish(events.ProgressUpdated{Snapshot: snap})
	o.publish(events.AgentsUpdated{ProjectID: projectID, Agents: snap.Agents})
}

// projectChanged drops rollups of projects that are no longer watched.
func (o *Orchestrator) projectChanged(e events.Event) {
	ev, ok := e.(events.ProjectChanged)
	if !ok {
		return
	}
	for _, id := range o.agg.Projects() {
		if id != ev.ProjectID {
			o.agg.Forget(id)
		}
	}
	logger.Info("Now watching project %s (%s)", ev.ProjectID, ev.Path)
}

// logControl records control requests. Acting on them belongs to the
// external agent coordinator.
func logControl(e events.Event) {
	logger.Info("Control request %s: %+v", e.Kind(), e)
}

func (o *Orchestrator) publish(e events.Event) {
	if err := o.bus.Publish(e); err != nil {
		logger.Warn("Failed to publish %s: %v", e.Kind(), err)
	}
}

// Wait blocks until Stop is called or the event bus fails.
func (o *Orchestrator) Wait() error {
	o.mu.Lock()
	group := o.group
	o.mu.Unlock()
	if group == nil {
		return errors.New("orchestrator not started")
	}
	return group.Wait()
}

// Stop shuts every component down. It is safe to call more than once.
func (o *Orchestrator) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return nil
	}
	o.stopped = true
	logger.Info("Stopping orchestrator")

	var errs []error
	o.cancel()

	if o.mcp != nil {
		if err := o.mcp.Stop(); err != nil {
			errs = append(errs, err)
		}
	}
	if o.coord != nil {
		if err := o.coord.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("watcher shutdown failed: %w", err))
		}
	}
	if o.relay != nil {
		o.relay.Disconnect()
	}
	if o.hooks != nil {
		o.hooks.Stop()
	}

	if o.nc != nil || o.ns != nil {
		if err := nats.Shutdown(o.nc, o.ns); err != nil {
			logger.Error("NATS shutdown failed: %v", err)
			errs = append(errs, fmt.Errorf("NATS shutdown failed: %w", err))
		}
		nats.RemovePortFile(o.natsDir)
	}
	o.nc = nil
	o.ns = nil

	logger.Info("Orchestrator stopped")
	return errors.Join(errs...)
}

// Snapshots returns the current rollup of every watched project.
func (o *Orchestrator) Snapshots() []progress.ProgressSnapshot {
	return o.agg.Snapshots()
}

// Engine returns the write-back engine shared with the MCP tools.
func (o *Orchestrator) Engine() *writeback.Engine {
	return o.engine
}

// NATSPort returns the loopback port external viewers can attach to.
func (o *Orchestrator) NATSPort() int {
	return o.natsPort
}

// MCPURL returns the MCP endpoint, or "" when the MCP server is disabled.
func (o *Orchestrator) MCPURL() string {
	if o.mcp == nil {
		return ""
	}
	return o.mcp.URL()
}
