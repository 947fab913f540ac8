package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mark3labs/checkwatch/internal/events"
	"github.com/mark3labs/checkwatch/internal/logger"
	natsbus "github.com/mark3labs/checkwatch/internal/nats"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var eventsFlags struct {
	kinds []string
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Tail the event bus of a running watcher",
	Long: `Connect to the bus of a 'checkwatch watch' process in this workspace
and print every event as a JSON line until interrupted.`,
	RunE: runEvents,
}

func init() {
	eventsCmd.Flags().StringSliceVarP(&eventsFlags.kinds, "kind", "k", nil, "Only print these event kinds (e.g. task:changed)")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	port, err := natsbus.ReadPort(filepath.Join(cfg.DataDir, "nats"))
	if err != nil {
		return fmt.Errorf("no running watcher found: %w", err)
	}
	nc, err := natsbus.ConnectToPort(port)
	if err != nil {
		return err
	}
	defer nc.Close()
	bus := natsbus.NewBus(nc)
	defer bus.Close()

	// The watcher going away closes the connection once reconnects run out.
	closed := make(chan struct{})
	nc.SetClosedHandler(func(*nats.Conn) { close(closed) })

	kinds := make([]events.Kind, 0, len(eventsFlags.kinds))
	for _, k := range eventsFlags.kinds {
		kinds = append(kinds, events.Kind(k))
	}

	out := cmd.OutOrStdout()
	_, err = bus.Subscribe(func(e events.Event) {
		line, err := events.Encode(e)
		if err != nil {
			logger.Warn("Failed to encode %s: %v", e.Kind(), err)
			return
		}
		fmt.Fprintln(out, string(line))
	}, kinds...)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	logger.Info("Tailing events on port %d", port)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	select {
	case <-sigChan:
		return nil
	case <-closed:
		return fmt.Errorf("connection to watcher on port %d closed", port)
	}
}
