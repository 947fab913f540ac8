package nats

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/checkwatch/internal/logger"
	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

// portFileName holds the loopback port of a running watcher's bus so that
// external viewers (a terminal dashboard, `checkwatch events`) can attach.
const portFileName = "port"

// StartEmbeddedNATS starts an embedded NATS server bound to a random
// loopback port and records the port in dataDir.
// Returns the server instance and its port.
func StartEmbeddedNATS(dataDir string) (*server.Server, int, error) {
	logger.Debug("Starting embedded NATS server with data dir: %s", dataDir)

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, 0, fmt.Errorf("creating nats data dir: %w", err)
	}

	opts := &server.Options{
		Host:     "127.0.0.1",
		Port:     server.RANDOM_PORT,
		StoreDir: dataDir,
		NoSigs:   true,
		NoLog:    true,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		logger.Error("Failed to create NATS server: %v", err)
		return nil, 0, err
	}

	go ns.Start()

	if !ns.ReadyForConnections(4 * time.Second) {
		logger.Error("NATS server failed to start within 4s timeout")
		ns.Shutdown()
		return nil, 0, errors.New("nats server failed to start within timeout")
	}

	addr, ok := ns.Addr().(*net.TCPAddr)
	if !ok {
		ns.Shutdown()
		return nil, 0, errors.New("nats server has no tcp listener")
	}
	p := addr.Port

	if err := os.WriteFile(filepath.Join(dataDir, portFileName), []byte(strconv.Itoa(p)), 0644); err != nil {
		logger.Warn("Failed to write NATS port file: %v", err)
	}

	logger.Debug("NATS server ready on port %d", p)
	return ns, p, nil
}

// ReadPort returns the port recorded by StartEmbeddedNATS in dataDir.
func ReadPort(dataDir string) (int, error) {
	data, err := os.ReadFile(filepath.Join(dataDir, portFileName))
	if err != nil {
		return 0, fmt.Errorf("reading nats port file: %w", err)
	}
	port, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid nats port file: %w", err)
	}
	return port, nil
}

// RemovePortFile deletes the port file so stale ports are not dialed.
func RemovePortFile(dataDir string) {
	if err := os.Remove(filepath.Join(dataDir, portFileName)); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to remove NATS port file: %v", err)
	}
}

// ConnectInProcess creates an in-process connection to the embedded NATS server.
func ConnectInProcess(ns *server.Server) (*nats.Conn, error) {
	logger.Debug("Connecting to NATS server in-process")
	conn, err := nats.Connect("", nats.InProcessServer(ns))
	if err != nil {
		logger.Error("Failed to connect to NATS in-process: %v", err)
		return nil, err
	}
	return conn, nil
}

// ConnectToPort connects to a watcher's bus over loopback.
func ConnectToPort(port int) (*nats.Conn, error) {
	url := fmt.Sprintf("nats://127.0.0.1:%d", port)
	conn, err := nats.Connect(url, nats.Timeout(2*time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return conn, nil
}

// Shutdown gracefully shuts down the NATS connection and server.
// It first drains and closes the connection, then shuts down the server
// with a timeout to allow in-flight operations to complete.
func Shutdown(nc *nats.Conn, ns *server.Server) error {
	logger.Debug("Starting NATS shutdown")

	if nc != nil {
		drainDone := make(chan error, 1)
		go func() {
			drainDone <- nc.Drain()
		}()

		select {
		case err := <-drainDone:
			if err != nil {
				logger.Warn("NATS drain failed, forcing close: %v", err)
				nc.Close()
			}
		case <-time.After(2 * time.Second):
			logger.Warn("NATS drain timed out after 2s, forcing close")
			nc.Close()
		}
	}

	if ns != nil {
		ns.Shutdown()

		shutdownDone := make(chan struct{})
		go func() {
			ns.WaitForShutdown()
			close(shutdownDone)
		}()

		select {
		case <-shutdownDone:
			logger.Debug("NATS server shut down cleanly")
		case <-time.After(5 * time.Second):
			logger.Error("NATS server shutdown timed out after 5s")
			return errors.New("NATS server shutdown timed out")
		}
	}

	return nil
}
