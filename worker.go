package jsongate

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	zmq "github.com/go-zeromq/zmq4"
)

// PortEnvVar names the environment variable a spawning parent uses to
// hand the worker its port.
const PortEnvVar = "JSONGATE_PORT"

// Worker is a gateway worker: it receives generic call envelopes over a
// ZeroMQ ROUTER socket, binds each JSON payload onto the target method's
// parameter slots through the GenericCodec, invokes the method and sends
// the serialized result back.
type Worker struct {
	config   WorkerConfig
	services *ServiceRegistry
	codec    *GenericCodec
	metrics  *Metrics

	running  bool
	socket   zmq.Socket
	port     int
	done     chan struct{}
	doneOnce sync.Once
}

// NewWorker creates a worker dispatching into the given service registry
func NewWorker(config WorkerConfig, services *ServiceRegistry) *Worker {
	metrics := NewMetrics(config.Metrics.LatencySamples, config.Metrics.WindowSeconds)
	if config.Namespace == "" {
		config.Namespace = "default"
	}
	return &Worker{
		config:   config,
		services: services,
		codec:    NewGenericCodec(services.Types()).WithMetrics(metrics),
		metrics:  metrics,
		done:     make(chan struct{}),
	}
}

// Metrics returns the worker's dispatch metrics collector
func (w *Worker) Metrics() *Metrics {
	return w.metrics
}

// Start begins the worker message loop
func (w *Worker) Start() error {
	if err := w.setupSocket(); err != nil {
		return fmt.Errorf("socket setup failed: %w", err)
	}

	w.running = true
	go w.messageLoop()

	return nil
}

// setupSocket configures the ZeroMQ ROUTER socket. Spawn mode connects
// to the port a parent handed over via JSONGATE_PORT; standalone mode
// binds a port and registers it for discovery.
func (w *Worker) setupSocket() error {
	w.socket = zmq.NewRouter(context.Background())

	portEnv := os.Getenv(PortEnvVar)
	switch {
	case portEnv != "":
		port, err := strconv.Atoi(portEnv)
		if err != nil {
			return fmt.Errorf("invalid port %q: %w", portEnv, err)
		}
		if err := ValidatePort(port); err != nil {
			return err
		}
		w.port = port

		endpoint := fmt.Sprintf("tcp://localhost:%d", w.port)
		if err := w.socket.Dial(endpoint); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", endpoint, err)
		}

	case w.config.ServiceID != "":
		w.port = w.config.Port
		if w.port == 0 {
			w.port = findFreePort()
		}

		if err := RegisterEndpoint(w.config.ServiceID, w.port); err != nil {
			return fmt.Errorf("failed to register endpoint: %w", err)
		}

		endpoint := fmt.Sprintf("tcp://*:%d", w.port)
		if err := w.socket.Listen(endpoint); err != nil {
			return fmt.Errorf("failed to bind to %s: %w", endpoint, err)
		}

		fmt.Fprintf(os.Stderr, "Gateway '%s' ready on port %d\n", w.config.ServiceID, w.port)

	default:
		return fmt.Errorf("need %s env or ServiceID in config", PortEnvVar)
	}

	return nil
}

// messageLoop handles incoming messages
func (w *Worker) messageLoop() {
	for w.running {
		// ROUTER socket receives: [sender_id, empty_frame, message_data]
		msg, err := w.socket.Recv()
		if err != nil {
			if w.running {
				fmt.Fprintf(os.Stderr, "ERROR: Receive error: %v\n", err)
			}
			continue
		}

		frames := msg.Frames
		if len(frames) >= 3 {
			senderID := frames[0]
			// frames[1] is empty delimiter
			w.handleMessage(frames[2], senderID)
		}
	}
}

// handleMessage processes an incoming envelope
func (w *Worker) handleMessage(data []byte, senderID []byte) {
	msg, err := Unpack(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to unpack message: %v\n", err)
		return
	}

	if msg.App != AppName {
		return
	}
	if msg.Namespace != "" && msg.Namespace != w.config.Namespace {
		return
	}

	switch msg.Type {
	case string(MessageTypeCall):
		w.handleCall(msg, senderID)
	case string(MessageTypeHeartbeat):
		w.handleHeartbeat(msg, senderID)
	case string(MessageTypeShutdown):
		w.running = false
		w.doneOnce.Do(func() { close(w.done) })
	}
}

// handleCall binds and dispatches one generic call
func (w *Worker) handleCall(msg *Message, senderID []byte) {
	if msg.Target == "" || msg.ID == "" {
		w.sendResponse(CreateError("message missing 'target' or 'id' field", msg.ID), senderID)
		return
	}

	start := w.metrics.StartRequest()
	response := w.dispatch(msg)
	w.metrics.EndRequest(start, response.Type == string(MessageTypeResponse))

	w.sendResponse(response, senderID)
}

// dispatch resolves the target, binds arguments and invokes. A panic in
// a service method is contained and reported as a remote error.
func (w *Worker) dispatch(msg *Message) (response *Message) {
	defer func() {
		if r := recover(); r != nil {
			response = CreateError(fmt.Sprintf("panic in %s: %v", msg.Target, r), msg.ID)
		}
	}()

	_, meta, err := w.services.Resolve(msg.Target)
	if err != nil {
		return CreateError(err.Error(), msg.ID)
	}

	if max := w.config.MaxPayloadBytes; max > 0 {
		if _, payload := splitGenericFrame(msg.Frame); len(payload) > max {
			w.metrics.RecordBindFailure()
			return CreateError(fmt.Sprintf("payload size %d exceeds limit %d", len(payload), max), msg.ID)
		}
	}

	args, err := w.codec.DeserializeCall(msg, meta)
	if err != nil {
		w.metrics.RecordBindFailure()
		return CreateError(err.Error(), msg.ID)
	}

	result, err := meta.Invoke(args)
	if err != nil {
		return CreateError(err.Error(), msg.ID)
	}

	data, err := w.codec.Serialize(result)
	if err != nil {
		return CreateError(fmt.Sprintf("serialize result: %v", err), msg.ID)
	}
	return CreateResponse(data, msg.ID)
}

// handleHeartbeat echoes a heartbeat back immediately
func (w *Worker) handleHeartbeat(msg *Message, senderID []byte) {
	var originalTs float64
	if msg.Metadata != nil {
		if ts, ok := msg.Metadata["hb_timestamp"].(float64); ok {
			originalTs = ts
		}
	}

	response := CreateHeartbeatResponse(msg.ID, originalTs)
	w.sendResponse(response, senderID)
}

// sendResponse sends an envelope with the ROUTER sender frame
func (w *Worker) sendResponse(msg *Message, senderID []byte) {
	data, err := msg.Pack()
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to pack response: %v\n", err)
		return
	}

	// ROUTER envelope: [sender_id, empty_frame, response_data]
	zmqMsg := zmq.NewMsgFrom(senderID, []byte{}, data)
	if err := w.socket.Send(zmqMsg); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to send response: %v\n", err)
	}
}

// Stop stops the worker and cleans up resources
func (w *Worker) Stop() {
	w.running = false
	w.doneOnce.Do(func() { close(w.done) })

	if w.config.ServiceID != "" {
		if err := UnregisterEndpoint(w.config.ServiceID); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: Failed to unregister endpoint: %v\n", err)
		}
	}

	if w.socket != nil {
		w.socket.Close()
	}
}

// Run starts the worker with signal handling (blocking)
func (w *Worker) Run() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "Received signal, shutting down...")
		w.Stop()
	}()

	if err := w.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	<-w.done
	w.Stop()
}

// GetPort returns the current port (for debugging)
func (w *Worker) GetPort() int {
	return w.port
}

// IsRunning returns whether the worker is running
func (w *Worker) IsRunning() bool {
	return w.running
}

// Done returns a channel that closes when the worker stops
func (w *Worker) Done() <-chan struct{} {
	return w.done
}
