package jsongate

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	zmq "github.com/go-zeromq/zmq4"
)

// Client invokes methods on a gateway worker without compiled stubs: it
// ships a raw JSON payload plus optional per-slot type names and gets
// the serialized result back. Two modes:
//   - Spawn mode: the client starts the worker process and owns it
//   - Connect mode: the client discovers a running worker by service id
type Client struct {
	// Configuration
	workerPath  string
	executable  string
	serviceID   string
	port        int
	isSpawnMode bool

	// ZMQ state
	socket zmq.Socket

	// Process management (spawn mode)
	process *exec.Cmd
	running bool
	closed  bool

	// Pending requests
	pendingRequests map[string]*pendingRequest
	mu              sync.RWMutex

	// Circuit breaker
	maxFailures         int
	consecutiveFailures int

	metrics *Metrics

	stopChan chan struct{}
}

// CircuitOpenError is returned when the circuit breaker is open (too
// many consecutive remote failures)
type CircuitOpenError struct {
	ConsecutiveFailures int
	Err                 error
}

func (e *CircuitOpenError) Error() string {
	msg := fmt.Sprintf("circuit breaker open after %d consecutive failures", e.ConsecutiveFailures)
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support
func (e *CircuitOpenError) Unwrap() error {
	return e.Err
}

type pendingRequest struct {
	resolve func(*Message)
	reject  func(error)
	ctx     context.Context
}

// ClientConfig holds configuration for creating a Client
type ClientConfig struct {
	WorkerPath string
	Executable string
	ServiceID  string
	Port       int

	// MaxFailures opens the circuit after this many consecutive remote
	// failures. 0 applies the default of 5.
	MaxFailures int
}

// NewClient creates a new Client with the given config
func NewClient(config ClientConfig) *Client {
	if config.Executable == "" {
		config.Executable = "go"
	}
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}

	return &Client{
		workerPath:      config.WorkerPath,
		executable:      config.Executable,
		serviceID:       config.ServiceID,
		port:            config.Port,
		isSpawnMode:     config.WorkerPath != "",
		maxFailures:     config.MaxFailures,
		metrics:         NewMetrics(0, 0),
		pendingRequests: make(map[string]*pendingRequest),
		stopChan:        make(chan struct{}),
	}
}

// Metrics returns the client's metrics collector
func (c *Client) Metrics() *Metrics {
	return c.metrics
}

// Spawn creates a Client in spawn mode (owns the worker process)
func Spawn(workerPath string, executable ...string) *Client {
	exe := "go"
	if len(executable) > 0 && executable[0] != "" {
		exe = executable[0]
	}

	return NewClient(ClientConfig{
		WorkerPath: workerPath,
		Executable: exe,
		Port:       findFreePort(),
	})
}

// Connect creates a Client in connect mode, discovering a running
// gateway worker by service id.
func Connect(ctx context.Context, serviceID string, timeout ...time.Duration) (*Client, error) {
	t := DiscoveryTimeout
	if len(timeout) > 0 {
		t = timeout[0]
	}

	port, err := DiscoverEndpoint(serviceID, t)
	if err != nil {
		return nil, fmt.Errorf("failed to discover gateway '%s': %w", serviceID, err)
	}

	return NewClient(ClientConfig{
		ServiceID: serviceID,
		Port:      port,
	}), nil
}

// Start starts the client and the worker process (if spawn mode)
func (c *Client) Start() error {
	c.socket = zmq.NewDealer(context.Background())

	if c.isSpawnMode {
		endpoint := fmt.Sprintf("tcp://*:%d", c.port)
		if err := c.socket.Listen(endpoint); err != nil {
			return fmt.Errorf("failed to bind to %s: %w", endpoint, err)
		}

		if err := c.startWorkerProcess(); err != nil {
			return fmt.Errorf("failed to start worker process: %w", err)
		}
	} else {
		endpoint := fmt.Sprintf("tcp://localhost:%d", c.port)
		if err := c.socket.Dial(endpoint); err != nil {
			return fmt.Errorf("failed to connect to %s: %w", endpoint, err)
		}
	}

	c.running = true
	go c.messageLoop()

	// Wait for connection
	time.Sleep(500 * time.Millisecond)

	return nil
}

// startWorkerProcess spawns the worker process
func (c *Client) startWorkerProcess() error {
	cmd := exec.Command(c.executable, c.workerPath)
	cmd.Env = append(os.Environ(), fmt.Sprintf("%s=%d", PortEnvVar, c.port))

	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start process: %w", err)
	}

	c.process = cmd

	// Quick health check
	time.Sleep(200 * time.Millisecond)
	if c.process.Process == nil {
		return fmt.Errorf("worker process failed to start")
	}

	return nil
}

// messageLoop handles incoming ZMQ messages
func (c *Client) messageLoop() {
	for c.running {
		select {
		case <-c.stopChan:
			return
		default:
		}

		// DEALER socket receives: [empty_frame, message_data]
		msg, err := c.socket.Recv()
		if err != nil {
			if c.running {
				time.Sleep(10 * time.Millisecond)
			}
			continue
		}

		frames := msg.Frames
		if len(frames) >= 2 {
			// frames[0] is empty delimiter
			c.handleMessage(frames[1])
		}
	}
}

// handleMessage processes an incoming envelope
func (c *Client) handleMessage(data []byte) {
	msg, err := Unpack(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: Failed to unpack message: %v\n", err)
		return
	}

	if msg.App != AppName || msg.ID == "" {
		return
	}

	switch msg.Type {
	case string(MessageTypeResponse), string(MessageTypeError), string(MessageTypeHeartbeat):
		c.settle(msg)
	}
}

// settle resolves the pending request waiting on this envelope
func (c *Client) settle(msg *Message) {
	c.mu.Lock()
	pending, exists := c.pendingRequests[msg.ID]
	if exists {
		delete(c.pendingRequests, msg.ID)
	}
	c.mu.Unlock()

	if !exists || pending == nil {
		return
	}

	if pending.ctx != nil {
		select {
		case <-pending.ctx.Done():
			return
		default:
		}
	}

	if msg.Type == string(MessageTypeError) {
		pending.reject(&RemoteCallError{Message: msg.Error})
	} else {
		pending.resolve(msg)
	}
}

// Invoke calls target ("service.Method") on the gateway. typeNames may
// be nil, or supply a registered type name per slot to request a more
// specific materialization; payload is the raw JSON argument document
// (array or object). The serialized JSON result is returned untouched.
func (c *Client) Invoke(ctx context.Context, target string, typeNames []string, payload []byte) ([]byte, error) {
	if c.CircuitOpen() {
		return nil, &CircuitOpenError{ConsecutiveFailures: c.ConsecutiveFailures()}
	}

	msg := CreateGenericCall(target, typeNames, payload, "")
	reply, err := c.roundTrip(ctx, msg)
	c.recordOutcome(err)
	if err != nil {
		return nil, err
	}
	return reply.Result, nil
}

// CircuitOpen reports whether the circuit breaker is open
func (c *Client) CircuitOpen() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consecutiveFailures >= c.maxFailures
}

// ConsecutiveFailures returns the current consecutive failure count
func (c *Client) ConsecutiveFailures() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.consecutiveFailures
}

// ResetCircuit closes the circuit breaker manually
func (c *Client) ResetCircuit() {
	c.mu.Lock()
	c.consecutiveFailures = 0
	c.mu.Unlock()
}

// recordOutcome feeds the circuit breaker: any success closes it
func (c *Client) recordOutcome(err error) {
	c.mu.Lock()
	if err != nil {
		c.consecutiveFailures++
	} else {
		c.consecutiveFailures = 0
	}
	c.mu.Unlock()
}

// Ping measures the round-trip time to the worker. RTT samples and
// missed heartbeats feed the client's metrics collector.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if _, err := c.roundTrip(ctx, CreateHeartbeat("")); err != nil {
		c.metrics.RecordHeartbeatMiss()
		return 0, err
	}
	rtt := time.Since(start)
	c.metrics.RecordHeartbeatRtt(float64(rtt.Microseconds()) / 1000.0)
	return rtt, nil
}

// roundTrip sends an envelope and waits for its reply
func (c *Client) roundTrip(ctx context.Context, msg *Message) (*Message, error) {
	if !c.running {
		return nil, fmt.Errorf("client is not running")
	}

	replyChan := make(chan *Message, 1)
	errorChan := make(chan error, 1)

	c.mu.Lock()
	c.pendingRequests[msg.ID] = &pendingRequest{
		resolve: func(m *Message) { replyChan <- m },
		reject:  func(e error) { errorChan <- e },
		ctx:     ctx,
	}
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pendingRequests, msg.ID)
		c.mu.Unlock()
	}()

	data, err := msg.Pack()
	if err != nil {
		return nil, fmt.Errorf("failed to pack message: %w", err)
	}

	// DEALER envelope: [empty_frame, message_data]
	zmqMsg := zmq.NewMsgFrom([]byte{}, data)
	if err := c.socket.Send(zmqMsg); err != nil {
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case reply := <-replyChan:
		return reply, nil
	case err := <-errorChan:
		return nil, err
	}
}

// Close stops the client and cleans up resources
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.running = false

	close(c.stopChan)

	c.mu.Lock()
	for _, pending := range c.pendingRequests {
		if pending != nil && pending.reject != nil {
			pending.reject(fmt.Errorf("client shutting down"))
		}
	}
	c.pendingRequests = make(map[string]*pendingRequest)
	c.mu.Unlock()

	if c.socket != nil {
		c.socket.Close()
	}

	// Terminate worker process (spawn mode only)
	if c.isSpawnMode && c.process != nil && c.process.Process != nil {
		c.process.Process.Signal(os.Interrupt)

		done := make(chan error, 1)
		go func() {
			done <- c.process.Wait()
		}()

		select {
		case <-done:
			// Process exited
		case <-time.After(2 * time.Second):
			c.process.Process.Kill()
		}
	}

	return nil
}

// GetPort returns the current port
func (c *Client) GetPort() int {
	return c.port
}

// IsRunning returns whether the client is running
func (c *Client) IsRunning() bool {
	return c.running
}
