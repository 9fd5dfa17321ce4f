package jsongate

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"
)

const (
	EndpointFileName = "jsongate_endpoints.json"
	DiscoveryTimeout = 5 * time.Second
)

var (
	ErrEndpointNotFound = errors.New("endpoint not found")
	ErrDiscoveryTimeout = errors.New("discovery timeout")
)

// EndpointInfo holds a registered gateway worker's location
type EndpointInfo struct {
	Port      int       `json:"port"`
	PID       int       `json:"pid"`
	StartTime time.Time `json:"start_time"`
}

// endpointRegistry manages worker endpoint discovery via a shared JSON
// file, so standalone gateway workers can be found by service id.
type endpointRegistry struct {
	mu        sync.RWMutex
	endpoints map[string]EndpointInfo
	filePath  string
}

var endpointSingleton *endpointRegistry
var endpointOnce sync.Once

func getEndpointRegistry() *endpointRegistry {
	endpointOnce.Do(func() {
		endpointSingleton = &endpointRegistry{
			endpoints: make(map[string]EndpointInfo),
			filePath:  endpointFilePath(),
		}
		endpointSingleton.load()
	})
	return endpointSingleton
}

func endpointFilePath() string {
	return filepath.Join(os.TempDir(), EndpointFileName)
}

// load reads the endpoint file from disk
func (r *endpointRegistry) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // no workers registered yet
		}
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return json.Unmarshal(data, &r.endpoints)
}

// save writes the endpoint file to disk
func (r *endpointRegistry) save() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := json.MarshalIndent(r.endpoints, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(r.filePath, data, 0644)
}

// RegisterEndpoint announces a gateway worker under a service id
func RegisterEndpoint(serviceID string, port int) error {
	r := getEndpointRegistry()

	r.mu.Lock()
	r.endpoints[serviceID] = EndpointInfo{
		Port:      port,
		PID:       os.Getpid(),
		StartTime: time.Now(),
	}
	r.mu.Unlock()

	return r.save()
}

// UnregisterEndpoint removes a gateway worker's registration
func UnregisterEndpoint(serviceID string) error {
	r := getEndpointRegistry()

	r.mu.Lock()
	delete(r.endpoints, serviceID)
	r.mu.Unlock()

	return r.save()
}

// DiscoverEndpoint finds a worker by service id and returns its port,
// polling until the timeout elapses. Registrations left behind by dead
// processes are cleaned up on the way.
func DiscoverEndpoint(serviceID string, timeout time.Duration) (int, error) {
	if timeout == 0 {
		timeout = DiscoveryTimeout
	}

	r := getEndpointRegistry()
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		// Reload from disk to get latest
		if err := r.load(); err != nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		r.mu.RLock()
		info, exists := r.endpoints[serviceID]
		r.mu.RUnlock()

		if exists {
			if isProcessAlive(info.PID) {
				return info.Port, nil
			}
			_ = UnregisterEndpoint(serviceID)
		}

		time.Sleep(100 * time.Millisecond)
	}

	return 0, ErrEndpointNotFound
}

// isProcessAlive checks if a process with the given PID is running.
// On Unix FindProcess always succeeds, so signal 0 does the actual
// existence check without delivering anything.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

// ListEndpoints returns all registered worker endpoints
func ListEndpoints() (map[string]EndpointInfo, error) {
	r := getEndpointRegistry()
	if err := r.load(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]EndpointInfo)
	for k, v := range r.endpoints {
		result[k] = v
	}
	return result, nil
}

// ClearEndpoints removes all endpoint registrations
func ClearEndpoints() error {
	r := getEndpointRegistry()

	r.mu.Lock()
	r.endpoints = make(map[string]EndpointInfo)
	r.mu.Unlock()

	return r.save()
}

// EndpointFilePath returns the current endpoint file path (for debugging)
func EndpointFilePath() string {
	return endpointFilePath()
}

// ValidatePort checks if a port is in valid range
func ValidatePort(port int) error {
	if port < 1024 || port > 65535 {
		return fmt.Errorf("port %d out of valid range (1024-65535)", port)
	}
	return nil
}
