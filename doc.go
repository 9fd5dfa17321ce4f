// Package jsongate binds untyped JSON call payloads onto the typed
// parameter lists of registered Go services, so that callers without
// compiled stubs can invoke methods over a generic RPC gateway.
//
// # Architecture
//
// The library has three layers:
//   - GenericCodec / ArgumentBinder: maps a JSON array or object payload
//     onto an ordered list of parameter slots, honoring caller-supplied
//     type-name overrides only when they pass an assignability check
//     (a deserialization type-confusion defense).
//   - TypeRegistry / ServiceRegistry: the class-loader and method
//     metadata capabilities the codec consumes.
//   - Worker / Client: a ZeroMQ ROUTER/DEALER gateway that carries
//     generic call envelopes and dispatches them through the codec.
//
// # Quick Start
//
// Worker side:
//
//	type Calculator struct{}
//
//	func (Calculator) Add(a, b int) int { return a + b }
//
//	func main() {
//	    reg := jsongate.NewServiceRegistry()
//	    svc, _ := reg.RegisterService("calc", Calculator{})
//	    svc.SetParamNames("Add", "a", "b")
//
//	    worker := jsongate.NewWorker(jsongate.WorkerConfig{ServiceID: "calc-gw"}, reg)
//	    worker.Run()
//	}
//
// Caller side:
//
//	client, err := jsongate.Connect(ctx, "calc-gw")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := client.Start(); err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	result, err := client.Invoke(ctx, "calc.Add", nil, []byte(`{"a":1,"b":2}`))
//
// A caller may also pass per-slot type names to request that a slot be
// materialized as a more specific registered type; names that fail the
// assignability check fall back silently to the declared type.
package jsongate

// Version is the current library version
const Version = "1.0.0"
