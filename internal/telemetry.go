package internal

import (
	"strconv"
	"sync"
)

// Telemetry hooks for the projection engine. The default emitter is a no-op;
// service wiring may register a metrics-backed emitter or a test stub.

type telemetryEmitter func(name string, labels map[string]string, value any)

var (
	teleMu   sync.Mutex
	teleImpl telemetryEmitter = func(name string, labels map[string]string, value any) {}
)

// RegisterTelemetryEmitter registers a custom emitter function. Passing nil
// restores the no-op emitter.
func RegisterTelemetryEmitter(fn telemetryEmitter) {
	teleMu.Lock()
	defer teleMu.Unlock()
	if fn == nil {
		teleImpl = func(name string, labels map[string]string, value any) {}
		return
	}
	teleImpl = fn
}

func emit(name string, labels map[string]string, value any) {
	teleMu.Lock()
	fn := teleImpl
	teleMu.Unlock()
	fn(name, labels, value)
}

// emitRecompute counts virtual field recomputations.
// name: "openvocab_recompute_total" with label {"association": "<id>"}
func emitRecompute(associationID string, items int) {
	emit("openvocab_recompute_total", map[string]string{"association": associationID}, int64(items))
}

// emitWriteBack counts anchor field replaces.
// name: "openvocab_write_back_total" with labels {"association": "<id>", "op": "<set|append|remove|...>"}
func emitWriteBack(associationID, op string) {
	emit("openvocab_write_back_total", map[string]string{"association": associationID, "op": op}, int64(1))
}

// emitCacheLookup counts schema cache hits and misses.
// name: "openvocab_schema_cache_lookup" with labels {"host_type": "<type>", "hit": "true|false"}
func emitCacheLookup(hostType string, hit bool) {
	emit("openvocab_schema_cache_lookup", map[string]string{"host_type": hostType, "hit": strconv.FormatBool(hit)}, int64(1))
}

// emitSynthesis records how many virtual fields a bundle produced.
// name: "openvocab_synthesized_fields" with labels {"host_type": "<type>", "bundle": "<bundle>"}
func emitSynthesis(hostType, bundle string, fields int) {
	emit("openvocab_synthesized_fields", map[string]string{"host_type": hostType, "bundle": bundle}, int64(fields))
}
