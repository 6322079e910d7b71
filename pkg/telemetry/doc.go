// Package telemetry publishes stimulator state and receives parameter
// commands over MQTT and websocket.
//
// Topics are relative to the prefix taken from the broker URL path, e.g.
// mqtt://localhost:1883/fes/ gives
//
//	fes/<name>/status          protobuf Struct snapshot, retained
//	fes/<name>/set/amp/<ch>    amplitude command, decimal payload
//	fes/<name>/set/pw/<ch>     pulse width command, decimal payload
package telemetry
