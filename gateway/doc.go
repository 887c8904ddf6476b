// Package gateway maps named operations requested by remote clients onto
// device sessions.
//
// Every operation is registered once, at startup, in a routing table. A route
// declares its capability (universal, serial or short-range) and an explicit
// parameter schema; requests are validated against the schema before any
// device I/O happens.
//
// # Basic Usage
//
//	reg := session.NewRegistry()
//	router := gateway.NewRouter(reg, gateway.WithFirmwareDir("/srv/firmware"))
//
//	payload := router.Handle(ctx, "readSettings", map[string]interface{}{
//	    "port": "/dev/ttyACM0",
//	}, nil)
//	// payload["success"] == true, payload["settings"] holds the values
//
// # Payloads
//
// Handle shapes every outcome as a flat map: object results are merged into
// it, other results are stored under "result". "success" is always set; on
// failure "error" holds the message and "code" the device error code when
// there is one. Partial data of failed operations is kept.
package gateway
