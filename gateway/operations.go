package gateway

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/moffa90/go-lightning/bootloader"
	"github.com/moffa90/go-lightning/link"
)

// ErrFirmwareDisabled is returned by updateFirmware when no firmware
// directory is configured.
var ErrFirmwareDisabled = errors.New("Firmware updates are disabled")

var (
	portParam     = Param{Name: "port", Kind: KindPort, Required: true}
	passwordParam = Param{Name: "password", Kind: KindString, Required: true}
)

func (r *Router) builtins() []Route {
	return []Route{
		{Name: "getPortList", Capability: CapabilityUniversal, Handler: r.getPortList},
		{Name: "getConnectedDevices", Capability: CapabilityUniversal, Handler: r.getConnectedDevices},

		{
			Name:       "openPort",
			Capability: CapabilitySerial,
			Params: []Param{
				{Name: "port", Kind: KindPortName, Required: true},
				{Name: "password", Kind: KindString},
			},
			Handler: r.openPort,
		},
		{
			Name:       "closePort",
			Capability: CapabilitySerial,
			Params:     []Param{{Name: "port", Kind: KindPortName, Required: true}},
			Handler:    r.closePort,
		},
		{Name: "leaveBootmode", Capability: CapabilitySerial, Params: []Param{portParam}, Handler: leaveBootmode},
		{Name: "deviceVersion", Capability: CapabilitySerial, Params: []Param{portParam}, Handler: deviceVersion},
		{Name: "deviceLogin", Capability: CapabilitySerial, Params: []Param{portParam, passwordParam}, Handler: deviceLogin},
		{Name: "setPassword", Capability: CapabilitySerial, Params: []Param{portParam, passwordParam}, Handler: setPassword},
		{
			Name:       "readSettings",
			Capability: CapabilitySerial,
			Params:     []Param{portParam, {Name: "forSave", Kind: KindBool}},
			Handler:    readSettings,
		},
		{
			Name:       "writeSettings",
			Capability: CapabilitySerial,
			Params:     []Param{portParam, {Name: "settings", Kind: KindMap, Required: true}},
			Handler:    writeSettings,
		},
		{Name: "resetSettings", Capability: CapabilitySerial, Params: []Param{portParam}, Handler: resetSettings},
		{Name: "diagnostics", Capability: CapabilitySerial, Params: []Param{portParam}, Handler: diagnostics},
		{
			Name:       "updateFirmware",
			Capability: CapabilitySerial,
			Params:     []Param{portParam, {Name: "filename", Kind: KindString, Required: true}},
			Handler:    r.updateFirmware,
		},
		{Name: "calibrationStart", Capability: CapabilitySerial, Params: []Param{portParam}, Handler: calibrationStart},
		{Name: "calibrationStatus", Capability: CapabilitySerial, Params: []Param{portParam}, Handler: calibrationStatus},
		{Name: "readInfraRed", Capability: CapabilitySerial, Params: []Param{portParam}, Handler: readInfraRed},
	}
}

func (r *Router) getPortList(ctx context.Context, req *Request) (interface{}, error) {
	ports, err := r.listPorts()
	if err != nil {
		return nil, err
	}
	r.log.Debug("listed ports", "count", len(ports))
	return ports, nil
}

func (r *Router) getConnectedDevices(ctx context.Context, req *Request) (interface{}, error) {
	ports, err := r.listPorts()
	if err != nil {
		return nil, err
	}
	devices := []link.Device{}
	for _, p := range ports {
		if d, ok := link.Recognize(p); ok {
			devices = append(devices, d)
		}
	}
	return devices, nil
}

func (r *Router) openPort(ctx context.Context, req *Request) (interface{}, error) {
	res, err := r.registry.Open(ctx, req.Port(), req.String("password"))
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Router) closePort(ctx context.Context, req *Request) (interface{}, error) {
	return nil, r.registry.Close(req.Port())
}

func leaveBootmode(ctx context.Context, req *Request) (interface{}, error) {
	return req.Session.LeaveBootmode(ctx)
}

func deviceVersion(ctx context.Context, req *Request) (interface{}, error) {
	return req.Session.DeviceVersion(ctx)
}

func deviceLogin(ctx context.Context, req *Request) (interface{}, error) {
	return nil, req.Session.Login(ctx, req.String("password"))
}

func setPassword(ctx context.Context, req *Request) (interface{}, error) {
	return nil, req.Session.SetPassword(ctx, req.String("password"))
}

func readSettings(ctx context.Context, req *Request) (interface{}, error) {
	values := req.Session.ReadSettings(ctx, req.Bool("forSave"))
	return map[string]interface{}{"settings": values}, nil
}

func writeSettings(ctx context.Context, req *Request) (interface{}, error) {
	changed, err := req.Session.WriteSettings(ctx, req.Map("settings"))
	return map[string]interface{}{"changed": changed}, err
}

func resetSettings(ctx context.Context, req *Request) (interface{}, error) {
	return nil, req.Session.ResetSettings(ctx)
}

func diagnostics(ctx context.Context, req *Request) (interface{}, error) {
	return req.Session.Diagnostics(ctx)
}

func (r *Router) updateFirmware(ctx context.Context, req *Request) (interface{}, error) {
	if r.firmwareDir == "" {
		return nil, ErrFirmwareDisabled
	}
	// names are confined to the firmware directory
	path := filepath.Join(r.firmwareDir, filepath.Clean(string(filepath.Separator)+req.String("filename")))

	port := req.Port()
	opts := append([]bootloader.Option{}, r.updaterOpts...)
	opts = append(opts, bootloader.WithProgressCallback(func(p bootloader.Progress) {
		req.Progress(map[string]interface{}{
			"value":        p.Value,
			"max":          p.Max,
			"current_step": p.Step,
			"port":         port,
			"progress":     true,
		})
	}))

	r.log.Info("updating firmware", "port", port, "file", path)
	return nil, req.Session.UpdateFirmware(ctx, path, opts...)
}

func calibrationStart(ctx context.Context, req *Request) (interface{}, error) {
	return nil, req.Session.CalibrationStart(ctx)
}

func calibrationStatus(ctx context.Context, req *Request) (interface{}, error) {
	return req.Session.CalibrationStatus(ctx)
}

func readInfraRed(ctx context.Context, req *Request) (interface{}, error) {
	readings, err := req.Session.ReadInfraRed(ctx)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{"results": readings}, nil
}
