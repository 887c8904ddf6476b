package link

import (
	"fmt"
	"regexp"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes one serial port found on the host.
type PortInfo struct {
	Name         string `json:"port"`
	Manufacturer string `json:"manufacturer,omitempty"`
	SerialNumber string `json:"serialNumber,omitempty"`
	VendorID     string `json:"vendorId,omitempty"`
	ProductID    string `json:"productId,omitempty"`
	Product      string `json:"product,omitempty"`
	IsUSB        bool   `json:"isUsb"`
}

// Device is a port recognized as RF Code hardware.
type Device struct {
	Port         string `json:"port"`
	Manufacturer string `json:"manufacturer,omitempty"`
	VendorID     string `json:"vendorId,omitempty"`
	ProductID    string `json:"productId,omitempty"`

	// Model is taken from the USB serial number when it carries one
	Model string `json:"model,omitempty"`
}

// The vendor name is reported either as "RF Code, Inc." or "RF_Code__Inc.".
var (
	manufacturerPattern = regexp.MustCompile(`^RF.Code..Inc.`)
	serialPattern       = regexp.MustCompile(`^RF.Code..Inc..([A-Z0-9]+)$`)
)

// listPorts can be replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// ListPorts returns every serial port on the host.
func ListPorts() ([]PortInfo, error) {
	details, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		if d == nil {
			continue
		}
		ports = append(ports, PortInfo{
			Name:         d.Name,
			SerialNumber: d.SerialNumber,
			VendorID:     d.VID,
			ProductID:    d.PID,
			Product:      d.Product,
			IsUSB:        d.IsUSB,
		})
	}
	return ports, nil
}

// Recognize reports whether p is RF Code hardware.
func Recognize(p PortInfo) (Device, bool) {
	manufacturer := manufacturerPattern.MatchString(p.Manufacturer)
	m := serialPattern.FindStringSubmatch(p.SerialNumber)
	if !manufacturer && m == nil {
		return Device{}, false
	}

	d := Device{
		Port:         p.Name,
		Manufacturer: p.Manufacturer,
		VendorID:     p.VendorID,
		ProductID:    p.ProductID,
	}
	if m != nil {
		d.Model = m[1]
	}
	return d, true
}

// ConnectedDevices returns the recognized RF Code devices.
func ConnectedDevices() ([]Device, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, err
	}

	devices := []Device{}
	for _, p := range ports {
		if d, ok := Recognize(p); ok {
			devices = append(devices, d)
		}
	}
	return devices, nil
}
