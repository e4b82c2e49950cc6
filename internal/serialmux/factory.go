package serialmux

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// ErrNoPort is returned by FindPort when no port matches.
var ErrNoPort = fmt.Errorf("no matching serial port")

// PortInfo describes a serial port found on the host.
type PortInfo struct {
	Name         string `json:"name"`
	IsUSB        bool   `json:"is_usb"`
	VID          string `json:"vid,omitempty"`
	PID          string `json:"pid,omitempty"`
	SerialNumber string `json:"serial_number,omitempty"`
	Product      string `json:"product,omitempty"`
}

// Matches reports whether name, product or serial number contains match,
// ignoring case.
func (p PortInfo) Matches(match string) bool {
	m := strings.ToLower(match)
	for _, f := range []string{p.Name, p.Product, p.SerialNumber} {
		if f != "" && strings.Contains(strings.ToLower(f), m) {
			return true
		}
	}
	return false
}

// enumerate is replaced in tests.
var enumerate = func() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, err
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// ListPorts returns the serial ports visible to the host, sorted by name.
func ListPorts() ([]PortInfo, error) {
	ports, err := enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerate serial ports: %w", err)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

// FindPort returns the first port (by name) matching match.
func FindPort(match string) (PortInfo, error) {
	ports, err := ListPorts()
	if err != nil {
		return PortInfo{}, err
	}
	for _, p := range ports {
		if p.Matches(match) {
			return p, nil
		}
	}
	return PortInfo{}, fmt.Errorf("%w for %q among %d port(s)", ErrNoPort, match, len(ports))
}

// OpenSerialPort opens a real serial port with go.bug.st/serial.
func OpenSerialPort(path string, opts PortOptions) (SerialPorter, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, err
	}
	port, err := serial.Open(path, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return port, nil
}

// NewRealSerialMux creates a SerialMux backed by the serial port at path.
func NewRealSerialMux(path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	return NewSerialMuxWith(OpenSerialPort, path, opts)
}

// NewSerialMuxWith opens path through open and wraps the port in a mux.
func NewSerialMuxWith(open SerialPortOpener, path string, opts PortOptions) (*SerialMux[SerialPorter], error) {
	port, err := open(path, opts)
	if err != nil {
		return nil, err
	}
	return NewSerialMux(port), nil
}

// ResolvePort returns path when set, otherwise the name of the first port
// matching match.
func ResolvePort(path, match string) (string, error) {
	if path != "" {
		return path, nil
	}
	if match == "" {
		return "", fmt.Errorf("%w: neither a port path nor a match string is configured", ErrNoPort)
	}
	p, err := FindPort(match)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}
