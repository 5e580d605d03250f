package qcserial

import (
	"errors"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"

	qcicada "github.com/qcicada/qcicada-go"
	"github.com/qcicada/qcicada-go/qcc"
)

// QCicada hardware revisions enumerate as one of these FTDI bridges.
const usbVendorFTDI = "0403"

var usbProductIDs = map[string]bool{
	"6001": true, // FT232R
	"6015": true, // FT230X
}

// ErrNoDevice is returned when discovery finds no responding QCicada device.
var ErrNoDevice = errors.New("qcserial: no QCicada device found")

// DiscoveredDevice pairs a port name with the identity the device on it
// reported.
type DiscoveredDevice struct {
	Port string
	Info qcc.DeviceInfo
}

// ListPorts returns the names of serial ports that look like a QCicada
// bridge, sorted. Ports are matched by USB vendor and product ID where the
// platform reports them, with a name-pattern fallback otherwise.
func ListPorts() ([]string, error) {
	ports, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return fallbackPorts()
	}
	var names []string
	for _, p := range ports {
		if p.IsUSB && strings.EqualFold(p.VID, usbVendorFTDI) && usbProductIDs[strings.ToLower(p.PID)] {
			names = append(names, p.Name)
		}
	}
	if len(names) == 0 {
		return fallbackPorts()
	}
	sort.Strings(names)
	return names, nil
}

// Probe opens the named port, asks the device on it to identify itself, and
// closes the port again.
func Probe(portName string) (qcc.DeviceInfo, error) {
	dev, err := OpenDevice(portName)
	if err != nil {
		return qcc.DeviceInfo{}, err
	}
	defer dev.Close()
	return dev.GetInfo()
}

// Discover probes every candidate port and returns the devices that
// answered. Ports that fail to open or identify are skipped.
func Discover() ([]DiscoveredDevice, error) {
	names, err := ListPorts()
	if err != nil {
		return nil, err
	}
	var found []DiscoveredDevice
	for _, name := range names {
		info, err := Probe(name)
		if err != nil {
			continue
		}
		found = append(found, DiscoveredDevice{Port: name, Info: info})
	}
	return found, nil
}

// OpenDevice opens the named port and wraps it in a command session. The
// caller owns the returned device and must Close it.
func OpenDevice(portName string) (*qcicada.Device, error) {
	p, err := Open(portName)
	if err != nil {
		return nil, err
	}
	return qcicada.NewDevice(p), nil
}

// OpenFirst connects to the first candidate port with a responding device.
func OpenFirst() (*qcicada.Device, error) {
	names, err := ListPorts()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		dev, err := OpenDevice(name)
		if err != nil {
			continue
		}
		if _, err := dev.GetInfo(); err != nil {
			dev.Close()
			continue
		}
		return dev, nil
	}
	return nil, ErrNoDevice
}

// OpenBySerial connects to the device whose reported serial number matches
// serialNumber exactly.
func OpenBySerial(serialNumber string) (*qcicada.Device, error) {
	names, err := ListPorts()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		dev, err := OpenDevice(name)
		if err != nil {
			continue
		}
		info, err := dev.GetInfo()
		if err == nil && info.Serial == serialNumber {
			return dev, nil
		}
		dev.Close()
	}
	return nil, ErrNoDevice
}
