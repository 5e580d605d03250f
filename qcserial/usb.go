package qcserial

import (
	"github.com/google/gousb"
)

const ftdiVendorID = 0x0403

var ftdiProductIDs = []gousb.ID{0x6001, 0x6015}

// AttachedDevice describes a matching USB device seen on the bus.
type AttachedDevice struct {
	Bus     int
	Address int
	Product gousb.ID
}

// IsAttached reports whether a QCicada USB bridge is present on the bus.
// It inspects device descriptors without opening anything, so it can tell
// "no hardware" apart from "hardware present but the port is busy".
func IsAttached() (bool, []AttachedDevice, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	var attached []AttachedDevice
	_, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		if desc.Vendor == gousb.ID(ftdiVendorID) && isBridgeProduct(desc.Product) {
			attached = append(attached, AttachedDevice{
				Bus:     desc.Bus,
				Address: desc.Address,
				Product: desc.Product,
			})
		}
		return false
	})
	if err != nil {
		return false, nil, err
	}
	return len(attached) > 0, attached, nil
}

func isBridgeProduct(pid gousb.ID) bool {
	for _, want := range ftdiProductIDs {
		if pid == want {
			return true
		}
	}
	return false
}
