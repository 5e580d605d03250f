//go:build windows

package qcserial

import (
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"
	"unsafe"

	"golang.org/x/sys/windows"
)

// GUID for COM-port device interfaces: {86E0D1E0-8089-11D0-9CE4-08003E301F73}
var guidDevInterfaceComPort = windows.GUID{Data1: 0x86E0D1E0, Data2: 0x8089, Data3: 0x11D0, Data4: [8]byte{0x9C, 0xE4, 0x08, 0x00, 0x3E, 0x30, 0x1F, 0x73}}

const (
	_DIGCF_PRESENT         = 0x00000002
	_DIGCF_DEVICEINTERFACE = 0x00000010

	_SPDRP_HARDWAREID   = 0x00000001
	_SPDRP_FRIENDLYNAME = 0x0000000C
)

type spDeviceInterfaceData struct {
	cbSize             uint32
	interfaceClassGuid windows.GUID
	flags              uint32
	reserved           uintptr
}

type spDeviceInterfaceDetailDataW struct {
	cbSize     uint32
	devicePath [1]uint16 // variable-length
}

type spDevinfoData struct {
	cbSize    uint32
	classGuid windows.GUID
	devInst   uint32
	reserved  uintptr
}

var (
	modSetupapi                           = windows.NewLazySystemDLL("setupapi.dll")
	procSetupDiGetClassDevsW              = modSetupapi.NewProc("SetupDiGetClassDevsW")
	procSetupDiEnumDeviceInterfaces       = modSetupapi.NewProc("SetupDiEnumDeviceInterfaces")
	procSetupDiGetDeviceInterfaceDetailW  = modSetupapi.NewProc("SetupDiGetDeviceInterfaceDetailW")
	procSetupDiGetDeviceRegistryPropertyW = modSetupapi.NewProc("SetupDiGetDeviceRegistryPropertyW")
	procSetupDiDestroyDeviceInfoList      = modSetupapi.NewProc("SetupDiDestroyDeviceInfoList")
)

// fallbackPorts enumerates present COM-port interfaces via SetupAPI and
// returns the names of those exposed by an FTDI bridge with a QCicada
// product ID. The COM name is recovered from the friendly name, which
// Windows renders as e.g. "USB Serial Port (COM7)".
func fallbackPorts() ([]string, error) {
	h, err := setupDiGetClassDevs(&guidDevInterfaceComPort, _DIGCF_PRESENT|_DIGCF_DEVICEINTERFACE)
	if err != nil {
		return nil, err
	}
	defer procSetupDiDestroyDeviceInfoList.Call(uintptr(h))

	var names []string
	for index := uint32(0); ; index++ {
		var ifData spDeviceInterfaceData
		ifData.cbSize = uint32(unsafe.Sizeof(ifData))

		r1, _, e1 := procSetupDiEnumDeviceInterfaces.Call(
			uintptr(h),
			0,
			uintptr(unsafe.Pointer(&guidDevInterfaceComPort)),
			uintptr(index),
			uintptr(unsafe.Pointer(&ifData)),
		)
		if r1 == 0 {
			if errors.Is(e1, windows.ERROR_NO_MORE_ITEMS) {
				break
			}
			return nil, fmt.Errorf("SetupDiEnumDeviceInterfaces failed at index %d: %w", index, e1)
		}

		devInfo, err := interfaceDeviceInfo(h, &ifData)
		if err != nil {
			return nil, err
		}
		if devInfo == nil {
			continue
		}

		hwIDs := parseMultiSz(deviceProperty(h, devInfo, _SPDRP_HARDWAREID))
		if !bridgeHardwareID(hwIDs) {
			continue
		}
		friendly := windows.UTF16ToString(deviceProperty(h, devInfo, _SPDRP_FRIENDLYNAME))
		if name := comName(friendly); name != "" {
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// bridgeHardwareID reports whether any registry hardware ID, e.g.
// "FTDIBUS\COMPORT&VID_0403&PID_6015", carries a QCicada bridge VID/PID.
func bridgeHardwareID(hwIDs []string) bool {
	vid := "VID_" + strings.ToUpper(usbVendorFTDI)
	for _, id := range hwIDs {
		u := strings.ToUpper(id)
		if !strings.Contains(u, vid) {
			continue
		}
		for pid := range usbProductIDs {
			if strings.Contains(u, "PID_"+strings.ToUpper(pid)) {
				return true
			}
		}
	}
	return false
}

// comName extracts "COM7" from a friendly name like "USB Serial Port (COM7)".
func comName(friendly string) string {
	open := strings.LastIndex(friendly, "(COM")
	if open < 0 {
		return ""
	}
	rest := friendly[open:]
	end := strings.Index(rest, ")")
	if end < 0 {
		return ""
	}
	return rest[1:end]
}

func setupDiGetClassDevs(classGUID *windows.GUID, flags uint32) (windows.Handle, error) {
	r0, _, e1 := procSetupDiGetClassDevsW.Call(
		uintptr(unsafe.Pointer(classGUID)),
		0,
		0,
		uintptr(flags),
	)
	if r0 == 0 || r0 == ^uintptr(0) { // INVALID_HANDLE_VALUE
		if e1 != nil {
			return 0, e1
		}
		return 0, errors.New("SetupDiGetClassDevsW failed")
	}
	return windows.Handle(r0), nil
}

// interfaceDeviceInfo resolves the devinfo element behind an interface so
// its registry properties can be queried. Returns nil when the detail size
// probe comes back empty.
func interfaceDeviceInfo(h windows.Handle, ifData *spDeviceInterfaceData) (*spDevinfoData, error) {
	var devInfo spDevinfoData
	devInfo.cbSize = uint32(unsafe.Sizeof(devInfo))

	reqSize := uint32(0)
	procSetupDiGetDeviceInterfaceDetailW.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(ifData)),
		0,
		0,
		uintptr(unsafe.Pointer(&reqSize)),
		uintptr(unsafe.Pointer(&devInfo)),
	)
	if reqSize == 0 {
		return nil, nil
	}

	buf := make([]byte, reqSize)
	detail := (*spDeviceInterfaceDetailDataW)(unsafe.Pointer(&buf[0]))
	if runtime.GOARCH == "386" || runtime.GOARCH == "arm" {
		detail.cbSize = 6 // sizeof(DWORD) + 2 bytes for first WCHAR
	} else {
		detail.cbSize = 8
	}
	r1, _, e1 := procSetupDiGetDeviceInterfaceDetailW.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(ifData)),
		uintptr(unsafe.Pointer(detail)),
		uintptr(reqSize),
		0,
		uintptr(unsafe.Pointer(&devInfo)),
	)
	if r1 == 0 {
		if e1 != nil {
			return nil, fmt.Errorf("SetupDiGetDeviceInterfaceDetailW failed: %w", e1)
		}
		return nil, errors.New("SetupDiGetDeviceInterfaceDetailW failed")
	}
	return &devInfo, nil
}

// deviceProperty reads a registry property for a device as a raw UTF-16
// buffer. Missing or unreadable properties come back empty.
func deviceProperty(h windows.Handle, devInfo *spDevinfoData, prop uint32) []uint16 {
	var dataType uint32
	var required uint32
	r1, _, e1 := procSetupDiGetDeviceRegistryPropertyW.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(devInfo)),
		uintptr(prop),
		uintptr(unsafe.Pointer(&dataType)),
		0,
		0,
		uintptr(unsafe.Pointer(&required)),
	)
	if r1 == 0 && !errors.Is(e1, windows.ERROR_INSUFFICIENT_BUFFER) {
		return nil
	}
	if required == 0 {
		return nil
	}

	buf := make([]uint16, required/2)
	r2, _, _ := procSetupDiGetDeviceRegistryPropertyW.Call(
		uintptr(h),
		uintptr(unsafe.Pointer(devInfo)),
		uintptr(prop),
		uintptr(unsafe.Pointer(&dataType)),
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(required),
		uintptr(unsafe.Pointer(&required)),
	)
	if r2 == 0 {
		return nil
	}
	return buf
}

// parseMultiSz splits a REG_MULTI_SZ buffer into its strings. The sequence
// ends with an empty string.
func parseMultiSz(buf []uint16) []string {
	var out []string
	start := 0
	for i, v := range buf {
		if v == 0 {
			if i == start {
				break
			}
			out = append(out, windows.UTF16ToString(buf[start:i]))
			start = i + 1
		}
	}
	return out
}
