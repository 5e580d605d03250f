// qcdetect lists attached QCicada devices. By default it probes every
// candidate serial port and prints the identity each device reports; with
// -usb it only checks the USB bus for the bridge chip, which works even
// while another process holds the port open.
package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/qcicada/qcicada-go/qcserial"
)

func main() {
	usbOnly := flag.Bool("usb", false, "check the USB bus only, without opening ports")
	listOnly := flag.Bool("ports", false, "list candidate ports without probing them")
	flag.Parse()

	if *usbOnly {
		ok, attached, err := qcserial.IsAttached()
		if err != nil {
			log.Fatalf("usb scan: %v", err)
		}
		if !ok {
			fmt.Println("No QCicada bridge on the USB bus (VID 0x0403)")
			return
		}
		for _, d := range attached {
			fmt.Printf("bus %d addr %d: FTDI product 0x%s\n", d.Bus, d.Address, d.Product)
		}
		return
	}

	if *listOnly {
		ports, err := qcserial.ListPorts()
		if err != nil {
			log.Fatalf("list ports: %v", err)
		}
		if len(ports) == 0 {
			fmt.Println("No candidate ports")
			return
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	devices, err := qcserial.Discover()
	if err != nil {
		log.Fatalf("discover: %v", err)
	}
	if len(devices) == 0 {
		fmt.Println("No QCicada devices found")
		return
	}
	for _, d := range devices {
		fmt.Printf("%s: serial=%s hw=%s core=%d fw=%d\n",
			d.Port, d.Info.Serial, d.Info.HardwareInfo, d.Info.CoreVersion, d.Info.FirmwareVersion)
	}
}
