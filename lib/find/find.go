// Package find locates the serial port of a USB device.
package find

import (
	"fmt"
	"strings"

	"go.bug.st/serial/enumerator"
)

type FilterFn func(*Usbtty) bool

// arduinoVID is the USB vendor id of Arduino boards, which the stage
// controller is built on.
const arduinoVID = "2341"

func ArduinoFilter(ut *Usbtty) bool {
	return strings.EqualFold(ut.IDv, arduinoVID) ||
		strings.Contains(ut.Prod, "Arduino")
}

func PiPicoFilter(ut *Usbtty) bool {
	return strings.EqualFold(ut.IDv, "2e8a")
}

func SerialFilter(s string) FilterFn {
	return func(ut *Usbtty) bool { return ut.Serial == s }
}

// VIDPIDFilter matches a vendor and product id, ignoring case.
func VIDPIDFilter(vid, pid string) FilterFn {
	return func(ut *Usbtty) bool {
		return strings.EqualFold(ut.IDv, vid) && strings.EqualFold(ut.IDp, pid)
	}
}

// listPorts is replaced in tests.
var listPorts = enumerator.GetDetailedPortsList

// Find searches for a usb serial device. If filter is not nil,
// it is used to narrow choices down. The first device for which
// it returns true (if any) is chosen.
func Find(filter FilterFn) (string, error) {
	ttys, err := AllUsbTtys()
	if err != nil {
		return "", err
	}
	if filter != nil {
		var match Usbttys
		for i := range ttys {
			if filter(&ttys[i]) {
				match = Usbttys{ttys[i]}
				break
			}
		}
		ttys = match
	}

	if len(ttys) == 0 {
		return "", fmt.Errorf("no matching ttys found")
	}
	if len(ttys) == 1 {
		return ttys[0].Dev, nil
	}
	return "", fmt.Errorf("multiple ttys:\n%s", ttys)
}

type Usbtty struct {
	Dev      string
	IDp, IDv string
	Prod     string
	Serial   string
}

func (u Usbtty) String() string {
	return fmt.Sprintf("dev %s pid/vid %s/%s prod %s serial %s", u.Dev, u.IDp, u.IDv, u.Prod, u.Serial)
}

type Usbttys []Usbtty

func (uts Usbttys) String() string {
	s := make([]string, 0, len(uts))
	for _, ut := range uts {
		s = append(s, ut.String())
	}
	return strings.Join(s, "\n")
}

// AllUsbTtys lists the serial ports that belong to usb devices.
func AllUsbTtys() (Usbttys, error) {
	ports, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("listing serial ports: %w", err)
	}
	var devs Usbttys
	for _, p := range ports {
		if !p.IsUSB {
			continue
		}
		devs = append(devs, Usbtty{
			Dev:    p.Name,
			IDp:    p.PID,
			IDv:    p.VID,
			Prod:   p.Product,
			Serial: p.SerialNumber,
		})
	}
	return devs, nil
}
