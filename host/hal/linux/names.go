package linux

import (
	"bufio"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// USBIDPaths lists the standard locations of the usb.ids database.
var USBIDPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// Names resolves USB vendor and product IDs to display names.
//
// LAN78xx parts resolve without a database. Everything else comes from the
// first usb.ids file found on the search path, parsed on first lookup.
type Names struct {
	paths    []string
	once     sync.Once
	vendors  map[uint16]string
	products map[uint32]string
}

// NewNames returns a Names searching paths, or [USBIDPaths] if none given.
func NewNames(paths ...string) *Names {
	if len(paths) == 0 {
		paths = USBIDPaths
	}
	return &Names{paths: paths}
}

func productKey(vid, pid uint16) uint32 {
	return uint32(vid)<<16 | uint32(pid)
}

func (n *Names) load() {
	n.once.Do(func() {
		n.vendors = map[uint16]string{
			VendorMicrochip: "Microchip Technology, Inc. (formerly SMSC)",
		}
		n.products = map[uint32]string{
			productKey(VendorMicrochip, ProductLAN7800): "LAN7800 USB 3.0 to 10/100/1000 Ethernet",
			productKey(VendorMicrochip, ProductLAN7801): "LAN7801 USB 3.0 to 10/100/1000 Ethernet",
			productKey(VendorMicrochip, ProductLAN7850): "LAN7850 USB 2.0 to 10/100/1000 Ethernet",
		}
		for _, path := range n.paths {
			f, err := os.Open(path)
			if err != nil {
				continue
			}
			parseUSBIDs(f, n.vendors, n.products)
			f.Close()
			return
		}
	})
}

// Vendor returns the vendor name for vid, or "".
func (n *Names) Vendor(vid uint16) string {
	n.load()
	return n.vendors[vid]
}

// Product returns the product name for vid:pid, or "".
func (n *Names) Product(vid, pid uint16) string {
	n.load()
	return n.products[productKey(vid, pid)]
}

// parseUSBIDs reads the usb.ids format into vendors and products. Entries
// already present are kept.
//
// Vendor lines are "vvvv  Name"; product lines follow as "\tpppp  Name".
// Any other line ends the current vendor block.
func parseUSBIDs(r io.Reader, vendors map[uint16]string, products map[uint32]string) {
	sc := bufio.NewScanner(r)
	var vid uint16
	inVendor := false

	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		if line[0] == '\t' {
			if !inVendor {
				continue
			}
			id, name, ok := splitEntry(line[1:])
			if !ok {
				continue
			}
			key := productKey(vid, id)
			if _, dup := products[key]; !dup {
				products[key] = name
			}
			continue
		}
		id, name, ok := splitEntry(line)
		if !ok {
			// Class (C), language (L) and other sections.
			inVendor = false
			continue
		}
		vid, inVendor = id, true
		if _, dup := vendors[vid]; !dup {
			vendors[vid] = name
		}
	}
}

// splitEntry parses "xxxx  Name".
func splitEntry(s string) (uint16, string, bool) {
	if len(s) < 6 || s[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(id), strings.TrimLeft(s[5:], " "), true
}
