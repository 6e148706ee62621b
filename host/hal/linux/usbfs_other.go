//go:build !(linux && (386 || amd64 || arm || arm64 || loong64 || riscv64 || s390x))

package linux

import (
	"context"

	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/pkg"
)

// Transport is unavailable on this platform.
type Transport struct{}

// Open reports [pkg.ErrNotSupported] on platforms without usbfs.
func Open(path string, opts Options) (*Transport, error) {
	return nil, pkg.ErrNotSupported
}

func (*Transport) ControlTransfer(context.Context, *hal.SetupPacket, []byte) (int, error) {
	return 0, pkg.ErrNotSupported
}

func (*Transport) Speed() hal.Speed { return hal.SpeedUnknown }

func (*Transport) Path() string { return "" }

func (*Transport) Descriptor() DeviceDescriptor { return DeviceDescriptor{} }

func (*Transport) Close() error { return nil }
