//go:build linux && (386 || amd64 || arm || arm64 || loong64 || riscv64 || s390x)

package linux

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/ardnew/muge/host/hal"
	"github.com/ardnew/muge/pkg"
)

// Transport performs control transfers on one usbfs device node.
type Transport struct {
	mu       sync.Mutex
	fd       int
	path     string
	speed    hal.Speed
	desc     DeviceDescriptor
	timeout  time.Duration
	iface    uint32
	detached bool
	closed   bool
}

var _ hal.Transport = (*Transport)(nil)

// Open opens the usbfs node at path, for example /dev/bus/usb/001/004.
func Open(path string, opts Options) (*Transport, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, mapErrno(err))
	}

	t := &Transport{
		fd:      fd,
		path:    path,
		timeout: opts.Timeout,
		iface:   uint32(opts.Interface),
	}

	buf := make([]byte, DeviceDescriptorSize)
	n, err := unix.Read(fd, buf)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("read descriptor %s: %w", path, mapErrno(err))
	}
	if t.desc, err = ParseDeviceDescriptor(buf[:n]); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !t.desc.IsLAN78xx() {
		pkg.LogWarn(pkg.ComponentTransport, "not a LAN78xx",
			"path", path, "vendor", t.desc.VendorID, "product", t.desc.ProductID)
	}

	if v, err := unix.IoctlRetInt(fd, ioctlGetSpeed); err == nil {
		t.speed = kernelSpeed(v)
	} else {
		pkg.LogDebug(pkg.ComponentTransport, "speed query failed", "path", path, "error", err)
	}

	if opts.Detach {
		if err := t.disconnectClaim(); err != nil {
			unix.Close(fd)
			return nil, fmt.Errorf("claim interface %d: %w", opts.Interface, mapErrno(err))
		}
		t.detached = true
	}

	pkg.LogInfo(pkg.ComponentTransport, "device opened",
		"path", path, "speed", t.speed, "detached", t.detached)
	return t, nil
}

func (t *Transport) ioctl(req uint, arg unsafe.Pointer) (int, error) {
	r, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(t.fd), uintptr(req), uintptr(arg))
	if errno != 0 {
		return int(r), errno
	}
	return int(r), nil
}

// disconnectClaim detaches whatever driver owns the interface and claims it.
func (t *Transport) disconnectClaim() error {
	dc := disconnectClaim{iface: t.iface}
	_, err := t.ioctl(ioctlDisconnectClaim, unsafe.Pointer(&dc))
	return err
}

// reattach releases the claimed interface and reconnects the kernel driver.
func (t *Transport) reattach() error {
	iface := t.iface
	if _, err := t.ioctl(ioctlReleaseInterface, unsafe.Pointer(&iface)); err != nil {
		return err
	}
	req := usbdevfsIoctl{ifno: int32(t.iface), ioctlCode: int32(ioctlConnect)}
	_, err := t.ioctl(ioctlIoctl, unsafe.Pointer(&req))
	return err
}

// ControlTransfer performs a synchronous control transfer on endpoint 0.
//
// The kernel timeout is the configured timeout or the time left before the
// ctx deadline, whichever is shorter.
func (t *Transport) ControlTransfer(ctx context.Context, setup *hal.SetupPacket, data []byte) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if int(setup.Length) > len(data) {
		return 0, pkg.ErrInvalidArgument
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, pkg.ErrNoDevice
	}

	ctrl := ctrlTransfer{
		requestType: setup.RequestType,
		request:     setup.Request,
		value:       setup.Value,
		index:       setup.Index,
		length:      setup.Length,
		timeout:     timeoutMillis(ctx, t.timeout),
	}
	if setup.Length > 0 {
		ctrl.data = unsafe.Pointer(&data[0])
	}

	n, err := t.ioctl(ioctlControl, unsafe.Pointer(&ctrl))
	if err != nil {
		return 0, mapErrno(err)
	}
	return n, nil
}

// Speed returns the link speed reported by the kernel.
func (t *Transport) Speed() hal.Speed {
	return t.speed
}

// Path returns the device node path.
func (t *Transport) Path() string {
	return t.path
}

// Descriptor returns the device descriptor read when the node was opened.
func (t *Transport) Descriptor() DeviceDescriptor {
	return t.desc
}

// Close returns the interface to the kernel driver if it was detached and
// closes the device node.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	var errs []error
	if t.detached {
		if err := t.reattach(); err != nil {
			errs = append(errs, fmt.Errorf("reattach driver: %w", mapErrno(err)))
		}
	}
	if err := unix.Close(t.fd); err != nil {
		errs = append(errs, err)
	}
	pkg.LogInfo(pkg.ComponentTransport, "device closed", "path", t.path)
	return errors.Join(errs...)
}

// mapErrno attaches the driver error taxonomy to usbfs errno values.
func mapErrno(err error) error {
	switch {
	case errors.Is(err, unix.ENODEV), errors.Is(err, unix.ESHUTDOWN), errors.Is(err, unix.ENOENT):
		return fmt.Errorf("%w: %w", pkg.ErrNoDevice, err)
	case errors.Is(err, unix.EPIPE):
		return fmt.Errorf("%w: %w", pkg.ErrStall, err)
	case errors.Is(err, unix.ETIMEDOUT):
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return fmt.Errorf("%w: %w", pkg.ErrNotSupported, err)
	}
	return err
}
