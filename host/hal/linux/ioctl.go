//go:build linux && (386 || amd64 || arm || arm64 || loong64 || riscv64 || s390x)

package linux

import "unsafe"

// Generic _IOC encoding shared by the architectures in the build constraint.
//
//	bits 0-7:   command number
//	bits 8-15:  type
//	bits 16-29: argument size
//	bits 30-31: direction
const (
	iocNone  = 0
	iocWrite = 1
	iocRead  = 2

	iocNRShift   = 0
	iocTypeShift = 8
	iocSizeShift = 16
	iocDirShift  = 30
)

func ioc(dir, typ, nr, size uintptr) uint {
	return uint(dir<<iocDirShift | typ<<iocTypeShift | nr<<iocNRShift | size<<iocSizeShift)
}

func ion(typ, nr uintptr) uint { return ioc(iocNone, typ, nr, 0) }

func ior(typ, nr, size uintptr) uint { return ioc(iocRead, typ, nr, size) }

func iowr(typ, nr, size uintptr) uint { return ioc(iocRead|iocWrite, typ, nr, size) }

const usbdevfsType = 'U'

// ctrlTransfer matches struct usbdevfs_ctrltransfer.
type ctrlTransfer struct {
	requestType uint8
	request     uint8
	value       uint16
	index       uint16
	length      uint16
	timeout     uint32 // milliseconds
	data        unsafe.Pointer
}

// disconnectClaim matches struct usbdevfs_disconnect_claim.
type disconnectClaim struct {
	iface  uint32
	flags  uint32
	driver [256]byte
}

// usbdevfsIoctl matches struct usbdevfs_ioctl.
type usbdevfsIoctl struct {
	ifno      int32
	ioctlCode int32
	data      unsafe.Pointer
}

var (
	ioctlControl          = iowr(usbdevfsType, 0, unsafe.Sizeof(ctrlTransfer{}))
	ioctlReleaseInterface = ior(usbdevfsType, 16, unsafe.Sizeof(uint32(0)))
	ioctlIoctl            = iowr(usbdevfsType, 18, unsafe.Sizeof(usbdevfsIoctl{}))
	ioctlConnect          = ion(usbdevfsType, 23)
	ioctlDisconnectClaim  = ior(usbdevfsType, 27, unsafe.Sizeof(disconnectClaim{}))
	ioctlGetSpeed         = ion(usbdevfsType, 31)
)
