package indirect

import (
	"context"
	"fmt"

	"github.com/ardnew/muge/bus"
	"github.com/ardnew/muge/pkg"
	"github.com/ardnew/muge/regs"
)

// Data Port RAM selections.
const (
	RAMVLANDA = regs.DPSelRSelVLANDA // VLAN table and DA hash
)

// Word offsets within RAMVLANDA.
const (
	VLANTableOffset = 0
	VLANTableWords  = regs.DPSelVHFVLANLen
	HashTableOffset = regs.DPSelVHFVLANLen
	HashTableWords  = regs.DPSelVHFHashLen
)

const dataPortWords = VLANTableWords + HashTableWords

func (e *Engine) execDataPort(ctx context.Context, a bus.Accessor, req Request) (uint32, error) {
	if req.RAM&^regs.DPSelRSelMask != 0 {
		return 0, fmt.Errorf("%w: data port ram 0x%x", pkg.ErrInvalidArgument, req.RAM)
	}
	if req.RAM == RAMVLANDA && req.Addr >= dataPortWords {
		return 0, fmt.Errorf("%w: data port word %d", pkg.ErrInvalidIndex, req.Addr)
	}
	s := sequence{
		target: e.dataPort,
		setup: []write{
			{addr: regs.DPSel, value: req.RAM, mask: regs.DPSelRSelMask},
			{addr: regs.DPAddr, value: req.Addr},
		},
		width: 0xFFFFFFFF,
	}
	switch req.Op {
	case OpRead:
		s.command = write{addr: regs.DPCmd, value: regs.DPCmdRead}
		s.result = regs.DPData
	case OpWrite:
		s.setup = append(s.setup, write{addr: regs.DPData, value: req.Payload})
		s.command = write{addr: regs.DPCmd, value: regs.DPCmdWrite}
	default:
		return 0, fmt.Errorf("%w: data port %v", pkg.ErrNotSupported, req.Op)
	}
	return e.run(ctx, a, s)
}

// ReadDataPort reads word addr of the selected RAM.
func (e *Engine) ReadDataPort(ctx context.Context, ram, addr uint32) (uint32, error) {
	return e.Exec(ctx, Request{Target: pkg.TargetDataPort, RAM: ram, Addr: addr, Op: OpRead})
}

// WriteDataPort writes value to word addr of the selected RAM.
func (e *Engine) WriteDataPort(ctx context.Context, ram, addr, value uint32) error {
	_, err := e.Exec(ctx, Request{
		Target:  pkg.TargetDataPort,
		RAM:     ram,
		Addr:    addr,
		Op:      OpWrite,
		Payload: value,
	})
	return err
}

// WriteDataPortBlock writes words to consecutive addresses starting at addr
// in one locked sequence.
func (e *Engine) WriteDataPortBlock(ctx context.Context, ram, addr uint32, words []uint32) error {
	return e.bus.Exclusive(ctx, func(ctx context.Context, a bus.Accessor) error {
		for i, w := range words {
			_, err := e.execDataPort(ctx, a, Request{
				Target:  pkg.TargetDataPort,
				RAM:     ram,
				Addr:    addr + uint32(i),
				Op:      OpWrite,
				Payload: w,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}
