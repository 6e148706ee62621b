package regs

import "testing"

func TestAddrAligned(t *testing.T) {
	tests := []struct {
		addr Addr
		want bool
	}{
		{IDRev, true},
		{MIIData, true},
		{OTPStatus, true},
		{0x011, false},
		{0x012, false},
		{0x013, false},
	}
	for _, tt := range tests {
		if got := tt.addr.Aligned(); got != tt.want {
			t.Errorf("Addr(%v).Aligned() = %v, want %v", tt.addr, got, tt.want)
		}
	}
}

func TestAddrString(t *testing.T) {
	if got := HWCfg.String(); got != "0x010" {
		t.Errorf("HWCfg.String() = %q, want 0x010", got)
	}
	if got := OTPCmdGo.String(); got != "0x1028" {
		t.Errorf("OTPCmdGo.String() = %q, want 0x1028", got)
	}
}

func TestPerfectFilterLayout(t *testing.T) {
	tests := []struct {
		index  int
		hi, lo Addr
	}{
		{0, 0x400, 0x404},
		{1, 0x408, 0x40C},
		{32, 0x500, 0x504},
	}
	for _, tt := range tests {
		if got := PFilterHi(tt.index); got != tt.hi {
			t.Errorf("PFilterHi(%d) = %v, want %v", tt.index, got, tt.hi)
		}
		if got := PFilterLo(tt.index); got != tt.lo {
			t.Errorf("PFilterLo(%d) = %v, want %v", tt.index, got, tt.lo)
		}
	}
}

func TestOTPLayout(t *testing.T) {
	tests := []struct {
		name string
		addr Addr
		want Addr
	}{
		{"PWR_DN", OTPPwrDn, 0x1000},
		{"ADDR1", OTPAddr1, 0x1004},
		{"ADDR2", OTPAddr2, 0x1008},
		{"ADDR3", OTPAddr3, 0x100C},
		{"PRGM_DATA", OTPPrgmData, 0x1010},
		{"RD_DATA", OTPRdData, 0x1018},
		{"FUNC_CMD", OTPFuncCmd, 0x1020},
		{"CMD_GO", OTPCmdGo, 0x1028},
		{"STATUS", OTPStatus, 0x1028},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.addr != tt.want {
				t.Errorf("%s = %v, want %v", tt.name, tt.addr, tt.want)
			}
		})
	}
}

func TestDumpSet(t *testing.T) {
	seen := make(map[Addr]string)
	var prev Addr
	for i, r := range DumpSet {
		if !r.Addr.Aligned() {
			t.Errorf("%s at %v is not aligned", r.Name, r.Addr)
		}
		if other, dup := seen[r.Addr]; dup {
			t.Errorf("%s and %s share %v", r.Name, other, r.Addr)
		}
		seen[r.Addr] = r.Name
		if i > 0 && r.Addr <= prev {
			t.Errorf("%s at %v is out of address order", r.Name, r.Addr)
		}
		prev = r.Addr
	}
}

func TestLookup(t *testing.T) {
	if got := Lookup(MACRx); got != "MAC_RX" {
		t.Errorf("Lookup(MAC_RX) = %q", got)
	}
	if got := Lookup(PFilterHi(3)); got != "" {
		t.Errorf("Lookup(perfect filter) = %q, want empty", got)
	}
}

func TestE2PCommandOpcodes(t *testing.T) {
	ops := []uint32{E2PCmdRead, E2PCmdEWEN, E2PCmdWrite, E2PCmdErase, E2PCmdReload}
	for _, op := range ops {
		if op&^E2PCmdMask != 0 {
			t.Errorf("opcode 0x%08X outside E2PCmdMask", op)
		}
		if op&(E2PCmdBusy|E2PCmdAddrMask) != 0 {
			t.Errorf("opcode 0x%08X overlaps busy or address bits", op)
		}
	}
}
