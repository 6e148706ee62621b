package hal

import (
	"testing"
)

// =============================================================================
// Speed Tests
// =============================================================================

func TestSpeed_String(t *testing.T) {
	tests := []struct {
		speed    Speed
		expected string
	}{
		{SpeedUnknown, "Unknown"},
		{SpeedLow, "Low Speed"},
		{SpeedFull, "Full Speed"},
		{SpeedHigh, "High Speed"},
		{SpeedSuper, "Super Speed"},
		{Speed(255), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.speed.String(); got != tt.expected {
				t.Errorf("Speed(%d).String() = %q, want %q", tt.speed, got, tt.expected)
			}
		})
	}
}

func TestParseSpeed(t *testing.T) {
	tests := []struct {
		name string
		want Speed
	}{
		{"low", SpeedLow},
		{"full", SpeedFull},
		{"high", SpeedHigh},
		{"super", SpeedSuper},
		{"warp", SpeedUnknown},
		{"", SpeedUnknown},
	}

	for _, tt := range tests {
		if got := ParseSpeed(tt.name); got != tt.want {
			t.Errorf("ParseSpeed(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

// =============================================================================
// SetupPacket Tests
// =============================================================================

func TestVendorSetup(t *testing.T) {
	tests := []struct {
		name   string
		in     bool
		wantRT uint8
	}{
		{"read register", true, 0xC0},
		{"write register", false, 0x40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := VendorSetup(tt.in, 0xA1, 0, 0x118, 4)
			if s.RequestType != tt.wantRT {
				t.Errorf("RequestType = 0x%02X, want 0x%02X", s.RequestType, tt.wantRT)
			}
			if s.IsIn() != tt.in {
				t.Errorf("IsIn() = %v, want %v", s.IsIn(), tt.in)
			}
			if !s.IsVendor() {
				t.Error("IsVendor() = false, want true")
			}
			if s.Index != 0x118 || s.Length != 4 {
				t.Errorf("Index/Length = 0x%X/%d, want 0x118/4", s.Index, s.Length)
			}
		})
	}
}

func TestSetupPacket_IsVendor(t *testing.T) {
	standard := SetupPacket{RequestType: 0x80, Request: 0x06}
	if standard.IsVendor() {
		t.Error("standard GET_DESCRIPTOR reported as vendor request")
	}
	class := SetupPacket{RequestType: 0x21}
	if class.IsVendor() {
		t.Error("class request reported as vendor request")
	}
}

func TestParseSetupPacket(t *testing.T) {
	data := []byte{
		0xC0,       // RequestType (Device-to-Host, Vendor, Device)
		0xA1,       // Request (read register)
		0x00, 0x00, // Value
		0x10, 0x00, // Index (HW_CFG)
		0x04, 0x00, // Length (4)
	}

	var setup SetupPacket
	if !ParseSetupPacket(data, &setup) {
		t.Fatal("ParseSetupPacket returned false")
	}

	if setup.RequestType != 0xC0 {
		t.Errorf("RequestType = 0x%02X, want 0xC0", setup.RequestType)
	}
	if setup.Request != 0xA1 {
		t.Errorf("Request = 0x%02X, want 0xA1", setup.Request)
	}
	if setup.Index != 0x0010 {
		t.Errorf("Index = 0x%04X, want 0x0010", setup.Index)
	}
	if setup.Length != 0x0004 {
		t.Errorf("Length = 0x%04X, want 0x0004", setup.Length)
	}
}

func TestParseSetupPacket_TooShort(t *testing.T) {
	data := make([]byte, SetupPacketSize-1)
	var setup SetupPacket
	if ParseSetupPacket(data, &setup) {
		t.Error("ParseSetupPacket should return false for short data")
	}
}

func TestSetupPacket_MarshalTo(t *testing.T) {
	setup := VendorSetup(false, 0xA0, 0, 0x0400, 4)

	buf := make([]byte, SetupPacketSize)
	n := setup.MarshalTo(buf)

	if n != SetupPacketSize {
		t.Errorf("MarshalTo returned %d, want %d", n, SetupPacketSize)
	}

	expected := []byte{0x40, 0xA0, 0x00, 0x00, 0x00, 0x04, 0x04, 0x00}
	for i, b := range expected {
		if buf[i] != b {
			t.Errorf("buf[%d] = 0x%02X, want 0x%02X", i, buf[i], b)
		}
	}
}

func TestSetupPacket_MarshalTo_TooSmall(t *testing.T) {
	setup := SetupPacket{}
	buf := make([]byte, SetupPacketSize-1)

	n := setup.MarshalTo(buf)
	if n != 0 {
		t.Errorf("MarshalTo to small buffer returned %d, want 0", n)
	}
}

func BenchmarkVendorSetup_MarshalTo(b *testing.B) {
	buf := make([]byte, SetupPacketSize)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		setup := VendorSetup(true, 0xA1, 0, uint16(i&0x3FC), 4)
		setup.MarshalTo(buf)
	}
}
