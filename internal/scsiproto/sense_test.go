package scsiproto

import "testing"

func TestCDBLength(t *testing.T) {
	cases := []struct {
		op   Opcode
		want int
	}{
		{OpTestUnitReady, 6},
		{OpInquiry, 6},
		{OpRead10, 10},
		{OpModeSense10, 10},
		{OpRead16, 16},
		{OpReadCapacity16, 16},
		{OpReassignBlocks, 6},
	}
	for _, c := range cases {
		if got := CDBLength(c.op); got != c.want {
			t.Errorf("CDBLength(%#x) = %d, want %d", byte(c.op), got, c.want)
		}
	}
}

func TestBuildSenseDataFixedFormat(t *testing.T) {
	triple := SenseTriple{Key: IllegalRequest, Asc: 0x24, Ascq: 0x00}
	buf := BuildSenseData(triple, 0, false, false)
	if len(buf) != 18 {
		t.Fatalf("expected 18-byte fixed sense data, got %d", len(buf))
	}
	if buf[0] != 0x70 {
		t.Errorf("expected response code 0x70, got %#x", buf[0])
	}
	if SenseKey(buf[2]) != IllegalRequest {
		t.Errorf("expected sense key %v, got %#x", IllegalRequest, buf[2])
	}
	if buf[12] != 0x24 {
		t.Errorf("expected ASC 0x24, got %#x", buf[12])
	}
}

func TestExceptionSatisfiesError(t *testing.T) {
	var err error = NewException(NotReady, AscMediumNotPresent)
	if err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
}

func TestTripleFromException(t *testing.T) {
	ex := NewException(DataProtect, AscWriteProtected)
	triple := TripleFromException(ex)
	if triple.Key != DataProtect || triple.Asc != 0x27 || triple.Ascq != 0x00 {
		t.Errorf("unexpected triple: %+v", triple)
	}
}
