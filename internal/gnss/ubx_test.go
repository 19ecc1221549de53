package gnss

import (
	"encoding/binary"
	"testing"
)

func buildFrame(t *testing.T, class, id byte, payload []byte) []byte {
	t.Helper()
	b := make([]byte, 0, 8+len(payload))
	b = append(b, ubxSync1, ubxSync2, class, id)
	b = binary.LittleEndian.AppendUint16(b, uint16(len(payload)))
	b = append(b, payload...)
	ckA, ckB := checksum(b[2:])
	return append(b, ckA, ckB)
}

func TestScannerResyncAndChecksum(t *testing.T) {
	payload := make([]byte, 92)
	payload[20] = 3    // fixType 3D
	payload[21] = 0x03 // fixOK + diffSoln
	good := buildFrame(t, classNav, idNavPVT, payload)

	bad := append([]byte(nil), good...)
	bad[len(bad)-1] ^= 0xFF // corrupt checksum

	var sc scanner
	stream := append([]byte("$GNGGA,noise\r\n"), bad...)
	stream = append(stream, good...)

	// Feed in two pieces to exercise partial-frame buffering.
	frames := sc.push(stream[:len(stream)-5])
	frames = append(frames, sc.push(stream[len(stream)-5:])...)

	if len(frames) != 1 {
		t.Fatalf("frames=%d want 1 (bad checksum and noise discarded)", len(frames))
	}

	var r Reading
	if !apply(&r, frames[0]) {
		t.Fatalf("apply() did not update reading")
	}
	if r.FixType != Fix3D || !r.FixOK || !r.DiffSoln {
		t.Fatalf("pvt decode: fixType=%d fixOK=%v diffSoln=%v", r.FixType, r.FixOK, r.DiffSoln)
	}
}

func TestApplyHPPosECEF(t *testing.T) {
	p := make([]byte, 28)
	ecefX, ecefY, ecefZ := int32(412345678), int32(-98765432), int32(471234567)
	binary.LittleEndian.PutUint32(p[8:], uint32(ecefX))  // X cm
	binary.LittleEndian.PutUint32(p[12:], uint32(ecefY)) // Y cm
	binary.LittleEndian.PutUint32(p[16:], uint32(ecefZ)) // Z cm
	hpX, hpY, hpZ := int8(-7), int8(13), int8(0)
	p[20] = byte(hpX)
	p[21] = byte(hpY)
	p[22] = byte(hpZ)
	binary.LittleEndian.PutUint32(p[24:], 142) // pAcc 0.1 mm

	var r Reading
	if !apply(&r, frame{class: classNav, id: idNavHPPosECEF, payload: p}) {
		t.Fatalf("apply() did not update reading")
	}
	if r.ECEFXCm != 412345678 || r.ECEFYCm != -98765432 || r.ECEFZCm != 471234567 {
		t.Fatalf("ecef cm = %d,%d,%d", r.ECEFXCm, r.ECEFYCm, r.ECEFZCm)
	}
	if r.ECEFXHp != -7 || r.ECEFYHp != 13 || r.ECEFZHp != 0 {
		t.Fatalf("ecef hp = %d,%d,%d", r.ECEFXHp, r.ECEFYHp, r.ECEFZHp)
	}
	if r.HAcc != 142 {
		t.Fatalf("hAcc=%d want 142", r.HAcc)
	}
}

func TestApplyHPPosECEFInvalidFlagIgnored(t *testing.T) {
	p := make([]byte, 28)
	p[3] = 0x01 // invalid high-precision fields
	binary.LittleEndian.PutUint32(p[8:], 123)

	var r Reading
	if apply(&r, frame{class: classNav, id: idNavHPPosECEF, payload: p}) {
		t.Fatalf("invalid frame must not update the reading")
	}
	if r.ECEFXCm != 0 {
		t.Fatalf("ECEFXCm=%d want 0", r.ECEFXCm)
	}
}

func TestApplyRelPosNED(t *testing.T) {
	p := make([]byte, 64)
	relN, relE, relD := int32(150), int32(-20), int32(5)
	binary.LittleEndian.PutUint32(p[8:], uint32(relN))  // N cm
	binary.LittleEndian.PutUint32(p[12:], uint32(relE)) // E cm
	binary.LittleEndian.PutUint32(p[16:], uint32(relD)) // D cm
	hpN, hpE, hpD := int8(4), int8(-4), int8(0)
	p[32] = byte(hpN)
	p[33] = byte(hpE)
	p[34] = byte(hpD)
	binary.LittleEndian.PutUint32(p[36:], 120) // accN
	binary.LittleEndian.PutUint32(p[40:], 130)
	binary.LittleEndian.PutUint32(p[44:], 300)
	// flags: gnssFixOK | relPosValid | carrSoln=fixed | isMoving
	binary.LittleEndian.PutUint32(p[60:], 0x01|0x04|(2<<3)|0x20)

	var r Reading
	if !apply(&r, frame{class: classNav, id: idNavRelPosNED, payload: p}) {
		t.Fatalf("apply() did not update reading")
	}
	if !r.RelPosValid || !r.IsMoving {
		t.Fatalf("relPosValid=%v isMoving=%v", r.RelPosValid, r.IsMoving)
	}
	if r.CarrierSoln != CarrierFixed {
		t.Fatalf("carrSoln=%d want fixed", r.CarrierSoln)
	}
	if r.RelNCm != 150 || r.RelECm != -20 || r.RelDCm != 5 {
		t.Fatalf("rel cm = %d,%d,%d", r.RelNCm, r.RelECm, r.RelDCm)
	}
	if r.RelNHp != 4 || r.RelEHp != -4 {
		t.Fatalf("rel hp = %d,%d", r.RelNHp, r.RelEHp)
	}
}

func TestApplySatCounts(t *testing.T) {
	mk := func(flags uint32) []byte {
		sv := make([]byte, 12)
		binary.LittleEndian.PutUint32(sv[8:], flags)
		return sv
	}
	p := make([]byte, 8)
	p[5] = 3
	p = append(p, mk(1<<3|1<<6|1<<17|1<<20)...) // used, rtcm+pr corrections
	p = append(p, mk(1<<3)...)                  // used, no corrections
	p = append(p, mk(0)...)                     // visible only

	var r Reading
	if !apply(&r, frame{class: classNav, id: idNavSat, payload: p}) {
		t.Fatalf("apply() did not update reading")
	}
	c := r.Sats
	if c.Visible != 3 || c.UsedInNav != 2 || c.WithCorrection != 1 {
		t.Fatalf("visible=%d used=%d corrected=%d", c.Visible, c.UsedInNav, c.WithCorrection)
	}
	if c.RTCM != 1 || c.Pseudorange != 1 || c.SBAS != 0 {
		t.Fatalf("rtcm=%d pr=%d sbas=%d", c.RTCM, c.Pseudorange, c.SBAS)
	}
}
