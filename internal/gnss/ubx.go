package gnss

import "encoding/binary"

// UBX framing: 0xB5 0x62, class, id, little-endian length, payload, and an
// 8-bit Fletcher checksum over class..payload.

const (
	ubxSync1 = 0xB5
	ubxSync2 = 0x62

	classNav = 0x01

	idNavPVT       = 0x07
	idNavHPPosECEF = 0x13
	idNavSat       = 0x35
	idNavRelPosNED = 0x3C
)

type frame struct {
	class   byte
	id      byte
	payload []byte
}

// scanner extracts complete, checksum-valid frames from a byte stream.
// Bytes between frames (NMEA chatter, partial frames) are discarded.
type scanner struct {
	buf []byte
}

func (s *scanner) push(p []byte) []frame {
	s.buf = append(s.buf, p...)
	var frames []frame
	for {
		// Resynchronize on the sync pattern.
		i := 0
		for i+1 < len(s.buf) && !(s.buf[i] == ubxSync1 && s.buf[i+1] == ubxSync2) {
			i++
		}
		if i > 0 {
			s.buf = s.buf[i:]
		}
		if len(s.buf) < 8 {
			return frames
		}
		plen := int(binary.LittleEndian.Uint16(s.buf[4:6]))
		total := 6 + plen + 2
		if plen > 2048 {
			// Implausible length; skip the sync bytes and rescan.
			s.buf = s.buf[2:]
			continue
		}
		if len(s.buf) < total {
			return frames
		}
		ckA, ckB := checksum(s.buf[2 : 6+plen])
		if ckA != s.buf[6+plen] || ckB != s.buf[7+plen] {
			s.buf = s.buf[2:]
			continue
		}
		payload := make([]byte, plen)
		copy(payload, s.buf[6:6+plen])
		frames = append(frames, frame{class: s.buf[2], id: s.buf[3], payload: payload})
		s.buf = s.buf[total:]
	}
}

func checksum(b []byte) (byte, byte) {
	var a, c byte
	for _, v := range b {
		a += v
		c += a
	}
	return a, c
}

// apply folds one frame into the reading. Reports whether anything changed.
func apply(r *Reading, f frame) bool {
	if f.class != classNav {
		return false
	}
	switch f.id {
	case idNavPVT:
		return applyPVT(r, f.payload)
	case idNavHPPosECEF:
		return applyHPPosECEF(r, f.payload)
	case idNavRelPosNED:
		return applyRelPosNED(r, f.payload)
	case idNavSat:
		return applySat(r, f.payload)
	default:
		return false
	}
}

func applyPVT(r *Reading, p []byte) bool {
	if len(p) < 92 {
		return false
	}
	r.FixType = FixType(p[20])
	flags := p[21]
	r.FixOK = flags&0x01 != 0
	r.DiffSoln = flags&0x02 != 0
	r.CarrierSoln = CarrierSolution(flags >> 6)
	return true
}

func applyHPPosECEF(r *Reading, p []byte) bool {
	if len(p) < 28 {
		return false
	}
	// flags bit0 set means the high-precision fields are invalid.
	if p[3]&0x01 != 0 {
		return false
	}
	r.ECEFXCm = int32(binary.LittleEndian.Uint32(p[8:12]))
	r.ECEFYCm = int32(binary.LittleEndian.Uint32(p[12:16]))
	r.ECEFZCm = int32(binary.LittleEndian.Uint32(p[16:20]))
	r.ECEFXHp = int8(p[20])
	r.ECEFYHp = int8(p[21])
	r.ECEFZHp = int8(p[22])
	r.HAcc = binary.LittleEndian.Uint32(p[24:28])
	return true
}

func applyRelPosNED(r *Reading, p []byte) bool {
	if len(p) < 64 {
		return false
	}
	r.RelNCm = int32(binary.LittleEndian.Uint32(p[8:12]))
	r.RelECm = int32(binary.LittleEndian.Uint32(p[12:16]))
	r.RelDCm = int32(binary.LittleEndian.Uint32(p[16:20]))
	r.RelNHp = int8(p[32])
	r.RelEHp = int8(p[33])
	r.RelDHp = int8(p[34])
	r.AccN = binary.LittleEndian.Uint32(p[36:40])
	r.AccE = binary.LittleEndian.Uint32(p[40:44])
	r.AccD = binary.LittleEndian.Uint32(p[44:48])
	flags := binary.LittleEndian.Uint32(p[60:64])
	r.RelPosValid = flags&0x04 != 0
	r.CarrierSoln = CarrierSolution((flags >> 3) & 0x03)
	r.IsMoving = flags&0x20 != 0
	return true
}

func applySat(r *Reading, p []byte) bool {
	if len(p) < 8 {
		return false
	}
	n := int(p[5])
	if len(p) < 8+12*n {
		return false
	}
	var c SatCounts
	c.Visible = n
	for i := 0; i < n; i++ {
		flags := binary.LittleEndian.Uint32(p[8+12*i+8 : 8+12*i+12])
		if flags&(1<<3) != 0 {
			c.UsedInNav++
		}
		if flags&(1<<6) != 0 {
			c.WithCorrection++
		}
		if flags&(1<<16) != 0 {
			c.SBAS++
		}
		if flags&(1<<17) != 0 {
			c.RTCM++
		}
		if flags&(1<<18) != 0 {
			c.SLAS++
		}
		if flags&(1<<19) != 0 {
			c.SPARTN++
		}
		if flags&(1<<20) != 0 {
			c.Pseudorange++
		}
		if flags&(1<<21) != 0 {
			c.CarrierRange++
		}
		if flags&(1<<22) != 0 {
			c.Doppler++
		}
	}
	r.Sats = c
	return true
}
