// Package gnss is the receiver driver boundary. The coordination engine
// treats the receiver as a black box: it pulls the latest Reading and pushes
// raw correction bytes, nothing more.
//
// Readings carry the receiver's integer wire fields unchanged (coarse 1 cm
// components plus 0.1 mm high-precision components); unit reconstruction is
// the fix aggregator's job.
package gnss

import (
	"fmt"
	"os"
)

// FixType is the raw fix-type byte as reported by the receiver.
type FixType uint8

const (
	FixNone          FixType = 0
	FixDeadReckoning FixType = 1 // dead reckoning only
	Fix2D            FixType = 2
	Fix3D            FixType = 3
	FixGNSSDR        FixType = 4 // GNSS + dead reckoning
	FixTimeOnly      FixType = 5
)

// CarrierSolution is the raw carrier-phase solution status.
type CarrierSolution uint8

const (
	CarrierNone  CarrierSolution = 0
	CarrierFloat CarrierSolution = 1
	CarrierFixed CarrierSolution = 2
)

// SatCounts summarizes the satellite block of the latest reading.
type SatCounts struct {
	Visible        int `json:"visible"`
	UsedInNav      int `json:"used_in_nav"`
	WithCorrection int `json:"with_correction"`
	SBAS           int `json:"sbas"`
	RTCM           int `json:"rtcm"`
	SLAS           int `json:"slas"`
	SPARTN         int `json:"spartn"`
	Pseudorange    int `json:"pseudorange"`
	CarrierRange   int `json:"carrier_range"`
	Doppler        int `json:"doppler"`
}

// Reading is the latest state assembled from the receiver's periodic
// messages. Position components are split coarse+high-precision exactly as
// on the wire: coarse in 1 cm units, Hp in 0.1 mm units, additive.
type Reading struct {
	// ECEF position.
	ECEFXCm, ECEFYCm, ECEFZCm int32
	ECEFXHp, ECEFYHp, ECEFZHp int8
	HAcc                      uint32 // 0.1 mm

	FixType  FixType
	FixOK    bool
	DiffSoln bool

	// Relative position to the base station, NED.
	RelPosValid            bool
	IsMoving               bool
	RelNCm, RelECm, RelDCm int32
	RelNHp, RelEHp, RelDHp int8
	AccN, AccE, AccD       uint32 // 0.1 mm
	CarrierSoln            CarrierSolution

	Sats SatCounts
}

// Receiver is what the core depends on. Latest reports false until the first
// complete reading has been assembled. Write feeds correction bytes to the
// receiver verbatim.
type Receiver interface {
	Latest() (Reading, bool)
	Write(p []byte) (int, error)
	Close() error
}

// DetectDevice scans the usual USB serial device paths and returns the first
// one present, or "".
func DetectDevice() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
