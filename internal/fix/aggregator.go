// Package fix turns raw receiver readings into the appliance's single
// current-state snapshot at a fixed 10 Hz polled cadence.
package fix

import (
	"time"

	"surveypos/internal/gnss"
	"surveypos/internal/ned"
)

const DefaultInterval = 100 * time.Millisecond

// Type is the presented fix quality tier. RTK tiers override the base fix
// type when a carrier solution is active.
type Type int

const (
	NoFix Type = iota
	PossibleFix
	Fix2D
	Fix3D
	DeadReckoning
	RTKFloat
	RTKFixed
	Unknown
)

func (t Type) String() string {
	switch t {
	case NoFix:
		return "NO_FIX"
	case PossibleFix:
		return "POSSIBLE_FIX"
	case Fix2D:
		return "FIX_2D"
	case Fix3D:
		return "FIX_3D"
	case DeadReckoning:
		return "GNSS_DEAD_RECKONING"
	case RTKFloat:
		return "RTK_FLOAT"
	case RTKFixed:
		return "RTK_FIX"
	default:
		return "UNKNOWN"
	}
}

type Carrier int

const (
	CarrierNone Carrier = iota
	CarrierFloat
	CarrierFixed
	CarrierUnknown
)

func (c Carrier) String() string {
	switch c {
	case CarrierNone:
		return "NONE"
	case CarrierFloat:
		return "FLOAT"
	case CarrierFixed:
		return "FIXED"
	default:
		return "UNKNOWN"
	}
}

// Snapshot is the aggregate view of the receiver, overwritten in place each
// sampling tick. Relative-position fields may be stale: when the receiver
// has no valid relative fix on a tick they keep their previous values while
// ECEF, fix-type, flag, and satellite fields are refreshed. RelPosValid
// tells the two cases apart.
type Snapshot struct {
	ECEFX, ECEFY, ECEFZ float64 // meters
	HAccM               float64

	FixType Type
	Carrier Carrier

	FixOK        bool
	DiffSolution bool
	RelPosValid  bool
	IsMoving     bool

	RelPos                       ned.Vector // meters
	RelNHpMM, RelEHpMM, RelDHpMM float64    // high-precision sub-components, mm
	AccNM, AccEM, AccDM          float64    // per-axis accuracy, meters

	Sats gnss.SatCounts

	SampledAt time.Time
}

// Aggregator owns the snapshot. Single caller (the engine pass); not safe
// for concurrent use on its own.
type Aggregator struct {
	rcv      gnss.Receiver
	interval time.Duration

	lastSample time.Time
	snap       Snapshot
}

func NewAggregator(rcv gnss.Receiver, interval time.Duration) *Aggregator {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Aggregator{rcv: rcv, interval: interval}
}

// Tick samples the receiver when the cadence is due. sampled reports whether
// this call took a sample; fresh reports whether a valid relative-position
// reading was obtained on this tick (the survey accumulator only trusts
// fresh ticks).
func (a *Aggregator) Tick(now time.Time) (sampled, fresh bool) {
	if !a.lastSample.IsZero() && now.Sub(a.lastSample) < a.interval {
		return false, false
	}
	a.lastSample = now

	rd, ok := a.rcv.Latest()
	if !ok {
		a.snap.SampledAt = now
		return true, false
	}

	// Always refreshed.
	a.snap.ECEFX = float64(rd.ECEFXCm)*0.01 + float64(rd.ECEFXHp)*0.0001
	a.snap.ECEFY = float64(rd.ECEFYCm)*0.01 + float64(rd.ECEFYHp)*0.0001
	a.snap.ECEFZ = float64(rd.ECEFZCm)*0.01 + float64(rd.ECEFZHp)*0.0001
	a.snap.HAccM = float64(rd.HAcc) * 0.0001
	a.snap.FixType = mapFixType(rd)
	a.snap.Carrier = mapCarrier(rd.CarrierSoln)
	a.snap.FixOK = rd.FixOK
	a.snap.DiffSolution = rd.DiffSoln
	a.snap.RelPosValid = rd.RelPosValid
	a.snap.IsMoving = rd.IsMoving
	a.snap.Sats = rd.Sats
	a.snap.SampledAt = now

	// Relative position only on valid ticks; otherwise the previous values
	// stay in place (callers see RelPosValid=false alongside stale numbers).
	if rd.RelPosValid {
		a.snap.RelPos = ned.Vector{
			N: float64(rd.RelNCm)*0.01 + float64(rd.RelNHp)*0.0001,
			E: float64(rd.RelECm)*0.01 + float64(rd.RelEHp)*0.0001,
			D: float64(rd.RelDCm)*0.01 + float64(rd.RelDHp)*0.0001,
		}
		a.snap.RelNHpMM = float64(rd.RelNHp) * 0.1
		a.snap.RelEHpMM = float64(rd.RelEHp) * 0.1
		a.snap.RelDHpMM = float64(rd.RelDHp) * 0.1
		a.snap.AccNM = float64(rd.AccN) * 0.0001
		a.snap.AccEM = float64(rd.AccE) * 0.0001
		a.snap.AccDM = float64(rd.AccD) * 0.0001
		fresh = true
	}
	return true, fresh
}

func (a *Aggregator) Snapshot() Snapshot {
	return a.snap
}

func mapFixType(rd gnss.Reading) Type {
	// RTK tiers take precedence once a carrier solution is active.
	switch rd.CarrierSoln {
	case gnss.CarrierFloat:
		return RTKFloat
	case gnss.CarrierFixed:
		return RTKFixed
	}
	switch rd.FixType {
	case gnss.FixNone:
		return NoFix
	case gnss.FixDeadReckoning:
		return PossibleFix
	case gnss.Fix2D:
		return Fix2D
	case gnss.Fix3D:
		return Fix3D
	case gnss.FixGNSSDR:
		return DeadReckoning
	default:
		return Unknown
	}
}

func mapCarrier(c gnss.CarrierSolution) Carrier {
	switch c {
	case gnss.CarrierNone:
		return CarrierNone
	case gnss.CarrierFloat:
		return CarrierFloat
	case gnss.CarrierFixed:
		return CarrierFixed
	default:
		return CarrierUnknown
	}
}
