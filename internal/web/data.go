package web

import (
	"surveypos/internal/engine"
	"surveypos/internal/gnss"
	"surveypos/internal/ned"
)

// Dashboard JSON carries fixed precision: offsets and relative position to 4
// decimals, high-precision sub-components to 1, accuracies to 3, catalog
// entries to 2. Callers must not assume more precision than emitted.

type ecefInfo struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type fixInfo struct {
	Type            string  `json:"type"`
	CarrierSolution string  `json:"carrier_solution"`
	FixOK           bool    `json:"fix_ok"`
	DiffSolution    bool    `json:"diff_solution"`
	HAccM           float64 `json:"h_acc_m"`
}

type relPosInfo struct {
	N      float64 `json:"n"`
	E      float64 `json:"e"`
	D      float64 `json:"d"`
	NHpMM  float64 `json:"n_hp_mm"`
	EHpMM  float64 `json:"e_hp_mm"`
	DHpMM  float64 `json:"d_hp_mm"`
	AccNM  float64 `json:"acc_n_m"`
	AccEM  float64 `json:"acc_e_m"`
	AccDM  float64 `json:"acc_d_m"`
	Valid  bool    `json:"valid"`
	Moving bool    `json:"is_moving"`
}

type surveyInfo struct {
	State            string      `json:"state"`
	Samples          int         `json:"samples"`
	Runs             int         `json:"runs"`
	ElapsedSec       float64     `json:"elapsed_sec"`
	DurationSec      float64     `json:"duration_sec"`
	Average          *ned.Vector `json:"average"`
	OffsetFromTarget *ned.Vector `json:"offset_from_target"`
}

type dataResponse struct {
	Offset       ned.Vector     `json:"offset"`
	ECEF         ecefInfo       `json:"ecef"`
	Fix          fixInfo        `json:"fix"`
	RelPos       relPosInfo     `json:"rel_pos"`
	Satellites   gnss.SatCounts `json:"satellites"`
	Offsets      []ned.Vector   `json:"offsets"`
	CurrentIndex int            `json:"current_index"`
	Target       ned.Vector     `json:"target"`
	Survey       surveyInfo     `json:"survey"`
}

func buildDataResponse(v engine.View) dataResponse {
	s := v.Fix

	offsets := make([]ned.Vector, len(v.Offsets))
	for i, o := range v.Offsets {
		offsets[i] = o.Round(2)
	}

	resp := dataResponse{
		Offset: v.LiveOffset.Round(4),
		ECEF: ecefInfo{
			X: ned.Round(s.ECEFX, 4),
			Y: ned.Round(s.ECEFY, 4),
			Z: ned.Round(s.ECEFZ, 4),
		},
		Fix: fixInfo{
			Type:            s.FixType.String(),
			CarrierSolution: s.Carrier.String(),
			FixOK:           s.FixOK,
			DiffSolution:    s.DiffSolution,
			HAccM:           ned.Round(s.HAccM, 3),
		},
		RelPos: relPosInfo{
			N:      ned.Round(s.RelPos.N, 4),
			E:      ned.Round(s.RelPos.E, 4),
			D:      ned.Round(s.RelPos.D, 4),
			NHpMM:  ned.Round(s.RelNHpMM, 1),
			EHpMM:  ned.Round(s.RelEHpMM, 1),
			DHpMM:  ned.Round(s.RelDHpMM, 1),
			AccNM:  ned.Round(s.AccNM, 3),
			AccEM:  ned.Round(s.AccEM, 3),
			AccDM:  ned.Round(s.AccDM, 3),
			Valid:  s.RelPosValid,
			Moving: s.IsMoving,
		},
		Satellites:   s.Sats,
		Offsets:      offsets,
		CurrentIndex: v.CurrentIndex,
		Target:       v.Target.Round(4),
		Survey: surveyInfo{
			State:       v.Survey.State,
			Samples:     v.Survey.Samples,
			Runs:        v.Survey.Runs,
			ElapsedSec:  ned.Round(v.Survey.ElapsedSec, 1),
			DurationSec: v.Survey.DurationSec,
		},
	}
	if v.Survey.Average != nil {
		a := v.Survey.Average.Round(4)
		resp.Survey.Average = &a
	}
	if v.Survey.OffsetFromTarget != nil {
		o := v.Survey.OffsetFromTarget.Round(4)
		resp.Survey.OffsetFromTarget = &o
	}
	return resp
}
