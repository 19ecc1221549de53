// Package engine owns the appliance's shared state: the fix snapshot, the
// offset catalog, the target position, and the survey session form one
// region guarded by a single mutex. Dashboard handlers run on net/http
// goroutines, so every read and mutation goes through that lock; the control
// loop enters it once per sampling tick.
package engine

import (
	"log"
	"sync"
	"time"

	"surveypos/internal/catalog"
	"surveypos/internal/fix"
	"surveypos/internal/gnss"
	"surveypos/internal/ned"
	"surveypos/internal/netmon"
	"surveypos/internal/relay"
	"surveypos/internal/survey"
)

type Config struct {
	SampleInterval  time.Duration
	SurveyDuration  time.Duration
	CatalogCapacity int
}

type Engine struct {
	mu      sync.Mutex
	agg     *fix.Aggregator
	cat     *catalog.Catalog
	target  ned.Vector
	session *survey.Session

	rcv  gnss.Receiver
	link *relay.Link
	sup  *netmon.Supervisor

	onSample func(View)
}

func New(rcv gnss.Receiver, link *relay.Link, sup *netmon.Supervisor, cfg Config) *Engine {
	return &Engine{
		agg:     fix.NewAggregator(rcv, cfg.SampleInterval),
		cat:     catalog.New(cfg.CatalogCapacity),
		session: survey.NewSession(cfg.SurveyDuration),
		rcv:     rcv,
		link:    link,
		sup:     sup,
	}
}

// SetOnSample registers a callback invoked after every sampling tick with
// the fresh view. Called outside the engine lock. Set before the control
// loop starts.
func (e *Engine) SetOnSample(fn func(View)) {
	e.onSample = fn
}

// View is everything the dashboard reads, captured atomically under the
// engine lock.
type View struct {
	Fix          fix.Snapshot
	Offsets      []ned.Vector
	CurrentIndex int
	Target       ned.Vector
	LiveOffset   ned.Vector
	Survey       survey.View
}

// Pass runs one control-loop iteration: sample the receiver (feeding the
// survey accumulator and the auto-stop check), pump the correction relay,
// and run the connectivity check. No step blocks unboundedly.
func (e *Engine) Pass(now time.Time) {
	e.mu.Lock()
	sampled, fresh := e.agg.Tick(now)
	if sampled && e.session.State() == survey.StateSurveying {
		if fresh {
			e.session.Accumulate(e.agg.Snapshot().RelPos)
		}
		if e.session.TickAutoStop(now, e.target, e.selectedOrZero()) {
			log.Printf("survey completed samples=%d", e.session.Samples())
		}
	}
	var view View
	notify := sampled && e.onSample != nil
	if notify {
		view = e.viewLocked(now)
	}
	e.mu.Unlock()

	if e.link != nil {
		e.link.Pump(e.rcv)
	}
	if e.sup != nil {
		e.sup.Tick(now)
	}
	if notify {
		e.onSample(view)
	}
}

// Data returns the dashboard view.
func (e *Engine) Data(now time.Time) View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.viewLocked(now)
}

// SetTargetToCurrent overwrites the target with the snapshot's relative
// position, stale or not; the operator decides when it is trustworthy.
func (e *Engine) SetTargetToCurrent() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.target = e.agg.Snapshot().RelPos
}

func (e *Engine) NextOffset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cat.Next()
}

func (e *Engine) PrevOffset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cat.Prev()
}

func (e *Engine) SelectOffset(index int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cat.Select(index)
}

func (e *Engine) AddOffset(v ned.Vector) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cat.Append(v)
}

// ImportOffsets bulk-loads newline-separated N,E,D records and returns the
// number appended.
func (e *Engine) ImportOffsets(text string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cat.ImportBulk(text)
}

func (e *Engine) StartSurvey(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Start(now)
}

func (e *Engine) StopSurvey() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.Stop(e.target, e.selectedOrZero())
}

func (e *Engine) viewLocked(now time.Time) View {
	snap := e.agg.Snapshot()
	return View{
		Fix:          snap,
		Offsets:      e.cat.Entries(),
		CurrentIndex: e.cat.CurrentIndex(),
		Target:       e.target,
		LiveOffset:   survey.LiveOffset(snap.RelPos, e.target, e.selectedOrZero()),
		Survey:       e.session.View(now),
	}
}

func (e *Engine) selectedOrZero() ned.Vector {
	if v, ok := e.cat.Current(); ok {
		return v
	}
	return ned.Vector{}
}
