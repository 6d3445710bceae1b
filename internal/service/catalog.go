package service

import (
	"fmt"
	"sort"
	"time"

	"vapor_recovery/internal/config"
	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/models"

	"github.com/samber/lo"
)

// Cycle names known to the catalog out of the box.
const (
	CycleStandard        = "standard"
	CycleManual          = "manual"
	CycleFunctionality   = "functionality_test"
	CycleLeakTest        = "leak_test"
	CycleEfficiencyTest  = "efficiency_test"
	CycleEfficiencyPurge = "efficiency_purge"
	CycleTestRun         = "test_run"
	CycleTestPurge       = "test_purge"
	CycleCanisterClean   = "canister_clean"
)

type cycleTimings struct {
	run, rest, purge, burp, finalRest time.Duration
	funcRun, funcPurge                time.Duration
	leak, clean                       time.Duration
	testRun, testRest, testPurge      time.Duration
	effRun                            time.Duration
}

var productionTimings = cycleTimings{
	run: 120 * time.Second, rest: 2 * time.Second, purge: 50 * time.Second, burp: 5 * time.Second, finalRest: 15 * time.Second,
	funcRun: 60 * time.Second, funcPurge: 60 * time.Second,
	leak: 30 * time.Minute, clean: 2 * time.Hour,
	testRun: 15 * time.Second, testRest: 5 * time.Second, testPurge: 30 * time.Second,
	effRun: 120 * time.Second,
}

var debugTimings = cycleTimings{
	run: 30 * time.Second, rest: 2 * time.Second, purge: 50 * time.Second, burp: 2 * time.Second, finalRest: 15 * time.Second,
	funcRun: 6 * time.Second, funcPurge: 6 * time.Second,
	leak: 3 * time.Minute, clean: time.Minute,
	testRun: 15 * time.Second, testRest: 5 * time.Second, testPurge: 30 * time.Second,
	effRun: 30 * time.Second,
}

func defaultSequences(t cycleTimings) map[string]models.CycleSequence {
	step := func(m models.Mode, d time.Duration) models.CycleStep { return models.CycleStep{Mode: m, Duration: d} }

	purgeBlock := models.Repeat(6, step(models.ModePurge, t.purge), step(models.ModeBurp, t.burp))

	standard := []models.CycleStep{step(models.ModeRun, t.run), step(models.ModeRest, t.rest)}
	standard = append(standard, purgeBlock...)
	standard = append(standard, step(models.ModeRest, t.finalRest))

	effPurge := append(append([]models.CycleStep{}, purgeBlock...), step(models.ModeRest, t.rest))

	return map[string]models.CycleSequence{
		CycleStandard:        {Name: CycleStandard, Steps: standard},
		CycleManual:          {Name: CycleManual, Manual: true, Steps: models.Repeat(3, standard...)},
		CycleFunctionality:   {Name: CycleFunctionality, Steps: models.Repeat(10, step(models.ModeRun, t.funcRun), step(models.ModePurge, t.funcPurge))},
		CycleLeakTest:        {Name: CycleLeakTest, Steps: []models.CycleStep{step(models.ModeLeak, t.leak)}},
		CycleEfficiencyTest:  {Name: CycleEfficiencyTest, Steps: []models.CycleStep{step(models.ModeRun, t.effRun)}},
		CycleEfficiencyPurge: {Name: CycleEfficiencyPurge, Steps: effPurge},
		CycleTestRun:         {Name: CycleTestRun, Steps: []models.CycleStep{step(models.ModeRun, t.testRun), step(models.ModeRest, t.testRest)}},
		CycleTestPurge:       {Name: CycleTestPurge, Steps: []models.CycleStep{step(models.ModePurge, t.testPurge)}},
		CycleCanisterClean:   {Name: CycleCanisterClean, Steps: []models.CycleStep{step(models.ModeRun, t.clean)}},
	}
}

// Catalog holds the named cycle sequences available to operators and remote commands.
type Catalog struct {
	seqs map[string]models.CycleSequence
}

// NewCatalog starts from the built-in sequences and overlays configured ones.
func NewCatalog(cycles map[string]config.CycleConfig, debug config.DebugConfig) (*Catalog, error) {
	timings, overrides := productionTimings, cycles
	if debug.Enabled {
		timings, overrides = debugTimings, debug.Cycles
	}

	seqs := defaultSequences(timings)
	for name, cc := range overrides {
		steps, err := buildSteps(cc.Steps)
		if err != nil {
			return nil, fmt.Errorf("NewCatalog: cycle %q: %w", name, err)
		}
		seqs[name] = models.CycleSequence{Name: name, Manual: cc.Manual, Steps: steps}
	}
	return &Catalog{seqs: seqs}, nil
}

func buildSteps(in []config.StepConfig) ([]models.CycleStep, error) {
	var out []models.CycleStep
	for i, sc := range in {
		if len(sc.Steps) > 0 {
			inner, err := buildSteps(sc.Steps)
			if err != nil {
				return nil, err
			}
			out = append(out, models.Repeat(max(sc.Repeat, 1), inner...)...)
			continue
		}
		m, err := models.ParseMode(sc.Mode)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if sc.Duration <= 0 {
			return nil, fmt.Errorf("step %d: duration must be positive", i)
		}
		out = append(out, models.Repeat(max(sc.Repeat, 1), models.CycleStep{Mode: m, Duration: sc.Duration})...)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no steps")
	}
	return out, nil
}

// Get returns the sequence registered under name.
func (c *Catalog) Get(name string) (models.CycleSequence, error) {
	seq, ok := c.seqs[name]
	if !ok {
		return models.CycleSequence{}, fmt.Errorf("Get %q: %w", name, errs.ErrUnknownCycle)
	}
	return seq, nil
}

// Names returns the sorted cycle names.
func (c *Catalog) Names() []string {
	names := lo.Keys(c.seqs)
	sort.Strings(names)
	return names
}

// List returns every sequence ordered by name.
func (c *Catalog) List() []models.CycleSequence {
	return lo.Map(c.Names(), func(n string, _ int) models.CycleSequence { return c.seqs[n] })
}
