package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"vapor_recovery/internal/errs"
	"vapor_recovery/internal/models"

	"github.com/samber/lo"
)

// Profile is a site configuration preset.
type Profile struct {
	Name string `json:"name"`
	// Eligible alarm kinds feed the 72-hour shutdown ladder.
	Eligible []models.AlarmKind `json:"eligible"`
	// GMFaultMonitoring enables the high-current fault counter.
	GMFaultMonitoring bool `json:"gm_fault_monitoring"`
}

var profiles = map[string]Profile{
	"CS2": {Name: "CS2"},
	"CS8": {Name: "CS8", Eligible: []models.AlarmKind{
		models.AlarmPressureSensor,
		models.AlarmZeroPressure,
		models.AlarmVariablePress,
		models.AlarmOverPressure,
		models.AlarmUnderPressure,
		models.AlarmHighCurrent,
		models.AlarmLowCurrent,
		models.AlarmDigitalStorage,
		models.AlarmEquipmentFault,
	}},
	"CS9": {Name: "CS9", GMFaultMonitoring: true, Eligible: []models.AlarmKind{
		models.AlarmEquipmentFault,
		models.AlarmPressureSensor,
	}},
	"CS12": {Name: "CS12", Eligible: []models.AlarmKind{models.AlarmPressureSensor}},
}

// ProfileRegistry holds the active profile. The device may switch it at runtime.
type ProfileRegistry struct {
	mu      sync.RWMutex
	current Profile
}

func NewProfileRegistry(name string) (*ProfileRegistry, error) {
	r := &ProfileRegistry{}
	if err := r.Set(name); err != nil {
		return nil, err
	}
	return r, nil
}

// Set switches to the named profile.
func (r *ProfileRegistry) Set(name string) error {
	p, ok := profiles[strings.ToUpper(strings.TrimSpace(name))]
	if !ok {
		return fmt.Errorf("Set %q: %w", name, errs.ErrUnknownProfile)
	}
	r.mu.Lock()
	r.current = p
	r.mu.Unlock()
	return nil
}

func (r *ProfileRegistry) Current() Profile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Eligible reports whether kind feeds the shutdown ladder under the active profile.
func (r *ProfileRegistry) Eligible(kind models.AlarmKind) bool {
	return lo.Contains(r.Current().Eligible, kind)
}

func (r *ProfileRegistry) GMFaultMonitoring() bool {
	return r.Current().GMFaultMonitoring
}

// ProfileNames lists the known profiles in sorted order.
func ProfileNames() []string {
	names := lo.Keys(profiles)
	sort.Strings(names)
	return names
}
