package trial

import (
	"fmt"
	"sort"
	"sync"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/utils"
)

// DiceName is the registry name of the reference workload.
const DiceName = "dice"

// Func is a single trial. It must be safe to call concurrently and must not
// touch shared mutable state.
type Func func(params models.TrialParams, inv Invocation) (models.TrialResult, error)

// Invocation identifies one call of a trial within a run.
type Invocation struct {
	Index int
	Seed  int64
}

// Rand returns a random source owned by this invocation
func (inv Invocation) Rand() *utils.RandSource {
	return utils.NewRandSource(inv.Seed)
}

// Trial pairs a function with the name out-of-process workers resolve it by.
type Trial struct {
	Name string
	Run  Func
}

// Invoke runs t once. Errors and panics come back wrapped in models.ErrTrialFailure.
func Invoke(t Trial, params models.TrialParams, inv Invocation) (result models.TrialResult, err error) {
	if t.Run == nil {
		return 0, fmt.Errorf("%w: trial %q has no function", models.ErrTrialFailure, t.Name)
	}
	defer func() {
		if r := recover(); r != nil {
			result = 0
			err = fmt.Errorf("%w: trial %q panicked at index %d: %v", models.ErrTrialFailure, t.Name, inv.Index, r)
		}
	}()

	result, err = t.Run(params, inv)
	if err != nil {
		return 0, fmt.Errorf("%w: trial %q index %d: %w", models.ErrTrialFailure, t.Name, inv.Index, err)
	}
	return result, nil
}

// Dice draws params.DrawsPerTrial categories uniformly from
// [1, params.CategoryCount] and counts how many equal params.CategoryOfInterest.
func Dice(params models.TrialParams, inv Invocation) (models.TrialResult, error) {
	rng := inv.Rand()
	count := 0
	for i := 0; i < params.DrawsPerTrial; i++ {
		if rng.Category(params.CategoryCount) == params.CategoryOfInterest {
			count++
		}
	}
	return models.TrialResult(count), nil
}

// Sequence returns a deterministic stand-in that replays values by
// invocation index, wrapping around when the index passes the end.
func Sequence(values ...int) Func {
	replay := append([]int(nil), values...)
	return func(_ models.TrialParams, inv Invocation) (models.TrialResult, error) {
		if len(replay) == 0 {
			return 0, fmt.Errorf("empty sequence")
		}
		return models.TrialResult(replay[inv.Index%len(replay)]), nil
	}
}

var (
	registryMu sync.RWMutex
	registry   = map[string]Func{}
)

func init() {
	Register(DiceName, Dice)
}

// Register makes fn resolvable by name. Registering a name twice replaces the
// previous function.
func Register(name string, fn Func) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[name] = fn
}

// Lookup returns the trial registered under name
func Lookup(name string) (Trial, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	fn, ok := registry[name]
	if !ok {
		return Trial{}, false
	}
	return Trial{Name: name, Run: fn}, true
}

// Resolve is Lookup with an ErrInvalidConfiguration error for unknown names.
func Resolve(name string) (Trial, error) {
	t, ok := Lookup(name)
	if !ok {
		return Trial{}, fmt.Errorf("%w: unknown trial %q", models.ErrInvalidConfiguration, name)
	}
	return t, nil
}

// Names lists registered trial names in sorted order
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
