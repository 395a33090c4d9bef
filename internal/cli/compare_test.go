package cli

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

var compareScenario = []string{"compare",
	"--trial", "scenario",
	"--budget", "4",
	"--threshold", "177",
	"--max-workers", "1",
	"--seed", "42",
}

func TestCompareEveryStrategy(t *testing.T) {
	stdout, _, err := execute(t, compareScenario...)
	require.NoError(t, err)

	assert.Equal(t, 3, strings.Count(stdout, "Maximum number of 1's rolled: 178"))
	threaded := strings.Index(stdout, "Strategy: threaded")
	process := strings.Index(stdout, "Strategy: multiprocessing")
	sequential := strings.Index(stdout, "Strategy: sequential")
	require.True(t, threaded >= 0 && process >= 0 && sequential >= 0, stdout)
	assert.Less(t, threaded, process)
	assert.Less(t, process, sequential)
}

func TestCompareWithTiming(t *testing.T) {
	args := append(append([]string{}, compareScenario...), "--strategies", "sequential,threaded", "--warmup", "0", "--repeats", "1", "--format", "json")
	stdout, _, err := execute(t, args...)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   CompareResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data.Results, 2)
	for i, kind := range []models.StrategyKind{models.StrategySequential, models.StrategyThreadPool} {
		res := resp.Data.Results[i]
		require.NotNil(t, res.Outcome)
		assert.Equal(t, kind, res.Outcome.Strategy)
		assert.Equal(t, models.TrialResult(178), res.Outcome.MaxResult)
		require.NotNil(t, res.Timing)
		assert.Equal(t, string(kind), res.Timing.Name)
		assert.Len(t, res.Timing.Repeats, 1)
	}
}

func TestCompareInvalidStrategies(t *testing.T) {
	_, _, err := execute(t, "compare", "--strategies", "sequential,gpu")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestCompareStopsAtFirstFailure(t *testing.T) {
	_, _, err := execute(t, "compare", "--trial", "failing", "--budget", "3", "--max-workers", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, models.ErrTrialFailure)
	assert.Contains(t, err.Error(), "threaded")
}
