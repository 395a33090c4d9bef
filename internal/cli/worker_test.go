package cli

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/trial-harness/internal/worker"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

func TestWorkerCommandAnswersRequests(t *testing.T) {
	var in bytes.Buffer
	bw := bufio.NewWriter(&in)
	for i := 0; i < 4; i++ {
		req := worker.Request{Trial: "scenario", Index: i, Seed: 42, Params: models.DefaultTrialParams()}
		require.NoError(t, worker.WriteFrame(bw, worker.AppendRequest(nil, req)))
	}
	require.NoError(t, bw.Flush())

	var out, errOut bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetIn(&in)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs([]string{"worker"})
	require.NoError(t, cmd.Execute())

	br := bufio.NewReader(&out)
	want := []models.TrialResult{10, 50, 178, 90}
	for i, w := range want {
		frame, err := worker.ReadFrame(br)
		require.NoError(t, err)
		resp, err := worker.DecodeResponse(frame)
		require.NoError(t, err)
		assert.Equal(t, i, resp.Index)
		assert.Equal(t, w, resp.Result)
		assert.Empty(t, resp.Err)
	}
}
