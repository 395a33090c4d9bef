package worker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

func testLookup(name string) (trial.Trial, bool) {
	switch name {
	case "seq":
		return trial.Trial{Name: name, Run: trial.Sequence(10, 50, 178, 90)}, true
	case "negative":
		return trial.Trial{Name: name, Run: trial.Sequence(-3)}, true
	case "fail":
		return trial.Trial{Name: name, Run: func(models.TrialParams, trial.Invocation) (models.TrialResult, error) {
			return 0, errors.New("broken trial")
		}}, true
	}
	return trial.Lookup(name)
}

func TestRequestEncoding(t *testing.T) {
	req := Request{Trial: "dice", Index: 99_999, Seed: -8231, Params: models.DefaultTrialParams()}

	got, err := DecodeRequest(AppendRequest(nil, req))
	require.NoError(t, err)
	assert.Equal(t, req, got)
}

func TestResponseKeepsNegativeResults(t *testing.T) {
	resp := Response{Index: 7, Result: -12, Err: "bad"}

	got, err := DecodeResponse(AppendResponse(nil, resp))
	require.NoError(t, err)
	assert.Equal(t, resp, got)
}

func TestDecodeRejectsTruncatedMessage(t *testing.T) {
	msg := AppendRequest(nil, Request{Trial: "dice", Index: 1})
	_, err := DecodeRequest(msg[:3])
	assert.Error(t, err)
}

func TestFrames(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteFrame(w, []byte("abc")))
	require.NoError(t, WriteFrame(w, nil))
	require.NoError(t, w.Flush())

	r := bufio.NewReader(&buf)
	first, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), first)

	second, err := ReadFrame(r)
	require.NoError(t, err)
	assert.Empty(t, second)

	_, err = ReadFrame(r)
	assert.ErrorIs(t, err, io.EOF)
}

func TestReadFrameTruncatedBody(t *testing.T) {
	r := bufio.NewReader(bytes.NewReader([]byte{5, 'a', 'b'}))
	_, err := ReadFrame(r)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestServeAnswersUntilEOF(t *testing.T) {
	var in bytes.Buffer
	w := bufio.NewWriter(&in)
	for i := 0; i < 4; i++ {
		req := Request{Trial: "seq", Index: i, Params: models.DefaultTrialParams()}
		require.NoError(t, WriteFrame(w, AppendRequest(nil, req)))
	}
	require.NoError(t, w.Flush())

	var out bytes.Buffer
	require.NoError(t, Serve(context.Background(), &in, &out, testLookup))

	r := bufio.NewReader(&out)
	var results []models.TrialResult
	for {
		frame, err := ReadFrame(r)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		resp, err := DecodeResponse(frame)
		require.NoError(t, err)
		assert.Empty(t, resp.Err)
		results = append(results, resp.Result)
	}
	assert.Equal(t, []models.TrialResult{10, 50, 178, 90}, results)
}

func TestServeStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Serve(ctx, bytes.NewReader(nil), io.Discard, testLookup)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientRoundTrip(t *testing.T) {
	toWorker, parentOut := io.Pipe()
	parentIn, fromWorker := io.Pipe()

	done := make(chan error, 1)
	go func() {
		err := Serve(context.Background(), toWorker, fromWorker, testLookup)
		fromWorker.Close()
		done <- err
	}()

	client := NewClient(parentIn, parentOut)

	resp, err := client.Call(Request{Trial: "seq", Index: 2, Params: models.DefaultTrialParams()})
	require.NoError(t, err)
	assert.Equal(t, models.TrialResult(178), resp.Result)

	resp, err = client.Call(Request{Trial: "fail", Index: 3, Params: models.DefaultTrialParams()})
	require.NoError(t, err)
	assert.Contains(t, resp.Err, "broken trial")

	resp, err = client.Call(Request{Trial: "nope", Index: 4, Params: models.DefaultTrialParams()})
	require.NoError(t, err)
	assert.Contains(t, resp.Err, "unknown trial")

	resp, err = client.Call(Request{Trial: "negative", Index: 5, Params: models.DefaultTrialParams()})
	require.NoError(t, err)
	assert.Equal(t, models.TrialResult(-3), resp.Result)

	require.NoError(t, parentOut.Close())
	require.NoError(t, <-done)
}

func TestClientReportsDeadWorker(t *testing.T) {
	toWorker, parentOut := io.Pipe()
	parentIn, fromWorker := io.Pipe()

	go func() {
		// Read the request, then die without answering
		_, _ = ReadFrame(bufio.NewReader(toWorker))
		fromWorker.Close()
	}()

	client := NewClient(parentIn, parentOut)
	_, err := client.Call(Request{Trial: "seq", Index: 0})
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestSelfCommand(t *testing.T) {
	cmd, err := SelfCommand()
	require.NoError(t, err)
	assert.NotEmpty(t, cmd.Path)
	assert.Equal(t, []string{Subcommand}, cmd.Args)
}
