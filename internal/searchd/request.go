package searchd

import (
	"encoding/json"
	"fmt"

	"github.com/GoSim-25-26J-441/trial-harness/internal/trial"
	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// createRequest is the body of POST /v1/runs and of the gRPC CreateRun call.
// Omitted config and params fields keep the reference defaults.
type createRequest struct {
	RunID          string             `json:"run_id,omitempty"`
	Trial          string             `json:"trial"`
	Config         models.RunConfig   `json:"config"`
	Params         models.TrialParams `json:"params"`
	CallbackURL    string             `json:"callback_url,omitempty"`
	CallbackSecret string             `json:"callback_secret,omitempty"`
}

func decodeCreateRequest(data []byte) (*createRequest, error) {
	req := &createRequest{
		Trial:  trial.DiceName,
		Config: models.DefaultRunConfig(models.StrategyThreadPool),
		Params: models.DefaultTrialParams(),
	}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("%w: invalid request body: %w", models.ErrInvalidConfiguration, err)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// validate rejects a request before the run is created, so a bad request
// never allocates workers.
func (r *createRequest) validate() error {
	if _, err := trial.Resolve(r.Trial); err != nil {
		return err
	}
	if err := r.Config.Validate(); err != nil {
		return err
	}
	return r.Params.Validate()
}

func (r *createRequest) input() RunInput {
	return RunInput{
		Trial:          r.Trial,
		Config:         r.Config,
		Params:         r.Params,
		CallbackURL:    r.CallbackURL,
		CallbackSecret: r.CallbackSecret,
	}
}
