package worker

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/GoSim-25-26J-441/trial-harness/pkg/models"
)

// maxFrameSize bounds a single message on the pipe
const maxFrameSize = 1 << 20

// Request field numbers
const (
	reqTrial              protowire.Number = 1
	reqIndex              protowire.Number = 2
	reqSeed               protowire.Number = 3
	reqCategoryCount      protowire.Number = 4
	reqDrawsPerTrial      protowire.Number = 5
	reqCategoryOfInterest protowire.Number = 6
)

// Response field numbers
const (
	respIndex  protowire.Number = 1
	respResult protowire.Number = 2
	respError  protowire.Number = 3
)

// Request asks a worker process to run one trial.
type Request struct {
	Trial  string
	Index  int
	Seed   int64
	Params models.TrialParams
}

// Response carries one trial result, or the reason the trial failed.
type Response struct {
	Index  int
	Result models.TrialResult
	Err    string
}

// AppendRequest encodes req onto b
func AppendRequest(b []byte, req Request) []byte {
	b = protowire.AppendTag(b, reqTrial, protowire.BytesType)
	b = protowire.AppendString(b, req.Trial)
	b = protowire.AppendTag(b, reqIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(req.Index))
	b = protowire.AppendTag(b, reqSeed, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64(req.Seed))
	b = protowire.AppendTag(b, reqCategoryCount, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(req.Params.CategoryCount))
	b = protowire.AppendTag(b, reqDrawsPerTrial, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(req.Params.DrawsPerTrial))
	b = protowire.AppendTag(b, reqCategoryOfInterest, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(req.Params.CategoryOfInterest))
	return b
}

// DecodeRequest parses a request message
func DecodeRequest(b []byte) (Request, error) {
	var req Request
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == reqTrial && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			req.Trial = v
			return n, nil
		case num == reqSeed && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			req.Seed = int64(v)
			return n, nil
		case typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			switch num {
			case reqIndex:
				req.Index = int(v)
			case reqCategoryCount:
				req.Params.CategoryCount = int(v)
			case reqDrawsPerTrial:
				req.Params.DrawsPerTrial = int(v)
			case reqCategoryOfInterest:
				req.Params.CategoryOfInterest = int(v)
			}
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// AppendResponse encodes resp onto b. Results are zigzag encoded so a
// misbehaving trial's negative value survives the trip and is rejected by
// the harness, not by the codec.
func AppendResponse(b []byte, resp Response) []byte {
	b = protowire.AppendTag(b, respIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(resp.Index))
	b = protowire.AppendTag(b, respResult, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(int64(resp.Result)))
	if resp.Err != "" {
		b = protowire.AppendTag(b, respError, protowire.BytesType)
		b = protowire.AppendString(b, resp.Err)
	}
	return b
}

// DecodeResponse parses a response message
func DecodeResponse(b []byte) (Response, error) {
	var resp Response
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == respIndex && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			resp.Index = int(v)
			return n, nil
		case num == respResult && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			resp.Result = models.TrialResult(protowire.DecodeZigZag(v))
			return n, nil
		case num == respError && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			resp.Err = v
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	if err != nil {
		return Response{}, fmt.Errorf("decode response: %w", err)
	}
	return resp, nil
}

// consumeFields walks every field in b. fn returns the number of bytes the
// field value used, or a negative protowire error code.
func consumeFields(b []byte, fn func(protowire.Number, protowire.Type, []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
	}
	return nil
}

// WriteFrame writes a length-prefixed message. The caller flushes.
func WriteFrame(w *bufio.Writer, msg []byte) error {
	if len(msg) > maxFrameSize {
		return fmt.Errorf("frame of %d bytes exceeds limit", len(msg))
	}
	if _, err := w.Write(protowire.AppendVarint(nil, uint64(len(msg)))); err != nil {
		return err
	}
	_, err := w.Write(msg)
	return err
}

// ReadFrame reads one length-prefixed message. It returns io.EOF only when
// the stream ends cleanly between frames.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("read frame length: %w", err)
	}
	if size > maxFrameSize {
		return nil, fmt.Errorf("frame of %d bytes exceeds limit", size)
	}
	msg := make([]byte, size)
	if _, err := io.ReadFull(r, msg); err != nil {
		return nil, fmt.Errorf("read frame body: %w", io.ErrUnexpectedEOF)
	}
	return msg, nil
}
