// Package engine implements the child-process wire protocol: a single JSON
// request on stdin, a single JSON response on stdout. The embedding host
// spawns one process per request; no state survives between invocations.
package engine

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/tidwall/gjson"

	"github.com/sa2812/skejj/internal/model"
	"github.com/sa2812/skejj/internal/solver"
	"github.com/sa2812/skejj/internal/validate"
)

type okResponse struct {
	OK   bool `json:"ok"`
	Data any  `json:"data"`
}

type errResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type solveRequest struct {
	Template  model.Template  `json:"template"`
	Inventory model.Inventory `json:"inventory"`
}

type validateRequest struct {
	Template model.Template `json:"template"`
}

// Run reads one request from r, dispatches it, and writes one response to w.
// A non-nil return means the response was {ok:false}; the caller maps that
// to a non-zero exit code.
func Run(r io.Reader, w io.Writer) error {
	input, err := io.ReadAll(r)
	if err != nil {
		return writeErr(w, fmt.Errorf("read stdin: %w", err))
	}
	if !gjson.ValidBytes(input) {
		return writeErr(w, fmt.Errorf("invalid JSON input"))
	}

	switch command := gjson.GetBytes(input, "command").String(); command {
	case "solve":
		return runSolve(input, w)
	case "validate":
		return runValidate(input, w)
	default:
		return writeErr(w, fmt.Errorf("unknown command %q (want solve or validate)", command))
	}
}

func runSolve(input []byte, w io.Writer) error {
	var req solveRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return writeErr(w, fmt.Errorf("parse solve request: %w", err))
	}
	validate.Normalize(&req.Template)

	if err := validate.CheckInventory(&req.Template, req.Inventory); err != nil {
		return writeErr(w, err)
	}

	solved, err := solver.Solve(&req.Template, req.Inventory)
	if err != nil {
		return writeErr(w, err)
	}
	return writeOK(w, solved)
}

func runValidate(input []byte, w io.Writer) error {
	var req validateRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return writeErr(w, fmt.Errorf("parse validate request: %w", err))
	}
	validate.Normalize(&req.Template)

	return writeOK(w, validate.Check(&req.Template))
}

func writeOK(w io.Writer, data any) error {
	return json.NewEncoder(w).Encode(okResponse{OK: true, Data: data})
}

// writeErr emits the error response and propagates the original error so the
// process can exit non-zero with the message on stderr.
func writeErr(w io.Writer, err error) error {
	if encErr := json.NewEncoder(w).Encode(errResponse{OK: false, Error: err.Error()}); encErr != nil {
		return fmt.Errorf("write error response: %w", encErr)
	}
	return err
}
