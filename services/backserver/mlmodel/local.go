// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mlmodel

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/ChawanakornI/SeniorProjectAl/pkg/logging"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
)

// ErrNoTrainerCommand means the backend was constructed without a CLI
// to shell out to.
var ErrNoTrainerCommand = errors.New("no trainer command configured")

const maxToolOutput = 8 << 20

// LocalBackend drives the configured trainer CLI over a JSON pipe: one
// invocation per operation, request on stdin, result on stdout. The
// subcommand (train / predict / embed) is appended to the configured
// command line.
type LocalBackend struct {
	command []string
	logger  *logging.Logger
}

// NewLocalBackend splits the configured command line and wraps it.
func NewLocalBackend(command string, logger *logging.Logger) (*LocalBackend, error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return nil, ErrNoTrainerCommand
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LocalBackend{command: fields, logger: logger}, nil
}

// run invokes one subcommand, feeding input as JSON and decoding the
// stdout JSON into output.
func (b *LocalBackend) run(ctx context.Context, mode string, input, output any) error {
	payload, err := json.Marshal(input)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", mode, err)
	}

	args := append(append([]string{}, b.command[1:]...), mode)
	cmd := exec.CommandContext(ctx, b.command[0], args...)
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	b.logger.Debug("trainer command finished",
		slog.String("mode", mode),
		slog.Duration("duration", time.Since(start)),
	)

	if ctx.Err() != nil {
		return fmt.Errorf("%s cancelled: %w", mode, ctx.Err())
	}
	if runErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > 2048 {
			detail = detail[:2048]
		}
		return fmt.Errorf("%s failed: %w: %s", mode, runErr, detail)
	}
	if stdout.Len() > maxToolOutput {
		return fmt.Errorf("%s output exceeds %d bytes", mode, maxToolOutput)
	}
	if err := json.Unmarshal(stdout.Bytes(), output); err != nil {
		return fmt.Errorf("decoding %s result: %w", mode, err)
	}
	return nil
}

// Train runs one training job to completion.
func (b *LocalBackend) Train(ctx context.Context, req TrainRequest) (*TrainResult, error) {
	var result TrainResult
	if err := b.run(ctx, "train", req, &result); err != nil {
		return nil, err
	}
	if result.WeightsPath == "" {
		return nil, errors.New("trainer reported no weights path")
	}
	if result.VersionID == "" {
		result.VersionID = req.VersionID
	}
	return &result, nil
}

// Extractor binds the backend to a checkpoint for embedding calls.
func (b *LocalBackend) Extractor(checkpoint string) EmbeddingExtractor {
	return &localExtractor{backend: b, checkpoint: checkpoint}
}

type localExtractor struct {
	backend    *LocalBackend
	checkpoint string
}

type embedRequest struct {
	Checkpoint string   `json:"checkpoint"`
	Paths      []string `json:"paths"`
}

type embedResponse struct {
	Embeddings map[string][]float32 `json:"embeddings"`
}

func (e *localExtractor) Embed(ctx context.Context, paths []string) (map[string][]float32, error) {
	if len(paths) == 0 {
		return map[string][]float32{}, nil
	}
	var resp embedResponse
	err := e.backend.run(ctx, "embed", embedRequest{Checkpoint: e.checkpoint, Paths: paths}, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Embeddings == nil {
		resp.Embeddings = map[string][]float32{}
	}
	return resp.Embeddings, nil
}

// LocalClassifier serves predictions through the same CLI, bound to
// whatever checkpoint the caller resolves (normally the active
// inference model).
type LocalClassifier struct {
	backend    *LocalBackend
	checkpoint func() string
}

// NewLocalClassifier wires a classifier to the backend. checkpoint is
// resolved per call so promotion takes effect without restarts.
func NewLocalClassifier(backend *LocalBackend, checkpoint func() string) *LocalClassifier {
	return &LocalClassifier{backend: backend, checkpoint: checkpoint}
}

type predictRequest struct {
	Checkpoint string `json:"checkpoint"`
	ImageB64   string `json:"image_b64"`
}

type predictResponse struct {
	Predictions []datatypes.Prediction `json:"predictions"`
}

func (c *LocalClassifier) Predict(ctx context.Context, image []byte) ([]datatypes.Prediction, error) {
	req := predictRequest{
		Checkpoint: c.checkpoint(),
		ImageB64:   base64.StdEncoding.EncodeToString(image),
	}
	var resp predictResponse
	if err := c.backend.run(ctx, "predict", req, &resp); err != nil {
		return nil, err
	}
	return resp.Predictions, nil
}
