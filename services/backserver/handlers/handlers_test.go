// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/casestore"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/datatypes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/eventlog"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/labelpool"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/mlmodel"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/observability"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/promote"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/registry"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/retrain"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/routes"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/trainconfig"
	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/users"
)

const testAPIKey = "test-api-key"

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeClassifier returns a canned prediction list.
type fakeClassifier struct {
	predictions []datatypes.Prediction
	err         error
}

func (f *fakeClassifier) Predict(context.Context, []byte) ([]datatypes.Prediction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.predictions, nil
}

// fakeBlur returns a settable sharpness score.
type fakeBlur struct {
	score float64
}

func (f *fakeBlur) Score([]byte) (float64, error) { return f.score, nil }

// fakeTrainer writes a weights file so promotion can move it around.
type fakeTrainer struct {
	valAccuracy float64
}

func (f *fakeTrainer) Train(_ context.Context, req mlmodel.TrainRequest) (*mlmodel.TrainResult, error) {
	weights := filepath.Join(req.OutputDir, "[2026-01-01] - "+req.Architecture+".pt")
	if err := os.MkdirAll(req.OutputDir, 0750); err != nil {
		return nil, err
	}
	if err := os.WriteFile(weights, []byte("weights"), 0640); err != nil {
		return nil, err
	}
	return &mlmodel.TrainResult{
		VersionID:   req.VersionID,
		WeightsPath: weights,
		Metrics: map[string]any{
			"val_accuracy": f.valAccuracy,
			"train_size":   len(req.TrainSamples),
			"val_size":     len(req.ValSamples),
		},
		Epochs: []datatypes.EpochRecord{
			{Epoch: 1, TrainLoss: 0.9, TrainAcc: 0.6, ValLoss: 0.8, ValAcc: f.valAccuracy},
		},
	}, nil
}

func (f *fakeTrainer) Extractor(string) mlmodel.EmbeddingExtractor {
	return &fakeExtractor{}
}

type fakeExtractor struct{}

func (*fakeExtractor) Embed(context.Context, []string) (map[string][]float32, error) {
	return map[string][]float32{}, nil
}

// server bundles the router with the handles tests poke directly.
type server struct {
	router     *gin.Engine
	cfg        *config.Settings
	cases      *casestore.Store
	pool       *labelpool.Pool
	events     *eventlog.Log
	reg        *registry.Registry
	classifier *fakeClassifier
	blur       *fakeBlur
}

func newServer(t *testing.T) *server {
	t.Helper()
	root := t.TempDir()

	cfg := &config.Settings{
		APIKey:              testAPIKey,
		JWTSecret:           "test-secret",
		StorageRoot:         filepath.Join(root, "storage"),
		MetadataFilename:    "metadata.jsonl",
		LegacyMetadataFile:  filepath.Join(root, "storage", "metadata.jsonl"),
		CaseIDStart:         10000,
		BlurThreshold:       50,
		ConfThreshold:       0.5,
		ALRoot:              filepath.Join(root, "AL"),
		DefaultArchitecture: config.ArchEfficientNetV2M,
		BaseModels:          map[string]string{},
		RetrainMinNewLabels: 2,
		RetrainDevice:       "auto",
		ForceBaseModelOnly:  true,
		CandidatesTopK:      5,
		SplitTrainRatio:     0.8,
		SplitSeed:           42,
	}
	require.NoError(t, os.MkdirAll(cfg.StorageRoot, 0750))

	issuer, err := users.NewTokenIssuer(cfg.JWTSecret, time.Hour)
	require.NoError(t, err)

	cases := casestore.New(cfg, nil, nil)
	pool := labelpool.New(cfg.LabelsPoolFile())
	events := eventlog.New(cfg.EventLogFile())
	configs := trainconfig.New(cfg.ActiveConfigFile(), nil)
	reg := registry.New(registry.Config{
		Path:          cfg.RegistryFile(),
		ProductionDir: cfg.ProductionDir(),
		CandidatesDir: cfg.CandidatesDir(),
		ArchiveDir:    cfg.ArchiveDir(),
	}, nil)

	classifier := &fakeClassifier{predictions: []datatypes.Prediction{
		{Label: "nv", Confidence: 0.85},
		{Label: "mel", Confidence: 0.10},
	}}
	blur := &fakeBlur{score: 120}
	trainer := &fakeTrainer{valAccuracy: 0.9}

	runner := retrain.NewRunner(cfg, pool, cases, reg, events, configs, trainer, nil)
	promoter := promote.New(reg, events, nil)
	worker := retrain.NewWorker(runner, promoter)
	metrics := observability.NewMetrics(prometheus.NewRegistry())

	userStore := users.NewStore(filepath.Join(root, "users.json"))
	require.NoError(t, userStore.Create("alice", "alice-pw", "gp", "Alice", "Ng"))
	require.NoError(t, userStore.Create("dana", "dana-pw", "doctor", "Dana", "Holt"))

	router := gin.New()
	routes.SetupRoutes(router, &routes.Deps{
		Cfg:        cfg,
		Metrics:    metrics,
		Users:      userStore,
		Tokens:     issuer,
		Cases:      cases,
		Pool:       pool,
		Events:     events,
		Configs:    configs,
		Registry:   reg,
		Promoter:   promoter,
		Worker:     worker,
		Classifier: classifier,
		Blur:       blur,
	})

	return &server{
		router:     router,
		cfg:        cfg,
		cases:      cases,
		pool:       pool,
		events:     events,
		reg:        reg,
		classifier: classifier,
		blur:       blur,
	}
}

// do issues one request with the legacy identity headers.
func (s *server) do(t *testing.T, method, path, userID, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("X-API-Key", testAPIKey)
	if userID != "" {
		req.Header.Set("X-User-Id", userID)
		req.Header.Set("X-User-Role", role)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

// upload posts one image through the quality gate.
func (s *server) upload(t *testing.T, userID, role, caseID string) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", "lesion.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	if caseID != "" {
		require.NoError(t, mw.WriteField("case_id", caseID))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/check-image", &buf)
	req.Header.Set("X-API-Key", testAPIKey)
	req.Header.Set("X-User-Id", userID)
	req.Header.Set("X-User-Role", role)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode(t, w)
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
