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
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Blur scoring
// =============================================================================

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func flatImage(size int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}
	return img
}

func checkerImage(size int) image.Image {
	img := image.NewGray(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := uint8(0)
			if (x+y)%2 == 0 {
				v = 255
			}
			img.SetGray(x, y, color.Gray{Y: v})
		}
	}
	return img
}

func TestLaplacianScorer_SharpBeatsFlat(t *testing.T) {
	scorer := NewLaplacianScorer()

	flat, err := scorer.Score(encodePNG(t, flatImage(32)))
	require.NoError(t, err)
	sharp, err := scorer.Score(encodePNG(t, checkerImage(32)))
	require.NoError(t, err)

	assert.InDelta(t, 0.0, flat, 1e-9)
	assert.Greater(t, sharp, 1000.0)
}

func TestLaplacianScorer_TinyImageScoresZero(t *testing.T) {
	scorer := NewLaplacianScorer()
	score, err := scorer.Score(encodePNG(t, flatImage(2)))
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestLaplacianScorer_BadBytes(t *testing.T) {
	_, err := NewLaplacianScorer().Score([]byte("not an image"))
	assert.Error(t, err)
}

// =============================================================================
// Local backend
// =============================================================================

// fakeTrainerScript writes a shell script that echoes a fixed JSON
// document for each subcommand.
func fakeTrainerScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fixture")
	}
	path := filepath.Join(t.TempDir(), "trainer.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0750))
	return path
}

func TestNewLocalBackend_EmptyCommand(t *testing.T) {
	_, err := NewLocalBackend("   ", nil)
	assert.ErrorIs(t, err, ErrNoTrainerCommand)
}

func TestLocalBackend_Train(t *testing.T) {
	script := fakeTrainerScript(t, `
case "$1" in
train) echo '{"version_id":"","weights_path":"/tmp/out.pt","metrics":{"val_accuracy":0.91}}' ;;
*) echo '{}' ;;
esac
`)
	backend, err := NewLocalBackend(script, nil)
	require.NoError(t, err)

	result, err := backend.Train(context.Background(), TrainRequest{VersionID: "v20260101_001"})
	require.NoError(t, err)
	assert.Equal(t, "/tmp/out.pt", result.WeightsPath)
	assert.Equal(t, "v20260101_001", result.VersionID)
	assert.Equal(t, 0.91, result.Metrics["val_accuracy"])
}

func TestLocalBackend_TrainWithoutWeightsFails(t *testing.T) {
	script := fakeTrainerScript(t, `echo '{"metrics":{}}'`)
	backend, err := NewLocalBackend(script, nil)
	require.NoError(t, err)

	_, err = backend.Train(context.Background(), TrainRequest{VersionID: "v1"})
	assert.ErrorContains(t, err, "no weights path")
}

func TestLocalBackend_CommandFailureCarriesStderr(t *testing.T) {
	script := fakeTrainerScript(t, `echo "CUDA out of memory" >&2; exit 3`)
	backend, err := NewLocalBackend(script, nil)
	require.NoError(t, err)

	_, err = backend.Train(context.Background(), TrainRequest{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "CUDA out of memory")
}

func TestLocalBackend_Embed(t *testing.T) {
	script := fakeTrainerScript(t, `
case "$1" in
embed) echo '{"embeddings":{"a.jpg":[0.6,0.8]}}' ;;
esac
`)
	backend, err := NewLocalBackend(script, nil)
	require.NoError(t, err)

	extractor := backend.Extractor("/models/production/model.pt")
	embeddings, err := extractor.Embed(context.Background(), []string{"a.jpg", "b.jpg"})
	require.NoError(t, err)
	require.Contains(t, embeddings, "a.jpg")
	assert.NotContains(t, embeddings, "b.jpg")
	assert.Equal(t, []float32{0.6, 0.8}, embeddings["a.jpg"])
}

func TestLocalBackend_EmbedEmptyPaths(t *testing.T) {
	backend, err := NewLocalBackend("/bin/false", nil)
	require.NoError(t, err)
	embeddings, err := backend.Extractor("ckpt").Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, embeddings)
}

func TestLocalClassifier_Predict(t *testing.T) {
	script := fakeTrainerScript(t, `
case "$1" in
predict) echo '{"predictions":[{"label":"mel","confidence":0.7},{"label":"nv","confidence":0.2}]}' ;;
esac
`)
	backend, err := NewLocalBackend(script, nil)
	require.NoError(t, err)

	classifier := NewLocalClassifier(backend, func() string { return "ckpt.pt" })
	predictions, err := classifier.Predict(context.Background(), []byte{0xFF, 0xD8})
	require.NoError(t, err)
	require.Len(t, predictions, 2)
	assert.Equal(t, "mel", predictions[0].Label)
}

func TestLocalBackend_CancelledContext(t *testing.T) {
	script := fakeTrainerScript(t, `sleep 30; echo '{}'`)
	backend, err := NewLocalBackend(script, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = backend.Train(ctx, TrainRequest{})
	assert.ErrorIs(t, err, context.Canceled)
}
