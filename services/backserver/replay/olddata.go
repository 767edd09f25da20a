// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package replay

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ChawanakornI/SeniorProjectAl/services/backserver/config"
)

// CollectOldDataset reads the legacy dataset CSV and returns the
// samples whose label maps into the known class set and whose image
// file exists. A missing CSV or dataset directory yields an empty set,
// not an error; replay is optional.
func CollectOldDataset(cfg *config.Settings) ([]Sample, error) {
	if cfg.OldDataCSV == "" || cfg.OldDatasetDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(cfg.OldDataCSV); err != nil {
		return nil, nil
	}
	if info, err := os.Stat(cfg.OldDatasetDir); err != nil || !info.IsDir() {
		return nil, nil
	}

	f, err := os.Open(cfg.OldDataCSV)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	imageCol, labelCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(name) {
		case cfg.OldDataImageColumn:
			imageCol = i
		case cfg.OldDataLabelColumn:
			labelCol = i
		}
	}
	if imageCol < 0 || labelCol < 0 {
		return nil, nil
	}

	var samples []Sample
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		if imageCol >= len(row) || labelCol >= len(row) {
			continue
		}
		imageName := strings.TrimSpace(row[imageCol])
		rawLabel := strings.TrimSpace(row[labelCol])
		if imageName == "" || rawLabel == "" {
			continue
		}

		classIdx, ok := mapOldLabel(rawLabel, cfg.OldDataLabelMap)
		if !ok {
			continue
		}
		imagePath := filepath.Join(cfg.OldDatasetDir, imageName)
		if _, err := os.Stat(imagePath); err != nil {
			continue
		}
		samples = append(samples, Sample{Path: imagePath, Label: classIdx})
	}
	return samples, nil
}

// mapOldLabel resolves a legacy label through the old-data map (tried
// verbatim, upper, then lower) into a class index. When no old-data
// map is configured the label itself is tried against the class set.
func mapOldLabel(raw string, oldMap map[string]string) (int, bool) {
	mapped := raw
	if len(oldMap) > 0 {
		var ok bool
		mapped, ok = lookupAnyCase(oldMap, raw)
		if !ok {
			return 0, false
		}
	}
	idx, ok := config.LabelMap[strings.ToLower(strings.TrimSpace(mapped))]
	return idx, ok
}

func lookupAnyCase(m map[string]string, key string) (string, bool) {
	for _, k := range []string{key, strings.ToUpper(key), strings.ToLower(key)} {
		if v, ok := m[k]; ok && strings.TrimSpace(v) != "" {
			return v, true
		}
	}
	return "", false
}
