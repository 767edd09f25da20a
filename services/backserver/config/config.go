// Copyright (C) 2026 SeniorProjectAl
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package config centralizes the backserver runtime configuration.
//
// Settings come from environment variables (the container-first convention
// used across our services) with an optional YAML overlay file for local
// development. Derived paths for the Active Learning workspace are exposed
// as methods so callers never concatenate path fragments themselves.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// CaseIDMaxDigits bounds numeric case IDs; longer digit strings are legacy
// date-based IDs and are ignored by the allocator scan.
const CaseIDMaxDigits = 6

// Model architectures supported by the retraining pipeline.
const (
	ArchEfficientNetV2M  = "efficientnet_v2_m"
	ArchResNet50         = "resnet50"
	ArchMobileNetV3Large = "mobilenet_v3_large"
	ArchDetect           = "detect_classify"
)

// LabelMap maps the fixed HAM10000 lesion classes to training indices.
var LabelMap = map[string]int{
	"akiec": 0, "bcc": 1, "bkl": 2, "df": 3, "mel": 4, "nv": 5, "vasc": 6,
}

// ReverseLabelMap maps training indices back to class names.
var ReverseLabelMap = func() map[int]string {
	m := make(map[int]string, len(LabelMap))
	for k, v := range LabelMap {
		m[v] = k
	}
	return m
}()

// Settings is the resolved backserver configuration.
type Settings struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	TLSCert string `yaml:"tls_cert"`
	TLSKey  string `yaml:"tls_key"`

	APIKey         string   `yaml:"api_key"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	JWTSecret     string        `yaml:"jwt_secret"`
	JWTExpiration time.Duration `yaml:"jwt_expiration"`
	UsersFile     string        `yaml:"users_file"`

	StorageRoot        string `yaml:"storage_root"`
	MetadataFilename   string `yaml:"metadata_filename"`
	LegacyMetadataFile string `yaml:"legacy_metadata_file"`
	CaseIDStart        int    `yaml:"case_id_start"`

	EncryptStorage    bool   `yaml:"encrypt_storage"`
	DataEncryptionKey string `yaml:"data_encryption_key"`

	BlurThreshold float64 `yaml:"blur_threshold"`
	ConfThreshold float64 `yaml:"conf_threshold"`

	ALRoot              string `yaml:"al_root"`
	DefaultArchitecture string `yaml:"default_architecture"`
	// BaseModels maps architecture to its transfer-learning checkpoint.
	BaseModels map[string]string `yaml:"base_models"`

	RetrainMinNewLabels int    `yaml:"retrain_min_new_labels"`
	RetrainDevice       string `yaml:"retrain_device"`
	ForceBaseModelOnly  bool   `yaml:"force_base_model_only"`
	TrainerCommand      string `yaml:"trainer_command"`

	CandidatesTopK           int    `yaml:"candidates_top_k"`
	CandidatesIncludeLabeled bool   `yaml:"candidates_include_labeled"`
	CandidatesEntryType      string `yaml:"candidates_entry_type"`
	CandidatesStatus         string `yaml:"candidates_status"`

	ExperienceReplayEnabled bool    `yaml:"experience_replay_enabled"`
	ReplayQuota             int     `yaml:"replay_quota"`
	ReplayHerdingRatio      float64 `yaml:"replay_herding_ratio"`
	ReplayRandomRatio       float64 `yaml:"replay_random_ratio"`
	ReplaySeed              int64   `yaml:"replay_seed"`
	ReplayBatchSize         int     `yaml:"replay_batch_size"`
	ReplayImageSize         int     `yaml:"replay_image_size"`

	SplitTrainRatio float64 `yaml:"split_train_ratio"`
	SplitSeed       int64   `yaml:"split_seed"`

	OldDataCSV         string            `yaml:"old_data_csv"`
	OldDatasetDir      string            `yaml:"old_dataset_dir"`
	OldDataImageColumn string            `yaml:"old_data_image_column"`
	OldDataLabelColumn string            `yaml:"old_data_label_column"`
	OldDataLabelMap    map[string]string `yaml:"old_data_label_map"`

	ServeImages bool `yaml:"serve_images"`
}

// Load resolves settings from the environment, then applies the YAML overlay
// named by BACKSERVER_CONFIG_FILE when present.
func Load() (*Settings, error) {
	s := defaults()

	if file := os.Getenv("BACKSERVER_CONFIG_FILE"); file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("reading config overlay %s: %w", file, err)
		}
		if err := yaml.Unmarshal(data, s); err != nil {
			return nil, fmt.Errorf("parsing config overlay %s: %w", file, err)
		}
	}

	s.applyEnv()

	if s.MetadataFilename == "" {
		s.MetadataFilename = "metadata.jsonl"
	}
	if s.LegacyMetadataFile == "" {
		s.LegacyMetadataFile = filepath.Join(s.StorageRoot, s.MetadataFilename)
	}
	if s.EncryptStorage && s.DataEncryptionKey == "" {
		return nil, fmt.Errorf("ENCRYPT_STORAGE is on but DATA_ENCRYPTION_KEY is not set")
	}
	return s, nil
}

func defaults() *Settings {
	return &Settings{
		Host:                "0.0.0.0",
		Port:                8000,
		APIKey:              "abc123",
		AllowedOrigins:      []string{"*"},
		JWTSecret:           "your-secret-key-change-in-production",
		JWTExpiration:       24 * time.Hour,
		UsersFile:           "users.json",
		StorageRoot:         "storage",
		MetadataFilename:    "metadata.jsonl",
		CaseIDStart:         10000,
		BlurThreshold:       50.0,
		ConfThreshold:       0.5,
		ALRoot:              "AL",
		DefaultArchitecture: ArchEfficientNetV2M,
		BaseModels:          map[string]string{},
		RetrainMinNewLabels: 2,
		RetrainDevice:       "auto",
		ForceBaseModelOnly:  true,

		CandidatesTopK: 5,

		ExperienceReplayEnabled: true,
		ReplayQuota:             150,
		ReplayHerdingRatio:      0.8,
		ReplayRandomRatio:       0.2,
		ReplaySeed:              42,
		ReplayBatchSize:         32,
		ReplayImageSize:         224,

		SplitTrainRatio: 0.8,
		SplitSeed:       42,

		OldDataImageColumn: "image_id",
		OldDataLabelColumn: "dx",
	}
}

func (s *Settings) applyEnv() {
	envStr("BACKSERVER_HOST", &s.Host)
	envInt("BACKSERVER_PORT", &s.Port)
	envStr("TLS_CERT_FILE", &s.TLSCert)
	envStr("TLS_KEY_FILE", &s.TLSKey)
	envStr("API_KEY", &s.APIKey)
	envList("ALLOWED_ORIGINS", &s.AllowedOrigins)
	envStr("JWT_SECRET_KEY", &s.JWTSecret)
	if hours, ok := envLookupInt("JWT_EXPIRATION_HOURS"); ok {
		s.JWTExpiration = time.Duration(hours) * time.Hour
	}
	envStr("USERS_FILE", &s.UsersFile)
	envStr("STORAGE_ROOT", &s.StorageRoot)
	envStr("STORAGE_DIR", &s.StorageRoot)
	envStr("METADATA_FILENAME", &s.MetadataFilename)
	envStr("METADATA_FILE", &s.LegacyMetadataFile)
	envInt("CASE_ID_START", &s.CaseIDStart)
	envBool("ENCRYPT_STORAGE", &s.EncryptStorage)
	envStr("DATA_ENCRYPTION_KEY", &s.DataEncryptionKey)
	envFloat("BLUR_THRESHOLD", &s.BlurThreshold)
	envFloat("CONF_THRESHOLD", &s.ConfThreshold)
	envStr("AL_ROOT", &s.ALRoot)
	envStr("AL_DEFAULT_ARCHITECTURE", &s.DefaultArchitecture)
	envInt("RETRAIN_MIN_NEW_LABELS", &s.RetrainMinNewLabels)
	envStr("RETRAIN_DEVICE", &s.RetrainDevice)
	envBool("AL_FORCE_BASE_MODEL_ONLY", &s.ForceBaseModelOnly)
	envStr("AL_TRAINER_COMMAND", &s.TrainerCommand)
	envInt("AL_CANDIDATES_TOP_K", &s.CandidatesTopK)
	envBool("AL_CANDIDATES_INCLUDE_LABELED", &s.CandidatesIncludeLabeled)
	envStr("AL_CANDIDATES_ENTRY_TYPE", &s.CandidatesEntryType)
	envStr("AL_CANDIDATES_STATUS", &s.CandidatesStatus)
	envBool("AL_EXPERIENCE_REPLAY_ENABLED", &s.ExperienceReplayEnabled)
	envInt("AL_REPLAY_OLD_QUOTA", &s.ReplayQuota)
	envFloat("AL_REPLAY_HERDING_RATIO", &s.ReplayHerdingRatio)
	envFloat("AL_REPLAY_RANDOM_RATIO", &s.ReplayRandomRatio)
	envInt64("AL_REPLAY_RANDOM_SEED", &s.ReplaySeed)
	envInt("AL_REPLAY_BATCH_SIZE", &s.ReplayBatchSize)
	envInt("AL_REPLAY_IMAGE_SIZE", &s.ReplayImageSize)
	envFloat("AL_SPLIT_TRAIN_RATIO", &s.SplitTrainRatio)
	envInt64("AL_SPLIT_SEED", &s.SplitSeed)
	envStr("AL_OLD_DATA_CSV", &s.OldDataCSV)
	envStr("AL_OLD_DATASET_DIR", &s.OldDatasetDir)
	envStr("AL_OLD_DATA_CSV_IMAGE_COLUMN", &s.OldDataImageColumn)
	envStr("AL_OLD_DATA_CSV_LABEL_COLUMN", &s.OldDataLabelColumn)
	envBool("SERVE_IMAGES", &s.ServeImages)
}

// =============================================================================
// Derived paths (Active Learning workspace layout)
// =============================================================================

func (s *Settings) RegistryFile() string     { return filepath.Join(s.ALRoot, "db", "model_registry.json") }
func (s *Settings) LabelsPoolFile() string   { return filepath.Join(s.ALRoot, "db", "labels_pool.jsonl") }
func (s *Settings) EventLogFile() string     { return filepath.Join(s.ALRoot, "db", "event_log.jsonl") }
func (s *Settings) ActiveConfigFile() string { return filepath.Join(s.ALRoot, "config", "active_config.json") }
func (s *Settings) ProductionDir() string    { return filepath.Join(s.ALRoot, "models", "production") }
func (s *Settings) CandidatesDir() string    { return filepath.Join(s.ALRoot, "models", "candidates") }
func (s *Settings) ArchiveDir() string       { return filepath.Join(s.ALRoot, "models", "archive") }

// UserDir returns the per-user storage directory.
func (s *Settings) UserDir(userID string) string {
	return filepath.Join(s.StorageRoot, userID)
}

// UserMetadataFile returns the per-user ledger path.
func (s *Settings) UserMetadataFile(userID string) string {
	return filepath.Join(s.UserDir(userID), s.MetadataFilename)
}

// UserCounterFile returns the per-user case counter path.
func (s *Settings) UserCounterFile(userID string) string {
	return filepath.Join(s.UserDir(userID), "case_counter.json")
}

// =============================================================================
// Env helpers
// =============================================================================

func envStr(key string, dst *string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = strings.Trim(v, "\"' ")
	}
}

func envInt(key string, dst *int) {
	if v, ok := envLookupInt(key); ok {
		*dst = v
	}
}

func envInt64(key string, dst *int64) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func envLookupInt(key string) (int, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func envFloat(key string, dst *float64) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envBool(key string, dst *bool) {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes":
		*dst = true
	case "0", "false", "no":
		*dst = false
	}
}

func envList(key string, dst *[]string) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) > 0 {
		*dst = out
	}
}
