package catalog

import (
	"fmt"
	"strings"
)

// DefaultModelBaseURL hosts the ggml conversions of the Whisper models.
const DefaultModelBaseURL = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main"

// DefaultModel is installed when no model is requested.
const DefaultModel = "base"

// Model is one downloadable Whisper model preset.
type Model struct {
	ID          string
	Name        string
	SizeLabel   string
	Description string
}

// FileName returns the ggml file name for the model.
func (m Model) FileName() string {
	return "ggml-" + m.ID + ".bin"
}

// URL returns the download location below baseURL.
func (m Model) URL(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultModelBaseURL
	}
	return strings.TrimRight(baseURL, "/") + "/" + m.FileName()
}

var models = []Model{
	{ID: "tiny.en", Name: "Tiny (English)", SizeLabel: "~75 MB", Description: "Fastest, English-only model."},
	{ID: "tiny", Name: "Tiny (Multilingual)", SizeLabel: "~75 MB", Description: "Fastest multilingual model."},
	{ID: "base.en", Name: "Base (English)", SizeLabel: "~142 MB", Description: "Balanced speed/quality, English-only."},
	{ID: "base", Name: "Base (Multilingual)", SizeLabel: "~142 MB", Description: "Balanced speed/quality, multilingual."},
	{ID: "small.en", Name: "Small (English)", SizeLabel: "~466 MB", Description: "Higher quality, English-only."},
	{ID: "small", Name: "Small (Multilingual)", SizeLabel: "~466 MB", Description: "Higher quality multilingual model."},
	{ID: "medium.en", Name: "Medium (English)", SizeLabel: "~1.5 GB", Description: "High quality, English-only."},
	{ID: "medium", Name: "Medium (Multilingual)", SizeLabel: "~1.5 GB", Description: "High quality multilingual model."},
	{ID: "large-v2", Name: "Large v2", SizeLabel: "~2.9 GB", Description: "Very high quality multilingual model."},
	{ID: "large-v3", Name: "Large v3", SizeLabel: "~2.9 GB", Description: "Latest large multilingual model."},
	{ID: "large-v3-turbo", Name: "Large v3 Turbo", SizeLabel: "~1.6 GB", Description: "Faster large-v3 variant."},
}

// Models returns the built-in presets in size order.
func Models() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// LookupModel finds a preset by ID.
func LookupModel(id string) (Model, error) {
	id = strings.TrimSpace(id)
	for _, m := range models {
		if m.ID == id {
			return m, nil
		}
	}
	ids := make([]string, 0, len(models))
	for _, m := range models {
		ids = append(ids, m.ID)
	}
	return Model{}, fmt.Errorf("unknown whisper model %q (available: %s)", id, strings.Join(ids, ", "))
}

// Registry maps a model ID to its known-good SHA-256 digest.
type Registry map[string]string

// Checksum returns the digest for id; ok is false when none is known, in
// which case verification is skipped.
func (r Registry) Checksum(id string) (string, bool) {
	sum, ok := r[id]
	return sum, ok && sum != ""
}

// DefaultRegistry holds the digests of the ggml files published on the
// whisper.cpp Hugging Face repository.
var DefaultRegistry = Registry{
	"tiny":           "be07e048e1e599ad46341c8d2a135645097a538221678b7acdd1b1919c6e1b21",
	"tiny.en":        "921e4cf8686fdd993dcd081a5da5b6c365bfde1162e72b08d75ac75289920b1f",
	"base":           "60ed5bc3dd14eea856493d334349b405782ddcaf0028d4b5df4088345fba2efe",
	"base.en":        "a03779c86df3323075f5e796cb2ce5029f00ec8869eee3fdfb897afe36c6d002",
	"small":          "1be3a9b2063867b937e64e2ec7483364a79917e157fa98c5d94b5c1fffea987b",
	"small.en":       "c6138d6d58ecc8322097e0f987c32f1be8bb0a18532a3f88f734d1bbf9c41e5d",
	"medium":         "6c14d5adee5f86394037b4e4e8b59f1673b6cee10e3cf0b11bbdbee79c156208",
	"medium.en":      "cc37e93478338ec7700281a7ac30a10128929eb8f427dda2e865faa8f6da4356",
	"large-v2":       "9a423fe4d40c82774b6af34115b8b935f34152246eb19e80e376071d3f999487",
	"large-v3":       "64d182b440b98d5203c4f9bd541544d84c605196c4f7b845dfa11fb23594d1e2",
	"large-v3-turbo": "1fc70f774d38eb169993ac391eea357ef47c88757ef72ee5943879b7e8e2bc69",
}
