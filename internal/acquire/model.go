package acquire

import (
	"context"
	"os"
	"path/filepath"

	"github.com/subforge/subforge/internal/catalog"
	"github.com/subforge/subforge/internal/download"
	"github.com/subforge/subforge/internal/logging"
)

// modelStrategy downloads a Whisper model file into the models directory.
// The ledger version of a model is its preset ID.
type modelStrategy struct {
	env *Env
}

func (s *modelStrategy) Name() string {
	return string(catalog.KindModel)
}

func (s *modelStrategy) Attempt(ctx context.Context, req Request) Outcome {
	id := firstNonEmpty(req.Model, catalog.DefaultModel)
	model, err := catalog.LookupModel(id)
	if err != nil {
		return Fatal{Reason: "unknown model", Err: err}
	}
	log := s.env.logger().With(logging.FieldDependency, catalog.WhisperModel, "model", model.ID)

	target := filepath.Join(s.env.Paths.Models, model.FileName())
	checksum, verified := s.env.registry().Checksum(model.ID)
	if !verified {
		log.Warn("no known checksum for model; integrity not verified")
	}

	if s.present(target, checksum) {
		log.Info("model already present", logging.FieldPath, target)
		return Installed{Version: model.ID, Path: target}
	}

	if outcome := downloadFile(ctx, s.env, req, s.Name(), download.Task{
		URL:            model.URL(s.env.modelBaseURL()),
		TempPath:       target + ".part",
		TargetPath:     target,
		ExpectedSHA256: checksum,
	}); outcome != nil {
		return outcome
	}
	log.Info("model downloaded", logging.FieldPath, target)
	return Installed{Version: model.ID, Path: target}
}

// present reports whether target already holds the model.
func (s *modelStrategy) present(target, checksum string) bool {
	info, err := os.Stat(target)
	if err != nil || info.Size() == 0 {
		return false
	}
	if checksum == "" {
		return true
	}
	return download.VerifyFile(target, checksum, target) == nil
}
