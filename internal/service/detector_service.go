package service

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/xX-youssuf-Xx/student-portal/config"
	"github.com/xX-youssuf-Xx/student-portal/internal/model"
)

// DetectorService converts one scanned bubble-sheet image into a
// question-number -> detected-letter map. It is an interface so the batch
// orchestrator can be exercised without spawning real processes.
type DetectorService interface {
	Detect(ctx context.Context, imagePath string, nQuestions int, testID, studentID uint, outDir string) (map[string]string, error)
}

type scriptDetector struct {
	cfg *config.Config
}

// NewDetectorService returns the production detector: it shells out to the
// configured detection executable once per (test, student, image).
func NewDetectorService(cfg *config.Config) DetectorService {
	return &scriptDetector{cfg: cfg}
}

// Detect runs the external process and reads back the JSON it must produce.
// The process's exit code and stderr are not load-bearing; the presence and
// parseability of {testID}-{studentID}.json in outDir is the sole success
// signal.
func (d *scriptDetector) Detect(ctx context.Context, imagePath string, nQuestions int, testID, studentID uint, outDir string) (map[string]string, error) {
	if d.cfg.Detector.Script == "" {
		return nil, fmt.Errorf("no detector script configured")
	}

	runCtx := ctx
	if d.cfg.Detector.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, d.cfg.Detector.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, d.cfg.Detector.Script,
		strconv.Itoa(nQuestions),
		strconv.FormatUint(uint64(testID), 10),
		strconv.FormatUint(uint64(studentID), 10),
		outDir,
		imagePath,
	)
	if err := cmd.Run(); err != nil {
		log.Warn().Err(err).Uint("testID", testID).Uint("studentID", studentID).
			Msg("detector process exited with error, checking for output anyway")
	}

	resultPath := filepath.Join(outDir, fmt.Sprintf("%d-%d.json", testID, studentID))
	raw, err := os.ReadFile(resultPath)
	if err != nil {
		return nil, fmt.Errorf("detection output missing at %s: %w", resultPath, err)
	}

	var detected model.StringMap
	if err := json.Unmarshal(raw, &detected); err != nil {
		return nil, fmt.Errorf("unparseable detection output at %s: %w", resultPath, err)
	}
	return detected, nil
}
