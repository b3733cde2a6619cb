package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// LoadTranscripts reads per-call transcript text files keyed by recording
// basename. A missing directory or file is not an error; calls without
// transcripts degrade to empty bodies downstream.
func LoadTranscripts(dir string) map[string]string {
	transcripts := make(map[string]string)

	entries, err := os.ReadDir(dir)
	if err != nil {
		zap.L().Warn("transcript dir unavailable",
			zap.String("dir", dir),
			zap.Error(err))
		return transcripts
	}

	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			zap.L().Warn("transcript unreadable",
				zap.String("file", e.Name()),
				zap.Error(err))
			continue
		}
		key := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		transcripts[key] = strings.TrimSpace(string(data))
	}

	zap.L().Info("transcripts loaded",
		zap.String("dir", dir),
		zap.Int("transcripts", len(transcripts)))
	return transcripts
}
