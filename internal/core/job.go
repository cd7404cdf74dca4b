package core

import (
	"path/filepath"
	"strings"
)

// JobDescriptor is serialized to input.json for the analysis script.
type JobDescriptor struct {
	JobId      int    `json:"job_id"`
	SampleId   int    `json:"sample_id"`
	SampleName string `json:"sample_name"`
	LocalRun   bool   `json:"local_run"`
}

func NewLocalJob(h5Path string) JobDescriptor {
	return JobDescriptor{
		JobId:      0,
		SampleId:   0,
		SampleName: SampleName(h5Path),
		LocalRun:   true,
	}
}

// SampleName is the base name of path with its final extension removed.
func SampleName(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		// dotfiles like ".h5" keep their full name
		return base
	}
	return stem
}

// DefaultOutputDir is results_<sample> under the given directory.
func DefaultOutputDir(cwd, h5Path string) string {
	return filepath.Join(cwd, "results_"+SampleName(h5Path))
}
