package core

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSampleName(t *testing.T) {
	for path, expected := range map[string]string{
		"/data/sample.h5":       "sample",
		"relative/sample.v2.h5": "sample.v2",
		"no_extension":          "no_extension",
		"/data/.h5":             ".h5",
		"/data/archive.tar.gz":  "archive.tar",
		"/data/with space.h5":   "with space",
	} {
		assert.Equal(t, expected, SampleName(path), path)
	}
}

func TestDefaultOutputDir(t *testing.T) {
	assert.Equal(t, filepath.Join("/work", "results_sample"), DefaultOutputDir("/work", "/data/sample.h5"))
}

func TestNewLocalJob(t *testing.T) {
	assert.Equal(t, JobDescriptor{JobId: 0, SampleId: 0, SampleName: "abc", LocalRun: true}, NewLocalJob("x/abc.h5"))
}
