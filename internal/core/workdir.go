package core

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// Workdir is the temporary directory a single run owns.
type Workdir struct {
	Path string
}

func NewWorkdir(root string) (*Workdir, error) {
	if root != "" {
		if err := os.MkdirAll(root, os.ModePerm); err != nil {
			return nil, fmt.Errorf("failed to create temp root %s: %w", root, err)
		}
	}

	dir, err := os.MkdirTemp(root, WorkdirPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create working directory: %w", err)
	}

	return &Workdir{Path: dir}, nil
}

func (w *Workdir) Join(name string) string {
	return filepath.Join(w.Path, name)
}

func (w *Workdir) ResultDir(tier ResultTier) string {
	return w.Join(string(tier))
}

// Stage copies src into the working directory as name. If progress is not nil
// every copied byte is also written to it.
func (w *Workdir) Stage(name, src string, progress io.Writer) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(w.Join(name))
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", name, err)
	}

	var dst io.Writer = out
	if progress != nil {
		dst = io.MultiWriter(out, progress)
	}

	n, err := io.Copy(dst, in)
	if err != nil {
		out.Close()
		return 0, fmt.Errorf("failed to copy %s to %s: %w", src, name, err)
	}

	if err := out.Close(); err != nil {
		return 0, fmt.Errorf("failed to close %s: %w", name, err)
	}

	return n, nil
}

func (w *Workdir) CreateResultFolders() error {
	for _, tier := range ResultTiers {
		if err := os.Mkdir(w.ResultDir(tier), 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", tier, err)
		}
	}
	return nil
}

func (w *Workdir) WriteJob(job JobDescriptor) error {
	data, err := json.MarshalIndent(job, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode job descriptor: %w", err)
	}

	if err := os.WriteFile(w.Join(JobInfoName), data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", JobInfoName, err)
	}
	return nil
}

func (w *Workdir) InstallScript(src string) error {
	if _, err := w.Stage(ScriptName, src, nil); err != nil {
		return err
	}

	if err := os.Chmod(w.Join(ScriptName), 0o755); err != nil {
		return fmt.Errorf("failed to make %s executable: %w", ScriptName, err)
	}
	return nil
}

// HasResults reports whether the tier folder contains at least one entry.
func (w *Workdir) HasResults(tier ResultTier) (bool, error) {
	f, err := os.Open(w.ResultDir(tier))
	if err != nil {
		return false, fmt.Errorf("failed to open %s: %w", tier, err)
	}
	defer f.Close()

	names, err := f.Readdirnames(1)
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("failed to read %s: %w", tier, err)
	}
	return len(names) > 0, nil
}

func (w *Workdir) Remove() {
	if err := os.RemoveAll(w.Path); err != nil {
		slog.Error("failed to remove working directory", "dir", w.Path, "error", err)
	}
}
