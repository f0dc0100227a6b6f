package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"conarrator/api/internal/model"
)

// ErrParse marks an import file that is not a valid project document.
// Callers check it with errors.Is; transient read failures wrap other
// errors.
var ErrParse = errors.New("not a valid project file")

// ExportToFile writes the project as pretty-printed JSON named
// conarrator_project_<ISO-date>.json under dir and returns the full path.
func ExportToFile(state model.ProjectState, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	state.LastModified = time.Now().UnixMilli()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal project: %w", err)
	}

	name := fmt.Sprintf("conarrator_project_%s.json", time.Now().Format("2006-01-02"))
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("write export file: %w", err)
	}
	return path, nil
}

// projectFile mirrors ProjectState with pointer slices so a shape check
// can tell a missing array from an empty one.
type projectFile struct {
	Messages     *[]model.Message    `json:"messages"`
	Documents    *[]model.Document   `json:"documents"`
	Suggestions  *[]model.Suggestion `json:"suggestions"`
	RoomURL      string              `json:"roomUrl"`
	LastModified int64               `json:"lastModified"`
}

// ImportFromFile reads and validates an exported project file. A file
// that does not parse, or parses but is not project-shaped, fails with
// an error wrapping ErrParse. Nothing is mutated on failure.
func ImportFromFile(path string) (model.ProjectState, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.ProjectState{}, fmt.Errorf("read project file: %w", err)
	}
	return ParseProject(data)
}

// ParseProject validates raw bytes as an exported project document.
func ParseProject(data []byte) (model.ProjectState, error) {
	var file projectFile
	if err := json.Unmarshal(data, &file); err != nil {
		return model.ProjectState{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if file.Messages == nil || file.Documents == nil || file.Suggestions == nil {
		return model.ProjectState{}, fmt.Errorf("%w: missing messages, documents or suggestions", ErrParse)
	}

	return model.ProjectState{
		Messages:     *file.Messages,
		Documents:    *file.Documents,
		Suggestions:  *file.Suggestions,
		RoomURL:      file.RoomURL,
		LastModified: file.LastModified,
	}, nil
}
