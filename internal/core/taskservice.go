package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/valter-silva-au/spec-workflow/internal/workflowpath"
	"github.com/valter-silva-au/spec-workflow/pkg/models"
)

// TaskService reads and mutates the task list of a spec. Every mutation is a
// locked read-modify-write of specs/<name>/tasks.md.
type TaskService interface {
	Load(specName string) (*models.TaskDocument, error)
	GetTask(specName, taskID string) (*models.Task, error)
	Next(specName string) (*NextTaskResult, error)
	SetStatus(ctx context.Context, specName, taskID string, status models.TaskStatus) (*models.Task, error)
}

type taskService struct {
	projectRoot string
	locker      *DocLocker
	writer      *FileWriter
	events      EventLogger
}

// NewTaskService creates a TaskService for the project. events may be nil.
func NewTaskService(projectRoot string, locker *DocLocker, writer *FileWriter, events EventLogger) TaskService {
	return &taskService{
		projectRoot: projectRoot,
		locker:      locker,
		writer:      writer,
		events:      events,
	}
}

func (s *taskService) tasksPath(specName string) string {
	return workflowpath.SpecDocPath(s.projectRoot, specName, string(models.DocTasks))
}

func (s *taskService) readTasks(specName string) (string, error) {
	if err := ValidateSpecName(specName); err != nil {
		return "", err
	}
	data, err := os.ReadFile(s.tasksPath(specName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if _, statErr := os.Stat(workflowpath.SpecDir(s.projectRoot, specName)); statErr != nil {
				return "", fmt.Errorf("spec %q: %w", specName, ErrNotFound)
			}
			return "", fmt.Errorf("tasks document for spec %q: %w", specName, ErrNotFound)
		}
		return "", fmt.Errorf("reading tasks for spec %q: %w", specName, err)
	}
	return string(data), nil
}

// Load parses the current task document of a spec.
func (s *taskService) Load(specName string) (*models.TaskDocument, error) {
	text, err := s.readTasks(specName)
	if err != nil {
		return nil, err
	}
	doc := ParseTaskDocument(text)
	return &doc, nil
}

// GetTask returns a single task by exact id.
func (s *taskService) GetTask(specName, taskID string) (*models.Task, error) {
	doc, err := s.Load(specName)
	if err != nil {
		return nil, err
	}
	task, ok := GetTaskByID(doc.Tasks, taskID)
	if !ok {
		return nil, fmt.Errorf("task %s in spec %q: %w", taskID, specName, ErrNotFound)
	}
	return task, nil
}

// Next returns the next pending task in document order.
func (s *taskService) Next(specName string) (*NextTaskResult, error) {
	doc, err := s.Load(specName)
	if err != nil {
		return nil, err
	}
	res := FindNextPending(doc.Tasks)
	return &res, nil
}

// SetStatus changes the marker of one task. Setting a task to the status it
// already has succeeds without writing.
func (s *taskService) SetStatus(ctx context.Context, specName, taskID string, status models.TaskStatus) (*models.Task, error) {
	if _, ok := models.MarkerFor(status); !ok {
		return nil, fmt.Errorf("status %q must be one of pending, in-progress, completed: %w", status, ErrValidation)
	}
	if taskID == "" {
		return nil, fmt.Errorf("task id is required: %w", ErrValidation)
	}
	if err := ValidateSpecName(specName); err != nil {
		return nil, err
	}

	path := s.tasksPath(specName)
	unlock, err := s.locker.Lock(path)
	if err != nil {
		return nil, err
	}
	defer unlock()

	text, err := s.readTasks(specName)
	if err != nil {
		return nil, err
	}

	before, ok := GetTaskByID(ParseTaskDocument(text).Tasks, taskID)
	if !ok {
		return nil, fmt.Errorf("task %s in spec %q: %w", taskID, specName, ErrNotFound)
	}
	oldStatus := before.Status

	updated := SetTaskStatus(text, taskID, status)
	if updated == text {
		if oldStatus != status {
			return nil, fmt.Errorf("task %s in spec %q: marker not updated: %w", taskID, specName, ErrNotFound)
		}
		return before, nil
	}

	if err := s.writer.WriteFile(ctx, path, []byte(updated), 0o644); err != nil {
		return nil, err
	}

	after, _ := GetTaskByID(ParseTaskDocument(updated).Tasks, taskID)

	if s.events != nil {
		_ = s.events.LogEvent("task.status_changed", map[string]any{
			"spec":       specName,
			"task_id":    taskID,
			"old_status": string(oldStatus),
			"new_status": string(status),
		})
	}
	return after, nil
}
