package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/diewo77/taskflow/gate"
	"github.com/diewo77/taskflow/internal/metrics"
	"github.com/diewo77/taskflow/internal/models"
	"github.com/diewo77/taskflow/internal/policy"
	"github.com/diewo77/taskflow/internal/storage"
	"github.com/diewo77/taskflow/validation"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Activity verbs recorded in the task audit trail.
const (
	ActivityCreated   = "Created task"
	ActivityCompleted = "Marked task as done"
	ActivityUpdated   = "Updated task details"
	ActivityCommented = "Added a comment"
	ActivityAttached  = "Uploaded an attachment"
)

// TaskRow is a task joined with the names shown next to it.
type TaskRow struct {
	models.Task
	AssigneeName string  `json:"assignee_name"`
	CreatorName  string  `json:"creator_name"`
	ProjectName  *string `json:"project_name,omitempty"`
}

type CommentRow struct {
	models.TaskComment
	AuthorName string `json:"author_name"`
}

type ActivityRow struct {
	models.TaskActivity
	AuthorName string `json:"author_name"`
}

type AttachmentRow struct {
	models.TaskAttachment
	Uploader string `json:"uploader"`
}

// TaskDetail is everything the task page shows.
type TaskDetail struct {
	Task        TaskRow         `json:"task"`
	Comments    []CommentRow    `json:"comments"`
	Activity    []ActivityRow   `json:"activity"`
	Attachments []AttachmentRow `json:"attachments"`
}

type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     string
	AssigneeID  uint
	ProjectID   uint
}

type UpdateTaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     string
	AssigneeID  uint
	ProjectID   uint
}

// Upload is an attachment received from a client.
type Upload struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// TaskService owns the task lifecycle. Every successful mutation writes its
// activity row in the same transaction.
type TaskService struct {
	db       *gorm.DB
	log      *zap.Logger
	gate     *policy.AuthGate
	index    *MembershipIndex
	store    storage.Store
	metrics  *metrics.Metrics
	maxBytes int64
	now      func() time.Time
}

type TaskServiceOptions struct {
	Store          storage.Store
	Metrics        *metrics.Metrics
	MaxUploadBytes int64
}

func NewTaskService(db *gorm.DB, log *zap.Logger, g *policy.AuthGate, idx *MembershipIndex, opts TaskServiceOptions) *TaskService {
	if log == nil {
		log = zap.NewNop()
	}
	return &TaskService{
		db:       db,
		log:      log,
		gate:     g,
		index:    idx,
		store:    opts.Store,
		metrics:  opts.Metrics,
		maxBytes: opts.MaxUploadBytes,
		now:      time.Now,
	}
}

// SetClock replaces the time source used for completion stamps.
func (s *TaskService) SetClock(now func() time.Time) { s.now = now }

func (s *TaskService) authorize(ctx context.Context, actor models.Actor, action gate.Action, task *models.Task) error {
	if task == nil {
		return authzError(s.gate.Authorize(ctx, actor, action, policy.ResourceTask, nil))
	}
	return authzError(s.gate.Authorize(ctx, actor, action, policy.ResourceTask, task))
}

func (s *TaskService) getTask(ctx context.Context, tenantID, id uint) (*models.Task, error) {
	if id == 0 {
		return nil, ErrNotFound
	}
	var t models.Task
	if err := s.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

func logActivity(tx *gorm.DB, taskID, userID uint, action string) error {
	return tx.Create(&models.TaskActivity{TaskID: taskID, UserID: userID, Action: action}).Error
}

// Assignable returns the users actor may assign tasks to.
func (s *TaskService) Assignable(ctx context.Context, actor models.Actor) ([]models.User, error) {
	return s.index.VisibleUsers(ctx, actor)
}

func (s *TaskService) checkAssignee(ctx context.Context, actor models.Actor, assigneeID uint) error {
	visible, err := s.index.VisibleUsers(ctx, actor)
	if err != nil {
		return err
	}
	if len(visible) == 0 {
		return invalidFields("You are not a member of any team yet, so there is nobody you can assign tasks to.",
			validation.Violations{"assigned_to": "no_assignable_users"})
	}
	for _, u := range visible {
		if u.ID == assigneeID {
			return nil
		}
	}
	return invalidFields("Select an assignee from your teams.", validation.Violations{"assigned_to": "invalid_choice"})
}

func (s *TaskService) checkProject(ctx context.Context, tenantID, projectID uint) (*uint, error) {
	if projectID == 0 {
		return nil, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Project{}).Where("tenant_id = ? AND id = ?", tenantID, projectID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, invalidFields("Select a valid project.", validation.Violations{"project_id": "invalid_choice"})
	}
	return &projectID, nil
}

func dueDate(raw string) (*string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	v := make(validation.Violations)
	if validation.Date("due_date", raw, v); !v.Empty() {
		return nil, invalidFields("Due date must be a date in YYYY-MM-DD format.", v)
	}
	return &raw, nil
}

// Create stores a new open task assigned to one of actor's visible users.
func (s *TaskService) Create(ctx context.Context, actor models.Actor, in CreateTaskInput) (*models.Task, error) {
	if err := s.authorize(ctx, actor, gate.ActionCreate, nil); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.AssigneeID == 0 {
		v := make(validation.Violations)
		validation.Required("title", in.Title, v)
		validation.RequiredID("assigned_to", in.AssigneeID, v)
		return nil, invalidFields("Title and assignee are required.", v)
	}
	if err := s.checkAssignee(ctx, actor, in.AssigneeID); err != nil {
		return nil, err
	}
	due, err := dueDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	projectID, err := s.checkProject(ctx, actor.TenantID, in.ProjectID)
	if err != nil {
		return nil, err
	}

	task := models.Task{
		TenantID:    actor.TenantID,
		ProjectID:   projectID,
		Title:       in.Title,
		Description: strings.TrimSpace(in.Description),
		Priority:    models.ParsePriority(in.Priority),
		Status:      models.StatusOpen,
		DueDate:     due,
		CreatedBy:   actor.UserID,
		AssignedTo:  in.AssigneeID,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&task).Error; err != nil {
			return err
		}
		return logActivity(tx, task.ID, actor.UserID, ActivityCreated)
	})
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	s.metrics.TaskCreated()
	s.log.Info("task created", zap.Uint("task_id", task.ID), zap.Uint("assigned_to", task.AssignedTo))
	return &task, nil
}

// MarkComplete moves a task to done on behalf of its assignee. Completing a
// task that is already done changes nothing.
func (s *TaskService) MarkComplete(ctx context.Context, actor models.Actor, taskID uint) (*models.Task, error) {
	task, err := s.getTask(ctx, actor.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, gate.ActionComplete, task); err != nil {
		return nil, err
	}
	if task.IsDone() {
		return task, nil
	}
	task.SetStatus(models.StatusDone, s.now())
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Task{}).
			Where("tenant_id = ? AND id = ? AND assigned_to = ?", task.TenantID, task.ID, actor.UserID).
			Updates(map[string]any{"status": task.Status, "completed_at": task.CompletedAt})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return logActivity(tx, task.ID, actor.UserID, ActivityCompleted)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("complete task: %w", err)
	}
	s.metrics.TaskTransition(string(models.StatusDone))
	s.log.Info("task completed", zap.Uint("task_id", task.ID))
	return task, nil
}

// Update is the manager edit of a task. It is the only path that can move a
// task out of done.
func (s *TaskService) Update(ctx context.Context, actor models.Actor, taskID uint, in UpdateTaskInput) (*models.Task, error) {
	if taskID == 0 {
		return nil, invalid("Invalid task.")
	}
	task, err := s.getTask(ctx, actor.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, gate.ActionUpdate, task); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" || in.AssigneeID == 0 {
		v := make(validation.Violations)
		validation.Required("title", in.Title, v)
		validation.RequiredID("assigned_to", in.AssigneeID, v)
		return nil, invalidFields("Title and assignee are required.", v)
	}
	status, ok := models.ParseTaskStatus(in.Status)
	if !ok {
		return nil, invalidFields("Invalid status.", validation.Violations{"status": "invalid_choice"})
	}
	if in.AssigneeID != task.AssignedTo {
		if err := s.checkAssignee(ctx, actor, in.AssigneeID); err != nil {
			return nil, err
		}
	}
	due, err := dueDate(in.DueDate)
	if err != nil {
		return nil, err
	}
	projectID, err := s.checkProject(ctx, actor.TenantID, in.ProjectID)
	if err != nil {
		return nil, err
	}

	from := task.Status
	task.Title = in.Title
	task.Description = strings.TrimSpace(in.Description)
	task.AssignedTo = in.AssigneeID
	task.ProjectID = projectID
	task.Priority = models.ParsePriority(in.Priority)
	task.DueDate = due
	task.SetStatus(status, s.now())

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Model(&models.Task{}).Where("tenant_id = ? AND id = ?", task.TenantID, task.ID).
			Updates(map[string]any{
				"title":        task.Title,
				"description":  task.Description,
				"assigned_to":  task.AssignedTo,
				"project_id":   task.ProjectID,
				"priority":     task.Priority,
				"due_date":     task.DueDate,
				"status":       task.Status,
				"completed_at": task.CompletedAt,
			}).Error
		if err != nil {
			return err
		}
		return logActivity(tx, task.ID, actor.UserID, ActivityUpdated)
	})
	if err != nil {
		return nil, fmt.Errorf("update task: %w", err)
	}
	if from != task.Status {
		s.metrics.TaskTransition(string(task.Status))
		s.log.Info("task status changed", zap.Uint("task_id", task.ID),
			zap.String("from", string(from)), zap.String("to", string(task.Status)))
	}
	return task, nil
}

// Delete removes a task and its comments, activity and attachments.
func (s *TaskService) Delete(ctx context.Context, actor models.Actor, taskID uint) error {
	if taskID == 0 {
		return invalid("Invalid task.")
	}
	task, err := s.getTask(ctx, actor.TenantID, taskID)
	if err != nil {
		return err
	}
	if err := s.authorize(ctx, actor, gate.ActionDelete, task); err != nil {
		return err
	}
	var keys []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.TaskAttachment{}).Where("task_id = ?", task.ID).Pluck("file_path", &keys).Error; err != nil {
			return err
		}
		if err := deleteTaskChildren(tx, []uint{task.ID}); err != nil {
			return err
		}
		return tx.Where("tenant_id = ?", task.TenantID).Delete(task).Error
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	s.removeFiles(ctx, keys)
	s.log.Info("task deleted", zap.Uint("task_id", task.ID))
	return nil
}

func (s *TaskService) removeFiles(ctx context.Context, keys []string) {
	removeStoredFiles(ctx, s.store, s.log, keys)
}

// removeStoredFiles deletes attachment objects once their rows are gone.
// Failures are logged; the rows are already committed.
func removeStoredFiles(ctx context.Context, store storage.Store, log *zap.Logger, keys []string) {
	if store == nil {
		return
	}
	for _, k := range keys {
		if err := store.Delete(ctx, k); err != nil {
			log.Error("attachment cleanup failed", zap.String("key", k), zap.Error(err))
		}
	}
}

func (s *TaskService) rows(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Task{}).
		Select("tasks.*, assignee.name AS assignee_name, creator.name AS creator_name, projects.name AS project_name").
		Joins("LEFT JOIN users AS assignee ON assignee.id = tasks.assigned_to").
		Joins("LEFT JOIN users AS creator ON creator.id = tasks.created_by").
		Joins("LEFT JOIN projects ON projects.id = tasks.project_id")
}

func (s *TaskService) list(ctx context.Context, tenantID uint, filter string, args ...any) ([]TaskRow, error) {
	q := s.rows(ctx).Where("tasks.tenant_id = ?", tenantID)
	if filter != "" {
		q = q.Where(filter, args...)
	}
	var out []TaskRow
	err := q.Order("tasks.created_at DESC, tasks.id DESC").Scan(&out).Error
	return out, err
}

// ListAll returns every task of the tenant, newest first.
func (s *TaskService) ListAll(ctx context.Context, tenantID uint) ([]TaskRow, error) {
	return s.list(ctx, tenantID, "")
}

// ListForUser returns the tasks assigned to userID, newest first.
func (s *TaskService) ListForUser(ctx context.Context, tenantID, userID uint) ([]TaskRow, error) {
	return s.list(ctx, tenantID, "tasks.assigned_to = ?", userID)
}

// ListCreatedBy returns the tasks userID created, newest first.
func (s *TaskService) ListCreatedBy(ctx context.Context, tenantID, userID uint) ([]TaskRow, error) {
	return s.list(ctx, tenantID, "tasks.created_by = ?", userID)
}

// ListForAssignees returns the tasks assigned to any of ids, newest first.
func (s *TaskService) ListForAssignees(ctx context.Context, tenantID uint, ids []uint) ([]TaskRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return s.list(ctx, tenantID, "tasks.assigned_to IN ?", ids)
}

// ListVisible returns the tasks actor oversees: the whole tenant for an admin,
// the tasks of team members for a manager, own assignments otherwise.
func (s *TaskService) ListVisible(ctx context.Context, actor models.Actor) ([]TaskRow, error) {
	if err := s.authorize(ctx, actor, gate.ActionList, nil); err != nil {
		return nil, err
	}
	switch {
	case actor.IsAdmin():
		return s.ListAll(ctx, actor.TenantID)
	case actor.IsManager():
		ids, err := s.index.VisibleUserIDs(ctx, actor)
		if err != nil {
			return nil, err
		}
		return s.ListForAssignees(ctx, actor.TenantID, ids)
	}
	return s.ListForUser(ctx, actor.TenantID, actor.UserID)
}

func (s *TaskService) row(ctx context.Context, tenantID, id uint) (*TaskRow, error) {
	var rows []TaskRow
	if err := s.rows(ctx).Where("tasks.tenant_id = ? AND tasks.id = ?", tenantID, id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0], nil
}

// Get loads a task with its comments, activity and attachments.
func (s *TaskService) Get(ctx context.Context, actor models.Actor, taskID uint) (*TaskDetail, error) {
	if taskID == 0 {
		return nil, ErrNotFound
	}
	row, err := s.row(ctx, actor.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, gate.ActionView, &row.Task); err != nil {
		return nil, err
	}
	detail := &TaskDetail{Task: *row}
	if detail.Comments, err = s.Comments(ctx, row.ID); err != nil {
		return nil, err
	}
	if detail.Activity, err = s.Activity(ctx, row.ID); err != nil {
		return nil, err
	}
	if detail.Attachments, err = s.Attachments(ctx, row.ID); err != nil {
		return nil, err
	}
	return detail, nil
}

// Comments returns a task's comments, newest first.
func (s *TaskService) Comments(ctx context.Context, taskID uint) ([]CommentRow, error) {
	var out []CommentRow
	err := s.db.WithContext(ctx).Model(&models.TaskComment{}).
		Select("task_comments.*, users.name AS author_name").
		Joins("LEFT JOIN users ON users.id = task_comments.user_id").
		Where("task_comments.task_id = ?", taskID).
		Order("task_comments.created_at DESC, task_comments.id DESC").
		Scan(&out).Error
	return out, err
}

// Activity returns a task's audit trail, newest first.
func (s *TaskService) Activity(ctx context.Context, taskID uint) ([]ActivityRow, error) {
	var out []ActivityRow
	err := s.db.WithContext(ctx).Model(&models.TaskActivity{}).
		Select("task_activity.*, users.name AS author_name").
		Joins("LEFT JOIN users ON users.id = task_activity.user_id").
		Where("task_activity.task_id = ?", taskID).
		Order("task_activity.created_at DESC, task_activity.id DESC").
		Scan(&out).Error
	return out, err
}

// Attachments returns a task's attachments, newest first.
func (s *TaskService) Attachments(ctx context.Context, taskID uint) ([]AttachmentRow, error) {
	var out []AttachmentRow
	err := s.db.WithContext(ctx).Model(&models.TaskAttachment{}).
		Select("task_attachments.*, users.name AS uploader").
		Joins("LEFT JOIN users ON users.id = task_attachments.user_id").
		Where("task_attachments.task_id = ?", taskID).
		Order("task_attachments.created_at DESC, task_attachments.id DESC").
		Scan(&out).Error
	return out, err
}

func (s *TaskService) AddComment(ctx context.Context, actor models.Actor, taskID uint, body string) (*models.TaskComment, error) {
	task, err := s.getTask(ctx, actor.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, gate.ActionComment, task); err != nil {
		return nil, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, invalidFields("Comment cannot be empty.", validation.Violations{"body": "required"})
	}
	c := models.TaskComment{TaskID: task.ID, UserID: actor.UserID, Body: body}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		return logActivity(tx, task.ID, actor.UserID, ActivityCommented)
	})
	if err != nil {
		return nil, fmt.Errorf("add comment: %w", err)
	}
	return &c, nil
}

// AddAttachment hands the upload to the file store and records its metadata.
func (s *TaskService) AddAttachment(ctx context.Context, actor models.Actor, taskID uint, up Upload) (*models.TaskAttachment, error) {
	task, err := s.getTask(ctx, actor.TenantID, taskID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, actor, gate.ActionAttach, task); err != nil {
		return nil, err
	}
	if s.store == nil || up.Reader == nil || strings.TrimSpace(up.Name) == "" {
		return nil, invalid("Upload failed.")
	}
	if s.maxBytes > 0 && up.Size > s.maxBytes {
		return nil, invalidFields("File is too large.", validation.Violations{"attachment": "too_large"})
	}
	reader := up.Reader
	if s.maxBytes > 0 {
		reader = io.LimitReader(up.Reader, s.maxBytes)
	}
	key, err := s.store.Save(ctx, up.Name, up.Size, reader)
	if err != nil {
		s.log.Error("attachment save failed", zap.Uint("task_id", task.ID), zap.Error(err))
		return nil, &ExternalError{Service: "storage", Message: "Unable to save file."}
	}
	a := models.TaskAttachment{TaskID: task.ID, UserID: actor.UserID, FileName: up.Name, FilePath: key, FileSize: up.Size}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&a).Error; err != nil {
			return err
		}
		return logActivity(tx, task.ID, actor.UserID, ActivityAttached)
	})
	if err != nil {
		s.removeFiles(ctx, []string{key})
		return nil, fmt.Errorf("add attachment: %w", err)
	}
	return &a, nil
}

// OpenAttachment streams a stored attachment to someone allowed to view the task.
func (s *TaskService) OpenAttachment(ctx context.Context, actor models.Actor, taskID, attachmentID uint) (*models.TaskAttachment, io.ReadCloser, error) {
	task, err := s.getTask(ctx, actor.TenantID, taskID)
	if err != nil {
		return nil, nil, err
	}
	if err := s.authorize(ctx, actor, gate.ActionView, task); err != nil {
		return nil, nil, err
	}
	var a models.TaskAttachment
	if err := s.db.WithContext(ctx).Where("task_id = ? AND id = ?", task.ID, attachmentID).First(&a).Error; err != nil {
		return nil, nil, notFound(err)
	}
	if s.store == nil {
		return nil, nil, ErrNotFound
	}
	rc, err := s.store.Open(ctx, a.FilePath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	return &a, rc, nil
}
