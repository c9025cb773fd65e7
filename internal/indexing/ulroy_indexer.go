package indexing

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ulroy-ai/ulroy-go"
	"github.com/ulroy-ai/ulroy-go/internal/taskstore"
)

var _ Indexer = (*UlroyIndexer)(nil)

// UlroyIndexer pushes documents to the Ulroy API and waits for the resulting
// tasks. Task ids are recorded in a taskstore.Store before waiting, so an
// event redelivered after a timeout resumes the same task. A record only
// matches a delivery with the same payload fingerprint; newer content or an
// operation in the other direction submits fresh work. Waits go through the
// async client so a cancelled handler context stops them at once.
type UlroyIndexer struct {
	client *ulroy.AsyncClient
	tasks  taskstore.Store
	wait   ulroy.WaitOptions
	logger *slog.Logger
	now    func() time.Time
}

func NewUlroyIndexer(client *ulroy.AsyncClient, tasks taskstore.Store, wait ulroy.WaitOptions, logger *slog.Logger) *UlroyIndexer {
	wait.Wait = true
	return &UlroyIndexer{
		client: client,
		tasks:  tasks,
		wait:   wait,
		logger: logger,
		now:    time.Now,
	}
}

func (u *UlroyIndexer) Upsert(ctx context.Context, doc Document) (Outcome, error) {
	body := ulroy.Document{
		ID:          doc.ID,
		Name:        doc.Name,
		Description: doc.Description,
		Content:     doc.Content,
		Metadata:    doc.Metadata,
	}
	fp, err := fingerprint(body)
	if err != nil {
		return Outcome{}, err
	}
	return u.run(ctx, job{
		key:         taskstore.Key(opIndex, doc.IndexID, doc.ID),
		supersedes:  taskstore.Key(opDelete, doc.IndexID, doc.ID),
		fingerprint: fp,
		submit: func(ctx context.Context) (*ulroy.TaskStatus, error) {
			return u.client.Documents.Index(ctx, doc.IndexID, body).Await(ctx)
		},
	})
}

func (u *UlroyIndexer) Delete(ctx context.Context, indexID, documentID string) (Outcome, error) {
	out, err := u.run(ctx, job{
		key:        taskstore.Key(opDelete, indexID, documentID),
		supersedes: taskstore.Key(opIndex, indexID, documentID),
		submit: func(ctx context.Context) (*ulroy.TaskStatus, error) {
			return u.client.Documents.Delete(ctx, indexID, documentID).Await(ctx)
		},
	})
	if errors.Is(err, ulroy.ErrNotFound) && out.TaskID == "" {
		u.logger.InfoContext(ctx, "Document already absent from index", "index_id", indexID, "document_id", documentID)
		return Outcome{Status: string(ulroy.TaskCompleted)}, nil
	}
	return out, err
}

type job struct {
	key string
	// supersedes is the record of the opposite operation on the same
	// document. Submitting this job makes any task recorded there stale.
	supersedes  string
	fingerprint string
	submit      func(ctx context.Context) (*ulroy.TaskStatus, error)
}

// fingerprint hashes the request body a task is submitted with.
func fingerprint(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("fingerprint document: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func (u *UlroyIndexer) run(ctx context.Context, j job) (Outcome, error) {
	key := j.key
	entry, found, err := u.tasks.Lookup(ctx, key)
	if err != nil {
		return Outcome{}, err
	}
	if found && entry.Fingerprint != j.fingerprint {
		u.logger.InfoContext(ctx, "Payload changed since task was submitted, submitting again",
			"key", key, "stale_task_id", entry.TaskID)
		if err := u.tasks.Forget(ctx, key); err != nil {
			return Outcome{}, err
		}
		found = false
	}

	var taskID string
	if found {
		taskID = entry.TaskID
		u.logger.InfoContext(ctx, "Resuming wait on submitted task", "key", key, "task_id", taskID, "submitted_at", entry.SubmittedAt)
	} else {
		claimed, err := u.tasks.Claim(ctx, key)
		if err != nil {
			return Outcome{}, err
		}
		if !claimed {
			return Outcome{}, ErrInFlight
		}
		if err := u.tasks.Forget(ctx, j.supersedes); err != nil {
			u.logger.WarnContext(ctx, "Failed to drop superseded task", "key", j.supersedes, "error", err)
		}

		task, err := j.submit(ctx)
		if err != nil {
			_ = u.tasks.Forget(ctx, key)
			return Outcome{}, err
		}
		if task.ID == "" {
			_ = u.tasks.Forget(ctx, key)
			return Outcome{}, errors.New("indexing: api response did not include a task id")
		}
		taskID = task.ID

		if task.Terminal() {
			_ = u.tasks.Forget(ctx, key)
			return finish(task)
		}

		e := taskstore.Entry{TaskID: taskID, SubmittedAt: u.now(), Fingerprint: j.fingerprint}
		if err := u.tasks.Save(ctx, key, e); err != nil {
			// Waiting still works; only a redelivery would resubmit.
			u.logger.WarnContext(ctx, "Failed to record task", "key", key, "task_id", taskID, "error", err)
		}
	}

	task, err := u.client.Tasks.Get(ctx, taskID, ulroy.WithWaitOptions(u.wait)).Await(ctx)
	switch {
	case err == nil:
		_ = u.tasks.Forget(ctx, key)
		return Outcome{TaskID: taskID, Status: string(task.Status)}, nil
	case errors.Is(err, ulroy.ErrTaskFailed):
		_ = u.tasks.Forget(ctx, key)
		return Outcome{TaskID: taskID, Status: string(ulroy.TaskFailed)}, err
	case errors.Is(err, ulroy.ErrNotFound):
		// The server no longer knows the task; the next delivery resubmits.
		_ = u.tasks.Forget(ctx, key)
		return Outcome{TaskID: taskID}, fmt.Errorf("task %s vanished: %w", taskID, err)
	default:
		return Outcome{TaskID: taskID}, err
	}
}

func finish(task *ulroy.TaskStatus) (Outcome, error) {
	out := Outcome{TaskID: task.ID, Status: string(task.Status)}
	if task.Failed() {
		return out, &ulroy.TaskFailedError{TaskID: task.ID, Detail: task.ErrorDetail(), Status: task}
	}
	return out, nil
}

// HealthCheck makes the cheapest authenticated call the API offers.
func (u *UlroyIndexer) HealthCheck(ctx context.Context) error {
	if _, err := u.client.Tasks.List(ctx, ulroy.ListOptions{PerPage: 1}).Await(ctx); err != nil {
		return fmt.Errorf("ulroy health check failed: %w", err)
	}
	return nil
}

func (u *UlroyIndexer) Close() error {
	return u.client.Close()
}
