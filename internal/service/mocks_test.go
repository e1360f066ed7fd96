package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/export-module/internal/catalog"
	"github.com/bigkaa/goartstore/export-module/internal/domain/model"
	"github.com/bigkaa/goartstore/export-module/internal/queue"
	"github.com/bigkaa/goartstore/export-module/internal/repository"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mapResolver — каталог ассетов поверх map.
type mapResolver struct {
	assets map[string]*model.AssetRef
}

func (r *mapResolver) Resolve(_ context.Context, assetID string) (*model.AssetRef, error) {
	ref, ok := r.assets[assetID]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return ref, nil
}

// memRepo — JobRepository в памяти. Реализует ту же монотонность
// статусов, что и SQL-версия.
type memRepo struct {
	mu       sync.Mutex
	jobs     map[string]*model.Job
	sessions map[string]*model.MultipartUploadSession
	// transitions — журнал переходов workflow для проверок порядка.
	transitions map[string][]string
}

func newMemRepo() *memRepo {
	return &memRepo{
		jobs:        make(map[string]*model.Job),
		sessions:    make(map[string]*model.MultipartUploadSession),
		transitions: make(map[string][]string),
	}
}

func (r *memRepo) Create(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.jobs[job.JobID]; ok {
		return repository.ErrConflict
	}
	clone := *job
	r.jobs[job.JobID] = &clone
	return nil
}

func (r *memRepo) GetByID(_ context.Context, jobID string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	clone := *job
	return &clone, nil
}

func (r *memRepo) ListByUser(_ context.Context, userID string, limit, _ int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []*model.Job
	for _, job := range r.jobs {
		if job.UserID == userID && len(jobs) < limit {
			clone := *job
			jobs = append(jobs, &clone)
		}
	}
	return jobs, nil
}

func (r *memRepo) SaveClassification(_ context.Context, job *model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.jobs[job.JobID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.JobType = job.JobType
	stored.FoundAssetIDs = job.FoundAssetIDs
	stored.MissingAssetIDs = job.MissingAssetIDs
	stored.TotalSizeBytes = job.TotalSizeBytes
	return nil
}

func (r *memRepo) TransitionState(_ context.Context, jobID, workflowState string, status model.JobStatus, failureCause string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repository.ErrNotFound
	}
	if job.Status.IsTerminal() {
		return repository.ErrInvalidTransition
	}
	job.WorkflowState = workflowState
	job.Status = status
	job.FailureCause = failureCause
	job.UpdatedAt = time.Now().UTC()
	r.transitions[jobID] = append(r.transitions[jobID], workflowState)
	return nil
}

func (r *memRepo) SetExportKey(_ context.Context, jobID, exportKey string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repository.ErrNotFound
	}
	job.ExportKey = exportKey
	return nil
}

func (r *memRepo) SetDirectLinks(_ context.Context, jobID string, links []model.DirectLink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return repository.ErrNotFound
	}
	job.DirectLinks = links
	return nil
}

func (r *memRepo) SetMultipartSession(_ context.Context, jobID string, session *model.MultipartUploadSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[jobID] = session
	return nil
}

func (r *memRepo) GetMultipartSession(_ context.Context, jobID string) (*model.MultipartUploadSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[jobID], nil
}

func (r *memRepo) MarkDownloaded(_ context.Context, jobID, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.UserID != userID {
		return repository.ErrNotFound
	}
	if job.Status != model.StatusCompleted {
		return repository.ErrInvalidTransition
	}
	job.Status = model.StatusDownloaded
	return nil
}

func (r *memRepo) Delete(_ context.Context, jobID, userID string) (*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok || job.UserID != userID {
		return nil, repository.ErrNotFound
	}
	delete(r.jobs, jobID)
	return job, nil
}

func (r *memRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]*model.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []*model.Job
	for _, job := range r.jobs {
		if job.ExpiresAt.Before(now) && len(jobs) < limit {
			clone := *job
			jobs = append(jobs, &clone)
		}
	}
	return jobs, nil
}

func (r *memRepo) DeleteByID(_ context.Context, jobID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobs, jobID)
	return nil
}

func (r *memRepo) FailInterrupted(_ context.Context, cause string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, job := range r.jobs {
		if job.Status == model.StatusPending || job.Status == model.StatusProcessing {
			job.Status = model.StatusFailed
			job.FailureCause = cause
			n++
		}
	}
	return n, nil
}

func (r *memRepo) transitionLog(jobID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transitions[jobID]...)
}

// memObjectStore — объектное хранилище в памяти с multipart-семантикой.
type memObjectStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	// uploads: uploadID → части по номерам.
	uploads   map[string]map[int32][]byte
	uploadKey map[string]string
	aborted   []string
	nextID    int
	// failPart — номер части, провал которой эмулируется.
	failPart int32
	// presignFail — локаторы, presign которых эмулированно проваливается.
	presignFail map[string]bool
}

func newMemObjectStore() *memObjectStore {
	return &memObjectStore{
		objects:   make(map[string][]byte),
		uploads:   make(map[string]map[int32][]byte),
		uploadKey: make(map[string]string),
	}
}

func (m *memObjectStore) GetObject(_ context.Context, locator string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[locator]
	if !ok {
		return nil, fmt.Errorf("объект %s не найден", locator)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memObjectStore) HeadObject(_ context.Context, locator string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[locator]
	if !ok {
		return 0, fmt.Errorf("объект %s не найден", locator)
	}
	return int64(len(data)), nil
}

func (m *memObjectStore) PutObject(_ context.Context, key string, body io.Reader, _ int64) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjectStore) CreateMultipartUpload(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	uploadID := fmt.Sprintf("upload-%d", m.nextID)
	m.uploads[uploadID] = make(map[int32][]byte)
	m.uploadKey[uploadID] = key
	return uploadID, nil
}

func (m *memObjectStore) UploadPart(_ context.Context, _, uploadID string, partNumber int32, body io.Reader, _ int64) (string, error) {
	if partNumber < 1 || partNumber > 10000 {
		return "", fmt.Errorf("недопустимый номер части %d: допустимы 1-10000", partNumber)
	}
	if m.failPart != 0 && partNumber == m.failPart {
		return "", fmt.Errorf("эмулированный провал части %d", partNumber)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	parts, ok := m.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("upload %s не найден", uploadID)
	}
	parts[partNumber] = data
	return fmt.Sprintf("etag-%d", partNumber), nil
}

func (m *memObjectStore) CompleteMultipartUpload(_ context.Context, key, uploadID string, completed []model.CompletedPart) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	parts, ok := m.uploads[uploadID]
	if !ok {
		return "", fmt.Errorf("upload %s не найден", uploadID)
	}
	if len(completed) > 10000 {
		return "", fmt.Errorf("upload из %d частей превышает предел 10000", len(completed))
	}
	var assembled []byte
	for n := int32(1); n <= int32(len(completed)); n++ {
		data, ok := parts[n]
		if !ok {
			return "", fmt.Errorf("часть %d не загружена", n)
		}
		assembled = append(assembled, data...)
	}
	m.objects[key] = assembled
	delete(m.uploads, uploadID)
	return key, nil
}

func (m *memObjectStore) AbortMultipartUpload(_ context.Context, _, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.uploads, uploadID)
	m.aborted = append(m.aborted, uploadID)
	return nil
}

func (m *memObjectStore) DeleteObject(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memObjectStore) PresignGet(_ context.Context, locator string, _ time.Duration) (string, error) {
	if m.presignFail[locator] {
		return "", fmt.Errorf("эмулированный провал presign %s", locator)
	}
	return "https://assets.example.com/" + locator, nil
}

func (m *memObjectStore) PresignExportGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://export.example.com/" + key, nil
}

func (m *memObjectStore) object(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	return data, ok
}

// memQueue — очередь в памяти поверх буферизованных каналов.
type memQueue struct {
	tasks   chan queue.PartTask
	results chan queue.PartResult
}

func newMemQueue() *memQueue {
	return &memQueue{
		tasks:   make(chan queue.PartTask, 1000),
		results: make(chan queue.PartResult, 1000),
	}
}

func (q *memQueue) SendTask(_ context.Context, task queue.PartTask) error {
	q.tasks <- task
	return nil
}

func (q *memQueue) ReceiveTasks(ctx context.Context, max int32) ([]queue.ReceivedTask, error) {
	select {
	case task := <-q.tasks:
		return []queue.ReceivedTask{{Task: task, Receipt: task.CorrelationID}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *memQueue) DeleteTask(_ context.Context, _ string) error { return nil }

func (q *memQueue) SendResult(_ context.Context, result queue.PartResult) error {
	q.results <- result
	return nil
}

func (q *memQueue) ReceiveResults(ctx context.Context, max int32) ([]queue.ReceivedResult, error) {
	select {
	case result := <-q.results:
		return []queue.ReceivedResult{{Result: result, Receipt: result.CorrelationID}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *memQueue) DeleteResult(_ context.Context, _ string) error { return nil }
