package workflow

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/recordgate/internal/model"
	"github.com/hitoshi/recordgate/internal/storage"
)

// fakeRecordRepo はメモリ上でレコードを保持するRecordRepositoryのテスト実装。
// owners に登録されたアカウントのみ提出者として解決される。
type fakeRecordRepo struct {
	mu        sync.Mutex
	records   map[string]model.Record
	owners    map[string]model.OwnerIdentity
	createErr error
}

func newFakeRecordRepo() *fakeRecordRepo {
	return &fakeRecordRepo{
		records: make(map[string]model.Record),
		owners:  make(map[string]model.OwnerIdentity),
	}
}

func (f *fakeRecordRepo) addOwner(a *model.Account) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owners[a.ID] = model.OwnerIdentity{ID: a.ID, Name: a.Name, Email: a.Email}
}

func (f *fakeRecordRepo) Create(_ context.Context, record *model.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.records[record.ID] = *record
	return nil
}

func (f *fakeRecordRepo) FindByID(_ context.Context, id string) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

func (f *fakeRecordRepo) sorted() []model.Record {
	out := make([]model.Record, 0, len(f.records))
	for _, r := range f.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (f *fakeRecordRepo) ListByOwner(_ context.Context, ownerID string) ([]*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*model.Record, 0)
	for _, r := range f.sorted() {
		if r.OwnerID == ownerID {
			r := r
			result = append(result, &r)
		}
	}
	return result, nil
}

func (f *fakeRecordRepo) ListAllWithOwner(_ context.Context) ([]model.ReviewedRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]model.ReviewedRecord, 0, len(f.records))
	for _, r := range f.sorted() {
		rr := model.ReviewedRecord{Record: r}
		if owner, ok := f.owners[r.OwnerID]; ok {
			owner := owner
			rr.Owner = &owner
		}
		result = append(result, rr)
	}
	return result, nil
}

func (f *fakeRecordRepo) UpdateStatus(_ context.Context, id string, status model.RecordStatus, remarks string, updatedAt time.Time) (*model.Record, model.RecordStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[id]
	if !ok {
		return nil, "", nil
	}
	previous := r.Status
	r.Status = status
	r.Remarks = remarks
	r.UpdatedAt = updatedAt
	f.records[id] = r
	return &r, previous, nil
}

func (f *fakeRecordRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.records)
}

// failingStore は常に保存に失敗するObjectStore。
type failingStore struct {
	calls int
}

func (s *failingStore) Put(context.Context, storage.Object) (string, error) {
	s.calls++
	return "", errors.New("bucket unavailable")
}

func (s *failingStore) Ping(context.Context) error { return errors.New("bucket unavailable") }

func (s *failingStore) Name() string { return "failing" }

// recordingMetrics はワークフローが記録したメトリクスを保持する。
type recordingMetrics struct {
	mu             sync.Mutex
	uploads        map[string]int
	uploadFailures map[string]int
	transitions    map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		uploads:        map[string]int{},
		uploadFailures: map[string]int{},
		transitions:    map[string]int{},
	}
}

func (m *recordingMetrics) RecordHTTPStatus(int)               {}
func (m *recordingMetrics) RecordRequestLatency(time.Duration) {}
func (m *recordingMetrics) RecordLoginFailure()                {}

func (m *recordingMetrics) RecordUpload(kind string, _ int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploads[kind]++
}

func (m *recordingMetrics) RecordUploadFailure(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadFailures[reason]++
}

func (m *recordingMetrics) RecordTransition(status string, override bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := status
	if override {
		key += "/override"
	}
	m.transitions[key]++
}
