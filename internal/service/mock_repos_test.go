package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gorm.io/gorm"

	"acadcore/cbcs/internal/model"
	"acadcore/cbcs/internal/repository"
	pkgerrors "acadcore/cbcs/pkg/errors"
)

// ── 内存存储（所有 mock 仓储共享，状态迁移在锁内完成以模拟条件 UPDATE）──

type mockStore struct {
	mu          sync.Mutex
	seq         int
	cycles      map[string]*model.AllocationCycle
	subjects    map[string][]model.SubjectOffering // cycle_id → subjects
	prefs       []model.StudentPreference
	assignments []model.FinalAssignment

	// 故障注入
	assignmentCreateErr error
	tryBeginErr         error
}

func newMockStore() *mockStore {
	return &mockStore{
		cycles:   make(map[string]*model.AllocationCycle),
		subjects: make(map[string][]model.SubjectOffering),
	}
}

func (s *mockStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

// newMockRepository 返回未绑定数据库连接的聚合：BeginTx 返回 nil 事务
func newMockRepository(store *mockStore) *repository.Repository {
	return &repository.Repository{
		Cycle:      &mockCycleRepo{s: store},
		Subject:    &mockSubjectRepo{s: store},
		Preference: &mockPreferenceRepo{s: store},
		Assignment: &mockAssignmentRepo{s: store},
	}
}

func (s *mockStore) distinctSubmitters(cycleID string) int {
	seen := map[string]struct{}{}
	for _, p := range s.prefs {
		if p.CycleID == cycleID {
			seen[p.StudentID] = struct{}{}
		}
	}
	return len(seen)
}

func (s *mockStore) cycle(id string) model.AllocationCycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.cycles[id]
}

func (s *mockStore) setState(id, state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles[id].State = state
}

// ── Mock CycleRepository ──

type mockCycleRepo struct {
	s *mockStore
}

func (m *mockCycleRepo) Create(_ context.Context, cycle *model.AllocationCycle) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	if cycle.CycleID == "" {
		cycle.CycleID = m.s.nextID("cycle")
	}
	for i := range cycle.Subjects {
		subj := &cycle.Subjects[i]
		if subj.SubjectOfferingID == "" {
			subj.SubjectOfferingID = m.s.nextID("subj")
		}
		subj.CycleID = cycle.CycleID
		for j := range subj.Sections {
			sec := &subj.Sections[j]
			if sec.SectionCapacityID == "" {
				sec.SectionCapacityID = m.s.nextID("cap")
			}
			sec.SubjectOfferingID = subj.SubjectOfferingID
		}
	}
	cycle.CreatedAt = time.Now()

	stored := *cycle
	stored.Subjects = nil
	m.s.cycles[cycle.CycleID] = &stored
	m.s.subjects[cycle.CycleID] = append([]model.SubjectOffering(nil), cycle.Subjects...)
	return nil
}

func (m *mockCycleRepo) GetByID(_ context.Context, id string) (*model.AllocationCycle, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.cycles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockCycleRepo) GetDetail(ctx context.Context, id string) (*model.AllocationCycle, error) {
	c, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.s.mu.Lock()
	c.Subjects = append([]model.SubjectOffering(nil), m.s.subjects[id]...)
	m.s.mu.Unlock()
	return c, nil
}

func (m *mockCycleRepo) GetForUpdate(ctx context.Context, id string) (*model.AllocationCycle, error) {
	return m.GetByID(ctx, id)
}

func (m *mockCycleRepo) TryBeginFinalize(_ context.Context, id string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.tryBeginErr != nil {
		return false, m.s.tryBeginErr
	}
	c, ok := m.s.cycles[id]
	if !ok || c.State != model.CycleStateOpen {
		return false, nil
	}
	if m.s.distinctSubmitters(id) < c.ExpectedTotal {
		return false, nil
	}
	now := time.Now()
	c.State = model.CycleStateFinalizing
	c.FinalizingAt = &now
	c.RunCount++
	return true, nil
}

func (m *mockCycleRepo) ForceBeginFinalize(_ context.Context, id string) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.cycles[id]
	if !ok || c.State != model.CycleStateOpen {
		return false, nil
	}
	now := time.Now()
	c.State = model.CycleStateFinalizing
	c.FinalizingAt = &now
	c.RunCount++
	return true, nil
}

func (m *mockCycleRepo) MarkComplete(_ context.Context, id string, lastError string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.cycles[id]
	if !ok || c.State != model.CycleStateFinalizing {
		return pkgerrors.ErrOptimisticLock
	}
	now := time.Now()
	c.State = model.CycleStateComplete
	c.CompletedAt = &now
	c.LastError = lastError
	return nil
}

func (m *mockCycleRepo) RevertToOpen(_ context.Context, id string, lastError string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.cycles[id]
	if !ok || c.State != model.CycleStateFinalizing {
		return pkgerrors.ErrOptimisticLock
	}
	c.State = model.CycleStateOpen
	c.FinalizingAt = nil
	c.LastError = lastError
	return nil
}

func (m *mockCycleRepo) ListStuckFinalizing(_ context.Context, before time.Time) ([]model.AllocationCycle, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.AllocationCycle
	for _, c := range m.s.cycles {
		if c.State == model.CycleStateFinalizing && c.FinalizingAt != nil && c.FinalizingAt.Before(before) {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (m *mockCycleRepo) ClaimStuck(_ context.Context, id string, before time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.cycles[id]
	if !ok || c.State != model.CycleStateFinalizing || c.FinalizingAt == nil || !c.FinalizingAt.Before(before) {
		return false, nil
	}
	now := time.Now()
	c.FinalizingAt = &now
	return true, nil
}

// ── Mock SubjectRepository ──

type mockSubjectRepo struct {
	s *mockStore
}

func (m *mockSubjectRepo) ListByCycle(_ context.Context, cycleID string) ([]model.SubjectOffering, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return append([]model.SubjectOffering(nil), m.s.subjects[cycleID]...), nil
}

// ── Mock PreferenceRepository ──

type mockPreferenceRepo struct {
	s *mockStore
}

func (m *mockPreferenceRepo) BatchCreate(_ context.Context, prefs []model.StudentPreference) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, p := range prefs {
		for _, existing := range m.s.prefs {
			if existing.CycleID == p.CycleID && existing.StudentID == p.StudentID &&
				existing.SubjectOfferingID == p.SubjectOfferingID {
				return gorm.ErrDuplicatedKey
			}
		}
	}
	for _, p := range prefs {
		p.PreferenceID = m.s.nextID("pref")
		m.s.prefs = append(m.s.prefs, p)
	}
	return nil
}

func (m *mockPreferenceRepo) CountByStudent(_ context.Context, cycleID, studentID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, p := range m.s.prefs {
		if p.CycleID == cycleID && p.StudentID == studentID {
			n++
		}
	}
	return n, nil
}

func (m *mockPreferenceRepo) CountDistinctSubmitters(_ context.Context, cycleID string) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(m.s.distinctSubmitters(cycleID)), nil
}

func (m *mockPreferenceRepo) ListBySubject(_ context.Context, subjectOfferingID string) ([]model.StudentPreference, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.StudentPreference
	for _, p := range m.s.prefs {
		if p.SubjectOfferingID == subjectOfferingID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPreferenceRepo) ListByStudent(_ context.Context, cycleID, studentID string) ([]model.StudentPreference, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.StudentPreference
	for _, p := range m.s.prefs {
		if p.CycleID == cycleID && p.StudentID == studentID {
			out = append(out, p)
		}
	}
	return out, nil
}

// ── Mock AssignmentRepository ──

type mockAssignmentRepo struct {
	s *mockStore
}

func (m *mockAssignmentRepo) DeleteBySubject(_ context.Context, subjectOfferingID string) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	kept := m.s.assignments[:0]
	for _, a := range m.s.assignments {
		if a.SubjectOfferingID != subjectOfferingID {
			kept = append(kept, a)
		}
	}
	m.s.assignments = kept
	return nil
}

func (m *mockAssignmentRepo) BatchCreate(_ context.Context, assignments []model.FinalAssignment) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	if m.s.assignmentCreateErr != nil {
		return m.s.assignmentCreateErr
	}
	m.s.assignments = append(m.s.assignments, assignments...)
	return nil
}

func (m *mockAssignmentRepo) ListByCycle(_ context.Context, cycleID string) ([]model.FinalAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.FinalAssignment
	for _, a := range m.s.assignments {
		if a.CycleID == cycleID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAssignmentRepo) ListByStudent(_ context.Context, cycleID, studentID string) ([]model.FinalAssignment, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []model.FinalAssignment
	for _, a := range m.s.assignments {
		if a.CycleID == cycleID && a.StudentID == studentID {
			out = append(out, a)
		}
	}
	return out, nil
}

// ── Mock 派发器 ──

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []string
}

func (d *recordingDispatcher) Dispatch(_ context.Context, cycleID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, cycleID)
	return true
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.calls)
}

// ── 测试数据 ──

// seedCycle 创建一个单课程轮次，课程 subj-1 下依次为班级 A(cap=capA)、B(cap=capB)
func seedCycle(store *mockStore, expectedTotal int, policy string, capA, capB int) *model.AllocationCycle {
	cycle := &model.AllocationCycle{
		CycleID:       "cycle-1",
		Name:          "CSE 2026 Sem 5",
		ExpectedTotal: expectedTotal,
		State:         model.CycleStateOpen,
		Policy:        policy,
		Subjects: []model.SubjectOffering{{
			SubjectOfferingID: "subj-1",
			CourseCode:        "CS-E1",
			Sections: []model.SectionCapacity{
				{SectionCapacityID: "cap-A", SectionID: "A", StaffID: "staff-A", MaxCapacity: capA, SortOrder: 0},
				{SectionCapacityID: "cap-B", SectionID: "B", StaffID: "staff-B", MaxCapacity: capB, SortOrder: 1},
			},
		}},
	}
	_ = (&mockCycleRepo{s: store}).Create(context.Background(), cycle)
	return cycle
}
