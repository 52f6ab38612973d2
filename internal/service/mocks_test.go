package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/internal/models"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/jobs"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/lock"
	"github.com/ShivanshGhelani/CampusConnect-v2-sub004/pkg/notify"
)

// fakeEventStore is an in-memory event repository with the same CAS update
// semantics as the SQL implementation.
type fakeEventStore struct {
	mu       sync.Mutex
	events   map[string]*models.Event
	sessions map[string][]models.Session

	updateErr map[string]error
	failCAS   map[string]bool
	findErr   error
}

func newFakeEventStore(events ...*models.Event) *fakeEventStore {
	f := &fakeEventStore{
		events:    make(map[string]*models.Event),
		sessions:  make(map[string][]models.Session),
		updateErr: make(map[string]error),
		failCAS:   make(map[string]bool),
	}
	for _, e := range events {
		copied := *e
		f.events[e.ID] = &copied
	}
	return f
}

func (f *fakeEventStore) FindByID(ctx context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	event, ok := f.events[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *event
	return &copied, nil
}

func (f *fakeEventStore) ListNonTerminal(ctx context.Context) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	var out []models.Event
	for _, event := range f.events {
		if event.Status.Terminal() {
			continue
		}
		out = append(out, *event)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeEventStore) UpdateStatus(ctx context.Context, id string, from, to models.EventStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.updateErr[id]; err != nil {
		return false, err
	}
	if f.failCAS[id] {
		return false, nil
	}
	event, ok := f.events[id]
	if !ok || event.Status != from {
		return false, nil
	}
	event.Status = to
	return true, nil
}

func (f *fakeEventStore) ListSessions(ctx context.Context, eventID string) ([]models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Session(nil), f.sessions[eventID]...), nil
}

func (f *fakeEventStore) FindSession(ctx context.Context, sessionID string) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sessions := range f.sessions {
		for _, session := range sessions {
			if session.ID == sessionID {
				copied := session
				return &copied, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeEventStore) status(id string) models.EventStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events[id].Status
}

// fakeRegistrationStore is an in-memory registration repository.
type fakeRegistrationStore struct {
	mu   sync.Mutex
	regs map[string]*models.Registration

	createErr     error
	failCreateFor map[string]error
	listErr       error
}

func newFakeRegistrationStore(regs ...*models.Registration) *fakeRegistrationStore {
	f := &fakeRegistrationStore{
		regs:          make(map[string]*models.Registration),
		failCreateFor: make(map[string]error),
	}
	for _, r := range regs {
		copied := *r
		f.regs[r.ID] = &copied
	}
	return f
}

func (f *fakeRegistrationStore) Create(ctx context.Context, reg *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if err := f.failCreateFor[reg.ParticipantID]; err != nil {
		return err
	}
	copied := *reg
	f.regs[reg.ID] = &copied
	return nil
}

func (f *fakeRegistrationStore) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *reg
	return &copied, nil
}

func (f *fakeRegistrationStore) ExistsActive(ctx context.Context, participantID, eventID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, reg := range f.regs {
		if reg.ParticipantID == participantID && reg.EventID == eventID && reg.Status == models.RegistrationStatusActive {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRegistrationStore) CountActive(ctx context.Context, eventID string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, reg := range f.regs {
		if reg.EventID == eventID && reg.Status == models.RegistrationStatusActive {
			count++
		}
	}
	return count, nil
}

func (f *fakeRegistrationStore) ListByEvent(ctx context.Context, eventID string) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Registration
	for _, reg := range f.regs {
		if reg.EventID == eventID {
			out = append(out, *reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRegistrationStore) ListByTeam(ctx context.Context, eventID, teamID string) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Registration
	for _, reg := range f.regs {
		if reg.EventID == eventID && reg.TeamID != nil && *reg.TeamID == teamID && reg.Status == models.RegistrationStatusActive {
			out = append(out, *reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRegistrationStore) ListByParticipant(ctx context.Context, participantID string) ([]models.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.Registration
	for _, reg := range f.regs {
		if reg.ParticipantID == participantID {
			out = append(out, *reg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeRegistrationStore) UpdateStatus(ctx context.Context, id string, status models.RegistrationStatus, cancelledAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[id]
	if !ok {
		return sql.ErrNoRows
	}
	reg.Status = status
	reg.CancelledAt = cancelledAt
	return nil
}

func (f *fakeRegistrationStore) Reactivate(ctx context.Context, reg *models.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *reg
	f.regs[reg.ID] = &copied
	return nil
}

// fakeRefStore is an in-memory participation reference mirror.
type fakeRefStore struct {
	mu   sync.Mutex
	refs map[string]models.ParticipationRef

	upsertErr error
	upserts   int
	deletes   int
}

func newFakeRefStore(refs ...models.ParticipationRef) *fakeRefStore {
	f := &fakeRefStore{refs: make(map[string]models.ParticipationRef)}
	for _, ref := range refs {
		f.refs[ref.RegistrationID] = ref
	}
	return f
}

func (f *fakeRefStore) Upsert(ctx context.Context, ref *models.ParticipationRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.refs[ref.RegistrationID] = *ref
	f.upserts++
	return nil
}

func (f *fakeRefStore) ListByParticipant(ctx context.Context, participantID string) ([]models.ParticipationRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ParticipationRef
	for _, ref := range f.refs {
		if ref.ParticipantID == participantID {
			out = append(out, ref)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RegistrationID < out[j].RegistrationID })
	return out, nil
}

func (f *fakeRefStore) Delete(ctx context.Context, registrationID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.refs, registrationID)
	f.deletes++
	return nil
}

func (f *fakeRefStore) get(registrationID string) (models.ParticipationRef, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[registrationID]
	return ref, ok
}

// fakeAttendanceStore is an in-memory attendance record store keyed by
// (registration, session).
type fakeAttendanceStore struct {
	mu      sync.Mutex
	records map[string]models.AttendanceRecord
}

func newFakeAttendanceStore() *fakeAttendanceStore {
	return &fakeAttendanceStore{records: make(map[string]models.AttendanceRecord)}
}

func (f *fakeAttendanceStore) Upsert(ctx context.Context, record *models.AttendanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.RegistrationID+"/"+record.SessionID] = *record
	return nil
}

func (f *fakeAttendanceStore) ListByRegistration(ctx context.Context, registrationID string) ([]models.AttendanceRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.AttendanceRecord
	for _, record := range f.records {
		if record.RegistrationID == registrationID {
			out = append(out, record)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out, nil
}

// fakeLocker enforces real mutual exclusion per key: a second Acquire on a
// held key is declined until the lease is released. Keys may be preset as
// held to simulate contention.
type fakeLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	leases   map[*lock.Lease]string
	acquired []string
	released int

	acquireErr error
}

func newFakeLocker() *fakeLocker {
	return &fakeLocker{held: make(map[string]bool), leases: make(map[*lock.Lease]string)}
}

func (f *fakeLocker) Acquire(ctx context.Context, key string) (*lock.Lease, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.acquireErr != nil {
		return nil, false, f.acquireErr
	}
	if f.held[key] {
		return nil, false, nil
	}
	f.held[key] = true
	lease := &lock.Lease{}
	f.leases[lease] = key
	f.acquired = append(f.acquired, key)
	return lease, true, nil
}

func (f *fakeLocker) Release(ctx context.Context, lease *lock.Lease) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key, ok := f.leases[lease]; ok {
		delete(f.leases, lease)
		delete(f.held, key)
	}
	f.released++
	return nil
}

// fakeNotifier records published messages.
type fakeNotifier struct {
	mu         sync.Mutex
	statusMsgs []notify.StatusChanged
	regMsgs    []notify.RegistrationChanged

	publishErr error
}

func (f *fakeNotifier) PublishStatusChanged(ctx context.Context, msg notify.StatusChanged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.statusMsgs = append(f.statusMsgs, msg)
	return nil
}

func (f *fakeNotifier) PublishRegistrationChanged(ctx context.Context, msg notify.RegistrationChanged) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.regMsgs = append(f.regMsgs, msg)
	return nil
}

func (f *fakeNotifier) statusTargets() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.statusMsgs))
	for _, msg := range f.statusMsgs {
		out = append(out, msg.ToStatus)
	}
	return out
}

// fakeEnqueuer records queued repair jobs.
type fakeEnqueuer struct {
	mu   sync.Mutex
	jobs []jobs.RepairJob
}

func (f *fakeEnqueuer) Enqueue(job jobs.RepairJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

// stubOutcome returns a canned attendance outcome.
type stubOutcome struct {
	outcome models.AttendanceOutcome
	err     error
	calls   int
}

func (s *stubOutcome) ComputeOutcome(ctx context.Context, registrationID string) (*models.AttendanceOutcome, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	copied := s.outcome
	return &copied, nil
}
