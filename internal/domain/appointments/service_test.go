package appointments

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/carebridge/carebridge/internal/domain/messaging"
)

// -- Mocks --

type mockApptRepo struct {
	items map[uuid.UUID]*Appointment
}

func newMockApptRepo() *mockApptRepo {
	return &mockApptRepo{items: make(map[uuid.UUID]*Appointment)}
}

func (m *mockApptRepo) Create(_ context.Context, a *Appointment) error {
	a.ID = uuid.New()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	m.items[a.ID] = a
	return nil
}

func (m *mockApptRepo) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) Transition(_ context.Context, id uuid.UUID, status string) (*Appointment, error) {
	a, ok := m.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	if a.Status != StatusPending {
		return nil, ErrNotPending
	}
	a.Status = status
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) sorted(keep func(a *Appointment) bool) []*Appointment {
	var out []*Appointment
	for _, a := range m.items {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func (m *mockApptRepo) ListForDoctor(_ context.Context, doctorID uuid.UUID, status string, limit, offset int) ([]*Appointment, int, error) {
	out := m.sorted(func(a *Appointment) bool {
		return a.DoctorID == doctorID && (status == "" || a.Status == status)
	})
	return out, len(out), nil
}

func (m *mockApptRepo) ListForPatient(_ context.Context, patientID uuid.UUID, doctorID *uuid.UUID, limit, offset int) ([]*Appointment, int, error) {
	out := m.sorted(func(a *Appointment) bool {
		return a.PatientID == patientID && (doctorID == nil || a.DoctorID == *doctorID)
	})
	return out, len(out), nil
}

func (m *mockApptRepo) CancelPastPending(_ context.Context, cutoff time.Time) (int64, error) {
	var n int64
	for _, a := range m.items {
		if a.Status == StatusPending && a.Date.Before(cutoff) {
			a.Status = StatusCancelled
			n++
		}
	}
	return n, nil
}

type fakeLinks map[[2]uuid.UUID]bool

func (f fakeLinks) IsActiveLink(_ context.Context, doctorID, patientID uuid.UUID) (bool, error) {
	return f[[2]uuid.UUID{doctorID, patientID}], nil
}

type fakePoster struct {
	posted []string
	err    error
}

func (f *fakePoster) Post(_ context.Context, senderID, doctorID, patientID uuid.UUID, content string) (*messaging.ChatMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.posted = append(f.posted, content)
	return &messaging.ChatMessage{ID: uuid.New(), SenderID: senderID, DoctorID: doctorID, PatientID: patientID, Content: content}, nil
}

var fixedNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	svc     *Service
	repo    *mockApptRepo
	poster  *fakePoster
	doctor  uuid.UUID
	patient uuid.UUID
}

func newTestEnv() *testEnv {
	env := &testEnv{
		repo:    newMockApptRepo(),
		poster:  &fakePoster{},
		doctor:  uuid.New(),
		patient: uuid.New(),
	}
	links := fakeLinks{{env.doctor, env.patient}: true}
	env.svc = NewService(env.repo, links, env.poster, zerolog.Nop())
	env.svc.now = func() time.Time { return fixedNow }
	return env
}

func (env *testEnv) request(t *testing.T, at time.Time) *Appointment {
	t.Helper()
	a, err := env.svc.Request(context.Background(), env.patient, RequestInput{DoctorID: env.doctor, Date: at, Notes: " follow-up "})
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	return a
}

func TestRequest_CreatesPendingAndAnnounces(t *testing.T) {
	env := newTestEnv()
	at := fixedNow.Add(48 * time.Hour)
	a := env.request(t, at)

	if a.Status != StatusPending || a.Notes != "follow-up" {
		t.Errorf("unexpected appointment %+v", a)
	}
	if len(env.poster.posted) != 1 || env.poster.posted[0] != Announcement(at) {
		t.Errorf("expected announcement, got %v", env.poster.posted)
	}
	if !strings.HasPrefix(env.poster.posted[0], "Appointment requested for ") {
		t.Errorf("unexpected announcement text %q", env.poster.posted[0])
	}
}

func TestRequest_PastDateRejectedBeforeWrite(t *testing.T) {
	env := newTestEnv()
	for _, at := range []time.Time{fixedNow.Add(-time.Hour), fixedNow, {}} {
		_, err := env.svc.Request(context.Background(), env.patient, RequestInput{DoctorID: env.doctor, Date: at})
		if !errors.Is(err, ErrValidation) {
			t.Errorf("date %v: expected ErrValidation, got %v", at, err)
		}
	}
	if len(env.repo.items) != 0 || len(env.poster.posted) != 0 {
		t.Error("validation failure must not write anything")
	}
}

func TestRequest_RequiresCareLink(t *testing.T) {
	env := newTestEnv()
	_, err := env.svc.Request(context.Background(), env.patient, RequestInput{DoctorID: uuid.New(), Date: fixedNow.Add(time.Hour)})
	if !errors.Is(err, ErrNoCareLink) {
		t.Fatalf("expected ErrNoCareLink, got %v", err)
	}
}

func TestRequest_AnnouncementFailureKeepsAppointment(t *testing.T) {
	env := newTestEnv()
	env.poster.err = errors.New("chat down")
	a := env.request(t, fixedNow.Add(time.Hour))
	if _, ok := env.repo.items[a.ID]; !ok {
		t.Fatal("appointment must survive a failed announcement")
	}
}

func TestRespond_OnlyFromPending(t *testing.T) {
	env := newTestEnv()
	a := env.request(t, fixedNow.Add(time.Hour))

	got, err := env.svc.Respond(context.Background(), env.doctor, a.ID, StatusAccepted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusAccepted {
		t.Errorf("expected accepted, got %s", got.Status)
	}

	for _, status := range []string{StatusAccepted, StatusRejected} {
		if _, err := env.svc.Respond(context.Background(), env.doctor, a.ID, status); !errors.Is(err, ErrNotPending) {
			t.Errorf("second respond(%s): expected ErrNotPending, got %v", status, err)
		}
	}
	if env.repo.items[a.ID].Status != StatusAccepted {
		t.Error("status must remain accepted after the rejected second call")
	}
}

func TestRespond_Rejections(t *testing.T) {
	env := newTestEnv()
	a := env.request(t, fixedNow.Add(time.Hour))
	ctx := context.Background()

	if _, err := env.svc.Respond(ctx, env.doctor, a.ID, StatusCancelled); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation, got %v", err)
	}
	if _, err := env.svc.Respond(ctx, uuid.New(), a.ID, StatusAccepted); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	if _, err := env.svc.Respond(ctx, env.doctor, uuid.New(), StatusAccepted); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if env.repo.items[a.ID].Status != StatusPending {
		t.Error("rejected responses must not change status")
	}
}

func TestCancel(t *testing.T) {
	env := newTestEnv()
	a := env.request(t, fixedNow.Add(time.Hour))
	ctx := context.Background()

	if _, err := env.svc.Cancel(ctx, uuid.New(), a.ID); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
	got, err := env.svc.Cancel(ctx, env.patient, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got.Status)
	}
	if _, err := env.svc.Respond(ctx, env.doctor, a.ID, StatusAccepted); !errors.Is(err, ErrNotPending) {
		t.Errorf("cancelled appointment must not be accepted, got %v", err)
	}
}

func TestListOrderedByDate(t *testing.T) {
	env := newTestEnv()
	late := env.request(t, fixedNow.Add(72*time.Hour))
	early := env.request(t, fixedNow.Add(24*time.Hour))

	items, total, err := env.svc.ListForDoctor(context.Background(), env.doctor, "", 20, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || items[0].ID != early.ID || items[1].ID != late.ID {
		t.Error("expected date ascending order")
	}
	if _, _, err := env.svc.ListForDoctor(context.Background(), env.doctor, "bogus", 20, 0); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for unknown status, got %v", err)
	}

	other := uuid.New()
	items, _, _ = env.svc.ListForPatient(context.Background(), env.patient, &other, 20, 0)
	if len(items) != 0 {
		t.Error("doctor filter must exclude other doctors")
	}
}

func TestExpireStale(t *testing.T) {
	env := newTestEnv()
	past := env.request(t, fixedNow.Add(time.Hour))
	future := env.request(t, fixedNow.Add(48*time.Hour))
	accepted := env.request(t, fixedNow.Add(2*time.Hour))
	if _, err := env.svc.Respond(context.Background(), env.doctor, accepted.ID, StatusAccepted); err != nil {
		t.Fatalf("respond: %v", err)
	}

	env.svc.now = func() time.Time { return fixedNow.Add(24 * time.Hour) }
	if err := env.svc.ExpireStale(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if env.repo.items[past.ID].Status != StatusCancelled {
		t.Error("past pending appointment must be cancelled")
	}
	if env.repo.items[future.ID].Status != StatusPending {
		t.Error("future appointment must stay pending")
	}
	if env.repo.items[accepted.ID].Status != StatusAccepted {
		t.Error("accepted appointment must not move")
	}
}
