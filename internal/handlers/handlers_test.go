package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/listafacil/apiserver/internal/services"
	"github.com/listafacil/apiserver/internal/store"
	"github.com/listafacil/apiserver/types"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	testSecret   = "handlers-test-secret"
	testPassword = "secret123"
)

// envelope mirrors Response with raw data for per-test decoding.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type memUserRepo struct {
	nextID int
	users  map[int]types.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[int]types.User)}
}

func (r *memUserRepo) GetByID(ctx context.Context, id int) (types.User, error) {
	user, ok := r.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (r *memUserRepo) GetByUsername(ctx context.Context, username string) (types.User, error) {
	for _, user := range r.users {
		if user.Username == username {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (r *memUserRepo) List(ctx context.Context) ([]types.User, error) {
	users := make([]types.User, 0, len(r.users))
	for id := 1; id <= r.nextID; id++ {
		if user, ok := r.users[id]; ok {
			users = append(users, user)
		}
	}
	return users, nil
}

func (r *memUserRepo) Create(ctx context.Context, user types.User) (types.User, error) {
	if taken, _ := r.UsernameOrEmailTaken(ctx, user.Username, user.Email, 0); taken {
		return types.User{}, store.ErrDuplicate
	}
	r.nextID++
	user.ID = r.nextID
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Update(ctx context.Context, user types.User) (types.User, error) {
	if _, ok := r.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	r.users[user.ID] = user
	return user, nil
}

func (r *memUserRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) CountActiveAdmins(ctx context.Context) (int, error) {
	count := 0
	for _, user := range r.users {
		if user.Role == types.RoleAdmin && user.IsActive {
			count++
		}
	}
	return count, nil
}

func (r *memUserRepo) UsernameOrEmailTaken(ctx context.Context, username, email string, excludeID int) (bool, error) {
	for _, user := range r.users {
		if user.ID == excludeID {
			continue
		}
		if user.Username == username || user.Email == email {
			return true, nil
		}
	}
	return false, nil
}

type memEventRepo struct {
	nextID int
	events map[int]types.Event
	stats  map[int]types.EventStats
}

func newMemEventRepo() *memEventRepo {
	return &memEventRepo{
		events: make(map[int]types.Event),
		stats:  make(map[int]types.EventStats),
	}
}

func (r *memEventRepo) List(ctx context.Context) ([]types.Event, error) {
	events := make([]types.Event, 0, len(r.events))
	for id := 1; id <= r.nextID; id++ {
		if event, ok := r.events[id]; ok {
			events = append(events, event)
		}
	}
	return events, nil
}

func (r *memEventRepo) ListActive(ctx context.Context) ([]types.Event, error) {
	events := make([]types.Event, 0)
	for id := 1; id <= r.nextID; id++ {
		if event, ok := r.events[id]; ok && event.Status == types.EventActive {
			events = append(events, event)
		}
	}
	return events, nil
}

func (r *memEventRepo) GetByID(ctx context.Context, id int) (types.Event, error) {
	event, ok := r.events[id]
	if !ok {
		return types.Event{}, store.ErrNotFound
	}
	return event, nil
}

func (r *memEventRepo) Create(ctx context.Context, event types.Event) (types.Event, error) {
	r.nextID++
	event.ID = r.nextID
	event.CreatedAt = time.Now()
	event.UpdatedAt = event.CreatedAt
	r.events[event.ID] = event
	return event, nil
}

func (r *memEventRepo) Update(ctx context.Context, event types.Event) (types.Event, error) {
	if _, ok := r.events[event.ID]; !ok {
		return types.Event{}, store.ErrNotFound
	}
	r.events[event.ID] = event
	return event, nil
}

func (r *memEventRepo) Delete(ctx context.Context, id int) error {
	if _, ok := r.events[id]; !ok {
		return store.ErrNotFound
	}
	delete(r.events, id)
	return nil
}

func (r *memEventRepo) Stats(ctx context.Context, id int) (types.EventStats, error) {
	if _, ok := r.events[id]; !ok {
		return types.EventStats{}, store.ErrNotFound
	}
	return r.stats[id], nil
}

type memRegistrantRepo struct {
	nextID int
	rows   map[int]types.Registrant
}

func newMemRegistrantRepo() *memRegistrantRepo {
	return &memRegistrantRepo{rows: make(map[int]types.Registrant)}
}

func (r *memRegistrantRepo) GetByID(ctx context.Context, id int) (types.Registrant, error) {
	row, ok := r.rows[id]
	if !ok {
		return types.Registrant{}, store.ErrNotFound
	}
	return row, nil
}

func (r *memRegistrantRepo) ListByEvent(ctx context.Context, eventID int, status types.CheckinStatus, search string) ([]types.Registrant, error) {
	matches := make([]types.Registrant, 0)
	for id := 1; id <= r.nextID; id++ {
		row, ok := r.rows[id]
		if !ok || row.EventID != eventID {
			continue
		}
		if status != "" && row.CheckinStatus != status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(row.Name), strings.ToLower(search)) {
			continue
		}
		matches = append(matches, row)
	}
	return matches, nil
}

func (r *memRegistrantRepo) Search(ctx context.Context, eventID int, name string, limit int) ([]types.Registrant, error) {
	matches, err := r.ListByEvent(ctx, eventID, "", name)
	if err != nil {
		return nil, err
	}
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (r *memRegistrantRepo) CountByEvent(ctx context.Context, eventID int) (int, error) {
	count := 0
	for _, row := range r.rows {
		if row.EventID == eventID {
			count++
		}
	}
	return count, nil
}

func (r *memRegistrantRepo) ExistsByName(ctx context.Context, eventID int, name string) (bool, error) {
	for _, row := range r.rows {
		if row.EventID == eventID && strings.EqualFold(row.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRegistrantRepo) Create(ctx context.Context, reg types.Registrant) (types.Registrant, error) {
	if exists, _ := r.ExistsByName(ctx, reg.EventID, reg.Name); exists {
		return types.Registrant{}, store.ErrDuplicate
	}
	r.nextID++
	reg.ID = r.nextID
	reg.CheckinStatus = types.CheckinPending
	r.rows[reg.ID] = reg
	return reg, nil
}

func (r *memRegistrantRepo) UpdateCheckin(ctx context.Context, id int, status types.CheckinStatus, notes *string, checkedBy int) (types.Registrant, error) {
	row, ok := r.rows[id]
	if !ok {
		return types.Registrant{}, store.ErrNotFound
	}
	row.CheckinStatus = status
	if status == types.CheckinPending {
		row.CheckinTime = nil
		row.CheckedBy = nil
	} else {
		now := time.Now()
		row.CheckinTime = &now
		row.CheckedBy = &checkedBy
	}
	if notes != nil {
		row.Notes = *notes
	}
	r.rows[id] = row
	return row, nil
}

// testEnv wires the full route table over in-memory repositories, the same
// way the server package does against postgres.
type testEnv struct {
	router      *chi.Mux
	users       *memUserRepo
	events      *memEventRepo
	registrants *memRegistrantRepo
}

func newTestEnv() *testEnv {
	users := newMemUserRepo()
	events := newMemEventRepo()
	registrants := newMemRegistrantRepo()

	userService := services.NewUserService(users)
	eventService := services.NewEventService(events)
	registrantService := services.NewRegistrantService(registrants, events, nil, zerolog.Nop())
	reportService := services.NewReportService(events, registrants, nil)

	auth := Authenticate(userService, testSecret)

	router := chi.NewRouter()
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, userService, testSecret, auth)
	})
	router.Route("/events", func(r chi.Router) {
		EventRouter(r, eventService, reportService, auth)
	})
	router.Route("/name-lists", func(r chi.Router) {
		NameListRouter(r, registrantService, auth, nil)
	})
	router.Route("/users", func(r chi.Router) {
		UserRouter(r, userService, auth)
	})

	return &testEnv{
		router:      router,
		users:       users,
		events:      events,
		registrants: registrants,
	}
}

func (e *testEnv) seedUser(t *testing.T, username string, role types.Role, active bool) types.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user, err := e.users.Create(context.Background(), types.User{
		Username:     username,
		Email:        username + "@example.com",
		FullName:     "Test " + username,
		Role:         role,
		PasswordHash: string(hash),
		IsActive:     active,
	})
	if err != nil {
		t.Fatalf("seed user %s: %v", username, err)
	}
	return user
}

func (e *testEnv) seedEvent(t *testing.T, event types.Event) types.Event {
	t.Helper()

	if event.Status == "" {
		event.Status = types.EventActive
	}
	created, err := e.events.Create(context.Background(), event)
	if err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return created
}

func (e *testEnv) login(t *testing.T, username string) string {
	t.Helper()

	rec, env := e.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"username": username,
		"password": testPassword,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: status %d (%s)", username, rec.Code, env.Error)
	}

	var parsed AuthResponse
	if err := json.Unmarshal(env.Data, &parsed); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	if parsed.Token == "" {
		t.Fatalf("login %s: empty token", username)
	}
	return parsed.Token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("decode response envelope: %v", err)
		}
	}
	return rec, env
}
