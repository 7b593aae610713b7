//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/listafacil/apiserver/config"
	"github.com/listafacil/apiserver/internal/db"
	"github.com/listafacil/apiserver/internal/server"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

const (
	serverPort    = 18080
	adminUsername = "e2e_admin"
	adminPassword = "testpass123!"
)

func TestMain(m *testing.M) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	root, err := repoRoot()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to locate repo root: %v\n", err)
		os.Exit(1)
	}

	if err := dockerCompose(ctx, root, "up", "-d"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start docker compose: %v\n", err)
		os.Exit(1)
	}

	if err := waitForPostgres(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "postgres not ready: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := runMigrations(root); err != nil {
		fmt.Fprintf(os.Stderr, "failed to run migrations: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	if err := seedAdmin(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "failed to seed admin: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	srv, err := startServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to start server: %v\n", err)
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)
	if err := waitForHealth(ctx, baseURL+"/healthz"); err != nil {
		fmt.Fprintf(os.Stderr, "server not healthy: %v\n", err)
		_ = srv.Shutdown()
		_ = dockerCompose(context.Background(), root, "down")
		os.Exit(1)
	}

	code := m.Run()

	_ = srv.Shutdown()
	_ = dockerCompose(context.Background(), root, "down")
	os.Exit(code)
}

func TestRegistrationAndCheckinLifecycle(t *testing.T) {
	baseURL := fmt.Sprintf("http://localhost:%d", serverPort)

	token, err := login(t, baseURL, adminUsername, adminPassword)
	if err != nil {
		t.Fatalf("login: %v", err)
	}

	eventName := fmt.Sprintf("E2E Night %d", time.Now().UnixNano())
	event, err := createEvent(t, baseURL, token, eventName)
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
	if event.ID == 0 {
		t.Fatalf("expected event ID to be set")
	}

	result, err := submitNames(t, baseURL, event.ID, []string{"Alice Souza", "Bruno Lima", "Alice Souza"})
	if err != nil {
		t.Fatalf("submit names: %v", err)
	}
	if len(result.Inserted) != 2 {
		t.Fatalf("expected 2 inserted, got %d", len(result.Inserted))
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected the repeated name to be reported, got %v", result.Errors)
	}

	registrantID := result.Inserted[0].ID
	updated, err := checkin(t, baseURL, token, registrantID, "present")
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if updated.CheckinStatus != "present" {
		t.Fatalf("unexpected status: %q", updated.CheckinStatus)
	}
	if updated.CheckinTime == nil {
		t.Fatalf("expected checkin_time to be set")
	}

	stats, err := eventStats(t, baseURL, token, event.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalRegistrations != 2 || stats.PresentCount != 1 || stats.PendingCount != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

type eventResponse struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type registrantResponse struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	CheckinStatus string  `json:"checkin_status"`
	CheckinTime   *string `json:"checkin_time"`
}

type submitResponse struct {
	Inserted []registrantResponse `json:"inserted"`
	Errors   []string             `json:"errors"`
}

type statsResponse struct {
	TotalRegistrations int `json:"total_registrations"`
	PresentCount       int `json:"present_count"`
	PendingCount       int `json:"pending_count"`
}

func login(t *testing.T, baseURL, username, password string) (string, error) {
	t.Helper()

	data, err := postJSON(baseURL+"/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	}, http.StatusOK)
	if err != nil {
		return "", err
	}

	var parsed struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return "", err
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("missing token in login response")
	}
	return parsed.Token, nil
}

func createEvent(t *testing.T, baseURL, token, name string) (eventResponse, error) {
	t.Helper()

	data, err := postJSON(baseURL+"/events", token, map[string]any{
		"name":       name,
		"location":   "Main Hall",
		"event_date": time.Now().AddDate(0, 0, 7).Format("2006-01-02"),
		"capacity":   100,
	}, http.StatusCreated)
	if err != nil {
		return eventResponse{}, err
	}

	var parsed eventResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return eventResponse{}, err
	}
	return parsed, nil
}

func submitNames(t *testing.T, baseURL string, eventID int, names []string) (submitResponse, error) {
	t.Helper()

	data, err := postJSON(baseURL+"/name-lists/submit", "", map[string]any{
		"event_id": eventID,
		"names":    names,
	}, http.StatusCreated)
	if err != nil {
		return submitResponse{}, err
	}

	var parsed submitResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return submitResponse{}, err
	}
	return parsed, nil
}

func checkin(t *testing.T, baseURL, token string, registrantID int, status string) (registrantResponse, error) {
	t.Helper()

	body, err := json.Marshal(map[string]string{"status": status})
	if err != nil {
		return registrantResponse{}, err
	}

	url := fmt.Sprintf("%s/name-lists/%d/checkin", baseURL, registrantID)
	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(body))
	if err != nil {
		return registrantResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	data, err := doRequest(req, http.StatusOK)
	if err != nil {
		return registrantResponse{}, err
	}

	var parsed registrantResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return registrantResponse{}, err
	}
	return parsed, nil
}

func eventStats(t *testing.T, baseURL, token string, eventID int) (statsResponse, error) {
	t.Helper()

	url := fmt.Sprintf("%s/events/%d/stats", baseURL, eventID)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return statsResponse{}, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	data, err := doRequest(req, http.StatusOK)
	if err != nil {
		return statsResponse{}, err
	}

	var parsed statsResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return statsResponse{}, err
	}
	return parsed, nil
}

func postJSON(url, token string, payload any, wantStatus int) (json.RawMessage, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return doRequest(req, wantStatus)
}

func doRequest(req *http.Request, wantStatus int) (json.RawMessage, error) {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		msg, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s %s status %d: %s", req.Method, req.URL.Path, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, env.Error)
	}
	return env.Data, nil
}

func seedAdmin(ctx context.Context) error {
	setServerEnv()
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), bcrypt.MinCost)
	if err != nil {
		return err
	}

	execCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = conn.ExecContext(execCtx, `
		INSERT INTO users (username, email, full_name, role, password_hash, is_active)
		VALUES ($1, $2, 'E2E Admin', 'admin', $3, TRUE)
		ON CONFLICT (username) DO NOTHING`,
		adminUsername, adminUsername+"@example.com", string(hash))
	return err
}

func waitForPostgres(ctx context.Context) error {
	setServerEnv()
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	conn, err := sql.Open("postgres", db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer conn.Close()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := conn.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("postgres ping timeout: %w", err)
		case <-ticker.C:
		}
	}
}

func waitForHealth(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 2 * time.Second}
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			if err != nil {
				return fmt.Errorf("health check failed: %w", err)
			}
			return fmt.Errorf("health check failed with status")
		case <-ticker.C:
		}
	}
}

func runMigrations(root string) error {
	setServerEnv()
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	migrationsPath := filepath.Join(root, "internal", "db", "migrations")
	migrator, err := migrate.New("file://"+migrationsPath, db.DSN(cfg.Database))
	if err != nil {
		return err
	}
	defer func() {
		_, _ = migrator.Close()
	}()

	if err := migrator.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}

func startServer() (*server.Server, error) {
	setServerEnv()

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	srv, err := server.New(context.Background(), cfg, zerolog.Nop())
	if err != nil {
		return nil, err
	}

	go func() {
		_ = srv.Start()
	}()

	return srv, nil
}

func setServerEnv() {
	_ = os.Setenv("JWT_SECRET", "e2e-secret")
	_ = os.Setenv("SERVER_PORT", fmt.Sprintf("%d", serverPort))
	_ = os.Setenv("DB_HOST", "localhost")
	_ = os.Setenv("DB_PORT", "5432")
	_ = os.Setenv("DB_USER", "listafacil")
	_ = os.Setenv("DB_PASSWORD", "listafacil")
	_ = os.Setenv("DB_NAME", "listafacil")
	_ = os.Setenv("DB_USE_SSL", "false")
}

func dockerCompose(ctx context.Context, root string, args ...string) error {
	composeFile := filepath.Join(root, "development", "docker-compose.yml")
	baseArgs := append([]string{"compose", "-f", composeFile}, args...)
	cmd := exec.CommandContext(ctx, "docker", baseArgs...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("go.mod not found")
		}
		dir = parent
	}
}
