package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/gophernotes/internal/logger"
	"github.com/nkiryanov/gophernotes/internal/metrics"
	"github.com/nkiryanov/gophernotes/internal/repository/postgres"
	"github.com/nkiryanov/gophernotes/internal/service/auth"
	"github.com/nkiryanov/gophernotes/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/gophernotes/internal/service/note"
	"github.com/nkiryanov/gophernotes/internal/testutil"
)

// Cheap hasher to keep tests fast
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }

func (plainHasher) Check(password string, hashed string) bool { return hashed == "plain:"+password }

type client struct {
	t      *testing.T
	srvURL string
	http   *http.Client
}

// Send request with given cookies. Returns response and its body
func (c *client) do(method string, path string, body string, cookies ...*http.Cookie) (*http.Response, string) {
	c.t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(c.t.Context(), method, c.srvURL+path, reader)
	require.NoError(c.t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}

	resp, err := c.http.Do(req)
	require.NoError(c.t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)

	return resp, string(data)
}

func responseCookie(t *testing.T, resp *http.Response, name string) *http.Cookie {
	t.Helper()

	for _, cookie := range resp.Cookies() {
		if cookie.Name == name {
			return cookie
		}
	}

	require.Failf(t, "cookie not found", "response has no %q cookie", name)
	return nil
}

func Test_Router(t *testing.T) {
	t.Parallel()

	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)

	webDir := t.TempDir()
	for _, page := range []string{"login", "dashboard"} {
		err := os.WriteFile(filepath.Join(webDir, page), []byte(page+" page"), 0o600)
		require.NoError(t, err)
	}

	// Run server over single transaction, so all the data is rolled back at the end
	serve := func(t *testing.T, fn func(c *client)) {
		testutil.WithTx(pg.Pool, t, func(tx pgx.Tx) {
			storage := postgres.NewStorage(tx)

			tokens, err := tokenmanager.New(tokenmanager.Config{
				AccessSecret:  "test-access-secret",
				RefreshSecret: "test-refresh-secret",
			})
			require.NoError(t, err, "token manager should be created without errors")

			router := NewRouter(
				RouterConfig{WebDir: webDir},
				auth.NewService(auth.Config{Hasher: plainHasher{}}, tokens, storage, logger.NewNoOpLogger()),
				note.NewService(storage),
				metrics.New(),
				logger.NewNoOpLogger(),
			)

			srv := httptest.NewServer(router)
			defer srv.Close()

			fn(&client{
				t:      t,
				srvURL: srv.URL,
				http: &http.Client{
					CheckRedirect: func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse },
				},
			})
		})
	}

	signupAndLogin := func(c *client, name string, email string) (access *http.Cookie, refresh *http.Cookie) {
		resp, body := c.do(http.MethodPost, "/api/auth/signup", `{"name": "`+name+`", "email": "`+email+`", "password": "secret-password"}`)
		require.Equalf(c.t, http.StatusCreated, resp.StatusCode, "signup failed. Body: %s", body)

		resp, body = c.do(http.MethodPost, "/api/auth/login", `{"email": "`+email+`", "password": "secret-password"}`)
		require.Equalf(c.t, http.StatusOK, resp.StatusCode, "login failed. Body: %s", body)

		return responseCookie(c.t, resp, "accessToken"), responseCookie(c.t, resp, "refreshToken")
	}

	t.Run("signup", func(t *testing.T) {
		serve(t, func(c *client) {
			resp, body := c.do(http.MethodPost, "/api/auth/signup", `{"name": "Nik", "email": "Nik@Example.com", "password": "secret-password"}`)

			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"message":"User registered successfully"`)
			require.Contains(t, body, `"email":"nik@example.com"`, "email has to be normalized")
			require.Empty(t, resp.Cookies(), "signup must not start a session")

			resp, body = c.do(http.MethodPost, "/api/auth/signup", `{"name": "Nik", "email": "nik@example.com", "password": "secret-password"}`)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"error": "service_error", "message": "User already exists"}`, body)
		})
	})

	t.Run("signup invalid", func(t *testing.T) {
		serve(t, func(c *client) {
			resp, body := c.do(http.MethodPost, "/api/auth/signup", `{"name": "  ", "email": "not-an-email", "password": "123"}`)

			require.Equalf(t, http.StatusBadRequest, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `
				{
					"error": "validation_failed",
					"message": "Request validation failed",
					"fields": {
						"name": "This field must not be blank",
						"email": "Invalid email address",
						"password": "Value is too short (minimum 6)"
					}
				}`, body)
		})
	})

	t.Run("login", func(t *testing.T) {
		serve(t, func(c *client) {
			_, _ = signupAndLogin(c, "Nik", "nik@example.com")

			resp, body := c.do(http.MethodPost, "/api/auth/login", `{"email": "nik@example.com", "password": "secret-password"}`)

			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"message":"Logged in successfully"`)

			refresh := responseCookie(t, resp, "refreshToken")
			require.True(t, refresh.HttpOnly, "refresh cookie should be HttpOnly")
			require.Equal(t, "/", refresh.Path)
			require.Equal(t, http.SameSiteStrictMode, refresh.SameSite)
			require.Equal(t, 30*24*60*60, refresh.MaxAge, "max age should be refresh TTL")

			access := responseCookie(t, resp, "accessToken")
			require.Equal(t, 15*60, access.MaxAge, "max age should be access TTL")

			var data struct {
				AccessToken string `json:"accessToken"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &data))
			require.Equal(t, access.Value, data.AccessToken, "access token in body and cookie has to be the same")
		})
	})

	t.Run("login invalid credentials", func(t *testing.T) {
		serve(t, func(c *client) {
			_, _ = signupAndLogin(c, "Nik", "nik@example.com")

			for _, data := range []string{
				`{"email": "nik@example.com", "password": "wrong-password"}`,
				`{"email": "unknown@example.com", "password": "secret-password"}`,
			} {
				resp, body := c.do(http.MethodPost, "/api/auth/login", data)

				require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "not expected code. Body: %s", body)
				require.JSONEq(t, `{"error": "service_error", "message": "Invalid credentials"}`, body)
				require.Empty(t, resp.Cookies())
			}
		})
	})

	t.Run("me", func(t *testing.T) {
		serve(t, func(c *client) {
			access, _ := signupAndLogin(c, "Nik", "nik@example.com")

			resp, body := c.do(http.MethodGet, "/api/auth/me", "", access)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"name":"Nik"`)

			resp, body = c.do(http.MethodGet, "/api/auth/me", "")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.JSONEq(t, `{"error": "service_error", "message": "Unauthorized"}`, body)
		})
	})

	t.Run("refresh rotation", func(t *testing.T) {
		serve(t, func(c *client) {
			_, refresh := signupAndLogin(c, "Nik", "nik@example.com")

			resp, body := c.do(http.MethodPost, "/api/auth/refresh", "", refresh)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"message":"Tokens refreshed successfully"`)
			rotated := responseCookie(t, resp, "refreshToken")
			require.NotEqual(t, refresh.Value, rotated.Value, "refresh token has to be rotated")

			// Previous refresh token is not valid anymore
			resp, body = c.do(http.MethodPost, "/api/auth/refresh", "", refresh)
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
			require.JSONEq(t, `{"error": "service_error", "message": "Refresh token is invalid or has been revoked"}`, body)

			// Rotated one still works
			resp, body = c.do(http.MethodPost, "/api/auth/refresh", "", rotated)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
		})
	})

	t.Run("refresh invalid", func(t *testing.T) {
		serve(t, func(c *client) {
			resp, body := c.do(http.MethodPost, "/api/auth/refresh", "")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
			require.JSONEq(t, `{"error": "service_error", "message": "No refresh token provided"}`, body)

			// Access token is signed with another secret, so it is not a refresh token
			access, _ := signupAndLogin(c, "Nik", "nik@example.com")
			resp, body = c.do(http.MethodPost, "/api/auth/refresh", "", &http.Cookie{Name: "refreshToken", Value: access.Value})
			require.Equal(t, http.StatusForbidden, resp.StatusCode)
			require.JSONEq(t, `{"error": "service_error", "message": "Invalid or expired refresh token"}`, body)
		})
	})

	t.Run("logout", func(t *testing.T) {
		serve(t, func(c *client) {
			_, refresh := signupAndLogin(c, "Nik", "nik@example.com")

			resp, body := c.do(http.MethodPost, "/api/auth/logout", "", refresh)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.JSONEq(t, `{"message": "Logged out successfully"}`, body)
			require.Equal(t, -1, responseCookie(t, resp, "refreshToken").MaxAge, "refresh cookie has to be expired")
			require.Equal(t, -1, responseCookie(t, resp, "accessToken").MaxAge, "access cookie has to be expired")

			resp, _ = c.do(http.MethodPost, "/api/auth/refresh", "", refresh)
			require.Equal(t, http.StatusForbidden, resp.StatusCode, "refresh after logout has to be rejected")

			// Logout without any session is still fine
			resp, _ = c.do(http.MethodPost, "/api/auth/logout", "")
			require.Equal(t, http.StatusOK, resp.StatusCode)
		})
	})

	t.Run("notes", func(t *testing.T) {
		serve(t, func(c *client) {
			access, _ := signupAndLogin(c, "Nik", "nik@example.com")

			resp, body := c.do(http.MethodPost, "/api/notes", `{"title": "Groceries", "content": "milk"}`, access)
			require.Equalf(t, http.StatusCreated, resp.StatusCode, "not expected code. Body: %s", body)

			var created noteResponse
			require.NoError(t, json.Unmarshal([]byte(body), &created))
			require.Equal(t, "Groceries", created.Title)
			notePath := "/api/notes/" + created.ID.String()

			resp, body = c.do(http.MethodGet, "/api/notes", "", access)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			var notes []noteResponse
			require.NoError(t, json.Unmarshal([]byte(body), &notes))
			require.Len(t, notes, 1)

			resp, body = c.do(http.MethodPut, notePath, `{"content": "milk, bread"}`, access)
			require.Equalf(t, http.StatusOK, resp.StatusCode, "not expected code. Body: %s", body)
			require.Contains(t, body, `"title":"Groceries"`, "absent title has to stay unchanged")
			require.Contains(t, body, `"content":"milk, bread"`)

			resp, _ = c.do(http.MethodGet, notePath, "", access)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			resp, body = c.do(http.MethodDelete, notePath, "", access)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.JSONEq(t, `{"id": "`+created.ID.String()+`"}`, body)

			resp, body = c.do(http.MethodGet, notePath, "", access)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)
			require.JSONEq(t, `{"error": "service_error", "message": "Note not found"}`, body)
		})
	})

	t.Run("notes of another user", func(t *testing.T) {
		serve(t, func(c *client) {
			ownerAccess, _ := signupAndLogin(c, "Owner", "owner@example.com")
			strangerAccess, _ := signupAndLogin(c, "Stranger", "stranger@example.com")

			resp, body := c.do(http.MethodPost, "/api/notes", `{"title": "Secret", "content": "plans"}`, ownerAccess)
			require.Equal(t, http.StatusCreated, resp.StatusCode)
			var created noteResponse
			require.NoError(t, json.Unmarshal([]byte(body), &created))
			notePath := "/api/notes/" + created.ID.String()

			resp, body = c.do(http.MethodGet, "/api/notes", "", strangerAccess)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.JSONEq(t, `[]`, body, "stranger must see only own notes")

			for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
				resp, body = c.do(method, notePath, `{"title": "Hacked"}`, strangerAccess)
				require.Equalf(t, http.StatusUnauthorized, resp.StatusCode, "%s must be rejected. Body: %s", method, body)
				require.JSONEq(t, `{"error": "service_error", "message": "Not authorized"}`, body)
			}

			resp, body = c.do(http.MethodGet, notePath, "", ownerAccess)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Contains(t, body, `"title":"Secret"`)
		})
	})

	t.Run("notes invalid", func(t *testing.T) {
		serve(t, func(c *client) {
			access, _ := signupAndLogin(c, "Nik", "nik@example.com")

			resp, _ := c.do(http.MethodGet, "/api/notes", "")
			require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "notes require access token")

			resp, _ = c.do(http.MethodGet, "/api/notes/not-a-uuid", "", access)
			require.Equal(t, http.StatusNotFound, resp.StatusCode)

			resp, body := c.do(http.MethodPost, "/api/notes", `{"title": "", "content": "milk"}`, access)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Contains(t, body, `"title":"This field is required"`)

			resp, body = c.do(http.MethodPost, "/api/notes", `{"title": "`+strings.Repeat("t", 101)+`", "content": "milk"}`, access)
			require.Equal(t, http.StatusBadRequest, resp.StatusCode)
			require.Contains(t, body, `"title":"Value is too long (maximum 100)"`)
		})
	})

	t.Run("pages", func(t *testing.T) {
		serve(t, func(c *client) {
			resp, _ := c.do(http.MethodGet, "/dashboard", "")
			require.Equal(t, http.StatusTemporaryRedirect, resp.StatusCode)
			require.Equal(t, "/login", resp.Header.Get("Location"))

			resp, body := c.do(http.MethodGet, "/login", "")
			require.Equal(t, http.StatusOK, resp.StatusCode, "login page is public")
			require.Equal(t, "login page", body)

			access, _ := signupAndLogin(c, "Nik", "nik@example.com")
			resp, body = c.do(http.MethodGet, "/dashboard", "", access)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Equal(t, "dashboard page", body)
		})
	})

	t.Run("metrics", func(t *testing.T) {
		serve(t, func(c *client) {
			_, _ = signupAndLogin(c, "Nik", "nik@example.com")

			resp, body := c.do(http.MethodGet, "/metrics", "")

			require.Equal(t, http.StatusOK, resp.StatusCode)
			require.Contains(t, body, `gophernotes_session_events_total{event="login",outcome="ok"} 1`)
			require.Contains(t, body, `gophernotes_http_requests_total{method="POST",route="POST /api/auth/signup",status="201"} 1`)
		})
	})
}
