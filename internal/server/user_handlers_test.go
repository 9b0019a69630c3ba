package server

import (
	"io"
	"net/http"
	"strconv"
	"testing"

	"project0/internal/models"
	"project0/internal/stream"
	"project0/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetMyProfile(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "profile")

	resp := env.request(t, http.MethodGet, "/api/users/me", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "profile", user["username"])
	assert.NotContains(t, user, "password")
}

func TestUpdateMyProfile(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "editor")

	resp := env.request(t, http.MethodPut, "/api/users/me", s.token, map[string]any{
		"headline":   "  Backend engineer ",
		"skills":     "Go, PostgreSQL",
		"github_url": "https://github.com/editor",
		"language":   "RU",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decodeBody[models.User](t, resp)
	assert.Equal(t, "Backend engineer", user.Headline)
	assert.Equal(t, "Go, PostgreSQL", user.Skills)
	assert.Equal(t, "ru", user.Language)

	// Omitted fields stay as they were.
	resp = env.request(t, http.MethodPut, "/api/users/me", s.token, map[string]any{"location": "Berlin"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user = decodeBody[models.User](t, resp)
	assert.Equal(t, "Berlin", user.Location)
	assert.Equal(t, "Backend engineer", user.Headline)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"bad language", map[string]any{"language": "xx"}},
		{"bad role", map[string]any{"role": "admin"}},
		{"bad url", map[string]any{"website": "not a url"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.request(t, http.MethodPut, "/api/users/me", s.token, tt.body)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestUploadAvatar_ThenServe(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "pictured")

	req := multipartRequest(t, "/api/users/me/avatar", s.token,
		map[string][2]string{"avatar": {"me.png", string(testutil.TinyPNG(t, 40, 20))}}, nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decodeBody[models.User](t, resp)
	require.NotEmpty(t, user.Avatar)

	resp = env.request(t, http.MethodGet, user.AvatarURL(), "", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))

	me := decodeBody[MeResponse](t, env.request(t, http.MethodGet, "/api/auth/me", s.token, nil))
	assert.Equal(t, user.AvatarURL(), me.AvatarURL)
}

func TestUploadAvatar_Rejections(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "noimage")

	req := multipartRequest(t, "/api/users/me/avatar", s.token,
		map[string][2]string{"avatar": {"me.png", "plain text"}}, nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	body := decodeBody[models.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid image type", body.Error)

	req = multipartRequest(t, "/api/users/me/avatar", s.token, nil, map[string]string{"x": "y"})
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	body = decodeBody[models.ErrorResponse](t, resp)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "No file uploaded", body.Error)
}

func TestProfileResume(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "resumer")
	other := env.register(t, "stranger")

	resp := env.request(t, http.MethodGet, "/api/users/me/resume", s.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	content := "Senior Go engineer. Kubernetes, Redis, PostgreSQL."
	req := multipartRequest(t, "/api/users/me/resume", s.token,
		map[string][2]string{"file": {"Jane CV.txt", content}}, nil)
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user := decodeBody[map[string]any](t, resp)
	assert.Equal(t, "Jane CV.txt", user["resume_name"])

	resp = env.request(t, http.MethodGet, "/api/users/me/resume", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, content, string(raw))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "CV.txt")

	resp = env.request(t, http.MethodGet, "/api/users/me/resume", other.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	// Analyze without a file uses the stored resume.
	env.ollama.SetGenerate(`{"match_score": 70, "summary": "ok"}`)
	req = multipartRequest(t, "/api/analyze", s.token, nil, map[string]string{"job_description": "Go developer"})
	resp, err = env.app.Test(req, -1)
	require.NoError(t, err)
	events := readEvents(t, resp)
	last := events[len(events)-1]
	require.Equal(t, stream.TypeDone, last.Type)
	reqs := env.ollama.Requests()
	require.NotEmpty(t, reqs)
	assert.Contains(t, reqs[len(reqs)-1]["prompt"], "Kubernetes, Redis, PostgreSQL")

	resp = env.request(t, http.MethodDelete, "/api/users/me/resume", s.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	user = decodeBody[map[string]any](t, resp)
	assert.Equal(t, "", user["resume_name"])

	resp = env.request(t, http.MethodGet, "/api/users/me/resume", s.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadResume_Rejections(t *testing.T) {
	env := newTestEnv(t)
	s := env.register(t, "badresume")

	tests := []struct {
		name  string
		files map[string][2]string
		want  string
	}{
		{"no file", nil, "No file uploaded"},
		{"unsupported", map[string][2]string{"file": {"cv.exe", "MZ"}}, "Unsupported file type"},
		{"pdf that is text", map[string][2]string{"file": {"cv.pdf", "plain"}}, "does not match"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := multipartRequest(t, "/api/users/me/resume", s.token, tt.files, map[string]string{"x": "y"})
			resp, err := env.app.Test(req, -1)
			require.NoError(t, err)
			body := decodeBody[models.ErrorResponse](t, resp)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Contains(t, body.Error, tt.want)
		})
	}
}

func TestServeAvatar_RejectsTraversal(t *testing.T) {
	env := newTestEnv(t)

	for _, name := range []string{"..%2F..%2Fetc%2Fpasswd", "missing.jpg", "00000000-0000-0000-0000-000000000000.jpg"} {
		resp := env.request(t, http.MethodGet, "/uploads/avatars/"+name, "", nil)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, name)
	}
}

func TestAdminUserManagement(t *testing.T) {
	env := newTestEnv(t)
	root := env.register(t, "root")
	admin := env.register(t, "boss")
	user := env.register(t, "worker")
	env.makeAdmin(t, root.userID)
	env.makeAdmin(t, admin.userID)

	resp := env.request(t, http.MethodGet, "/api/admin/users", admin.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decodeBody[[]models.User](t, resp)
	assert.Len(t, users, 3)

	resp = env.request(t, http.MethodPost, "/api/admin/users/"+strconv.Itoa(int(user.userID))+"/promote-admin", admin.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	promoted := decodeBody[struct {
		User models.User `json:"user"`
	}](t, resp)
	assert.True(t, promoted.User.IsAdmin)

	resp = env.request(t, http.MethodPost, "/api/admin/users/"+strconv.Itoa(int(user.userID))+"/demote-admin", admin.token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	demoted := decodeBody[struct {
		User models.User `json:"user"`
	}](t, resp)
	assert.False(t, demoted.User.IsAdmin)

	resp = env.request(t, http.MethodPost, "/api/admin/users/"+strconv.Itoa(int(admin.userID))+"/demote-admin", admin.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "admins cannot demote themselves")

	resp = env.request(t, http.MethodPost, "/api/admin/users/999/promote-admin", admin.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.request(t, http.MethodGet, "/api/admin/users", user.token, nil)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
