package service

import (
	"bytes"
	"context"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"project0/internal/models"
	"project0/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSquareCrop(t *testing.T) {
	tests := []struct {
		w, h       int
		x, y, side int
	}{
		{100, 100, 0, 0, 100},
		{200, 100, 50, 0, 100},
		{100, 300, 0, 100, 100},
		{0, 10, 0, 4, 1},
	}
	for _, tt := range tests {
		x, y, side := squareCrop(tt.w, tt.h)
		assert.Equal(t, []int{tt.x, tt.y, tt.side}, []int{x, y, side}, "%dx%d", tt.w, tt.h)
	}
}

func TestAvatarService_Upload(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "alice", 3)
	svc := NewAvatarService(NewUserService(env.users), env.cfg)

	user, err := svc.Upload(ctx, UploadAvatarInput{
		UserID:      u.ID,
		Filename:    "me.png",
		ContentType: "image/png",
		Content:     testutil.TinyPNG(t, 40, 20),
	})
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(user.Avatar, ".jpg"))
	assert.Equal(t, "/uploads/avatars/"+user.Avatar, user.AvatarURL())

	jpgPath, err := svc.Resolve(user.Avatar)
	require.NoError(t, err)
	data, err := os.ReadFile(jpgPath)
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, AvatarSize, cfg.Width)
	assert.Equal(t, AvatarSize, cfg.Height)

	base := strings.TrimSuffix(user.Avatar, ".jpg")
	_, err = os.Stat(filepath.Join(svc.Dir(), base+".webp"))
	require.NoError(t, err)

	// A second upload replaces the first pair of files.
	second, err := svc.Upload(ctx, UploadAvatarInput{UserID: u.ID, Content: testutil.TinyPNG(t, 8, 8)})
	require.NoError(t, err)
	assert.NotEqual(t, user.Avatar, second.Avatar)
	_, err = os.Stat(jpgPath)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, second.Avatar, env.reloadUser(t, u.ID).Avatar)
}

func TestAvatarService_Upload_Rejects(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	u := env.createUser(t, "alice", 3)
	svc := NewAvatarService(NewUserService(env.users), env.cfg)
	png := testutil.TinyPNG(t, 4, 4)

	tests := []struct {
		name string
		in   UploadAvatarInput
	}{
		{"no user", UploadAvatarInput{Content: png}},
		{"empty file", UploadAvatarInput{UserID: u.ID}},
		{"too large", UploadAvatarInput{UserID: u.ID, Content: bytes.Repeat([]byte{0}, 2<<20)}},
		{"not an image", UploadAvatarInput{UserID: u.ID, Content: []byte("hello world")}},
		{"declared type mismatch", UploadAvatarInput{UserID: u.ID, ContentType: "image/gif", Content: png}},
		{"too wide", UploadAvatarInput{UserID: u.ID, Content: testutil.TinyPNG(t, MaxAvatarDimension+1, 1)}},
		{"too tall", UploadAvatarInput{UserID: u.ID, Content: testutil.TinyPNG(t, 1, MaxAvatarDimension+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(ctx, tt.in)
			requireAppErrorCode(t, err, models.CodeValidation)
		})
	}

	entries, _ := os.ReadDir(svc.Dir())
	assert.Empty(t, entries)
}

func TestAvatarService_Upload_DimensionLimitMessage(t *testing.T) {
	env := newTestEnv(t)
	u := env.createUser(t, "alice", 3)
	svc := NewAvatarService(NewUserService(env.users), env.cfg)

	_, err := svc.Upload(context.Background(), UploadAvatarInput{
		UserID:  u.ID,
		Content: testutil.TinyPNG(t, MaxAvatarDimension+1, 2),
	})
	requireAppErrorCode(t, err, models.CodeValidation)
	assert.Contains(t, err.Error(), "max 4096x4096")

	_, err = svc.Upload(context.Background(), UploadAvatarInput{
		UserID:  u.ID,
		Content: testutil.TinyPNG(t, MaxAvatarDimension, 2),
	})
	require.NoError(t, err)
}

func TestAvatarService_Resolve(t *testing.T) {
	env := newTestEnv(t)
	svc := NewAvatarService(NewUserService(env.users), env.cfg)

	for _, name := range []string{"../../etc/passwd", "avatar.png", "", "00000000-0000-0000-0000-000000000000.jpg"} {
		_, err := svc.Resolve(name)
		requireAppErrorCode(t, err, models.CodeNotFound)
	}
}
