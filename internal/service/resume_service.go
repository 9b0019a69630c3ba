package service

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"project0/internal/config"
	"project0/internal/docparse"
	"project0/internal/middleware"
	"project0/internal/models"

	"github.com/google/uuid"
)

const (
	ResumeSubdir           = "resumes"
	DefaultResumeMaxSizeMB = 10
	maxResumeNameRunes     = 255
)

var resumeNamePattern = regexp.MustCompile(`^[0-9a-f-]{36}\.(pdf|docx|doc|txt|md)$`)

type UploadResumeInput struct {
	UserID   uint
	Filename string
	Content  []byte
}

// StoredResume is a profile resume on disk.
type StoredResume struct {
	Filename string
	Path     string
}

// ResumeService keeps one resume file per user under UPLOAD_DIR/resumes.
type ResumeService struct {
	users    *UserService
	dir      string
	maxBytes int64
}

func NewResumeService(users *UserService, cfg *config.Config) *ResumeService {
	uploadDir := DefaultAvatarUploadDir
	maxMB := DefaultResumeMaxSizeMB
	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.MaxUploadSizeMB > 0 {
			maxMB = cfg.MaxUploadSizeMB
		}
	}
	return &ResumeService{
		users:    users,
		dir:      filepath.Join(uploadDir, ResumeSubdir),
		maxBytes: int64(maxMB) << 20,
	}
}

// Upload validates the document the same way analysis uploads are validated,
// stores it and replaces the user's previous resume.
func (s *ResumeService) Upload(ctx context.Context, in UploadResumeInput) (*models.User, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	doc, err := docparse.Extract(in.Filename, in.Content, s.maxBytes)
	if err != nil {
		return nil, err
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(in.Filename))
	path := filepath.Join(s.dir, name)
	if err := writeBytesToFile(path, in.Content); err != nil {
		return nil, models.NewInternalError(err)
	}

	previous, err := s.users.GetUserByID(ctx, in.UserID)
	if err != nil {
		cleanupFiles([]string{path})
		return nil, err
	}
	oldFile := previous.ResumeFile

	original := doc.Filename
	if r := []rune(original); len(r) > maxResumeNameRunes {
		original = string(r[len(r)-maxResumeNameRunes:])
	}
	user, err := s.users.SetResume(ctx, in.UserID, name, original)
	if err != nil {
		cleanupFiles([]string{path})
		return nil, err
	}
	if oldFile != "" && resumeNamePattern.MatchString(oldFile) {
		cleanupFiles([]string{filepath.Join(s.dir, oldFile)})
	}

	middleware.Logger.InfoContext(ctx, "resume updated",
		slog.Uint64("user_id", uint64(in.UserID)),
		slog.String("kind", doc.Kind),
		slog.Int("characters", len([]rune(doc.Text))),
	)
	return user, nil
}

// Open locates the user's stored resume.
func (s *ResumeService) Open(ctx context.Context, userID uint) (*StoredResume, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !resumeNamePattern.MatchString(user.ResumeFile) {
		return nil, models.NewNotFoundError("Resume", userID)
	}
	path := filepath.Join(s.dir, user.ResumeFile)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, models.NewNotFoundError("Resume", userID)
		}
		return nil, models.NewInternalError(err)
	}
	name := user.ResumeName
	if name == "" {
		name = "resume" + filepath.Ext(user.ResumeFile)
	}
	return &StoredResume{Filename: name, Path: path}, nil
}

// Load returns the stored resume's original name and bytes.
func (s *ResumeService) Load(ctx context.Context, userID uint) (string, []byte, error) {
	stored, err := s.Open(ctx, userID)
	if err != nil {
		return "", nil, err
	}
	data, err := os.ReadFile(stored.Path)
	if err != nil {
		return "", nil, models.NewInternalError(err)
	}
	return stored.Filename, data, nil
}

// Delete removes the stored resume. Deleting when none is stored is a no-op.
func (s *ResumeService) Delete(ctx context.Context, userID uint) (*models.User, error) {
	previous, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user, err := s.users.SetResume(ctx, userID, "", "")
	if err != nil {
		return nil, err
	}
	if resumeNamePattern.MatchString(previous.ResumeFile) {
		cleanupFiles([]string{filepath.Join(s.dir, previous.ResumeFile)})
	}
	return user, nil
}
