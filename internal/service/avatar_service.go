package service

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"project0/internal/config"
	"project0/internal/middleware"
	"project0/internal/models"

	"github.com/chai2010/webp"
	"github.com/google/uuid"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultAvatarUploadDir = "./uploads"
	DefaultAvatarMaxSizeMB = 5
	AvatarSize             = 256
	AvatarSubdir           = "avatars"
	JPEGQuality            = 82
	WebPQuality            = 70
	// MaxAvatarDimension bounds either side of an upload before it is decoded.
	MaxAvatarDimension = 4096
)

var avatarNamePattern = regexp.MustCompile(`^[0-9a-f-]{36}\.(jpg|webp)$`)

type UploadAvatarInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

type AvatarService struct {
	users              *UserService
	dir                string
	maxUploadSizeBytes int64
}

func NewAvatarService(users *UserService, cfg *config.Config) *AvatarService {
	uploadDir := DefaultAvatarUploadDir
	maxUploadSizeMB := DefaultAvatarMaxSizeMB
	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.AvatarMaxSizeMB > 0 {
			maxUploadSizeMB = cfg.AvatarMaxSizeMB
		}
	}
	return &AvatarService{
		users:              users,
		dir:                filepath.Join(uploadDir, AvatarSubdir),
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Dir is where avatar files are written.
func (s *AvatarService) Dir() string { return s.dir }

// Upload decodes the image, centre-crops it square, scales it to AvatarSize
// and stores JPEG and WebP renditions. The user's previous avatar is removed.
func (s *AvatarService) Upload(ctx context.Context, in UploadAvatarInput) (*models.User, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(in.Content)
	if !isAllowedImageMIME(detectedType) {
		return nil, models.NewValidationError("Invalid image type")
	}

	header, _, err := image.DecodeConfig(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if header.Width > MaxAvatarDimension || header.Height > MaxAvatarDimension {
		return nil, models.NewValidationError(fmt.Sprintf("Image too large (max %dx%d pixels)", MaxAvatarDimension, MaxAvatarDimension))
	}

	decoded, format, err := image.Decode(bytes.NewReader(in.Content))
	if err != nil {
		return nil, models.NewValidationError("Invalid image file")
	}
	if !isSupportedDecodedFormat(format) {
		return nil, models.NewValidationError("Unsupported image format")
	}
	if provided := normalizeContentType(in.ContentType); strings.HasPrefix(provided, "image/") &&
		!isMatchingContentType(provided, decodedFormatToMime(format)) {
		return nil, models.NewValidationError("Image content type mismatch")
	}

	b := decoded.Bounds()
	x, y, side := squareCrop(b.Dx(), b.Dy())
	avatar := resizeSquare(cropToRect(decoded, b.Min.X+x, b.Min.Y+y, side, side), AvatarSize)

	jpgBytes, err := encodeJPEG(avatar, JPEGQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	webpBytes, err := encodeWebP(avatar, WebPQuality)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	name := uuid.NewString()
	jpgPath := filepath.Join(s.dir, name+".jpg")
	webpPath := filepath.Join(s.dir, name+".webp")
	if err := writeBytesToFile(jpgPath, jpgBytes); err != nil {
		return nil, models.NewInternalError(err)
	}
	if err := writeBytesToFile(webpPath, webpBytes); err != nil {
		cleanupFiles([]string{jpgPath})
		return nil, models.NewInternalError(err)
	}

	previous, err := s.users.GetUserByID(ctx, in.UserID)
	if err != nil {
		cleanupFiles([]string{jpgPath, webpPath})
		return nil, err
	}
	oldAvatar := previous.Avatar

	user, err := s.users.SetAvatar(ctx, in.UserID, name+".jpg")
	if err != nil {
		cleanupFiles([]string{jpgPath, webpPath})
		return nil, err
	}
	if oldAvatar != "" && avatarNamePattern.MatchString(oldAvatar) {
		base := strings.TrimSuffix(oldAvatar, filepath.Ext(oldAvatar))
		cleanupFiles([]string{filepath.Join(s.dir, base+".jpg"), filepath.Join(s.dir, base+".webp")})
	}

	middleware.Logger.InfoContext(ctx, "avatar updated",
		slog.Uint64("user_id", uint64(in.UserID)), slog.String("format", format))
	return user, nil
}

// Resolve maps a public avatar file name to its path on disk.
func (s *AvatarService) Resolve(name string) (string, error) {
	if !avatarNamePattern.MatchString(name) {
		return "", models.NewNotFoundError("Avatar", name)
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("Avatar", name)
		}
		return "", models.NewInternalError(err)
	}
	return path, nil
}

// squareCrop returns the offset and side of the largest centred square.
func squareCrop(w, h int) (x, y, side int) {
	side = w
	if h < side {
		side = h
	}
	if side < 1 {
		side = 1
	}
	return (w - side) / 2, (h - side) / 2, side
}

func cropToRect(src image.Image, x, y, w, h int) image.Image {
	if w <= 0 || h <= 0 {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), src, image.Point{X: x, Y: y}, draw.Src)
	return dst
}

func resizeSquare(src image.Image, size int) image.Image {
	bounds := src.Bounds()
	if bounds.Dx() == size && bounds.Dy() == size {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func isMatchingContentType(provided, detected string) bool {
	p := normalizeContentType(provided)
	d := normalizeContentType(detected)
	if p == d {
		return true
	}
	return (p == "image/jpg" && d == "image/jpeg") || (p == "image/jpeg" && d == "image/jpg")
}

func isSupportedDecodedFormat(format string) bool {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg", "png", "gif", "webp":
		return true
	default:
		return false
	}
}

func decodedFormatToMime(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "jpeg", "jpg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "gif":
		return "image/gif"
	case "webp":
		return "image/webp"
	default:
		return ""
	}
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func cleanupFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
