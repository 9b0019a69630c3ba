package service

import (
	"context"
	"strings"

	"project0/internal/models"
	"project0/internal/prompts"
	"project0/internal/repository"
	"project0/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
}

// UpdateProfileInput is a partial update; nil fields are left unchanged.
type UpdateProfileInput struct {
	UserID      uint
	FullName    *string
	Headline    *string
	Location    *string
	Bio         *string
	Phone       *string
	Skills      *string
	LinkedInURL *string
	GithubURL   *string
	Website     *string
	Language    *string
	Role        *string
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) ListUsers(ctx context.Context, limit, offset int) ([]models.User, error) {
	return s.userRepo.List(ctx, limit, offset)
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, in.UserID)
	if err != nil {
		return nil, err
	}

	texts := []struct {
		field string
		value *string
		max   int
		dst   *string
	}{
		{"full_name", in.FullName, validation.MaxFullName, &user.FullName},
		{"headline", in.Headline, validation.MaxHeadline, &user.Headline},
		{"location", in.Location, validation.MaxLocation, &user.Location},
		{"bio", in.Bio, validation.MaxBio, &user.Bio},
		{"phone", in.Phone, validation.MaxPhone, &user.Phone},
		{"skills", in.Skills, validation.MaxSkills, &user.Skills},
	}
	for _, t := range texts {
		if t.value == nil {
			continue
		}
		v := strings.TrimSpace(*t.value)
		if err := validation.ValidateLength(t.field, v, 0, t.max); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		*t.dst = v
	}

	urls := []struct {
		field string
		value *string
		dst   *string
	}{
		{"linkedin_url", in.LinkedInURL, &user.LinkedInURL},
		{"github_url", in.GithubURL, &user.GithubURL},
		{"website", in.Website, &user.Website},
	}
	for _, u := range urls {
		if u.value == nil {
			continue
		}
		v := strings.TrimSpace(*u.value)
		if err := validation.ValidateOptionalURL(u.field, v); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		*u.dst = v
	}

	if in.Language != nil {
		lang := strings.ToLower(strings.TrimSpace(*in.Language))
		if err := validation.ValidateOneOf("language", lang, prompts.LangEN, prompts.LangRU); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Language = lang
	}
	if in.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*in.Role))
		if err := validation.ValidateOneOf("role", role, models.RoleCandidate, models.RoleRecruiter); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		user.Role = role
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) SetAvatar(ctx context.Context, userID uint, name string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.Avatar = name
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// SetResume records the stored resume file and its original name. Empty
// values clear it.
func (s *UserService) SetResume(ctx context.Context, userID uint, file, name string) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.ResumeFile = file
	user.ResumeName = name
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

func (s *UserService) SetAdmin(ctx context.Context, targetID uint, isAdmin bool) (*models.User, error) {
	if err := s.userRepo.SetAdmin(ctx, targetID, isAdmin); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, targetID)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListAdmins(ctx)
}

func (s *UserService) IsAdmin(ctx context.Context, userID uint) (bool, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, err
	}
	return user.IsAdmin, nil
}
