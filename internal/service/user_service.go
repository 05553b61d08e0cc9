package service

import (
	"context"
	"fmt"
	"strings"

	"eventsocial/internal/cache"
	"eventsocial/internal/models"
	"eventsocial/internal/repository"
	"eventsocial/internal/validation"
)

const maxBioLen = 200

type UserService struct {
	userRepo      repository.UserRepository
	media         *MediaService
	notifications *NotificationService
}

// UpdateProfileInput carries a partial profile update. Nil fields are left unchanged.
type UpdateProfileInput struct {
	ActorID      uint
	UserID       uint
	Username     *string
	Bio          *string
	ProfileImage *MediaFile
}

func NewUserService(userRepo repository.UserRepository, media *MediaService, notifications *NotificationService) *UserService {
	return &UserService{userRepo: userRepo, media: media, notifications: notifications}
}

// GetProfile returns userID's profile with follow counts, and whether viewerID follows them.
func (s *UserService) GetProfile(ctx context.Context, userID, viewerID uint) (*models.User, error) {
	var user models.User
	err := cache.CacheAside(ctx, cache.UserKey(userID), &user, cache.UserTTL, func() error {
		u, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		user = *u
		return nil
	})
	if err != nil {
		return nil, err
	}

	followers, following, err := s.userRepo.FollowCounts(ctx, userID)
	if err != nil {
		return nil, err
	}
	user.FollowersCount = followers
	user.FollowingCount = following

	if viewerID != 0 && viewerID != userID {
		user.IsFollowing, err = s.userRepo.IsFollowing(ctx, viewerID, userID)
		if err != nil {
			return nil, err
		}
	}
	return &user, nil
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	if in.ActorID != in.UserID {
		return nil, models.NewForbiddenError("You can only update your own profile")
	}

	fields := map[string]interface{}{}
	if in.Username != nil {
		username := strings.TrimSpace(*in.Username)
		if err := validation.ValidateUsername(username); err != nil {
			return nil, models.NewValidationError(err.Error())
		}
		taken, err := s.userRepo.GetByUsername(ctx, username)
		if err != nil {
			return nil, err
		}
		if taken != nil && taken.ID != in.UserID {
			return nil, models.NewConflictError("Username already taken")
		}
		fields["username"] = username
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if len([]rune(bio)) > maxBioLen {
			return nil, models.NewValidationError(fmt.Sprintf("Bio too long (max %d characters)", maxBioLen))
		}
		fields["bio"] = bio
	}
	if in.ProfileImage != nil {
		if s.media == nil {
			return nil, models.NewValidationError("Uploads are not enabled")
		}
		stored, err := s.media.UploadImage(ctx, FolderProfiles, *in.ProfileImage)
		if err != nil {
			return nil, err
		}
		fields["profile_image_url"] = stored.URL
	}

	if err := s.userRepo.UpdateProfile(ctx, in.UserID, fields); err != nil {
		return nil, err
	}
	cache.InvalidateUser(ctx, in.UserID)
	return s.GetProfile(ctx, in.UserID, in.ActorID)
}

// Follow adds the edge followerID -> followeeID and notifies the followee.
func (s *UserService) Follow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewValidationError("You cannot follow yourself")
	}
	follower, err := s.userRepo.GetByID(ctx, followerID)
	if err != nil {
		return err
	}
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}

	created, err := s.userRepo.Follow(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !created {
		return models.NewConflictError("You are already following this user")
	}

	s.notifications.notifyQuietly(ctx, NotifyInput{
		RecipientID:     followeeID,
		SenderID:        &followerID,
		Type:            models.NotificationFollow,
		Message:         fmt.Sprintf("%s started following you", displayName(follower)),
		RelatedEntityID: &followerID,
	})
	return nil
}

func (s *UserService) Unfollow(ctx context.Context, followerID, followeeID uint) error {
	if followerID == followeeID {
		return models.NewValidationError("You cannot unfollow yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, followeeID); err != nil {
		return err
	}
	removed, err := s.userRepo.Unfollow(ctx, followerID, followeeID)
	if err != nil {
		return err
	}
	if !removed {
		return models.NewConflictError("You are not following this user")
	}
	return nil
}

func (s *UserService) ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.userRepo.ListFollowers(ctx, userID, limit, offset)
}

func (s *UserService) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	if _, err := s.userRepo.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	return s.userRepo.ListFollowing(ctx, userID, limit, offset)
}

func displayName(u *models.User) string {
	if name := u.Handle(); name != "" {
		return name
	}
	return "Someone"
}
