package repository

import (
	"context"
	"errors"
	"time"

	"eventsocial/internal/models"
	"eventsocial/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserRepository defines persistence operations for users and the follow graph.
type UserRepository interface {
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpsertPendingCode(ctx context.Context, email, codeHash string, expiresAt time.Time) (*models.User, error)
	ClearCode(ctx context.Context, id uint) error
	ClearExpiredCodes(ctx context.Context, now time.Time) (int64, error)
	MarkVerified(ctx context.Context, id uint, username, passwordHash string, userType models.UserType) error
	UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) error

	Follow(ctx context.Context, followerID, followeeID uint) (bool, error)
	Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error)
	IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error)
	FollowCounts(ctx context.Context, userID uint) (followers int64, following int64, err error)
	ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
	ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, notFoundOr(err, "User", id)
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no account uses email.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// GetByUsername returns nil, nil when the handle is free.
func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

// UpsertPendingCode stores a code on the unverified account for email,
// creating the account on first request. A repeated request overwrites the
// pending code instead of creating a second account.
func (r *userRepository) UpsertPendingCode(ctx context.Context, email, codeHash string, expiresAt time.Time) (*models.User, error) {
	defer observability.TrackQuery("upsert", "users")()

	user := &models.User{
		Email:        email,
		UserType:     models.UserTypePersonal,
		OTPHash:      codeHash,
		OTPExpiresAt: &expiresAt,
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"otp_hash", "otp_expires_at", "updated_at"}),
	}).Create(user).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	stored, err := r.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, models.NewInternalError(errors.New("pending user vanished after upsert"))
	}
	return stored, nil
}

func (r *userRepository) ClearCode(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{"otp_hash": "", "otp_expires_at": nil}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ClearExpiredCodes drops every pending code that expired before now.
func (r *userRepository) ClearExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("otp_expires_at IS NOT NULL AND otp_expires_at < ?", now).
		Updates(map[string]interface{}{"otp_hash": "", "otp_expires_at": nil})
	if res.Error != nil {
		return 0, models.NewInternalError(res.Error)
	}
	return res.RowsAffected, nil
}

// MarkVerified promotes an unverified account. It fails with Conflict when
// the account was verified concurrently or the username is taken.
func (r *userRepository) MarkVerified(ctx context.Context, id uint, username, passwordHash string, userType models.UserType) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ? AND is_verified = ?", id, false).
		Updates(map[string]interface{}{
			"username":       username,
			"password_hash":  passwordHash,
			"user_type":      userType,
			"is_verified":    true,
			"otp_hash":       "",
			"otp_expires_at": nil,
		})
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("Username already taken")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewConflictError("User already verified")
	}
	return nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, id uint, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		if isUniqueConstraintError(res.Error) {
			return models.NewConflictError("Username already taken")
		}
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// Follow inserts the edge and reports whether it was new.
func (r *userRepository) Follow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FolloweeID: followeeID})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Unfollow removes the edge and reports whether it existed.
func (r *userRepository) Unfollow(ctx context.Context, followerID, followeeID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Delete(&models.Follow{})
	if res.Error != nil {
		return false, models.NewInternalError(res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *userRepository) IsFollowing(ctx context.Context, followerID, followeeID uint) (bool, error) {
	var count int64
	err := readDB(r.db).WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", followerID, followeeID).
		Count(&count).Error
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

func (r *userRepository) FollowCounts(ctx context.Context, userID uint) (int64, int64, error) {
	db := readDB(r.db).WithContext(ctx)

	var followers, following int64
	if err := db.Model(&models.Follow{}).Where("followee_id = ?", userID).Count(&followers).Error; err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&following).Error; err != nil {
		return 0, 0, models.NewInternalError(err)
	}
	return followers, following, nil
}

func (r *userRepository) ListFollowers(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.listEdges(ctx, "follows.follower_id", "follows.followee_id", userID, limit, offset)
}

func (r *userRepository) ListFollowing(ctx context.Context, userID uint, limit, offset int) ([]models.User, error) {
	return r.listEdges(ctx, "follows.followee_id", "follows.follower_id", userID, limit, offset)
}

func (r *userRepository) listEdges(ctx context.Context, joinCol, filterCol string, userID uint, limit, offset int) ([]models.User, error) {
	limit, offset = clampPage(limit, offset)

	var users []models.User
	err := readDB(r.db).WithContext(ctx).
		Select("users.id", "users.username", "users.profile_image_url", "users.bio").
		Joins("JOIN follows ON users.id = "+joinCol).
		Where(filterCol+" = ?", userID).
		Order("follows.created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&users).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}
