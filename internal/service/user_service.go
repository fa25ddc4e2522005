package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"user-service/internal/entity"
	"user-service/internal/repository"
)

var logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

const userCacheTTL = 5 * time.Minute

// EventWriter publishes user lifecycle events. *kafka.Writer satisfies it.
type EventWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type UserService struct {
	repo   repository.UserRepository
	rdb    *redis.Client
	events EventWriter
}

// NewUserService creates a new instance of UserService. rdb and events may
// be nil; caching and event publishing are then skipped.
func NewUserService(repo repository.UserRepository, rdb *redis.Client, events EventWriter) *UserService {
	return &UserService{repo: repo, rdb: rdb, events: events}
}

// GetUserByID retrieves a user by ID, reading through the cache.
func (s *UserService) GetUserByID(ctx context.Context, id int) (*entity.User, error) {
	if cached := s.getCachedUser(ctx, id); cached != nil {
		return cached, nil
	}

	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, entity.ErrUserNotFound) {
			logger.Error().Err(err).Msgf("Error getting user by ID %d", id)
		}
		return nil, err
	}

	s.setCachedUser(ctx, user)
	return user, nil
}

// ListUsers retrieves all users in store order.
func (s *UserService) ListUsers(ctx context.Context) ([]entity.User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Error listing users")
		return nil, err
	}

	return users, nil
}

// CreateUser creates a new user. Returns entity.ErrDuplicateEmail when the
// email is already taken; the check-then-insert is backed by the unique
// index on email, so a concurrent winner still leaves this call with
// ErrDuplicateEmail rather than a double insert.
func (s *UserService) CreateUser(ctx context.Context, user *entity.User) (*entity.User, error) {
	_, err := s.repo.GetUserByEmail(ctx, user.Email)
	if err == nil {
		return nil, entity.ErrDuplicateEmail
	}
	if !errors.Is(err, entity.ErrUserNotFound) {
		logger.Error().Err(err).Msgf("Error checking email %s", user.Email)
		return nil, err
	}

	createdUser, err := s.repo.CreateUser(ctx, user)
	if err != nil {
		if !errors.Is(err, entity.ErrDuplicateEmail) {
			logger.Error().Err(err).Msg("Error creating user")
		}
		return nil, err
	}

	s.publishUserEvent(ctx, createdUser, "created")
	return createdUser, nil
}

// UpdateUser overwrites username and email of an existing user. The
// duplicate check skips the record being updated, so keeping the same
// email is always allowed.
func (s *UserService) UpdateUser(ctx context.Context, id int, username, email string) (*entity.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, entity.ErrUserNotFound) {
			logger.Error().Err(err).Msgf("Error getting user by ID %d", id)
		}
		return nil, err
	}

	owner, err := s.repo.GetUserByEmail(ctx, email)
	if err == nil && owner.ID != id {
		return nil, entity.ErrDuplicateEmail
	}
	if err != nil && !errors.Is(err, entity.ErrUserNotFound) {
		logger.Error().Err(err).Msgf("Error checking email %s", email)
		return nil, err
	}

	user.Username = username
	user.Email = email
	updatedUser, err := s.repo.UpdateUser(ctx, user)
	if err != nil {
		if !errors.Is(err, entity.ErrDuplicateEmail) {
			logger.Error().Err(err).Msgf("Error updating user %d", id)
		}
		return nil, err
	}

	s.invalidateCachedUser(ctx, id)
	s.publishUserEvent(ctx, updatedUser, "updated")
	return updatedUser, nil
}

// DeleteUser removes a user and returns the deleted record.
func (s *UserService) DeleteUser(ctx context.Context, id int) (*entity.User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if !errors.Is(err, entity.ErrUserNotFound) {
			logger.Error().Err(err).Msgf("Error getting user by ID %d", id)
		}
		return nil, err
	}

	if err := s.repo.DeleteUser(ctx, id); err != nil {
		logger.Error().Err(err).Msgf("Error deleting user %d", id)
		return nil, err
	}

	s.invalidateCachedUser(ctx, id)
	s.publishUserEvent(ctx, user, "deleted")
	return user, nil
}

func (s *UserService) getCachedUser(ctx context.Context, id int) *entity.User {
	if s.rdb == nil {
		return nil
	}

	key := fmt.Sprintf("user:%d", id)
	userCache, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error().Err(err).Msgf("Error getting user %d from cache", id)
		}
		return nil
	}

	user := &entity.User{}
	if err := json.Unmarshal([]byte(userCache), user); err != nil {
		logger.Error().Err(err).Msgf("Error unmarshalling cached user %d", id)
		return nil
	}

	return user
}

func (s *UserService) setCachedUser(ctx context.Context, user *entity.User) {
	if s.rdb == nil {
		return
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		logger.Error().Err(err).Msgf("Error marshalling user %d", user.ID)
		return
	}

	key := fmt.Sprintf("user:%d", user.ID)
	if err := s.rdb.Set(ctx, key, userJSON, userCacheTTL).Err(); err != nil {
		logger.Error().Err(err).Msgf("Error setting user %d in cache", user.ID)
	}
}

func (s *UserService) invalidateCachedUser(ctx context.Context, id int) {
	if s.rdb == nil {
		return
	}

	key := fmt.Sprintf("user:%d", id)
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		logger.Error().Err(err).Msgf("Error invalidating user %d in cache", id)
	}
}

// publishUserEvent emits a lifecycle event. Events are advisory; a publish
// failure is logged and does not fail the request.
func (s *UserService) publishUserEvent(ctx context.Context, user *entity.User, verb string) {
	if s.events == nil {
		return
	}

	userJSON, err := json.Marshal(user)
	if err != nil {
		logger.Error().Err(err).Msgf("Error marshalling user %d", user.ID)
		return
	}

	// user-created-1, user-updated-1 or user-deleted-1
	msg := kafka.Message{
		Key:   []byte(fmt.Sprintf("user-%s-%d", verb, user.ID)),
		Value: userJSON,
	}

	if err := s.events.WriteMessages(ctx, msg); err != nil {
		logger.Error().Err(err).Msgf("Error publishing user-%s event for user %d", verb, user.ID)
	}
}
