// Package account implements signup, login, profile lookup and profile picture upload.
package account

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sync"
	"time"

	"github.com/ccoveille/go-safecast"
	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/jon4hz/profilehub/internal/database"
	"github.com/jon4hz/profilehub/internal/password"
	"github.com/jon4hz/profilehub/internal/storage"
	"gorm.io/gorm"
)

// Profile is the public view of a user.
type Profile struct {
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	JoinedOn   time.Time `json:"joined_on"`
	ProfilePic *string   `json:"profile_pic"`
}

// ProfileCache caches profiles by email.
type ProfileCache interface {
	Get(ctx context.Context, key any) (Profile, error)
	Set(ctx context.Context, key any, profile Profile) error
	Delete(ctx context.Context, key any) error
}

// Service implements the account operations on top of the database and the file storage.
type Service struct {
	db       database.DB
	hasher   *password.Hasher
	files    storage.Store
	profiles ProfileCache

	// serializes cache fills with profile picture updates of the same email
	profileLocks [profileLockStripes]sync.Mutex
}

const profileLockStripes = 64

func (s *Service) profileLock(email string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(email))
	return &s.profileLocks[h.Sum32()%profileLockStripes]
}

// Option configures a Service.
type Option func(*Service)

// WithProfileCache enables caching of profile lookups.
func WithProfileCache(c ProfileCache) Option {
	return func(s *Service) {
		s.profiles = c
	}
}

// NewService creates a new Service.
func NewService(db database.DB, hasher *password.Hasher, files storage.Store, opts ...Option) *Service {
	s := &Service{
		db:     db,
		hasher: hasher,
		files:  files,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Signup registers a new user. An already registered email yields a KindConflict error.
// Passwords longer than 72 bytes are truncated before hashing.
func (s *Service) Signup(ctx context.Context, username, email, plain string) error {
	_, err := s.db.GetUserByEmail(ctx, email)
	if err == nil {
		log.Debug("signup rejected, email already registered", "email", email)
		return newError(KindConflict, MsgEmailRegistered)
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return internalError(fmt.Errorf("failed to look up user: %w", err))
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		return internalError(err)
	}

	user := &database.User{
		Username:       username,
		Email:          email,
		HashedPassword: hash,
	}
	if err := s.db.CreateUser(ctx, user); err != nil {
		// a concurrent signup won the race between lookup and insert
		if errors.Is(err, database.ErrDuplicateEmail) {
			log.Debug("signup lost race on unique email", "email", email)
			return newError(KindConflict, MsgEmailRegistered)
		}
		return internalError(fmt.Errorf("failed to create user: %w", err))
	}

	log.Info("user signed up", "user_id", user.ID, "email", email)
	return nil
}

// Login verifies the credentials and returns the user's email.
// Unknown emails yield KindNotFound, wrong passwords KindUnauthorized, both with the same message.
func (s *Service) Login(ctx context.Context, email, plain string) (string, error) {
	user, err := s.getUser(ctx, email, MsgInvalidCredentials)
	if err != nil {
		return "", err
	}

	ok, err := s.hasher.Verify(plain, user.HashedPassword)
	if err != nil {
		return "", internalError(err)
	}
	if !ok {
		log.Debug("login rejected, wrong password", "email", email)
		return "", newError(KindUnauthorized, MsgInvalidCredentials)
	}

	return user.Email, nil
}

// Profile returns the public profile of the user with the given email.
func (s *Service) Profile(ctx context.Context, email string) (*Profile, error) {
	if s.profiles == nil {
		user, err := s.getUser(ctx, email, MsgUserNotFound)
		if err != nil {
			return nil, err
		}
		return toProfile(user), nil
	}

	if p, err := s.profiles.Get(ctx, email); err == nil {
		return &p, nil
	}

	// an upload must not land between reading the row and caching it
	mu := s.profileLock(email)
	mu.Lock()
	defer mu.Unlock()

	user, err := s.getUser(ctx, email, MsgUserNotFound)
	if err != nil {
		return nil, err
	}

	p := toProfile(user)
	if err := s.profiles.Set(ctx, email, *p); err != nil {
		log.Warn("failed to cache profile", "email", email, "error", err)
	}
	return p, nil
}

// UploadProfilePic stores the picture as {user_id}_{filename} and points the user's
// profile at it. It returns the public path of the stored file.
func (s *Service) UploadProfilePic(ctx context.Context, email, filename string, r io.Reader) (string, error) {
	user, err := s.getUser(ctx, email, MsgUserNotFound)
	if err != nil {
		return "", err
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", internalError(fmt.Errorf("failed to read upload: %w", err))
	}

	name := storage.StoredName(user.ID, filename)
	if err := s.files.Save(ctx, name, data); err != nil {
		return "", internalError(err)
	}

	path := storage.PublicPath(name)
	if err := s.setProfilePic(ctx, user, path); err != nil {
		return "", internalError(fmt.Errorf("failed to update profile picture: %w", err))
	}

	size, _ := safecast.ToUint64(len(data))
	log.Info("profile picture uploaded", "user_id", user.ID, "path", path, "size", humanize.Bytes(size), "storage", s.files.String())
	return path, nil
}

// setProfilePic persists the new path and replaces the cached profile with the updated one.
func (s *Service) setProfilePic(ctx context.Context, user *database.User, path string) error {
	if s.profiles == nil {
		return s.db.SetUserProfilePic(ctx, user.ID, path)
	}

	mu := s.profileLock(user.Email)
	mu.Lock()
	defer mu.Unlock()

	if err := s.profiles.Delete(ctx, user.Email); err != nil {
		log.Debug("failed to invalidate cached profile", "email", user.Email, "error", err)
	}
	if err := s.db.SetUserProfilePic(ctx, user.ID, path); err != nil {
		return err
	}

	user.ProfilePic = &path
	if err := s.profiles.Set(ctx, user.Email, *toProfile(user)); err != nil {
		log.Warn("failed to cache updated profile", "email", user.Email, "error", err)
		if err := s.profiles.Delete(ctx, user.Email); err != nil {
			log.Error("stale profile left in cache", "email", user.Email, "error", err)
		}
	}
	return nil
}

func toProfile(user *database.User) *Profile {
	return &Profile{
		Username:   user.Username,
		Email:      user.Email,
		JoinedOn:   user.CreatedAt,
		ProfilePic: user.ProfilePic,
	}
}

// Ping checks that the database is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) getUser(ctx context.Context, email, notFoundMsg string) (*database.User, error) {
	user, err := s.db.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, newError(KindNotFound, notFoundMsg)
		}
		return nil, internalError(fmt.Errorf("failed to look up user: %w", err))
	}
	return user, nil
}
