package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"autodiag/models"
	"autodiag/utils"
)

type UserRepo struct {
	mu    sync.RWMutex
	users map[string]models.User
}

func NewUserRepo() *UserRepo {
	return &UserRepo{users: make(map[string]models.User)}
}

func cloneUser(u models.User) *models.User {
	u.Devices = append([]models.Device(nil), u.Devices...)
	return &u
}

func (r *UserRepo) Create(_ context.Context, u *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range r.users {
		if existing.ID == u.ID || existing.Email == u.Email || existing.PhoneNumber == u.PhoneNumber {
			return fmt.Errorf("user exists: %w", utils.ErrConflict)
		}
	}
	r.users[u.ID] = *cloneUser(*u)
	return nil
}

func (r *UserRepo) find(match func(models.User) bool) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}
	return nil, fmt.Errorf("user: %w", utils.ErrNotFound)
}

func (r *UserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.ID == id })
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.find(func(u models.User) bool { return u.Email == email })
}

func (r *UserRepo) GetByPhone(_ context.Context, phone string) (*models.User, error) {
	return r.find(func(u models.User) bool { return u.PhoneNumber == phone })
}

func (r *UserRepo) update(id string, fn func(*models.User)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return fmt.Errorf("user %s: %w", id, utils.ErrNotFound)
	}
	fn(&u)
	u.UpdatedAt = time.Now()
	r.users[id] = u
	return nil
}

func (r *UserRepo) UpsertDevice(_ context.Context, userID string, device models.Device) error {
	return r.update(userID, func(u *models.User) {
		kept := u.Devices[:0:0]
		for _, d := range u.Devices {
			if d.DeviceID != device.DeviceID {
				kept = append(kept, d)
			}
		}
		u.Devices = append(kept, device)
	})
}

func (r *UserRepo) RemoveDevice(_ context.Context, userID, deviceID string) error {
	return r.update(userID, func(u *models.User) {
		kept := u.Devices[:0:0]
		for _, d := range u.Devices {
			if d.DeviceID != deviceID {
				kept = append(kept, d)
			}
		}
		u.Devices = kept
	})
}

func (r *UserRepo) UpdateSettings(_ context.Context, userID string, settings models.Settings) error {
	return r.update(userID, func(u *models.User) { u.Settings = settings })
}

func (r *UserRepo) UpdateFCMToken(_ context.Context, userID, token string) error {
	return r.update(userID, func(u *models.User) { u.FCMToken = token })
}

func (r *UserRepo) UpdateName(_ context.Context, userID, name string) error {
	return r.update(userID, func(u *models.User) { u.Name = name })
}

func (r *UserRepo) List(_ context.Context, role models.Role, page models.PageRequest) ([]models.User, error) {
	r.mu.RLock()
	var out []models.User
	for _, u := range r.users {
		if role == "" || u.Role == role {
			out = append(out, *cloneUser(u))
		}
	}
	r.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return paginate(out, page), nil
}
