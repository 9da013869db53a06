// Package services – StaffService
//
// This file implements the staff roster: members with an optional photo,
// toggled on and off shift by the administrator. Photos go to the configured
// storage.PhotoStore; the row keeps both the object key and its public URL.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tbourn/go-loyalty-backend/internal/domain"
	"github.com/tbourn/go-loyalty-backend/internal/repo"
	"github.com/tbourn/go-loyalty-backend/internal/storage"
)

// DefaultMaxPhotoBytes bounds an uploaded staff photo.
const DefaultMaxPhotoBytes = 5 << 20

// photoTypes maps accepted photo content types to key extensions.
var photoTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// ErrInvalidPhoto is returned for uploads that are too large or not an image.
var ErrInvalidPhoto = fmt.Errorf("%w: photo must be a jpeg, png, webp or gif image", ErrInvalidInput)

// StaffRepo is the persistence contract behind StaffService.
type StaffRepo interface {
	CreateStaff(ctx context.Context, m *domain.StaffMember) error
	ListStaff(ctx context.Context, onShiftOnly bool) ([]domain.StaffMember, error)
	SetStaffOnShift(ctx context.Context, id uint64, onShift bool) (*domain.StaffMember, error)
	DeleteStaff(ctx context.Context, id uint64) (*domain.StaffMember, error)
}

// NewStaffMember is the input for StaffService.Create.
type NewStaffMember struct {
	Name    string
	Role    string
	OnShift bool
}

// StaffService manages the roster.
type StaffService struct {
	Repo          StaffRepo
	Photos        storage.PhotoStore
	MaxPhotoBytes int64
}

func (s *StaffService) maxPhoto() int64 {
	if s.MaxPhotoBytes > 0 {
		return s.MaxPhotoBytes
	}
	return DefaultMaxPhotoBytes
}

// Create adds a roster entry. photo may be nil. When the row cannot be
// written the uploaded photo is removed again.
func (s *StaffService) Create(ctx context.Context, in NewStaffMember, photo io.Reader) (*domain.StaffMember, error) {
	m := &domain.StaffMember{
		Name:    cleanName(in.Name),
		Role:    strings.TrimSpace(in.Role),
		OnShift: in.OnShift,
	}
	if m.Name == "" {
		return nil, ErrInvalidInput
	}

	if photo != nil {
		if s.Photos == nil {
			return nil, errors.New("photo storage is not configured")
		}
		key, url, err := s.uploadPhoto(ctx, photo)
		if err != nil {
			return nil, err
		}
		m.PhotoKey, m.PhotoURL = key, url
	}

	if err := s.Repo.CreateStaff(ctx, m); err != nil {
		if m.PhotoKey != "" {
			if derr := s.Photos.Delete(ctx, m.PhotoKey); derr != nil {
				zerolog.Ctx(ctx).Warn().Err(derr).Str("key", m.PhotoKey).Msg("remove orphaned staff photo")
			}
		}
		return nil, err
	}
	return m, nil
}

// uploadPhoto sniffs the content type and stores the photo under a random key.
func (s *StaffService) uploadPhoto(ctx context.Context, photo io.Reader) (key, url string, err error) {
	limit := s.maxPhoto()
	data, err := io.ReadAll(io.LimitReader(photo, limit+1))
	if err != nil {
		return "", "", fmt.Errorf("read photo: %w", err)
	}
	if len(data) == 0 || int64(len(data)) > limit {
		return "", "", ErrInvalidPhoto
	}

	mt := mimetype.Detect(data)
	ext, ok := "", false
	for typ, e := range photoTypes {
		if mt.Is(typ) {
			ext, ok = e, true
			break
		}
	}
	if !ok {
		return "", "", ErrInvalidPhoto
	}

	key = "staff/" + uuid.NewString() + ext
	url, err = s.Photos.Put(ctx, key, mt.String(), bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", "", err
	}
	return key, url, nil
}

// ListOnShift returns the members currently working, ordered by name.
func (s *StaffService) ListOnShift(ctx context.Context) ([]domain.StaffMember, error) {
	return s.Repo.ListStaff(ctx, true)
}

// ListAll returns the whole roster, ordered by name.
func (s *StaffService) ListAll(ctx context.Context) ([]domain.StaffMember, error) {
	return s.Repo.ListStaff(ctx, false)
}

// SetOnShift updates a member's shift flag.
func (s *StaffService) SetOnShift(ctx context.Context, id uint64, onShift bool) (*domain.StaffMember, error) {
	m, err := s.Repo.SetStaffOnShift(ctx, id, onShift)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrStaffNotFound
	}
	return m, err
}

// Delete removes a member and then its photo. A photo that fails to delete
// is logged; the roster entry is already gone.
func (s *StaffService) Delete(ctx context.Context, id uint64) error {
	m, err := s.Repo.DeleteStaff(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrStaffNotFound
	}
	if err != nil {
		return err
	}
	if m.PhotoKey != "" && s.Photos != nil {
		if err := s.Photos.Delete(ctx, m.PhotoKey); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("key", m.PhotoKey).Msg("delete staff photo")
		}
	}
	return nil
}
