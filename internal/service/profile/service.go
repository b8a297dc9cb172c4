// Package profile fronts the external profile store: owner-only upserts,
// reads, and media resolution through the blob store.
package profile

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"gorm.io/gorm"

	"github.com/fightr/fightr-core/internal/app"
	"github.com/fightr/fightr-core/internal/blob"
	"github.com/fightr/fightr-core/internal/db"
	svcErr "github.com/fightr/fightr-core/internal/errors"
	"github.com/fightr/fightr-core/internal/repository"
	"github.com/fightr/fightr-core/internal/stream"
)

type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
	blobs       blob.Store
}

// NewService creates a profile service with dependencies from AppContext
// and the media store.
func NewService(appCtx *app.AppContext, blobs blob.Store) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		blobs:       blobs,
	}
}

// SaveInput carries the owner-editable profile fields. Image bytes, when
// present, are resolved through the blob store before the save.
type SaveInput struct {
	Name      string `json:"name"`
	Age       int    `json:"age"`
	Contact   string `json:"contact"`
	Bio       string `json:"bio"`
	Height    string `json:"height"`
	Weight    string `json:"weight"`
	Training  string `json:"training"`
	ImageURL  string `json:"imageUrl"`
	ImageName string `json:"-"`
	Image     []byte `json:"-"`
}

// Get fetches the user's profile, ErrProfileNotFound when none was saved yet.
func (s *Service) Get(ctx context.Context, userID string) (*db.Profile, error) {
	p, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.ErrProfileNotFound
		}
		return nil, err
	}
	return p, nil
}

// Save creates the profile on first call and replaces the display fields
// afterwards. Only the owner ever reaches this path. The change is
// broadcast so every open discovery deck refreshes.
func (s *Service) Save(ctx context.Context, userID string, in SaveInput) (*db.Profile, error) {
	imageURL := in.ImageURL
	if len(in.Image) > 0 {
		name := in.ImageName
		if name == "" {
			name = fmt.Sprintf("%d", time.Now().UnixMilli())
		}
		url, err := s.blobs.Put(ctx, path.Join("profile_images", userID, name), in.Image)
		if err != nil {
			return nil, fmt.Errorf("failed to store profile image: %w", err)
		}
		imageURL = url
	}

	p := &db.Profile{
		UserID:   userID,
		Name:     in.Name,
		Age:      in.Age,
		Contact:  in.Contact,
		Bio:      in.Bio,
		Height:   in.Height,
		Weight:   in.Weight,
		Training: in.Training,
		ImageURL: imageURL,
	}
	if err := s.profileRepo.Upsert(ctx, p); err != nil {
		return nil, err
	}

	saved, err := s.profileRepo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	for _, target := range []string{userID, stream.BroadcastAll} {
		if err := s.appCtx.Broker.Publish(ctx, stream.CollectionProfiles, target, stream.Modified, saved); err != nil {
			s.appCtx.Logger.Warn("profile stream publish failed", "user", userID, "err", err)
		}
	}
	return saved, nil
}
