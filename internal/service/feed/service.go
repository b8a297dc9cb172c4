// Package feed supplies discovery candidates: every fighter except the
// viewer and anyone the viewer already liked. A pure filter over the
// profile store and the like ledger.
package feed

import (
	"context"

	"github.com/fightr/fightr-core/internal/app"
	"github.com/fightr/fightr-core/internal/db"
	"github.com/fightr/fightr-core/internal/repository"
)

type Service struct {
	appCtx      *app.AppContext
	profileRepo *repository.ProfileRepository
	likeRepo    *repository.LikeRepository
}

// NewService creates a discovery feed with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		profileRepo: repository.NewProfileRepository(appCtx.DB),
		likeRepo:    repository.NewLikeRepository(appCtx.DB),
	}
}

// Candidates returns the viewer's next page of the deck. A profile the
// viewer has liked before is never offered again, whatever page it would
// have landed on.
func (s *Service) Candidates(ctx context.Context, viewerID string, paginationToken *string, limit int) ([]db.Profile, *string, error) {
	likedIDs, err := s.likeRepo.LikedIDs(ctx, viewerID)
	if err != nil {
		return nil, nil, err
	}

	profiles, nextToken, err := s.profileRepo.ListExcept(ctx, viewerID, likedIDs, paginationToken, limit)
	if err != nil {
		return nil, nil, err
	}

	s.appCtx.Logger.Debug("Candidates served",
		"viewer", viewerID, "count", len(profiles), "excluded", len(likedIDs))
	return profiles, nextToken, nil
}
