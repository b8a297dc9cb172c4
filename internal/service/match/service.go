// Package match is the engine that turns one-sided likes into confirmed
// match pairs and keeps the two owned halves of a pair in sync.
package match

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fightr/fightr-core/internal/app"
	"github.com/fightr/fightr-core/internal/db"
	svcErr "github.com/fightr/fightr-core/internal/errors"
	"github.com/fightr/fightr-core/internal/repository"
	"github.com/fightr/fightr-core/internal/stream"
)

// Service contains the matching business logic on top of the like ledger,
// the match repository and the sync broker.
type Service struct {
	appCtx      *app.AppContext
	likeRepo    *repository.LikeRepository
	matchRepo   *repository.MatchRepository
	profileRepo *repository.ProfileRepository
}

// NewService creates a match engine with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:      appCtx,
		likeRepo:    repository.NewLikeRepository(appCtx.DB),
		matchRepo:   repository.NewMatchRepository(appCtx.DB),
		profileRepo: repository.NewProfileRepository(appCtx.DB),
	}
}

// View is the match record shape surfaced to clients and the sync stream.
type View struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"ownerId"`
	MatchedWith string     `json:"matchedWith"`
	CreatedAt   time.Time  `json:"createdAt"`
	Arranged    bool       `json:"arranged"`
	ArrangedAt  *time.Time `json:"arrangedAt,omitempty"`
}

// WithOpponent pairs a match half with the counterpart's profile card.
// Opponent is nil when the profile is not readable, the match itself still
// renders.
type WithOpponent struct {
	View
	Opponent *db.Profile `json:"opponent,omitempty"`
}

func toView(m *db.Match) View {
	return View{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		MatchedWith: m.MatchedWith,
		CreatedAt:   m.CreatedAt,
		Arranged:    m.Arranged,
		ArrangedAt:  m.ArrangedAt,
	}
}

// LikeResult reports what a recorded like produced.
type LikeResult struct {
	Matched bool  `json:"matched"`
	Match   *View `json:"match,omitempty"`
}

// Like records actor's interest in target and, when target already liked
// actor back, materializes the match pair.
//
// Behavior:
//   - Self-likes are rejected with ErrSelfLike.
//   - A duplicate like fails with ErrDuplicateLike and never creates a
//     second pair; pair creation happens only on the like that transitions
//     reciprocity from false to true. A duplicate of a mutual like still
//     re-runs the pair materialization, so replaying the call repairs a
//     half-written pair.
//   - The two halves share one createdAt and one pair key but are written
//     independently; the counterpart write failing never rolls back the
//     caller's half.
func (s *Service) Like(ctx context.Context, actorID, targetID string) (*LikeResult, error) {
	s.appCtx.Logger.Debug("Like called", "actor", actorID, "target", targetID)

	if actorID == targetID {
		return nil, svcErr.ErrSelfLike
	}

	if _, err := s.likeRepo.RecordLike(ctx, actorID, targetID); err != nil {
		if errors.Is(err, svcErr.ErrDuplicateLike) {
			s.healPair(ctx, actorID, targetID)
		}
		return nil, err
	}

	// cache only, DB stays the source of truth
	if err := s.appCtx.RedisCache.BumpCount(ctx, s.appCtx.RedisCache.KeyForLikeCount(targetID)); err != nil {
		s.appCtx.Logger.Warn("like counter bump failed", "target", targetID, "err", err)
	}

	mutual, err := s.likeRepo.HasLiked(ctx, targetID, actorID)
	if err != nil {
		return nil, err
	}
	if !mutual {
		return &LikeResult{Matched: false}, nil
	}

	mine, err := s.materializePair(ctx, actorID, targetID)
	if err != nil {
		return nil, err
	}
	v := toView(mine)
	return &LikeResult{Matched: true, Match: &v}, nil
}

// healPair re-runs pair materialization for a like that was already on the
// ledger. A replayed mutual like lands here; the idempotent writes restore
// whichever half a previous partial failure left missing.
func (s *Service) healPair(ctx context.Context, actorID, targetID string) {
	mutual, err := s.likeRepo.HasLiked(ctx, targetID, actorID)
	if err != nil || !mutual {
		return
	}
	if _, err := s.materializePair(ctx, actorID, targetID); err != nil {
		s.appCtx.Logger.Warn("pair reconciliation failed",
			"actor", actorID, "target", targetID, "err", err)
	}
}

// materializePair writes the caller's half and then the counterpart's half
// as two independent idempotent writes. An existing half on either side is
// reused (same pair key, same createdAt) so a reconciliation retry heals
// the gap instead of forking a second pair.
func (s *Service) materializePair(ctx context.Context, actorID, targetID string) (*db.Match, error) {
	mine, err := s.matchRepo.FindHalf(ctx, actorID, targetID)
	switch {
	case err == nil:
		// already materialized on a previous attempt, heal the counterpart below
	case errors.Is(err, gorm.ErrRecordNotFound):
		mine = &db.Match{
			ID:          uuid.NewString(),
			OwnerID:     actorID,
			MatchedWith: targetID,
			PairKey:     uuid.NewString(),
			CreatedAt:   time.Now().UTC().Truncate(time.Millisecond),
		}
		// the counterpart half survives when the caller's own write was the
		// one that got lost; adopt its key so the pair never forks
		if theirs, terr := s.matchRepo.FindHalf(ctx, targetID, actorID); terr == nil {
			mine.PairKey = theirs.PairKey
			mine.CreatedAt = theirs.CreatedAt
		}
		created, err := s.matchRepo.CreateHalf(ctx, mine)
		if err != nil {
			return nil, err
		}
		if created {
			s.publish(ctx, actorID, stream.Added, toView(mine))
		}
	default:
		return nil, err
	}

	theirs := &db.Match{
		ID:          uuid.NewString(),
		OwnerID:     targetID,
		MatchedWith: actorID,
		PairKey:     mine.PairKey,
		CreatedAt:   mine.CreatedAt,
	}
	created, err := s.matchRepo.CreateHalf(ctx, theirs)
	if err != nil {
		// partial failure: the caller's half stands, the next Like or
		// ArrangeFight retry re-runs this path
		s.appCtx.Logger.Warn("counterpart match half write failed",
			"owner", targetID, "matchedWith", actorID, "err", err)
		return mine, nil
	}
	if created {
		s.publish(ctx, targetID, stream.Added, toView(theirs))
	}
	return mine, nil
}

// ArrangeFight flips arranged on the caller's match half, then mirrors the
// flip onto the counterpart half located via the pair key.
//
// Behavior:
//   - Unknown match id for this caller fails with ErrMatchNotFound.
//   - A missing counterpart half is non-fatal: it is recreated from the
//     caller's half (same pair key, same createdAt) and flipped with it.
//     Only when that recreate also fails does the call return
//     ErrCounterpartMissing with the caller's half already updated; a
//     later retry heals. Both writes are idempotent field replacements.
func (s *Service) ArrangeFight(ctx context.Context, userID, matchID string) (*View, error) {
	mine, err := s.matchRepo.GetOwned(ctx, userID, matchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, svcErr.ErrMatchNotFound
		}
		return nil, err
	}

	// reuse the original arrangedAt on retries so both halves agree
	at := time.Now().UTC().Truncate(time.Millisecond)
	if mine.Arranged && mine.ArrangedAt != nil {
		at = *mine.ArrangedAt
	}

	if err := s.matchRepo.SetArranged(ctx, mine.ID, at); err != nil {
		return nil, err
	}
	mine.Arranged = true
	mine.ArrangedAt = &at
	v := toView(mine)
	s.publish(ctx, userID, stream.Modified, v)

	theirs, err := s.matchRepo.Counterpart(ctx, mine.PairKey, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// the counterpart write was lost, rebuild it from the surviving half
		theirs = &db.Match{
			ID:          uuid.NewString(),
			OwnerID:     mine.MatchedWith,
			MatchedWith: mine.OwnerID,
			PairKey:     mine.PairKey,
			CreatedAt:   mine.CreatedAt,
		}
		created, cerr := s.matchRepo.CreateHalf(ctx, theirs)
		if cerr != nil || !created {
			s.appCtx.Logger.Warn("counterpart match record could not be rebuilt",
				"owner", userID, "pairKey", mine.PairKey, "err", cerr)
			return &v, svcErr.ErrCounterpartMissing
		}
		s.publish(ctx, theirs.OwnerID, stream.Added, toView(theirs))
	} else if err != nil {
		s.appCtx.Logger.Warn("counterpart match lookup failed during arrange",
			"owner", userID, "pairKey", mine.PairKey, "err", err)
		return &v, svcErr.ErrCounterpartMissing
	}
	if err := s.matchRepo.SetArranged(ctx, theirs.ID, at); err != nil {
		s.appCtx.Logger.Warn("counterpart arrange flip failed",
			"owner", theirs.OwnerID, "match", theirs.ID, "err", err)
		return &v, svcErr.ErrCounterpartMissing
	}
	theirs.Arranged = true
	theirs.ArrangedAt = &at
	s.publish(ctx, theirs.OwnerID, stream.Modified, toView(theirs))

	return &v, nil
}

// Matches lists the caller's own match halves, newest first, each joined
// with the opponent's profile card.
func (s *Service) Matches(ctx context.Context, userID string, paginationToken *string, limit int) ([]WithOpponent, *string, error) {
	halves, nextToken, err := s.matchRepo.ListOwned(ctx, userID, paginationToken, limit)
	if err != nil {
		return nil, nil, err
	}

	out := make([]WithOpponent, 0, len(halves))
	for i := range halves {
		m := halves[i]
		entry := WithOpponent{View: toView(&m)}
		if opponent, err := s.profileRepo.Get(ctx, m.MatchedWith); err == nil {
			entry.Opponent = opponent
		}
		out = append(out, entry)
	}
	return out, nextToken, nil
}

// LikeCount returns how many fighters liked the user.
// Cache-first strategy:
//  1. Attempts the Redis counter.
//  2. On miss, falls back to the like ledger and refreshes the cache.
func (s *Service) LikeCount(ctx context.Context, userID string) (int64, error) {
	key := s.appCtx.RedisCache.KeyForLikeCount(userID)

	if n, hit, err := s.appCtx.RedisCache.GetCount(ctx, key); err == nil && hit {
		return n, nil
	}

	count, err := s.likeRepo.CountLikers(ctx, userID)
	if err != nil {
		return 0, err
	}
	_ = s.appCtx.RedisCache.SetCount(ctx, key, count)
	return count, nil
}

func (s *Service) publish(ctx context.Context, userID string, typ stream.ChangeType, doc any) {
	if err := s.appCtx.Broker.Publish(ctx, stream.CollectionMatches, userID, typ, doc); err != nil {
		s.appCtx.Logger.Warn("match stream publish failed", "user", userID, "err", err)
	}
}
