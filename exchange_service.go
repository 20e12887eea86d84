package bridge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/appboost/bridge/cache"
	"github.com/appboost/bridge/domain"
	apperrors "github.com/appboost/bridge/errors"
	"github.com/appboost/bridge/internal/metrics"
)

// ExchangeService turns a parent-application token into an AppBoost session.
// It resolves the parent user to a profile, provisioning the profile and its
// auth-identity record on first contact, then mints the token pair.
type ExchangeService struct {
	signer     *TokenSigner
	profiles   domain.ProfileRepository
	identities domain.IdentityRepository
	sessions   cache.SessionStore
}

// NewExchangeService creates a new ExchangeService instance.
func NewExchangeService(
	signer *TokenSigner,
	profiles domain.ProfileRepository,
	identities domain.IdentityRepository,
	sessions cache.SessionStore,
) *ExchangeService {
	return &ExchangeService{
		signer:     signer,
		profiles:   profiles,
		identities: identities,
		sessions:   sessions,
	}
}

// Exchange verifies the parent access token, resolves (or provisions) the
// matching profile, and returns a freshly minted session.
func (s *ExchangeService) Exchange(ctx context.Context, accessToken string, profileData *domain.ProfileData) (*domain.Session, error) {
	if accessToken == "" {
		return nil, apperrors.NewMissingToken()
	}

	parentID, err := s.signer.VerifyParentToken(accessToken)
	if err != nil {
		log.Warn().Err(err).Msg("Parent token verification failed")
		metrics.IncExchangeFailure("invalid_token")
		return nil, apperrors.NewInvalidToken()
	}

	if profileData == nil {
		profileData = &domain.ProfileData{}
	}

	profile, err := s.profiles.GetProfileByExternalID(ctx, parentID)
	switch {
	case err == nil:
		if err := s.ensureIdentity(ctx, profile, parentID); err != nil {
			metrics.IncExchangeFailure("identity_provisioning")
			return nil, apperrors.NewUpstream(err.Error())
		}
	case errors.Is(err, domain.ErrProfileNotFound):
		profile, err = s.provision(ctx, parentID, profileData)
		if err != nil {
			metrics.IncExchangeFailure("provisioning")
			return nil, apperrors.NewUpstream(err.Error())
		}
	default:
		metrics.IncExchangeFailure("profile_lookup")
		return nil, apperrors.NewUpstream(fmt.Sprintf("failed to resolve profile: %v", err))
	}

	session, err := s.mintSession(profile.ID, resolveEmail(profile, profileData, parentID))
	if err != nil {
		metrics.IncExchangeFailure("minting")
		return nil, apperrors.NewUpstream(fmt.Sprintf("failed to mint session: %v", err))
	}

	metrics.IncExchangeSuccess()
	return session, nil
}

// Refresh validates a refresh token and mints a new session for its subject.
func (s *ExchangeService) Refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	if refreshToken == "" {
		return nil, apperrors.NewValidation("refresh_token is required")
	}

	profileID, err := s.signer.VerifyRefreshToken(refreshToken)
	if err != nil {
		log.Warn().Err(err).Msg("Refresh token verification failed")
		return nil, apperrors.NewAuth("Invalid refresh token")
	}

	profile, err := s.profiles.GetProfileByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil, apperrors.NewAuth("Invalid refresh token")
		}
		return nil, apperrors.NewUpstream(fmt.Sprintf("failed to resolve profile: %v", err))
	}

	session, err := s.mintSession(profile.ID, profile.Email)
	if err != nil {
		return nil, apperrors.NewUpstream(fmt.Sprintf("failed to mint session: %v", err))
	}

	metrics.IncSessionRefresh()
	return session, nil
}

// Validate checks a minted access token, consulting the session cache before
// falling back to signature verification. It returns the verified entry.
func (s *ExchangeService) Validate(ctx context.Context, accessToken string) (*cache.SessionEntry, error) {
	if entry, found := s.sessions.Get(ctx, accessToken); found {
		return entry, nil
	}

	claims, err := s.signer.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, apperrors.NewAuth("Invalid access token")
	}

	entry := &cache.SessionEntry{
		ProfileID: claims.Subject,
		Email:     claims.Email,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.sessions.Set(ctx, accessToken, entry); err != nil {
		log.Warn().Err(err).Msg("Failed to cache verified session")
	}
	return entry, nil
}

// GetProfile loads the profile behind a verified session.
func (s *ExchangeService) GetProfile(ctx context.Context, profileID string) (*domain.Profile, error) {
	profile, err := s.profiles.GetProfileByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			return nil, apperrors.NewNotFound("profile not found")
		}
		return nil, apperrors.NewUpstream(fmt.Sprintf("failed to load profile: %v", err))
	}
	return profile, nil
}

// ensureIdentity backfills the auth-identity record for an existing profile.
// A missing identity breaks every later authenticated call, so a creation
// failure fails the whole exchange rather than continuing half-provisioned.
func (s *ExchangeService) ensureIdentity(ctx context.Context, profile *domain.Profile, parentID string) error {
	_, err := s.identities.GetIdentityByID(ctx, profile.ID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		return fmt.Errorf("failed to check identity: %w", err)
	}

	log.Warn().Str("profile_id", profile.ID).Msg("Profile has no identity record, backfilling")
	identity := &domain.Identity{
		ID:             profile.ID,
		Provider:       domain.IdentityProviderParent,
		ProviderUserID: parentID,
		Email:          profile.Email,
	}
	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		return fmt.Errorf("failed to backfill identity: %w", err)
	}
	return nil
}

// provision creates the identity record and profile for a previously-unseen
// parent user. The two share one freshly generated id; if the profile write
// fails the identity is rolled back.
func (s *ExchangeService) provision(ctx context.Context, parentID string, profileData *domain.ProfileData) (*domain.Profile, error) {
	id := uuid.NewString()

	identity := &domain.Identity{
		ID:             id,
		Provider:       domain.IdentityProviderParent,
		ProviderUserID: parentID,
		Email:          profileData.Email,
	}
	if err := s.identities.CreateIdentity(ctx, identity); err != nil {
		return nil, fmt.Errorf("failed to create identity: %w", err)
	}

	profile := &domain.Profile{
		ID:             id,
		ExternalUserID: parentID,
		Email:          profileData.Email,
		FullName:       profileData.FullName,
		AvatarURL:      profileData.AvatarURL,
	}
	if err := s.profiles.UpsertProfile(ctx, profile); err != nil {
		if rbErr := s.identities.DeleteIdentity(ctx, id); rbErr != nil {
			log.Error().Err(rbErr).Str("identity_id", id).Msg("Failed to roll back identity after profile upsert failure")
		}
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}

	log.Info().Str("profile_id", id).Str("external_user_id", parentID).Msg("Provisioned new profile")
	metrics.IncProfileProvisioned()
	return profile, nil
}

func (s *ExchangeService) mintSession(profileID, email string) (*domain.Session, error) {
	accessToken, err := s.signer.MintAccessToken(profileID, email)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.signer.MintRefreshToken(profileID)
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ProfileID:    profileID,
		ExpiresIn:    int(s.signer.AccessTokenTTL() / time.Second),
		TokenType:    "bearer",
	}, nil
}

// resolveEmail prefers the stored profile email, then the caller-supplied
// hint, then a synthesized placeholder address.
func resolveEmail(profile *domain.Profile, profileData *domain.ProfileData, parentID string) string {
	if profile.Email != "" {
		return profile.Email
	}
	if profileData.Email != "" {
		return profileData.Email
	}
	return fmt.Sprintf("user-%s@placeholder.appboost.io", parentID)
}
