package integrations

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/oauth"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

// GetOAuthStatus returns the session status for the pair, or the empty
// string when no session exists.
func (s *Service) GetOAuthStatus(ctx context.Context, organizationID, integrationID string) (string, error) {
	record, err := s.states.Get(ctx, organizationID, integrationID)
	if err != nil {
		return "", err
	}
	if record == nil {
		return "", nil
	}
	return record.Status, nil
}

// GetOAuthState returns the decrypted session state for the pair, or
// nil when none exists. Absence is a valid "never connected" condition.
func (s *Service) GetOAuthState(ctx context.Context, organizationID, integrationID string) (*OAuthState, error) {
	record, err := s.states.Get(ctx, organizationID, integrationID)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	state := &OAuthState{
		OrganizationID: record.OrganizationID,
		IntegrationID:  record.IntegrationID,
		Status:         record.Status,
	}
	if record.EncryptedAuth != "" {
		plaintext, err := s.cipher.Decrypt(record.EncryptedAuth)
		if err != nil {
			return nil, err
		}
		state.Auth = &OAuth2Auth{}
		if err := json.Unmarshal([]byte(plaintext), state.Auth); err != nil {
			return nil, errors.NewInternalError("failed to parse oauth state payload", err)
		}
	}
	return state, nil
}

// SaveOAuthState encrypts and upserts the session state for its pair.
func (s *Service) SaveOAuthState(ctx context.Context, state OAuthState) error {
	return s.saveState(ctx, state)
}

func (s *Service) saveState(ctx context.Context, state OAuthState) error {
	encrypted := ""
	if state.Auth != nil {
		data, err := json.Marshal(state.Auth)
		if err != nil {
			return errors.NewInternalError("failed to serialize oauth state payload", err)
		}
		encrypted, err = s.cipher.Encrypt(string(data))
		if err != nil {
			return err
		}
	}

	return s.states.Upsert(ctx, storage.OAuthStateRecord{
		ID:             uuid.NewString(),
		OrganizationID: state.OrganizationID,
		IntegrationID:  state.IntegrationID,
		Status:         state.Status,
		EncryptedAuth:  encrypted,
	})
}

// RefreshOAuthStateIfNeeded opportunistically refreshes the session's
// token set before a tool call. Client credentials missing from the
// session are merged in from the companion integration record. A failed
// refresh returns the state unchanged: a possibly stale token that
// still has some life left beats hard-failing the read path.
func (s *Service) RefreshOAuthStateIfNeeded(ctx context.Context, organizationID, integrationID string) (*OAuthState, error) {
	state, err := s.GetOAuthState(ctx, organizationID, integrationID)
	if err != nil || state == nil {
		return state, err
	}
	if state.Auth == nil || state.Auth.Tokens == nil {
		return state, nil
	}

	if state.Auth.ClientID == "" || state.Auth.TokenEndpoint == "" {
		if err := s.mergeIntegrationCredentials(ctx, state); err != nil {
			return nil, err
		}
	}

	refreshed := s.oauth.CheckAndRefresh(ctx, state.Auth.TokenEndpoint, oauth.RefreshCheck{
		Tokens:       state.Auth.Tokens,
		ClientID:     state.Auth.ClientID,
		ClientSecret: state.Auth.ClientSecret,
	})
	if refreshed == nil || refreshed == state.Auth.Tokens {
		return state, nil
	}

	state.Auth.Tokens = refreshed
	state.Status = OAuthStatusActive
	if err := s.saveState(ctx, *state); err != nil {
		return nil, err
	}
	return state, nil
}

// DeleteOAuthState hard-deletes the session state for the pair.
func (s *Service) DeleteOAuthState(ctx context.Context, organizationID, integrationID string) error {
	return s.states.Delete(ctx, organizationID, integrationID)
}

// mergeIntegrationCredentials fills session fields from the values
// decrypted off the integration record.
func (s *Service) mergeIntegrationCredentials(ctx context.Context, state *OAuthState) error {
	integration, err := s.Get(ctx, state.IntegrationID, state.OrganizationID)
	if err != nil {
		return err
	}
	if integration.Auth.OAuth2 == nil {
		return nil
	}

	stored := integration.Auth.OAuth2
	if state.Auth.ClientID == "" {
		state.Auth.ClientID = stored.ClientID
		state.Auth.ClientSecret = stored.ClientSecret
	}
	if state.Auth.TokenEndpoint == "" {
		state.Auth.TokenEndpoint = stored.TokenEndpoint
	}
	return nil
}
