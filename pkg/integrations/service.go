package integrations

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kodustech/mcp-manager/pkg/crypto"
	"github.com/kodustech/mcp-manager/pkg/errors"
	"github.com/kodustech/mcp-manager/pkg/oauth"
	"github.com/kodustech/mcp-manager/pkg/storage"
)

// Service manages integration records: validation, encrypted-field
// marshaling, and the OAuth2 creation/finalization/refresh lifecycle.
type Service struct {
	store       storage.IntegrationStore
	states      storage.OAuthStateStore
	cipher      *crypto.Cipher
	oauth       *oauth.Client
	redirectURI string
}

// NewService creates an integration service.
func NewService(
	store storage.IntegrationStore,
	states storage.OAuthStateStore,
	cipher *crypto.Cipher,
	oauthClient *oauth.Client,
	redirectURI string,
) *Service {
	return &Service{
		store:       store,
		states:      states,
		cipher:      cipher,
		oauth:       oauthClient,
		redirectURI: redirectURI,
	}
}

// CreateRequest carries the inputs for Create and Edit.
type CreateRequest struct {
	OrganizationID string
	Protocol       Protocol
	BaseURL        string
	Name           string
	Description    string
	LogoURL        string
	Auth           Auth
	Headers        map[string]string
}

// Create validates and stores a non-OAuth2 integration.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Integration, error) {
	if req.Auth.Type == AuthTypeOAuth2 {
		return nil, errors.NewValidationError("oauth2 integrations are created through the OAuth flow", nil)
	}
	if err := validateAuth(req.Auth); err != nil {
		return nil, err
	}

	record, err := s.encodeRecord(req, uuid.NewString())
	if err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, record); err != nil {
		return nil, err
	}
	return s.decodeRecord(record)
}

// Edit re-validates and re-encrypts an existing integration. OAuth2
// integrations are managed only through the OAuth flow and cannot be
// edited.
func (s *Service) Edit(ctx context.Context, id string, req CreateRequest) (*Integration, error) {
	existing, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing.OrganizationID != req.OrganizationID {
		return nil, storage.ErrNotFound
	}
	if existing.AuthType == string(AuthTypeOAuth2) || req.Auth.Type == AuthTypeOAuth2 {
		return nil, errors.NewValidationError("oauth2 integrations cannot be edited", nil)
	}
	if err := validateAuth(req.Auth); err != nil {
		return nil, err
	}

	record, err := s.encodeRecord(req, id)
	if err != nil {
		return nil, err
	}
	record.CreatedAt = existing.CreatedAt
	if err := s.store.Update(ctx, record); err != nil {
		return nil, err
	}
	return s.decodeRecord(record)
}

// Find returns all integrations matching the conjunctive equality
// filter.
func (s *Service) Find(ctx context.Context, filter storage.IntegrationFilter) ([]*Integration, error) {
	records, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := make([]*Integration, 0, len(records))
	for _, record := range records {
		integration, err := s.decodeRecord(record)
		if err != nil {
			return nil, err
		}
		result = append(result, integration)
	}
	return result, nil
}

// FindOne returns the first integration matching the filter, or a
// not-found error.
func (s *Service) FindOne(ctx context.Context, filter storage.IntegrationFilter) (*Integration, error) {
	matches, err := s.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, storage.ErrNotFound
	}
	return matches[0], nil
}

// Get returns one integration by id, scoped to the organization.
func (s *Service) Get(ctx context.Context, id, organizationID string) (*Integration, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.OrganizationID != organizationID {
		return nil, storage.ErrNotFound
	}
	return s.decodeRecord(record)
}

// GetByID returns one integration by id without organization scoping.
// Callers that act on behalf of an end user must use Get instead.
func (s *Service) GetByID(ctx context.Context, id string) (*Integration, error) {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.decodeRecord(record)
}

// Delete soft-deletes an integration and removes its OAuth session
// state.
func (s *Service) Delete(ctx context.Context, id, organizationID string) error {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if record.OrganizationID != organizationID {
		return storage.ErrNotFound
	}
	if err := s.store.SoftDelete(ctx, id); err != nil {
		return err
	}
	return s.states.Delete(ctx, organizationID, id)
}

// validateAuth checks the required fields of the populated variant.
func validateAuth(auth Auth) error {
	switch auth.Type {
	case AuthTypeNone:
		return nil
	case AuthTypeAPIKey:
		if auth.APIKey == nil || auth.APIKey.APIKey == "" || auth.APIKey.HeaderName == "" {
			return errors.NewValidationError("api_key auth requires apiKey and headerName", nil)
		}
		return nil
	case AuthTypeBasic:
		if auth.Basic == nil || auth.Basic.Username == "" {
			return errors.NewValidationError("basic auth requires a username", nil)
		}
		return nil
	case AuthTypeBearerToken:
		if auth.BearerToken == nil || auth.BearerToken.Token == "" {
			return errors.NewValidationError("bearer_token auth requires a token", nil)
		}
		return nil
	case AuthTypeOAuth2:
		if auth.OAuth2 == nil {
			return errors.NewValidationError("oauth2 auth requires an oauth2 payload", nil)
		}
		return nil
	default:
		return errors.NewValidationError(fmt.Sprintf("unsupported auth type %q", auth.Type), nil)
	}
}

// encodeRecord builds the flat encrypted storage row for a request.
func (s *Service) encodeRecord(req CreateRequest, id string) (storage.IntegrationRecord, error) {
	encryptedAuth, err := s.encryptAuth(req.Auth)
	if err != nil {
		return storage.IntegrationRecord{}, err
	}
	encryptedHeaders, err := s.encryptHeaders(req.Headers)
	if err != nil {
		return storage.IntegrationRecord{}, err
	}

	protocol := req.Protocol
	if protocol == "" {
		protocol = ProtocolHTTP
	}

	return storage.IntegrationRecord{
		ID:               id,
		OrganizationID:   req.OrganizationID,
		Active:           true,
		Protocol:         string(protocol),
		BaseURL:          req.BaseURL,
		Name:             req.Name,
		Description:      req.Description,
		LogoURL:          req.LogoURL,
		AuthType:         string(req.Auth.Type),
		EncryptedAuth:    encryptedAuth,
		EncryptedHeaders: encryptedHeaders,
	}, nil
}

// encryptAuth serializes and encrypts the populated auth variant.
// AuthTypeNone stores nothing.
func (s *Service) encryptAuth(auth Auth) (string, error) {
	var payload any
	switch auth.Type {
	case AuthTypeNone:
		return "", nil
	case AuthTypeAPIKey:
		payload = auth.APIKey
	case AuthTypeBasic:
		payload = auth.Basic
	case AuthTypeBearerToken:
		payload = auth.BearerToken
	case AuthTypeOAuth2:
		payload = auth.OAuth2
	default:
		return "", errors.NewInternalError(fmt.Sprintf("unknown auth type %q", auth.Type), nil)
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", errors.NewInternalError("failed to serialize auth payload", err)
	}
	return s.cipher.Encrypt(string(data))
}

func (s *Service) encryptHeaders(headers map[string]string) (string, error) {
	if len(headers) == 0 {
		return "", nil
	}
	data, err := json.Marshal(headers)
	if err != nil {
		return "", errors.NewInternalError("failed to serialize headers", err)
	}
	return s.cipher.Encrypt(string(data))
}

// decodeRecord reconstructs the typed union from a flat stored row. An
// unrecognized auth type is a programming error and fails loudly.
func (s *Service) decodeRecord(record storage.IntegrationRecord) (*Integration, error) {
	auth := Auth{Type: AuthType(record.AuthType)}

	if record.EncryptedAuth != "" {
		plaintext, err := s.cipher.Decrypt(record.EncryptedAuth)
		if err != nil {
			return nil, err
		}

		switch auth.Type {
		case AuthTypeNone:
			// Nothing stored for this variant.
		case AuthTypeAPIKey:
			auth.APIKey = &APIKeyAuth{}
			err = json.Unmarshal([]byte(plaintext), auth.APIKey)
		case AuthTypeBasic:
			auth.Basic = &BasicAuth{}
			err = json.Unmarshal([]byte(plaintext), auth.Basic)
		case AuthTypeBearerToken:
			auth.BearerToken = &BearerTokenAuth{}
			err = json.Unmarshal([]byte(plaintext), auth.BearerToken)
		case AuthTypeOAuth2:
			auth.OAuth2 = &OAuth2Auth{}
			err = json.Unmarshal([]byte(plaintext), auth.OAuth2)
		default:
			return nil, errors.NewInternalError(
				fmt.Sprintf("integration %s has unknown auth type %q", record.ID, record.AuthType), nil)
		}
		if err != nil {
			return nil, errors.NewInternalError("failed to parse auth payload", err)
		}
	} else if auth.Type != AuthTypeNone {
		return nil, errors.NewInternalError(
			fmt.Sprintf("integration %s has auth type %q but no auth payload", record.ID, record.AuthType), nil)
	}

	var headers map[string]string
	if record.EncryptedHeaders != "" {
		plaintext, err := s.cipher.Decrypt(record.EncryptedHeaders)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(plaintext), &headers); err != nil {
			return nil, errors.NewInternalError("failed to parse headers payload", err)
		}
	}

	return &Integration{
		ID:             record.ID,
		OrganizationID: record.OrganizationID,
		Active:         record.Active,
		Protocol:       Protocol(record.Protocol),
		BaseURL:        record.BaseURL,
		Name:           record.Name,
		Description:    record.Description,
		LogoURL:        record.LogoURL,
		Auth:           auth,
		Headers:        headers,
		CreatedAt:      record.CreatedAt,
		UpdatedAt:      record.UpdatedAt,
	}, nil
}
