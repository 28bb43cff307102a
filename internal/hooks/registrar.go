// Package hooks registers GitLab project hooks that post to this service and
// binds each hook's token to a Matrix room.
package hooks

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"net/http"

	gitlab "gitlab.com/gitlab-org/api/client-go"
	"go.uber.org/zap"

	"github.com/redhat-data-and-ai/hookbot/internal/config"
	apperrors "github.com/redhat-data-and-ai/hookbot/internal/errors"
	"github.com/redhat-data-and-ai/hookbot/internal/logging"
	"github.com/redhat-data-and-ai/hookbot/internal/store"
)

const tokenBytes = 32

// Registration describes a hook created by Register
type Registration struct {
	HookID  int
	URL     string
	Binding store.Binding
}

// Registrar creates project hooks and stores their room bindings
type Registrar struct {
	client     *gitlab.Client
	bindings   store.BindingStore
	webhookURL string
	logger     *logging.Logger
}

// NewRegistrar creates a registrar for the GitLab instance in cfg. Hooks
// will post to cfg.WebhookURL().
func NewRegistrar(cfg *config.Config, bindings store.BindingStore) (*Registrar, error) {
	if err := cfg.ValidateHookRegistration(); err != nil {
		return nil, err
	}

	httpClient, err := newHTTPClient(cfg.GitLab)
	if err != nil {
		return nil, err
	}

	client, err := gitlab.NewClient(cfg.GitLab.Token,
		gitlab.WithBaseURL(cfg.GitLab.BaseURL+"/api/v4"),
		gitlab.WithHTTPClient(httpClient),
	)
	if err != nil {
		return nil, apperrors.NewErrorWithCause(apperrors.ErrConfigurationError,
			"Failed to create GitLab client", err).
			WithContext("base_url", cfg.GitLab.BaseURL)
	}

	return &Registrar{
		client:     client,
		bindings:   bindings,
		webhookURL: cfg.WebhookURL(),
		logger:     logging.GetLogger(),
	}, nil
}

// Register creates a hook on project (numeric id or full path) sending
// every supported event to roomID. The hook is removed again if the binding
// cannot be stored, so GitLab never posts a token the service doesn't know.
func (r *Registrar) Register(ctx context.Context, project, roomID string) (*Registration, error) {
	if project == "" {
		return nil, apperrors.NewValidationError("project", "must not be empty")
	}
	if roomID == "" {
		return nil, apperrors.NewValidationError("room", "must not be empty")
	}

	token, err := newToken()
	if err != nil {
		return nil, apperrors.NewErrorWithCause(apperrors.ErrInternalServer, "Failed to generate webhook token", err)
	}

	hook, resp, err := r.client.Projects.AddProjectHook(project, &gitlab.AddProjectHookOptions{
		URL:                      gitlab.Ptr(r.webhookURL),
		Token:                    gitlab.Ptr(token),
		PushEvents:               gitlab.Ptr(true),
		TagPushEvents:            gitlab.Ptr(true),
		IssuesEvents:             gitlab.Ptr(true),
		ConfidentialIssuesEvents: gitlab.Ptr(true),
		MergeRequestsEvents:      gitlab.Ptr(true),
		NoteEvents:               gitlab.Ptr(true),
		ConfidentialNoteEvents:   gitlab.Ptr(true),
		JobEvents:                gitlab.Ptr(true),
		PipelineEvents:           gitlab.Ptr(true),
		WikiPageEvents:           gitlab.Ptr(true),
		EnableSSLVerification:    gitlab.Ptr(true),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, gitlabError("add project hook", project, resp, err)
	}

	binding := store.Binding{Token: token, Room: roomID, Project: project}
	if err := r.bindings.AddWebhookRoom(ctx, binding); err != nil {
		if _, derr := r.client.Projects.DeleteProjectHook(project, hook.ID, gitlab.WithContext(ctx)); derr != nil {
			r.logger.Error("Failed to remove hook after binding error",
				zap.String("project", project),
				zap.Int("hook_id", hook.ID),
				zap.Error(derr))
		}
		return nil, err
	}

	r.logger.RoomInfo(roomID, "Registered GitLab project hook",
		zap.String("project", project),
		zap.Int("hook_id", hook.ID),
		zap.String("url", r.webhookURL))

	return &Registration{HookID: hook.ID, URL: r.webhookURL, Binding: binding}, nil
}

// newToken returns 32 random bytes, base64url encoded without padding
func newToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func gitlabError(op, project string, resp *gitlab.Response, err error) error {
	appErr := apperrors.NewErrorWithCause(apperrors.ErrGitLabAPIFailed, "GitLab request failed", err).
		WithContext("operation", op).
		WithContext("project", project)
	if resp != nil && resp.Response != nil {
		appErr = appErr.WithContext("status", resp.StatusCode)
		if resp.StatusCode == http.StatusNotFound {
			appErr.Message = "GitLab project not found or not accessible"
		}
	}
	return appErr
}
