package gmailclient

import (
	"context"
	"fmt"
	"sync"
	"time"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/intergroup-dev/volunteer-shifts/internal/config"
	"github.com/intergroup-dev/volunteer-shifts/pkg/utils"
)

// Client wraps the Gmail API client
type Client struct {
	service      *gmail.Service
	sender       string
	lastSendTime time.Time
	sendMutex    sync.Mutex
}

// NewClient creates a new Gmail client, performing the OAuth flow if no valid
// token is cached for the given environment. sender, when non-empty, becomes
// the From header on outgoing mail.
func NewClient(ctx context.Context, oauthCfg *config.OAuthClientConfig, env, sender string) (*Client, error) {
	oauthConfig, err := utils.GetOAuthConfig(oauthCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth config: %w", err)
	}

	token, err := utils.GetTokenWithFlow(ctx, oauthConfig, env)
	if err != nil {
		return nil, fmt.Errorf("failed to get oauth token: %w", err)
	}

	httpClient := oauthConfig.Client(ctx, token)

	service, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create gmail service: %w", err)
	}

	return &Client{
		service: service,
		sender:  sender,
	}, nil
}
