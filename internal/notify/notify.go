// Package notify sends SMS alerts to the agency when a new project submission
// is created, via the Twilio REST API.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

// Opts holds configuration options for the Twilio SMS client.
type Opts struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	ToNumber   string // agency number that receives submission alerts
}

// Option defines a configuration option for the Twilio SMS client.
type Option func(*Opts)

// WithAccountSID sets the Twilio account SID.
func WithAccountSID(sid string) Option {
	return func(o *Opts) { o.AccountSID = sid }
}

// WithAuthToken sets the Twilio auth token.
func WithAuthToken(token string) Option {
	return func(o *Opts) { o.AuthToken = token }
}

// WithFromNumber sets the sending phone number.
func WithFromNumber(from string) Option {
	return func(o *Opts) { o.FromNumber = from }
}

// WithToNumber sets the agency phone number that receives alerts.
func WithToNumber(to string) Option {
	return func(o *Opts) { o.ToNumber = to }
}

// Client wraps the Twilio REST API for submission alerts.
type Client struct {
	client *twilio.RestClient
	from   string
	to     string
}

// NewClient creates a Twilio SMS client, falling back to environment
// variables for any option not provided explicitly.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.AccountSID == "" {
		cfg.AccountSID = os.Getenv("TWILIO_ACCOUNT_SID")
	}
	if cfg.AuthToken == "" {
		cfg.AuthToken = os.Getenv("TWILIO_AUTH_TOKEN")
	}
	if cfg.FromNumber == "" {
		cfg.FromNumber = os.Getenv("TWILIO_FROM_NUMBER")
	}
	if cfg.ToNumber == "" {
		cfg.ToNumber = os.Getenv("ONBOARD_NOTIFY_NUMBER")
	}

	slog.Debug("Twilio client config loaded",
		"AccountSID_set", cfg.AccountSID != "",
		"AuthToken_set", cfg.AuthToken != "",
		"FromNumber_set", cfg.FromNumber != "",
		"ToNumber_set", cfg.ToNumber != "")

	if cfg.AccountSID == "" || cfg.AuthToken == "" {
		return nil, fmt.Errorf("account SID and auth token must be provided")
	}
	if cfg.FromNumber == "" || cfg.ToNumber == "" {
		return nil, fmt.Errorf("from and to numbers must be provided")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})

	return &Client{client: client, from: cfg.FromNumber, to: cfg.ToNumber}, nil
}

// SubmissionCreated sends an SMS alert describing the new submission.
func (c *Client) SubmissionCreated(ctx context.Context, submission models.Submission) error {
	body := FormatAlert(submission)

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(c.to)
	params.SetFrom(c.from)
	params.SetBody(body)

	if _, err := c.client.Api.CreateMessage(params); err != nil {
		slog.Error("notify.SubmissionCreated: failed to send SMS", "error", err, "submissionID", submission.ID)
		return fmt.Errorf("failed to send submission alert: %w", err)
	}
	slog.Info("notify.SubmissionCreated: alert sent", "submissionID", submission.ID)
	return nil
}

// FormatAlert renders the SMS body for a submission alert.
func FormatAlert(submission models.Submission) string {
	return fmt.Sprintf("New %s inquiry: %s (%s) - %s", submission.ServiceType,
		submission.ProjectName, submission.CompanyName, submission.Email)
}
