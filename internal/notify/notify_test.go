package notify

import (
	"strings"
	"testing"

	"github.com/qkeluna/lunaxcode-onboarding/internal/models"
)

func TestNewClientRequiresCredentials(t *testing.T) {
	// Make sure ambient environment variables do not leak into the test.
	t.Setenv("TWILIO_ACCOUNT_SID", "")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "")
	t.Setenv("ONBOARD_NOTIFY_NUMBER", "")

	if _, err := NewClient(); err == nil {
		t.Error("expected error without credentials")
	}
	if _, err := NewClient(WithAccountSID("AC123"), WithAuthToken("token")); err == nil {
		t.Error("expected error without phone numbers")
	}
	client, err := NewClient(
		WithAccountSID("AC123"),
		WithAuthToken("token"),
		WithFromNumber("+15550001111"),
		WithToNumber("+15550002222"),
	)
	if err != nil {
		t.Fatalf("NewClient with full options: %v", err)
	}
	if client.from != "+15550001111" || client.to != "+15550002222" {
		t.Errorf("numbers not applied: from=%s to=%s", client.from, client.to)
	}
}

func TestNewClientEnvFallback(t *testing.T) {
	t.Setenv("TWILIO_ACCOUNT_SID", "AC999")
	t.Setenv("TWILIO_AUTH_TOKEN", "secret")
	t.Setenv("TWILIO_FROM_NUMBER", "+15550003333")
	t.Setenv("ONBOARD_NOTIFY_NUMBER", "+15550004444")

	client, err := NewClient()
	if err != nil {
		t.Fatalf("NewClient from environment: %v", err)
	}
	if client.from != "+15550003333" {
		t.Errorf("from = %s, want the environment value", client.from)
	}
	if client.to != "+15550004444" {
		t.Errorf("to = %s, want the environment value", client.to)
	}

	// Explicit options win over the environment.
	client, err = NewClient(WithFromNumber("+15550005555"))
	if err != nil {
		t.Fatalf("NewClient with override: %v", err)
	}
	if client.from != "+15550005555" {
		t.Errorf("from = %s, explicit option should win", client.from)
	}
}

func TestFormatAlert(t *testing.T) {
	body := FormatAlert(models.Submission{
		ServiceType: models.ServiceMobileApp,
		ProjectName: "FitTrack",
		CompanyName: "Iron Labs",
		Email:       "ceo@ironlabs.test",
	})
	for _, want := range []string{"mobile_app", "FitTrack", "Iron Labs", "ceo@ironlabs.test"} {
		if !strings.Contains(body, want) {
			t.Errorf("alert body missing %q: %s", want, body)
		}
	}
}
