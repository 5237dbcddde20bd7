package openbanking

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"testing"

	"go.uber.org/zap/zaptest"

	"tavola/internal/domain/institution"
	"tavola/internal/domain/requisition"
	ofclient "tavola/internal/infrastructure/openbanking"
)

func TestCreateConnection(t *testing.T) {
	var gotAgreement ofclient.AgreementRequest
	var gotRequisition ofclient.RequisitionRequest
	client := &MockClient{
		CreateAgreementFunc: func(ctx context.Context, token string, req ofclient.AgreementRequest) (*ofclient.Agreement, error) {
			if token != "tok" {
				t.Errorf("token = %q, want tok", token)
			}
			gotAgreement = req
			return &ofclient.Agreement{ID: "agr-42"}, nil
		},
		CreateRequisitionFunc: func(ctx context.Context, token string, req ofclient.RequisitionRequest) (*ofclient.Requisition, error) {
			gotRequisition = req
			return &ofclient.Requisition{ID: "req-42", Status: "CR", Link: "https://ob.example/start/req-42"}, nil
		},
	}
	repo := newMemRequisitionRepo()
	o := NewConsentOrchestrator(staticTokens{token: "tok"}, client, repo, nil, ConsentConfig{
		RedirectURL:  "https://app.example/bank-callback",
		UserLanguage: "ES",
	}, zaptest.NewLogger(t))

	conn, err := o.CreateConnection(context.Background(), "BBVA_BBVAESMM")
	if err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}

	if conn.AuthorizationURL != "https://ob.example/start/req-42" || conn.RequisitionID != "req-42" {
		t.Errorf("CreateConnection() = %+v", conn)
	}
	if !regexp.MustCompile(`^\d{13}-[0-9a-f]{8}$`).MatchString(conn.Reference) {
		t.Errorf("reference %q does not look like <millis>-<uuid8>", conn.Reference)
	}

	if gotAgreement.MaxHistoricalDays != 90 || gotAgreement.AccessValidForDays != 90 {
		t.Errorf("agreement policy = %+v", gotAgreement)
	}
	if len(gotAgreement.AccessScope) != 3 {
		t.Errorf("scope = %v", gotAgreement.AccessScope)
	}
	if gotRequisition.Agreement != "agr-42" || gotRequisition.Redirect != "https://app.example/bank-callback" ||
		gotRequisition.Reference != conn.Reference || gotRequisition.UserLanguage != "ES" {
		t.Errorf("requisition request = %+v", gotRequisition)
	}

	if _, ok := repo.agreements["agr-42"]; !ok {
		t.Error("agreement not persisted")
	}
	stored, err := repo.GetByReference(context.Background(), conn.Reference)
	if err != nil {
		t.Fatalf("requisition not persisted: %v", err)
	}
	if stored.Status != requisition.StatusCreated || stored.AgreementID != "agr-42" || stored.InstitutionID != "BBVA_BBVAESMM" {
		t.Errorf("stored requisition = %+v", stored)
	}
}

func TestCreateConnection_StepFailures(t *testing.T) {
	providerErr := &ofclient.APIError{StatusCode: http.StatusBadRequest, Summary: "Invalid"}

	tests := []struct {
		name            string
		tokens          TokenSource
		client          *MockClient
		wantStep        string
		wantAgreements  int
		wantRequisition int
	}{
		{
			name:     "token",
			tokens:   staticTokens{err: ErrConfigMissing},
			client:   &MockClient{},
			wantStep: StepToken,
		},
		{
			name:   "agreement",
			tokens: staticTokens{token: "tok"},
			client: &MockClient{CreateAgreementFunc: func(ctx context.Context, token string, req ofclient.AgreementRequest) (*ofclient.Agreement, error) {
				return nil, providerErr
			}},
			wantStep: StepAgreement,
		},
		{
			name:   "requisition keeps agreement",
			tokens: staticTokens{token: "tok"},
			client: &MockClient{CreateRequisitionFunc: func(ctx context.Context, token string, req ofclient.RequisitionRequest) (*ofclient.Requisition, error) {
				return nil, providerErr
			}},
			wantStep:       StepRequisition,
			wantAgreements: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRequisitionRepo()
			o := NewConsentOrchestrator(tt.tokens, tt.client, repo, nil, ConsentConfig{}, zaptest.NewLogger(t))

			_, err := o.CreateConnection(context.Background(), "BBVA_BBVAESMM")
			var stepErr *StepError
			if !errors.As(err, &stepErr) {
				t.Fatalf("expected *StepError, got %v", err)
			}
			if stepErr.Step != tt.wantStep {
				t.Errorf("Step = %q, want %q", stepErr.Step, tt.wantStep)
			}
			if len(repo.agreements) != tt.wantAgreements {
				t.Errorf("agreements = %d, want %d", len(repo.agreements), tt.wantAgreements)
			}
			if len(repo.requisitions) != tt.wantRequisition {
				t.Errorf("requisitions = %d, want %d", len(repo.requisitions), tt.wantRequisition)
			}
		})
	}
}

func TestCreateConnection_TokenErrorKeepsCause(t *testing.T) {
	o := NewConsentOrchestrator(staticTokens{err: ErrConfigMissing}, &MockClient{}, newMemRequisitionRepo(), nil, ConsentConfig{}, zaptest.NewLogger(t))

	_, err := o.CreateConnection(context.Background(), "BBVA_BBVAESMM")
	if !errors.Is(err, ErrConfigMissing) {
		t.Errorf("expected ErrConfigMissing through StepError, got %v", err)
	}
}

func TestCreateConnection_EmptyInstitution(t *testing.T) {
	client := &MockClient{}
	o := NewConsentOrchestrator(staticTokens{token: "tok"}, client, newMemRequisitionRepo(), nil, ConsentConfig{}, zaptest.NewLogger(t))

	_, err := o.CreateConnection(context.Background(), "  ")
	if !errors.Is(err, institution.ErrInvalidInstitution) {
		t.Errorf("expected ErrInvalidInstitution, got %v", err)
	}
	if client.Calls("CreateAgreement") != 0 {
		t.Error("no provider call expected for an empty institution id")
	}
}

func TestCreateConnection_CapsHistoryToInstitution(t *testing.T) {
	institutions := newMemInstitutionRepo()
	institutions.rows["SMALLBANK"] = institution.Institution{ID: "SMALLBANK", Name: "Small", HistoricalDaysSupported: 30}

	var days int
	client := &MockClient{CreateAgreementFunc: func(ctx context.Context, token string, req ofclient.AgreementRequest) (*ofclient.Agreement, error) {
		days = req.MaxHistoricalDays
		return &ofclient.Agreement{ID: "agr"}, nil
	}}
	o := NewConsentOrchestrator(staticTokens{token: "tok"}, client, newMemRequisitionRepo(), institutions, ConsentConfig{}, zaptest.NewLogger(t))

	if _, err := o.CreateConnection(context.Background(), "SMALLBANK"); err != nil {
		t.Fatalf("CreateConnection() error = %v", err)
	}
	if days != 30 {
		t.Errorf("max_historical_days = %d, want 30", days)
	}
}
