package kyc_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"carryhub/internal/config"
	"carryhub/internal/modules/kyc"
	"carryhub/internal/store/memory"
	"carryhub/internal/types"
)

type fakeProvider struct {
	n   int
	err error
	got []kyc.TaskRequest
}

func (p *fakeProvider) CreateTask(_ context.Context, req kyc.TaskRequest) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.n++
	p.got = append(p.got, req)
	return fmt.Sprintf("req_%d", p.n), nil
}

func newService(t *testing.T) (*kyc.Service, *memory.Store, *fakeProvider, types.ID) {
	t.Helper()
	st := memory.New()
	prov := &fakeProvider{}
	svc := kyc.NewService(kyc.Deps{
		Repo:         st.KYC(),
		Tx:           st,
		Provider:     prov,
		WebhookToken: "kyc-token",
	})
	return svc, st, prov, st.SeedUser("Ravi", "+919800000002")
}

func submit(t *testing.T, svc *kyc.Service, cmd kyc.SubmitCommand) *kyc.Task {
	t.Helper()
	task, err := svc.Submit(context.Background(), cmd)
	if err != nil {
		t.Fatalf("submit %s: %v", cmd.Type, err)
	}
	return task
}

func TestSubmitValidation(t *testing.T) {
	svc, _, prov, user := newService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		cmd  kyc.SubmitCommand
		want error
	}{
		{"unknown type", kyc.SubmitCommand{UserID: user, Type: "passport", FrontImage: "f"}, kyc.ErrUnknownType},
		{"pan without image", kyc.SubmitCommand{UserID: user, Type: kyc.TypePAN}, kyc.ErrMissingDocument},
		{"aadhaar without consent", kyc.SubmitCommand{UserID: user, Type: kyc.TypeAadhaar, FrontImage: "f", BackImage: "b"}, kyc.ErrConsentRequired},
		{"aadhaar without back", kyc.SubmitCommand{UserID: user, Type: kyc.TypeAadhaar, FrontImage: "f", Consent: true}, kyc.ErrMissingDocument},
		{"license without back", kyc.SubmitCommand{UserID: user, Type: kyc.TypeDrivingLicense, FrontImage: "f"}, kyc.ErrMissingDocument},
		{"face without selfie", kyc.SubmitCommand{UserID: user, Type: kyc.TypeFace, FrontImage: "f"}, kyc.ErrMissingDocument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Submit(ctx, tt.cmd); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
	if prov.n != 0 {
		t.Errorf("provider called %d times for invalid submissions", prov.n)
	}
}

func TestSubmitMarksPending(t *testing.T) {
	svc, _, prov, user := newService(t)
	task := submit(t, svc, kyc.SubmitCommand{UserID: user, Type: kyc.TypePAN, FrontImage: "https://img/pan.jpg"})

	if task.RequestID != "req_1" || task.GroupID != string(user) || task.Status != kyc.TaskPending {
		t.Errorf("unexpected task %+v", task)
	}
	if prov.got[0].TaskID != task.TaskID {
		t.Errorf("provider task id %s, stored %s", prov.got[0].TaskID, task.TaskID)
	}
	p, err := svc.Status(context.Background(), user)
	if err != nil {
		t.Fatal(err)
	}
	if p.PAN.Status != kyc.DocPending || p.PAN.RequestID != "req_1" || p.Overall != kyc.OverallPending {
		t.Errorf("profile after submit %+v", p)
	}
}

func TestSubmitProviderFailureLeavesProfile(t *testing.T) {
	svc, _, prov, user := newService(t)
	prov.err = errors.New("timeout")

	_, err := svc.Submit(context.Background(), kyc.SubmitCommand{UserID: user, Type: kyc.TypeFace, Selfie: "s"})
	if !errors.Is(err, kyc.ErrProvider) {
		t.Fatalf("got %v, want ErrProvider", err)
	}
	p, _ := svc.Status(context.Background(), user)
	if p.Face.Status != kyc.DocNotProvided || p.Overall != kyc.OverallNotStarted {
		t.Errorf("profile changed after provider failure: %+v", p)
	}
}

func TestSubmitUnknownUser(t *testing.T) {
	svc, _, _, _ := newService(t)
	_, err := svc.Submit(context.Background(), kyc.SubmitCommand{UserID: "ghost", Type: kyc.TypePAN, FrontImage: "f"})
	if !errors.Is(err, kyc.ErrUserNotFound) {
		t.Errorf("got %v, want ErrUserNotFound", err)
	}
}

func TestCallbacksReachVerified(t *testing.T) {
	svc, _, _, user := newService(t)
	ctx := context.Background()
	pan := submit(t, svc, kyc.SubmitCommand{UserID: user, Type: kyc.TypePAN, FrontImage: "f"})
	face := submit(t, svc, kyc.SubmitCommand{UserID: user, Type: kyc.TypeFace, Selfie: "s"})

	if _, err := svc.HandleCallback(ctx, kyc.Callback{RequestID: pan.RequestID, Status: "completed"}); err != nil {
		t.Fatal(err)
	}
	p, _ := svc.Status(ctx, user)
	if p.PAN.Status != kyc.DocVerified || p.Overall != kyc.OverallPending {
		t.Fatalf("after pan: %+v", p)
	}

	// addressed by group and task id only
	dup, err := svc.HandleCallback(ctx, kyc.Callback{
		GroupID: face.GroupID, TaskID: face.TaskID, Status: "completed",
		Result: json.RawMessage(`{"source_output":{"is_live":true}}`),
	})
	if err != nil || dup {
		t.Fatalf("face callback: dup=%v err=%v", dup, err)
	}
	p, _ = svc.Status(ctx, user)
	if p.Face.Status != kyc.DocVerified || p.Overall != kyc.OverallVerified {
		t.Fatalf("after face: %+v", p)
	}

	dup, err = svc.HandleCallback(ctx, kyc.Callback{RequestID: pan.RequestID, Status: "completed"})
	if err != nil || !dup {
		t.Errorf("repeat callback: dup=%v err=%v, want duplicate", dup, err)
	}

	if _, err := svc.Submit(ctx, kyc.SubmitCommand{UserID: user, Type: kyc.TypePAN, FrontImage: "f"}); !errors.Is(err, kyc.ErrAlreadyVerified) {
		t.Errorf("resubmit verified: got %v, want ErrAlreadyVerified", err)
	}
}

func TestVerifiedDocumentIsNotDowngraded(t *testing.T) {
	svc, _, _, user := newService(t)
	ctx := context.Background()
	pan := submit(t, svc, kyc.SubmitCommand{UserID: user, Type: kyc.TypePAN, FrontImage: "f"})

	if _, err := svc.HandleCallback(ctx, kyc.Callback{RequestID: pan.RequestID, Status: "completed"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.HandleCallback(ctx, kyc.Callback{RequestID: pan.RequestID, Status: "failed"}); err != nil {
		t.Fatal(err)
	}
	p, _ := svc.Status(ctx, user)
	if p.PAN.Status != kyc.DocVerified {
		t.Errorf("pan = %s after late failure, want verified", p.PAN.Status)
	}
}

func TestFaceNotLiveFails(t *testing.T) {
	svc, _, _, user := newService(t)
	ctx := context.Background()
	face := submit(t, svc, kyc.SubmitCommand{UserID: user, Type: kyc.TypeFace, Selfie: "s"})

	if _, err := svc.HandleCallback(ctx, kyc.Callback{RequestID: face.RequestID, Status: "completed", Result: json.RawMessage(`{"is_live":false}`)}); err != nil {
		t.Fatal(err)
	}
	p, _ := svc.Status(ctx, user)
	if p.Face.Status != kyc.DocFailed || p.Overall != kyc.OverallFailed {
		t.Errorf("after spoofed selfie: %+v", p)
	}
}

func TestCallbackErrors(t *testing.T) {
	svc, _, _, _ := newService(t)
	ctx := context.Background()

	if _, err := svc.HandleCallback(ctx, kyc.Callback{Status: "completed"}); !errors.Is(err, kyc.ErrInvalidCallback) {
		t.Errorf("no identifiers: got %v", err)
	}
	if _, err := svc.HandleCallback(ctx, kyc.Callback{RequestID: "nope", Status: "completed"}); !errors.Is(err, kyc.ErrTaskNotFound) {
		t.Errorf("unknown task: got %v", err)
	}
	if err := svc.Authorize("wrong"); !errors.Is(err, kyc.ErrUnauthorized) {
		t.Errorf("bad token: got %v", err)
	}
	if err := svc.Authorize("kyc-token"); err != nil {
		t.Errorf("good token: %v", err)
	}
}

func TestHTTPProviderCreateTask(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"request_id":"abc-123"}`))
	}))
	defer srv.Close()

	p := kyc.NewHTTPProvider(config.KYCConfig{BaseURL: srv.URL + "/", APIKey: "k", AccountID: "acct", Timeout: time.Second})
	id, err := p.CreateTask(context.Background(), kyc.TaskRequest{
		Type: kyc.TypeAadhaar, GroupID: "g", TaskID: "t", FrontImage: "front", BackImage: "back", Consent: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if id != "abc-123" {
		t.Errorf("request id = %q", id)
	}
	if gotPath != "/tasks/async/extract/ind_aadhaar" || gotKey != "k" {
		t.Errorf("path=%s key=%s", gotPath, gotKey)
	}
	data, _ := gotBody["data"].(map[string]any)
	if data["document2"] != "back" || data["consent"] != "yes" {
		t.Errorf("data = %v", data)
	}
}

func TestHTTPProviderNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer srv.Close()

	p := kyc.NewHTTPProvider(config.KYCConfig{BaseURL: srv.URL, Timeout: time.Second})
	if _, err := p.CreateTask(context.Background(), kyc.TaskRequest{Type: kyc.TypePAN, FrontImage: "f"}); err == nil {
		t.Error("expected error on 401")
	}
}
