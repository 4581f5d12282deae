// README: KYC orchestrator: task submission, provider callbacks with anti-downgrade, status reads.
package kyc

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"carryhub/internal/errs"
	"carryhub/internal/infra"
	"carryhub/internal/notify"
	"carryhub/internal/types"
)

type Repository interface {
	CreateTask(ctx context.Context, t *Task) error
	LockTaskByRequestID(ctx context.Context, requestID string) (*Task, error)
	LockTaskByGroupTask(ctx context.Context, groupID, taskID string) (*Task, error)
	UpdateTask(ctx context.Context, id types.ID, status string, result json.RawMessage) error
	GetProfile(ctx context.Context, userID types.ID) (Profile, error)
	LockProfile(ctx context.Context, userID types.ID) (Profile, error)
	SaveProfile(ctx context.Context, userID types.ID, p Profile) error
}

type Deps struct {
	Repo         Repository
	Tx           infra.TxRunner
	Provider     Provider
	Notifier     notify.Notifier
	WebhookToken string
}

type Service struct {
	repo     Repository
	tx       infra.TxRunner
	provider Provider
	notifier notify.Notifier
	token    string
	now      func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		repo:     d.Repo,
		tx:       d.Tx,
		provider: d.Provider,
		notifier: d.Notifier,
		token:    d.WebhookToken,
		now:      time.Now,
	}
}

type SubmitCommand struct {
	UserID     types.ID
	Type       Type
	FrontImage string
	BackImage  string
	Selfie     string
	Consent    bool
}

// Callback is the provider's async task result.
type Callback struct {
	RequestID string          `json:"request_id"`
	GroupID   string          `json:"group_id"`
	TaskID    string          `json:"task_id"`
	Status    string          `json:"status"`
	Result    json.RawMessage `json:"result"`
}

func validate(cmd SubmitCommand) error {
	present := func(s string) bool { return strings.TrimSpace(s) != "" }
	switch cmd.Type {
	case TypePAN:
		if !present(cmd.FrontImage) {
			return ErrMissingDocument
		}
	case TypeAadhaar:
		if !cmd.Consent {
			return ErrConsentRequired
		}
		if !present(cmd.FrontImage) || !present(cmd.BackImage) {
			return ErrMissingDocument
		}
	case TypeDrivingLicense:
		if !present(cmd.FrontImage) || !present(cmd.BackImage) {
			return ErrMissingDocument
		}
	case TypeFace:
		if !present(cmd.Selfie) {
			return ErrMissingDocument
		}
	default:
		return ErrUnknownType
	}
	return nil
}

// Submit creates a provider task, then records it and marks the document pending in one transaction.
func (s *Service) Submit(ctx context.Context, cmd SubmitCommand) (*Task, error) {
	if err := validate(cmd); err != nil {
		return nil, err
	}
	profile, err := s.repo.GetProfile(ctx, cmd.UserID)
	if err != nil {
		return nil, err
	}
	if profile.Doc(cmd.Type).Status == DocVerified {
		return nil, ErrAlreadyVerified
	}

	taskID := string(types.NewID())
	groupID := string(cmd.UserID)
	requestID, err := s.provider.CreateTask(ctx, TaskRequest{
		Type:       cmd.Type,
		GroupID:    groupID,
		TaskID:     taskID,
		FrontImage: cmd.FrontImage,
		BackImage:  cmd.BackImage,
		Selfie:     cmd.Selfie,
		Consent:    cmd.Consent,
	})
	if err != nil {
		log.Printf("[kyc] create %s task for %s: %v", cmd.Type, cmd.UserID, err)
		return nil, errs.External("kyc provider", ErrProvider)
	}

	now := s.now()
	task := &Task{
		ID:        types.NewID(),
		UserID:    cmd.UserID,
		Type:      cmd.Type,
		RequestID: requestID,
		GroupID:   groupID,
		TaskID:    taskID,
		Status:    TaskPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateTask(ctx, task); err != nil {
			return err
		}
		p, err := s.repo.LockProfile(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		doc := p.Doc(cmd.Type)
		if doc.Status == DocVerified {
			return ErrAlreadyVerified
		}
		*doc = Document{Status: DocPending, RequestID: requestID, UpdatedAt: &now}
		p.Overall = ComputeOverall(p)
		return s.repo.SaveProfile(ctx, cmd.UserID, p)
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Authorize checks the shared callback token in constant time.
func (s *Service) Authorize(token string) error {
	if s.token == "" || subtle.ConstantTimeCompare([]byte(s.token), []byte(token)) != 1 {
		log.Printf("[kyc] SECURITY: callback with bad token")
		return ErrUnauthorized
	}
	return nil
}

// HandleCallback applies one provider result. It reports duplicate=true when the task had already
// completed and the callback repeats a completed status; nothing is written in that case.
func (s *Service) HandleCallback(ctx context.Context, cb Callback) (duplicate bool, err error) {
	if cb.RequestID == "" && (cb.GroupID == "" || cb.TaskID == "") {
		return false, ErrInvalidCallback
	}
	var (
		userID  types.ID
		overall OverallStatus
	)
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		task, err := s.findTask(ctx, cb)
		if err != nil {
			return err
		}
		if isCompleted(task.Status) && isCompleted(cb.Status) {
			duplicate = true
			return nil
		}
		if err := s.repo.UpdateTask(ctx, task.ID, cb.Status, cb.Result); err != nil {
			return err
		}

		p, err := s.repo.LockProfile(ctx, task.UserID)
		if err != nil {
			return err
		}
		doc := p.Doc(task.Type)
		if doc == nil {
			return errs.Invariant("kyc task %s has unknown type %q", task.ID, task.Type)
		}
		next := outcome(task.Type, cb.Status, cb.Result)
		if doc.Status == DocVerified && next != DocVerified {
			log.Printf("[kyc] ignoring %s for verified %s of %s", next, task.Type, task.UserID)
			return nil
		}
		now := s.now()
		doc.Status = next
		doc.RequestID = task.RequestID
		doc.UpdatedAt = &now
		p.Overall = ComputeOverall(p)
		if err := s.repo.SaveProfile(ctx, task.UserID, p); err != nil {
			return err
		}
		userID = task.UserID
		overall = p.Overall
		return nil
	})
	if err != nil || duplicate || userID == "" {
		return duplicate, err
	}

	notify.Send(ctx, s.notifier, notify.Event{
		Type:   notify.EventKYCUpdated,
		UserID: userID,
		Data:   map[string]string{"overall_status": string(overall)},
	})
	return false, nil
}

func (s *Service) findTask(ctx context.Context, cb Callback) (*Task, error) {
	if cb.RequestID != "" {
		task, err := s.repo.LockTaskByRequestID(ctx, cb.RequestID)
		if !errors.Is(err, ErrTaskNotFound) || cb.GroupID == "" || cb.TaskID == "" {
			return task, err
		}
	}
	return s.repo.LockTaskByGroupTask(ctx, cb.GroupID, cb.TaskID)
}

func (s *Service) Status(ctx context.Context, userID types.ID) (Profile, error) {
	return s.repo.GetProfile(ctx, userID)
}
