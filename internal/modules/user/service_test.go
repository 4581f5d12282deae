package user_test

import (
	"context"
	"errors"
	"testing"

	"carryhub/internal/modules/user"
	"carryhub/internal/store/memory"
	"carryhub/internal/types"
)

func TestRegister(t *testing.T) {
	st := memory.New()
	svc := user.NewService(st.Users())
	ctx := context.Background()

	if _, err := svc.Register(ctx, user.RegisterCommand{UserID: "u1", Name: " "}); !errors.Is(err, user.ErrInvalidProfile) {
		t.Fatalf("blank name: got %v", err)
	}

	u, err := svc.Register(ctx, user.RegisterCommand{UserID: "u1", Name: "Asha", Phone: "+919800000001", Email: " Asha@Example.com "})
	if err != nil {
		t.Fatal(err)
	}
	if u.Email == nil || *u.Email != "asha@example.com" || u.Role != types.RoleUser {
		t.Errorf("unexpected user %+v", u)
	}

	// re-registering updates the profile in place
	u, err = svc.Register(ctx, user.RegisterCommand{UserID: "u1", Name: "Asha K", Phone: "+919800000001", DeviceToken: "tok"})
	if err != nil {
		t.Fatal(err)
	}
	if u.Name != "Asha K" || u.DeviceToken != "tok" {
		t.Errorf("update not applied: %+v", u)
	}

	if _, err := svc.Register(ctx, user.RegisterCommand{UserID: "u2", Name: "Other", Phone: "+919800000001"}); !errors.Is(err, user.ErrPhoneTaken) {
		t.Errorf("duplicate phone: got %v, want ErrPhoneTaken", err)
	}
}
