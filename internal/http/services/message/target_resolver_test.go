package message

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/dropDatabas3/linerelay/internal/store"
	storemem "github.com/dropDatabas3/linerelay/internal/store/memory"
)

func seedRoster(t *testing.T, s *storemem.Store, n int, inactive ...int) {
	t.Helper()
	off := map[int]bool{}
	for _, i := range inactive {
		off[i] = true
	}
	for i := 0; i < n; i++ {
		if err := s.UpsertRecipient(context.Background(), &store.Recipient{
			LineUserID: fmt.Sprintf("U%02d", i),
			IsActive:   !off[i],
			FollowedAt: time.Now(),
		}); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestResolveAll(t *testing.T) {
	s := storemem.New()
	seedRoster(t, s, 5, 1, 3)
	r := &TargetResolver{Recipients: s}

	got, err := r.Resolve(context.Background(), store.MessageTarget{Type: store.TargetAll})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("active = %d, want 3", len(got))
	}
}

func TestResolveSingle(t *testing.T) {
	s := storemem.New()
	seedRoster(t, s, 3, 2)
	r := &TargetResolver{Recipients: s}
	ctx := context.Background()

	// El id del single viaja en userIds con exactamente un elemento.
	got, err := r.Resolve(ctx, store.MessageTarget{Type: store.TargetSingle, UserIDs: []string{"U00"}})
	if err != nil || len(got) != 1 {
		t.Fatalf("Resolve = %v, %v", got, err)
	}
	if got[0].LineUserID != "U00" {
		t.Errorf("resolved = %q, want U00", got[0].LineUserID)
	}

	// userId suelto se acepta como conveniencia.
	got, err = r.Resolve(ctx, store.MessageTarget{Type: store.TargetSingle, UserID: "U00"})
	if err != nil || len(got) != 1 {
		t.Fatalf("Resolve via userId = %v, %v", got, err)
	}

	_, err = r.Resolve(ctx, store.MessageTarget{Type: store.TargetSingle, UserIDs: []string{"U99"}})
	if !errors.Is(err, ErrRecipientNotFound) {
		t.Errorf("expected ErrRecipientNotFound, got %v", err)
	}

	_, err = r.Resolve(ctx, store.MessageTarget{Type: store.TargetSingle, UserIDs: []string{"U02"}})
	if !errors.Is(err, ErrRecipientInactive) {
		t.Errorf("expected ErrRecipientInactive, got %v", err)
	}

	_, err = r.Resolve(ctx, store.MessageTarget{Type: store.TargetSingle})
	if !errors.Is(err, ErrSingleTargetMissing) {
		t.Errorf("expected ErrSingleTargetMissing, got %v", err)
	}

	// Más de un id no es un single válido.
	_, err = r.Resolve(ctx, store.MessageTarget{Type: store.TargetSingle, UserIDs: []string{"U00", "U01"}})
	if !errors.Is(err, ErrSingleTargetMissing) {
		t.Errorf("expected ErrSingleTargetMissing for two ids, got %v", err)
	}
}

func TestResolveListChunksAndExclusions(t *testing.T) {
	s := storemem.New()
	seedRoster(t, s, 25, 4)
	r := &TargetResolver{Recipients: s}

	// 23 ids: fuerza 3 lecturas troceadas; uno inexistente y uno inactivo.
	ids := make([]string, 0, 23)
	for i := 0; i < 22; i++ {
		ids = append(ids, fmt.Sprintf("U%02d", i))
	}
	ids = append(ids, "U-missing")

	got, err := r.Resolve(context.Background(), store.MessageTarget{Type: store.TargetList, UserIDs: ids})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	// 22 existentes menos U04 inactivo; el inexistente se excluye sin error.
	if len(got) != 21 {
		t.Errorf("resolved = %d, want 21", len(got))
	}
	for _, rec := range got {
		if rec.LineUserID == "U04" {
			t.Error("inactive recipient included in list resolution")
		}
	}
}

func TestResolveUnsupportedType(t *testing.T) {
	r := &TargetResolver{Recipients: storemem.New()}
	_, err := r.Resolve(context.Background(), store.MessageTarget{Type: "broadcast"})
	if !errors.Is(err, ErrUnsupportedTargetType) {
		t.Fatalf("expected ErrUnsupportedTargetType, got %v", err)
	}
}
