// Package message implementa el envío saliente: resolución de destinos,
// despacho por ventanas acotadas y el ciclo de vida del MessageJob.
package message

import (
	"context"
	"errors"
	"fmt"

	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/store"
)

// Service errors
var (
	ErrUnsupportedTargetType = fmt.Errorf("unsupported target type")
	ErrSingleTargetMissing   = fmt.Errorf("single target requires exactly one user id")
	ErrRecipientNotFound     = fmt.Errorf("recipient not found")
	ErrRecipientInactive     = fmt.Errorf("recipient is not active")
	ErrListTargetEmpty       = fmt.Errorf("list target requires user ids")
)

// TargetResolver expande un MessageTarget al conjunto concreto de destinatarios.
type TargetResolver struct {
	Recipients store.RecipientRepository
}

// Resolve aplica las reglas por tipo:
//   - all: todo el roster activo.
//   - single: exactamente un id; debe existir y estar activo.
//   - list: lecturas troceadas de a GetBatchMax; unión de los activos; los
//     ids inexistentes se excluyen en silencio.
func (r *TargetResolver) Resolve(ctx context.Context, target store.MessageTarget) ([]*store.Recipient, error) {
	switch target.Type {
	case store.TargetAll:
		return r.Recipients.ListActiveRecipients(ctx)

	case store.TargetSingle:
		id, err := singleTargetID(target)
		if err != nil {
			return nil, err
		}
		rec, err := r.Recipients.GetRecipient(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRecipientNotFound
		}
		if err != nil {
			return nil, err
		}
		if !rec.IsActive {
			return nil, ErrRecipientInactive
		}
		return []*store.Recipient{rec}, nil

	case store.TargetList:
		if len(target.UserIDs) == 0 {
			return nil, ErrListTargetEmpty
		}
		var out []*store.Recipient
		for start := 0; start < len(target.UserIDs); start += store.GetBatchMax {
			end := start + store.GetBatchMax
			if end > len(target.UserIDs) {
				end = len(target.UserIDs)
			}
			chunk, err := r.Recipients.GetRecipients(ctx, target.UserIDs[start:end])
			if err != nil {
				return nil, err
			}
			for _, rec := range chunk {
				if rec.IsActive {
					out = append(out, rec)
				}
			}
		}
		logger.From(ctx).Debug("list target resolved",
			logger.Count(len(out)),
			logger.Recipients(len(target.UserIDs)),
		)
		return out, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTargetType, target.Type)
	}
}

// singleTargetID extrae el destinatario de un target single. El id viaja en
// userIds (exactamente uno); userId suelto se acepta como conveniencia.
func singleTargetID(target store.MessageTarget) (string, error) {
	switch {
	case len(target.UserIDs) == 1 && target.UserIDs[0] != "":
		return target.UserIDs[0], nil
	case len(target.UserIDs) == 0 && target.UserID != "":
		return target.UserID, nil
	default:
		return "", ErrSingleTargetMissing
	}
}
