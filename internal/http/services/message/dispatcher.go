package message

import (
	"context"
	"fmt"
	"sync"
	"time"

	msg "github.com/dropDatabas3/linerelay/internal/messaging/line"
	"github.com/dropDatabas3/linerelay/internal/metrics"
	"github.com/dropDatabas3/linerelay/internal/observability/logger"
	"github.com/dropDatabas3/linerelay/internal/store"
)

// PushClient es la única llamada saliente que necesita el despachador.
type PushClient interface {
	Push(ctx context.Context, to string, msgs []msg.Message) error
}

// SendResult es el resultado de un push individual.
type SendResult struct {
	Success bool   `json:"success"`
	UserID  string `json:"userId"`
	Error   string `json:"error,omitempty"`
}

// BatchResult agrega los resultados de todo el fan-out.
type BatchResult struct {
	AllSuccess    bool     `json:"allSuccess"`
	SuccessCount  int      `json:"successCount"`
	FailedUserIDs []string `json:"failedUserIds,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// Dispatcher entrega mensajes en ventanas concurrentes de tamaño fijo con
// pausa entre ventanas. Ambos valores vienen de configuración.
type Dispatcher struct {
	Client      PushClient
	WindowSize  int
	WindowPause time.Duration
	PushTimeout time.Duration
}

func NewDispatcher(client PushClient, windowSize int, windowPause, pushTimeout time.Duration) *Dispatcher {
	if windowSize <= 0 {
		windowSize = 5
	}
	if windowPause <= 0 {
		windowPause = 100 * time.Millisecond
	}
	if pushTimeout <= 0 {
		pushTimeout = 10 * time.Second
	}
	return &Dispatcher{Client: client, WindowSize: windowSize, WindowPause: windowPause, PushTimeout: pushTimeout}
}

// Dispatch envía msgs a cada destinatario. Dentro de una ventana el orden es
// indistinto; entre ventanas es estrictamente secuencial. La falla de un
// destinatario nunca aborta el batch.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []*store.Recipient, msgs []msg.Message) BatchResult {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("message.dispatcher"),
	)

	results := make([]SendResult, len(recipients))
	for start := 0; start < len(recipients); start += d.WindowSize {
		end := start + d.WindowSize
		if end > len(recipients) {
			end = len(recipients)
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i] = d.sendOne(ctx, recipients[i].LineUserID, msgs)
			}(i)
		}
		wg.Wait()

		if end < len(recipients) {
			time.Sleep(d.WindowPause)
		}
	}

	var out BatchResult
	for _, r := range results {
		if r.Success {
			out.SuccessCount++
		} else {
			out.FailedUserIDs = append(out.FailedUserIDs, r.UserID)
		}
	}
	out.AllSuccess = out.SuccessCount == len(recipients)
	if !out.AllSuccess {
		out.Error = fmt.Sprintf("%d users failed", len(out.FailedUserIDs))
	}

	log.Info("batch dispatched",
		logger.Recipients(len(recipients)),
		logger.Count(out.SuccessCount),
	)
	return out
}

func (d *Dispatcher) sendOne(ctx context.Context, userID string, msgs []msg.Message) SendResult {
	pushCtx, cancel := context.WithTimeout(ctx, d.PushTimeout)
	defer cancel()

	if err := d.Client.Push(pushCtx, userID, msgs); err != nil {
		metrics.RecordPush(false)
		logger.From(ctx).Warn("push failed", logger.UserID(userID), logger.Err(err))
		return SendResult{Success: false, UserID: userID, Error: err.Error()}
	}
	metrics.RecordPush(true)
	return SendResult{Success: true, UserID: userID}
}
