package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"

	"github.com/AzielCF/az-tgclean/core/config"
	"github.com/AzielCF/az-tgclean/domains/chat"
	"github.com/AzielCF/az-tgclean/domains/session"
	"github.com/AzielCF/az-tgclean/infrastructure/metrics"
	"github.com/AzielCF/az-tgclean/pkg/chatworker"
	"github.com/AzielCF/az-tgclean/pkg/timeutils"
	"github.com/AzielCF/az-tgclean/validations"
)

const jobKindDelete = "delete"

var _ chat.IDeletionUsecase = (*DeletionService)(nil)

// DeletionService removes the user's own messages from selected chats.
type DeletionService struct {
	gateway    chat.Gateway
	gate       session.Gate
	pool       *chatworker.Pool
	fetchLimit int
	chunkSize  int
	now        func() time.Time
}

func NewDeletionService(gateway chat.Gateway, gate session.Gate, pool *chatworker.Pool, cfg config.DeletionConfig) *DeletionService {
	fetch := cfg.FetchLimit
	if fetch <= 0 {
		fetch = 100
	}
	chunk := cfg.ChunkSize
	if chunk <= 0 {
		chunk = 100
	}
	return &DeletionService{
		gateway:    gateway,
		gate:       gate,
		pool:       pool,
		fetchLimit: fetch,
		chunkSize:  chunk,
		now:        time.Now,
	}
}

type chatOutcome struct {
	deleted int
	failed  int
	err     error
}

// Delete runs one job per chat on the worker pool and waits for all of them.
// Session expiry in any chat is returned as chat.ErrSessionExpired alongside the
// partial result.
func (s *DeletionService) Delete(ctx context.Context, req chat.DeletionRequest) (chat.DeletionResult, error) {
	res := chat.DeletionResult{JobID: uuid.NewString(), Errors: []string{}, PerChat: map[string]int{}}

	if s.gate != nil {
		if _, err := s.gate.RequireAuth(ctx); err != nil {
			return res, err
		}
	}

	if err := validations.ValidateDeletionRequest(ctx, req); err != nil {
		return res, err
	}
	r, _ := timeutils.ParseRange(string(req.Range))

	ids := lo.Uniq(lo.Compact(req.ChatIDs))
	if len(ids) == 0 {
		res.Success = true
		return res, nil
	}

	now := s.now()
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		outcomes = make(map[string]chatOutcome, len(ids))
	)

	record := func(chatID string, o chatOutcome) {
		mu.Lock()
		outcomes[chatID] = o
		mu.Unlock()
		if errors.Is(o.err, chat.ErrSessionExpired) {
			cancel()
		}
	}

	logrus.Infof("[DELETION] Job %s: %d chats, range %s", res.JobID, len(ids), r)

	for _, chatID := range ids {
		wg.Add(1)
		job := chatworker.Job{
			ChatID: chatID,
			Kind:   jobKindDelete,
			Handler: func(context.Context) error {
				defer wg.Done()
				o := s.deleteChat(jobCtx, chatID, r, now, req.Custom)
				record(chatID, o)
				return o.err
			},
		}
		if err := s.pool.Dispatch(jobCtx, job); err != nil {
			wg.Done()
			record(chatID, chatOutcome{err: fmt.Errorf("failed to queue chat %s: %w", chatID, err)})
		}
	}
	wg.Wait()

	var merr *multierror.Error
	expired := false
	for _, chatID := range ids {
		o := outcomes[chatID]
		res.DeletedCount += o.deleted
		if o.deleted > 0 {
			res.PerChat[chatID] = o.deleted
		}
		res.FailedCount += o.failed
		if o.err != nil {
			if errors.Is(o.err, chat.ErrSessionExpired) {
				expired = true
			}
			merr = multierror.Append(merr, o.err)
		}
	}

	if merr != nil {
		res.Errors = lo.Map(merr.Errors, func(e error, _ int) string { return e.Error() })
	}
	res.Success = merr == nil && res.FailedCount == 0
	metrics.MessagesDeleted(res.DeletedCount, res.FailedCount)

	logrus.Infof("[DELETION] Job %s done: %d deleted, %d failed, %d errors", res.JobID, res.DeletedCount, res.FailedCount, len(res.Errors))

	if expired {
		return res, chat.ErrSessionExpired
	}
	return res, nil
}

// deleteChat fetches the latest messages, keeps the user's own ones inside the
// window and deletes them in chunks.
func (s *DeletionService) deleteChat(ctx context.Context, chatID string, r timeutils.Range, now time.Time, custom *timeutils.DateRange) chatOutcome {
	if err := ctx.Err(); err != nil {
		return chatOutcome{err: fmt.Errorf("chat %s: %w", chatID, err)}
	}

	msgs, err := s.gateway.GetMessages(ctx, chatID, s.fetchLimit)
	if err != nil {
		return chatOutcome{err: fmt.Errorf("chat %s: failed to fetch messages: %w", chatID, err)}
	}

	targets := lo.FilterMap(msgs, func(m chat.Message, _ int) (int, bool) {
		return m.ID, m.Outgoing && timeutils.InRange(m.Date, r, now, custom)
	})
	if len(targets) == 0 {
		logrus.Debugf("[DELETION] Chat %s: nothing to delete", chatID)
		return chatOutcome{}
	}

	var out chatOutcome
	var merr *multierror.Error
	for _, chunk := range lo.Chunk(targets, s.chunkSize) {
		n, err := s.gateway.DeleteMessages(ctx, chatID, chunk)
		out.deleted += n
		if err != nil {
			out.failed += len(chunk) - n
			merr = multierror.Append(merr, fmt.Errorf("chat %s: failed to delete %d messages: %w", chatID, len(chunk), err))
			if errors.Is(err, chat.ErrSessionExpired) {
				break
			}
			continue
		}
		if n < len(chunk) {
			out.failed += len(chunk) - n
		}
	}
	out.err = merr.ErrorOrNil()

	logrus.Infof("[DELETION] Chat %s: %d deleted, %d failed", chatID, out.deleted, out.failed)
	return out
}
