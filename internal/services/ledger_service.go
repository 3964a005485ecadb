// Package services runs chat commands against the ledger.
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finanzas/internal/command"
	"finanzas/internal/core"
	"finanzas/internal/export"
	"finanzas/internal/format"
	"finanzas/internal/ledger"
	"finanzas/internal/log"
)

const DefaultCommandTimeout = 30 * time.Second

// Options tune a LedgerService. Zero values pick defaults.
type Options struct {
	Location *time.Location
	Timeout  time.Duration
	Now      func() time.Time
	TempDir  string
	Logger   *log.Logger
}

// LedgerService turns one chat line into exactly one reply (or, for an
// export, one document).
type LedgerService struct {
	store    Store
	sender   Sender
	events   EventPublisher
	router   *command.Router
	exporter *export.Service
	queue    *UserQueue
	loc      *time.Location
	timeout  time.Duration
	now      func() time.Time
	logger   *log.Logger
}

// NewLedgerService wires the service. events may be nil, in which case
// ledger changes are not announced.
func NewLedgerService(store Store, sender Sender, events EventPublisher, opts Options) *LedgerService {
	s := &LedgerService{
		store:    store,
		sender:   sender,
		events:   events,
		router:   command.NewRouter(),
		exporter: export.NewService(store, opts.TempDir),
		queue:    NewUserQueue(),
		loc:      opts.Location,
		timeout:  opts.Timeout,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	if s.loc == nil {
		s.loc = time.Local
	}
	if s.timeout <= 0 {
		s.timeout = DefaultCommandTimeout
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = log.FromContext(context.Background())
	}
	s.logger = s.logger.WithComponent(log.ComponentLedger)
	return s
}

// Handle runs msg and sends its reply. Text that is not a command is
// ignored. The only error returned is a *core.DeliveryError; everything
// else has already become a reply.
func (s *LedgerService) Handle(ctx context.Context, msg Message) error {
	op, err := s.router.Parse(msg.Text)
	if errors.Is(err, core.ErrNotACommand) {
		return nil
	}

	logger := s.logger.WithFields(log.NewFields().
		WithChat(msg.UserID, msg.ChatID).
		WithCommand(command.Keyword(msg.Text)))
	ctx = log.WithContext(ctx, logger)
	start := time.Now()

	var (
		reply *format.Reply
		ve    *core.ValidationError
	)
	switch {
	case errors.Is(err, core.ErrUnknownCommand):
		r := format.UnknownCommand(command.Keyword(msg.Text))
		reply = &r
	case errors.As(err, &ve):
		logger.InfoContext(ctx, "Rejected command", log.FieldErrorType, log.ErrorTypeValidation, log.FieldError, ve.Reason)
		r := format.Usage(ve)
		reply = &r
	case err != nil:
		r := format.Failure("")
		reply = &r
	default:
		reply = s.run(ctx, msg, op)
	}

	if reply == nil {
		logger.InfoContext(ctx, "Command handled", log.FieldDuration, time.Since(start).Milliseconds())
		return nil
	}
	if err := s.send(ctx, msg.ChatID, *reply); err != nil {
		return err
	}
	logger.InfoContext(ctx, "Command handled", log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// run executes op under the command timeout. A nil reply means the
// operation already delivered its own output.
func (s *LedgerService) run(ctx context.Context, msg Message, op command.Operation) *format.Reply {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, ok := op.(command.Export); ok {
		return s.export(ctx, msg)
	}

	var (
		reply format.Reply
		err   error
	)
	if op.Mutates() {
		err = s.queue.Do(ctx, msg.UserID, func(ctx context.Context) error {
			reply, err = s.execute(ctx, msg.UserID, op)
			return err
		})
	} else {
		reply, err = s.execute(ctx, msg.UserID, op)
	}
	if err != nil {
		return s.failure(ctx, op, err)
	}
	return &reply
}

func (s *LedgerService) execute(ctx context.Context, userID int64, op command.Operation) (format.Reply, error) {
	switch op := op.(type) {
	case command.RecordExpense:
		return s.record(ctx, userID, core.Expense, op.Category, op.Amount)
	case command.RecordIncome:
		return s.record(ctx, userID, core.Income, op.Category, op.Amount)
	case command.Balance:
		return s.balance(ctx, userID)
	case command.Report:
		return s.report(ctx, userID)
	case command.Categories:
		return s.categories(ctx, userID, op)
	case command.TopExpenses:
		return s.topExpenses(ctx, userID, op)
	case command.Recent:
		return s.recent(ctx, userID, op)
	case command.Summary:
		return s.summary(ctx, userID, op)
	case command.Search:
		return s.search(ctx, userID, op)
	case command.Delete:
		return s.delete(ctx, userID, op)
	case command.Edit:
		return s.edit(ctx, userID, op)
	case command.SetGoal:
		return s.setGoal(ctx, userID, op)
	case command.Help:
		return format.Help(s.router.Commands()), nil
	default:
		return format.Reply{}, fmt.Errorf("unhandled operation %T", op)
	}
}

func (s *LedgerService) record(ctx context.Context, userID int64, kind core.Kind, category string, amount core.Money) (format.Reply, error) {
	at := s.now().In(s.loc)
	m := core.Movement{
		UserID:   userID,
		Kind:     kind,
		Category: category,
		Amount:   amount,
		Date:     core.DateOf(at),
	}
	id, err := s.store.Record(ctx, m)
	if err != nil {
		return format.Reply{}, err
	}
	m.ID = id
	s.publish(ctx, core.ActionRecorded, m)

	totals, err := s.store.Totals(ctx, &userID)
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Recorded movement but totals failed", log.FieldMovementID, id, log.FieldError, err)
		return format.RecordedWithoutBalance(), nil
	}
	return format.RecordAck(m, at, totals.Balance()), nil
}

func (s *LedgerService) balance(ctx context.Context, userID int64) (format.Reply, error) {
	totals, err := s.store.Totals(ctx, &userID)
	if err != nil {
		return format.Reply{}, err
	}
	// Read on every call: other processes share the database and may
	// have replaced the goal.
	goal, set, err := s.store.Goal(ctx, userID)
	if err != nil {
		return format.Reply{}, err
	}
	if !set {
		return format.Balance(totals, nil), nil
	}
	p := ledger.GoalProgress(ledger.Balance(totals), goal.Target)
	return format.Balance(totals, &p), nil
}

func (s *LedgerService) report(ctx context.Context, userID int64) (format.Reply, error) {
	month := s.currentMonth()
	rows, err := s.store.MonthlyGroup(ctx, userID, month)
	if err != nil {
		return format.Reply{}, err
	}
	r, err := ledger.MonthlyReport(month, rows)
	if errors.Is(err, core.ErrEmptyResult) {
		return format.EmptyReport(), nil
	}
	if err != nil {
		return format.Reply{}, err
	}
	return format.Report(r), nil
}

func (s *LedgerService) categories(ctx context.Context, userID int64, op command.Categories) (format.Reply, error) {
	stats, err := s.store.CategoryRanking(ctx, userID, op.Month, op.Limit)
	if err != nil {
		return format.Reply{}, err
	}
	entries, err := ledger.Ranking(stats)
	if errors.Is(err, core.ErrEmptyResult) {
		return format.EmptyCategories(op.Month), nil
	}
	if err != nil {
		return format.Reply{}, err
	}
	return format.Categories(op.Month, entries), nil
}

func (s *LedgerService) topExpenses(ctx context.Context, userID int64, op command.TopExpenses) (format.Reply, error) {
	month := s.monthOrCurrent(op.Month)
	movements, err := s.store.TopExpenses(ctx, userID, month, op.Limit)
	if err != nil {
		return format.Reply{}, err
	}
	entries, err := ledger.TopExpenses(movements)
	if errors.Is(err, core.ErrEmptyResult) {
		return format.EmptyTopExpenses(month), nil
	}
	if err != nil {
		return format.Reply{}, err
	}
	return format.TopExpenses(month, entries), nil
}

func (s *LedgerService) recent(ctx context.Context, userID int64, op command.Recent) (format.Reply, error) {
	movements, err := s.store.ListRecent(ctx, userID, op.Limit)
	if err != nil {
		return format.Reply{}, err
	}
	if len(movements) == 0 {
		return format.EmptyRecent(), nil
	}
	return format.Recent(movements), nil
}

func (s *LedgerService) summary(ctx context.Context, userID int64, op command.Summary) (format.Reply, error) {
	month := s.monthOrCurrent(op.Month)
	totals, err := s.store.MonthTotals(ctx, userID, month)
	if err != nil {
		return format.Reply{}, err
	}
	return format.Summary(ledger.MonthSummary(month, totals)), nil
}

func (s *LedgerService) search(ctx context.Context, userID int64, op command.Search) (format.Reply, error) {
	movements, err := s.store.Search(ctx, userID, op.Text, op.Limit)
	if err != nil {
		return format.Reply{}, err
	}
	if len(movements) == 0 {
		return format.EmptySearch(), nil
	}
	return format.Search(op.Text, movements), nil
}

func (s *LedgerService) delete(ctx context.Context, userID int64, op command.Delete) (format.Reply, error) {
	m, err := s.store.Get(ctx, op.ID, userID)
	if err != nil {
		return format.Reply{}, err
	}
	deleted, err := s.store.Delete(ctx, op.ID, userID)
	if err != nil {
		return format.Reply{}, err
	}
	if !deleted {
		return format.Reply{}, core.ErrNotFound
	}
	s.publish(ctx, core.ActionDeleted, m)
	return format.Deleted(op.ID), nil
}

func (s *LedgerService) edit(ctx context.Context, userID int64, op command.Edit) (format.Reply, error) {
	changed, err := s.store.Edit(ctx, op.ID, userID, op.Category, op.Amount)
	if err != nil {
		return format.Reply{}, err
	}
	if !changed {
		return format.Reply{}, core.ErrNotFound
	}
	if m, err := s.store.Get(ctx, op.ID, userID); err != nil {
		log.FromContext(ctx).WarnContext(ctx, "Edited movement could not be reloaded for the mirror", log.FieldMovementID, op.ID, log.FieldError, err)
	} else {
		s.publish(ctx, core.ActionEdited, m)
	}
	return format.Edited(op.ID, op.Category, op.Amount), nil
}

func (s *LedgerService) setGoal(ctx context.Context, userID int64, op command.SetGoal) (format.Reply, error) {
	g := core.Goal{UserID: userID, Target: op.Amount}
	if err := s.store.UpsertGoal(ctx, g); err != nil {
		return format.Reply{}, err
	}
	return format.GoalSet(op.Amount), nil
}

func (s *LedgerService) export(ctx context.Context, msg Message) *format.Reply {
	err := s.exporter.Deliver(ctx, msg.UserID, func(ctx context.Context, path string) error {
		return s.sender.SendDocument(ctx, msg.ChatID, path, format.ExportCaption)
	})

	var de *core.DeliveryError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, core.ErrEmptyExport):
		r := format.EmptyExport()
		return &r
	case errors.As(err, &de):
		log.FromContext(ctx).ErrorContext(ctx, "Export delivery failed",
			log.FieldErrorType, log.ErrorTypeDelivery, log.FieldError, err)
		r := format.ExportDeliveryFailed()
		return &r
	default:
		return s.failure(ctx, command.Export{}, err)
	}
}

// failure maps an execution error to its reply.
func (s *LedgerService) failure(ctx context.Context, op command.Operation, err error) *format.Reply {
	logger := log.FromContext(ctx)
	var r format.Reply
	switch {
	case errors.Is(err, core.ErrNotFound):
		logger.InfoContext(ctx, "Movement not found", log.FieldErrorType, log.ErrorTypeNotFound)
		r = format.NotFound()
	case errors.Is(err, context.DeadlineExceeded):
		logger.ErrorContext(ctx, "Command timed out", log.FieldErrorType, log.ErrorTypeTimeout, log.FieldError, err)
		r = format.Failure(op.Keyword())
	case core.IsPersistence(err):
		logger.ErrorContext(ctx, "Command failed", log.FieldErrorType, log.ErrorTypePersistence, log.FieldError, err)
		r = format.Failure(op.Keyword())
	default:
		logger.ErrorContext(ctx, "Command failed", log.FieldErrorType, log.ErrorTypeInternal, log.FieldError, err)
		r = format.Failure(op.Keyword())
	}
	return &r
}

func (s *LedgerService) send(ctx context.Context, chatID int64, reply format.Reply) error {
	if err := s.sender.SendText(ctx, chatID, reply); err != nil {
		de := &core.DeliveryError{Err: err}
		log.FromContext(ctx).ErrorContext(ctx, "Reply delivery failed",
			log.FieldErrorType, log.ErrorTypeDelivery, log.FieldError, err)
		return de
	}
	return nil
}

func (s *LedgerService) publish(ctx context.Context, action core.Action, m core.Movement) {
	if s.events == nil {
		log.FromContext(ctx).DebugContext(ctx, "No event publisher, skipping ledger event", log.FieldAction, action)
		return
	}
	ev := core.LedgerEvent{Action: action, Movement: m, At: s.now()}
	if err := s.events.PublishLedgerEvent(ctx, ev); err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to publish ledger event",
			log.FieldAction, action, log.FieldMovementID, m.ID, log.FieldError, err)
	}
}

func (s *LedgerService) currentMonth() core.YearMonth {
	return core.MonthOf(s.now().In(s.loc))
}

func (s *LedgerService) monthOrCurrent(ym *core.YearMonth) core.YearMonth {
	if ym != nil {
		return *ym
	}
	return s.currentMonth()
}

// Commands exposes the grammar table, e.g. for a console front-end.
func (s *LedgerService) Commands() []command.Command {
	return s.router.Commands()
}
