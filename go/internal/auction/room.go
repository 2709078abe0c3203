package auction

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bidly/go/clients"
	"github.com/mcdev12/bidly/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Backend is everything the room needs from the auction API
type Backend interface {
	StateFetcher
	WinnerAPI
	PlaceBid(ctx context.Context, userID int64, auctionID string, amount int64) error
	BuyNow(ctx context.Context, userID int64, auctionID string, idempotencyKey string) error
}

// Stream pushes status and highest-bid updates for one auction. Subscribe
// blocks until ctx is cancelled or the stream fails for good. Seq on pushed
// updates is ignored; the room stamps them on arrival.
type Stream interface {
	Subscribe(ctx context.Context, auctionID string, out chan<- Update) error
}

// Timing holds the room's intervals and delays
type Timing struct {
	PollInterval        time.Duration
	TickInterval        time.Duration
	MessageTTL          time.Duration
	WinnerNavigateDelay time.Duration
	BuyNowNavigateDelay time.Duration
}

// DefaultTiming returns the room's default intervals
func DefaultTiming() Timing {
	return Timing{
		PollInterval:        5 * time.Second,
		TickInterval:        1 * time.Second,
		MessageTTL:          3 * time.Second,
		WinnerNavigateDelay: 5 * time.Second,
		BuyNowNavigateDelay: 1 * time.Second,
	}
}

// Config holds optional collaborators of a room
type Config struct {
	Timing Timing
	// In production, use clockwork.NewRealClock(). In tests, a FakeClock.
	Clock clockwork.Clock
	// Stream replaces periodic polling when set. The mount fetch still happens.
	Stream Stream
	// Closer may be shared between rooms; a fresh one is created when nil.
	Closer *Closer
	// OnChange is called from the room loop with every published view.
	OnChange func(View)
}

// DefaultConfig returns a polling configuration on the real clock
func DefaultConfig() Config {
	return Config{
		Timing: DefaultTiming(),
		Clock:  clockwork.NewRealClock(),
	}
}

const (
	msgBidPlaced      = "Bid placed successfully!"
	msgBidFailed      = "Failed to place bid."
	msgPurchased      = "Item purchased successfully!"
	msgPurchaseFailed = "Failed to complete purchase."
	msgWinnerAdded    = "Winner added successfully!"
	msgWinnerFailed   = "An error occurred."
)

type messageSlot int

const (
	slotError messageSlot = iota
	slotSuccess
)

// Loop events
type (
	messageExpired struct {
		slot  messageSlot
		token uint64
	}
	bidSubmitted struct {
		amount int64
		err    error
	}
	buyNowSubmitted struct {
		err error
	}
	closeFinished struct {
		result CloseResult
		err    error
	}
	navigateDue struct {
		results models.Results
	}
	streamFailed struct {
		err error
	}
)

type commandKind int

const (
	commandBid commandKind = iota
	commandBuyNow
)

type command struct {
	kind   commandKind
	amount string
	reply  chan error
}

type message struct {
	text  string
	token uint64
	timer clockwork.Timer
}

// roomState is owned by the loop goroutine
type roomState struct {
	user         *models.User
	item         *models.AuctionItem
	status       *models.AuctionStatus
	highest      *models.Bid
	winning      *models.Bid
	winnerExists bool
	purchased    bool
	bidInput     string
	itemErr      string

	countdown Countdown
	reading   Reading

	errMsg     message
	successMsg message
	tokens     uint64

	seq     uint64
	applied map[Resource]uint64

	declaring bool
	navTimer  clockwork.Timer
}

// Room is the live bidding room for one auction. All state is owned by the
// goroutine running Run; other goroutines interact through PlaceBid, BuyNow
// and View.
type Room struct {
	auctionID string
	backend   Backend
	navigator Navigator
	poller    *Poller
	closer    *Closer
	stream    Stream
	clock     clockwork.Clock
	timing    Timing
	onChange  func(View)

	events   chan interface{}
	pushes   chan Update
	commands chan command
	done     chan struct{}
	running  atomic.Bool
	view     atomic.Pointer[View]

	state roomState
}

// NewRoom creates a room for auctionID. Zero fields of config fall back to DefaultConfig.
func NewRoom(auctionID string, backend Backend, navigator Navigator, config Config) *Room {
	defaults := DefaultConfig()
	if config.Clock == nil {
		config.Clock = defaults.Clock
	}
	config.Timing = withDefaults(config.Timing, defaults.Timing)
	if config.Closer == nil {
		config.Closer = NewCloser(backend)
	}

	r := &Room{
		auctionID: auctionID,
		backend:   backend,
		navigator: navigator,
		poller:    NewPoller(backend),
		closer:    config.Closer,
		stream:    config.Stream,
		clock:     config.Clock,
		timing:    config.Timing,
		onChange:  config.OnChange,
		events:    make(chan interface{}, 64),
		pushes:    make(chan Update, 16),
		commands:  make(chan command),
		done:      make(chan struct{}),
		state: roomState{
			applied: make(map[Resource]uint64),
			reading: Reading{Phase: PhaseLoading, Text: TextLoading},
		},
	}
	return r
}

func withDefaults(t, d Timing) Timing {
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.TickInterval <= 0 {
		t.TickInterval = d.TickInterval
	}
	if t.MessageTTL <= 0 {
		t.MessageTTL = d.MessageTTL
	}
	if t.WinnerNavigateDelay <= 0 {
		t.WinnerNavigateDelay = d.WinnerNavigateDelay
	}
	if t.BuyNowNavigateDelay <= 0 {
		t.BuyNowNavigateDelay = d.BuyNowNavigateDelay
	}
	return t
}

// Run mounts the room and processes events until ctx is cancelled or the room
// navigates to results. A room can only run once.
func (r *Room) Run(ctx context.Context) error {
	if !r.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer close(r.done)
	defer r.stopTimers()

	log.Info().Str("auction_id", r.auctionID).Msg("auction room mounted")

	r.fetch(ctx, ResourceUser, ResourceItem, ResourceStatus, ResourceHighestBid)

	tick := r.clock.NewTicker(r.timing.TickInterval)
	defer tick.Stop()

	var poll clockwork.Ticker
	defer func() {
		if poll != nil {
			poll.Stop()
		}
	}()

	polling := r.stream == nil
	if r.stream != nil {
		go r.subscribe(ctx)
	}

	r.publish()

	for {
		// Poll only while the auction is running
		wantPoll := polling && !r.ended()
		if wantPoll && poll == nil {
			poll = r.clock.NewTicker(r.timing.PollInterval)
		} else if !wantPoll && poll != nil {
			poll.Stop()
			poll = nil
			log.Debug().Str("auction_id", r.auctionID).Msg("polling stopped")
		}
		var pollC <-chan time.Time
		if poll != nil {
			pollC = poll.Chan()
		}

		select {
		case <-ctx.Done():
			log.Info().Str("auction_id", r.auctionID).Msg("auction room unmounted")
			return nil

		case <-pollC:
			r.fetch(ctx, ResourceStatus, ResourceHighestBid)

		case <-tick.Chan():
			r.evaluate(ctx)

		case u := <-r.pushes:
			r.state.seq++
			u.Seq = r.state.seq
			r.apply(ctx, u)

		case ev := <-r.events:
			switch ev := ev.(type) {
			case navigateDue:
				log.Info().Str("auction_id", r.auctionID).Msg("navigating to results")
				r.navigator.ShowResults(ev.results)
				return nil
			case streamFailed:
				log.Warn().Err(ev.err).Str("auction_id", r.auctionID).Msg("falling back to polling")
				polling = true
			default:
				r.handle(ctx, ev)
			}

		case cmd := <-r.commands:
			cmd.reply <- r.execute(ctx, cmd)
		}

		r.publish()
	}
}

// View returns the latest published view
func (r *Room) View() View {
	if v := r.view.Load(); v != nil {
		return *v
	}
	return View{AuctionID: r.auctionID, Countdown: Reading{Phase: PhaseLoading, Text: TextLoading}}
}

// PlaceBid validates raw and, if valid, submits the bid. A nil error means
// the bid was sent; the outcome shows up in the view. It blocks until the room
// loop picks the command up.
func (r *Room) PlaceBid(ctx context.Context, raw string) error {
	return r.do(ctx, command{kind: commandBid, amount: raw})
}

// BuyNow validates and submits an immediate purchase
func (r *Room) BuyNow(ctx context.Context) error {
	return r.do(ctx, command{kind: commandBuyNow})
}

func (r *Room) do(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case r.commands <- cmd:
	case <-r.done:
		return ErrUnmounted
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// post hands an event to the loop; it is dropped once the room has unmounted
func (r *Room) post(ev interface{}) {
	select {
	case r.events <- ev:
	case <-r.done:
	}
}

func (r *Room) fetch(ctx context.Context, resources ...Resource) {
	requests := make([]Request, 0, len(resources))
	for _, res := range resources {
		r.state.seq++
		requests = append(requests, Request{Resource: res, Seq: r.state.seq})
	}
	go r.poller.Cycle(ctx, r.auctionID, requests, func(u Update) {
		r.post(u)
	})
}

func (r *Room) subscribe(ctx context.Context) {
	err := r.stream.Subscribe(ctx, r.auctionID, r.pushes)
	if err != nil && ctx.Err() == nil {
		log.Error().Err(err).Str("auction_id", r.auctionID).Msg("update stream failed")
		r.post(streamFailed{err: err})
	}
}

func (r *Room) handle(ctx context.Context, ev interface{}) {
	switch ev := ev.(type) {
	case Update:
		r.apply(ctx, ev)
	case messageExpired:
		m := r.slot(ev.slot)
		if m.token == ev.token {
			m.text = ""
			m.timer = nil
		}
	case bidSubmitted:
		r.onBidSubmitted(ctx, ev)
	case buyNowSubmitted:
		r.onBuyNowSubmitted(ev)
	case closeFinished:
		r.onCloseFinished(ev)
	}
}

// apply installs an update unless a newer one for the same resource was already applied
func (r *Room) apply(ctx context.Context, u Update) {
	if u.Seq <= r.state.applied[u.Resource] {
		log.Debug().
			Str("auction_id", r.auctionID).
			Str("resource", string(u.Resource)).
			Uint64("seq", u.Seq).
			Uint64("applied_seq", r.state.applied[u.Resource]).
			Msg("dropping stale update")
		return
	}
	r.state.applied[u.Resource] = u.Seq

	if u.Err != nil {
		if errors.Is(u.Err, context.Canceled) {
			return
		}
		text := messageOr(u.Err, defaultFetchMessages[u.Resource])
		if u.Resource == ResourceItem && r.state.item == nil {
			r.state.itemErr = text
		}
		r.setMessage(slotError, text, true)
		return
	}

	switch u.Resource {
	case ResourceUser:
		r.state.user = u.User
	case ResourceItem:
		r.state.item = u.Item
		r.state.itemErr = ""
	case ResourceStatus:
		r.applyStatus(u.Status)
	case ResourceHighestBid:
		r.state.highest = u.HighestBid
	}

	r.evaluate(ctx)
}

func (r *Room) applyStatus(status *models.AuctionStatus) {
	if status == nil {
		return
	}
	// The end time is final once a winning bid has been promoted
	if r.state.winning != nil {
		return
	}
	r.state.status = status
	if r.state.countdown.SetStatus(status) {
		log.Debug().Str("auction_id", r.auctionID).Msg("countdown cycle started")
	}
}

func (r *Room) evaluate(ctx context.Context) {
	reading, justEnded := r.state.countdown.Evaluate(r.clock.Now())
	r.state.reading = reading
	if justEnded {
		log.Info().Str("auction_id", r.auctionID).Msg("auction ended")
	}
	if reading.Phase == PhaseEnded {
		r.closeAuction(ctx)
	}
}

// closeAuction is reached from every tick and every applied update once the
// countdown has ended. Promotion and declaration each happen at most once.
func (r *Room) closeAuction(ctx context.Context) {
	if r.state.winning == nil {
		if r.state.highest == nil {
			return
		}
		winning := *r.state.highest
		r.state.winning = &winning

		resultBid := winning
		r.scheduleNavigation(r.timing.WinnerNavigateDelay, models.Results{
			AuctionItemID: r.auctionID,
			WinningBid:    &resultBid,
		})
	}

	if r.state.declaring || r.state.item == nil || r.state.item.AuctionItemID == 0 || r.state.winning.BidderID() == 0 {
		return
	}
	r.state.declaring = true

	winning := *r.state.winning
	item := r.state.item
	writeCtx := context.WithoutCancel(ctx)
	go func() {
		result, err := r.closer.Close(writeCtx, r.auctionID, item, &winning)
		r.post(closeFinished{result: result, err: err})
	}()
}

func (r *Room) onCloseFinished(ev closeFinished) {
	switch {
	case ev.err != nil:
		// Guard failures latch nothing; the next evaluation may try again
		r.state.declaring = false
		log.Warn().Err(ev.err).Str("auction_id", r.auctionID).Msg("close sequence skipped")
	case ev.result.Outcome == OutcomeAlreadyDeclared:
		r.state.winnerExists = true
	case ev.result.Err != nil:
		r.setMessage(slotError, messageOr(ev.result.Err, msgWinnerFailed), false)
	default:
		r.state.winnerExists = true
		r.setMessage(slotSuccess, msgWinnerAdded, false)
	}
}

func (r *Room) execute(ctx context.Context, cmd command) error {
	switch cmd.kind {
	case commandBid:
		return r.placeBid(ctx, cmd.amount)
	case commandBuyNow:
		return r.buyNow(ctx)
	}
	return nil
}

func (r *Room) placeBid(ctx context.Context, raw string) error {
	r.state.bidInput = raw

	amount, err := ValidateBid(r.bidContext(), raw)
	if err != nil {
		r.setMessage(slotError, err.Error(), false)
		return err
	}

	userID := r.state.user.UserID
	writeCtx := context.WithoutCancel(ctx)
	log.Info().
		Str("auction_id", r.auctionID).
		Int64("user_id", userID).
		Int64("amount", amount).
		Msg("submitting bid")

	go func() {
		err := r.backend.PlaceBid(writeCtx, userID, r.auctionID, amount)
		r.post(bidSubmitted{amount: amount, err: err})
	}()
	return nil
}

func (r *Room) onBidSubmitted(ctx context.Context, ev bidSubmitted) {
	if ev.err != nil {
		log.Error().Err(ev.err).Str("auction_id", r.auctionID).Int64("amount", ev.amount).Msg("bid failed")
		r.setMessage(slotError, messageOr(ev.err, msgBidFailed), true)
		return
	}

	r.state.bidInput = ""
	r.clearMessage(slotError)
	r.setMessage(slotSuccess, msgBidPlaced, true)
	r.fetch(ctx, ResourceHighestBid)
}

func (r *Room) buyNow(ctx context.Context) error {
	if err := ValidateBuyNow(r.bidContext()); err != nil {
		r.setMessage(slotError, err.Error(), false)
		return err
	}

	userID := r.state.user.UserID
	key := uuid.NewString()
	writeCtx := context.WithoutCancel(ctx)
	log.Info().
		Str("auction_id", r.auctionID).
		Int64("user_id", userID).
		Str("idempotency_key", key).
		Msg("submitting buy now")

	go func() {
		err := r.backend.BuyNow(writeCtx, userID, r.auctionID, key)
		r.post(buyNowSubmitted{err: err})
	}()
	return nil
}

func (r *Room) onBuyNowSubmitted(ev buyNowSubmitted) {
	if ev.err != nil {
		log.Error().Err(ev.err).Str("auction_id", r.auctionID).Msg("buy now failed")
		r.setMessage(slotError, messageOr(ev.err, msgPurchaseFailed), true)
		return
	}

	r.state.purchased = true
	r.clearMessage(slotError)
	r.setMessage(slotSuccess, msgPurchased, false)
	r.scheduleNavigation(r.timing.BuyNowNavigateDelay, models.Results{AuctionItemID: r.auctionID})
}

func (r *Room) scheduleNavigation(delay time.Duration, results models.Results) {
	if r.state.navTimer != nil {
		return
	}
	log.Info().Str("auction_id", r.auctionID).Dur("delay", delay).Msg("results navigation scheduled")
	r.state.navTimer = r.clock.AfterFunc(delay, func() {
		r.post(navigateDue{results: results})
	})
}

func (r *Room) slot(s messageSlot) *message {
	if s == slotError {
		return &r.state.errMsg
	}
	return &r.state.successMsg
}

// setMessage replaces the slot's message. Transient messages clear themselves
// after MessageTTL unless replaced first.
func (r *Room) setMessage(s messageSlot, text string, transient bool) {
	m := r.slot(s)
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}

	r.state.tokens++
	m.text = text
	m.token = r.state.tokens

	if transient {
		token := m.token
		m.timer = r.clock.AfterFunc(r.timing.MessageTTL, func() {
			r.post(messageExpired{slot: s, token: token})
		})
	}
}

func (r *Room) clearMessage(s messageSlot) {
	m := r.slot(s)
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	m.text = ""
}

func (r *Room) stopTimers() {
	for _, t := range []clockwork.Timer{r.state.errMsg.timer, r.state.successMsg.timer, r.state.navTimer} {
		if t != nil {
			t.Stop()
		}
	}
}

func (r *Room) ended() bool {
	return r.state.reading.Phase == PhaseEnded
}

func (r *Room) bidContext() BidContext {
	return BidContext{
		User:       r.state.user,
		Item:       r.state.item,
		HighestBid: r.state.highest,
		Ended:      r.ended() || r.state.purchased,
	}
}

func (r *Room) publish() {
	v := View{
		AuctionID:    r.auctionID,
		User:         r.state.user,
		Item:         r.state.item,
		ItemError:    r.state.itemErr,
		Status:       r.state.status,
		HighestBid:   r.state.highest,
		WinningBid:   r.state.winning,
		Countdown:    r.state.reading,
		Error:        r.state.errMsg.text,
		Success:      r.state.successMsg.text,
		BidInput:     r.state.bidInput,
		WinnerExists: r.state.winnerExists,
		Purchased:    r.state.purchased,
	}
	r.view.Store(&v)
	if r.onChange != nil {
		r.onChange(v)
	}
}

// messageOr prefers the server's message and falls back to fallback
func messageOr(err error, fallback string) string {
	if msg := clients.ServerMessage(err); msg != "" {
		return msg
	}
	return fallback
}
