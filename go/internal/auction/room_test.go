package auction

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/bidly/go/clients"
	"github.com/mcdev12/bidly/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roomStart = time.Unix(1_700_000_000, 0)

// fakeBackend serves fixed room state and records writes
type fakeBackend struct {
	*fakeWinners

	mu         sync.Mutex
	user       *models.User
	userErr    error
	item       *models.AuctionItem
	itemErr    error
	status     *models.AuctionStatus
	statusErr  error
	highest    *models.Bid
	highestErr error
	bidErr     error
	buyNowErr  error
	bids       []int64
	buyNowKeys []string
	fetches    map[Resource]int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		fakeWinners: &fakeWinners{},
		user:        &models.User{UserID: 7, Username: "bob"},
		item:        testItem(),
		status:      statusAt(roomStart.Add(time.Hour)),
		fetches:     make(map[Resource]int),
	}
}

func (f *fakeBackend) CurrentUser(ctx context.Context) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[ResourceUser]++
	return f.user, f.userErr
}

func (f *fakeBackend) GetAuctionItem(ctx context.Context, auctionID string) (*models.AuctionItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[ResourceItem]++
	if f.itemErr != nil {
		return nil, f.itemErr
	}
	return f.item, nil
}

func (f *fakeBackend) GetAuctionStatus(ctx context.Context, auctionID string) (*models.AuctionStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[ResourceStatus]++
	return f.status, f.statusErr
}

func (f *fakeBackend) GetHighestBid(ctx context.Context, auctionID string) (*models.Bid, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches[ResourceHighestBid]++
	return f.highest, f.highestErr
}

func (f *fakeBackend) PlaceBid(ctx context.Context, userID int64, auctionID string, amount int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bidErr != nil {
		return f.bidErr
	}
	f.bids = append(f.bids, amount)
	f.highest = &models.Bid{UserID: userID, BidAmount: float64(amount)}
	return nil
}

func (f *fakeBackend) BuyNow(ctx context.Context, userID int64, auctionID string, idempotencyKey string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buyNowKeys = append(f.buyNowKeys, idempotencyKey)
	return f.buyNowErr
}

func (f *fakeBackend) fetchCount(res Resource) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fetches[res]
}

func (f *fakeBackend) placedBids() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int64(nil), f.bids...)
}

func (f *fakeBackend) purchases() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.buyNowKeys...)
}

type roomHarness struct {
	t       *testing.T
	clock   *clockwork.FakeClock
	backend *fakeBackend
	room    *Room
	cancel  context.CancelFunc
	done    chan error
}

func startRoom(t *testing.T, backend *fakeBackend, navigator Navigator, stream Stream) *roomHarness {
	t.Helper()

	clock := clockwork.NewFakeClockAt(roomStart)
	room := NewRoom("42", backend, navigator, Config{
		Timing: DefaultTiming(),
		Clock:  clock,
		Stream: stream,
	})

	ctx, cancel := context.WithCancel(context.Background())
	h := &roomHarness{
		t:       t,
		clock:   clock,
		backend: backend,
		room:    room,
		cancel:  cancel,
		done:    make(chan error, 1),
	}
	go func() {
		h.done <- room.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.done:
		case <-time.After(2 * time.Second):
		}
	})
	return h
}

func (h *roomHarness) waitFor(desc string, cond func(View) bool) View {
	h.t.Helper()
	var last View
	require.Eventually(h.t, func() bool {
		last = h.room.View()
		return cond(last)
	}, 2*time.Second, 5*time.Millisecond, desc)
	return last
}

func (h *roomHarness) waitLoaded() View {
	h.t.Helper()
	return h.waitFor("room state loaded", func(v View) bool {
		return v.User != nil && v.Item != nil && v.Status != nil && v.Countdown.Phase != PhaseLoading
	})
}

func (h *roomHarness) waitExit() error {
	h.t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(2 * time.Second):
		h.t.Fatal("room did not exit")
		return nil
	}
}

func ignoreNavigation() Navigator {
	return NavigatorFunc(func(models.Results) {})
}

func TestRoom_MountLoadsState(t *testing.T) {
	backend := newFakeBackend()
	backend.highest = &models.Bid{UserID: 9, BidAmount: 150}
	h := startRoom(t, backend, ignoreNavigation(), nil)

	v := h.waitLoaded()
	assert.Equal(t, "42", v.AuctionID)
	assert.Equal(t, PhaseRunning, v.Countdown.Phase)
	assert.Equal(t, "0d 1h 0m 0s", v.Countdown.Text)
	assert.False(t, v.IsOwnAuction())
	assert.Empty(t, v.Error)

	v = h.waitFor("highest bid loaded", func(v View) bool { return v.HighestBid != nil })
	assert.Equal(t, 151.0, v.MinimumBid())
}

func TestRoom_CountdownTicks(t *testing.T) {
	h := startRoom(t, newFakeBackend(), ignoreNavigation(), nil)
	h.waitLoaded()

	h.clock.Advance(time.Second)
	h.waitFor("countdown ticked", func(v View) bool {
		return v.Countdown.Text == "0d 0h 59m 59s"
	})
}

func TestRoom_CloseDeclaresWinnerAndNavigates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := newFakeBackend()
	backend.status = statusAt(roomStart.Add(2 * time.Second))
	backend.highest = &models.Bid{BidID: 3, User: &models.User{UserID: 5}, BidAmount: 150}

	expected := models.Results{
		AuctionItemID: "42",
		WinningBid:    &models.Bid{BidID: 3, User: &models.User{UserID: 5}, BidAmount: 150},
	}
	navigator := NewMockNavigator(ctrl)
	navigator.EXPECT().ShowResults(expected).Times(1)

	h := startRoom(t, backend, navigator, nil)
	h.waitFor("highest bid loaded", func(v View) bool {
		return v.HighestBid != nil && v.Item != nil && v.Countdown.Phase == PhaseRunning
	})

	h.clock.Advance(2 * time.Second)
	v := h.waitFor("winner declared", func(v View) bool {
		return v.WinningBid != nil && v.WinnerExists
	})
	assert.Equal(t, PhaseEnded, v.Countdown.Phase)
	assert.Equal(t, TextEnded, v.Countdown.Text)
	assert.Equal(t, msgWinnerAdded, v.Success)

	declared := backend.declarations()
	require.Len(t, declared, 1)
	assert.Equal(t, int64(5), declared[0].UserID)
	assert.Equal(t, int64(42), declared[0].AuctionItemID)
	assert.Equal(t, int64(150), declared[0].WinningPrice)
	assert.Equal(t, WinnerIdempotencyKey("42"), declared[0].IdempotencyKey)

	// Further ticks never declare again
	h.clock.Advance(time.Second)
	h.clock.Advance(time.Second)
	h.clock.Advance(3 * time.Second)
	require.NoError(t, h.waitExit())
	assert.Len(t, backend.declarations(), 1)
}

func TestRoom_ExistingWinnerIsNotRedeclared(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := newFakeBackend()
	backend.exists = true
	backend.status = statusAt(roomStart.Add(time.Second))
	backend.highest = &models.Bid{UserID: 5, BidAmount: 150}

	navigator := NewMockNavigator(ctrl)
	navigator.EXPECT().ShowResults(gomock.Any()).Times(1)

	h := startRoom(t, backend, navigator, nil)
	h.waitFor("highest bid loaded", func(v View) bool { return v.HighestBid != nil && v.Item != nil })

	h.clock.Advance(time.Second)
	v := h.waitFor("winner check finished", func(v View) bool { return v.WinnerExists })
	assert.Empty(t, v.Success)
	assert.Empty(t, backend.declarations())

	h.clock.Advance(5 * time.Second)
	require.NoError(t, h.waitExit())
}

func TestRoom_EndedWithoutBidsStaysMounted(t *testing.T) {
	backend := newFakeBackend()
	backend.status = statusAt(roomStart.Add(time.Second))
	h := startRoom(t, backend, NavigatorFunc(func(models.Results) {
		t.Error("navigated without a winning bid")
	}), nil)
	h.waitLoaded()

	h.clock.Advance(time.Second)
	v := h.waitFor("auction ended", func(v View) bool { return v.Ended() })
	assert.Nil(t, v.WinningBid)

	err := h.room.PlaceBid(context.Background(), "200")
	assert.ErrorIs(t, err, ErrAuctionEnded)
	assert.Empty(t, backend.placedBids())
	assert.Empty(t, backend.declarations())
}

func TestRoom_FetchFailuresAreIsolated(t *testing.T) {
	backend := newFakeBackend()
	backend.itemErr = errors.New("connection refused")
	h := startRoom(t, backend, ignoreNavigation(), nil)

	v := h.waitFor("item failure shown", func(v View) bool {
		return v.ItemError != "" && v.User != nil && v.Status != nil
	})
	assert.Equal(t, "Error fetching auction item.", v.ItemError)
	assert.Equal(t, "Error fetching auction item.", v.Error)
	assert.Nil(t, v.Item)
	assert.Equal(t, PhaseRunning, v.Countdown.Phase)

	h.clock.Advance(3 * time.Second)
	v = h.waitFor("fetch error cleared", func(v View) bool { return v.Error == "" })
	assert.Equal(t, "Error fetching auction item.", v.ItemError)
}

func TestRoom_FetchErrorPrefersServerMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.statusErr = &clients.APIError{StatusCode: 500, Message: "Status service unavailable"}
	h := startRoom(t, backend, ignoreNavigation(), nil)

	v := h.waitFor("status failure shown", func(v View) bool { return v.Error != "" })
	assert.Equal(t, "Status service unavailable", v.Error)
	assert.Equal(t, PhaseLoading, v.Countdown.Phase)
}

func TestRoom_PlaceBid(t *testing.T) {
	backend := newFakeBackend()
	backend.highest = &models.Bid{UserID: 9, BidAmount: 150}
	h := startRoom(t, backend, ignoreNavigation(), nil)
	h.waitFor("highest bid loaded", func(v View) bool { return v.HighestBid != nil && v.User != nil && v.Item != nil })

	require.NoError(t, h.room.PlaceBid(context.Background(), "151"))

	v := h.waitFor("bid confirmed", func(v View) bool {
		return v.Success == msgBidPlaced && v.HighestBid != nil && v.HighestBid.BidAmount == 151
	})
	assert.Empty(t, v.BidInput)
	assert.Empty(t, v.Error)
	assert.True(t, v.IsUser(v.HighestBid.UserID))
	assert.Equal(t, []int64{151}, backend.placedBids())

	h.clock.Advance(3 * time.Second)
	h.waitFor("success cleared", func(v View) bool { return v.Success == "" })
}

func TestRoom_RejectedBidIsNotSent(t *testing.T) {
	backend := newFakeBackend()
	backend.highest = &models.Bid{UserID: 9, BidAmount: 150}
	h := startRoom(t, backend, ignoreNavigation(), nil)
	h.waitFor("highest bid loaded", func(v View) bool { return v.HighestBid != nil && v.User != nil && v.Item != nil })

	err := h.room.PlaceBid(context.Background(), "150")
	require.ErrorIs(t, err, ErrBidTooLow)

	v := h.waitFor("rejection shown", func(v View) bool { return v.Error != "" })
	assert.Equal(t, "Your bid must be at least $151.", v.Error)
	assert.Equal(t, "150", v.BidInput)
	assert.Empty(t, backend.placedBids())
}

func TestRoom_BidFailureShowsServerMessage(t *testing.T) {
	backend := newFakeBackend()
	backend.bidErr = &clients.APIError{StatusCode: 409, Message: "You have been outbid"}
	h := startRoom(t, backend, ignoreNavigation(), nil)
	h.waitLoaded()

	require.NoError(t, h.room.PlaceBid(context.Background(), "120"))
	v := h.waitFor("bid failure shown", func(v View) bool { return v.Error != "" })
	assert.Equal(t, "You have been outbid", v.Error)
	assert.Equal(t, "120", v.BidInput)

	h.clock.Advance(3 * time.Second)
	h.waitFor("bid failure cleared", func(v View) bool { return v.Error == "" })
}

func TestRoom_OwnerCannotBid(t *testing.T) {
	backend := newFakeBackend()
	backend.user = &models.User{UserID: 1}
	h := startRoom(t, backend, ignoreNavigation(), nil)
	v := h.waitLoaded()
	assert.True(t, v.IsOwnAuction())

	err := h.room.PlaceBid(context.Background(), "500")
	assert.ErrorIs(t, err, ErrOwnAuction)
	assert.Empty(t, backend.placedBids())
}

func TestRoom_BuyNowNavigates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	backend := newFakeBackend()
	backend.item = buyNowItem(500)

	navigator := NewMockNavigator(ctrl)
	navigator.EXPECT().ShowResults(models.Results{AuctionItemID: "42"}).Times(1)

	h := startRoom(t, backend, navigator, nil)
	v := h.waitLoaded()
	require.True(t, v.CanBuyNow())

	require.NoError(t, h.room.BuyNow(context.Background()))
	v = h.waitFor("purchase confirmed", func(v View) bool { return v.Purchased })
	assert.Equal(t, msgPurchased, v.Success)
	assert.False(t, v.CanBuyNow())

	keys := backend.purchases()
	require.Len(t, keys, 1)
	assert.NotEmpty(t, keys[0])

	h.clock.Advance(time.Second)
	require.NoError(t, h.waitExit())
}

func TestRoom_BuyNowFailure(t *testing.T) {
	backend := newFakeBackend()
	backend.item = buyNowItem(500)
	backend.buyNowErr = errors.New("timeout")
	h := startRoom(t, backend, ignoreNavigation(), nil)
	h.waitLoaded()

	require.NoError(t, h.room.BuyNow(context.Background()))
	v := h.waitFor("purchase failure shown", func(v View) bool { return v.Error != "" })
	assert.Equal(t, msgPurchaseFailed, v.Error)
	assert.False(t, v.Purchased)
}

func TestRoom_PollsStatusAndHighestBid(t *testing.T) {
	backend := newFakeBackend()
	h := startRoom(t, backend, ignoreNavigation(), nil)
	h.waitLoaded()
	require.Eventually(t, func() bool { return backend.fetchCount(ResourceHighestBid) == 1 }, time.Second, 5*time.Millisecond)

	backend.mu.Lock()
	backend.highest = &models.Bid{UserID: 9, BidAmount: 300}
	backend.mu.Unlock()

	h.clock.Advance(5 * time.Second)
	h.waitFor("polled highest bid", func(v View) bool {
		return v.HighestBid != nil && v.HighestBid.BidAmount == 300
	})
	assert.Equal(t, 1, backend.fetchCount(ResourceUser))
	assert.Equal(t, 1, backend.fetchCount(ResourceItem))
}

// fakeStream delivers queued updates, then fails if failWith is set
type fakeStream struct {
	updates  []Update
	failWith error
}

func (s *fakeStream) Subscribe(ctx context.Context, auctionID string, out chan<- Update) error {
	for _, u := range s.updates {
		select {
		case out <- u:
		case <-ctx.Done():
			return nil
		}
	}
	if s.failWith != nil {
		return s.failWith
	}
	<-ctx.Done()
	return nil
}

func TestRoom_StreamReplacesPolling(t *testing.T) {
	backend := newFakeBackend()
	stream := &fakeStream{updates: []Update{{
		Resource:   ResourceHighestBid,
		HighestBid: &models.Bid{UserID: 9, BidAmount: 275},
	}}}
	h := startRoom(t, backend, ignoreNavigation(), stream)

	h.waitFor("pushed bid applied", func(v View) bool {
		return v.HighestBid != nil && v.HighestBid.BidAmount == 275
	})

	h.clock.Advance(5 * time.Second)
	h.clock.Advance(5 * time.Second)
	assert.Never(t, func() bool {
		return backend.fetchCount(ResourceStatus) > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestRoom_StreamFailureFallsBackToPolling(t *testing.T) {
	backend := newFakeBackend()
	h := startRoom(t, backend, ignoreNavigation(), &fakeStream{failWith: errors.New("dial refused")})
	h.waitLoaded()
	require.Eventually(t, func() bool { return backend.fetchCount(ResourceStatus) == 1 }, time.Second, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		h.clock.Advance(5 * time.Second)
		return backend.fetchCount(ResourceStatus) > 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRoom_UnmountAndRerun(t *testing.T) {
	h := startRoom(t, newFakeBackend(), ignoreNavigation(), nil)
	h.waitLoaded()

	assert.ErrorIs(t, h.room.Run(context.Background()), ErrAlreadyRunning)

	h.cancel()
	require.NoError(t, h.waitExit())

	assert.ErrorIs(t, h.room.PlaceBid(context.Background(), "200"), ErrUnmounted)
	assert.ErrorIs(t, h.room.BuyNow(context.Background()), ErrUnmounted)
}

func TestRoom_StaleUpdatesAreDropped(t *testing.T) {
	room := NewRoom("42", newFakeBackend(), ignoreNavigation(), Config{Clock: clockwork.NewFakeClockAt(roomStart)})
	ctx := context.Background()

	newer := &models.Bid{UserID: 9, BidAmount: 200}
	older := &models.Bid{UserID: 8, BidAmount: 150}

	room.apply(ctx, Update{Resource: ResourceHighestBid, Seq: 2, HighestBid: newer})
	room.apply(ctx, Update{Resource: ResourceHighestBid, Seq: 1, HighestBid: older})
	assert.Same(t, newer, room.state.highest)

	// Sequences are tracked per resource
	room.apply(ctx, Update{Resource: ResourceStatus, Seq: 1, Status: statusAt(roomStart.Add(time.Minute))})
	require.NotNil(t, room.state.status)

	// A late failure never overwrites newer data
	room.apply(ctx, Update{Resource: ResourceHighestBid, Seq: 1, Err: errors.New("late")})
	assert.Same(t, newer, room.state.highest)
	assert.Empty(t, room.state.errMsg.text)
}

func TestRoom_DeclaresOnceItemHasID(t *testing.T) {
	backend := newFakeBackend()
	room := NewRoom("42", backend, ignoreNavigation(), Config{Clock: clockwork.NewFakeClockAt(roomStart)})
	ctx := context.Background()

	idless := testItem()
	idless.AuctionItemID = 0
	room.apply(ctx, Update{Resource: ResourceItem, Seq: 1, Item: idless})
	room.apply(ctx, Update{Resource: ResourceHighestBid, Seq: 1, HighestBid: &models.Bid{BidID: 3, UserID: 5, BidAmount: 150}})
	room.apply(ctx, Update{Resource: ResourceStatus, Seq: 1, Status: statusAt(roomStart.Add(-time.Second))})

	require.NotNil(t, room.state.winning)
	assert.False(t, room.state.declaring)
	assert.Equal(t, 0, backend.checkCount())

	room.apply(ctx, Update{Resource: ResourceItem, Seq: 2, Item: testItem()})
	assert.True(t, room.state.declaring)

	select {
	case ev := <-room.events:
		room.handle(ctx, ev)
	case <-time.After(2 * time.Second):
		t.Fatal("close sequence did not finish")
	}
	assert.True(t, room.state.winnerExists)
	require.Len(t, backend.declarations(), 1)
	assert.Equal(t, int64(42), backend.declarations()[0].AuctionItemID)
}

func TestRoom_GuardFailureAllowsRetry(t *testing.T) {
	room := NewRoom("42", newFakeBackend(), ignoreNavigation(), Config{Clock: clockwork.NewFakeClockAt(roomStart)})

	room.state.declaring = true
	room.onCloseFinished(closeFinished{err: ErrItemNotLoaded})
	assert.False(t, room.state.declaring)
}

func TestRoom_MessageTokens(t *testing.T) {
	clock := clockwork.NewFakeClockAt(roomStart)
	room := NewRoom("42", newFakeBackend(), ignoreNavigation(), Config{Clock: clock})

	room.setMessage(slotError, "first", true)
	firstToken := room.state.errMsg.token
	room.setMessage(slotError, "second", true)

	// The first timer's expiry no longer matches
	room.handle(context.Background(), messageExpired{slot: slotError, token: firstToken})
	assert.Equal(t, "second", room.state.errMsg.text)

	room.handle(context.Background(), messageExpired{slot: slotError, token: room.state.errMsg.token})
	assert.Empty(t, room.state.errMsg.text)
}
