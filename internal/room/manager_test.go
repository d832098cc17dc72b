// internal/room/manager_test.go
package room

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starplay/starplay/internal/events"
	"github.com/starplay/starplay/internal/game"
	"github.com/starplay/starplay/internal/ledger"
	"github.com/starplay/starplay/internal/models"
)

// mockBroadcaster records every event the manager emits.
type mockBroadcaster struct {
	mu     sync.Mutex
	events []events.Event
	direct map[string][]events.Event
}

func newMockBroadcaster() *mockBroadcaster {
	return &mockBroadcaster{direct: make(map[string][]events.Event)}
}

func (b *mockBroadcaster) Broadcast(_ []string, ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, ev)
}

func (b *mockBroadcaster) SendDirect(playerID string, ev events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.direct[playerID] = append(b.direct[playerID], ev)
}

func (b *mockBroadcaster) eventsOfType(t events.EventType) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []events.Event{}
	for _, ev := range b.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func (b *mockBroadcaster) directOfType(playerID string, t events.EventType) []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []events.Event{}
	for _, ev := range b.direct[playerID] {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LobbyTimeout = 50 * time.Millisecond
	cfg.RerollDelay = 20 * time.Millisecond
	cfg.ChoiceWindow = 50 * time.Millisecond
	cfg.CleanupDelay = 20 * time.Millisecond
	return cfg
}

func setupManager(t *testing.T, cfg Config) (*Manager, *mockBroadcaster, *ledger.MemoryLedger) {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	b := newMockBroadcaster()
	l := ledger.NewMemoryLedger(1000)
	return NewManager(cfg, b, l, log), b, l
}

func testPlayer(id string) models.Player {
	return models.Player{ID: id, Username: "user-" + id}
}

func TestCreateRoomRejectsCards(t *testing.T) {
	m, _, _ := setupManager(t, testConfig())
	_, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameCards, 100)
	assert.ErrorIs(t, err, ErrUnsupportedGameType)
}

func TestJoinIsIdempotent(t *testing.T) {
	m, b, _ := setupManager(t, testConfig())
	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)

	first, err := m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	require.Len(t, first.Players, 2)

	again, err := m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	assert.Len(t, again.Players, 2)
	assert.Len(t, b.eventsOfType(events.EventPlayerJoined), 1)
}

func TestReadyDebitsOnceAndStarts(t *testing.T) {
	m, b, l := setupManager(t, testConfig())
	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)

	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	// Repeat ready must not debit a second stake.
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	bal, _ := l.Balance(context.Background(), "p1")
	assert.Equal(t, int64(900), bal)

	after, err := m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)
	assert.Equal(t, models.RoomPlaying, after.Status)
	assert.Len(t, b.eventsOfType(events.EventGameStarted), 1)
	assert.Len(t, b.eventsOfType(events.EventGameStart), 1)
}

func TestReadyInsufficientFundsRejectedCleanly(t *testing.T) {
	m, _, l := setupManager(t, testConfig())
	l.SetBalance("p1", 50)
	_, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)

	after, err := m.ReadyPlayer(context.Background(), "p1")
	assert.ErrorIs(t, err, ledger.ErrInsufficientFunds)
	assert.Equal(t, int64(0), after.Pot)
	bal, _ := l.Balance(context.Background(), "p1")
	assert.Equal(t, int64(50), bal)
}

func TestLobbyTimeoutCancelsAndRefundsOnce(t *testing.T) {
	m, b, l := setupManager(t, testConfig())
	_, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(b.eventsOfType(events.EventRoomCancelled)) == 1
	}, time.Second, 5*time.Millisecond)

	bal, _ := l.Balance(context.Background(), "p1")
	assert.Equal(t, int64(1000), bal, "stake refunded exactly once")

	// Eviction follows the cleanup grace period.
	require.Eventually(t, func() bool {
		_, ok := m.PlayerRoom("p1")
		return !ok
	}, time.Second, 5*time.Millisecond)
}

func TestLobbyTimeoutAutoStartsWithQuorum(t *testing.T) {
	m, b, _ := setupManager(t, testConfig())
	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	// A third player joins but never readies; the deadline starts without them.
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p3"))
	require.NoError(t, err)

	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return len(b.eventsOfType(events.EventGameStarted)) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Empty(t, b.eventsOfType(events.EventRoomCancelled))
}

func TestDiceFullFlowPaysWinners(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute // keep the lobby timer out of the way
	m, b, l := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)

	settled := make(chan game.Settlement, 1)
	m.OnSettled = func(_ models.RoomSnapshot, s game.Settlement) { settled <- s }

	// Roll until the round is decisive, letting reroll rounds reopen.
	deadline := time.After(5 * time.Second)
	for {
		err1 := m.HandleDiceAction(context.Background(), "p1", "roll")
		err2 := m.HandleDiceAction(context.Background(), "p2", "roll")
		if err1 == nil && err2 == nil {
			if len(b.eventsOfType(events.EventGameResults)) > 0 {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatal("dice game never settled")
		case <-time.After(5 * time.Millisecond):
		}
	}

	results := b.eventsOfType(events.EventGameResults)
	require.Len(t, results, 1)
	final := results[0]
	assert.Equal(t, game.ResultWin, final.Result)
	assert.NotEmpty(t, final.Winners)
	assert.NotEmpty(t, final.Seed, "fairness material disclosed on settlement")
	assert.NotEmpty(t, final.Nonce)
	assert.Equal(t, int64(200), final.TotalPrize)

	// Each acting player got a private roll event per round they rolled.
	require.NotEmpty(t, b.directOfType("p1", events.EventDiceRollResult))
	require.NotEmpty(t, b.directOfType("p2", events.EventDiceRollResult))

	select {
	case s := <-settled:
		assert.Equal(t, game.ResultWin, s.Result)
	case <-time.After(time.Second):
		t.Fatal("settlement hook never fired")
	}

	// Winner balances reconcile: total credited equals the pool.
	var total int64
	for _, pid := range []string{"p1", "p2"} {
		bal, _ := l.Balance(context.Background(), pid)
		total += bal
	}
	assert.Equal(t, int64(2000), total, "pool conserved across stakes and payout")
}

func TestDiceDuplicateRollRejected(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	m, _, _ := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)

	require.NoError(t, m.HandleDiceAction(context.Background(), "p1", "roll"))
	assert.ErrorIs(t, m.HandleDiceAction(context.Background(), "p1", "roll"), game.ErrAlreadyActed)
}

func TestConcurrentDuplicateRollSingleAccept(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	m, _, _ := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)

	// Two racing submissions for the same player: the room lock serializes
	// them, so exactly one lands and the other is a duplicate rejection.
	var wg sync.WaitGroup
	results := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- m.HandleDiceAction(context.Background(), "p1", "roll")
		}()
	}
	wg.Wait()
	close(results)

	var accepted, rejected int
	for err := range results {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, game.ErrAlreadyActed):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
}

func TestRPSTimeoutSettlesWithSentinel(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	m, b, l := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameRPS, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)

	require.NoError(t, m.HandleRPSChoice(context.Background(), "p1", game.ChoiceRock))

	require.Eventually(t, func() bool {
		return len(b.eventsOfType(events.EventGameFinished)) == 1
	}, time.Second, 5*time.Millisecond)

	// p1's rock is the only valid value on the table, so the deadline
	// settles as a full tie: the sentinel never wins and never loses a
	// stake for anyone.
	final := b.eventsOfType(events.EventGameFinished)[0]
	assert.Equal(t, game.ResultTie, final.Result)
	assert.Empty(t, final.Winners)
	assert.Equal(t, game.ChoiceTimeout, final.Choices["p2"])

	bal1, _ := l.Balance(context.Background(), "p1")
	bal2, _ := l.Balance(context.Background(), "p2")
	assert.Equal(t, int64(1000), bal1)
	assert.Equal(t, int64(1000), bal2)
}

func TestRPSTieRefundsStakes(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	cfg.ChoiceWindow = time.Minute
	m, b, l := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameRPS, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)

	require.NoError(t, m.HandleRPSChoice(context.Background(), "p1", game.ChoiceRock))
	require.NoError(t, m.HandleRPSChoice(context.Background(), "p2", game.ChoiceRock))

	final := b.eventsOfType(events.EventGameFinished)
	require.Len(t, final, 1)
	assert.Equal(t, game.ResultTie, final[0].Result)

	for _, pid := range []string{"p1", "p2"} {
		bal, _ := l.Balance(context.Background(), pid)
		assert.Equal(t, int64(1000), bal, "tie refunds the stake")
	}
}

func TestRPSInvalidChoiceRejected(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	cfg.ChoiceWindow = time.Minute
	m, _, _ := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameRPS, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)

	assert.ErrorIs(t, m.HandleRPSChoice(context.Background(), "p1", "lizard"), game.ErrInvalidChoice)
	assert.ErrorIs(t, m.HandleRPSChoice(context.Background(), "p2", game.ChoiceTimeout), game.ErrInvalidChoice)
}

func TestListAvailableFiltersByTypeAndStake(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	m, _, _ := setupManager(t, cfg)

	_, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.CreateRoom(context.Background(), testPlayer("p2"), models.GameDice, 500)
	require.NoError(t, err)
	_, err = m.CreateRoom(context.Background(), testPlayer("p3"), models.GameRPS, 100)
	require.NoError(t, err)

	dice := m.ListAvailable(models.GameDice, 0)
	assert.Len(t, dice, 2)

	cheap := m.ListAvailable(models.GameDice, 200)
	require.Len(t, cheap, 1)
	assert.Equal(t, int64(100), cheap[0].BetAmount)

	rps := m.ListAvailable(models.GameRPS, 0)
	assert.Len(t, rps, 1)
}

func TestStartedRoomLeavesQueue(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	m, _, _ := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p1")
	require.NoError(t, err)
	_, err = m.ReadyPlayer(context.Background(), "p2")
	require.NoError(t, err)

	assert.Empty(t, m.ListAvailable(models.GameDice, 0))
}

func TestDisconnectMarksWithoutRemoving(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	m, b, _ := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer("p2"))
	require.NoError(t, err)

	m.DisconnectPlayer("p2")
	m.DisconnectPlayer("p2") // repeated disconnect is a no-op

	cur, ok := m.PlayerRoom("p2")
	require.True(t, ok)
	require.Len(t, cur.Players, 2)
	for _, p := range cur.Players {
		if p.ID == "p2" {
			assert.Equal(t, models.PlayerDisconnected, p.Status)
		}
	}
	assert.Len(t, b.eventsOfType(events.EventPlayerDisconnected), 1)

	m.ReconnectPlayer("p2")
	cur, _ = m.PlayerRoom("p2")
	for _, p := range cur.Players {
		if p.ID == "p2" {
			assert.Equal(t, models.PlayerWaiting, p.Status)
		}
	}
}

func TestConcurrentReadySingleStart(t *testing.T) {
	cfg := testConfig()
	cfg.LobbyTimeout = time.Minute
	m, b, _ := setupManager(t, cfg)

	snap, err := m.CreateRoom(context.Background(), testPlayer("p1"), models.GameDice, 100)
	require.NoError(t, err)
	for _, pid := range []string{"p2", "p3", "p4"} {
		_, err = m.JoinRoom(context.Background(), snap.ID, testPlayer(pid))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, pid := range []string{"p1", "p2", "p3", "p4"} {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = m.ReadyPlayer(context.Background(), id)
		}(pid)
	}
	wg.Wait()

	assert.Len(t, b.eventsOfType(events.EventGameStarted), 1, "exactly one start despite racing readies")
}
