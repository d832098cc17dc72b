package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitChoices(t *testing.T, g *RPSGame, choices map[string]string) {
	t.Helper()
	for pid, ch := range choices {
		_, err := g.SubmitAction(pid, Action{Name: "choice", Choice: ch})
		require.NoError(t, err)
	}
}

func TestRPSSubmitValidation(t *testing.T) {
	g := NewRPSGame("room1", makePlayers("a", "b"), 100)

	_, err := g.SubmitAction("a", Action{Choice: "lizard"})
	assert.ErrorIs(t, err, ErrInvalidChoice)

	_, err = g.SubmitAction("nobody", Action{Choice: ChoiceRock})
	assert.ErrorIs(t, err, ErrUnknownPlayer)

	out, err := g.SubmitAction("a", Action{Choice: ChoiceRock})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ChoicesCount)
	assert.False(t, out.AllActed)

	_, err = g.SubmitAction("a", Action{Choice: ChoicePaper})
	assert.ErrorIs(t, err, ErrAlreadyActed)

	out, err = g.SubmitAction("b", Action{Choice: ChoiceRock})
	require.NoError(t, err)
	assert.True(t, out.AllActed)
}

func TestRPSFullTieTwoRocks(t *testing.T) {
	g := NewRPSGame("room2", makePlayers("a", "b"), 100)
	submitChoices(t, g, map[string]string{"a": ChoiceRock, "b": ChoiceRock})

	s := g.Settle([]string{"a", "b"})
	assert.Equal(t, ResultTie, s.Result)
	assert.Empty(t, s.Winners)
	assert.True(t, g.Finished())
}

func TestRPSRockBeatsScissors(t *testing.T) {
	g := NewRPSGame("room3", makePlayers("a", "b"), 100)
	submitChoices(t, g, map[string]string{"a": ChoiceRock, "b": ChoiceScissors})

	s := g.Settle([]string{"a", "b"})
	require.Equal(t, ResultWin, s.Result)
	assert.Equal(t, []string{"a"}, s.Winners)
	assert.Equal(t, int64(200), s.PrizePerWinner)
}

func TestRPSRingTieThreePlayers(t *testing.T) {
	g := NewRPSGame("room4", makePlayers("a", "b", "c"), 100)
	submitChoices(t, g, map[string]string{
		"a": ChoiceRock,
		"b": ChoiceScissors,
		"c": ChoicePaper,
	})

	s := g.Settle([]string{"a", "b", "c"})
	assert.Equal(t, ResultComplexTie, s.Result)
	assert.Empty(t, s.Winners)
}

func TestRPSMultipleWinnersFloorDivision(t *testing.T) {
	g := NewRPSGame("room5", makePlayers("a", "b", "c", "d"), 100)
	submitChoices(t, g, map[string]string{
		"a": ChoiceRock,
		"b": ChoiceRock,
		"c": ChoiceRock,
		"d": ChoiceScissors,
	})

	s := g.Settle([]string{"a", "b", "c", "d"})
	require.Equal(t, ResultWin, s.Result)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, s.Winners)
	assert.Equal(t, int64(400/3), s.PrizePerWinner)

	paid := s.PrizePerWinner * int64(len(s.Winners))
	assert.LessOrEqual(t, paid, s.TotalPrize)
	assert.Less(t, s.TotalPrize-paid, int64(len(s.Winners)))
}

func TestRPSDominanceIgnoresHeadcount(t *testing.T) {
	g := NewRPSGame("room5b", makePlayers("a", "b", "c", "d"), 100)
	submitChoices(t, g, map[string]string{
		"a": ChoiceRock,
		"b": ChoiceScissors,
		"c": ChoiceScissors,
		"d": ChoiceScissors,
	})

	// Two distinct values resolve by dominance alone: the lone rock beats
	// every scissors player and takes the whole pool.
	s := g.Settle([]string{"a", "b", "c", "d"})
	require.Equal(t, ResultWin, s.Result)
	assert.Equal(t, []string{"a"}, s.Winners)
	assert.Equal(t, int64(400), s.PrizePerWinner)
}

func TestRPSTimeoutSentinelNeverWins(t *testing.T) {
	g := NewRPSGame("room6", makePlayers("a", "b", "c"), 100)
	submitChoices(t, g, map[string]string{"a": ChoicePaper})

	// b and c never chose: both get the timeout sentinel, a's value is the
	// only valid one, so the round is a full tie (refund), not a win.
	s := g.Settle([]string{"a", "b", "c"})
	assert.Equal(t, ResultTie, s.Result)
	assert.Equal(t, ChoiceTimeout, s.Choices["b"])
	assert.Equal(t, ChoiceTimeout, s.Choices["c"])
	assert.Empty(t, s.Winners)
}

func TestRPSTwoValidValuesWithTimeout(t *testing.T) {
	g := NewRPSGame("room7", makePlayers("a", "b", "c"), 100)
	submitChoices(t, g, map[string]string{"a": ChoicePaper, "b": ChoiceRock})

	s := g.Settle([]string{"a", "b", "c"})
	require.Equal(t, ResultWin, s.Result)
	assert.Equal(t, []string{"a"}, s.Winners, "paper beats rock; timeout never wins")
	assert.Equal(t, int64(300), s.PrizePerWinner)
}

func TestRPSAllTimedOut(t *testing.T) {
	g := NewRPSGame("room8", makePlayers("a", "b"), 100)

	s := g.Settle([]string{"a", "b"})
	assert.Equal(t, ResultTie, s.Result)
	assert.Empty(t, s.Winners)
}

func TestRPSRejectAfterFinish(t *testing.T) {
	g := NewRPSGame("room9", makePlayers("a", "b"), 100)
	submitChoices(t, g, map[string]string{"a": ChoiceRock, "b": ChoicePaper})
	g.Settle([]string{"a", "b"})

	_, err := g.SubmitAction("a", Action{Choice: ChoiceRock})
	assert.ErrorIs(t, err, ErrGameFinished)
}
