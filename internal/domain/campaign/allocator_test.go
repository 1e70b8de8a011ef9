package campaign

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocateDistributesWinnersByQuantityAndProbability(t *testing.T) {
	alloc := NewAllocator("test-secret")
	campaignID := uuid.New()
	prizes := []Prize{
		{Name: "espresso machine", Quantity: 5, WinProbability: 10},
		{Name: "gift card", Quantity: 3, WinProbability: 5},
	}

	tickets, err := alloc.Allocate(campaignID, 100, prizes)
	require.NoError(t, err)
	require.Len(t, tickets, 100)

	// 100*10% = 10 capped by quantity 5; 100*5% = 5 capped by quantity 3.
	winnersByPrize := map[uuid.UUID]int{}
	losers := 0
	seenSlots := map[int]bool{}
	for _, ticket := range tickets {
		require.False(t, seenSlots[ticket.SlotNumber], "duplicate slot %d", ticket.SlotNumber)
		seenSlots[ticket.SlotNumber] = true
		require.GreaterOrEqual(t, ticket.SlotNumber, 1)
		require.LessOrEqual(t, ticket.SlotNumber, 100)

		if ticket.IsWinner {
			require.NotNil(t, ticket.PrizeID)
			winnersByPrize[*ticket.PrizeID]++
		} else {
			assert.Nil(t, ticket.PrizeID)
			losers++
		}
	}

	assert.Equal(t, 5, winnersByPrize[prizes[0].ID])
	assert.Equal(t, 3, winnersByPrize[prizes[1].ID])
	assert.Equal(t, 92, losers)

	assert.Equal(t, 5, prizes[0].Remaining)
	assert.Equal(t, 3, prizes[1].Remaining)
}

func TestAllocateCapsTargetByPoolSize(t *testing.T) {
	alloc := NewAllocator("test-secret")
	prizes := []Prize{{Name: "sticker", Quantity: 50, WinProbability: 100}}

	tickets, err := alloc.Allocate(uuid.New(), 10, prizes)
	require.NoError(t, err)

	winners := 0
	for _, ticket := range tickets {
		if ticket.IsWinner {
			winners++
		}
	}
	assert.Equal(t, 10, winners)
}

func TestAllocateRejectsBadPlans(t *testing.T) {
	alloc := NewAllocator("test-secret")

	_, err := alloc.Allocate(uuid.New(), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidPrizePlan)

	_, err = alloc.Allocate(uuid.New(), 100, []Prize{{Name: "a", Quantity: 0, WinProbability: 10}})
	assert.ErrorIs(t, err, ErrInvalidPrizePlan)

	_, err = alloc.Allocate(uuid.New(), 100, []Prize{{Name: "a", Quantity: 1, WinProbability: 101}})
	assert.ErrorIs(t, err, ErrInvalidPrizePlan)

	_, err = alloc.Allocate(uuid.New(), 100, []Prize{
		{Name: "a", Quantity: 1, WinProbability: 60},
		{Name: "b", Quantity: 1, WinProbability: 50},
	})
	assert.ErrorIs(t, err, ErrInvalidPrizePlan)
}

func TestVerifyDetectsTampering(t *testing.T) {
	alloc := NewAllocator("test-secret")
	campaignID := uuid.New()

	tickets, err := alloc.Allocate(campaignID, 10, []Prize{{Name: "mug", Quantity: 2, WinProbability: 20}})
	require.NoError(t, err)

	for _, ticket := range tickets {
		assert.True(t, alloc.Verify(&ticket), "slot %d must verify", ticket.SlotNumber)
	}

	// Rewriting a loser into a winner without the key must not verify.
	var loser *Ticket
	for i := range tickets {
		if !tickets[i].IsWinner {
			loser = &tickets[i]
			break
		}
	}
	require.NotNil(t, loser)
	forgedPrize := uuid.New()
	loser.IsWinner = true
	loser.PrizeID = &forgedPrize
	assert.False(t, alloc.Verify(loser))
}

func TestVerifyRejectsForeignSecret(t *testing.T) {
	campaignID := uuid.New()
	tickets, err := NewAllocator("secret-a").Allocate(campaignID, 5, nil)
	require.NoError(t, err)

	other := NewAllocator("secret-b")
	assert.False(t, other.Verify(&tickets[0]))
}
