package campaign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/rand"
	"strconv"

	"github.com/google/uuid"
)

const missMarker = "miss"

// Allocator builds a campaign's ticket pool: weighted random placement of
// prize wins across slots, each outcome sealed with a keyed integrity tag.
type Allocator struct {
	secret []byte
}

func NewAllocator(secret string) *Allocator {
	return &Allocator{secret: []byte(secret)}
}

// Allocate distributes prizes over poolSize slots. Each prize lands on
// min(floor(poolSize*probability/100), quantity) distinct random slots; no
// slot carries more than one prize. The prizes slice gets IDs and Remaining
// filled in.
func (a *Allocator) Allocate(campaignID uuid.UUID, poolSize int, prizes []Prize) ([]Ticket, error) {
	if poolSize <= 0 {
		return nil, fmt.Errorf("%w: pool size must be positive", ErrInvalidPrizePlan)
	}

	totalProbability := 0
	for i := range prizes {
		p := &prizes[i]
		if p.Quantity <= 0 {
			return nil, fmt.Errorf("%w: prize %q quantity must be positive", ErrInvalidPrizePlan, p.Name)
		}
		if p.WinProbability <= 0 || p.WinProbability > 100 {
			return nil, fmt.Errorf("%w: prize %q probability out of range", ErrInvalidPrizePlan, p.Name)
		}
		totalProbability += p.WinProbability
	}
	if totalProbability > 100 {
		return nil, fmt.Errorf("%w: combined win probability exceeds 100%%", ErrInvalidPrizePlan)
	}

	// Slots are numbered 1..poolSize; index i holds slot i+1.
	tickets := make([]Ticket, poolSize)
	for i := range tickets {
		tickets[i] = Ticket{
			ID:           uuid.New(),
			CampaignID:   campaignID,
			SlotNumber:   i + 1,
			IntegrityTag: a.Tag(campaignID, i+1, nil),
		}
	}

	// slots[unassigned:] have been handed out already; a partial Fisher-Yates
	// draw from the front keeps every pick uniform over what is left.
	slots := make([]int, poolSize)
	for i := range slots {
		slots[i] = i
	}
	unassigned := poolSize

	for i := range prizes {
		p := &prizes[i]
		p.ID = uuid.New()
		p.CampaignID = campaignID
		p.Remaining = p.Quantity

		target := poolSize * p.WinProbability / 100
		if target > p.Quantity {
			target = p.Quantity
		}
		if target > unassigned {
			target = unassigned
		}

		for n := 0; n < target; n++ {
			pick := rand.Intn(unassigned)
			idx := slots[pick]
			unassigned--
			slots[pick] = slots[unassigned]
			slots[unassigned] = idx

			prizeID := p.ID
			tickets[idx].IsWinner = true
			tickets[idx].PrizeID = &prizeID
			tickets[idx].IntegrityTag = a.Tag(campaignID, tickets[idx].SlotNumber, &prizeID)
		}
	}

	return tickets, nil
}

// Tag computes the integrity tag for one ticket outcome.
func (a *Allocator) Tag(campaignID uuid.UUID, slot int, prizeID *uuid.UUID) string {
	outcome := missMarker
	if prizeID != nil {
		outcome = prizeID.String()
	}

	mac := hmac.New(sha256.New, a.secret)
	mac.Write([]byte(campaignID.String() + "|" + strconv.Itoa(slot) + "|" + outcome))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes a ticket's tag against its stored outcome.
func (a *Allocator) Verify(t *Ticket) bool {
	expected := a.Tag(t.CampaignID, t.SlotNumber, t.PrizeID)
	return hmac.Equal([]byte(expected), []byte(t.IntegrityTag))
}
