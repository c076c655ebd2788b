// Copyright (c) 2025 The Helios developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package exitqueue implements the checkpointed FIFO exit queue. Holders
// enter by locking shares and receive a position ticket, checkpoints settle
// queued shares against available liquidity, and claims walk the checkpoints
// covering a position. Penalties occurring while assets wait unclaimed are
// absorbed through a global scaling factor instead of rewriting checkpoints.
package exitqueue

import (
	"math/big"

	"github.com/pkg/errors"

	"github.com/helios-stake/helios/helios"
	"github.com/helios-stake/helios/slot"
)

var (
	// ErrExitRequestNotProcessed is returned when a claim targets a position
	// no checkpoint has covered yet, or an unknown position.
	ErrExitRequestNotProcessed = errors.New("exit request not processed")

	// ErrClaimTooEarly is returned when a claim arrives before the claim
	// delay has elapsed. The claim is safe to retry later.
	ErrClaimTooEarly = errors.New("claim delay not elapsed")
)

// rayPrecision is the fixed-point scale of the penalty factor.
var rayPrecision = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

var (
	slotQueuedShares      = slot.Position("exitqueue-queued-shares")
	slotCumulativeTickets = slot.Position("exitqueue-cumulative-tickets")
	slotUnclaimedAssets   = slot.Position("exitqueue-unclaimed-assets")
	slotExitingAssets     = slot.Position("exitqueue-exiting-assets")
	slotPenaltyFactor     = slot.Position("exitqueue-penalty-factor")
	slotCheckpointCount   = slot.Position("exitqueue-checkpoint-count")
	slotCheckpoints       = slot.Position("exitqueue-checkpoints")
	slotPositions         = slot.Position("exitqueue-positions")
)

// checkpoint records the state of the queue after one settlement round.
// Tickets and Assets are cumulative over the life of the queue; Factor is
// the penalty factor at the time the checkpoint was pushed.
type checkpoint struct {
	Tickets *big.Int
	Assets  *big.Int
	Factor  *big.Int
}

// position records one exit request. Shares is the ticket span of the
// request; Claimed is how many of those tickets have been paid out.
type position struct {
	Shares  *big.Int
	Claimed *big.Int
}

// Queue is the exit queue of one vault.
type Queue struct {
	queuedShares      *slot.Uint256
	cumulativeTickets *slot.Uint256
	unclaimedAssets   *slot.Uint256
	exitingAssets     *slot.Uint256
	penaltyFactor     *slot.Uint256
	checkpointCount   *slot.Uint64
	checkpoints       *slot.Mapping[slot.Uint64Key, *checkpoint]
	positions         *slot.Mapping[positionKey, *position]
}

// positionKey derives the storage key of a position from its identifying
// triple. The queue stores nothing else per request; the claimer must
// present the same receiver, timestamp and ticket that entry produced.
type positionKey struct {
	receiver  helios.Address
	timestamp uint64
	ticket    *big.Int
}

func (k positionKey) Bytes() []byte {
	b := make([]byte, 0, 60)
	b = append(b, k.receiver.Bytes()...)
	b = append(b, helios.BytesToBytes32(new(big.Int).SetUint64(k.timestamp).Bytes()).Bytes()...)
	b = append(b, helios.BytesToBytes32(k.ticket.Bytes()).Bytes()...)
	return b
}

// New creates a queue over the given storage context.
func New(sctx *slot.Context) *Queue {
	return &Queue{
		queuedShares:      slot.NewUint256(sctx, slotQueuedShares),
		cumulativeTickets: slot.NewUint256(sctx, slotCumulativeTickets),
		unclaimedAssets:   slot.NewUint256(sctx, slotUnclaimedAssets),
		exitingAssets:     slot.NewUint256(sctx, slotExitingAssets),
		penaltyFactor:     slot.NewUint256(sctx, slotPenaltyFactor),
		checkpointCount:   slot.NewUint64(sctx, slotCheckpointCount),
		checkpoints:       slot.NewMapping[slot.Uint64Key, *checkpoint](sctx, slotCheckpoints),
		positions:         slot.NewMapping[positionKey, *position](sctx, slotPositions),
	}
}

// QueuedShares returns the amount of locked shares not yet settled by a
// checkpoint.
func (q *Queue) QueuedShares() (*big.Int, error) {
	return q.queuedShares.Get()
}

// UnclaimedAssets returns the gross assets settled by checkpoints and not
// yet claimed, before penalty scaling.
func (q *Queue) UnclaimedAssets() (*big.Int, error) {
	return q.unclaimedAssets.Get()
}

// TotalExitingAssets returns the current net value owed to unclaimed
// positions, after penalty scaling. The vault reserves this much liquidity.
func (q *Queue) TotalExitingAssets() (*big.Int, error) {
	return q.exitingAssets.Get()
}

// CheckpointCount returns the number of checkpoints pushed so far.
func (q *Queue) CheckpointCount() (uint64, error) {
	return q.checkpointCount.Get()
}

func (q *Queue) factor() (*big.Int, error) {
	f, err := q.penaltyFactor.Get()
	if err != nil {
		return nil, err
	}
	if f.Sign() == 0 {
		return new(big.Int).Set(rayPrecision), nil
	}
	return f, nil
}

func (q *Queue) checkpointAt(index uint64) (*checkpoint, error) {
	cp, err := q.checkpoints.Get(slot.Uint64Key(index))
	if err != nil {
		return nil, err
	}
	if cp.Tickets == nil {
		cp.Tickets = new(big.Int)
	}
	if cp.Assets == nil {
		cp.Assets = new(big.Int)
	}
	if cp.Factor == nil || cp.Factor.Sign() == 0 {
		cp.Factor = new(big.Int).Set(rayPrecision)
	}
	return cp, nil
}

// Enter appends an exit request for the given amount of already locked
// shares and returns its position ticket: the cumulative ticket offset at
// which the request was inserted.
func (q *Queue) Enter(receiver helios.Address, shares *big.Int, timestamp uint64) (*big.Int, error) {
	if shares.Sign() <= 0 {
		return nil, errors.New("shares must be positive")
	}
	ticket, err := q.cumulativeTickets.Get()
	if err != nil {
		return nil, err
	}
	if err := q.cumulativeTickets.Set(new(big.Int).Add(ticket, shares)); err != nil {
		return nil, err
	}
	if err := q.queuedShares.Add(shares); err != nil {
		return nil, err
	}
	key := positionKey{receiver: receiver, timestamp: timestamp, ticket: ticket}
	existing, err := q.positions.Get(key)
	if err != nil {
		return nil, err
	}
	if existing.Shares != nil && existing.Shares.Sign() != 0 {
		// two entries in the same second landing on the same ticket cannot
		// happen: tickets strictly increase with each entry
		return nil, errors.New("duplicate exit position")
	}
	if err := q.positions.Set(key, &position{Shares: shares, Claimed: new(big.Int)}); err != nil {
		return nil, err
	}
	return ticket, nil
}

// PushCheckpoint settles shares of queued requests against assets of
// liquidity, in FIFO order. A zero settlement is a no-op.
func (q *Queue) PushCheckpoint(shares, assets *big.Int) error {
	if shares.Sign() == 0 {
		return nil
	}
	if shares.Sign() < 0 || assets.Sign() < 0 {
		return errors.New("negative settlement")
	}
	if err := q.queuedShares.Sub(shares); err != nil {
		return errors.Wrap(err, "settle more than queued")
	}

	count, err := q.checkpointCount.Get()
	if err != nil {
		return err
	}
	prevTickets, prevAssets := new(big.Int), new(big.Int)
	if count > 0 {
		prev, err := q.checkpointAt(count - 1)
		if err != nil {
			return err
		}
		prevTickets, prevAssets = prev.Tickets, prev.Assets
	}
	factor, err := q.factor()
	if err != nil {
		return err
	}
	cp := &checkpoint{
		Tickets: new(big.Int).Add(prevTickets, shares),
		Assets:  new(big.Int).Add(prevAssets, assets),
		Factor:  factor,
	}
	if err := q.checkpoints.Set(slot.Uint64Key(count), cp); err != nil {
		return err
	}
	q.checkpointCount.Set(count + 1)

	if err := q.unclaimedAssets.Add(assets); err != nil {
		return err
	}
	return q.exitingAssets.Add(assets)
}

// GetExitQueueIndex returns the index of the first checkpoint covering the
// given position ticket, or -1 when no checkpoint reaches it yet.
func (q *Queue) GetExitQueueIndex(ticket *big.Int) (int64, error) {
	count, err := q.checkpointCount.Get()
	if err != nil {
		return -1, err
	}
	index, err := q.searchIndex(ticket, count)
	if err != nil {
		return -1, err
	}
	if index >= count {
		return -1, nil
	}
	return int64(index), nil
}

// searchIndex binary-searches for the first checkpoint whose cumulative
// ticket boundary exceeds ticket, i.e. the checkpoint that settles it.
func (q *Queue) searchIndex(ticket *big.Int, count uint64) (uint64, error) {
	lo, hi := uint64(0), count
	for lo < hi {
		mid := (lo + hi) / 2
		cp, err := q.checkpointAt(mid)
		if err != nil {
			return 0, err
		}
		if cp.Tickets.Cmp(ticket) > 0 {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return lo, nil
}

// ExitedAssets is the result of resolving a position against the
// checkpoints pushed so far.
type ExitedAssets struct {
	// LeftTickets is the part of the position no checkpoint covers yet.
	LeftTickets *big.Int
	// ExitedTickets is the part settled and ready to pay out.
	ExitedTickets *big.Int
	// ExitedAssets is the net claimable value of ExitedTickets, after
	// penalty scaling.
	ExitedAssets *big.Int

	// grossAssets is the checkpoint-recorded value before scaling; it is
	// what claims release from the unclaimed total.
	grossAssets *big.Int
}

// CalculateExitedAssets resolves how much of a position the checkpoints
// have settled. The checkpoint index supplied by the caller is only a hint:
// the covering index is always recomputed from the position ticket.
func (q *Queue) CalculateExitedAssets(receiver helios.Address, ticket *big.Int, timestamp uint64, _ int64) (*ExitedAssets, error) {
	pos, err := q.positions.Get(positionKey{receiver: receiver, timestamp: timestamp, ticket: ticket})
	if err != nil {
		return nil, err
	}
	if pos.Shares == nil || pos.Shares.Sign() == 0 {
		return nil, ErrExitRequestNotProcessed
	}
	return q.resolve(ticket, pos)
}

func (q *Queue) resolve(ticket *big.Int, pos *position) (*ExitedAssets, error) {
	claimed := pos.Claimed
	if claimed == nil {
		claimed = new(big.Int)
	}
	start := new(big.Int).Add(ticket, claimed)
	end := new(big.Int).Add(ticket, pos.Shares)
	result := &ExitedAssets{
		LeftTickets:   new(big.Int).Sub(end, start),
		ExitedTickets: new(big.Int),
		ExitedAssets:  new(big.Int),
		grossAssets:   new(big.Int),
	}
	if result.LeftTickets.Sign() == 0 {
		return result, nil
	}

	count, err := q.checkpointCount.Get()
	if err != nil {
		return nil, err
	}
	index, err := q.searchIndex(start, count)
	if err != nil {
		return nil, err
	}
	factor, err := q.factor()
	if err != nil {
		return nil, err
	}

	cursor := new(big.Int).Set(start)
	for ; index < count && cursor.Cmp(end) < 0; index++ {
		cp, err := q.checkpointAt(index)
		if err != nil {
			return nil, err
		}
		prevTickets, prevAssets := new(big.Int), new(big.Int)
		if index > 0 {
			prev, err := q.checkpointAt(index - 1)
			if err != nil {
				return nil, err
			}
			prevTickets, prevAssets = prev.Tickets, prev.Assets
		}

		upper := cp.Tickets
		if upper.Cmp(end) > 0 {
			upper = end
		}
		span := new(big.Int).Sub(upper, cursor)
		if span.Sign() <= 0 {
			break
		}

		// the position's share of the checkpoint's settled assets, pro rata
		// over its ticket range
		cpAssets := new(big.Int).Sub(cp.Assets, prevAssets)
		cpTickets := new(big.Int).Sub(cp.Tickets, prevTickets)
		gross := new(big.Int).Mul(span, cpAssets)
		gross.Div(gross, cpTickets)

		// scale by the penalty accrued since the checkpoint was pushed
		net := new(big.Int).Mul(gross, factor)
		net.Div(net, cp.Factor)

		result.ExitedTickets.Add(result.ExitedTickets, span)
		result.grossAssets.Add(result.grossAssets, gross)
		result.ExitedAssets.Add(result.ExitedAssets, net)
		cursor.Add(cursor, span)
	}
	result.LeftTickets.Sub(end, cursor)
	return result, nil
}

// Claim pays out the settled part of a position. Claiming an already fully
// claimed position is a no-op; claiming a position no checkpoint covers
// fails with ErrExitRequestNotProcessed. The returned amount is the net
// value to transfer to the receiver.
func (q *Queue) Claim(receiver helios.Address, ticket *big.Int, timestamp uint64, _ int64, now, delay uint64) (*big.Int, error) {
	if now < timestamp+delay {
		return nil, ErrClaimTooEarly
	}
	key := positionKey{receiver: receiver, timestamp: timestamp, ticket: ticket}
	pos, err := q.positions.Get(key)
	if err != nil {
		return nil, err
	}
	if pos.Shares == nil || pos.Shares.Sign() == 0 {
		return nil, ErrExitRequestNotProcessed
	}
	claimed := pos.Claimed
	if claimed == nil {
		claimed = new(big.Int)
	}
	if claimed.Cmp(pos.Shares) >= 0 {
		// fully claimed already
		return new(big.Int), nil
	}

	exited, err := q.resolve(ticket, pos)
	if err != nil {
		return nil, err
	}
	// nothing claimable yet, or the penalty wiped the settled value;
	// either way the tickets stay unclaimed
	if exited.ExitedAssets.Sign() == 0 {
		return nil, ErrExitRequestNotProcessed
	}

	pos.Claimed = new(big.Int).Add(claimed, exited.ExitedTickets)
	if err := q.positions.Set(key, pos); err != nil {
		return nil, err
	}
	if err := q.unclaimedAssets.Sub(exited.grossAssets); err != nil {
		return nil, err
	}
	// rounding in the factor math can leave the net total a hair short of
	// the last claim; drain what is left
	exiting, err := q.exitingAssets.Get()
	if err != nil {
		return nil, err
	}
	release := exited.ExitedAssets
	if exiting.Cmp(release) < 0 {
		release = exiting
	}
	if err := q.exitingAssets.Sub(release); err != nil {
		return nil, err
	}
	// pay out exactly what left the reserve
	return new(big.Int).Set(release), nil
}

// AbsorbPenalty charges the exiting side its proportional part of a
// penalty by shrinking the penalty factor. Checkpoints pushed later record
// the shrunk factor and are unaffected. Returns an error if the absorbed
// amount exceeds the value currently owed.
func (q *Queue) AbsorbPenalty(absorbed *big.Int) error {
	if absorbed.Sign() == 0 {
		return nil
	}
	exiting, err := q.exitingAssets.Get()
	if err != nil {
		return err
	}
	if exiting.Cmp(absorbed) < 0 {
		return errors.New("penalty exceeds exiting assets")
	}
	factor, err := q.factor()
	if err != nil {
		return err
	}
	remaining := new(big.Int).Sub(exiting, absorbed)
	factor.Mul(factor, remaining)
	factor.Div(factor, exiting)
	if err := q.penaltyFactor.Set(factor); err != nil {
		return err
	}
	return q.exitingAssets.Sub(absorbed)
}
