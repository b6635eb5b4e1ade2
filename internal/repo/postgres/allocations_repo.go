package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type AllocationRepo interface {
	AcceptExclusive(ctx context.Context, bookingID, guideID, invitationID int64) (bool, error)
}

type AllocationRepoImpl struct{ pool *pgxpool.Pool }

func NewAllocationRepo(pool *pgxpool.Pool) *AllocationRepoImpl {
	return &AllocationRepoImpl{pool: pool}
}

// AcceptExclusive allocates the booking to the guide in one transaction.
//
// The conditional update on the booking row is the arbiter between concurrent
// acceptors: the dispatcher leaves bookings in matched, so the guard is
// exactly status='matched'. When two accepts race, Postgres serializes the
// row update and only one transaction sees RowsAffected()==1; the other gets
// zero rows, rolls back untouched, and the caller reports the lost race.
func (r *AllocationRepoImpl) AcceptExclusive(ctx context.Context, bookingID, guideID, invitationID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to begin accept transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	ct, err := tx.Exec(ctx, `UPDATE bookings
		SET status='accepted', guide_id=$2, updated_at=now()
		WHERE id=$1 AND status='matched'`, bookingID, guideID)
	if err != nil {
		return false, fmt.Errorf("failed to transition booking %d: %w", bookingID, err)
	}
	if ct.RowsAffected() == 0 {
		// Lost the race (or the booking expired/was cancelled). Expected.
		return false, nil
	}

	if _, err := tx.Exec(ctx, `UPDATE invitations
		SET status='accepted', accepted_at=now()
		WHERE id=$1 AND status='pending'`, invitationID); err != nil {
		return false, fmt.Errorf("failed to accept invitation %d: %w", invitationID, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE invitations
		SET status='rejected'
		WHERE booking_id=$1 AND id <> $2 AND status='pending'`, bookingID, invitationID); err != nil {
		return false, fmt.Errorf("failed to reject sibling invitations for booking %d: %w", bookingID, err)
	}

	if _, err := tx.Exec(ctx, `UPDATE guides
		SET tours_completed = tours_completed + 1, updated_at=now()
		WHERE id=$1`, guideID); err != nil {
		return false, fmt.Errorf("failed to increment tours for guide %d: %w", guideID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("failed to commit accept transaction: %w", err)
	}
	return true, nil
}

var _ AllocationRepo = (*AllocationRepoImpl)(nil)
