package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mridulmalani2/wandernest/internal/domain"
)

type InvitationRepo interface {
	Create(ctx context.Context, bookingID, guideID int64) (*domain.Invitation, error)
	GetByID(ctx context.Context, id int64) (*domain.Invitation, error)
	MarkRejected(ctx context.Context, id int64) (bool, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]domain.Invitation, error)
}

type InvitationRepoImpl struct{ pool *pgxpool.Pool }

func NewInvitationRepo(pool *pgxpool.Pool) *InvitationRepoImpl {
	return &InvitationRepoImpl{pool: pool}
}

const invitationCols = `id, booking_id, guide_id, status, created_at, accepted_at`

func scanInvitation(row pgx.Row) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := row.Scan(&inv.ID, &inv.BookingID, &inv.GuideID, &inv.Status, &inv.CreatedAt, &inv.AcceptedAt)
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

func (r *InvitationRepoImpl) Create(ctx context.Context, bookingID, guideID int64) (*domain.Invitation, error) {
	const q = `INSERT INTO invitations (booking_id, guide_id, status)
		VALUES ($1, $2, 'pending')
		RETURNING ` + invitationCols
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return scanInvitation(r.pool.QueryRow(ctx, q, bookingID, guideID))
}

func (r *InvitationRepoImpl) GetByID(ctx context.Context, id int64) (*domain.Invitation, error) {
	const q = `SELECT ` + invitationCols + ` FROM invitations WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	inv, err := scanInvitation(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return inv, err
}

// MarkRejected is conditional on the invitation still being pending, so a
// decline never overwrites a terminal state reached by a concurrent resolver.
func (r *InvitationRepoImpl) MarkRejected(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE invitations SET status='rejected'
		WHERE id=$1 AND status='pending'`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

func (r *InvitationRepoImpl) ListByBooking(ctx context.Context, bookingID int64) ([]domain.Invitation, error) {
	const q = `SELECT ` + invitationCols + ` FROM invitations WHERE booking_id=$1 ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invs []domain.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invs = append(invs, *inv)
	}
	return invs, rows.Err()
}

var _ InvitationRepo = (*InvitationRepoImpl)(nil)
