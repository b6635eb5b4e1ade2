package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mridulmalani2/wandernest/internal/domain"
)

type BookingRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	MarkMatched(ctx context.Context, id int64) (bool, error)
}

type BookingRepoImpl struct{ pool *pgxpool.Pool }

func NewBookingRepo(pool *pgxpool.Pool) *BookingRepoImpl { return &BookingRepoImpl{pool: pool} }

const bookingCols = `id, status,
traveler_name, traveler_email, traveler_phone,
locality, start_date, end_date,
party_size, party_type, service_type,
preferred_nationality, preferred_languages, preferred_gender,
interests, guide_id, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.Status,
		&b.TravelerName, &b.TravelerEmail, &b.TravelerPhone,
		&b.Locality, &b.StartDate, &b.EndDate,
		&b.PartySize, &b.PartyType, &b.ServiceType,
		&b.PreferredNationality, &b.PreferredLanguages, &b.PreferredGender,
		&b.Interests, &b.GuideID, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepoImpl) GetByID(ctx context.Context, id int64) (*domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return b, err
}

// MarkMatched moves a booking from pending to matched exactly once per
// matching round. The status guard makes redispatch races visible to the
// caller instead of silently re-transitioning.
func (r *BookingRepoImpl) MarkMatched(ctx context.Context, id int64) (bool, error) {
	const q = `UPDATE bookings SET status='matched', updated_at=now()
		WHERE id=$1 AND status='pending'`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ct, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return false, err
	}
	return ct.RowsAffected() > 0, nil
}

var _ BookingRepo = (*BookingRepoImpl)(nil)
