package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mridulmalani2/wandernest/internal/domain"
)

type GuideRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Guide, error)
	ListEligibleByLocality(ctx context.Context, locality string) ([]domain.Guide, error)
}

type GuideRepoImpl struct{ pool *pgxpool.Pool }

func NewGuideRepo(pool *pgxpool.Pool) *GuideRepoImpl { return &GuideRepoImpl{pool: pool} }

const guideCols = `id, status, name, email, phone, locality, institute,
nationality, languages, gender,
tours_completed, avg_rating, no_show_count, tier,
interests, created_at, updated_at`

func scanGuide(row pgx.Row) (*domain.Guide, error) {
	var g domain.Guide
	err := row.Scan(
		&g.ID, &g.Status, &g.Name, &g.Email, &g.Phone, &g.Locality, &g.Institute,
		&g.Nationality, &g.Languages, &g.Gender,
		&g.ToursCompleted, &g.AvgRating, &g.NoShowCount, &g.Tier,
		&g.Interests, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *GuideRepoImpl) GetByID(ctx context.Context, id int64) (*domain.Guide, error) {
	const q = `SELECT ` + guideCols + ` FROM guides WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	g, err := scanGuide(r.pool.QueryRow(ctx, q, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := r.attachAvailability(ctx, []*domain.Guide{g}); err != nil {
		return nil, err
	}
	return g, nil
}

func (r *GuideRepoImpl) ListEligibleByLocality(ctx context.Context, locality string) ([]domain.Guide, error) {
	const q = `SELECT ` + guideCols + ` FROM guides
		WHERE locality=$1 AND status='approved'
		ORDER BY id`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	rows, err := r.pool.Query(ctx, q, locality)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gs []domain.Guide
	for rows.Next() {
		g, err := scanGuide(rows)
		if err != nil {
			return nil, err
		}
		gs = append(gs, *g)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	refs := make([]*domain.Guide, len(gs))
	for i := range gs {
		refs[i] = &gs[i]
	}
	if err := r.attachAvailability(ctx, refs); err != nil {
		return nil, err
	}
	return gs, nil
}

// attachAvailability loads the weekly slots for a batch of guides in one
// query.
func (r *GuideRepoImpl) attachAvailability(ctx context.Context, guides []*domain.Guide) error {
	if len(guides) == 0 {
		return nil
	}
	ids := make([]int64, len(guides))
	byID := make(map[int64]*domain.Guide, len(guides))
	for i, g := range guides {
		ids[i] = g.ID
		byID[g.ID] = g
	}

	const q = `SELECT guide_id, weekday, start_time, end_time
		FROM guide_availability WHERE guide_id = ANY($1) ORDER BY guide_id, weekday`
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			guideID int64
			weekday int
			slot    domain.AvailabilitySlot
		)
		if err := rows.Scan(&guideID, &weekday, &slot.StartTime, &slot.EndTime); err != nil {
			return err
		}
		slot.Weekday = time.Weekday(weekday)
		if g, ok := byID[guideID]; ok {
			g.Availability = append(g.Availability, slot)
		}
	}
	return rows.Err()
}

var _ GuideRepo = (*GuideRepoImpl)(nil)
