// README: Zone store backed by PostgreSQL (surge_zones table).
package zone

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dropfee/internal/modules/geo"
	"dropfee/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Save(ctx context.Context, z Zone) error {
	ring, err := encodeRing(z.Polygon)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO surge_zones (
            id, name, category, multiplier, polygon,
            valid_from, valid_to, version, created_at, updated_at
        ) VALUES (
            $1, $2, $3, $4::numeric, $5::jsonb,
            $6, $7, $8, $9, $10
        )
        ON CONFLICT (id) DO UPDATE SET
            name = EXCLUDED.name,
            category = EXCLUDED.category,
            multiplier = EXCLUDED.multiplier,
            polygon = EXCLUDED.polygon,
            valid_from = EXCLUDED.valid_from,
            valid_to = EXCLUDED.valid_to,
            version = EXCLUDED.version,
            updated_at = EXCLUDED.updated_at`,
		string(z.ID),
		z.Name,
		string(z.Category),
		z.Multiplier.String(),
		ring,
		z.ValidFrom,
		z.ValidTo,
		z.Version,
		z.CreatedAt,
		z.UpdatedAt,
	)
	return err
}

func (s *Store) Delete(ctx context.Context, id types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM surge_zones WHERE id = $1`, string(id))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) LoadAll(ctx context.Context) ([]Zone, error) {
	rows, err := s.db.Query(ctx, `
        SELECT id, name, category, multiplier::text, polygon,
               valid_from, valid_to, version, created_at, updated_at
        FROM surge_zones`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var zones []Zone
	for rows.Next() {
		z, err := scanZone(rows)
		if err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func scanZone(row pgx.Row) (Zone, error) {
	var (
		z          Zone
		id         string
		category   string
		multiplier string
		ring       []byte
		validFrom  *time.Time
		validTo    *time.Time
	)
	if err := row.Scan(&id, &z.Name, &category, &multiplier, &ring,
		&validFrom, &validTo, &z.Version, &z.CreatedAt, &z.UpdatedAt); err != nil {
		return Zone{}, err
	}
	m, err := decimal.NewFromString(multiplier)
	if err != nil {
		return Zone{}, fmt.Errorf("zone %s multiplier: %w", id, err)
	}
	polygon, err := decodeRing(ring)
	if err != nil {
		return Zone{}, fmt.Errorf("zone %s polygon: %w", id, err)
	}
	z.ID = types.ID(id)
	z.Category = Category(category)
	z.Multiplier = m
	z.Polygon = polygon
	z.ValidFrom = validFrom
	z.ValidTo = validTo
	return z, nil
}

// Rings are stored as GeoJSON-ordered [[lng,lat],...].
func encodeRing(p geo.Polygon) ([]byte, error) {
	points := p.Points()
	pairs := make([][2]float64, len(points))
	for i, pt := range points {
		pairs[i] = [2]float64{pt.Lng, pt.Lat}
	}
	return json.Marshal(pairs)
}

func decodeRing(raw []byte) (geo.Polygon, error) {
	var pairs [][2]float64
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return geo.Polygon{}, err
	}
	points := make([]types.Point, len(pairs))
	for i, pair := range pairs {
		points[i] = types.Point{Lat: pair[1], Lng: pair[0]}
	}
	return geo.NewPolygon(points)
}
