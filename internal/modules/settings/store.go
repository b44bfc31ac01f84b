// README: Settings store backed by PostgreSQL (delivery_settings table, one row per key).
package settings

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"dropfee/internal/types"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// Save upserts by restaurant_key; the empty key is the global record.
func (s *Store) Save(ctx context.Context, rec DeliverySettings) error {
	peak, err := json.Marshal(rec.PeakHours)
	if err != nil {
		return err
	}
	var restaurantID *string
	if rec.RestaurantID != nil {
		v := string(*rec.RestaurantID)
		restaurantID = &v
	}
	var freeAbove *string
	if rec.FreeDeliveryAbove != nil {
		v := rec.FreeDeliveryAbove.String()
		freeAbove = &v
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO delivery_settings (
            restaurant_key, restaurant_id, base_charge, per_km_charge, surge_multiplier,
            free_delivery_above, peak_hours, timezone, version, updated_at
        ) VALUES (
            $1, $2, $3::numeric, $4::numeric, $5::numeric,
            $6::numeric, $7::jsonb, $8, $9, $10
        )
        ON CONFLICT (restaurant_key) DO UPDATE SET
            base_charge = EXCLUDED.base_charge,
            per_km_charge = EXCLUDED.per_km_charge,
            surge_multiplier = EXCLUDED.surge_multiplier,
            free_delivery_above = EXCLUDED.free_delivery_above,
            peak_hours = EXCLUDED.peak_hours,
            timezone = EXCLUDED.timezone,
            version = EXCLUDED.version,
            updated_at = EXCLUDED.updated_at`,
		rec.key(),
		restaurantID,
		rec.BaseCharge.String(),
		rec.PerKmCharge.String(),
		rec.SurgeMultiplier.String(),
		freeAbove,
		peak,
		rec.Timezone,
		rec.Version,
		rec.UpdatedAt,
	)
	return err
}

func (s *Store) LoadAll(ctx context.Context) ([]DeliverySettings, error) {
	rows, err := s.db.Query(ctx, `
        SELECT restaurant_id, base_charge::text, per_km_charge::text, surge_multiplier::text,
               free_delivery_above::text, peak_hours, timezone, version, updated_at
        FROM delivery_settings`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DeliverySettings
	for rows.Next() {
		var (
			rec                DeliverySettings
			restaurantID       *string
			base, perKm, surge string
			freeAbove          *string
			peak               []byte
		)
		if err := rows.Scan(&restaurantID, &base, &perKm, &surge, &freeAbove,
			&peak, &rec.Timezone, &rec.Version, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if restaurantID != nil {
			id := types.ID(*restaurantID)
			rec.RestaurantID = &id
		}
		if rec.BaseCharge, err = decimal.NewFromString(base); err != nil {
			return nil, fmt.Errorf("base_charge: %w", err)
		}
		if rec.PerKmCharge, err = decimal.NewFromString(perKm); err != nil {
			return nil, fmt.Errorf("per_km_charge: %w", err)
		}
		if rec.SurgeMultiplier, err = decimal.NewFromString(surge); err != nil {
			return nil, fmt.Errorf("surge_multiplier: %w", err)
		}
		if freeAbove != nil {
			v, err := decimal.NewFromString(*freeAbove)
			if err != nil {
				return nil, fmt.Errorf("free_delivery_above: %w", err)
			}
			rec.FreeDeliveryAbove = &v
		}
		if len(peak) > 0 {
			if err := json.Unmarshal(peak, &rec.PeakHours); err != nil {
				return nil, fmt.Errorf("peak_hours: %w", err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
