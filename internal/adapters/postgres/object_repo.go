package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/exsitu/internal/core/domain"
)

const objectColumns = `
	id, title, img_url, inventory_number, longitude, latitude,
	place_name, city_en, country_en,
	institution_name, institution_place, institution_city_en, institution_country_en,
	institution_longitude, institution_latitude, source_link, object_links`

// boundsFilter matches the backend's filter semantics: objects whose origin
// lies inside the box. Rows without an origin never match.
const boundsFilter = `
	latitude BETWEEN $1 AND $2 AND longitude BETWEEN $3 AND $4`

// ObjectRepo implements ports.ObjectRepository with pgx. It is the local
// mirror of the ex-situ backend.
type ObjectRepo struct {
	db *DB
}

// NewObjectRepo creates a new ObjectRepo.
func NewObjectRepo(db *DB) *ObjectRepo {
	return &ObjectRepo{db: db}
}

// FetchPage returns one page of mirrored objects inside the query bounds,
// ordered by id.
func (r *ObjectRepo) FetchPage(ctx context.Context, q domain.ObjectQuery) (*domain.ObjectPage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = 50
	}
	b := q.Bounds

	var total int
	if err := r.db.Pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM museum_objects WHERE`+boundsFilter,
		b.South, b.North, b.West, b.East,
	).Scan(&total); err != nil {
		return nil, fmt.Errorf("count objects: %w", err)
	}

	rows, err := r.db.Pool.Query(ctx,
		`SELECT`+objectColumns+` FROM museum_objects WHERE`+boundsFilter+`
		ORDER BY id
		LIMIT $5 OFFSET $6`,
		b.South, b.North, b.West, b.East, q.PageSize, (q.Page-1)*q.PageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("query objects: %w", err)
	}
	defer rows.Close()

	objects := make([]domain.MuseumObject, 0, q.PageSize)
	for rows.Next() {
		o, err := scanObject(rows)
		if err != nil {
			return nil, err
		}
		objects = append(objects, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &domain.ObjectPage{
		Objects:   objects,
		Page:      q.Page,
		PageSize:  q.PageSize,
		PageCount: (total + q.PageSize - 1) / q.PageSize,
		Total:     total,
	}, nil
}

// FetchStats returns object counts grouped by origin country, origin city
// and institution.
func (r *ObjectRepo) FetchStats(ctx context.Context) ([]domain.StatRow, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT country_en, city_en, institution_name, total_objects
		FROM museum_object_stats
		ORDER BY total_objects::INT DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query stats: %w", err)
	}
	defer rows.Close()

	var stats []domain.StatRow
	for rows.Next() {
		var s domain.StatRow
		if err := rows.Scan(&s.Country, &s.City, &s.InstitutionName, &s.TotalObjects); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// UpsertBatch inserts or refreshes many objects using pgx.Batch.
func (r *ObjectRepo) UpsertBatch(ctx context.Context, objects []domain.MuseumObject) error {
	batch := &pgx.Batch{}
	for _, o := range objects {
		links, err := json.Marshal(o.Links)
		if err != nil {
			return fmt.Errorf("encode links of %s: %w", o.ID, err)
		}
		if o.Links == nil {
			links = []byte("[]")
		}
		batch.Queue(`
			INSERT INTO museum_objects (`+objectColumns+`, mirrored_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now())
			ON CONFLICT (id) DO UPDATE
			SET title = EXCLUDED.title, img_url = EXCLUDED.img_url,
			    inventory_number = EXCLUDED.inventory_number,
			    longitude = EXCLUDED.longitude, latitude = EXCLUDED.latitude,
			    place_name = EXCLUDED.place_name, city_en = EXCLUDED.city_en, country_en = EXCLUDED.country_en,
			    institution_name = EXCLUDED.institution_name,
			    institution_place = EXCLUDED.institution_place,
			    institution_city_en = EXCLUDED.institution_city_en,
			    institution_country_en = EXCLUDED.institution_country_en,
			    institution_longitude = EXCLUDED.institution_longitude,
			    institution_latitude = EXCLUDED.institution_latitude,
			    source_link = EXCLUDED.source_link, object_links = EXCLUDED.object_links,
			    mirrored_at = now()
		`, o.ID, o.Title, o.ImageURL, o.InventoryNumber, o.Longitude, o.Latitude,
			o.PlaceName, o.City, o.Country,
			o.Institution.Name, o.Institution.Place, o.Institution.City, o.Institution.Country,
			o.Institution.Longitude, o.Institution.Latitude, o.SourceLink, links)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range objects {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Count returns the number of mirrored objects.
func (r *ObjectRepo) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM museum_objects`).Scan(&n)
	return n, err
}

func scanObject(row pgx.Row) (domain.MuseumObject, error) {
	var (
		o     domain.MuseumObject
		links []byte
	)
	if err := row.Scan(
		&o.ID, &o.Title, &o.ImageURL, &o.InventoryNumber, &o.Longitude, &o.Latitude,
		&o.PlaceName, &o.City, &o.Country,
		&o.Institution.Name, &o.Institution.Place, &o.Institution.City, &o.Institution.Country,
		&o.Institution.Longitude, &o.Institution.Latitude, &o.SourceLink, &links,
	); err != nil {
		return o, fmt.Errorf("scan object: %w", err)
	}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &o.Links); err != nil {
			return o, fmt.Errorf("decode links of %s: %w", o.ID, err)
		}
	}
	return o, nil
}
