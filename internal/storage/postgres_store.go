package storage

import (
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/Mrigank923/Voy/internal/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	// quick ping
	if err := db.Ping(); err != nil {
		return nil, err
	}
	return &PostgresStore{db: db}, nil
}

func (p *PostgresStore) SaveRequest(r models.RideRequest) error {
	_, err := p.db.Exec(`INSERT INTO ride_requests(id, rider_id, pickup_lat, pickup_lon, vehicle_class, created_at) VALUES($1,$2,$3,$4,$5,$6) ON CONFLICT (id) DO NOTHING`,
		r.ID, r.RiderID, r.Pickup.Lat, r.Pickup.Lon, string(r.Class), r.CreatedAt)
	return err
}

func (p *PostgresStore) RecordTransition(ev models.TransitionEvent) error {
	_, err := p.db.Exec(`INSERT INTO ride_transitions(request_id, from_state, to_state, occurred_at) VALUES($1,$2,$3,$4)`,
		ev.RequestID, string(ev.From), string(ev.To), ev.At)
	return err
}

func (p *PostgresStore) Close() error { return p.db.Close() }
