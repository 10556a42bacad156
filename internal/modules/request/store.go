// README: Request store backed by PostgreSQL; reads join the requester summary from users.
package request

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"bloodlink/internal/types"
)

type PgStore struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const selectRequest = `
	SELECT r.id, r.requester_id, u.name, u.email, u.blood_group,
	       r.blood_type, r.units, r.lat, r.lng, r.hospital_id, r.hospital_name,
	       r.urgency, r.patient_name, r.contact, r.notes,
	       r.status, r.status_version, r.created_at
	FROM blood_requests r
	LEFT JOIN users u ON u.id = r.requester_id`

func (s *PgStore) Create(ctx context.Context, r *BloodRequest) error {
	var hospitalID *string
	if id, ok := r.Hospital.ID(); ok {
		v := string(id)
		hospitalID = &v
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO blood_requests (
			id, requester_id, blood_type, units, lat, lng,
			hospital_id, hospital_name, urgency, patient_name, contact, notes,
			status, status_version, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15
		)`,
		string(r.ID), string(r.Requester.ID), r.BloodType.String(), r.Units, r.Location.Lat, r.Location.Lng,
		hospitalID, r.HospitalName, string(r.Urgency), r.PatientName, r.Contact, r.Notes,
		string(r.Status), r.StatusVersion, r.CreatedAt,
	)
	return err
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*BloodRequest, error) {
	rows, err := s.db.Query(ctx, selectRequest+` WHERE r.id = $1`, string(id))
	if err != nil {
		return nil, err
	}
	r, err := pgx.CollectOneRow(rows, scanRequest)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *PgStore) List(ctx context.Context, status Status) ([]BloodRequest, error) {
	rows, err := s.db.Query(ctx, selectRequest+`
		WHERE ($1::text = '' OR r.status = $1)
		ORDER BY r.created_at DESC`, string(status),
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanRequest)
}

func (s *PgStore) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE blood_requests
		SET status = $1,
		    status_version = status_version + 1
		WHERE id = $2 AND status = $3 AND status_version = $4`,
		string(to), string(id), string(from), version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanRequest(row pgx.CollectableRow) (BloodRequest, error) {
	var (
		r                       BloodRequest
		name, email, bloodGroup *string
		bloodType               string
		hospitalID              *string
	)
	err := row.Scan(
		&r.ID, &r.Requester.ID, &name, &email, &bloodGroup,
		&bloodType, &r.Units, &r.Location.Lat, &r.Location.Lng, &hospitalID, &r.HospitalName,
		&r.Urgency, &r.PatientName, &r.Contact, &r.Notes,
		&r.Status, &r.StatusVersion, &r.CreatedAt,
	)
	if err != nil {
		return r, err
	}
	if bt, perr := types.ParseBloodType(bloodType); perr == nil {
		r.BloodType = bt
	}
	r.Requester.Name = deref(name)
	r.Requester.Email = deref(email)
	r.Requester.BloodGroup = deref(bloodGroup)
	if hospitalID != nil {
		r.Hospital = HospitalByID(types.ID(*hospitalID))
	} else if r.HospitalName != DefaultHospitalName {
		r.Hospital = HospitalByName(r.HospitalName)
	}
	return r, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
