package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/rachid-J/Asssurance-sub001/internal/apperr"
	"github.com/rachid-J/Asssurance-sub001/internal/models"
)

// ReferenceRepository answers the collaborator lookups the lifecycle engine
// needs at issuance time: does the client exist, and which vehicle (with
// its usage) is being covered. Client and vehicle CRUD belongs to the
// agency back office, not to this service.
type ReferenceRepository struct {
	db *sqlx.DB
}

func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

func (r *ReferenceRepository) ClientExists(ctx context.Context, id uuid.UUID) (bool, error) {
	if r.db == nil {
		return false, errNoConn
	}
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM client WHERE id = $1)`

	if err := r.db.GetContext(ctx, &exists, query, id); err != nil {
		return false, fmt.Errorf("failed to check client existence: %w", err)
	}
	return exists, nil
}

func (r *ReferenceRepository) GetVehicle(ctx context.Context, id uuid.UUID) (*models.Vehicle, error) {
	if r.db == nil {
		return nil, errNoConn
	}
	var vehicle models.Vehicle
	query := `SELECT * FROM vehicle WHERE id = $1`

	err := r.db.GetContext(ctx, &vehicle, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: vehicle %s", apperr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vehicle: %w", err)
	}
	return &vehicle, nil
}
