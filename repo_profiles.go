package identity

import (
	"context"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Profiles interface {
	repository.Repository[*Profile]

	GetByAccountID(ctx context.Context, accountID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error)
	GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error)
}

type profiles struct {
	repository.Repository[*Profile]
	db *bun.DB
}

var (
	_ Profiles                        = (*profiles)(nil)
	_ repository.Repository[*Profile] = (*profiles)(nil)
)

func NewProfilesRepository(db *bun.DB) Profiles {
	repo := repository.NewRepository[*Profile](db, repository.ModelHandlers[*Profile]{
		NewRecord: func() *Profile { return &Profile{} },
		GetID: func(p *Profile) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Profile, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
		GetIdentifier: func() string {
			return "account_id"
		},
	})

	return &profiles{
		Repository: repo,
		db:         db,
	}
}

func (p *profiles) GetByAccountID(ctx context.Context, accountID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error) {
	return p.GetByAccountIDTx(ctx, p.db, accountID, criteria...)
}

func (p *profiles) GetByAccountIDTx(ctx context.Context, tx bun.IDB, accountID uuid.UUID, criteria ...repository.SelectCriteria) (*Profile, error) {
	record := &Profile{}
	q := tx.NewSelect().Model(record)

	for _, c := range criteria {
		q.Apply(c)
	}

	err := q.
		Where("?TableAlias.account_id = ?", accountID).
		Limit(1).
		Scan(ctx)

	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{
					"account_id": accountID.String(),
				})
		}
		return nil, err
	}

	return record, nil
}

func prepareProfileDefaults(record *Profile) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func (p *profiles) Create(ctx context.Context, record *Profile, criteria ...repository.InsertCriteria) (*Profile, error) {
	return p.CreateTx(ctx, p.db, record, criteria...)
}

func (p *profiles) CreateTx(ctx context.Context, tx bun.IDB, record *Profile, criteria ...repository.InsertCriteria) (*Profile, error) {
	prepareProfileDefaults(record)
	return p.Repository.CreateTx(ctx, tx, record, criteria...)
}
