package identity_test

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	identity "github.com/goliatone/go-identity"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newRegisterFixtures() (*MockRepositoryManager, *MockAccounts, *MockProfiles) {
	accounts := new(MockAccounts)
	profiles := new(MockProfiles)

	repo := new(MockRepositoryManager)
	repo.On("Accounts").Return(accounts)
	repo.On("Profiles").Return(profiles)
	repo.On("RunInTx", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	return repo, accounts, profiles
}

func TestRegisterAccountHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("provisions account and profile atomically", func(t *testing.T) {
		repo, accounts, profiles := newRegisterFixtures()

		storedID := uuid.New()
		stored := &identity.Account{
			ID:        storedID,
			Email:     "ada@example.com",
			FirstName: "Ada",
			LastName:  "Lovelace",
			IsActive:  true,
		}

		accounts.On("GetByEmailTx", mock.Anything, mock.Anything, "ada@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		accounts.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(acc *identity.Account) bool {
			return acc.Email == "ada@example.com" &&
				acc.FirstName == "Ada" &&
				acc.IsActive &&
				!acc.IsStaff &&
				!acc.IsSuperuser &&
				identity.ComparePasswordAndHash("password123", acc.PasswordHash) == nil
		})).Return(stored, nil).Once()

		profiles.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p *identity.Profile) bool {
			return p.AccountID == storedID && p.Bio == ""
		})).Return(&identity.Profile{ID: uuid.New(), AccountID: storedID}, nil).Once()

		sink := &capturingSink{}

		var resp *identity.RegisterAccountResponse
		msg := identity.RegisterAccountMessage{
			Email:     "Ada@Example.COM",
			Password:  "password123",
			FirstName: "Ada",
			LastName:  "Lovelace",
			OnResponse: func(r *identity.RegisterAccountResponse) {
				resp = r
			},
		}

		handler := identity.NewRegisterAccountHandler(repo).WithActivitySink(sink)

		err := handler.Execute(ctx, msg)
		require.NoError(t, err)

		require.NotNil(t, resp)
		assert.True(t, resp.Success)
		assert.Equal(t, storedID, resp.Account.ID)
		assert.Equal(t, storedID, resp.Profile.AccountID)

		events := sink.Events()
		require.Len(t, events, 1)
		assert.Equal(t, identity.ActivityEventAccountRegistered, events[0].EventType)
		assert.Equal(t, storedID.String(), events[0].AccountID)
		assert.Equal(t, "ada@example.com", events[0].Metadata["email"])

		accounts.AssertExpectations(t)
		profiles.AssertExpectations(t)
	})

	t.Run("seeds the profile bio from the description", func(t *testing.T) {
		repo, accounts, profiles := newRegisterFixtures()

		storedID := uuid.New()

		accounts.On("GetByEmailTx", mock.Anything, mock.Anything, "ada@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		// the description moves to the profile and never persists on the account
		accounts.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(acc *identity.Account) bool {
			return acc.Description == ""
		})).Return(&identity.Account{ID: storedID, Email: "ada@example.com"}, nil).Once()

		profiles.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(p *identity.Profile) bool {
			return p.Bio == "Analytical engines" && p.AccountID == storedID
		})).Return(&identity.Profile{AccountID: storedID, Bio: "Analytical engines"}, nil).Once()

		handler := identity.NewRegisterAccountHandler(repo)

		err := handler.Execute(ctx, identity.RegisterAccountMessage{
			Email:       "ada@example.com",
			Password:    "password123",
			FirstName:   "Ada",
			LastName:    "Lovelace",
			Description: "Analytical engines",
		})
		require.NoError(t, err)

		accounts.AssertExpectations(t)
		profiles.AssertExpectations(t)
	})

	t.Run("rejects duplicate email", func(t *testing.T) {
		repo, accounts, _ := newRegisterFixtures()

		existing := &identity.Account{ID: uuid.New(), Email: "ada@example.com"}
		accounts.On("GetByEmailTx", mock.Anything, mock.Anything, "ada@example.com").
			Return(existing, nil).Once()

		handler := identity.NewRegisterAccountHandler(repo)

		err := handler.Execute(ctx, identity.RegisterAccountMessage{
			Email:     "ada@example.com",
			Password:  "password123",
			FirstName: "Ada",
			LastName:  "Lovelace",
		})

		require.Error(t, err)
		assert.True(t, identity.IsDuplicatedEmail(err))

		var richErr *goerrors.Error
		require.True(t, goerrors.As(err, &richErr))
		assert.Equal(t, "email", richErr.Metadata["field"])

		accounts.AssertNotCalled(t, "CreateTx")
	})

	t.Run("admin constructor forces both flags", func(t *testing.T) {
		repo, accounts, profiles := newRegisterFixtures()

		storedID := uuid.New()

		accounts.On("GetByEmailTx", mock.Anything, mock.Anything, "root@example.com").
			Return(nil, repository.NewRecordNotFound()).Once()

		accounts.On("CreateTx", mock.Anything, mock.Anything, mock.MatchedBy(func(acc *identity.Account) bool {
			return acc.IsStaff && acc.IsSuperuser
		})).Return(&identity.Account{ID: storedID, Email: "root@example.com"}, nil).Once()

		profiles.On("CreateTx", mock.Anything, mock.Anything, mock.Anything).
			Return(&identity.Profile{AccountID: storedID}, nil).Once()

		handler := identity.NewRegisterAccountHandler(repo)

		msg := identity.NewAdminAccountMessage("root@example.com", "password123", "Root", "Admin")
		err := handler.Execute(ctx, msg)
		require.NoError(t, err)

		accounts.AssertExpectations(t)
	})

	t.Run("validation failures", func(t *testing.T) {
		falsy := false

		tests := []struct {
			name  string
			msg   identity.RegisterAccountMessage
			field string
		}{
			{
				name: "Missing email",
				msg: identity.RegisterAccountMessage{
					Password:  "password123",
					FirstName: "Ada",
					LastName:  "Lovelace",
				},
				field: "email",
			},
			{
				name: "Missing first name",
				msg: identity.RegisterAccountMessage{
					Email:    "ada@example.com",
					Password: "password123",
					LastName: "Lovelace",
				},
				field: "first_name",
			},
			{
				name: "Missing last name",
				msg: identity.RegisterAccountMessage{
					Email:     "ada@example.com",
					Password:  "password123",
					FirstName: "Ada",
				},
				field: "last_name",
			},
			{
				name: "Admin with explicit is_staff=false",
				msg: identity.RegisterAccountMessage{
					Email:     "ada@example.com",
					Password:  "password123",
					FirstName: "Ada",
					LastName:  "Lovelace",
					Admin:     true,
					IsStaff:   &falsy,
				},
				field: "is_staff",
			},
			{
				name: "Admin with explicit is_superuser=false",
				msg: identity.RegisterAccountMessage{
					Email:       "ada@example.com",
					Password:    "password123",
					FirstName:   "Ada",
					LastName:    "Lovelace",
					Admin:       true,
					IsSuperuser: &falsy,
				},
				field: "is_superuser",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				repo, accounts, _ := newRegisterFixtures()

				handler := identity.NewRegisterAccountHandler(repo)

				err := handler.Execute(ctx, tt.msg)
				require.Error(t, err)

				var richErr *goerrors.Error
				require.True(t, goerrors.As(err, &richErr))
				assert.Equal(t, goerrors.CategoryValidation, richErr.Category)
				assert.Equal(t, tt.field, richErr.Metadata["field"])

				accounts.AssertNotCalled(t, "CreateTx")
			})
		}
	})

	t.Run("cancelled context", func(t *testing.T) {
		repo, _, _ := newRegisterFixtures()

		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		handler := identity.NewRegisterAccountHandler(repo)

		err := handler.Execute(cancelled, identity.RegisterAccountMessage{
			Email:     "ada@example.com",
			Password:  "password123",
			FirstName: "Ada",
			LastName:  "Lovelace",
		})
		assert.Error(t, err)
	})
}
