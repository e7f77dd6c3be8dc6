package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"luxury_villas/internal/domain"
)

// adminID is the id the seeded admin carries in the static tier.
const adminID int64 = 1

type AccountService struct {
	sheet         domain.SheetClient
	coll          *Collections
	resolver      *Resolver[domain.Credential]
	admin         *domain.Credential // nil when no admin password is configured
	adminPassword string
	cost          int

	mu sync.Mutex
}

// NewAccountService builds the local accounts resolver: the cached collection,
// then the seeded admin. The sheet is consulted per operation, not resolved.
func NewAccountService(sheet domain.SheetClient, coll *Collections, adminEmail, adminPassword string, cost int) (*AccountService, error) {
	s := &AccountService{sheet: sheet, coll: coll, cost: cost, adminPassword: adminPassword}

	var static []domain.Credential
	if adminPassword != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), cost)
		if err != nil {
			return nil, fmt.Errorf("hash admin password: %w", err)
		}
		s.admin = &domain.Credential{
			Account: domain.Account{
				ID:        adminID,
				FirstName: "Site",
				LastName:  "Admin",
				Email:     normalizeEmail(adminEmail),
				Role:      domain.RoleAdmin,
			},
			PasswordHash: string(hash),
		}
		static = append(static, *s.admin)
	}

	s.resolver = NewResolver[domain.Credential](domain.KindAccounts, CredentialNormalizer{}, coll,
		NewCacheSource(coll, domain.KindAccounts),
		StaticFromValues(static),
	)
	return s, nil
}

func (s *AccountService) credentials(ctx context.Context) []domain.Credential {
	return s.resolver.Resolve(ctx).Collection
}

// Accounts resolves the local accounts without their password hashes.
func (s *AccountService) Accounts(ctx context.Context) Result[domain.Account] {
	res := s.resolver.Resolve(ctx)
	out := Result[domain.Account]{Collection: make([]domain.Account, len(res.Collection)), ServedBy: res.ServedBy, OK: res.OK}
	for i, c := range res.Collection {
		out.Collection[i] = c.Account
	}
	return out
}

func (s *AccountService) Get(ctx context.Context, id int64) (domain.Account, error) {
	for _, c := range s.credentials(ctx) {
		if c.ID == id {
			return c.Account, nil
		}
	}
	return domain.Account{}, fmt.Errorf("account %d: %w", id, domain.ErrNotFound)
}

// EnsureAdmin makes sure the configured admin is in the local collection with
// the admin role and the configured password.
func (s *AccountService) EnsureAdmin(ctx context.Context) error {
	if s.admin == nil {
		log.Warn().Msg("no admin password configured, admin login disabled")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.credentials(ctx)
	for i, c := range creds {
		if c.Email != s.admin.Email {
			continue
		}
		if c.Role == domain.RoleAdmin &&
			bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(s.adminPassword)) == nil {
			return nil
		}
		creds[i].Role = domain.RoleAdmin
		creds[i].PasswordHash = s.admin.PasswordHash
		return s.coll.Write(ctx, domain.KindAccounts, creds)
	}

	admin := *s.admin
	if taken(creds, admin.ID) {
		id, err := s.coll.NextID(ctx, domain.KindAccounts, credentialIDs(creds))
		if err != nil {
			return err
		}
		admin.ID = id
	} else {
		s.coll.Observe(ctx, domain.KindAccounts, admin.ID)
	}
	log.Info().Str("email", admin.Email).Int64("id", admin.ID).Msg("seeding admin account")
	return s.coll.Write(ctx, domain.KindAccounts, append(creds, admin))
}

// Register creates a guest account. A duplicate reported by the sheet is
// final; only an unreachable sheet falls back to the local collection.
func (s *AccountService) Register(ctx context.Context, reg domain.Registration) (domain.Account, error) {
	reg.Email = normalizeEmail(reg.Email)
	if err := validateStruct(reg); err != nil {
		return domain.Account{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cost)
	if err != nil {
		return domain.Account{}, fmt.Errorf("hash password: %w", err)
	}

	if s.sheet != nil {
		acc, err := s.sheet.RegisterAccount(ctx, reg)
		switch {
		case err == nil:
			acc.Email = normalizeEmail(acc.Email)
			return s.mirror(ctx, acc, string(hash))
		case !errors.Is(err, domain.ErrSourceUnavailable):
			return domain.Account{}, err
		}
		log.Warn().Err(err).Msg("sheet unavailable, registering locally")
	}
	return s.registerLocal(ctx, reg, string(hash))
}

func (s *AccountService) registerLocal(ctx context.Context, reg domain.Registration, hash string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.credentials(ctx)
	if _, ok := findByEmail(creds, reg.Email); ok {
		return domain.Account{}, fmt.Errorf("%s: %w", reg.Email, domain.ErrDuplicateAccount)
	}
	id, err := s.coll.NextID(ctx, domain.KindAccounts, credentialIDs(creds))
	if err != nil {
		return domain.Account{}, err
	}
	c := domain.Credential{
		Account: domain.Account{
			ID:        id,
			FirstName: reg.FirstName,
			LastName:  reg.LastName,
			Email:     reg.Email,
			Phone:     reg.Phone,
			Role:      domain.RoleGuest,
		},
		PasswordHash: hash,
	}
	if err := s.coll.Write(ctx, domain.KindAccounts, append(creds, c)); err != nil {
		return domain.Account{}, err
	}
	return c.Account, nil
}

// Login tries the sheet, then the local credentials. The first tier that
// authenticates wins. The returned account always carries the local id.
func (s *AccountService) Login(ctx context.Context, email, password string) (domain.Account, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return domain.Account{}, domain.ErrInvalidCredentials
	}

	if s.sheet != nil {
		acc, err := s.sheet.Login(ctx, email, password)
		if err == nil {
			acc.Email = normalizeEmail(acc.Email)
			hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
			if err != nil {
				return domain.Account{}, fmt.Errorf("hash password: %w", err)
			}
			return s.mirror(ctx, acc, string(hash))
		}
		log.Debug().Err(err).Str("email", email).Msg("sheet login failed, trying local credentials")
	}

	c, ok := findByEmail(s.credentials(ctx), email)
	if !ok || c.PasswordHash == "" {
		return domain.Account{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)); err != nil {
		return domain.Account{}, domain.ErrInvalidCredentials
	}
	return c.Account, nil
}

// mirror copies an account the sheet answered for into the local collection so
// it can still log in while the sheet is down. The sheet's id is kept only
// when no local account holds it; either way it is recorded as RemoteID and
// the local account is returned.
func (s *AccountService) mirror(ctx context.Context, acc domain.Account, hash string) (domain.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	creds := s.credentials(ctx)
	for i, c := range creds {
		if c.Email == acc.Email {
			creds[i].PasswordHash = hash
			if acc.ID > 0 {
				creds[i].RemoteID = acc.ID
			}
			if creds[i].Role != domain.RoleAdmin && acc.Role != "" {
				creds[i].Role = acc.Role
			}
			s.write(ctx, creds)
			return creds[i].Account, nil
		}
	}

	c := domain.Credential{Account: acc, PasswordHash: hash}
	if acc.ID > 0 {
		c.RemoteID = acc.ID
	}
	if c.Role == "" {
		c.Role = domain.RoleGuest
	}
	if c.ID <= 0 || taken(creds, c.ID) {
		id, err := s.coll.NextID(ctx, domain.KindAccounts, credentialIDs(creds))
		if err != nil {
			return domain.Account{}, fmt.Errorf("mirror account %s: %w", acc.Email, err)
		}
		c.ID = id
	} else {
		s.coll.Observe(ctx, domain.KindAccounts, c.ID)
	}
	s.write(ctx, append(creds, c))
	return c.Account, nil
}

// sheetAccountID is the id the sheet knows a local account by; false when the
// account only exists locally.
func (s *AccountService) sheetAccountID(ctx context.Context, localID int64) (int64, bool) {
	for _, c := range s.credentials(ctx) {
		if c.ID == localID {
			return c.RemoteID, c.RemoteID > 0
		}
	}
	return 0, false
}

func (s *AccountService) write(ctx context.Context, creds []domain.Credential) {
	if err := s.coll.Write(ctx, domain.KindAccounts, creds); err != nil {
		log.Warn().Err(err).Msg("mirror account failed")
	}
}

func findByEmail(creds []domain.Credential, email string) (domain.Credential, bool) {
	for _, c := range creds {
		if c.Email == email {
			return c, true
		}
	}
	return domain.Credential{}, false
}

func taken(creds []domain.Credential, id int64) bool {
	for _, c := range creds {
		if c.ID == id {
			return true
		}
	}
	return false
}

func credentialIDs(creds []domain.Credential) []int64 {
	ids := make([]int64, len(creds))
	for i, c := range creds {
		ids[i] = c.ID
	}
	return ids
}
