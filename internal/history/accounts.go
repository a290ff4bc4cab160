package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/atlasguess/atlasguess/internal/model"
)

// Account is the identity resolved from a client's login secret
type Account struct {
	ID       model.AccountID `json:"accountId"`
	Username string          `json:"username"`
	Rating   int             `json:"rating"`
}

// Verifier resolves a login secret to an account. Unknown secrets return
// model.ErrNotVerified.
type Verifier interface {
	VerifyAccount(ctx context.Context, secret string) (*Account, error)
}

// secretKey maps a login secret to its account record
func secretKey(secret string) string {
	return fmt.Sprintf("%s:secret:%s", keyPrefix, secret)
}

// VerifyAccount looks the secret up in the account store and attaches the
// stored rating, falling back to the initial rating for new accounts
func (s *RedisStore) VerifyAccount(ctx context.Context, secret string) (*Account, error) {
	data, err := s.client.Get(ctx, secretKey(secret)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, model.ErrNotVerified
	}
	if err != nil {
		return nil, fmt.Errorf("resolving secret: %w", err)
	}

	var acct Account
	if err := json.Unmarshal(data, &acct); err != nil {
		return nil, fmt.Errorf("unmarshalling account: %w", err)
	}

	if rating, err := s.GetRating(ctx, acct.ID); err == nil && rating > 0 {
		acct.Rating = rating
	}
	return &acct, nil
}

// GuestOnlyVerifier rejects every secret; all players stay guests
type GuestOnlyVerifier struct{}

func (GuestOnlyVerifier) VerifyAccount(context.Context, string) (*Account, error) {
	return nil, model.ErrNotVerified
}
