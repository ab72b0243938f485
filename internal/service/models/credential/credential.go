package credential

import (
	"time"

	"github.com/corray333/coffeeshop/internal/service/models/account"
)

// Pair is issued on login, registration and refresh.
type Pair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// Claims is the identity carried by an access credential.
type Claims struct {
	AccountID string
	Role      account.Role
	ExpiresAt time.Time
}
