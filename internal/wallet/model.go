package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wallet describes the custodial account that funds every disbursement.
type Wallet struct {
	Address      string
	Mint         string
	TokenAccount string
}

// Balance is the token holding of an owner, in whole tokens.
type Balance struct {
	Owner        string
	TokenAccount string
	Amount       decimal.Decimal
	AsOf         time.Time
}

// Supply is the total minted token supply, in whole tokens.
type Supply struct {
	Mint   string
	Amount decimal.Decimal
	AsOf   time.Time
}
