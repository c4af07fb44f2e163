package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapRevertReason(t *testing.T) {
	cases := []struct {
		msg  string
		want string
	}{
		{"execution reverted: Already minted", ReasonAlreadyMinted},
		{"execution reverted: member already has an identity NFT", ReasonAlreadyMinted},
		{"execution reverted: Minting not allowed", ReasonMintingNotAllowed},
		{"execution reverted: Tier not met", ReasonTierNotMet},
		{"execution reverted: Invalid tier", ReasonInvalidTier},
		{"execution reverted: Insufficient XP", ReasonInsufficientXP},
		{"execution reverted: Not registered", ReasonNotRegistered},
		{"execution reverted: Not eligible", ReasonNotEligible},
		{"execution reverted: AccessControl: account 0xabc is missing role 0xdef", ReasonUnauthorized},
		{"execution reverted: caller is not the operator", ReasonUnauthorized},
		{"some rpc transport noise", ReasonLedgerRejected},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapRevertReason(errors.New(tc.msg)), tc.msg)
	}
	assert.Equal(t, ReasonLedgerRejected, mapRevertReason(nil))
}
