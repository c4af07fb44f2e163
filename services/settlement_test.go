package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"reward-settlement-system/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLedger is an in-memory LedgerGateway. `landed` controls whether a sent
// transaction actually takes effect on the ledger, independently of what
// AwaitConfirmation reports — that separation is exactly the timeout
// ambiguity the coordinator must handle.
type mockLedger struct {
	mu      sync.Mutex
	records map[string]MemberLedgerRecord

	rejectSend    error              // returned by Send* when set
	confirmResult ConfirmationStatus // what AwaitConfirmation reports
	landed        bool               // whether the effect is applied before AwaitConfirmation returns
	blockAwait    chan struct{}      // when set, AwaitConfirmation blocks until closed
	onAwait       func()             // hook run inside AwaitConfirmation

	xpSends   []mockSend
	mintSends []mockSend
	txSeq     int
}

type mockSend struct {
	address string
	amount  int64
	uri     string
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		records:       make(map[string]MemberLedgerRecord),
		confirmResult: TxConfirmed,
		landed:        true,
	}
}

func (m *mockLedger) ReadMember(ctx context.Context, address string) (MemberLedgerRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.records[address], nil
}

func (m *mockLedger) SendXPIncrement(ctx context.Context, address string, amount int64) (TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejectSend != nil {
		return TxHandle{}, m.rejectSend
	}
	m.xpSends = append(m.xpSends, mockSend{address: address, amount: amount})
	m.txSeq++
	return TxHandle{Hash: fmt.Sprintf("0xtx%d", m.txSeq)}, nil
}

func (m *mockLedger) SendMint(ctx context.Context, address string, metadataURI string) (TxHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rejectSend != nil {
		return TxHandle{}, m.rejectSend
	}
	m.mintSends = append(m.mintSends, mockSend{address: address, uri: metadataURI})
	m.txSeq++
	return TxHandle{Hash: fmt.Sprintf("0xtx%d", m.txSeq)}, nil
}

func (m *mockLedger) AwaitConfirmation(ctx context.Context, tx TxHandle, timeout time.Duration) (ConfirmationStatus, error) {
	if m.blockAwait != nil {
		<-m.blockAwait
	}
	m.mu.Lock()
	if m.landed {
		if n := len(m.xpSends); n > 0 {
			last := m.xpSends[n-1]
			record := m.records[last.address]
			record.XP += last.amount
			m.records[last.address] = record
		}
		if n := len(m.mintSends); n > 0 {
			last := m.mintSends[n-1]
			record := m.records[last.address]
			record.HasNFT = true
			m.records[last.address] = record
		}
	}
	result := m.confirmResult
	m.mu.Unlock()

	if m.onAwait != nil {
		m.onAwait()
	}
	return result, nil
}

func (m *mockLedger) xpSendCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.xpSends)
}

func newTestSettlement(t *testing.T) (*SettlementService, *SubmissionStore, *mockLedger) {
	t.Helper()
	store := newTestStore(t)
	ledger := newMockLedger()
	return NewSettlementService(store, ledger, time.Second), store, ledger
}

func TestApproveHappyPath(t *testing.T) {
	settlement, store, ledger := newTestSettlement(t)
	ledger.records[testMemberAddr] = MemberLedgerRecord{XP: 10}

	sub := seedSubmission(t, store, testMemberAddr) // 50 XP

	updated, err := settlement.Approve(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, updated.Status)
	assert.NotEmpty(t, updated.TxHash)

	record, err := ledger.ReadMember(context.Background(), testMemberAddr)
	require.NoError(t, err)
	assert.Equal(t, int64(60), record.XP, "xp increased by exactly the snapshot reward")
	assert.Equal(t, 1, ledger.xpSendCount())
}

func TestApproveInvalidAddressNoTransaction(t *testing.T) {
	settlement, store, ledger := newTestSettlement(t)

	sub := &models.Submission{
		MemberAddress: "not-an-address",
		TaskID:        "join-discord",
		TaskTitle:     "Join Discord",
		Proof:         "screenshot",
		XPReward:      50,
	}
	require.NoError(t, store.Insert(sub))

	_, err := settlement.Approve(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, ledger.xpSendCount(), "no transaction may be attempted")

	fetched, err := store.Get(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, fetched.Status)
}

func TestApproveNotFoundAndAlreadyReviewed(t *testing.T) {
	settlement, store, _ := newTestSettlement(t)

	_, err := settlement.Approve(context.Background(), "missing-id")
	assert.ErrorIs(t, err, ErrNotFound)

	sub := seedSubmission(t, store, testMemberAddr)
	require.NoError(t, store.MarkRejected(sub.ID))
	_, err = settlement.Approve(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestApproveSingleFlight(t *testing.T) {
	settlement, store, ledger := newTestSettlement(t)
	ledger.records[testMemberAddr] = MemberLedgerRecord{}
	ledger.blockAwait = make(chan struct{})

	first := seedSubmission(t, store, testMemberAddr)
	second := seedSubmission(t, store, "0x00000000000000000000000000000000000000aa")

	done := make(chan error, 1)
	go func() {
		_, err := settlement.Approve(context.Background(), first.ID)
		done <- err
	}()

	// Wait until the first approval has sent its transaction and is parked
	// waiting for confirmation.
	require.Eventually(t, func() bool { return ledger.xpSendCount() == 1 },
		time.Second, 5*time.Millisecond)

	// A second approval on a DIFFERENT submission must fail immediately,
	// not queue.
	_, err := settlement.Approve(context.Background(), second.ID)
	assert.ErrorIs(t, err, ErrConcurrencyConflict)

	close(ledger.blockAwait)
	require.NoError(t, <-done)

	// With the permit released, the second submission settles normally.
	ledger.blockAwait = nil
	_, err = settlement.Approve(context.Background(), second.ID)
	require.NoError(t, err)
}

func TestApproveLedgerRejectedLeavesPending(t *testing.T) {
	settlement, store, ledger := newTestSettlement(t)
	ledger.rejectSend = &LedgerRejectedError{Reason: ReasonUnauthorized}

	sub := seedSubmission(t, store, testMemberAddr)

	_, err := settlement.Approve(context.Background(), sub.ID)
	var rejected *LedgerRejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, ReasonUnauthorized, rejected.Reason)

	fetched, err := store.Get(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, fetched.Status)
}

func TestApproveTimeoutUnresolvedLeavesPending(t *testing.T) {
	settlement, store, ledger := newTestSettlement(t)
	ledger.records[testMemberAddr] = MemberLedgerRecord{XP: 10}
	ledger.confirmResult = TxTimedOut
	ledger.landed = false // credit never arrives; outcome stays unknown

	sub := seedSubmission(t, store, testMemberAddr)

	_, err := settlement.Approve(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrLedgerTimeout)

	fetched, err := store.Get(sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, fetched.Status)
	assert.Equal(t, 1, ledger.xpSendCount(), "never resubmitted blindly")
}

func TestApproveTimeoutResolvedByLedgerReRead(t *testing.T) {
	settlement, store, ledger := newTestSettlement(t)
	ledger.records[testMemberAddr] = MemberLedgerRecord{XP: 10}
	ledger.confirmResult = TxTimedOut
	ledger.landed = true // tx landed after the client gave up waiting

	sub := seedSubmission(t, store, testMemberAddr)

	updated, err := settlement.Approve(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusApproved, updated.Status)

	record, _ := ledger.ReadMember(context.Background(), testMemberAddr)
	assert.Equal(t, int64(60), record.XP)
}

func TestApproveStoreWriteFailureSurfaced(t *testing.T) {
	settlement, store, ledger := newTestSettlement(t)
	ledger.records[testMemberAddr] = MemberLedgerRecord{XP: 10}

	sub := seedSubmission(t, store, testMemberAddr)

	// Kill the table between ledger confirmation and the status write.
	ledger.onAwait = func() {
		require.NoError(t, store.DB.Migrator().DropTable(&models.Submission{}))
	}

	_, err := settlement.Approve(context.Background(), sub.ID)
	var failure *StoreWriteFailureError
	require.ErrorAs(t, err, &failure)
	assert.Equal(t, sub.ID, failure.SubmissionID)
	assert.NotEmpty(t, failure.TxHash)

	// The credit itself went through — only bookkeeping lags.
	record, _ := ledger.ReadMember(context.Background(), testMemberAddr)
	assert.Equal(t, int64(60), record.XP)
}

func TestRejectPath(t *testing.T) {
	settlement, store, ledger := newTestSettlement(t)
	sub := seedSubmission(t, store, testMemberAddr)

	updated, err := settlement.Reject(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusRejected, updated.Status)
	assert.Zero(t, ledger.xpSendCount(), "reject never touches the ledger")

	_, err = settlement.Reject(context.Background(), sub.ID)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
}

func TestGrantXP(t *testing.T) {
	settlement, _, ledger := newTestSettlement(t)
	ledger.records[testMemberAddr] = MemberLedgerRecord{XP: 5}

	_, err := settlement.GrantXP(context.Background(), "nope", 100)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = settlement.GrantXP(context.Background(), testMemberAddr, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)

	handle, err := settlement.GrantXP(context.Background(), testMemberAddr, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, handle.Hash)

	record, _ := ledger.ReadMember(context.Background(), testMemberAddr)
	assert.Equal(t, int64(105), record.XP)
}

func TestMintGuardShortCircuits(t *testing.T) {
	settlement, _, ledger := newTestSettlement(t)

	// Insufficient XP: no transaction constructed.
	ledger.records[testMemberAddr] = MemberLedgerRecord{XP: 80}
	_, decision, err := settlement.Mint(context.Background(), testMemberAddr)
	require.NoError(t, err)
	assert.False(t, decision.Eligible)
	assert.Equal(t, MintRefusalInsufficientXP, decision.Reason)
	assert.Empty(t, ledger.mintSends)

	// Fresh read shows the NFT landed via another flow: double mint prevented.
	ledger.records[testMemberAddr] = MemberLedgerRecord{XP: 150, HasNFT: true}
	_, decision, err = settlement.Mint(context.Background(), testMemberAddr)
	require.NoError(t, err)
	assert.False(t, decision.Eligible)
	assert.Equal(t, MintRefusalAlreadyMinted, decision.Reason)
	assert.Empty(t, ledger.mintSends)
}

func TestMintEligibleSendsTierURI(t *testing.T) {
	settlement, _, ledger := newTestSettlement(t)
	ledger.records[testMemberAddr] = MemberLedgerRecord{XP: 150}

	handle, decision, err := settlement.Mint(context.Background(), testMemberAddr)
	require.NoError(t, err)
	assert.True(t, decision.Eligible)
	assert.NotEmpty(t, handle.Hash)

	require.Len(t, ledger.mintSends, 1)
	assert.Equal(t, testMemberAddr, ledger.mintSends[0].address)
	assert.Equal(t, TierMetadata[1].MetadataURI, ledger.mintSends[0].uri)

	record, _ := ledger.ReadMember(context.Background(), testMemberAddr)
	assert.True(t, record.HasNFT)
}

func TestLedgerRejectedErrorUnwrapsCleanly(t *testing.T) {
	err := fmt.Errorf("approve failed: %w", &LedgerRejectedError{Reason: ReasonAlreadyMinted})
	var rejected *LedgerRejectedError
	require.True(t, errors.As(err, &rejected))
	assert.Equal(t, ReasonAlreadyMinted, rejected.Reason)
}
