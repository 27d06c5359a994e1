package simulator

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/arko-chat/protect/internal/bridge"
)

const canPrefix = "637805"

// Session is the fabricated account a simulator serves: one user, their
// cards, and the reference numbers issued so far.
type Session struct {
	mu sync.Mutex

	rng    *rand.Rand
	user   bridge.User
	cards  []bridge.Card
	refSeq uint64
	txSeq  uint64
	refs   map[string]float64
	refTag int
}

func newSession(seed uint64) *Session {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))

	expiry := time.Now().AddDate(1, 0, 0)
	s := &Session{
		rng: rng,
		user: bridge.User{
			ID:          "1403",
			FirstName:   "Test",
			LastName:    "User",
			PhoneNumber: "09123456789",
			Email:       "user@test.com",
		},
		refs:   make(map[string]float64),
		refTag: 10000 + rng.IntN(90000),
	}
	s.cards = []bridge.Card{
		{
			CAN:     s.randomCAN(),
			Expiry:  expiry.Format("2006-01-02") + " 00:00:00.000Z",
			Status:  bridge.CardActive,
			Balance: 6197.49,
		},
		{
			CAN:     s.randomCAN(),
			Expiry:  expiry.AddDate(0, 1, 0).Format("2006-01-02") + " 00:00:00.000Z",
			Status:  bridge.CardInactive,
			Balance: 1500,
		},
	}
	return s
}

func (s *Session) randomCAN() string {
	var b strings.Builder
	b.WriteString(canPrefix)
	for b.Len() < 16 {
		b.WriteByte(byte('0' + s.rng.IntN(10)))
	}
	return b.String()
}

func (s *Session) User() bridge.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

func (s *Session) Cards() bridge.CardList {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards := make([]bridge.Card, len(s.cards))
	copy(cards, s.cards)
	return bridge.CardList{Cards: cards}
}

func (s *Session) coin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(2) == 0
}

func (s *Session) issueReference(amount float64) bridge.ReferenceNumber {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.refSeq++
	ref := fmt.Sprintf("REF-%05d-%05d", s.refTag, s.refSeq)
	s.refs[ref] = amount

	return bridge.ReferenceNumber{
		ReferenceNumber: ref,
		ProcessingFee:   0,
		TotalAmount:     amount,
		PaymentID:       fmt.Sprintf("PAY-%05d-%05d", s.refTag, s.refSeq),
		Message:         "Success",
	}
}

// charge debits the first active card. It never fails: the simulated host
// accepts every payment it is configured to accept.
func (s *Session) charge(amount, fee float64) (balance float64, txID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.txSeq++
	txID = fmt.Sprintf("TXN-%d-%d", time.Now().Unix(), s.txSeq)

	for i := range s.cards {
		if s.cards[i].Status != bridge.CardActive {
			continue
		}
		s.cards[i].Balance -= amount + fee
		return s.cards[i].Balance, txID
	}
	return 0, txID
}

// Issued reports whether ref was handed out by this session.
func (s *Session) Issued(ref string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refs[ref]
	return ok
}
