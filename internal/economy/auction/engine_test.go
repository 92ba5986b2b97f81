package auction

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"mgcore/internal/economy/canon"
	"mgcore/internal/economy/models"
	dErrors "mgcore/pkg/domain-errors"
	"mgcore/pkg/platform/audit"
)

var t0 = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

var (
	allow = models.Decision{Verdict: models.VerdictAllow, RuleID: "ELIGIBLE", EvaluatedAt: t0}
	deny  = models.Decision{Verdict: models.VerdictDeny, RuleID: "RESTRICTED", EvaluatedAt: t0}
)

func draft() models.Auction {
	return models.Auction{ID: "auc-1", OrganizerID: "org-1", Status: models.AuctionDraft}
}

func wallet(subject string, balance int64) models.WalletSnapshot {
	return models.WalletSnapshot{SubjectID: subject, Balance: balance, AsOf: t0}
}

type EngineSuite struct {
	suite.Suite
	engine *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.engine = New(canon.NewRegistry())
}

func (s *EngineSuite) open() models.Auction {
	res, err := s.engine.OpenAuctionEvent(OpenRequest{Auction: draft(), OrganizerEligibility: allow, At: t0})
	s.Require().NoError(err)
	s.Require().Nil(res.Rejection)
	return res.Auction
}

func (s *EngineSuite) bid(a models.Auction, who string, amount int64, at time.Time) models.Auction {
	res, err := s.engine.ParticipateInAuction(ParticipateRequest{
		Auction: a, ParticipantID: who, Snapshot: wallet(who, 100), Eligibility: allow, Bid: amount, At: at,
	})
	s.Require().NoError(err)
	s.Require().Nil(res.Rejection, "bid by %s rejected", who)
	return res.Auction
}

func (s *EngineSuite) requireRejected(res Result, code ErrorCode, before models.Auction) {
	s.Require().NotNil(res.Rejection)
	s.Equal(code, res.Rejection.Code)
	s.Equal(before.Status, res.Rejection.Current)
	s.Equal(models.VerdictDeny, res.Decision.Verdict)
	s.Equal(string(code), res.Decision.RuleID)
	s.Equal(before, res.Auction)
	s.Require().Len(res.AuditEvents, 1)
	s.Equal(audit.ActionAuctionDenied, res.AuditEvents[0].Action)
	s.Equal(string(code), res.AuditEvents[0].Details["code"])
}

func (s *EngineSuite) TestOpen() {
	s.Run("eligible organizer opens a draft", func() {
		in := draft()
		res, err := s.engine.OpenAuctionEvent(OpenRequest{Auction: in, OrganizerEligibility: allow, At: t0})
		s.Require().NoError(err)

		s.Equal(models.AuctionOpen, res.Auction.Status)
		s.Equal(t0, res.Auction.OpenedAt)
		s.Equal(models.AuctionDraft, in.Status)
		s.Equal(models.VerdictAllow, res.Decision.Verdict)
		s.Require().Len(res.AuditEvents, 1)
		s.Equal(audit.ActionAuctionOpened, res.AuditEvents[0].Action)
		s.Equal("org-1", res.AuditEvents[0].ActorID)
	})

	s.Run("ineligible organizer", func() {
		res, err := s.engine.OpenAuctionEvent(OpenRequest{Auction: draft(), OrganizerEligibility: deny, At: t0})
		s.Require().NoError(err)
		s.requireRejected(res, CodeNotEligible, draft())
	})

	s.Run("already open", func() {
		a := s.open()
		res, err := s.engine.OpenAuctionEvent(OpenRequest{Auction: a, OrganizerEligibility: allow, At: t0})
		s.Require().NoError(err)
		s.requireRejected(res, CodeAlreadyOpen, a)
	})
}

func (s *EngineSuite) TestParticipate() {
	a := s.open()

	s.Run("accepted bid is appended", func() {
		res, err := s.engine.ParticipateInAuction(ParticipateRequest{
			Auction: a, ParticipantID: "user-1", Snapshot: wallet("user-1", 50), Eligibility: allow, Bid: 20, At: t0.Add(time.Minute),
		})
		s.Require().NoError(err)
		s.Nil(res.Rejection)
		s.Require().Len(res.Auction.Bids, 1)
		s.Equal(int64(20), res.Auction.Bids[0].Amount)
		s.Empty(a.Bids)
		s.Equal(audit.ActionAuctionParticipation, res.AuditEvents[0].Action)
	})

	withBid := s.bid(a, "user-1", 20, t0.Add(time.Minute))

	cases := []struct {
		name    string
		auction models.Auction
		req     ParticipateRequest
		code    ErrorCode
	}{
		{"not eligible", a, ParticipateRequest{ParticipantID: "user-2", Snapshot: wallet("user-2", 50), Eligibility: deny, Bid: 5}, CodeNotEligible},
		{"zero bid", a, ParticipateRequest{ParticipantID: "user-2", Snapshot: wallet("user-2", 50), Eligibility: allow, Bid: 0}, CodeInvalidBid},
		{"negative bid", a, ParticipateRequest{ParticipantID: "user-2", Snapshot: wallet("user-2", 50), Eligibility: allow, Bid: -4}, CodeInvalidBid},
		{"bid above balance", a, ParticipateRequest{ParticipantID: "user-2", Snapshot: wallet("user-2", 50), Eligibility: allow, Bid: 51}, CodeInsufficientBalance},
		{"second bid", withBid, ParticipateRequest{ParticipantID: "user-1", Snapshot: wallet("user-1", 50), Eligibility: allow, Bid: 5}, CodeAlreadyParticipated},
		{"draft auction", draft(), ParticipateRequest{ParticipantID: "user-2", Snapshot: wallet("user-2", 50), Eligibility: allow, Bid: 5}, CodeNotOpen},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			req := tc.req
			req.Auction = tc.auction
			req.At = t0.Add(2 * time.Minute)
			res, err := s.engine.ParticipateInAuction(req)
			s.Require().NoError(err)
			s.requireRejected(res, tc.code, tc.auction)
		})
	}

	s.Run("snapshot violation is a hard error", func() {
		bad := wallet("user-3", -1)
		res, err := s.engine.ParticipateInAuction(ParticipateRequest{
			Auction: a, ParticipantID: "user-3", Snapshot: bad, Eligibility: allow, Bid: 1, At: t0,
		})
		s.ErrorIs(err, canon.ErrCanonViolation)
		s.Empty(res.AuditEvents)
	})

	s.Run("snapshot for someone else", func() {
		_, err := s.engine.ParticipateInAuction(ParticipateRequest{
			Auction: a, ParticipantID: "user-3", Snapshot: wallet("user-4", 10), Eligibility: allow, Bid: 1, At: t0,
		})
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func (s *EngineSuite) TestParticipateOnClosedAuction() {
	a := s.bid(s.open(), "user-1", 10, t0.Add(time.Minute))
	closed, err := s.engine.CloseAuctionEvent(CloseRequest{Auction: a, At: t0.Add(time.Hour)})
	s.Require().NoError(err)
	s.Require().Equal(models.AuctionClosed, closed.Auction.Status)

	for _, bid := range []int64{-10, 0, 1, 10, 1 << 40} {
		res, err := s.engine.ParticipateInAuction(ParticipateRequest{
			Auction: closed.Auction, ParticipantID: "user-2", Snapshot: wallet("user-2", 5), Eligibility: deny, Bid: bid, At: t0.Add(2 * time.Hour),
		})
		s.Require().NoError(err)
		s.requireRejected(res, CodeAlreadyClosed, closed.Auction)
		s.Equal(TransitionParticipate, res.Rejection.Attempted)
	}
}

func (s *EngineSuite) TestClose() {
	s.Run("no participants without force", func() {
		a := s.open()
		res, err := s.engine.CloseAuctionEvent(CloseRequest{Auction: a, At: t0.Add(time.Hour)})
		s.Require().NoError(err)
		s.requireRejected(res, CodeNoParticipants, a)
	})

	s.Run("forced close without participants", func() {
		res, err := s.engine.CloseAuctionEvent(CloseRequest{Auction: s.open(), ActorID: "admin-1", Force: true, At: t0.Add(time.Hour)})
		s.Require().NoError(err)
		s.Nil(res.Rejection)
		s.Equal(models.AuctionClosed, res.Auction.Status)
		s.Empty(res.Auction.WinnerID)
		s.Equal("admin-1", res.AuditEvents[0].ActorID)
		s.Equal(true, res.AuditEvents[0].Details["forced"])
	})

	s.Run("highest bid wins", func() {
		a := s.open()
		a = s.bid(a, "user-1", 10, t0.Add(time.Minute))
		a = s.bid(a, "user-2", 30, t0.Add(2*time.Minute))
		a = s.bid(a, "user-3", 20, t0.Add(3*time.Minute))

		res, err := s.engine.CloseAuctionEvent(CloseRequest{Auction: a, At: t0.Add(time.Hour)})
		s.Require().NoError(err)
		s.Equal("user-2", res.Auction.WinnerID)
		s.Equal(int64(30), res.AuditEvents[0].Details["winning_bid"])
		s.Equal(audit.ActionAuctionClosed, res.AuditEvents[0].Action)
	})

	s.Run("closed and draft auctions", func() {
		res, err := s.engine.CloseAuctionEvent(CloseRequest{Auction: draft(), At: t0})
		s.Require().NoError(err)
		s.requireRejected(res, CodeNotOpen, draft())

		closed, err := s.engine.CloseAuctionEvent(CloseRequest{Auction: s.open(), Force: true, At: t0})
		s.Require().NoError(err)
		res, err = s.engine.CloseAuctionEvent(CloseRequest{Auction: closed.Auction, Force: true, At: t0})
		s.Require().NoError(err)
		s.requireRejected(res, CodeAlreadyClosed, closed.Auction)
	})
}

func (s *EngineSuite) TestInvalidStateIsHardError() {
	broken := draft()
	broken.Status = "PAUSED"
	_, err := s.engine.OpenAuctionEvent(OpenRequest{Auction: broken, OrganizerEligibility: allow, At: t0})

	var v *canon.Violation
	s.Require().True(errors.As(err, &v))
	s.Equal("UNKNOWN_AUCTION_STATUS", v.Code)

	_, err = s.engine.OpenAuctionEvent(OpenRequest{Auction: draft(), OrganizerEligibility: allow})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func TestSelectWinner(t *testing.T) {
	early := t0
	late := t0.Add(time.Second)

	tests := []struct {
		name string
		bids []models.Bid
		want string
	}{
		{"single", []models.Bid{{ParticipantID: "a", Amount: 1, PlacedAt: early}}, "a"},
		{"highest amount", []models.Bid{{ParticipantID: "a", Amount: 1, PlacedAt: early}, {ParticipantID: "b", Amount: 2, PlacedAt: late}}, "b"},
		{"tie goes to earliest", []models.Bid{{ParticipantID: "a", Amount: 5, PlacedAt: late}, {ParticipantID: "b", Amount: 5, PlacedAt: early}}, "b"},
		{"full tie goes to smallest id", []models.Bid{{ParticipantID: "z", Amount: 5, PlacedAt: early}, {ParticipantID: "m", Amount: 5, PlacedAt: early}}, "m"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SelectWinner(tt.bids)
			require.True(t, ok)
			assert.Equal(t, tt.want, got.ParticipantID)
		})
	}

	_, ok := SelectWinner(nil)
	assert.False(t, ok)
}
