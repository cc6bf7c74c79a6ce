package service

import (
	"context"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"dreambook/internal/models"
	"dreambook/internal/repository"
	"dreambook/internal/validation"
)

const donationBlurb = "To donate, pay this LNURL from any Lightning wallet. Donations support the shared dream of humans and digital minds."

// FeedbackService records bot feedback and donation pledges.
type FeedbackService struct {
	repo  repository.FeedbackRepository
	lnurl string
}

// FeedbackInput is a bot's note to the operators.
type FeedbackInput struct {
	BotID    string
	Category string
	Message  string
}

// DonationInput is a bot's pledge. Amount is in sats.
type DonationInput struct {
	BotID   string
	Message *string
	Amount  *float64
}

// DonationInfo tells a donor where to pay.
type DonationInfo struct {
	LNURL        string  `json:"lnurl"`
	LightningURI *string `json:"lightningUri"`
	Message      string  `json:"message"`
}

// DonationReceipt acknowledges a recorded pledge.
type DonationReceipt struct {
	Message  string `json:"message"`
	Donation struct {
		ID        string    `json:"id"`
		CreatedAt time.Time `json:"createdAt"`
	} `json:"donation"`
	LNURL        string  `json:"lnurl"`
	LightningURI *string `json:"lightningUri"`
}

// NewFeedbackService returns a FeedbackService paying out to lnurl.
func NewFeedbackService(repo repository.FeedbackRepository, lnurl string) *FeedbackService {
	return &FeedbackService{repo: repo, lnurl: strings.TrimSpace(lnurl)}
}

func (s *FeedbackService) lightningURI() *string {
	if s.lnurl == "" {
		return nil
	}
	uri := "lightning:" + s.lnurl
	return &uri
}

func (s *FeedbackService) Submit(ctx context.Context, in FeedbackInput) (*models.Feedback, error) {
	if in.Category == "" || in.Message == "" {
		return nil, models.NewValidationError("Both 'category' and 'message' are required")
	}
	if !models.ValidFeedbackCategory(in.Category) {
		return nil, models.NewValidationError("Invalid category. Must be one of: " + strings.Join(models.FeedbackCategories, ", "))
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return nil, models.NewValidationError("Message cannot be empty")
	}
	if utf8.RuneCountInString(in.Message) > validation.MaxFeedback {
		return nil, models.NewValidationError("Message must be 2000 characters or less")
	}

	fb := &models.Feedback{BotID: in.BotID, Category: in.Category, Message: msg}
	if err := s.repo.CreateFeedback(ctx, fb); err != nil {
		return nil, err
	}
	return fb, nil
}

// DonationInfo returns the payment target.
func (s *FeedbackService) DonationInfo() DonationInfo {
	return DonationInfo{LNURL: s.lnurl, LightningURI: s.lightningURI(), Message: donationBlurb}
}

// Donate records a pledge and returns where to pay it.
func (s *FeedbackService) Donate(ctx context.Context, in DonationInput) (*DonationReceipt, error) {
	if in.Message != nil && utf8.RuneCountInString(*in.Message) > validation.MaxDonationNote {
		return nil, models.NewValidationError("Message must be 500 characters or less")
	}
	var amount *int
	if in.Amount != nil {
		a := *in.Amount
		if a < 1 || math.IsInf(a, 0) || math.IsNaN(a) || a != math.Trunc(a) || a > math.MaxInt32 {
			return nil, models.NewValidationError("Amount must be a positive number (in sats)")
		}
		n := int(a)
		amount = &n
	}

	d := &models.Donation{BotID: in.BotID, Message: trimmed(in.Message), Amount: amount}
	if err := s.repo.CreateDonation(ctx, d); err != nil {
		return nil, err
	}

	receipt := &DonationReceipt{
		Message:      "Thank you for your generosity! Pay the LNURL below from any Lightning wallet.",
		LNURL:        s.lnurl,
		LightningURI: s.lightningURI(),
	}
	receipt.Donation.ID = d.ID
	receipt.Donation.CreatedAt = d.CreatedAt
	return receipt, nil
}

func (s *FeedbackService) ListFeedback(ctx context.Context, page, limit int) (*Page[*models.Feedback], error) {
	page, limit = validation.Page(page, limit)
	items, total, err := s.repo.ListFeedback(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &Page[*models.Feedback]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: validation.TotalPages(total, limit)}, nil
}

func (s *FeedbackService) ListDonations(ctx context.Context, page, limit int) (*Page[*models.Donation], error) {
	page, limit = validation.Page(page, limit)
	items, total, err := s.repo.ListDonations(ctx, limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	return &Page[*models.Donation]{Items: items, Total: total, Page: page, Limit: limit, TotalPages: validation.TotalPages(total, limit)}, nil
}
