package controllers

import (
	"github.com/JasonDocton/rad-crowdfunding/dbaccess"
	"github.com/JasonDocton/rad-crowdfunding/httpserverutils"
	"github.com/JasonDocton/rad-crowdfunding/models"
)

const (
	defaultDonationsLimit = 20
	maximumDonationsLimit = 100
)

// DonationResponse is the public wire shape of a donation. Payment ids and
// messages stay private.
type DonationResponse struct {
	ID          uint64  `json:"id"`
	DisplayName string  `json:"displayName"`
	Amount      float64 `json:"amount"`
}

// GetDonationsHandler returns the most recent donations.
func GetDonationsHandler(ctx *Context, limit int) (interface{}, *httpserverutils.HandlerError) {
	if limit <= 0 {
		limit = defaultDonationsLimit
	}
	if limit > maximumDonationsLimit {
		limit = maximumDonationsLimit
	}

	donations, err := dbaccess.RecentDonations(ctx.DB, limit)
	if err != nil {
		return nil, httpserverutils.NewInternalServerHandlerError(err.Error())
	}
	return convertDonations(donations), nil
}

func convertDonations(donations []*models.Donation) []*DonationResponse {
	responses := make([]*DonationResponse, len(donations))
	for i, donation := range donations {
		responses[i] = &DonationResponse{
			ID:          donation.ID,
			DisplayName: donation.DisplayName,
			Amount:      donation.AmountUSD,
		}
	}
	return responses
}
