package contrib

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chiffre-app/chiffre/internal/enterprise"
	"github.com/chiffre-app/chiffre/internal/rates"
)

func ptr(v float64) *float64 { return &v }

func serviceRate() rates.ActivityRate {
	return rates.ActivityRate{
		Code:          "service",
		Label:         "Prestations de services",
		Family:        rates.FamilyService,
		SocialRate:    0.212,
		IncomeTaxRate: ptr(0.017),
		CFPRate:       ptr(0.003),
		ChamberType:   rates.ChamberNone,
		Ceiling:       77700,
	}
}

func TestComputeDuesServiceActivity(t *testing.T) {
	e := enterprise.MicroEnterprise{IRLiberatoire: true}
	rate := serviceRate()

	d := ComputeDues(&rate, e, 10000)

	require.InDelta(t, 2120, d.SocialDue, 1e-9)
	require.InDelta(t, 170, d.IRDue, 1e-9)
	require.InDelta(t, 30, d.CFPDue, 1e-9)
	require.Zero(t, d.ChamberDue)
	require.Nil(t, d.ChamberType)
	require.InDelta(t, 2320, d.TotalDue, 1e-9)
}

func TestComputeDuesWithoutIRElection(t *testing.T) {
	e := enterprise.MicroEnterprise{}
	rate := serviceRate()

	d := ComputeDues(&rate, e, 10000)

	require.Nil(t, d.IRRate)
	require.Zero(t, d.IRDue)
	require.InDelta(t, 2150, d.TotalDue, 1e-9)
}

func TestComputeDuesACREDiscountsSocialOnly(t *testing.T) {
	e := enterprise.MicroEnterprise{IRLiberatoire: true, ACRERate: ptr(0.5)}
	rate := serviceRate()

	d := ComputeDues(&rate, e, 10000)

	require.InDelta(t, 0.106, *d.SocialRate, 1e-12)
	require.InDelta(t, 1060, d.SocialDue, 1e-9)
	require.InDelta(t, 170, d.IRDue, 1e-9)
	require.InDelta(t, 30, d.CFPDue, 1e-9)
	require.InDelta(t, 1260, d.TotalDue, 1e-9)
}

func TestComputeDuesNilRateOwesNothing(t *testing.T) {
	d := ComputeDues(nil, enterprise.MicroEnterprise{IRLiberatoire: true}, 10000)

	require.Nil(t, d.SocialRate)
	require.Nil(t, d.IRRate)
	require.Nil(t, d.CFPRate)
	require.Zero(t, d.TotalDue)
}

func TestComputeDuesChamberByRegion(t *testing.T) {
	rate := serviceRate()
	rate.ChamberType = rates.ChamberTrade
	rate.ChamberRate = ptr(0.0048)
	rate.ChamberRateAlsace = ptr(0.0065)

	standard := ComputeDues(&rate, enterprise.MicroEnterprise{Region: enterprise.RegionNone}, 10000)
	require.InDelta(t, 48, standard.ChamberDue, 1e-9)

	alsace := ComputeDues(&rate, enterprise.MicroEnterprise{Region: enterprise.RegionAlsace}, 10000)
	require.InDelta(t, 65, alsace.ChamberDue, 1e-9)

	// Moselle has no dedicated column here, so the default applies.
	moselle := ComputeDues(&rate, enterprise.MicroEnterprise{Region: enterprise.RegionMoselle}, 10000)
	require.InDelta(t, 48, moselle.ChamberDue, 1e-9)
}

func TestComputeDuesChamberTypeWithoutRate(t *testing.T) {
	rate := serviceRate()
	rate.ChamberType = rates.ChamberCommerce

	d := ComputeDues(&rate, enterprise.MicroEnterprise{}, 10000)

	require.NotNil(t, d.ChamberType)
	require.NotNil(t, d.ChamberRate)
	require.Zero(t, *d.ChamberRate)
	require.Zero(t, d.ChamberDue)
}

func TestRoundCurrencyHalfUp(t *testing.T) {
	require.InDelta(t, 0.13, RoundCurrency(0.125), 1e-12)
	require.InDelta(t, 0.12, RoundCurrency(0.1249), 1e-12)
	require.InDelta(t, 2120.00, RoundCurrency(2120.004), 1e-12)
	require.InDelta(t, 10.35, RoundCurrency(10.346), 1e-12)
}

func TestComputeDuesComponentRounding(t *testing.T) {
	rate := serviceRate()
	e := enterprise.MicroEnterprise{IRLiberatoire: true}

	// 1234.56 * 0.212 = 261.72672, * 0.017 = 20.98752, * 0.003 = 3.70368.
	d := ComputeDues(&rate, e, 1234.56)

	require.InDelta(t, 261.73, d.SocialDue, 1e-9)
	require.InDelta(t, 20.99, d.IRDue, 1e-9)
	require.InDelta(t, 3.70, d.CFPDue, 1e-9)
	require.InDelta(t, 286.42, d.TotalDue, 1e-9)
}
