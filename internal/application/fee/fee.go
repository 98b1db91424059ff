// Package fee computes the application fee from parcel attributes, the
// application type and the priority level. The computation is pure: identical
// inputs always produce identical amounts.
package fee

import (
	"math"

	appmodels "landregistry/internal/application/models"
	parcelmodels "landregistry/internal/parcel/models"
	dErrors "landregistry/pkg/domain-errors"
)

// Amounts are in minor units of the base currency, which carries zero decimal
// places, so one minor unit equals one whole unit.
const (
	baseFee            = 50000
	areaRatePerHectare = 1000
)

var landTypeMultiplier = map[parcelmodels.LandType]float64{
	parcelmodels.LandTypeResidential:  1.0,
	parcelmodels.LandTypeCommercial:   2.0,
	parcelmodels.LandTypeAgricultural: 0.5,
	parcelmodels.LandTypeIndustrial:   1.5,
}

var applicationTypeMultiplier = map[appmodels.ApplicationType]float64{
	appmodels.TypeRegistration: 1.0,
	appmodels.TypeTransfer:     1.2,
	appmodels.TypeSubdivision:  1.5,
	appmodels.TypeMutation:     0.8,
}

// priorityMultiplier is keyed by priority level 1..5.
var priorityMultiplier = map[int]float64{
	1: 1.0,
	2: 1.5,
	3: 2.0,
	4: 3.0,
	5: 5.0,
}

// Compute returns the fee for an application against a parcel with the given
// area and land type. The result is rounded to the currency's minor-unit
// precision.
func Compute(areaHectares float64, landType parcelmodels.LandType, appType appmodels.ApplicationType, priority int) (int64, error) {
	if areaHectares <= 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "area must be positive")
	}
	landMult, ok := landTypeMultiplier[landType]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown land type %q", landType)
	}
	typeMult, ok := applicationTypeMultiplier[appType]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "unknown application type %q", appType)
	}
	prioMult, ok := priorityMultiplier[priority]
	if !ok {
		return 0, dErrors.Newf(dErrors.CodeInvalidInput, "priority %d is outside 1-5", priority)
	}

	amount := baseFee + areaHectares*areaRatePerHectare*landMult
	amount *= typeMult
	amount *= prioMult
	return int64(math.Round(amount)), nil
}
