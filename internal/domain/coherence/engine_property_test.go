package coherence

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func totalsGen() gopter.Gen {
	return gen.SliceOfN(3, gen.Float64Range(0, 10_000_000))
}

func sourceFrom(origin Origin, totals []float64) DataSource {
	return source(origin, totals[0], totals[1], totals[2])
}

func TestEngineProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	e := testEngine()

	properties.Property("a single source is always coherent", prop.ForAll(
		func(totals []float64) bool {
			v := e.ValidateCoherence("c1", 2025, 8, []DataSource{sourceFrom(OriginCalculated, totals)})
			return v.IsCoherent && v.ConfidenceScore == 100 && v.AutoFixable
		},
		totalsGen(),
	))

	properties.Property("a source is coherent with itself", prop.ForAll(
		func(totals []float64) bool {
			v := e.ValidateCoherence("c1", 2025, 8, []DataSource{
				sourceFrom(OriginDatabaseCached, totals),
				sourceFrom(OriginCalculated, totals),
			})
			return v.IsCoherent
		},
		totalsGen(),
	))

	properties.Property("comparison is symmetric", prop.ForAll(
		func(a, b []float64) bool {
			ab := e.ValidateCoherence("c1", 2025, 8, []DataSource{sourceFrom(OriginDatabaseCached, a), sourceFrom(OriginCalculated, b)})
			ba := e.ValidateCoherence("c1", 2025, 8, []DataSource{sourceFrom(OriginCalculated, b), sourceFrom(OriginDatabaseCached, a)})
			if ab.IsCoherent != ba.IsCoherent || ab.WorstSeverity != ba.WorstSeverity {
				return false
			}
			if len(ab.Discrepancies) == 0 {
				return true
			}
			x, y := ab.Discrepancies[0], ba.Discrepancies[0]
			return x.EarningsDiff == -y.EarningsDiff &&
				x.DeductionsDiff == -y.DeductionsDiff &&
				x.NetPayDiff == -y.NetPayDiff &&
				x.MaxAbsDiff == y.MaxAbsDiff
		},
		totalsGen(),
		totalsGen(),
	))

	properties.Property("confidence stays within 0..100", prop.ForAll(
		func(a, b, c []float64) bool {
			v := e.ValidateCoherence("c1", 2025, 8, []DataSource{
				sourceFrom(OriginDatabaseCached, a),
				sourceFrom(OriginCalculated, b),
				sourceFrom(OriginInterfaceDisplayed, c),
			})
			return v.ComparedPairs == 3 && v.ConfidenceScore >= 0 && v.ConfidenceScore <= 100
		},
		totalsGen(),
		totalsGen(),
		totalsGen(),
	))

	properties.TestingRun(t)
}
