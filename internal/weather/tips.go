package weather

import "tourist-safety/internal/models"

var baseTips = []string{
	"Check weather before you travel.",
	"Carry water and snacks for long journeys.",
	"Follow traffic rules and road signs.",
	"Keep emergency contacts handy.",
	"Avoid night travel if possible.",
}

const (
	TipHeat          = "High temperature - Stay hydrated and avoid peak sun hours."
	TipCold          = "Low temperature - Dress warmly and check for ice on roads."
	TipWind          = "High winds - Be cautious while driving, especially on highways."
	TipLongJourney   = "Long journey - Plan rest stops and fuel stations."
	TipMediumJourney = "Medium journey - Check fuel and plan your route."
)

// TravelTips returns general advice plus tips for the current weather (when
// known) and the length of the active route (when available)
func TravelTips(current *Current, active models.RouteResult) []string {
	tips := make([]string, len(baseTips), len(baseTips)+3)
	copy(tips, baseTips)

	if current != nil {
		if current.Temperature > 30 {
			tips = append(tips, TipHeat)
		} else if current.Temperature < 10 {
			tips = append(tips, TipCold)
		}

		if current.WindSpeed > 20 {
			tips = append(tips, TipWind)
		}
	}

	if active.Available {
		km := active.DistanceKm()
		if km > 50 {
			tips = append(tips, TipLongJourney)
		} else if km > 20 {
			tips = append(tips, TipMediumJourney)
		}
	}

	return tips
}
