package didi

import (
	"sort"
	"strings"

	"salchimonster/restaurant-reports/models"

	"github.com/antzucaro/matchr"
)

// MinSimilarity is the lowest Jaro-Winkler score worth proposing.
const MinSimilarity = 0.80

// Suggestion proposes linking a restaurant.pe location to a DiDi shop.
type Suggestion struct {
	RestaurantID   string  `json:"restaurant_id"`
	RestaurantName string  `json:"name_restaurant"`
	ShopID         string  `json:"didi_shop_id"`
	ShopName       string  `json:"name_didi"`
	Correlation    float64 `json:"correlation"`
}

func (s Suggestion) Sede() Sede {
	return Sede{
		RestaurantID:   s.RestaurantID,
		DidiShopID:     s.ShopID,
		NameRestaurant: s.RestaurantName,
		NameDidi:       s.ShopName,
	}
}

func normalizeName(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, prefix := range []string{"salchimonster", "salchi monster"} {
		s = strings.TrimSpace(strings.TrimPrefix(s, prefix))
	}

	return strings.Join(strings.Fields(s), " ")
}

// Suggest pairs unlinked locations with unlinked shops: exact name matches first, then
// the most similar remaining shop per location.
func Suggest(locales []models.Locale, shops []SedeStatus, mapa Mapa) []Suggestion {
	var result []Suggestion
	matchedShop := map[string]struct{}{}
	matchedLocal := map[string]struct{}{}

	var pendingLocales []models.Locale
	for _, l := range locales {
		if _, linked := mapa.RestaurantToDidi[l.ID]; linked || l.ID == "" {
			continue
		}
		pendingLocales = append(pendingLocales, l)
	}

	var pendingShops []SedeStatus
	for _, s := range shops {
		if _, linked := mapa.DidiToRestaurant[s.ShopID]; linked {
			continue
		}
		pendingShops = append(pendingShops, s)
	}

	for _, l := range pendingLocales {
		for _, s := range pendingShops {
			if _, ok := matchedShop[s.ShopID]; ok {
				continue
			}
			if normalizeName(l.Name) == normalizeName(s.ShopName) {
				result = append(result, Suggestion{l.ID, l.Name, s.ShopID, s.ShopName, 1})
				matchedShop[s.ShopID] = struct{}{}
				matchedLocal[l.ID] = struct{}{}
				break
			}
		}
	}

	for _, l := range pendingLocales {
		if _, ok := matchedLocal[l.ID]; ok {
			continue
		}

		var best float64
		var bestShop SedeStatus
		for _, s := range pendingShops {
			if _, ok := matchedShop[s.ShopID]; ok {
				continue
			}

			similarity := matchr.JaroWinkler(normalizeName(l.Name), normalizeName(s.ShopName), false)
			if similarity > best {
				best = similarity
				bestShop = s
			}
		}

		if best >= MinSimilarity {
			result = append(result, Suggestion{l.ID, l.Name, bestShop.ShopID, bestShop.ShopName, best})
			matchedShop[bestShop.ShopID] = struct{}{}
			matchedLocal[l.ID] = struct{}{}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Correlation > result[j].Correlation
	})

	return result
}
