// Package interpret turns free model text into UI findings.
//
// The mapping is a keyword heuristic: each rule fires on the presence of any
// of its triggers and emits a canned finding. Descriptions are never read
// from the text, so every finding is marked with findings.SourceHeuristic.
package interpret

import (
	"strconv"
	"strings"

	"github.com/bryanwahyu/retailsight/internal/domain/analysis"
	"github.com/bryanwahyu/retailsight/internal/domain/findings"
)

// Rule pairs trigger keywords with the finding they produce.
type Rule struct {
	Triggers []string
	Finding  findings.Template
}

// Table is an ordered rule list for one kind.
type Table []Rule

// match returns the first trigger present in lower, or "".
func (r Rule) match(lower string) string {
	for _, t := range r.Triggers {
		if strings.Contains(lower, t) {
			return t
		}
	}
	return ""
}

// finisher post-processes the findings of a kind once the table ran.
type finisher func(kind analysis.Kind, out []findings.Finding) []findings.Finding

var registry = map[analysis.Kind]Table{
	analysis.KindShelfMonitoring: {
		{Triggers: []string{"empty", "out of stock"}, Finding: findings.Template{
			Category: "Out of Stock", Severity: findings.SeverityHigh, Location: "Aisle 4, Section B",
			Description: "Multiple empty spots detected on middle shelf.",
		}},
		{Triggers: []string{"low", "back"}, Finding: findings.Template{
			Category: "Low Stock", Severity: findings.SeverityMedium, Location: "Aisle 4, Section B",
			Description: "Products pushed to back, replenishment suggested.",
		}},
		{Triggers: []string{"misplaced", "planogram"}, Finding: findings.Template{
			Category: "Planogram Mismatch", Severity: findings.SeverityLow, Location: "Aisle 4, Section B",
			Description: "Incorrect product SKU found in facial tissue section.",
		}},
	},

	analysis.KindTheftDetection: {
		{Triggers: []string{"shelf sweeping", "rapidly"}, Finding: findings.Template{
			Category: "Shelf Sweeping", Severity: findings.SeverityHigh, Location: "Aisle 3 (Premium Spirits)",
			Description: "Suspicious rapid removal of high-value bottled inventory detected.",
			Confidence:  92, Status: findings.StatusInvestigating,
		}},
		{Triggers: []string{"concealment", "bag", "clothing"}, Finding: findings.Template{
			Category: "Concealment", Severity: findings.SeverityHigh, Location: "Aisle 7 (Health & Beauty)",
			Description: "Subject observed placing items into a personal backpack.",
			Confidence:  88, Status: findings.StatusInvestigating,
		}},
		{Triggers: []string{"unusual handling", "tag"}, Finding: findings.Template{
			Category: "Unusual Handling", Severity: findings.SeverityMedium, Location: "Aisle 12 (Electronics)",
			Description: "Tampering with security tags on high-margin accessory identified.",
			Confidence:  75, Status: findings.StatusInvestigating,
		}},
	},

	analysis.KindSpoilageDetection: {
		{Triggers: []string{"damaged", "crushed", "packaging"}, Finding: findings.Template{
			Category: "Damaged Packaging", Severity: findings.SeverityMedium, Location: "Aisle 2, Bottom Shelf",
			Description: "Dented canned goods detected. Potential compromise of seal integrity.",
		}},
		{Triggers: []string{"spill", "leak", "liquid"}, Finding: findings.Template{
			Category: "Spill/Contamination", Severity: findings.SeverityCritical, Location: "Dairy Aisle, Row 4",
			Description: "Liquid spill detected near milk refrigeration unit. Immediate cleanup required to prevent slips.",
		}},
		{Triggers: []string{"expired", "past date"}, Finding: findings.Template{
			Category: "Expired Product", Severity: findings.SeverityHigh, Location: "Bakery, Fresh Rack",
			Description: "Pre-packaged bread identified with expiration date of yesterday.",
		}},
	},

	analysis.KindPricingAudit: {
		{Triggers: []string{"missing tag"}, Finding: findings.Template{
			Category: "Missing Tag", Severity: findings.SeverityHigh,
			Description: "Product detected without visible pricing label in Frozen Foods.",
		}},
		{Triggers: []string{"incorrect price", "wrong"}, Finding: findings.Template{
			Category: "Incorrect Price", Severity: findings.SeverityMedium, Subject: "Store Brand Milk 1L",
			Description: "Shelf tag shows $4.99 but system expected $3.49.",
			Attributes:  map[string]string{"detected_price": "$4.99"},
		}},
		{Triggers: []string{"expired", "promo"}, Finding: findings.Template{
			Category: "Expired Promotion", Severity: findings.SeverityLow,
			Description: `"Weekly Special" label still visible after promotion ended Sunday.`,
		}},
	},

	analysis.KindCustomerBehaviour: {
		{Triggers: []string{"hot zone", "congregate"}, Finding: findings.Template{
			Category: "Hot Zone", Severity: findings.SeverityInfo, Location: "End-cap Aisle 3",
			Description: "High dwell time detected. Customers often pause here for 15s+ to look at seasonal displays.",
			Score:       88,
		}},
		{Triggers: []string{"attention", "reach"}, Finding: findings.Template{
			Category: "High Interaction", Severity: findings.SeverityInfo, Location: "Middle Shelf, Section B",
			Description: "Peak engagement zone. 70% of product reaches happen at this height.",
			Score:       94,
		}},
		{Triggers: []string{"obstruction", "dead zone", "flow"}, Finding: findings.Template{
			Category: "Path Obstruction", Severity: findings.SeverityMedium, Location: "Entry Lane",
			Description: "Flow bottleneck identified. Basket placement is hindering natural shopper paths.",
			Score:       52,
		}},
	},

	analysis.KindOOSPrediction: {
		{Triggers: []string{"milk", "dairy"}, Finding: findings.Template{
			Category: "Stockout Prediction", Severity: findings.SeverityCritical, Subject: "Whole Milk 2L",
			Description: "Replenish within 45 minutes to maintain 100% availability.",
			Attributes: map[string]string{
				"fill_level": "15", "time_remaining": "1h 12m", "velocity": "15 units/hr",
			},
		}},
		{Triggers: []string{"bread", "bakery"}, Finding: findings.Template{
			Category: "Stockout Prediction", Severity: findings.SeverityWarning, Subject: "Artisan Sourdough",
			Description: "Schedule for next replenishment cycle (Batch B).",
			Attributes: map[string]string{
				"fill_level": "40", "time_remaining": "4h 20m", "velocity": "5 units/hr",
			},
		}},
	},

	analysis.KindInventoryTracking: {
		{Triggers: []string{"cola", "soda"}, Finding: findings.Template{
			Category: "Beverages", Severity: findings.SeverityInfo, Subject: "Coca-Cola 500ml",
			Description: "Recognized product row.", Confidence: 98,
			Attributes: map[string]string{"sku": "SKU-882193", "count": "24"},
		}},
		{Triggers: []string{"chip", "snack"}, Finding: findings.Template{
			Category: "Snacks", Severity: findings.SeverityInfo, Subject: "Lays Classic XL",
			Description: "Recognized product row.", Confidence: 94,
			Attributes: map[string]string{"sku": "SKU-112004", "count": "12"},
		}},
		{Triggers: []string{"milk", "dairy"}, Finding: findings.Template{
			Category: "Dairy", Severity: findings.SeverityInfo, Subject: "Fresh Valley Whole Milk",
			Description: "Recognized product row.", Confidence: 89,
			Attributes: map[string]string{"sku": "SKU-009211", "count": "8"},
		}},
	},

	analysis.KindShelfSpace: {
		{Triggers: []string{"coca-cola", "coke"}, Finding: brandShare("Coca-Cola", 35, 12, 30, "Over-Represented")},
		{Triggers: []string{"pepsi"}, Finding: brandShare("PepsiCo", 25, 8, 30, "Non-Compliant")},
		{Triggers: []string{"nestle", "water"}, Finding: brandShare("Nestle", 20, 6, 20, "Compliant")},
	},

	analysis.KindSecurityFeed: {
		{Triggers: []string{"empty", "restock"}, Finding: findings.Template{
			Category: "Empty Shelf", Severity: findings.SeverityHigh, Location: "Camera feed",
			Description: "Shelf gaps visible on the feed, restocking needed.",
		}},
		{Triggers: []string{"spill", "hazard", "obstacle"}, Finding: findings.Template{
			Category: "Safety Hazard", Severity: findings.SeverityCritical, Location: "Camera feed",
			Description: "Floor or aisle hazard visible on the feed.",
		}},
		{Triggers: []string{"suspicious"}, Finding: findings.Template{
			Category: "Suspicious Activity", Severity: findings.SeverityMedium, Location: "Camera feed",
			Description: "Activity on the feed flagged for review.", Status: findings.StatusInvestigating,
		}},
	},
}

var finishers = map[analysis.Kind]finisher{
	analysis.KindShelfSpace: addRemainderShare,
}

const othersBrand = "Store Brand / Others"

func brandShare(brand string, occupancy, facings, target int, compliance string) findings.Template {
	return findings.Template{
		Category:    "Brand Share",
		Severity:    findings.SeverityInfo,
		Subject:     brand,
		Description: brand + " occupies " + strconv.Itoa(occupancy) + "% of the shelf.",
		Score:       occupancy,
		Attributes: map[string]string{
			"facings":    strconv.Itoa(facings),
			"target":     strconv.Itoa(target),
			"compliance": compliance,
		},
	}
}

// addRemainderShare appends the unattributed share when at least one brand
// was recognized and the recognized shares leave room.
func addRemainderShare(kind analysis.Kind, out []findings.Finding) []findings.Finding {
	if len(out) == 0 {
		return out
	}
	total := 0
	for _, f := range out {
		total += f.Score
	}
	if total >= 100 {
		return out
	}
	return append(out, findings.FromTemplate(kind, "", brandShare(othersBrand, 100-total, 4, 20, "Compliant")))
}

// Rules returns a copy of the rule table of kind. Kinds without a table get
// an empty one.
func Rules(kind analysis.Kind) Table {
	t := registry[kind]
	out := make(Table, len(t))
	copy(out, t)
	return out
}

// Interpret runs the rule table of kind over text. It is pure: the same
// input always yields the same list in table order. The returned findings
// carry no identity or timestamp, see findings.Stamp.
func Interpret(kind analysis.Kind, text string) []findings.Finding {
	out := []findings.Finding{}
	if strings.TrimSpace(text) == "" {
		return out
	}
	lower := strings.ToLower(text)
	for _, r := range registry[kind] {
		if trigger := r.match(lower); trigger != "" {
			out = append(out, findings.FromTemplate(kind, trigger, r.Finding))
		}
	}
	if fin, ok := finishers[kind]; ok {
		out = fin(kind, out)
	}
	return out
}
