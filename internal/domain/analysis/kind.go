package analysis

import (
	"fmt"
	"strings"
)

// Kind identifies one analysis workflow of the dashboard.
type Kind string

const (
	KindShelfMonitoring     Kind = "shelf_monitoring"
	KindTheftDetection      Kind = "theft_detection"
	KindPromoMonitoring     Kind = "promo_monitoring"
	KindSpoilageDetection   Kind = "spoilage_detection"
	KindShelfSpace          Kind = "shelf_space"
	KindCustomerBehaviour   Kind = "customer_behaviour"
	KindOOSPrediction       Kind = "oos_prediction"
	KindSecurityFeed        Kind = "security_feed"
	KindInventoryTracking   Kind = "inventory_tracking"
	KindPricingAudit        Kind = "pricing_audit"
	KindPlanogramCompliance Kind = "planogram_compliance"
	KindCreativeAudit       Kind = "creative_audit"
	KindCreativeGenerate    Kind = "creative_generate"
	KindInventoryForecast   Kind = "inventory_forecast"
	KindBusinessInsights    Kind = "business_insights"
	KindCustomerSupport     Kind = "customer_support"
)

// Output describes the shape of the upstream answer for a kind.
type Output string

const (
	OutputText       Output = "text"
	OutputStructured Output = "structured"
	OutputChat       Output = "chat"
	OutputCreative   Output = "creative"
)

// Spec is the static description of a kind: how many media parts it takes,
// which MIME families the picker accepts and what comes back.
type Spec struct {
	Kind     Kind     `json:"kind"`
	Title    string   `json:"title"`
	MinMedia int      `json:"min_media"`
	MaxMedia int      `json:"max_media"`
	Accept   []string `json:"accept,omitempty"`
	Output   Output   `json:"output"`
	// Context marks kinds whose prompt embeds caller supplied text.
	Context bool `json:"context"`
}

var (
	acceptImage      = []string{"image/*"}
	acceptImageVideo = []string{"image/*", "video/*"}
)

var specs = []Spec{
	{Kind: KindShelfMonitoring, Title: "Shelf Monitoring", MinMedia: 1, MaxMedia: 1, Accept: acceptImage, Output: OutputText},
	{Kind: KindTheftDetection, Title: "Theft Detection", MinMedia: 1, MaxMedia: 1, Accept: acceptImageVideo, Output: OutputText},
	{Kind: KindPromoMonitoring, Title: "Promo Monitoring", MinMedia: 1, MaxMedia: 1, Accept: acceptImageVideo, Output: OutputText},
	{Kind: KindSpoilageDetection, Title: "Spoilage Detection", MinMedia: 1, MaxMedia: 1, Accept: acceptImageVideo, Output: OutputText},
	{Kind: KindShelfSpace, Title: "Shelf Space Optimisation", MinMedia: 1, MaxMedia: 1, Accept: acceptImageVideo, Output: OutputText},
	{Kind: KindCustomerBehaviour, Title: "Customer Behaviour", MinMedia: 1, MaxMedia: 1, Accept: acceptImageVideo, Output: OutputText},
	{Kind: KindOOSPrediction, Title: "Out of Stock Prediction", MinMedia: 1, MaxMedia: 1, Accept: acceptImageVideo, Output: OutputText, Context: true},
	{Kind: KindSecurityFeed, Title: "Security Feed", MinMedia: 1, MaxMedia: 1, Accept: acceptImage, Output: OutputText},
	{Kind: KindInventoryTracking, Title: "Inventory Tracking", MinMedia: 1, MaxMedia: 1, Accept: acceptImage, Output: OutputText},
	{Kind: KindPricingAudit, Title: "Pricing Detection", MinMedia: 1, MaxMedia: 1, Accept: acceptImage, Output: OutputText},
	{Kind: KindPlanogramCompliance, Title: "Planogram Compliance", MinMedia: 2, MaxMedia: 2, Accept: acceptImage, Output: OutputText},
	{Kind: KindCreativeAudit, Title: "Creative Audit", MinMedia: 1, MaxMedia: 1, Accept: acceptImageVideo, Output: OutputText},
	{Kind: KindCreativeGenerate, Title: "Campaign Creator", MinMedia: 0, MaxMedia: 1, Accept: acceptImage, Output: OutputCreative, Context: true},
	{Kind: KindInventoryForecast, Title: "Inventory Forecast", Output: OutputStructured, Context: true},
	{Kind: KindBusinessInsights, Title: "Business Insights", Output: OutputStructured, Context: true},
	{Kind: KindCustomerSupport, Title: "Customer Support", Output: OutputChat},
}

var specByKind = func() map[Kind]Spec {
	m := make(map[Kind]Spec, len(specs))
	for _, s := range specs {
		m[s.Kind] = s
	}
	return m
}()

// Kinds returns every known kind in dashboard order.
func Kinds() []Kind {
	out := make([]Kind, len(specs))
	for i, s := range specs {
		out[i] = s.Kind
	}
	return out
}

// Specs returns a copy of the static kind table.
func Specs() []Spec {
	out := make([]Spec, len(specs))
	copy(out, specs)
	return out
}

// SpecFor looks up the static description of k.
func SpecFor(k Kind) (Spec, error) {
	s, ok := specByKind[k]
	if !ok {
		return Spec{}, &Error{Class: ErrConfiguration, Op: "spec", Err: fmt.Errorf("unknown feature kind %q", k)}
	}
	return s, nil
}

// ParseKind accepts the canonical name as well as dashed and upper-case
// variants ("SHELF-MONITORING").
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if _, err := SpecFor(k); err != nil {
		return "", err
	}
	return k, nil
}

func (k Kind) String() string { return string(k) }

// Comparison reports whether the kind compares a reference image with an
// actual capture.
func (k Kind) Comparison() bool { return k == KindPlanogramCompliance }

// Structured reports whether the kind expects schema-constrained JSON.
func (k Kind) Structured() bool {
	s, ok := specByKind[k]
	return ok && s.Output == OutputStructured
}

// Accepts checks a MIME type against the picker filter of the kind.
// Kinds without a filter accept anything.
func (s Spec) Accepts(mimeType string) bool {
	if len(s.Accept) == 0 {
		return true
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	for _, a := range s.Accept {
		if strings.HasSuffix(a, "/*") {
			if strings.HasPrefix(mimeType, strings.TrimSuffix(a, "*")) {
				return true
			}
			continue
		}
		if a == mimeType {
			return true
		}
	}
	return false
}
